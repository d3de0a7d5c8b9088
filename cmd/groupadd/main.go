// groupadd 创建社区；社区只能通过这里（或直接写库）创建
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/pkg/database"
	"github.com/d60-Lab/yatube/pkg/logger"
)

var slugRe = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

func main() {
	title := flag.String("title", "", "group title (<= 200 chars)")
	slug := flag.String("slug", "", "unique slug used in /group/<slug>/")
	description := flag.String("description", "", "group description")
	flag.Parse()

	if err := validate(*title, *slug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	groups := repository.NewGroupRepository(db)
	if _, err := groups.GetBySlug(ctx, *slug); err == nil {
		logger.Fatal("slug already exists", zap.String("slug", *slug))
	} else if !errors.Is(err, repository.ErrNotFound) {
		logger.Fatal("lookup slug", zap.Error(err))
	}

	g := &model.Group{Title: *title, Slug: *slug, Description: *description}
	if err := groups.Create(ctx, g); err != nil {
		logger.Fatal("create group", zap.Error(err))
	}
	logger.Info("group created", zap.Uint("id", g.ID), zap.String("slug", g.Slug), zap.String("url", g.URL()))
}

func validate(title, slug string) error {
	switch {
	case title == "":
		return errors.New("-title is required")
	case len([]rune(title)) > 200:
		return errors.New("-title must be at most 200 characters")
	case slug == "" || len(slug) > 50 || !slugRe.MatchString(slug):
		return errors.New("-slug must be 1-50 letters, digits, hyphens or underscores")
	}
	return nil
}
