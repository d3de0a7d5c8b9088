// Package testutil 提供测试用的内存数据库与种子数据
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/pkg/database"
)

var dbSeq atomic.Int64

// NewDB 打开一个独立的内存 sqlite 库并完成迁移
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := database.SQLiteDSN(fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1)))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser 插入一个用户（密码字段为占位值）
func CreateUser(t testing.TB, db *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", Password: "p"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

// CreateGroup 插入一个社区
func CreateGroup(t testing.TB, db *gorm.DB, slug string) *model.Group {
	t.Helper()
	g := &model.Group{Title: "Title " + slug, Slug: slug, Description: "Description " + slug}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("seed group %s: %v", slug, err)
	}
	return g
}

// CreatePost 插入一个帖子；group 可为 nil
func CreatePost(t testing.TB, db *gorm.DB, author *model.User, group *model.Group, text string) *model.Post {
	t.Helper()
	p := &model.Post{Text: text, AuthorID: author.ID}
	if group != nil {
		p.GroupID = &group.ID
	}
	if err := db.Omit("Author", "Group").Create(p).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return p
}
