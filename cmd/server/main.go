package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/api"
	"github.com/d60-Lab/yatube/internal/api/handler"
	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/api/view"
	"github.com/d60-Lab/yatube/internal/auth"
	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/internal/form"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/storage"
	"github.com/d60-Lab/yatube/pkg/database"
	"github.com/d60-Lab/yatube/pkg/logger"
	"github.com/d60-Lab/yatube/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			AttachStacktrace: true,
		}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// 缓存不可用时页面直接渲染
		logger.Warn("redis unavailable, page cache degraded", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	cancel()

	store, err := storage.New(ctx, cfg.Media)
	if err != nil {
		logger.Fatal("init media storage", zap.Error(err))
	}
	janitor := service.NewMediaJanitor(store, 1024)
	stopJanitor := janitor.Start(2)

	users := repository.NewUserRepository(db)
	relService := service.NewRelationshipService(users, repository.NewFollowRepository(db))
	postService := service.NewPostService(
		repository.NewPostRepository(db),
		repository.NewGroupRepository(db),
		users,
		repository.NewCommentRepository(db),
		relService,
		service.PostServiceOptions{
			PerPage:   cfg.Pagination.PostsPerPage,
			UploadDir: cfg.Media.UploadDir,
			Storage:   store,
			Janitor:   janitor,
		},
	)
	accounts := service.NewAccountService(users, 0)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	renderer, err := view.New(store.URL)
	if err != nil {
		logger.Fatal("load templates", zap.Error(err))
	}

	h := handler.New(postService, relService, accounts, tokens,
		cache.NewRedisPageCache(rdb, cfg.Cache.Prefix, cfg.Cache.TTL),
		handler.Options{
			LoginURL:        cfg.Auth.LoginURL,
			CookieName:      cfg.Auth.CookieName,
			CookieSecure:    cfg.Auth.CookieSecure,
			CacheKeyByQuery: cfg.Cache.KeyByQuery,
			Image: form.ImageOptions{
				MaxBytes:  cfg.Media.MaxUploadBytes,
				MaxWidth:  cfg.Media.MaxWidth,
				MaxHeight: cfg.Media.MaxHeight,
			},
			LoginLimiter: middleware.NewIPRateLimiter(cfg.Auth.LoginRateLimit, cfg.Auth.LoginBurst),
		},
	)

	gin.SetMode(cfg.Server.Mode)
	routerOpts := api.RouterOptions{
		Renderer:     renderer,
		Tokens:       tokens,
		Users:        accounts,
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
		Sentry:       cfg.Sentry.DSN != "",
		Gzip:         true,
		Swagger:      cfg.IsDevelopment(),
	}
	if cfg.Tracing.Enabled {
		routerOpts.TracingName = cfg.Tracing.ServiceName
	}
	if local, ok := store.(*storage.LocalStorage); ok {
		routerOpts.MediaRoot = local.BasePath()
		routerOpts.MediaURL = cfg.Media.URLPrefix
	}
	r := api.NewRouter(h, routerOpts)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server forced to shutdown", zap.Error(err))
	}
	if err := stopJanitor(shutdownCtx); err != nil {
		logger.Warn("media janitor stop", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
