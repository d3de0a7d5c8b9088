// Package api 组装 gin 引擎：中间件、静态文件与路由
package api

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/d60-Lab/yatube/docs"
	"github.com/d60-Lab/yatube/internal/api/handler"
	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/auth"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// RouterOptions 可选组件；零值即最小可用配置（测试使用）
type RouterOptions struct {
	Renderer     render.HTMLRender
	Tokens       *auth.TokenManager
	Users        middleware.UserLoader
	CookieName   string
	CookieSecure bool

	// MediaRoot 非空时以 MediaURL 提供本地图片
	MediaRoot string
	MediaURL  string

	Sentry      bool
	TracingName string
	Gzip        bool
	Swagger     bool
}

func NewRouter(h *handler.Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.HTMLRender = opts.Renderer

	r.Use(middleware.RequestLogger())
	r.Use(gin.CustomRecovery(func(c *gin.Context, err any) {
		logger.Error("panic recovered", zap.Any("error", err), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	if opts.Sentry {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if opts.TracingName != "" {
		r.Use(otelgin.Middleware(opts.TracingName))
	}
	if opts.Gzip {
		excluded := []string{"/swagger/"}
		if opts.MediaURL != "" {
			excluded = append(excluded, opts.MediaURL)
		}
		r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths(excluded)))
	}
	r.Use(middleware.Authenticate(opts.Tokens, opts.Users, opts.CookieName, opts.CookieSecure))

	if opts.MediaRoot != "" && opts.MediaURL != "" {
		r.Static(opts.MediaURL, opts.MediaRoot)
	}
	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h.RegisterRoutes(r)
	return r
}
