package handler

import (
	"errors"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/auth"
	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/internal/form"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// Options 与路由、会话相关的配置
type Options struct {
	LoginURL        string
	CookieName      string
	CookieSecure    bool
	CacheKeyByQuery bool
	Image           form.ImageOptions
	// LoginLimiter 为 nil 时不限制登录频率
	LoginLimiter *middleware.IPRateLimiter
}

type Handler struct {
	posts      service.PostService
	relService service.RelationshipService
	accounts   service.AccountService
	tokens     *auth.TokenManager
	pageCache  cache.PageCache
	opts       Options
}

func New(
	posts service.PostService,
	relService service.RelationshipService,
	accounts service.AccountService,
	tokens *auth.TokenManager,
	pageCache cache.PageCache,
	opts Options,
) *Handler {
	if opts.LoginURL == "" {
		opts.LoginURL = "/auth/login/"
	}
	if opts.CookieName == "" {
		opts.CookieName = "yatube_session"
	}
	return &Handler{
		posts:      posts,
		relService: relService,
		accounts:   accounts,
		tokens:     tokens,
		pageCache:  pageCache,
		opts:       opts,
	}
}

// RegisterRoutes 注册页面、JSON API 与 404
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	login := middleware.RequireLogin(h.opts.LoginURL)

	index := []gin.HandlerFunc{h.Index}
	if h.pageCache != nil {
		key := cache.RequestKey(h.opts.CacheKeyByQuery, middleware.UserIdentity)
		index = append([]gin.HandlerFunc{cache.CachePage(h.pageCache, key)}, index...)
	}
	r.GET("/", index...)
	r.GET("/group/:slug/", h.GroupPosts)
	r.GET("/profile/:username/", h.Profile)
	r.GET("/posts/:id/", h.PostDetail)
	r.GET("/create/", login, h.PostCreateForm)
	r.POST("/create/", login, h.PostCreate)
	r.GET("/posts/:id/edit/", login, h.PostEditForm)
	r.POST("/posts/:id/edit/", login, h.PostEdit)
	r.POST("/posts/:id/comment/", login, h.AddComment)
	r.GET("/follow/", login, h.FollowIndex)
	r.GET("/profile/:username/follow/", login, h.ProfileFollow)
	r.GET("/profile/:username/unfollow/", login, h.ProfileUnfollow)

	authGroup := r.Group("/auth")
	{
		authGroup.GET("/signup/", h.SignupForm)
		authGroup.POST("/signup/", h.Signup)
		authGroup.GET("/login/", h.LoginForm)
		if h.opts.LoginLimiter != nil {
			authGroup.POST("/login/", middleware.RateLimit(h.opts.LoginLimiter), h.Login)
		} else {
			authGroup.POST("/login/", h.Login)
		}
		authGroup.GET("/logout/", h.Logout)
	}

	r.GET("/about/author/", h.AboutAuthor)
	r.GET("/about/tech/", h.AboutTech)
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		api.GET("/posts", h.ListPosts)
		api.GET("/profile/:username/following", h.ListFollowing)
		api.GET("/profile/:username/followers", h.ListFollowers)
	}

	r.NoRoute(h.NotFound)
}

// html 注入所有页面共用的上下文：年份与当前用户
func (h *Handler) html(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if _, ok := data["user"]; !ok {
		data["user"] = middleware.CurrentUser(c)
	}
	data["year"] = time.Now().Year()
	c.HTML(status, name, data)
}

// NotFound 渲染 404 页面
func (h *Handler) NotFound(c *gin.Context) {
	h.html(c, http.StatusNotFound, "core/404.html", gin.H{"path": c.Request.URL.Path})
}

// fail 统一处理业务错误：不存在 -> 404，其余记录日志并返回 500
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrGroupNotFound),
		errors.Is(err, service.ErrUserNotFound):
		h.NotFound(c)
	default:
		_ = c.Error(err)
		logger.Error("request failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		h.html(c, http.StatusInternalServerError, "core/500.html", nil)
	}
}
