package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/internal/auth"
	"github.com/d60-Lab/yatube/internal/model"
)

const userKey = "current_user"

// UserLoader 按 ID 加载用户，已删除的用户视为匿名
type UserLoader interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
}

// Authenticate 从会话 cookie 解析当前用户；无效 cookie 会被清除，请求按匿名继续。
// secure 与写入会话时保持一致
func Authenticate(tokens *auth.TokenManager, users UserLoader, cookieName string, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(cookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}
		claims, err := tokens.Parse(raw)
		if err == nil {
			var id uint
			if id, err = claims.UserID(); err == nil {
				var u *model.User
				if u, err = users.GetByID(c.Request.Context(), id); err == nil {
					c.Set(userKey, u)
				}
			}
		}
		if err != nil {
			ClearSession(c, cookieName, secure)
		}
		c.Next()
	}
}

// CurrentUser 当前登录用户，匿名为 nil
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

// UserIdentity 供页面缓存区分访问者
func UserIdentity(c *gin.Context) string {
	if u := CurrentUser(c); u != nil {
		return "u" + strconv.FormatUint(uint64(u.ID), 10)
	}
	return ""
}

// RequireLogin 匿名访问时跳转到登录页，并带上 next
func RequireLogin(loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.Redirect(http.StatusFound, auth.LoginRedirect(loginURL, c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// SetSession 写入 HttpOnly 会话 cookie
func SetSession(c *gin.Context, cookieName, token string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieName, token, maxAge, "/", "", secure, true)
}

func ClearSession(c *gin.Context, cookieName string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieName, "", -1, "/", "", secure, true)
}
