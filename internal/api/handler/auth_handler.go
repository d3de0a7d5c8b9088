package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/auth"
	"github.com/d60-Lab/yatube/internal/form"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
)

const badCredentials = "Please enter a correct username and password. Note that both fields may be case-sensitive."

func (h *Handler) startSession(c *gin.Context, u *model.User) error {
	token, err := h.tokens.Issue(u)
	if err != nil {
		return err
	}
	middleware.SetSession(c, h.opts.CookieName, token, int(h.tokens.TTL().Seconds()), h.opts.CookieSecure)
	return nil
}

func (h *Handler) SignupForm(c *gin.Context) {
	h.html(c, http.StatusOK, "users/signup.html", gin.H{"form": form.NewSignupForm()})
}

// Signup 注册成功后直接登录并回到首页
func (h *Handler) Signup(c *gin.Context) {
	f := form.NewSignupForm()
	if err := c.ShouldBind(f); err != nil {
		f = form.NewSignupForm()
		f.Errors.Invalid()
		h.html(c, http.StatusOK, "users/signup.html", gin.H{"form": f})
		return
	}
	if !f.Validate() {
		h.html(c, http.StatusOK, "users/signup.html", gin.H{"form": f})
		return
	}
	u, err := h.accounts.SignUp(c.Request.Context(), f.Username, f.Email, f.Password1)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			f.Errors["username"] = "A user with that username already exists."
			h.html(c, http.StatusOK, "users/signup.html", gin.H{"form": f})
			return
		case errors.Is(err, service.ErrPasswordTooLong):
			f.Errors["password1"] = "Ensure this value has at most 72 bytes."
			h.html(c, http.StatusOK, "users/signup.html", gin.H{"form": f})
			return
		}
		h.fail(c, err)
		return
	}
	if err := h.startSession(c, u); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) LoginForm(c *gin.Context) {
	h.html(c, http.StatusOK, "users/login.html", gin.H{"next": auth.SafeNext(c.Query("next"), "")})
}

// Login 成功后跳到 next（仅限站内路径）
func (h *Handler) Login(c *gin.Context) {
	username := c.PostForm("username")
	next := auth.SafeNext(c.PostForm("next"), "")
	u, err := h.accounts.Authenticate(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.html(c, http.StatusOK, "users/login.html", gin.H{"error": badCredentials, "username": username, "next": next})
			return
		}
		h.fail(c, err)
		return
	}
	if err := h.startSession(c, u); err != nil {
		h.fail(c, err)
		return
	}
	if next == "" {
		next = "/"
	}
	c.Redirect(http.StatusFound, next)
}

func (h *Handler) Logout(c *gin.Context) {
	middleware.ClearSession(c, h.opts.CookieName, h.opts.CookieSecure)
	h.html(c, http.StatusOK, "users/logged_out.html", gin.H{"user": (*model.User)(nil)})
}
