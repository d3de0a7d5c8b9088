package auth

import (
	"net/url"
	"strings"

	"github.com/d60-Lab/yatube/internal/model"
)

// Decision 授权结果
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) Allowed() bool { return d == Allow }

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// CanEditPost 只有作者本人可以编辑；匿名用户一律拒绝
func CanEditPost(principal *model.User, post *model.Post) Decision {
	if principal == nil || post == nil || principal.ID == 0 {
		return Deny
	}
	if principal.ID != post.AuthorID {
		return Deny
	}
	return Allow
}

// SafeNext 只接受站内路径作为登录后的跳转目标
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return fallback
	}
	return next
}

// LoginRedirect 生成 loginURL?next=<当前地址>
func LoginRedirect(loginURL, requestURI string) string {
	sep := "?"
	if strings.Contains(loginURL, "?") {
		sep = "&"
	}
	return loginURL + sep + "next=" + url.QueryEscape(requestURI)
}
