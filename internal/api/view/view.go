// Package view 基于 html/template 的页面渲染，模板随二进制嵌入
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin/render"
)

//go:embed templates
var files embed.FS

const layout = "templates/base.html"

// Renderer 每个页面模板与 base 布局、includes 组合成独立的模板集
type Renderer struct {
	pages map[string]*template.Template
}

var _ render.HTMLRender = (*Renderer)(nil)

// New mediaURL 把存储 key 转成页面可用地址
func New(mediaURL func(key string) string) (*Renderer, error) {
	funcs := template.FuncMap{
		"mediaURL": mediaURL,
		"truncate": truncate,
		"date":     func(t time.Time) string { return t.Format("2 January 2006") },
		"add":      func(a, b int) int { return a + b },
	}

	includes, err := fs.Glob(files, "templates/includes/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	err = fs.WalkDir(files, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || p == layout || strings.HasPrefix(p, "templates/includes/") {
			return err
		}
		patterns := append([]string{layout}, includes...)
		patterns = append(patterns, p)
		t, err := template.New(path.Base(layout)).Funcs(funcs).ParseFS(files, patterns...)
		if err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		r.pages[strings.TrimPrefix(p, "templates/")] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Instance 实现 gin 的 render.HTMLRender；name 形如 "posts/index.html"
func (r *Renderer) Instance(name string, data interface{}) render.Render {
	t, ok := r.pages[name]
	if !ok {
		panic("view: unknown template " + name)
	}
	return render.HTML{Template: t, Name: path.Base(layout), Data: data}
}

// Has 模板是否存在
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

func truncate(n int, s string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
