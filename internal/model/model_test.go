package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostString(t *testing.T) {
	assert.Equal(t, "short", Post{Text: "short"}.String())
	assert.Equal(t, strings.Repeat("x", 15), Post{Text: strings.Repeat("x", 40)}.String())
	// 按字符截断，不切坏多字节文本
	assert.Equal(t, "Тестовый пост о", Post{Text: "Тестовый пост о кошках"}.String())
}

func TestURLs(t *testing.T) {
	assert.Equal(t, "/posts/42/", Post{ID: 42}.URL())
	assert.Equal(t, "/group/cats/", Group{Slug: "cats"}.URL())
	assert.Equal(t, "Cats", Group{Title: "Cats"}.String())
	assert.Equal(t, "nice", Comment{Text: "nice"}.String())
}

func TestAllMigratesParentsFirst(t *testing.T) {
	all := All()
	assert.IsType(t, &User{}, all[0])
	assert.IsType(t, &Follow{}, all[len(all)-1])
}
