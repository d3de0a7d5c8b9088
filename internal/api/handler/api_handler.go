package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/pkg/response"
)

type postItem struct {
	ID      uint      `json:"id"`
	Text    string    `json:"text"`
	PubDate time.Time `json:"pub_date"`
	Author  string    `json:"author"`
	Group   string    `json:"group,omitempty"`
	Image   string    `json:"image,omitempty"`
	URL     string    `json:"url"`
}

// ListPosts 首页帖子
// @Summary 首页帖子（分页）
// @Tags 帖子
// @Produce json
// @Param page query int false "页码，越界时返回最后一页" default(1)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	page, err := h.posts.HomeFeed(c.Request.Context(), pageParam(c))
	if err != nil {
		apiError(c, err)
		return
	}
	list := make([]postItem, 0, len(page.Items))
	for _, p := range page.Items {
		it := postItem{ID: p.ID, Text: p.Text, PubDate: p.PubDate, Author: p.Author.Username, Image: p.Image, URL: p.URL()}
		if p.Group != nil {
			it.Group = p.Group.Slug
		}
		list = append(list, it)
	}
	response.Success(c, gin.H{
		"page":      page.Number,
		"num_pages": page.NumPages,
		"count":     page.Total,
		"list":      list,
	})
}
