package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) AboutAuthor(c *gin.Context) {
	h.html(c, http.StatusOK, "about/author.html", nil)
}

func (h *Handler) AboutTech(c *gin.Context) {
	h.html(c, http.StatusOK, "about/tech.html", nil)
}

// Health 存活检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
