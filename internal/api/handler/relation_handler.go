package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/response"
)

// ProfileFollow 关注作者后回到作者主页；关注自己被静默忽略
func (h *Handler) ProfileFollow(c *gin.Context) {
	username := c.Param("username")
	_, err := h.relService.Follow(c.Request.Context(), middleware.CurrentUser(c), username)
	if err != nil && !errors.Is(err, service.ErrFollowSelf) {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/profile/"+username+"/")
}

// ProfileUnfollow 取消关注，未关注时同样成功
func (h *Handler) ProfileUnfollow(c *gin.Context) {
	username := c.Param("username")
	if _, err := h.relService.Unfollow(c.Request.Context(), middleware.CurrentUser(c), username); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/profile/"+username+"/")
}

// pageQuery 返回归一化后的分页参数，与实际查询一致
func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	return service.NormalizePage(page, pageSize)
}

// ListFollowing 查询某用户关注的人
// @Summary 查询关注列表
// @Tags 关系链
// @Produce json
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/profile/{username}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	page, pageSize := pageQuery(c)
	list, err := h.relService.ListFollowing(c.Request.Context(), c.Param("username"), page, pageSize)
	if err != nil {
		apiError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// ListFollowers 查询某用户的粉丝
// @Summary 查询粉丝列表
// @Tags 关系链
// @Produce json
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/profile/{username}/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
	page, pageSize := pageQuery(c)
	list, err := h.relService.ListFollowers(c.Request.Context(), c.Param("username"), page, pageSize)
	if err != nil {
		apiError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

func apiError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrGroupNotFound):
		response.NotFound(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
