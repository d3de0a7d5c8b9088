package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/auth"
	"github.com/d60-Lab/yatube/internal/form"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/pagination"
	"github.com/d60-Lab/yatube/internal/service"
)

func pageParam(c *gin.Context) int { return pagination.ParsePage(c.Query("page")) }

// postID 非法 ID 与不存在的帖子同样返回 404
func postID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Index 首页
func (h *Handler) Index(c *gin.Context) {
	page, err := h.posts.HomeFeed(c.Request.Context(), pageParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.html(c, http.StatusOK, "posts/index.html", gin.H{"page": page})
}

// GroupPosts 社区页
func (h *Handler) GroupPosts(c *gin.Context) {
	group, page, err := h.posts.GroupFeed(c.Request.Context(), c.Param("slug"), pageParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.html(c, http.StatusOK, "posts/group_list.html", gin.H{"group": group, "page": page})
}

// Profile 作者主页
func (h *Handler) Profile(c *gin.Context) {
	feed, err := h.posts.AuthorFeed(c.Request.Context(), c.Param("username"), middleware.CurrentUser(c), pageParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.html(c, http.StatusOK, "posts/profile.html", gin.H{
		"author":      feed.Author,
		"page":        feed.Page,
		"posts_count": feed.PostsCount,
		"following":   feed.Following,
	})
}

// PostDetail 帖子详情
func (h *Handler) PostDetail(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		h.NotFound(c)
		return
	}
	h.renderDetail(c, id, form.NewCommentForm(), http.StatusOK)
}

func (h *Handler) renderDetail(c *gin.Context, id uint, f *form.CommentForm, status int) {
	detail, err := h.posts.Detail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.html(c, status, "posts/post_detail.html", gin.H{
		"post":               detail.Post,
		"comments":           detail.Comments,
		"author_posts_count": detail.AuthorPostsCount,
		"form":               f,
		"can_edit":           auth.CanEditPost(middleware.CurrentUser(c), detail.Post).Allowed(),
	})
}

func (h *Handler) renderPostForm(c *gin.Context, f *form.PostForm, post *model.Post) {
	groups, err := h.posts.Groups(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	data := gin.H{"form": f, "groups": groups, "is_edit": post != nil}
	if post != nil {
		data["post"] = post
		data["current_image"] = post.Image
	}
	h.html(c, http.StatusOK, "posts/create_post.html", data)
}

// bindPostForm 读取 multipart 表单；图片可选
func (h *Handler) bindPostForm(c *gin.Context) (*form.PostForm, error) {
	if h.opts.Image.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.Image.MaxBytes+1<<20)
	}
	f := form.NewPostForm(nil)
	if err := c.ShouldBind(f); err != nil {
		return nil, err
	}
	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		f.Image = fh
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return nil, err
	}
	return f, nil
}

func (h *Handler) PostCreateForm(c *gin.Context) {
	h.renderPostForm(c, form.NewPostForm(nil), nil)
}

// PostCreate 作者取当前用户，忽略表单里的任何 author
func (h *Handler) PostCreate(c *gin.Context) {
	f, err := h.bindPostForm(c)
	if err != nil {
		f = form.NewPostForm(nil)
		f.Errors.Invalid()
		h.renderPostForm(c, f, nil)
		return
	}
	valid, err := f.Validate(c.Request.Context(), groupLookup{h.posts}, h.opts.Image)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !valid {
		h.renderPostForm(c, f, nil)
		return
	}
	user := middleware.CurrentUser(c)
	if _, err := h.posts.Create(c.Request.Context(), user, service.PostInput{
		Text:    f.Text,
		GroupID: f.GroupID(),
		Image:   f.Upload(),
	}); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/profile/"+user.Username+"/")
}

// loadEditable 非作者静默跳回详情页
func (h *Handler) loadEditable(c *gin.Context) (*model.Post, bool) {
	id, ok := postID(c)
	if !ok {
		h.NotFound(c)
		return nil, false
	}
	post, err := h.posts.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if !auth.CanEditPost(middleware.CurrentUser(c), post).Allowed() {
		c.Redirect(http.StatusFound, post.URL())
		return nil, false
	}
	return post, true
}

func (h *Handler) PostEditForm(c *gin.Context) {
	post, ok := h.loadEditable(c)
	if !ok {
		return
	}
	h.renderPostForm(c, form.NewPostForm(post), post)
}

func (h *Handler) PostEdit(c *gin.Context) {
	post, ok := h.loadEditable(c)
	if !ok {
		return
	}
	f, err := h.bindPostForm(c)
	if err != nil {
		f = form.NewPostForm(post)
		f.Errors.Invalid()
		h.renderPostForm(c, f, post)
		return
	}
	valid, err := f.Validate(c.Request.Context(), groupLookup{h.posts}, h.opts.Image)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !valid {
		h.renderPostForm(c, f, post)
		return
	}
	if err := h.posts.Update(c.Request.Context(), post, service.PostInput{
		Text:       f.Text,
		GroupID:    f.GroupID(),
		Image:      f.Upload(),
		ClearImage: f.WantsClearImage(),
	}); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, post.URL())
}

// AddComment 只接受 POST；校验失败时回显详情页与错误
func (h *Handler) AddComment(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		h.NotFound(c)
		return
	}
	f := form.NewCommentForm()
	if err := c.ShouldBind(f); err != nil {
		f = form.NewCommentForm()
		f.Errors.Invalid()
		h.renderDetail(c, id, f, http.StatusOK)
		return
	}
	if !f.Validate() {
		h.renderDetail(c, id, f, http.StatusOK)
		return
	}
	if _, err := h.posts.AddComment(c.Request.Context(), id, middleware.CurrentUser(c), f.Text); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, (&model.Post{ID: id}).URL())
}

// FollowIndex 关注的作者的帖子
func (h *Handler) FollowIndex(c *gin.Context) {
	page, err := h.posts.FollowFeed(c.Request.Context(), middleware.CurrentUser(c), pageParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.html(c, http.StatusOK, "posts/follow.html", gin.H{"page": page})
}

// groupLookup 供表单校验社区是否存在
type groupLookup struct{ posts service.PostService }

func (g groupLookup) GetByID(ctx context.Context, id uint) (*model.Group, error) {
	grp, err := g.posts.Group(ctx, id)
	if errors.Is(err, service.ErrGroupNotFound) {
		return nil, form.ErrUnknownGroup
	}
	return grp, err
}
