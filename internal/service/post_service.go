package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/form"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/pagination"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/storage"
	"github.com/d60-Lab/yatube/pkg/logger"
)

type PostPage = pagination.Page[*model.Post]

// AuthorFeed 作者主页
type AuthorFeed struct {
	Author     *model.User
	Page       *PostPage
	PostsCount int64
	// Following 当前访问者是否已关注该作者，匿名为 false
	Following bool
}

// PostDetail 帖子详情与全部评论
type PostDetail struct {
	Post             *model.Post
	Comments         []*model.Comment
	AuthorPostsCount int64
}

// PostInput 已通过表单校验的数据
type PostInput struct {
	Text       string
	GroupID    *uint
	Image      *form.Upload
	ClearImage bool
}

type PostService interface {
	HomeFeed(ctx context.Context, page int) (*PostPage, error)
	GroupFeed(ctx context.Context, slug string, page int) (*model.Group, *PostPage, error)
	AuthorFeed(ctx context.Context, username string, viewer *model.User, page int) (*AuthorFeed, error)
	FollowFeed(ctx context.Context, user *model.User, page int) (*PostPage, error)

	Get(ctx context.Context, id uint) (*model.Post, error)
	Detail(ctx context.Context, id uint) (*PostDetail, error)
	Groups(ctx context.Context) ([]*model.Group, error)
	Group(ctx context.Context, id uint) (*model.Group, error)

	Create(ctx context.Context, author *model.User, in PostInput) (*model.Post, error)
	Update(ctx context.Context, post *model.Post, in PostInput) error
	AddComment(ctx context.Context, postID uint, author *model.User, text string) (*model.Comment, error)
}

// PostServiceOptions 分页大小与图片目录
type PostServiceOptions struct {
	PerPage   int
	UploadDir string
	Storage   storage.Storage
	Janitor   *MediaJanitor
}

type postService struct {
	posts     repository.PostRepository
	groups    repository.GroupRepository
	users     repository.UserRepository
	comments  repository.CommentRepository
	relations RelationshipService

	perPage   int
	uploadDir string
	store     storage.Storage
	janitor   *MediaJanitor
}

func NewPostService(
	posts repository.PostRepository,
	groups repository.GroupRepository,
	users repository.UserRepository,
	comments repository.CommentRepository,
	relations RelationshipService,
	opts PostServiceOptions,
) PostService {
	if opts.PerPage < 1 {
		opts.PerPage = 10
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "posts/"
	}
	return &postService{
		posts:     posts,
		groups:    groups,
		users:     users,
		comments:  comments,
		relations: relations,
		perPage:   opts.PerPage,
		uploadDir: opts.UploadDir,
		store:     opts.Storage,
		janitor:   opts.Janitor,
	}
}

func (s *postService) page(ctx context.Context, f repository.PostFilter, requested int) (*PostPage, error) {
	total, err := s.posts.Count(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	number, numPages, offset := pagination.Window(total, s.perPage, requested)
	items, err := s.posts.List(ctx, f, offset, s.perPage)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return &PostPage{Items: items, Number: number, NumPages: numPages, PerPage: s.perPage, Total: total}, nil
}

func (s *postService) HomeFeed(ctx context.Context, page int) (*PostPage, error) {
	return s.page(ctx, repository.PostFilter{}, page)
}

func (s *postService) GroupFeed(ctx context.Context, slug string, page int) (*model.Group, *PostPage, error) {
	g, err := s.groups.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrGroupNotFound
		}
		return nil, nil, err
	}
	p, err := s.page(ctx, repository.PostFilter{GroupID: &g.ID}, page)
	if err != nil {
		return nil, nil, err
	}
	return g, p, nil
}

func (s *postService) AuthorFeed(ctx context.Context, username string, viewer *model.User, page int) (*AuthorFeed, error) {
	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	p, err := s.page(ctx, repository.PostFilter{AuthorID: &author.ID}, page)
	if err != nil {
		return nil, err
	}
	following, err := s.relations.IsFollowing(ctx, viewer, author.ID)
	if err != nil {
		return nil, fmt.Errorf("check following: %w", err)
	}
	return &AuthorFeed{Author: author, Page: p, PostsCount: p.Total, Following: following}, nil
}

func (s *postService) FollowFeed(ctx context.Context, user *model.User, page int) (*PostPage, error) {
	return s.page(ctx, repository.PostFilter{FollowerID: &user.ID}, page)
}

func (s *postService) Get(ctx context.Context, id uint) (*model.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *postService) Detail(ctx context.Context, id uint) (*PostDetail, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	cnt, err := s.posts.Count(ctx, repository.PostFilter{AuthorID: &p.AuthorID})
	if err != nil {
		return nil, fmt.Errorf("count author posts: %w", err)
	}
	return &PostDetail{Post: p, Comments: comments, AuthorPostsCount: cnt}, nil
}

func (s *postService) Groups(ctx context.Context) ([]*model.Group, error) {
	return s.groups.List(ctx)
}

func (s *postService) Group(ctx context.Context, id uint) (*model.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return g, nil
}

func (s *postService) Create(ctx context.Context, author *model.User, in PostInput) (*model.Post, error) {
	p := &model.Post{Text: in.Text, AuthorID: author.ID, GroupID: in.GroupID}
	if in.Image != nil {
		key, err := s.saveImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		p.Image = key
	}
	if err := s.posts.Create(ctx, p); err != nil {
		s.discard(p.Image)
		return nil, fmt.Errorf("create post: %w", err)
	}
	p.Author = *author
	return p, nil
}

// Update 只改 text/group/image；旧图片在写库成功后异步删除
func (s *postService) Update(ctx context.Context, post *model.Post, in PostInput) error {
	oldImage := post.Image
	next := *post
	next.Text = in.Text
	next.GroupID = in.GroupID
	switch {
	case in.Image != nil:
		key, err := s.saveImage(ctx, in.Image)
		if err != nil {
			return err
		}
		next.Image = key
	case in.ClearImage:
		next.Image = ""
	}

	if err := s.posts.Update(ctx, &next); err != nil {
		if next.Image != oldImage {
			s.discard(next.Image)
		}
		return fmt.Errorf("update post %d: %w", post.ID, err)
	}
	if oldImage != "" && oldImage != next.Image {
		s.discard(oldImage)
	}
	post.Text, post.GroupID, post.Image = next.Text, next.GroupID, next.Image
	return nil
}

func (s *postService) AddComment(ctx context.Context, postID uint, author *model.User, text string) (*model.Comment, error) {
	if _, err := s.Get(ctx, postID); err != nil {
		return nil, err
	}
	c := &model.Comment{PostID: postID, AuthorID: author.ID, Text: text}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	c.Author = *author
	return c, nil
}

func (s *postService) saveImage(ctx context.Context, up *form.Upload) (string, error) {
	if s.store == nil {
		return "", errors.New("media storage is not configured")
	}
	key := path.Join(s.uploadDir, uuid.NewString()+up.Ext)
	if err := s.store.Write(ctx, key, bytes.NewReader(up.Data), int64(len(up.Data)), up.ContentType); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return key, nil
}

func (s *postService) discard(key string) {
	if key == "" {
		return
	}
	if s.janitor != nil {
		s.janitor.Enqueue(key)
		return
	}
	if s.store != nil {
		if err := s.store.Delete(context.Background(), key); err != nil {
			logger.Warn("delete media failed", zap.String("key", key), zap.Error(err))
		}
	}
}
