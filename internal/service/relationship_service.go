package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
)

// RelationshipService 关注关系服务
type RelationshipService interface {
	// Follow 幂等；关注自己返回 ErrFollowSelf
	Follow(ctx context.Context, user *model.User, username string) (*model.User, error)
	// Unfollow 幂等；没有关注时也不报错
	Unfollow(ctx context.Context, user *model.User, username string) (*model.User, error)
	IsFollowing(ctx context.Context, user *model.User, authorID uint) (bool, error)
	ListFollowing(ctx context.Context, username string, page, pageSize int) ([]string, error)
	ListFollowers(ctx context.Context, username string, page, pageSize int) ([]string, error)
}

type relationshipService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
}

func NewRelationshipService(userRepo repository.UserRepository, followRepo repository.FollowRepository) RelationshipService {
	return &relationshipService{userRepo: userRepo, followRepo: followRepo}
}

func (s *relationshipService) author(ctx context.Context, username string) (*model.User, error) {
	u, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return u, nil
}

func (s *relationshipService) Follow(ctx context.Context, user *model.User, username string) (*model.User, error) {
	author, err := s.author(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.ID == author.ID {
		return author, ErrFollowSelf
	}
	if err := s.followRepo.Create(ctx, user.ID, author.ID); err != nil {
		return nil, fmt.Errorf("follow %s: %w", username, err)
	}
	return author, nil
}

func (s *relationshipService) Unfollow(ctx context.Context, user *model.User, username string) (*model.User, error) {
	author, err := s.author(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.followRepo.Delete(ctx, user.ID, author.ID); err != nil {
		return nil, fmt.Errorf("unfollow %s: %w", username, err)
	}
	return author, nil
}

func (s *relationshipService) IsFollowing(ctx context.Context, user *model.User, authorID uint) (bool, error) {
	if user == nil || user.ID == authorID {
		return false, nil
	}
	return s.followRepo.Exists(ctx, user.ID, authorID)
}

// NormalizePage page<1 取第 1 页；pageSize 非法时取 10，最大 100
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func offsetLimit(page, pageSize int) (offset, limit int) {
	page, pageSize = NormalizePage(page, pageSize)
	return (page - 1) * pageSize, pageSize
}

func (s *relationshipService) ListFollowing(ctx context.Context, username string, page, pageSize int) ([]string, error) {
	u, err := s.author(ctx, username)
	if err != nil {
		return nil, err
	}
	offset, limit := offsetLimit(page, pageSize)
	items, err := s.followRepo.ListFollowings(ctx, u.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(items))
	for i, it := range items {
		res[i] = it.Author.Username
	}
	return res, nil
}

func (s *relationshipService) ListFollowers(ctx context.Context, username string, page, pageSize int) ([]string, error) {
	u, err := s.author(ctx, username)
	if err != nil {
		return nil, err
	}
	offset, limit := offsetLimit(page, pageSize)
	items, err := s.followRepo.ListFollowers(ctx, u.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(items))
	for i, it := range items {
		res[i] = it.User.Username
	}
	return res, nil
}
