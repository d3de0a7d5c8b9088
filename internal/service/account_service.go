package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
)

// AccountService 注册与登录
type AccountService interface {
	SignUp(ctx context.Context, username, email, password string) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	GetByID(ctx context.Context, id uint) (*model.User, error)
}

type accountService struct {
	userRepo repository.UserRepository
	cost     int
}

// NewAccountService cost<=0 时使用 bcrypt.DefaultCost
func NewAccountService(userRepo repository.UserRepository, cost int) AccountService {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &accountService{userRepo: userRepo, cost: cost}
}

func (s *accountService) SignUp(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{Username: username, Email: strings.TrimSpace(email), Password: string(hash)}
	if err := s.userRepo.Create(ctx, u); err != nil {
		// 并发注册同名用户时由唯一索引兜底
		if _, lookupErr := s.userRepo.GetByUsername(ctx, username); lookupErr == nil {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *accountService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *accountService) GetByID(ctx context.Context, id uint) (*model.User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
