// Package storage 保存帖子图片，支持本地目录与 S3/MinIO
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/d60-Lab/yatube/config"
)

// Storage 图片存储接口
type Storage interface {
	// Write 写入对象，size 未知时传 -1
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// URL 返回可直接在页面中引用的地址
	URL(key string) string
}

// New 按 media.backend 创建存储
func New(ctx context.Context, cfg config.MediaConfig) (Storage, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.Root, cfg.URLPrefix)
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported media backend: %s", cfg.Backend)
	}
}
