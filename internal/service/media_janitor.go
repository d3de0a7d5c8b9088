package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/internal/storage"
	"github.com/d60-Lab/yatube/pkg/logger"
)

// MediaJanitor 异步删除不再被引用的图片（编辑替换/清除、写库失败）
type MediaJanitor struct {
	store storage.Storage
	ch    chan string
	wg    sync.WaitGroup
}

func NewMediaJanitor(store storage.Storage, queueSize int) *MediaJanitor {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &MediaJanitor{store: store, ch: make(chan string, queueSize)}
}

// Start 启动 worker，返回停止函数；停止时处理完队列中剩余的任务
func (j *MediaJanitor) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 1
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			for {
				select {
				case key := <-j.ch:
					j.remove(key)
				case <-stopCh:
					for {
						select {
						case key := <-j.ch:
							j.remove(key)
						default:
							return
						}
					}
				}
			}
		}()
	}
	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stopCh) })
		done := make(chan struct{})
		go func() {
			j.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (j *MediaJanitor) remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := j.store.Delete(ctx, key); err != nil {
		logger.Warn("delete media failed", zap.String("key", key), zap.Error(err))
	}
}

// Enqueue 队列满时丢弃并告警，孤儿文件不影响读路径
func (j *MediaJanitor) Enqueue(key string) {
	if key == "" {
		return
	}
	select {
	case j.ch <- key:
	default:
		logger.Warn("media janitor queue full, drop", zap.String("key", key))
	}
}

// QueueLen 当前队列长度（采样值）
func (j *MediaJanitor) QueueLen() int { return len(j.ch) }
