package cache

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/pkg/logger"
)

// KeyFunc 由请求得到缓存 key
type KeyFunc func(c *gin.Context) string

// RequestKey identity 区分访问者（页面里有登录信息）；
// byQuery 为 false 时忽略查询参数，所有页码共用一条缓存
func RequestKey(byQuery bool, identity func(c *gin.Context) string) KeyFunc {
	return func(c *gin.Context) string {
		target := c.Request.URL.Path
		if byQuery {
			target = c.Request.URL.RequestURI()
		}
		who := "anon"
		if identity != nil {
			if id := identity(c); id != "" {
				who = id
			}
		}
		return who + ":" + target
	}
}

type recordingWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// CachePage 缓存 GET 请求的 200 响应；缓存不可用时直接走处理函数
func CachePage(pc PageCache, keyFunc KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := keyFunc(c)

		e, err := pc.Get(ctx, key)
		if err != nil {
			logger.Warn("page cache unavailable", zap.String("key", key), zap.Error(err))
		}
		if e != nil {
			c.Data(e.Status, e.ContentType, e.Body)
			c.Abort()
			return
		}

		w := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if w.Status() != http.StatusOK || err != nil {
			return
		}
		entry := &Entry{Status: w.Status(), ContentType: w.Header().Get("Content-Type"), Body: w.buf.Bytes()}
		if err := pc.Set(ctx, key, entry); err != nil {
			logger.Warn("page cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
}
