package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisPageCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisPageCache(client, "index_page", ttl), mr
}

func TestRedisPageCache(t *testing.T) {
	pc, mr := newRedisCache(t, 20*time.Second)
	ctx := context.Background()

	miss, err := pc.Get(ctx, "anon:/")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, pc.Set(ctx, "anon:/", &Entry{Status: 200, ContentType: "text/html", Body: []byte("<p>feed</p>")}))
	require.NoError(t, pc.Set(ctx, "anon:/?page=2", &Entry{Status: 200, Body: []byte("p2")}))
	assert.True(t, mr.Exists("index_page:anon:/"))

	hit, err := pc.Get(ctx, "anon:/")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "<p>feed</p>", string(hit.Body))
	assert.Equal(t, "text/html", hit.ContentType)

	mr.FastForward(21 * time.Second)
	expired, err := pc.Get(ctx, "anon:/")
	require.NoError(t, err)
	assert.Nil(t, expired)

	require.NoError(t, pc.Set(ctx, "anon:/", &Entry{Status: 200, Body: []byte("x")}))
	require.NoError(t, mr.Set("other:key", "keep"))
	require.NoError(t, pc.Clear(ctx))
	assert.False(t, mr.Exists("index_page:anon:/"))
	assert.True(t, mr.Exists("other:key"))
}

func TestCachePageMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pc, _ := newRedisCache(t, time.Minute)

	calls := 0
	r := gin.New()
	r.GET("/", CachePage(pc, RequestKey(true, nil)), func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, "render "+strconv.Itoa(calls)+" page "+c.Query("page"))
	})
	r.GET("/missing", CachePage(pc, RequestKey(true, nil)), func(c *gin.Context) {
		c.String(http.StatusNotFound, "nope")
	})

	get := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w
	}

	first := get("/")
	second := get("/")
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
	assert.Contains(t, second.Header().Get("Content-Type"), "text/plain")

	p2 := get("/?page=2")
	assert.Equal(t, 2, calls)
	assert.Contains(t, p2.Body.String(), "page 2")

	require.NoError(t, pc.Clear(context.Background()))
	third := get("/")
	assert.NotEqual(t, first.Body.String(), third.Body.String())

	get("/missing")
	get("/missing")
	ok, err := pc.Get(context.Background(), "anon:/missing")
	require.NoError(t, err)
	assert.Nil(t, ok, "non-200 responses are not cached")
}

func TestRequestKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3", nil)

	assert.Equal(t, "anon:/?page=3", RequestKey(true, nil)(c))
	assert.Equal(t, "anon:/", RequestKey(false, nil)(c))
	assert.Equal(t, "7:/?page=3", RequestKey(true, func(*gin.Context) string { return "7" })(c))
}

func TestCachePage_RedisDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	pc := NewRedisPageCache(client, "index_page", time.Minute)

	r := gin.New()
	r.GET("/", CachePage(pc, RequestKey(true, nil)), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
