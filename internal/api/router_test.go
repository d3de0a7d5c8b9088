package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/internal/api/handler"
	"github.com/d60-Lab/yatube/internal/api/view"
	"github.com/d60-Lab/yatube/internal/auth"
	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/internal/form"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/internal/storage"
	"github.com/d60-Lab/yatube/internal/testutil"
)

const cookieName = "session"

type site struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	tokens *auth.TokenManager
	cache  *cache.RedisPageCache
	store  *storage.LocalStorage
}

func newSite(t *testing.T, perPage int) *site {
	t.Helper()
	return newSiteWith(t, perPage, RouterOptions{})
}

// newSiteWith extra 中的 Gzip 等开关会合并进路由配置
func newSiteWith(t *testing.T, perPage int, extra RouterOptions) *site {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	store, err := storage.NewLocalStorage(t.TempDir(), "/media/")
	require.NoError(t, err)

	users := repository.NewUserRepository(db)
	rel := service.NewRelationshipService(users, repository.NewFollowRepository(db))
	posts := service.NewPostService(
		repository.NewPostRepository(db),
		repository.NewGroupRepository(db),
		users,
		repository.NewCommentRepository(db),
		rel,
		service.PostServiceOptions{PerPage: perPage, UploadDir: "posts/", Storage: store},
	)
	accounts := service.NewAccountService(users, bcrypt.MinCost)
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	pc := cache.NewRedisPageCache(rdb, "index_page", 20*time.Second)

	renderer, err := view.New(store.URL)
	require.NoError(t, err)

	h := handler.New(posts, rel, accounts, tokens, pc, handler.Options{
		CookieName:      cookieName,
		CacheKeyByQuery: true,
		Image:           form.ImageOptions{MaxBytes: 5 << 20, MaxWidth: 960, MaxHeight: 960},
	})
	r := NewRouter(h, RouterOptions{
		Renderer:   renderer,
		Tokens:     tokens,
		Users:      accounts,
		CookieName: cookieName,
		MediaRoot:  store.BasePath(),
		MediaURL:   "/media/",
		Gzip:       extra.Gzip,
	})
	return &site{t: t, db: db, router: r, tokens: tokens, cache: pc, store: store}
}

// do 发送请求；as 为 nil 时匿名
func (s *site) do(req *http.Request, as *model.User) *httptest.ResponseRecorder {
	s.t.Helper()
	if as != nil {
		tok, err := s.tokens.Issue(as)
		require.NoError(s.t, err)
		req.AddCookie(&http.Cookie{Name: cookieName, Value: tok})
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *site) get(path string, as *model.User) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil), as)
}

func (s *site) post(path string, values url.Values, as *model.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, as)
}

func TestPublicPages(t *testing.T) {
	s := newSite(t, 10)
	author := testutil.CreateUser(t, s.db, "leo")
	group := testutil.CreateGroup(t, s.db, "cats")
	p := testutil.CreatePost(t, s.db, author, group, "first post about cats")

	for _, path := range []string{
		"/",
		"/group/cats/",
		"/profile/leo/",
		p.URL(),
		"/about/author/",
		"/about/tech/",
		"/auth/login/",
		"/auth/signup/",
	} {
		t.Run(path, func(t *testing.T) {
			w := s.get(path, nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		})
	}

	w := s.get("/group/cats/", nil)
	assert.Contains(t, w.Body.String(), "first post about cats")
	assert.Contains(t, w.Body.String(), "Title cats")
}

func TestNotFound(t *testing.T) {
	s := newSite(t, 10)
	testutil.CreateUser(t, s.db, "leo")

	for _, path := range []string{
		"/unexisting_page/",
		"/group/nope/",
		"/profile/nobody/",
		"/posts/999/",
		"/posts/abc/",
	} {
		t.Run(path, func(t *testing.T) {
			w := s.get(path, nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Contains(t, w.Body.String(), "Custom 404")
		})
	}
}

func TestLoginRequired(t *testing.T) {
	s := newSite(t, 10)
	author := testutil.CreateUser(t, s.db, "leo")
	p := testutil.CreatePost(t, s.db, author, nil, "text")

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/create/"},
		{http.MethodGet, "/follow/"},
		{http.MethodGet, p.URL() + "edit/"},
		{http.MethodPost, p.URL() + "comment/"},
		{http.MethodGet, "/profile/leo/follow/"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := s.do(httptest.NewRequest(tt.method, tt.path, nil), nil)
			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, auth.LoginRedirect("/auth/login/", tt.path), w.Header().Get("Location"))
		})
	}
	assert.Equal(t, "/auth/login/?next=%2Fcreate%2F", s.get("/create/", nil).Header().Get("Location"))
}

func TestCreatePost(t *testing.T) {
	s := newSite(t, 10)
	leo := testutil.CreateUser(t, s.db, "leo")
	group := testutil.CreateGroup(t, s.db, "cats")

	w := s.get("/create/", leo)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="text"`)

	w = s.post("/create/", url.Values{"text": {"brand new"}, "group": {fmt.Sprint(group.ID)}}, leo)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/leo/", w.Header().Get("Location"))

	var got model.Post
	require.NoError(t, s.db.Where("text = ?", "brand new").First(&got).Error)
	assert.Equal(t, leo.ID, got.AuthorID)
	require.NotNil(t, got.GroupID)
	assert.Equal(t, group.ID, *got.GroupID)
}

func TestCreatePost_Invalid(t *testing.T) {
	s := newSite(t, 10)
	leo := testutil.CreateUser(t, s.db, "leo")

	w := s.post("/create/", url.Values{"text": {""}}, leo)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")

	w = s.post("/create/", url.Values{"text": {"x"}, "group": {"12345"}}, leo)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Select a valid choice.")

	var n int64
	s.db.Model(&model.Post{}).Count(&n)
	assert.Zero(t, n)
}

func TestCreatePost_WithImage(t *testing.T) {
	s := newSite(t, 10)
	leo := testutil.CreateUser(t, s.db, "leo")

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("text", "with a picture"))
	fw, err := mw.CreateFormFile("image", "small.png")
	require.NoError(t, err)
	_, err = fw.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/create/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := s.do(req, leo)
	require.Equal(t, http.StatusFound, w.Code)

	var got model.Post
	require.NoError(t, s.db.Where("text = ?", "with a picture").First(&got).Error)
	require.True(t, strings.HasPrefix(got.Image, "posts/"), got.Image)
	ok, err := s.store.Exists(context.Background(), got.Image)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, path := range []string{"/", "/profile/leo/", got.URL()} {
		assert.Contains(t, s.get(path, nil).Body.String(), "/media/"+got.Image, path)
	}
	assert.Equal(t, http.StatusOK, s.get("/media/"+got.Image, nil).Code)
}

func TestEditPost(t *testing.T) {
	s := newSite(t, 10)
	leo := testutil.CreateUser(t, s.db, "leo")
	other := testutil.CreateUser(t, s.db, "other")
	p := testutil.CreatePost(t, s.db, leo, nil, "original")
	edit := p.URL() + "edit/"

	w := s.get(edit, other)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, p.URL(), w.Header().Get("Location"))

	w = s.post(edit, url.Values{"text": {"hijacked"}}, other)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, p.URL(), w.Header().Get("Location"))

	w = s.get(edit, leo)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "original")

	w = s.post(edit, url.Values{"text": {"edited"}}, leo)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, p.URL(), w.Header().Get("Location"))

	var got model.Post
	require.NoError(t, s.db.First(&got, p.ID).Error)
	assert.Equal(t, "edited", got.Text)
	assert.Equal(t, leo.ID, got.AuthorID)

	var n int64
	s.db.Model(&model.Post{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestComments(t *testing.T) {
	s := newSite(t, 10)
	leo := testutil.CreateUser(t, s.db, "leo")
	reader := testutil.CreateUser(t, s.db, "reader")
	p := testutil.CreatePost(t, s.db, leo, nil, "commentable")
	target := p.URL() + "comment/"

	w := s.get(target, reader)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = s.post(target, url.Values{"text": {"   "}}, reader)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")

	var n int64
	s.db.Model(&model.Comment{}).Count(&n)
	assert.Zero(t, n)

	w = s.post(target, url.Values{"text": {"nice one"}}, reader)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, p.URL(), w.Header().Get("Location"))
	assert.Contains(t, s.get(p.URL(), nil).Body.String(), "nice one")

	w = s.post("/posts/999/comment/", url.Values{"text": {"lost"}}, reader)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// multipart 缺少 boundary，无法解析
func (s *site) postBroken(path string, as *model.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("text=hello"))
	req.Header.Set("Content-Type", "multipart/form-data")
	return s.do(req, as)
}

func TestInvalidSubmission(t *testing.T) {
	s := newSite(t, 10)
	leo := testutil.CreateUser(t, s.db, "leo")
	p := testutil.CreatePost(t, s.db, leo, nil, "commentable")

	w := s.postBroken(p.URL()+"comment/", leo)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), form.InvalidSubmission)
	var comments int64
	s.db.Model(&model.Comment{}).Count(&comments)
	assert.Zero(t, comments)

	w = s.postBroken("/auth/signup/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), form.InvalidSubmission)
	var users int64
	s.db.Model(&model.User{}).Count(&users)
	assert.EqualValues(t, 1, users)

	w = s.postBroken("/create/", leo)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), form.InvalidSubmission)
}

func TestCreatePost_GroupLookupFailure(t *testing.T) {
	s := newSite(t, 10)
	leo := testutil.CreateUser(t, s.db, "leo")
	require.NoError(t, s.db.Migrator().DropTable(&model.Group{}))

	w := s.post("/create/", url.Values{"text": {"orphan"}, "group": {"1"}}, leo)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "Select a valid choice")

	var n int64
	s.db.Model(&model.Post{}).Count(&n)
	assert.Zero(t, n)
}

func TestFollowFlow(t *testing.T) {
	s := newSite(t, 10)
	leo := testutil.CreateUser(t, s.db, "leo")
	fan := testutil.CreateUser(t, s.db, "fan")
	stranger := testutil.CreateUser(t, s.db, "stranger")
	testutil.CreatePost(t, s.db, leo, nil, "from leo")

	w := s.get("/profile/leo/follow/", fan)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/leo/", w.Header().Get("Location"))
	// 重复关注不产生新记录
	s.get("/profile/leo/follow/", fan)

	var n int64
	s.db.Model(&model.Follow{}).Where("user_id = ? AND author_id = ?", fan.ID, leo.ID).Count(&n)
	assert.Equal(t, int64(1), n)

	assert.Contains(t, s.get("/follow/", fan).Body.String(), "from leo")
	assert.NotContains(t, s.get("/follow/", stranger).Body.String(), "from leo")
	assert.Contains(t, s.get("/profile/leo/", fan).Body.String(), "/profile/leo/unfollow/")

	w = s.get("/profile/leo/follow/", leo)
	assert.Equal(t, http.StatusFound, w.Code)
	s.db.Model(&model.Follow{}).Where("user_id = ?", leo.ID).Count(&n)
	assert.Zero(t, n)

	w = s.get("/profile/leo/unfollow/", fan)
	assert.Equal(t, http.StatusFound, w.Code)
	s.db.Model(&model.Follow{}).Count(&n)
	assert.Zero(t, n)
	assert.NotContains(t, s.get("/follow/", fan).Body.String(), "from leo")

	assert.Equal(t, http.StatusNotFound, s.get("/profile/ghost/follow/", fan).Code)
}

func TestIndexCache(t *testing.T) {
	s := newSite(t, 10)
	leo := testutil.CreateUser(t, s.db, "leo")
	p := testutil.CreatePost(t, s.db, leo, nil, "cached text")

	first := s.get("/", nil)
	require.Equal(t, http.StatusOK, first.Code)
	require.Contains(t, first.Body.String(), "cached text")

	require.NoError(t, s.db.Delete(&model.Post{}, p.ID).Error)

	second := s.get("/", nil)
	assert.Equal(t, first.Body.String(), second.Body.String())

	require.NoError(t, s.cache.Clear(context.Background()))
	third := s.get("/", nil)
	assert.NotEqual(t, first.Body.String(), third.Body.String())
	assert.NotContains(t, third.Body.String(), "cached text")
}

func gunzip(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	defer zr.Close()
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(body)
}

func TestIndexCache_Gzip(t *testing.T) {
	s := newSiteWith(t, 10, RouterOptions{Gzip: true})
	leo := testutil.CreateUser(t, s.db, "leo")
	p := testutil.CreatePost(t, s.db, leo, nil, "compressed text")

	getGzip := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		return s.do(req, nil)
	}

	first := getGzip()
	require.Equal(t, http.StatusOK, first.Code)
	r1 := gunzip(t, first)
	require.Contains(t, r1, "compressed text")

	require.NoError(t, s.db.Delete(&model.Post{}, p.ID).Error)

	// 命中缓存的响应同样被压缩，解压后与首次一致
	second := getGzip()
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, r1, gunzip(t, second))

	// 缓存里存的是未压缩的页面
	plain := s.get("/", nil)
	assert.Empty(t, plain.Header().Get("Content-Encoding"))
	assert.Equal(t, r1, plain.Body.String())

	require.NoError(t, s.cache.Clear(context.Background()))
	third := gunzip(t, getGzip())
	assert.NotContains(t, third, "compressed text")
}

func TestPagination(t *testing.T) {
	s := newSite(t, 10)
	leo := testutil.CreateUser(t, s.db, "leo")
	group := testutil.CreateGroup(t, s.db, "cats")
	for i := 0; i < 13; i++ {
		testutil.CreatePost(t, s.db, leo, group, fmt.Sprintf("post %d", i))
	}
	reader := testutil.CreateUser(t, s.db, "reader")
	require.Equal(t, http.StatusFound, s.get("/profile/leo/follow/", reader).Code)

	pages := []struct {
		path string
		as   *model.User
	}{
		{"/", nil},
		{"/group/cats/", nil},
		{"/profile/leo/", nil},
		{"/follow/", reader},
	}
	for _, pg := range pages {
		t.Run(pg.path, func(t *testing.T) {
			assert.Equal(t, 10, strings.Count(s.get(pg.path, pg.as).Body.String(), "<article>"))
			assert.Equal(t, 3, strings.Count(s.get(pg.path+"?page=2", pg.as).Body.String(), "<article>"))
			// 越界页码回退到最后一页
			assert.Equal(t, 3, strings.Count(s.get(pg.path+"?page=99", pg.as).Body.String(), "<article>"))
		})
	}
}

func TestSignupAndLogin(t *testing.T) {
	s := newSite(t, 10)

	w := s.post("/auth/signup/", url.Values{
		"username":  {"newbie"},
		"email":     {"newbie@example.com"},
		"password1": {"longpassword1"},
		"password2": {"longpassword1"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), cookieName+"=")

	w = s.post("/auth/signup/", url.Values{
		"username":  {"newbie"},
		"password1": {"longpassword1"},
		"password2": {"longpassword1"},
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	long := strings.Repeat("a", 80)
	w = s.post("/auth/signup/", url.Values{
		"username":  {"verbose"},
		"password1": {long},
		"password2": {long},
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "at most 72 bytes")
	var n int64
	s.db.Model(&model.User{}).Where("username = ?", "verbose").Count(&n)
	assert.Zero(t, n)

	w = s.post("/auth/login/", url.Values{"username": {"newbie"}, "password": {"wrong"}}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "correct username and password")

	w = s.post("/auth/login/", url.Values{
		"username": {"newbie"},
		"password": {"longpassword1"},
		"next":     {"/create/"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/create/", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	req := httptest.NewRequest(http.MethodGet, "/create/", nil)
	req.AddCookie(cookies[0])
	assert.Equal(t, http.StatusOK, s.do(req, nil).Code)

	w = s.post("/auth/login/", url.Values{
		"username": {"newbie"},
		"password": {"longpassword1"},
		"next":     {"https://evil.example/"},
	}, nil)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = s.get("/auth/logout/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestJSONEndpoints(t *testing.T) {
	s := newSite(t, 10)
	leo := testutil.CreateUser(t, s.db, "leo")
	fan := testutil.CreateUser(t, s.db, "fan")
	group := testutil.CreateGroup(t, s.db, "cats")
	testutil.CreatePost(t, s.db, leo, group, "json post")
	s.get("/profile/leo/follow/", fan)

	w := s.get("/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	var resp struct {
		Code int `json:"code"`
		Data struct {
			Page     int `json:"page"`
			NumPages int `json:"num_pages"`
			Count    int `json:"count"`
			List     []struct {
				Text   string `json:"text"`
				Author string `json:"author"`
				Group  string `json:"group"`
				URL    string `json:"url"`
			} `json:"list"`
		} `json:"data"`
	}
	w = s.get("/api/v1/posts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, 1, resp.Data.Count)
	require.Len(t, resp.Data.List, 1)
	assert.Equal(t, "leo", resp.Data.List[0].Author)
	assert.Equal(t, "cats", resp.Data.List[0].Group)

	var rel struct {
		Data struct {
			List []string `json:"list"`
		} `json:"data"`
	}
	w = s.get("/api/v1/profile/leo/followers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rel))
	assert.Equal(t, []string{"fan"}, rel.Data.List)

	w = s.get("/api/v1/profile/fan/following", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rel))
	assert.Equal(t, []string{"leo"}, rel.Data.List)

	assert.Equal(t, http.StatusNotFound, s.get("/api/v1/profile/ghost/followers", nil).Code)

	// 返回的分页参数是实际生效的值
	var paged struct {
		Data struct {
			Page     int      `json:"page"`
			PageSize int      `json:"page_size"`
			List     []string `json:"list"`
		} `json:"data"`
	}
	w = s.get("/api/v1/profile/leo/followers?page=-3&page_size=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paged))
	assert.Equal(t, 1, paged.Data.Page)
	assert.Equal(t, 10, paged.Data.PageSize)
	assert.Equal(t, []string{"fan"}, paged.Data.List)

	w = s.get("/api/v1/profile/leo/followers?page_size=1000", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paged))
	assert.Equal(t, 100, paged.Data.PageSize)
}
