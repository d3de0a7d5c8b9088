// feedbench 压测首页/关注流读取与关注写入；N、CONC、FOLLOWS 可通过环境变量调整
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/cache"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func report(name string, total time.Duration, recs []time.Duration) {
	if len(recs) == 0 {
		return
	}
	fmt.Printf("%-22s total=%v per_op=%v p50=%v p95=%v p99=%v\n",
		name, total, total/time.Duration(len(recs)), pct(recs, 0.50), pct(recs, 0.95), pct(recs, 0.99))
}

// run 用 workers 个 goroutine 执行 n 次 op，返回总耗时与每次耗时
func run(n, workers int, op func(i int)) (time.Duration, []time.Duration) {
	if workers > n {
		workers = n
	}
	feed := make(chan int, n)
	for i := 0; i < n; i++ {
		feed <- i
	}
	close(feed)
	out := make(chan time.Duration, n)
	done := make(chan struct{}, workers)
	t0 := time.Now()
	for w := 0; w < workers; w++ {
		go func() {
			for i := range feed {
				st := time.Now()
				op(i)
				out <- time.Since(st)
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	total := time.Since(t0)
	close(out)
	recs := make([]time.Duration, 0, n)
	for d := range out {
		recs = append(recs, d)
	}
	return total, recs
}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	if err := database.Migrate(db); err != nil {
		panic(err)
	}
	ctx := context.Background()

	N := envInt("N", 2000)
	CONC := envInt("CONC", 4)
	FOLLOWS := envInt("FOLLOWS", 50)
	POSTS := envInt("POSTS", 5)

	users := repository.NewUserRepository(db)
	rel := service.NewRelationshipService(users, repository.NewFollowRepository(db))
	posts := service.NewPostService(
		repository.NewPostRepository(db),
		repository.NewGroupRepository(db),
		users,
		repository.NewCommentRepository(db),
		rel,
		service.PostServiceOptions{PerPage: cfg.Pagination.PostsPerPage},
	)

	// 种子数据：N 个作者，每人 POSTS 篇帖子
	stamp := strconv.FormatInt(time.Now().UnixNano(), 36)
	seeded := make([]*model.User, N)
	for i := 0; i < N; i++ {
		u := &model.User{Username: fmt.Sprintf("bench_%s_%d", stamp, i), Password: "p"}
		if err := users.Create(ctx, u); err != nil {
			panic(err)
		}
		seeded[i] = u
	}
	batch := make([]model.Post, 0, N*POSTS)
	for _, u := range seeded {
		for j := 0; j < POSTS; j++ {
			batch = append(batch, model.Post{Text: fmt.Sprintf("post %d by %s", j, u.Username), AuthorID: u.ID})
		}
	}
	if err := db.Omit("Author", "Group").CreateInBatches(&batch, 500).Error; err != nil {
		panic(err)
	}

	reader := seeded[0]
	followTotal, followRecs := run(FOLLOWS, CONC, func(i int) {
		_, _ = rel.Follow(ctx, reader, seeded[1+i%(N-1)].Username)
	})

	homeTotal, homeRecs := run(N, CONC, func(i int) {
		_, _ = posts.HomeFeed(ctx, 1+i%10)
	})
	feedTotal, feedRecs := run(N, CONC, func(int) {
		_, _ = posts.FollowFeed(ctx, reader, 1)
	})

	fmt.Printf("N=%d, CONC=%d, FOLLOWS=%d, POSTS=%d, PER_PAGE=%d\n", N, CONC, FOLLOWS, POSTS, cfg.Pagination.PostsPerPage)
	report("follow", followTotal, followRecs)
	report("home feed (db)", homeTotal, homeRecs)
	report("follow feed (db)", feedTotal, feedRecs)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Printf("redis unavailable (%v), skip cached run\n", err)
		return
	}
	pc := cache.NewRedisPageCache(rdb, "feedbench:"+stamp, cfg.Cache.TTL)
	defer pc.Clear(ctx)
	cachedTotal, cachedRecs := run(N, CONC, func(i int) {
		key := "anon:/?page=" + strconv.Itoa(1+i%10)
		if e, err := pc.Get(ctx, key); err == nil && e != nil {
			return
		}
		page, err := posts.HomeFeed(ctx, 1+i%10)
		if err != nil {
			return
		}
		body := []byte(fmt.Sprintf("%d:%d", page.Number, len(page.Items)))
		_ = pc.Set(ctx, key, &cache.Entry{Status: 200, ContentType: "text/plain", Body: body})
	})
	report("home feed (cached)", cachedTotal, cachedRecs)
}
