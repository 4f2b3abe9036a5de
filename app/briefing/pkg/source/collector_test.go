package source

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

type stubFetcher struct {
	strategy string
	fetch    func(ctx context.Context, d Descriptor) ([]model.ScrapedPost, error)
}

func (s *stubFetcher) Strategy() string { return s.strategy }

func (s *stubFetcher) Fetch(ctx context.Context, d Descriptor) ([]model.ScrapedPost, error) {
	return s.fetch(ctx, d)
}

func staticPosts(posts ...model.ScrapedPost) func(context.Context, Descriptor) ([]model.ScrapedPost, error) {
	return func(context.Context, Descriptor) ([]model.ScrapedPost, error) {
		return posts, nil
	}
}

func TestCollectPartialFailure(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubFetcher{strategy: "ok", fetch: staticPosts(
		model.ScrapedPost{Title: "Glass skin routine", URL: "https://a.example/1"},
		model.ScrapedPost{Title: "Cica cream", URL: "https://a.example/2/"},
	)})
	reg.Register(&stubFetcher{strategy: "dup", fetch: staticPosts(
		model.ScrapedPost{Title: "Cica cream again", URL: "https://A.example/2"},
		model.ScrapedPost{Title: "Rice toner", URL: "https://b.example/3"},
	)})
	reg.Register(&stubFetcher{strategy: "broken", fetch: func(context.Context, Descriptor) ([]model.ScrapedPost, error) {
		return nil, errors.New("connection refused")
	}})

	c := NewCollector(reg, 2, time.Second)
	res, err := c.Collect(context.Background(), []Descriptor{
		{Name: "naver", Strategy: "ok"},
		{Name: "broken", Strategy: "broken"},
		{Name: "blogs", Strategy: "dup"},
		{Name: "missing", Strategy: "nope"},
	})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(res.Posts) != 3 {
		t.Fatalf("posts = %d, want 3 (url dedup)", len(res.Posts))
	}
	if res.Posts[0].ID != "naver_1" || res.Posts[0].SourceName != "naver" {
		t.Fatalf("first post = %+v", res.Posts[0])
	}
	if res.Posts[2].ID != "blogs_1" || res.Posts[2].Title != "Rice toner" {
		t.Fatalf("third post = %+v", res.Posts[2])
	}
	if len(res.Failures) != 2 || res.Failures[0].Source != "broken" || res.Failures[1].Source != "missing" {
		t.Fatalf("failures = %+v", res.Failures)
	}
}

func TestCollectAllFailed(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubFetcher{strategy: "broken", fetch: func(context.Context, Descriptor) ([]model.ScrapedPost, error) {
		return nil, errors.New("boom")
	}})

	c := NewCollector(reg, 1, time.Second)
	res, err := c.Collect(context.Background(), []Descriptor{
		{Name: "a", Strategy: "broken"},
		{Name: "b", Strategy: "broken"},
	})
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("err = %v, want ErrAllSourcesFailed", err)
	}
	if res == nil || len(res.Failures) != 2 {
		t.Fatalf("failures not reported: %+v", res)
	}
}

func TestCollectPerSourceTimeout(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubFetcher{strategy: "slow", fetch: func(ctx context.Context, _ Descriptor) ([]model.ScrapedPost, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})
	reg.Register(&stubFetcher{strategy: "fast", fetch: staticPosts(model.ScrapedPost{Title: "Snail mucin"})})

	c := NewCollector(reg, 4, 5*time.Second)
	start := time.Now()
	res, err := c.Collect(context.Background(), []Descriptor{
		{Name: "slow", Strategy: "slow", Timeout: 20 * time.Millisecond},
		{Name: "fast", Strategy: "fast"},
	})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("per-source timeout not applied")
	}
	if len(res.Posts) != 1 || len(res.Failures) != 1 {
		t.Fatalf("res = %+v", res)
	}
	if !errors.Is(res.Failures[0], context.DeadlineExceeded) {
		t.Fatalf("failure = %v", res.Failures[0])
	}
}

func TestCollectRespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var inflight, peak atomic.Int32
	reg := NewRegistry()
	reg.Register(&stubFetcher{strategy: "s", fetch: func(context.Context, Descriptor) ([]model.ScrapedPost, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inflight.Add(-1)
		return []model.ScrapedPost{{Title: "x"}}, nil
	}})

	descs := make([]Descriptor, 6)
	for i := range descs {
		descs[i] = Descriptor{Name: string(rune('a' + i)), Strategy: "s"}
	}
	if _, err := NewCollector(reg, 2, time.Second).Collect(context.Background(), descs); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestCollectRecoversPanic(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubFetcher{strategy: "panic", fetch: func(context.Context, Descriptor) ([]model.ScrapedPost, error) {
		panic("selector exploded")
	}})
	reg.Register(&stubFetcher{strategy: "ok", fetch: staticPosts(model.ScrapedPost{Title: "ok"})})

	res, err := NewCollector(reg, 2, time.Second).Collect(context.Background(), []Descriptor{
		{Name: "p", Strategy: "panic"},
		{Name: "o", Strategy: "ok"},
	})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(res.Failures) != 1 || len(res.Posts) != 1 {
		t.Fatalf("res = %+v", res)
	}
}

func TestCollectNoSources(t *testing.T) {
	t.Parallel()

	if _, err := NewCollector(NewRegistry(), 1, 0).Collect(context.Background(), nil); !errors.Is(err, ErrNoSources) {
		t.Fatalf("err = %v, want ErrNoSources", err)
	}
}
