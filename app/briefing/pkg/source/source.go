package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

// UserAgent 采集请求统一使用的 UA，避免被简单的反爬虫策略拦截
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Descriptor 单个采集源
type Descriptor struct {
	Name          string
	Strategy      string
	URLs          []string
	Query         string
	Selectors     map[string]string
	MaxPosts      int
	Timeout       time.Duration
	RatePerSecond float64
	Options       map[string]string
}

// Fetcher 一种采集策略（html、rss、searxng ...）
type Fetcher interface {
	Strategy() string
	Fetch(ctx context.Context, d Descriptor) ([]model.ScrapedPost, error)
}

// Registry 按策略名查找 Fetcher
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{fetchers: map[string]Fetcher{}}
}

// Register 添加或替换策略实现
func (r *Registry) Register(f Fetcher) {
	if r.fetchers == nil {
		r.fetchers = map[string]Fetcher{}
	}
	r.fetchers[f.Strategy()] = f
}

// Resolve 按策略名获取实现
func (r *Registry) Resolve(strategy string) (Fetcher, error) {
	if f, ok := r.fetchers[strategy]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("fetch strategy %s is not registered", strategy)
}

// Get 带 UA 的 GET 请求，非 200 返回错误
func Get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", res.StatusCode, url)
	}
	return res, nil
}
