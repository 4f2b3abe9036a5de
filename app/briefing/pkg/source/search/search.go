package search

import (
	"context"
	"fmt"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source"
)

// Searcher 定义通用的搜索接口
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 通用搜索请求
type Request struct {
	Query      string
	Topic      string // "news" or "general"
	MaxResults int
	StartDate  string // Format: YYYY-MM-DD
	EndDate    string // Format: YYYY-MM-DD
}

// Response 通用搜索响应
type Response struct {
	Results []Result
}

// Result 单条搜索结果
type Result struct {
	Title         string
	URL           string
	Content       string
	Score         float64
	PublishedDate string
}

// Enricher 补全过短的摘要
type Enricher interface {
	Enrich(ctx context.Context, content, pageURL string) string
}

// Fetcher 把搜索后端适配为采集策略
type Fetcher struct {
	strategy string
	searcher Searcher
	enricher Enricher
	now      func() time.Time
}

var _ source.Fetcher = (*Fetcher)(nil)

// NewFetcher enricher 可为空
func NewFetcher(strategy string, searcher Searcher, enricher Enricher) *Fetcher {
	return &Fetcher{strategy: strategy, searcher: searcher, enricher: enricher, now: time.Now}
}

// Strategy 注册名
func (f *Fetcher) Strategy() string {
	return f.strategy
}

// Fetch 以 Descriptor.Query 搜索最近几天的新闻
func (f *Fetcher) Fetch(ctx context.Context, d source.Descriptor) ([]model.ScrapedPost, error) {
	if d.Query == "" {
		return nil, fmt.Errorf("source %s: query is required for %s", d.Name, f.strategy)
	}

	maxResults := d.MaxPosts
	if maxResults <= 0 {
		maxResults = 20
	}
	topic := d.Options["topic"]
	if topic == "" {
		topic = "news"
	}

	now := f.now()
	resp, err := f.searcher.Search(ctx, &Request{
		Query:      d.Query,
		Topic:      topic,
		MaxResults: maxResults,
		StartDate:  now.AddDate(0, 0, -3).Format(time.DateOnly),
		EndDate:    now.Format(time.DateOnly),
	})
	if err != nil {
		return nil, err
	}

	posts := make([]model.ScrapedPost, 0, len(resp.Results))
	for _, item := range resp.Results {
		content := item.Content
		if f.enricher != nil {
			content = f.enricher.Enrich(ctx, content, item.URL)
		}
		posts = append(posts, model.ScrapedPost{
			Title:       item.Title,
			Body:        content,
			PublishedAt: parsePublished(item.PublishedDate, now),
			SourceName:  d.Name,
			URL:         item.URL,
		})
		if len(posts) >= maxResults {
			break
		}
	}
	return posts, nil
}

func parsePublished(s string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", time.RFC1123, time.RFC1123Z, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}
