package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source"
)

// Enricher 摘要过短时抓取原文正文
type Enricher struct {
	client   *http.Client
	minChars int
	maxChars int
}

// New 默认：少于 500 字符时抓取原文，正文截断到 5000 字符
func New(client *http.Client) *Enricher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Enricher{client: client, minChars: 500, maxChars: 5000}
}

// Body 使用 readability 提取正文
func (e *Enricher) Body(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	res, err := source.Get(ctx, e.client, pageURL)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	article, err := readability.FromReader(res.Body, u)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	return article.TextContent, nil
}

// Enrich 返回 content 与原文正文中较长的一个，失败时保留 content
func (e *Enricher) Enrich(ctx context.Context, content, pageURL string) string {
	if utf8.RuneCountInString(content) < e.minChars && pageURL != "" {
		if fetched, err := e.Body(ctx, pageURL); err == nil && len(fetched) > len(content) {
			content = fetched
		}
	}
	return Truncate(content, e.maxChars)
}

// Truncate 按 rune 截断
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
