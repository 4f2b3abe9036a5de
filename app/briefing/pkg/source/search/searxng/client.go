package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source/search"
)

const maxErrorBody = 512

// Client SearXNG JSON 接口
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient timeout 单位秒，0 表示 30s
func NewClient(baseURL string, timeout int) *Client {
	t := 30 * time.Second
	if timeout > 0 {
		t = time.Duration(timeout) * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/search",
		http:     &http.Client{Timeout: t},
	}
}

var _ search.Searcher = (*Client)(nil)

type hit struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	PublishedDate string  `json:"publishedDate"`
	Score         float64 `json:"score"`
}

// Search 新闻类查询限定最近一周
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("searxng: invalid base URL: %w", err)
	}
	params := url.Values{"q": {req.Query}, "format": {"json"}, "categories": {"general"}}
	if req.Topic == "news" {
		params.Set("categories", "news")
		params.Set("time_range", "week")
	}
	u.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("searxng: %w", err)
	}
	httpReq.Header.Set("User-Agent", source.UserAgent)
	httpReq.Header.Set("Accept", "application/json")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("searxng: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, fmt.Errorf("searxng: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Results []hit `json:"results"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("searxng: decode: %w", err)
	}

	out := &search.Response{Results: make([]search.Result, 0, len(payload.Results))}
	for _, h := range payload.Results {
		if h.URL == "" {
			continue
		}
		out.Results = append(out.Results, search.Result{
			Title:         h.Title,
			URL:           h.URL,
			Content:       h.Content,
			Score:         h.Score,
			PublishedDate: h.PublishedDate,
		})
		if req.MaxResults > 0 && len(out.Results) >= req.MaxResults {
			break
		}
	}
	return out, nil
}
