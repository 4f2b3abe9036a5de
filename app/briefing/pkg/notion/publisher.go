package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
	// 单个 rich_text 文本块的长度上限
	maxTextLen = 2000
)

// Publisher 把简报写成 Notion 数据库中的一页
type Publisher struct {
	token      string
	databaseID string
	baseURL    string
	client     *http.Client
}

// NewPublisher baseURL 为空时使用官方地址
func NewPublisher(token, databaseID, baseURL string) *Publisher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Publisher{
		token:      token,
		databaseID: databaseID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type pageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Publish 创建页面并返回页面 URL
func (p *Publisher) Publish(ctx context.Context, b *model.DailyBriefing) (string, error) {
	payload, err := json.Marshal(buildPage(p.databaseID, b))
	if err != nil {
		return "", fmt.Errorf("marshal page failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/pages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response failed: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("notion api error: status=%d body=%s", res.StatusCode, string(raw))
	}

	var page pageResponse
	if err := json.Unmarshal(raw, &page); err != nil {
		return "", fmt.Errorf("unmarshal response failed: %w", err)
	}
	return page.URL, nil
}

type object = map[string]any

func buildPage(databaseID string, b *model.DailyBriefing) object {
	children := []object{
		block("heading_1", "Executive Summary"),
		block("paragraph", b.SynthesisResults.ExecutiveSummary),
		block("heading_2", "Priority Trends"),
	}
	for _, p := range b.TrendAnalysis.PriorityTrends {
		children = append(children,
			block("heading_3", fmt.Sprintf("%d. %s", p.Rank, p.Title)),
			block("paragraph", fmt.Sprintf("Business Impact: %s", p.BusinessImpact)),
			block("paragraph", p.Rationale),
		)
		for _, item := range p.ActionItems {
			children = append(children, block("bulleted_list_item", item))
		}
	}
	if len(b.SynthesisResults.ActionableRecommendations) > 0 {
		children = append(children, block("heading_2", "Recommendations"))
		for _, r := range b.SynthesisResults.ActionableRecommendations {
			children = append(children, block("bulleted_list_item", r))
		}
	}

	return object{
		"parent": object{"database_id": databaseID},
		"properties": object{
			"Title":             object{"title": richText(fmt.Sprintf("K-Beauty Briefing - %s", b.Date.UTC().Format("2006-01-02")))},
			"Date":              object{"date": object{"start": b.Date.UTC().Format(time.RFC3339)}},
			"Briefing ID":       object{"rich_text": richText(b.BriefingID)},
			"Posts Analyzed":    object{"number": b.ScrapedPostsCount},
			"Trends Identified": object{"number": len(b.TrendAnalysis.Trends)},
			"Priority Trends":   object{"number": len(b.TrendAnalysis.PriorityTrends)},
		},
		"children": children,
	}
}

func block(kind, content string) object {
	return object{
		"object": "block",
		"type":   kind,
		kind:     object{"rich_text": richText(content)},
	}
}

func richText(content string) []object {
	return []object{{"type": "text", "text": object{"content": clip(content, maxTextLen)}}}
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
