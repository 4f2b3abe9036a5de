package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

// 下载格式
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Render 按格式渲染，返回内容与 Content-Type
func Render(b *model.DailyBriefing, format string) ([]byte, string, error) {
	switch format {
	case FormatMarkdown:
		return []byte(Markdown(b)), ContentType(format), nil
	case FormatJSON:
		data, err := JSON(b)
		return data, ContentType(format), err
	default:
		return nil, "", fmt.Errorf("unsupported format: %s", format)
	}
}

// Supported markdown 或 json
func Supported(format string) bool {
	return format == FormatMarkdown || format == FormatJSON
}

// ContentType 下载响应头
func ContentType(format string) string {
	if format == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return "application/json"
}

// Extension 文件扩展名
func Extension(format string) string {
	if format == FormatMarkdown {
		return ".md"
	}
	return ".json"
}

// JSON 缩进输出
func JSON(b *model.DailyBriefing) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseJSON 读回 JSON 产物
func ParseJSON(data []byte) (*model.DailyBriefing, error) {
	var b model.DailyBriefing
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse briefing json: %w", err)
	}
	if b.BriefingID == "" {
		return nil, fmt.Errorf("parse briefing json: briefing_id missing")
	}
	return &b, nil
}

// Markdown 渲染为 Markdown 简报
func Markdown(b *model.DailyBriefing) string {
	var sb strings.Builder
	ta := b.TrendAnalysis
	sr := b.SynthesisResults

	sb.WriteString("# K-Beauty Daily Trend Briefing\n\n")
	fmt.Fprintf(&sb, "**Date:** %s  \n", b.Date.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Briefing ID:** %s  \n", b.BriefingID)
	fmt.Fprintf(&sb, "**Posts Analyzed:** %d\n\n", b.ScrapedPostsCount)

	fmt.Fprintf(&sb, "## Executive Summary\n\n%s\n\n", sr.ExecutiveSummary)

	sb.WriteString("## Key Insights\n\n")
	writeList(&sb, sr.KeyInsights)

	sb.WriteString("## Priority Trends\n")
	for _, p := range ta.PriorityTrends {
		fmt.Fprintf(&sb, "\n### %d. %s\n\n", p.Rank, p.Title)
		fmt.Fprintf(&sb, "**Business Impact:** %s  \n", title(string(p.BusinessImpact)))
		fmt.Fprintf(&sb, "**Time to Market:** %s  \n", title(string(p.TimeToMarket)))
		fmt.Fprintf(&sb, "**Rationale:** %s\n\n", p.Rationale)
		if len(p.ActionItems) > 0 {
			sb.WriteString("**Action Items:**\n\n")
			writeList(&sb, p.ActionItems)
		}
	}

	sb.WriteString("\n## Market Opportunities\n")
	for _, o := range ta.MarketOpportunities {
		fmt.Fprintf(&sb, "\n### %s\n\n", o.Title)
		fmt.Fprintf(&sb, "**Description:** %s  \n", o.Description)
		fmt.Fprintf(&sb, "**Potential Value:** %s  \n", o.PotentialValue)
		fmt.Fprintf(&sb, "**Time Horizon:** %s  \n", o.TimeHorizon)
		fmt.Fprintf(&sb, "**Impact:** %s\n\n", title(string(o.Impact)))
		if len(o.ActionItems) > 0 {
			sb.WriteString("**Action Items:**\n\n")
			writeList(&sb, o.ActionItems)
		}
	}

	sb.WriteString("\n## Risk Factors\n")
	for _, r := range ta.RiskFactors {
		fmt.Fprintf(&sb, "\n### %s\n\n", r.Title)
		fmt.Fprintf(&sb, "**Severity:** %s  \n", title(string(r.Severity)))
		fmt.Fprintf(&sb, "**Description:** %s\n\n", r.Description)
		if len(r.MitigationStrategies) > 0 {
			sb.WriteString("**Mitigation Strategies:**\n\n")
			writeList(&sb, r.MitigationStrategies)
		}
	}

	sb.WriteString("\n## Recommendations\n\n")
	writeList(&sb, sr.ActionableRecommendations)

	fmt.Fprintf(&sb, "## Market Outlook\n\n%s\n\n", sr.MarketOutlook)

	sb.WriteString("## Trend Analysis\n\n")
	fmt.Fprintf(&sb, "**Total Trends Identified:** %d\n\n", len(ta.Trends))
	if ta.Summary != "" {
		fmt.Fprintf(&sb, "%s\n\n", ta.Summary)
	}
	sb.WriteString("### Identified Trends\n")
	for _, t := range ta.Trends {
		fmt.Fprintf(&sb, "\n#### %s\n\n", t.Title)
		fmt.Fprintf(&sb, "**Category:** %s  \n", title(string(t.Category)))
		fmt.Fprintf(&sb, "**Business Impact:** %s  \n", title(string(t.BusinessImpact)))
		fmt.Fprintf(&sb, "**Time to Market:** %s  \n", title(string(t.TimeToMarket)))
		fmt.Fprintf(&sb, "**Description:** %s\n\n", t.Description)
		fmt.Fprintf(&sb, "**Keywords:** %s  \n", strings.Join(t.Keywords, ", "))
		fmt.Fprintf(&sb, "**Sources:** %s\n", strings.Join(t.Sources, ", "))
	}
	return sb.String()
}

func writeList(sb *strings.Builder, items []string) {
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
	sb.WriteString("\n")
}

// title short_term -> Short Term
func title(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
