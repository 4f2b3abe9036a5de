package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

// SynthesisInput 趋势与本次运行的计数
type SynthesisInput struct {
	Trends        []model.Trend
	ScrapedPosts  int
	RelevantPosts int
}

// SynthesisOutput 综合结果；Fallback 表示未调用 LLM
type SynthesisOutput struct {
	PriorityTrends      []model.PriorityTrend
	MarketOpportunities []model.MarketOpportunity
	RiskFactors         []model.RiskFactor
	Summary             string
	Results             model.SynthesisResults
	Fallback            bool
}

// Synthesizer 综合分析 Agent
type Synthesizer struct {
	llm           JSONGenerator
	topPriorities int
}

// NewSynthesizer topPriorities <= 0 表示全部趋势参与排名
func NewSynthesizer(gen JSONGenerator, topPriorities int) *Synthesizer {
	return &Synthesizer{llm: gen, topPriorities: topPriorities}
}

type priorityItem struct {
	TrendID     string   `json:"trend_id"`
	Title       string   `json:"title"`
	Rationale   string   `json:"rationale"`
	Reasoning   string   `json:"reasoning"`
	ActionItems []string `json:"action_items"`
}

type opportunityItem struct {
	TrendID        string   `json:"trend_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	PotentialValue string   `json:"potential_value"`
	TimeHorizon    string   `json:"time_horizon"`
	Impact         string   `json:"impact"`
	ActionItems    []string `json:"action_items"`
}

type riskItem struct {
	TrendID              string   `json:"trend_id"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Severity             string   `json:"severity"`
	MitigationStrategies []string `json:"mitigation_strategies"`
}

type synthesisPayload struct {
	ExecutiveSummary          string            `json:"executive_summary"`
	TrendSummary              string            `json:"trend_summary"`
	KeyInsights               []string          `json:"key_insights"`
	ActionableRecommendations []string          `json:"actionable_recommendations"`
	MarketOutlook             string            `json:"market_outlook"`
	PriorityTrends            []priorityItem    `json:"priority_trends"`
	MarketOpportunities       []opportunityItem `json:"market_opportunities"`
	RiskFactors               []riskItem        `json:"risk_factors"`
}

func (p *synthesisPayload) Validate() error {
	if strings.TrimSpace(p.ExecutiveSummary) == "" {
		return errors.New("executive_summary missing")
	}
	return nil
}

// Synthesize 趋势为空时返回固定的兜底内容，不调用 LLM
func (s *Synthesizer) Synthesize(ctx context.Context, in SynthesisInput) (*SynthesisOutput, error) {
	if len(in.Trends) == 0 {
		logger.Log.Info("没有可用趋势，使用兜底综合结论")
		return Fallback(in.ScrapedPosts, in.RelevantPosts), nil
	}

	priorities := Prioritize(in.Trends, s.topPriorities)
	prompt := fmt.Sprintf(synthesisPrompt, in.ScrapedPosts, in.RelevantPosts, renderPriorities(priorities), renderTrends(in.Trends))

	var payload synthesisPayload
	if err := s.llm.GenerateJSON(ctx, synthesisSystem, prompt, &payload); err != nil {
		return nil, &AgentError{Agent: "synthesis", Err: err}
	}

	idx := newTrendIndex(in.Trends)
	out := &SynthesisOutput{
		PriorityTrends:      annotatePriorities(priorities, payload.PriorityTrends, idx),
		MarketOpportunities: []model.MarketOpportunity{},
		RiskFactors:         []model.RiskFactor{},
		Summary:             strings.TrimSpace(payload.TrendSummary),
		Results: model.SynthesisResults{
			ExecutiveSummary:          strings.TrimSpace(payload.ExecutiveSummary),
			KeyInsights:               nonNil(payload.KeyInsights),
			ActionableRecommendations: nonNil(payload.ActionableRecommendations),
			MarketOutlook:             strings.TrimSpace(payload.MarketOutlook),
		},
	}
	if out.Summary == "" {
		out.Summary = fmt.Sprintf("%d trends identified from %d relevant posts.", len(in.Trends), in.RelevantPosts)
	}

	for _, o := range payload.MarketOpportunities {
		id, ok := idx.resolve(o.TrendID, o.Title)
		if !ok {
			logger.Log.Warnf("丢弃无法关联趋势的市场机会: %s", o.Title)
			continue
		}
		out.MarketOpportunities = append(out.MarketOpportunities, model.MarketOpportunity{
			TrendID:        id,
			Title:          o.Title,
			Description:    o.Description,
			PotentialValue: o.PotentialValue,
			TimeHorizon:    o.TimeHorizon,
			Impact:         model.ParseImpact(o.Impact),
			ActionItems:    nonNil(o.ActionItems),
		})
	}
	for _, r := range payload.RiskFactors {
		id, ok := idx.resolve(r.TrendID, r.Title)
		if !ok {
			logger.Log.Warnf("丢弃无法关联趋势的风险因素: %s", r.Title)
			continue
		}
		out.RiskFactors = append(out.RiskFactors, model.RiskFactor{
			TrendID:              id,
			Title:                r.Title,
			Description:          r.Description,
			Severity:             model.ParseImpact(r.Severity),
			MitigationStrategies: nonNil(r.MitigationStrategies),
		})
	}
	return out, nil
}

// Prioritize 影响高者优先，其次上市时间更近者；相同时保持抽取顺序
func Prioritize(trends []model.Trend, top int) []model.PriorityTrend {
	order := make([]int, len(trends))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ta, tb := trends[order[a]], trends[order[b]]
		if wa, wb := ta.BusinessImpact.Weight(), tb.BusinessImpact.Weight(); wa != wb {
			return wa > wb
		}
		return ta.TimeToMarket.Urgency() > tb.TimeToMarket.Urgency()
	})
	if top > 0 && len(order) > top {
		order = order[:top]
	}

	out := make([]model.PriorityTrend, 0, len(order))
	for rank, i := range order {
		t := trends[i]
		out = append(out, model.PriorityTrend{
			Rank:           rank + 1,
			TrendID:        t.ID,
			Title:          t.Title,
			Rationale:      fmt.Sprintf("%s business impact with %s time to market.", t.BusinessImpact, t.TimeToMarket),
			BusinessImpact: t.BusinessImpact,
			TimeToMarket:   t.TimeToMarket,
			ActionItems:    []string{},
		})
	}
	return out
}

// Fallback 没有趋势时的固定综合结论
func Fallback(scraped, relevant int) *SynthesisOutput {
	return &SynthesisOutput{
		PriorityTrends:      []model.PriorityTrend{},
		MarketOpportunities: []model.MarketOpportunity{},
		RiskFactors:         []model.RiskFactor{},
		Summary:             "No trends identified.",
		Results: model.SynthesisResults{
			ExecutiveSummary: fmt.Sprintf(
				"No significant K-beauty trends were identified today. %d posts were collected and %d passed the relevance filter.",
				scraped, relevant),
			KeyInsights: []string{"No trend signals met the relevance threshold in this period."},
			ActionableRecommendations: []string{
				"Review source coverage and relevance keywords.",
				"Check again after the next scheduled run.",
			},
			MarketOutlook: "Insufficient data to assess the market outlook.",
		},
		Fallback: true,
	}
}

func annotatePriorities(priorities []model.PriorityTrend, items []priorityItem, idx *trendIndex) []model.PriorityTrend {
	byID := make(map[string]priorityItem, len(items))
	for _, it := range items {
		if id, ok := idx.resolve(it.TrendID, it.Title); ok {
			if _, dup := byID[id]; !dup {
				byID[id] = it
			}
		}
	}
	for i := range priorities {
		it, ok := byID[priorities[i].TrendID]
		if !ok {
			continue
		}
		if r := strings.TrimSpace(it.Rationale); r != "" {
			priorities[i].Rationale = r
		} else if r := strings.TrimSpace(it.Reasoning); r != "" {
			priorities[i].Rationale = r
		}
		priorities[i].ActionItems = nonNil(it.ActionItems)
	}
	return priorities
}

type trendIndex struct {
	ids    map[string]bool
	titles map[string]string
}

func newTrendIndex(trends []model.Trend) *trendIndex {
	idx := &trendIndex{ids: map[string]bool{}, titles: map[string]string{}}
	for _, t := range trends {
		idx.ids[t.ID] = true
		idx.titles[normalizeTitle(t.Title)] = t.ID
	}
	return idx
}

// resolve 先按 id 匹配，再按标题匹配
func (x *trendIndex) resolve(id, title string) (string, bool) {
	id = strings.TrimSpace(id)
	if x.ids[id] {
		return id, true
	}
	for _, candidate := range []string{id, title} {
		if tid, ok := x.titles[normalizeTitle(candidate)]; ok && candidate != "" {
			return tid, true
		}
	}
	return "", false
}

func renderPriorities(ps []model.PriorityTrend) string {
	var sb strings.Builder
	for _, p := range ps {
		fmt.Fprintf(&sb, "%d. [%s] %s (impact: %s, time to market: %s)\n", p.Rank, p.TrendID, p.Title, p.BusinessImpact, p.TimeToMarket)
	}
	return sb.String()
}

func renderTrends(trends []model.Trend) string {
	var sb strings.Builder
	for _, t := range trends {
		fmt.Fprintf(&sb, "Trend %s: %s\nDescription: %s\nCategory: %s\nBusiness Impact: %s\nTime to Market: %s\nKeywords: %s\nSources: %s\n---\n",
			t.ID, t.Title, t.Description, t.Category, t.BusinessImpact, t.TimeToMarket,
			strings.Join(t.Keywords, ", "), strings.Join(t.Sources, ", "))
	}
	return sb.String()
}

func nonNil(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
