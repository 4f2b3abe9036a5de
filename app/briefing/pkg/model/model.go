package model

import "time"

// ScrapedPost 单次运行中采集到的原始内容，不持久化
type ScrapedPost struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	SourceName  string    `json:"source_name"`
	URL         string    `json:"url,omitempty"`
}

// TrendCategory 趋势分类
type TrendCategory string

const (
	CategoryIngredient       TrendCategory = "ingredient"
	CategoryProductType      TrendCategory = "product_type"
	CategoryConsumerBehavior TrendCategory = "consumer_behavior"
	CategoryMarketTrend      TrendCategory = "market_trend"
	CategoryTechnology       TrendCategory = "technology"
)

// BusinessImpact 商业影响等级
type BusinessImpact string

const (
	ImpactHigh   BusinessImpact = "high"
	ImpactMedium BusinessImpact = "medium"
	ImpactLow    BusinessImpact = "low"
)

// TimeToMarket 上市时间窗口
type TimeToMarket string

const (
	TimeImmediate  TimeToMarket = "immediate"
	TimeShortTerm  TimeToMarket = "short_term"
	TimeMediumTerm TimeToMarket = "medium_term"
	TimeLongTerm   TimeToMarket = "long_term"
)

// Trend 由抽取 Agent 生成，之后不再修改
type Trend struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Category       TrendCategory  `json:"category"`
	BusinessImpact BusinessImpact `json:"business_impact"`
	TimeToMarket   TimeToMarket   `json:"time_to_market"`
	Sources        []string       `json:"sources"`
	Keywords       []string       `json:"keywords"`
}

// PriorityTrend 优先级趋势，按影响与时间窗口排序
type PriorityTrend struct {
	Rank           int            `json:"rank"`
	TrendID        string         `json:"trend_id"`
	Title          string         `json:"title"`
	Rationale      string         `json:"rationale"`
	BusinessImpact BusinessImpact `json:"business_impact"`
	TimeToMarket   TimeToMarket   `json:"time_to_market"`
	ActionItems    []string       `json:"action_items"`
}

// MarketOpportunity 市场机会
type MarketOpportunity struct {
	TrendID        string         `json:"trend_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	PotentialValue string         `json:"potential_value"`
	TimeHorizon    string         `json:"time_horizon"`
	Impact         BusinessImpact `json:"impact"`
	ActionItems    []string       `json:"action_items"`
}

// RiskFactor 风险因素
type RiskFactor struct {
	TrendID              string         `json:"trend_id"`
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	Severity             BusinessImpact `json:"severity"`
	MitigationStrategies []string       `json:"mitigation_strategies"`
}

// TrendAnalysis 每次运行一份
type TrendAnalysis struct {
	Trends              []Trend             `json:"trends"`
	PriorityTrends      []PriorityTrend     `json:"priority_trends"`
	MarketOpportunities []MarketOpportunity `json:"market_opportunities"`
	RiskFactors         []RiskFactor        `json:"risk_factors"`
	Summary             string              `json:"summary"`
}

// SynthesisResults 综合结论
type SynthesisResults struct {
	ExecutiveSummary          string   `json:"executive_summary"`
	KeyInsights               []string `json:"key_insights"`
	ActionableRecommendations []string `json:"actionable_recommendations"`
	MarketOutlook             string   `json:"market_outlook"`
}

// DailyBriefing 聚合根，持久化后不可变
type DailyBriefing struct {
	BriefingID        string           `json:"briefing_id"`
	Date              time.Time        `json:"date"`
	ScrapedPostsCount int              `json:"scraped_posts_count"`
	TrendAnalysis     TrendAnalysis    `json:"trend_analysis"`
	SynthesisResults  SynthesisResults `json:"synthesis_results"`
}

// BriefingListItem 列表投影
type BriefingListItem struct {
	BriefingID       string    `json:"briefing_id"`
	Date             time.Time `json:"date"`
	ExecutiveSummary string    `json:"executive_summary"`
	TrendsCount      int       `json:"trends_count"`
}

// Clone 深拷贝，存储层借此保证快照不被调用方修改
func (b *DailyBriefing) Clone() *DailyBriefing {
	if b == nil {
		return nil
	}
	out := *b
	out.TrendAnalysis = b.TrendAnalysis.clone()
	out.SynthesisResults = SynthesisResults{
		ExecutiveSummary:          b.SynthesisResults.ExecutiveSummary,
		KeyInsights:               cloneStrings(b.SynthesisResults.KeyInsights),
		ActionableRecommendations: cloneStrings(b.SynthesisResults.ActionableRecommendations),
		MarketOutlook:             b.SynthesisResults.MarketOutlook,
	}
	return &out
}

func (a TrendAnalysis) clone() TrendAnalysis {
	out := TrendAnalysis{Summary: a.Summary}
	out.Trends = make([]Trend, len(a.Trends))
	for i, t := range a.Trends {
		t.Sources = cloneStrings(t.Sources)
		t.Keywords = cloneStrings(t.Keywords)
		out.Trends[i] = t
	}
	out.PriorityTrends = make([]PriorityTrend, len(a.PriorityTrends))
	for i, p := range a.PriorityTrends {
		p.ActionItems = cloneStrings(p.ActionItems)
		out.PriorityTrends[i] = p
	}
	out.MarketOpportunities = make([]MarketOpportunity, len(a.MarketOpportunities))
	for i, m := range a.MarketOpportunities {
		m.ActionItems = cloneStrings(m.ActionItems)
		out.MarketOpportunities[i] = m
	}
	out.RiskFactors = make([]RiskFactor, len(a.RiskFactors))
	for i, r := range a.RiskFactors {
		r.MitigationStrategies = cloneStrings(r.MitigationStrategies)
		out.RiskFactors[i] = r
	}
	return out
}

// ListItem 生成列表投影，摘要截断由调用方决定
func (b *DailyBriefing) ListItem(summary string) BriefingListItem {
	return BriefingListItem{
		BriefingID:       b.BriefingID,
		Date:             b.Date,
		ExecutiveSummary: summary,
		TrendsCount:      len(b.TrendAnalysis.Trends),
	}
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
