package model

import "strings"

// ParseCategory 解析 LLM 返回的分类，无法识别时回退到 market_trend
func ParseCategory(s string) TrendCategory {
	switch TrendCategory(normalizeEnum(s)) {
	case CategoryIngredient, "ingredients":
		return CategoryIngredient
	case CategoryProductType, "product", "products":
		return CategoryProductType
	case CategoryConsumerBehavior, "consumer", "behavior":
		return CategoryConsumerBehavior
	case CategoryTechnology, "tech":
		return CategoryTechnology
	default:
		return CategoryMarketTrend
	}
}

// ParseImpact 无法识别时回退到 low；critical 视为 high
func ParseImpact(s string) BusinessImpact {
	switch BusinessImpact(normalizeEnum(s)) {
	case ImpactHigh, "critical":
		return ImpactHigh
	case ImpactMedium:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// ParseTimeToMarket 无法识别时回退到 medium_term
func ParseTimeToMarket(s string) TimeToMarket {
	switch TimeToMarket(normalizeEnum(s)) {
	case TimeImmediate, "now":
		return TimeImmediate
	case TimeShortTerm:
		return TimeShortTerm
	case TimeLongTerm:
		return TimeLongTerm
	default:
		return TimeMediumTerm
	}
}

// Weight high=3 > medium=2 > low=1
func (i BusinessImpact) Weight() int {
	switch i {
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	case ImpactLow:
		return 1
	default:
		return 0
	}
}

// Urgency immediate=4 > short_term=3 > medium_term=2 > long_term=1
func (t TimeToMarket) Urgency() int {
	switch t {
	case TimeImmediate:
		return 4
	case TimeShortTerm:
		return 3
	case TimeMediumTerm:
		return 2
	case TimeLongTerm:
		return 1
	default:
		return 0
	}
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
