package agent

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

// Dedup 合并描述同一现象的趋势，先抽取的保留，后者的来源与关键词并入
func Dedup(trends []model.Trend, titleThreshold, keywordOverlap float64) []model.Trend {
	out := make([]model.Trend, 0, len(trends))
	for _, t := range trends {
		merged := false
		for i := range out {
			if Similar(out[i], t, titleThreshold, keywordOverlap) {
				out[i].Sources = sortedSet(append(out[i].Sources, t.Sources...))
				out[i].Keywords = mergeKeywords(out[i].Keywords, t.Keywords)
				merged = true
				break
			}
		}
		if !merged {
			t.Sources = append([]string(nil), t.Sources...)
			t.Keywords = append([]string(nil), t.Keywords...)
			out = append(out, t)
		}
	}
	return out
}

// Similar 标题编辑距离相似度达到阈值，或关键词 Jaccard 达到阈值（双方至少两个关键词）
func Similar(a, b model.Trend, titleThreshold, keywordOverlap float64) bool {
	ta, tb := normalizeTitle(a.Title), normalizeTitle(b.Title)
	if ta != "" && tb != "" && levenshtein.Similarity(ta, tb, nil) >= titleThreshold {
		return true
	}
	if len(a.Keywords) < 2 || len(b.Keywords) < 2 {
		return false
	}
	return jaccard(a.Keywords, b.Keywords) >= keywordOverlap
}

func normalizeTitle(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func jaccard(a, b []string) float64 {
	set := make(map[string]bool, len(a))
	for _, k := range a {
		set[strings.ToLower(strings.TrimSpace(k))] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(b))
	for _, k := range b {
		k = strings.ToLower(strings.TrimSpace(k))
		if seen[k] {
			continue
		}
		seen[k] = true
		if set[k] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
