package filter

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

// Verdict 分类结果
type Verdict int

const (
	Unsure Verdict = iota
	Relevant
	Irrelevant
)

// Classifier 对没有关键词证据的内容做二次判断
type Classifier interface {
	Classify(ctx context.Context, post model.ScrapedPost) (Verdict, error)
}

// Options 过滤参数
type Options struct {
	Keywords     []string
	Exclude      []string
	MinBodyChars int
	Classifier   Classifier
}

// Result 过滤结果
type Result struct {
	Kept      []model.ScrapedPost
	Discarded int
}

// Filter 关键词 + 可选分类器的相关性过滤
type Filter struct {
	keywords   []string
	exclude    []string
	minChars   int
	classifier Classifier
}

// New 关键词统一转小写
func New(opts Options) *Filter {
	return &Filter{
		keywords:   lowerAll(opts.Keywords),
		exclude:    lowerAll(opts.Exclude),
		minChars:   opts.MinBodyChars,
		classifier: opts.Classifier,
	}
}

// Apply 保留相关内容，原有顺序不变；只在 ctx 取消时返回错误
func (f *Filter) Apply(ctx context.Context, posts []model.ScrapedPost) (*Result, error) {
	res := &Result{Kept: make([]model.ScrapedPost, 0, len(posts))}
	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.keep(ctx, p) {
			res.Kept = append(res.Kept, p)
		} else {
			res.Discarded++
		}
	}
	return res, nil
}

func (f *Filter) keep(ctx context.Context, p model.ScrapedPost) bool {
	text := strings.ToLower(p.Title + " " + p.Body)
	if utf8.RuneCountInString(strings.TrimSpace(text)) < f.minChars {
		return false
	}

	hits := countHits(text, f.keywords)
	blocks := countHits(text, f.exclude)
	switch {
	case hits > 0 && hits >= blocks:
		// 相等时保留，漏判比误判代价更高
		return true
	case blocks > 0:
		return false
	case f.classifier == nil:
		return false
	}

	verdict, err := f.classifier.Classify(ctx, p)
	if err != nil {
		logger.Log.WithField("post", p.ID).Warnf("相关性分类失败，按相关处理: %v", err)
		return true
	}
	return verdict != Irrelevant
}

func countHits(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if t != "" && strings.Contains(text, t) {
			n++
		}
	}
	return n
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
