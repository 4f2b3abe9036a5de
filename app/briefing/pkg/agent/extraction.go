package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source/enrich"
)

// ExtractionOptions 批次与去重参数
type ExtractionOptions struct {
	BatchSize      int
	MaxBatchChars  int
	MaxPostChars   int
	DedupThreshold float64
	KeywordOverlap float64
}

// ExtractionResult 抽取结果；Exhausted 表示所有批次都失败
type ExtractionResult struct {
	Trends        []model.Trend
	Batches       int
	FailedBatches int
	Exhausted     bool
}

// Extractor 趋势抽取 Agent
type Extractor struct {
	llm  JSONGenerator
	opts ExtractionOptions
}

// NewExtractor 非法参数回退到默认值
func NewExtractor(gen JSONGenerator, opts ExtractionOptions) *Extractor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.MaxPostChars <= 0 {
		opts.MaxPostChars = 2000
	}
	if opts.DedupThreshold <= 0 {
		opts.DedupThreshold = 0.8
	}
	if opts.KeywordOverlap <= 0 {
		opts.KeywordOverlap = 0.6
	}
	return &Extractor{llm: gen, opts: opts}
}

type extractedTrend struct {
	Title          string   `json:"title"`
	TrendName      string   `json:"trend_name"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	BusinessImpact string   `json:"business_impact"`
	TimeToMarket   string   `json:"time_to_market"`
	Keywords       []string `json:"keywords"`
	SourcePostIDs  []string `json:"source_post_ids"`
}

type extractionPayload struct {
	Trends []extractedTrend `json:"trends"`
}

func (p *extractionPayload) Validate() error {
	if p.Trends == nil {
		return errors.New("trends field missing")
	}
	return nil
}

// Extract 按批次顺序调用 LLM；失败批次被跳过。
// ctx 结束时停止后续批次，未完成批次计为失败，返回已收集的部分结果及 ctx 错误
func (e *Extractor) Extract(ctx context.Context, posts []model.ScrapedPost) (*ExtractionResult, error) {
	res := &ExtractionResult{Trends: []model.Trend{}}
	if len(posts) == 0 {
		return res, nil
	}

	batches := e.batch(posts)
	res.Batches = len(batches)

	var candidates []model.Trend
	var ctxErr error
	for i, b := range batches {
		log := logger.Log.WithField("batch", fmt.Sprintf("%d/%d", i+1, len(batches)))

		var payload extractionPayload
		err := e.llm.GenerateJSON(ctx, extractionSystem, fmt.Sprintf(extractionPrompt, e.render(b)), &payload)
		if err != nil {
			if ctx.Err() != nil {
				ctxErr = ctx.Err()
				res.FailedBatches += len(batches) - i
				log.Warnf("抽取中断，剩余 %d 个批次未完成: %v", len(batches)-i, ctxErr)
				break
			}
			res.FailedBatches++
			log.Errorf("批次抽取失败，跳过 %d 条内容: %v", len(b), err)
			continue
		}

		trends := toTrends(payload.Trends, b)
		log.Infof("批次抽取到 %d 个趋势", len(trends))
		candidates = append(candidates, trends...)
	}

	res.Exhausted = res.FailedBatches == res.Batches
	merged := Dedup(candidates, e.opts.DedupThreshold, e.opts.KeywordOverlap)
	for i := range merged {
		merged[i].ID = fmt.Sprintf("trend_%03d", i+1)
	}
	res.Trends = merged
	return res, ctxErr
}

// batch 按条数与字符预算切分，每批至少一条
func (e *Extractor) batch(posts []model.ScrapedPost) [][]model.ScrapedPost {
	var batches [][]model.ScrapedPost
	var cur []model.ScrapedPost
	chars := 0
	for _, p := range posts {
		size := len([]rune(p.Title)) + min(len([]rune(p.Body)), e.opts.MaxPostChars)
		full := len(cur) >= e.opts.BatchSize ||
			(e.opts.MaxBatchChars > 0 && len(cur) > 0 && chars+size > e.opts.MaxBatchChars)
		if full {
			batches = append(batches, cur)
			cur, chars = nil, 0
		}
		cur = append(cur, p)
		chars += size
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

func (e *Extractor) render(posts []model.ScrapedPost) string {
	var sb strings.Builder
	for _, p := range posts {
		fmt.Fprintf(&sb, "Post %s:\nTitle: %s\nSource: %s\n", p.ID, p.Title, p.SourceName)
		if !p.PublishedAt.IsZero() {
			fmt.Fprintf(&sb, "Date: %s\n", p.PublishedAt.Format(time.DateOnly))
		}
		fmt.Fprintf(&sb, "Content: %s\n---\n", enrich.Truncate(p.Body, e.opts.MaxPostChars))
	}
	return sb.String()
}

func toTrends(items []extractedTrend, batch []model.ScrapedPost) []model.Trend {
	byID := make(map[string]string, len(batch))
	for _, p := range batch {
		byID[p.ID] = p.SourceName
	}

	trends := make([]model.Trend, 0, len(items))
	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			title = strings.TrimSpace(it.TrendName)
		}
		if title == "" {
			continue
		}

		var sources []string
		for _, id := range it.SourcePostIDs {
			if name, ok := byID[strings.TrimSpace(id)]; ok {
				sources = append(sources, name)
			}
		}
		if len(sources) == 0 {
			for _, p := range batch {
				sources = append(sources, p.SourceName)
			}
		}

		trends = append(trends, model.Trend{
			Title:          title,
			Description:    strings.TrimSpace(it.Description),
			Category:       model.ParseCategory(it.Category),
			BusinessImpact: model.ParseImpact(it.BusinessImpact),
			TimeToMarket:   model.ParseTimeToMarket(it.TimeToMarket),
			Sources:        sortedSet(sources),
			Keywords:       mergeKeywords(nil, it.Keywords),
		})
	}
	return trends
}

func sortedSet(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// mergeKeywords 保序追加，大小写不敏感去重
func mergeKeywords(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(base)+len(extra))
	for _, k := range append(append([]string{}, base...), extra...) {
		k = strings.TrimSpace(k)
		key := strings.ToLower(k)
		if k == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k)
	}
	return out
}
