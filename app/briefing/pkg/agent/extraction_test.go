package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/llm"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/llm/llmtest"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

func newClient(m *llmtest.Model) *llm.Client {
	return llm.NewClient(m, llm.Options{MaxRetries: 1, BaseDelay: time.Millisecond})
}

func userContent(input []*schema.Message) string {
	for _, m := range input {
		if m.Role == schema.User {
			return m.Content
		}
	}
	return ""
}

var samplePosts = []model.ScrapedPost{
	{ID: "p1", Title: "Snail mucin is back", Body: "Snail mucin essence sold out again.", SourceName: "naver"},
	{ID: "p2", Title: "Glass skin toner", Body: "Glass skin routines use layered toners.", SourceName: "youtube"},
	{ID: "p3", Title: "Snail essence restock", Body: "Another snail essence restock.", SourceName: "blogs"},
}

func TestExtractBatchesAndDedups(t *testing.T) {
	fake := &llmtest.Model{Handler: func(_ context.Context, input []*schema.Message) (string, error) {
		content := userContent(input)
		if strings.Contains(content, "Post p3") {
			return `{"trends":[{"title":"Snail Mucin Essence!","category":"ingredient","business_impact":"HIGH",
				"time_to_market":"immediate","keywords":["snail","restock"],"source_post_ids":["p3"]}]}`, nil
		}
		return "```json\n" + `{"trends":[
			{"title":"Snail mucin essence","description":"Snail mucin keeps selling out.","category":"ingredient",
			 "business_impact":"high","time_to_market":"immediate","keywords":["snail","mucin"],"source_post_ids":["p1"]},
			{"trend_name":"Glass skin layering","category":"weird","business_impact":"unknown",
			 "time_to_market":"short-term","keywords":["toner"],"source_post_ids":["p2","nope"]}
		]}` + "\n```", nil
	}}

	ex := NewExtractor(newClient(fake), ExtractionOptions{BatchSize: 2, DedupThreshold: 0.8, KeywordOverlap: 0.6})
	res, err := ex.Extract(context.Background(), samplePosts)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Batches != 2 || res.FailedBatches != 0 || res.Exhausted {
		t.Fatalf("batches = %d failed = %d exhausted = %v", res.Batches, res.FailedBatches, res.Exhausted)
	}
	if len(res.Trends) != 2 {
		t.Fatalf("trends = %+v, want 2 after dedup", res.Trends)
	}

	snail := res.Trends[0]
	if snail.ID != "trend_001" || snail.Title != "Snail mucin essence" {
		t.Fatalf("first trend = %+v", snail)
	}
	if got := strings.Join(snail.Sources, ","); got != "blogs,naver" {
		t.Fatalf("sources = %s", got)
	}
	if got := strings.Join(snail.Keywords, ","); got != "snail,mucin,restock" {
		t.Fatalf("keywords = %s", got)
	}

	glass := res.Trends[1]
	if glass.ID != "trend_002" || glass.Title != "Glass skin layering" {
		t.Fatalf("second trend = %+v", glass)
	}
	if glass.Category != model.CategoryMarketTrend || glass.BusinessImpact != model.ImpactLow || glass.TimeToMarket != model.TimeShortTerm {
		t.Fatalf("enum normalisation = %+v", glass)
	}
	if len(glass.Sources) != 1 || glass.Sources[0] != "youtube" {
		t.Fatalf("sources = %v", glass.Sources)
	}
}

func TestExtractSkipsFailedBatch(t *testing.T) {
	fake := &llmtest.Model{Handler: func(_ context.Context, input []*schema.Message) (string, error) {
		if strings.Contains(userContent(input), "Post p3") {
			return "", errors.New("429 too many requests")
		}
		return `{"trends":[{"title":"Glass skin","keywords":[]}]}`, nil
	}}

	ex := NewExtractor(newClient(fake), ExtractionOptions{BatchSize: 2})
	res, err := ex.Extract(context.Background(), samplePosts)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.FailedBatches != 1 || res.Exhausted {
		t.Fatalf("failed = %d exhausted = %v", res.FailedBatches, res.Exhausted)
	}
	if len(res.Trends) != 1 {
		t.Fatalf("trends = %+v", res.Trends)
	}
	for _, s := range res.Trends[0].Sources {
		if s == "blogs" {
			t.Fatalf("failed batch posts must not be attributed")
		}
	}
	// batch one once, batch two retried once
	if fake.Calls() != 3 {
		t.Fatalf("calls = %d, want 3", fake.Calls())
	}
}

func TestExtractAllBatchesFail(t *testing.T) {
	fake := &llmtest.Model{Handler: func(context.Context, []*schema.Message) (string, error) {
		return "", errors.New("503 overloaded")
	}}

	res, err := NewExtractor(newClient(fake), ExtractionOptions{BatchSize: 10}).Extract(context.Background(), samplePosts)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !res.Exhausted || len(res.Trends) != 0 || res.Trends == nil {
		t.Fatalf("res = %+v", res)
	}
}

func TestExtractDeadlineKeepsPartialTrends(t *testing.T) {
	fake := &llmtest.Model{Handler: func(ctx context.Context, input []*schema.Message) (string, error) {
		if strings.Contains(userContent(input), "Post p3") {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return `{"trends":[{"title":"Glass skin","keywords":["toner"]}]}`, nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := NewExtractor(newClient(fake), ExtractionOptions{BatchSize: 2}).Extract(ctx, samplePosts)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Extract() error = %v, want deadline exceeded", err)
	}
	if res == nil {
		t.Fatalf("partial result missing")
	}
	if res.Batches != 2 || res.FailedBatches != 1 || res.Exhausted {
		t.Fatalf("batches = %d failed = %d exhausted = %v", res.Batches, res.FailedBatches, res.Exhausted)
	}
	if len(res.Trends) != 1 || res.Trends[0].ID != "trend_001" {
		t.Fatalf("trends = %+v", res.Trends)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	fake := &llmtest.Model{}
	res, err := NewExtractor(newClient(fake), ExtractionOptions{}).Extract(context.Background(), nil)
	if err != nil || len(res.Trends) != 0 || res.Exhausted {
		t.Fatalf("res = %+v err = %v", res, err)
	}
	if fake.Calls() != 0 {
		t.Fatalf("llm must not be called for empty input")
	}
}

func TestExtractCharBudget(t *testing.T) {
	ex := NewExtractor(nil, ExtractionOptions{BatchSize: 10, MaxBatchChars: 60, MaxPostChars: 1000})
	batches := ex.batch(samplePosts)
	if len(batches) < 2 {
		t.Fatalf("batches = %d, want char budget split", len(batches))
	}
	total := 0
	for _, b := range batches {
		if len(b) == 0 {
			t.Fatalf("empty batch")
		}
		total += len(b)
	}
	if total != len(samplePosts) {
		t.Fatalf("posts lost in batching: %d", total)
	}
}

func TestDedupKeywordOverlap(t *testing.T) {
	trends := []model.Trend{
		{Title: "Barrier repair creams", Keywords: []string{"ceramide", "barrier", "cream"}},
		{Title: "Ceramide boom", Keywords: []string{"Ceramide", "barrier", "cream", "repair"}},
		{Title: "Tone-up sunscreen", Keywords: []string{"ceramide"}},
	}
	got := Dedup(trends, 0.8, 0.6)
	if len(got) != 2 {
		t.Fatalf("dedup = %+v", got)
	}
	if len(got[0].Keywords) != 4 {
		t.Fatalf("keywords not merged: %v", got[0].Keywords)
	}
}
