package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

type mapClassifier map[string]Verdict

func (m mapClassifier) Classify(_ context.Context, p model.ScrapedPost) (Verdict, error) {
	if p.ID == "err" {
		return Unsure, errors.New("llm down")
	}
	return m[p.ID], nil
}

func post(id, title, body string) model.ScrapedPost {
	return model.ScrapedPost{ID: id, Title: title, Body: body}
}

func TestApply(t *testing.T) {
	t.Parallel()

	posts := []model.ScrapedPost{
		post("kw", "New Korean serum launch", "A peptide serum from Seoul."),
		post("tie", "Beauty sale at the mall", "Huge discount event this weekend."),
		post("excluded", "Car sale", "Discount on used cars this weekend only."),
		post("none", "Football results", "The home team won three to one."),
		post("short", "serum", ""),
	}
	f := New(Options{
		Keywords:     []string{"Serum", "korean", "beauty", "serum"},
		Exclude:      []string{"discount"},
		MinBodyChars: 10,
	})

	res, err := f.Apply(context.Background(), posts)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got := ids(res.Kept)
	want := []string{"kw", "tie"}
	if !equal(got, want) {
		t.Fatalf("kept = %v, want %v", got, want)
	}
	if res.Discarded != 3 {
		t.Fatalf("discarded = %d, want 3", res.Discarded)
	}
}

func TestApplyWithClassifier(t *testing.T) {
	t.Parallel()

	posts := []model.ScrapedPost{
		post("yes", "Glow routine", "Layering essences for a dewy finish."),
		post("no", "Weather", "Rain expected across the region tomorrow."),
		post("unsure", "Mystery", "Something happened somewhere today."),
		post("err", "Unknown", "Classifier will fail on this one."),
	}
	f := New(Options{
		Keywords:   []string{"kbeauty"},
		Classifier: mapClassifier{"yes": Relevant, "no": Irrelevant, "unsure": Unsure},
	})

	res, err := f.Apply(context.Background(), posts)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got, want := ids(res.Kept), []string{"yes", "unsure", "err"}; !equal(got, want) {
		t.Fatalf("kept = %v, want %v", got, want)
	}
}

func TestApplyDeterministic(t *testing.T) {
	t.Parallel()

	posts := []model.ScrapedPost{
		post("a", "Cushion foundation", "korean cushion"),
		post("b", "Other", "nothing"),
		post("c", "Toner pads", "toner pad trend"),
	}
	f := New(Options{Keywords: []string{"korean", "toner"}})
	first, _ := f.Apply(context.Background(), posts)
	second, _ := f.Apply(context.Background(), posts)
	if !equal(ids(first.Kept), ids(second.Kept)) || first.Discarded != second.Discarded {
		t.Fatalf("non deterministic: %v vs %v", ids(first.Kept), ids(second.Kept))
	}
}

func TestApplyCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(Options{}).Apply(ctx, []model.ScrapedPost{post("a", "b", "c")}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func ids(posts []model.ScrapedPost) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
