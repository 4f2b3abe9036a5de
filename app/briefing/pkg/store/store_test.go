package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/config"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/render"
)

func newBriefing(sec int, summary string) *model.DailyBriefing {
	ts := time.Date(2025, 3, 5, 0, 0, sec, 0, time.UTC)
	return &model.DailyBriefing{
		BriefingID: "briefing_" + ts.Format("20060102_150405"),
		Date:       ts,
		TrendAnalysis: model.TrendAnalysis{
			Trends: []model.Trend{{ID: "trend_001", Title: "Snail mucin", Keywords: []string{"snail"}}},
		},
		SynthesisResults: model.SynthesisResults{ExecutiveSummary: summary},
	}
}

func TestMemoryEmpty(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	if _, err := m.Latest(ctx); !errors.Is(err, ErrNoData) {
		t.Fatalf("Latest() err = %v, want ErrNoData", err)
	}
	if _, err := m.Get(ctx, "briefing_x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() err = %v, want ErrNotFound", err)
	}
	items, err := m.List(ctx)
	if err != nil || len(items) != 0 {
		t.Fatalf("List() = %v, %v", items, err)
	}
}

func TestMemoryPutAndRead(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	first, second := newBriefing(1, "first"), newBriefing(2, "second")

	for _, b := range []*model.DailyBriefing{first, second} {
		if err := m.Put(ctx, b); err != nil {
			t.Fatalf("Put(%s) error = %v", b.BriefingID, err)
		}
	}

	latest, err := m.Latest(ctx)
	if err != nil || latest.BriefingID != second.BriefingID {
		t.Fatalf("Latest() = %v, %v", latest, err)
	}
	got, err := m.Get(ctx, first.BriefingID)
	if err != nil || got.SynthesisResults.ExecutiveSummary != "first" {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	items, _ := m.List(ctx)
	if len(items) != 2 || items[0].BriefingID != second.BriefingID || items[1].TrendsCount != 1 {
		t.Fatalf("List() = %+v, want newest first", items)
	}
}

func TestMemoryRejectsNonIncreasing(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	if err := m.Put(ctx, newBriefing(5, "a")); err != nil {
		t.Fatal(err)
	}
	for _, sec := range []int{5, 4} {
		if err := m.Put(ctx, newBriefing(sec, "b")); !errors.Is(err, ErrNotIncreasing) {
			t.Fatalf("Put(%d) err = %v, want ErrNotIncreasing", sec, err)
		}
	}
	var pe *PersistenceError
	if err := m.Put(ctx, &model.DailyBriefing{}); !errors.As(err, &pe) {
		t.Fatalf("empty id err = %v, want PersistenceError", err)
	}
}

func TestMemorySnapshotsAreImmutable(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	b := newBriefing(1, "summary")
	if err := m.Put(ctx, b); err != nil {
		t.Fatal(err)
	}

	b.TrendAnalysis.Trends[0].Title = "mutated after put"
	got, _ := m.Latest(ctx)
	got.TrendAnalysis.Trends[0].Keywords[0] = "mutated by reader"

	again, _ := m.Latest(ctx)
	if again.TrendAnalysis.Trends[0].Title != "Snail mucin" || again.TrendAnalysis.Trends[0].Keywords[0] != "snail" {
		t.Fatalf("stored briefing was mutated: %+v", again.TrendAnalysis.Trends[0])
	}
}

func TestMemoryConcurrentReadsDuringPut(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	if err := m.Put(ctx, newBriefing(0, "seed")); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b, err := m.Latest(ctx)
				if err != nil || b.SynthesisResults.ExecutiveSummary == "" {
					t.Errorf("partial read: %v %v", b, err)
					return
				}
			}
		}()
	}
	for i := 1; i <= 50; i++ {
		if err := m.Put(ctx, newBriefing(i, fmt.Sprintf("run %d", i))); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
}

func TestListTruncatesSummary(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()
	if err := m.Put(ctx, newBriefing(1, "한국 화장품 트렌드가 빠르게 변하고 있다")); err != nil {
		t.Fatal(err)
	}
	items, _ := m.List(ctx)
	if !strings.HasSuffix(items[0].ExecutiveSummary, "...") {
		t.Fatalf("summary not truncated: %q", items[0].ExecutiveSummary)
	}
	full, _ := m.Latest(ctx)
	if strings.HasSuffix(full.SynthesisResults.ExecutiveSummary, "...") {
		t.Fatalf("stored summary must stay intact")
	}
}

func TestFileStorePersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fs, err := NewFile(dir, 0)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	b := newBriefing(1, "persisted")
	if err := fs.Put(ctx, b); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	for _, ext := range []string{".json", ".md"} {
		if _, err := os.Stat(filepath.Join(dir, b.BriefingID+ext)); err != nil {
			t.Fatalf("artifact %s missing: %v", ext, err)
		}
	}

	md, err := fs.Artifact(ctx, b.BriefingID, render.FormatMarkdown)
	if err != nil {
		t.Fatalf("Artifact() error = %v", err)
	}
	h, err := render.ParseMarkdownHeader(md)
	if err != nil || h.BriefingID != b.BriefingID {
		t.Fatalf("markdown header = %+v, %v", h, err)
	}

	// 非 JSON 与损坏文件在重建索引时被跳过
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644)

	reopened, err := NewFile(dir, 0)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	latest, err := reopened.Latest(ctx)
	if err != nil || latest.BriefingID != b.BriefingID {
		t.Fatalf("Latest() after reopen = %v, %v", latest, err)
	}
	if err := reopened.Put(ctx, b); !errors.Is(err, ErrNotIncreasing) {
		t.Fatalf("re-put err = %v, want ErrNotIncreasing", err)
	}
}

func TestFileArtifactUnknownID(t *testing.T) {
	fs, err := NewFile(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Artifact(context.Background(), "../etc/passwd", render.FormatJSON); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreWriteFailureKeepsLatest(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	fs, err := NewFile(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Put(ctx, newBriefing(1, "ok")); err != nil {
		t.Fatal(err)
	}

	// 目录被移除后写入失败
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	var pe *PersistenceError
	if err := fs.Put(ctx, newBriefing(2, "lost")); !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	latest, _ := fs.Latest(ctx)
	if latest.SynthesisResults.ExecutiveSummary != "ok" {
		t.Fatalf("latest changed after failed write: %s", latest.BriefingID)
	}
}

func TestFileStorePartialWriteNotReloaded(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	fs, err := NewFile(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Put(ctx, newBriefing(1, "ok")); err != nil {
		t.Fatal(err)
	}

	// Markdown 与 JSON 任一落盘失败，重启后都不能成为 latest
	for _, ext := range []string{".md", ".json"} {
		b := newBriefing(2, "lost")
		blocker := filepath.Join(dir, b.BriefingID+ext)
		if err := os.Mkdir(blocker, 0o755); err != nil {
			t.Fatal(err)
		}
		var pe *PersistenceError
		if err := fs.Put(ctx, b); !errors.As(err, &pe) {
			t.Fatalf("Put() with %s blocked err = %v, want PersistenceError", ext, err)
		}
		if err := os.Remove(blocker); err != nil {
			t.Fatal(err)
		}
		for _, leftover := range []string{".md", ".json"} {
			if _, err := os.Stat(filepath.Join(dir, b.BriefingID+leftover)); !os.IsNotExist(err) {
				t.Fatalf("%s left behind after failed %s write: %v", leftover, ext, err)
			}
		}

		reloaded, err := NewFile(dir, 0)
		if err != nil {
			t.Fatal(err)
		}
		latest, err := reloaded.Latest(ctx)
		if err != nil || latest.SynthesisResults.ExecutiveSummary != "ok" {
			t.Fatalf("reloaded latest after failed %s write = %v, %v", ext, latest, err)
		}
		if items, _ := reloaded.List(ctx); len(items) != 1 {
			t.Fatalf("reloaded list = %+v", items)
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	cfg.Output.Store = "memory"
	st, cleanup, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	cleanup()
	if _, ok := st.(*Memory); !ok {
		t.Fatalf("store = %T", st)
	}

	cfg.Output.Store = "file"
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	st, _, err = Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open(file) error = %v", err)
	}
	if _, ok := st.(Artifacts); !ok {
		t.Fatalf("file store should serve artifacts")
	}

	cfg.Output.Store = "s3"
	if _, _, err := Open(ctx, cfg); err == nil {
		t.Fatalf("expected error for unknown store")
	}
}
