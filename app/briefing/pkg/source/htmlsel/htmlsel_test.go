package htmlsel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source"
)

const boardHTML = `
<ul>
  <li class="bx">
    <a class="title_link" href="/post/1">  Centella   ampoule sells out </a>
    <div class="dsc">Shoppers queue for the new cica ampoule.</div>
    <span class="date">2025.03.04.</span>
    <span class="author">beautyblogger</span>
  </li>
  <li class="bx">
    <a class="title_link" href="https://other.example/p/2">Rice water toner review</a>
    <div class="dsc">Fermented rice toner is trending.</div>
    <span class="date">3 hours ago</span>
  </li>
  <li class="bx"><div class="dsc">no title here</div></li>
</ul>`

func newDescriptor(urls ...string) source.Descriptor {
	return source.Descriptor{
		Name:     "naver_beauty",
		Strategy: "html",
		URLs:     urls,
		Selectors: map[string]string{
			SelPosts:   "li.bx",
			SelTitle:   "a.title_link",
			SelContent: "div.dsc",
			SelDate:    "span.date",
			SelAuthor:  "span.author",
		},
	}
}

func TestFetchExtractsPosts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing user agent")
		}
		_, _ = w.Write([]byte(boardHTML))
	}))
	defer srv.Close()

	fixed := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	f := New(srv.Client())
	f.now = func() time.Time { return fixed }

	posts, err := f.Fetch(context.Background(), newDescriptor(srv.URL+"/board"))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("posts = %d, want 2", len(posts))
	}

	first := posts[0]
	if first.Title != "Centella ampoule sells out" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.URL != srv.URL+"/post/1" {
		t.Fatalf("url = %q", first.URL)
	}
	if first.Author != "beautyblogger" {
		t.Fatalf("author = %q", first.Author)
	}
	if !first.PublishedAt.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("published = %v", first.PublishedAt)
	}
	if !posts[1].PublishedAt.Equal(fixed) {
		t.Fatalf("unparsable date should fall back to fetch time, got %v", posts[1].PublishedAt)
	}
}

func TestFetchPartialURLFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			http.Error(w, "nope", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(boardHTML))
	}))
	defer srv.Close()

	d := newDescriptor(srv.URL+"/down", srv.URL+"/board")
	d.MaxPosts = 1
	posts, err := New(srv.Client()).Fetch(context.Background(), d)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1 (max_posts)", len(posts))
	}
}

func TestFetchAllURLsFail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := New(srv.Client()).Fetch(context.Background(), newDescriptor(srv.URL)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFetchSelectorsMatchNothing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/board" {
			_, _ = w.Write([]byte(boardHTML))
			return
		}
		_, _ = w.Write([]byte(`<div class="redesigned"><h2>New layout</h2></div>`))
	}))
	defer srv.Close()

	_, err := New(srv.Client()).Fetch(context.Background(), newDescriptor(srv.URL+"/redesigned"))
	if err == nil || !strings.Contains(err.Error(), "selectors matched nothing") {
		t.Fatalf("Fetch() error = %v, want selectors matched nothing", err)
	}

	// 其他页面仍有产出时只记录日志
	posts, err := New(srv.Client()).Fetch(context.Background(), newDescriptor(srv.URL+"/redesigned", srv.URL+"/board"))
	if err != nil || len(posts) != 2 {
		t.Fatalf("Fetch() = %d posts, %v", len(posts), err)
	}
}

func TestFetchRequiresSelectors(t *testing.T) {
	t.Parallel()

	d := newDescriptor("http://unused")
	delete(d.Selectors, SelTitle)
	if _, err := New(nil).Fetch(context.Background(), d); err == nil {
		t.Fatalf("expected selector error")
	}
}
