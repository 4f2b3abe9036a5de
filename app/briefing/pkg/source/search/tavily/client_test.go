package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source/search"
)

func TestSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tvly-key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Query != "korean skincare" || req.MaxResults != 5 || req.Topic != "general" {
			t.Errorf("req = %+v", req)
		}
		_, _ = w.Write([]byte(`{"query":"korean skincare","results":[{"title":"T","url":"https://t","content":"c","score":0.9,"published_date":"2025-03-03"}]}`))
	}))
	defer srv.Close()

	c := NewClient("tvly-key")
	c.endpoint = srv.URL
	c.client = srv.Client()

	resp, err := c.Search(context.Background(), &search.Request{Query: "korean skincare"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Score != 0.9 {
		t.Fatalf("results = %+v", resp.Results)
	}
}
