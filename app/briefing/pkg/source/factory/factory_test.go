package factory

import (
	"testing"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/config"
)

func TestNewRegistry(t *testing.T) {
	cfg := config.Default()
	reg := NewRegistry(cfg)

	for _, s := range []string{"html", "rss"} {
		if _, err := reg.Resolve(s); err != nil {
			t.Fatalf("Resolve(%s) error = %v", s, err)
		}
	}
	if _, err := reg.Resolve("tavily"); err == nil {
		t.Fatalf("tavily should not be registered without api key")
	}

	cfg.Search.Tavily.APIKey = "k"
	cfg.Search.SearXNG.BaseURL = "http://searx.local"
	reg = NewRegistry(cfg)
	for _, s := range []string{"tavily", "searxng"} {
		if _, err := reg.Resolve(s); err != nil {
			t.Fatalf("Resolve(%s) error = %v", s, err)
		}
	}
}

func TestDescriptorsSkipDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Sources = []config.SourceConfig{
		{Name: "a", Strategy: "rss", Timeout: config.Duration(5 * time.Second)},
		{Name: "b", Strategy: "rss", Disabled: true},
	}

	descs := Descriptors(cfg)
	if len(descs) != 1 || descs[0].Name != "a" || descs[0].Timeout != 5*time.Second {
		t.Fatalf("descs = %+v", descs)
	}
}
