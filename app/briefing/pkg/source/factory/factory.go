package factory

import (
	"net/http"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/config"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source/enrich"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source/feed"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source/htmlsel"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source/search"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source/search/searxng"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source/search/tavily"
)

// NewRegistry 根据配置注册所有可用的采集策略
func NewRegistry(cfg *config.Config) *source.Registry {
	client := &http.Client{Timeout: 30 * time.Second}
	reg := source.NewRegistry()

	reg.Register(htmlsel.New(client))
	reg.Register(feed.New(client))

	enricher := enrich.New(client)
	if cfg.Search.SearXNG.BaseURL != "" {
		reg.Register(search.NewFetcher("searxng", searxng.NewClient(cfg.Search.SearXNG.BaseURL, cfg.Search.SearXNG.Timeout), enricher))
	}
	if cfg.Search.Tavily.APIKey != "" {
		reg.Register(search.NewFetcher("tavily", tavily.NewClient(cfg.Search.Tavily.APIKey), enricher))
	} else {
		logger.Log.Debug("tavily api key 未配置，跳过 tavily 采集策略")
	}
	return reg
}

// Descriptors 把启用的 source 配置转换为采集描述
func Descriptors(cfg *config.Config) []source.Descriptor {
	descs := make([]source.Descriptor, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if s.Disabled {
			continue
		}
		descs = append(descs, source.Descriptor{
			Name:          s.Name,
			Strategy:      s.Strategy,
			URLs:          s.URLs,
			Query:         s.Query,
			Selectors:     s.Selectors,
			MaxPosts:      s.MaxPosts,
			Timeout:       s.Timeout.Std(),
			RatePerSecond: s.RatePerSecond,
			Options:       s.Options,
		})
	}
	return descs
}
