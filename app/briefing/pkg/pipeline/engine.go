package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/agent"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/briefing"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/config"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/filter"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/llm"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/notion"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source/factory"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/store"
)

// NewFromConfig 按配置装配完整管线
func NewFromConfig(ctx context.Context, cfg *config.Config, st store.Store) (*Orchestrator, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("llm api key is not configured")
	}

	// 初始化 LLM
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout.Std(),
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	client := llm.NewClient(chatModel, llmOptions(cfg))

	opts := filter.Options{
		Keywords:     cfg.Filter.Keywords,
		Exclude:      cfg.Filter.Exclude,
		MinBodyChars: cfg.Filter.MinBodyChars,
	}
	if cfg.Filter.Classifier {
		opts.Classifier = agent.NewClassifier(client)
	}

	deps := Deps{
		Collector: source.NewCollector(factory.NewRegistry(cfg), cfg.Concurrency.Sources, cfg.Pipeline.CollectTimeout.Std()),
		Sources:   factory.Descriptors(cfg),
		Filter:    filter.New(opts),
		Extractor: agent.NewExtractor(client, agent.ExtractionOptions{
			BatchSize:      cfg.Extraction.BatchSize,
			MaxBatchChars:  cfg.Extraction.MaxBatchChars,
			MaxPostChars:   cfg.Extraction.MaxPostChars,
			DedupThreshold: cfg.Extraction.DedupThreshold,
			KeywordOverlap: cfg.Extraction.KeywordOverlap,
		}),
		Synthesizer: agent.NewSynthesizer(client, cfg.Synthesis.TopPriorities),
		Assembler:   briefing.NewAssembler(),
		Store:       st,
		LLM:         client,
	}
	if cfg.Notion.Enabled() {
		deps.Publisher = notion.NewPublisher(cfg.Notion.Token, cfg.Notion.DatabaseID, cfg.Notion.BaseURL)
	}
	logger.Log.Infof("管线装配完成：%d 个采集源，模型 %s", len(deps.Sources), cfg.LLM.Model)

	return New(deps, OptionsFromConfig(cfg.Pipeline)), nil
}

// OptionsFromConfig 转换时限配置
func OptionsFromConfig(c config.PipelineConfig) Options {
	return Options{
		Cooldown:         c.Cooldown.Std(),
		RunTimeout:       c.RunTimeout.Std(),
		FilterTimeout:    c.FilterTimeout.Std(),
		ExtractTimeout:   c.ExtractTimeout.Std(),
		SynthesisTimeout: c.SynthesisTimeout.Std(),
		PersistTimeout:   c.PersistTimeout.Std(),
		PublishTimeout:   c.PublishTimeout.Std(),
	}
}

// llmOptions 单次调用时限沿用 llm.timeout
func llmOptions(cfg *config.Config) llm.Options {
	return llm.Options{
		MaxRetries:  cfg.LLM.MaxRetries,
		BaseDelay:   cfg.LLM.BaseDelay.Std(),
		CallTimeout: cfg.LLM.Timeout.Std(),
		Limiter:     llm.NewLimiter(cfg.Concurrency.RPM, cfg.Concurrency.QPS),
	}
}
