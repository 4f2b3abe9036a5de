package agent

import (
	"context"
	"fmt"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/filter"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source/enrich"
)

// Classifier 用 LLM 判断没有关键词证据的内容是否相关
type Classifier struct {
	llm JSONGenerator
}

var _ filter.Classifier = (*Classifier)(nil)

// NewClassifier 创建分类器
func NewClassifier(gen JSONGenerator) *Classifier {
	return &Classifier{llm: gen}
}

type classifierPayload struct {
	Relevant *bool `json:"relevant"`
}

// Classify 实现 filter.Classifier
func (c *Classifier) Classify(ctx context.Context, post model.ScrapedPost) (filter.Verdict, error) {
	var payload classifierPayload
	prompt := fmt.Sprintf(classifierPrompt, post.Title, enrich.Truncate(post.Body, 600))
	if err := c.llm.GenerateJSON(ctx, classifierSystem, prompt, &payload); err != nil {
		return filter.Unsure, err
	}
	switch {
	case payload.Relevant == nil:
		return filter.Unsure, nil
	case *payload.Relevant:
		return filter.Relevant, nil
	default:
		return filter.Irrelevant, nil
	}
}
