package repo

import (
	"context"

	"github.com/iWorld-y/trend_briefing/app/briefing/internal/domain"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/pipeline"
)

// BriefingRepo 简报仓库接口
type BriefingRepo interface {
	// Latest 最新简报，没有任何简报时返回 nil
	Latest(ctx context.Context) (*model.DailyBriefing, error)
	// List 简报摘要，按时间倒序
	List(ctx context.Context) ([]model.BriefingListItem, error)
	// Get 根据ID获取简报
	Get(ctx context.Context, id string) (*model.DailyBriefing, error)
	// Artifact 渲染后的下载内容
	Artifact(ctx context.Context, id, format string) (*domain.Artifact, error)
}

// PipelineRepo 管线运行入口
type PipelineRepo interface {
	Trigger(ctx context.Context, req pipeline.Request) (*pipeline.Admission, error)
	Status() model.PipelineStatus
}
