package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/iWorld-y/trend_briefing/app/briefing/internal/conf"
	"github.com/iWorld-y/trend_briefing/app/briefing/internal/domain"
	"github.com/iWorld-y/trend_briefing/app/briefing/internal/repo"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/briefing"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/config"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/pipeline"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/render"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/store"
)

// BriefingUseCase 简报查询与触发
type BriefingUseCase struct {
	repo       repo.BriefingRepo
	pipeline   repo.PipelineRepo
	cfg        *config.Config
	webhookKey string
	log        *log.Helper
}

// NewBriefingUseCase 创建简报业务逻辑实例
func NewBriefingUseCase(r repo.BriefingRepo, p repo.PipelineRepo, cfg *config.Config, auth *conf.Auth, logger log.Logger) *BriefingUseCase {
	uc := &BriefingUseCase{
		repo:     r,
		pipeline: p,
		cfg:      cfg,
		log:      log.NewHelper(logger),
	}
	if auth != nil {
		uc.webhookKey = auth.WebhookKey
	}
	return uc
}

// Latest 最新简报，nil 表示尚无数据
func (uc *BriefingUseCase) Latest(ctx context.Context) (*model.DailyBriefing, error) {
	return uc.repo.Latest(ctx)
}

// List 简报摘要列表
func (uc *BriefingUseCase) List(ctx context.Context) ([]model.BriefingListItem, error) {
	return uc.repo.List(ctx)
}

// Get 根据ID获取简报
func (uc *BriefingUseCase) Get(ctx context.Context, id string) (*model.DailyBriefing, error) {
	if _, err := briefing.ParseID(id); err != nil {
		return nil, kerrors.NotFound("BRIEFING_NOT_FOUND", "briefing not found")
	}
	return uc.repo.Get(ctx, id)
}

// Download 渲染产物
func (uc *BriefingUseCase) Download(ctx context.Context, format, id string) (*domain.Artifact, error) {
	if !render.Supported(format) {
		return nil, kerrors.BadRequest("UNSUPPORTED_FORMAT", "format must be markdown or json")
	}
	if _, err := briefing.ParseID(id); err != nil {
		return nil, kerrors.NotFound("BRIEFING_NOT_FOUND", "briefing not found")
	}
	return uc.repo.Artifact(ctx, id, format)
}

// Status 管线状态快照
func (uc *BriefingUseCase) Status() model.PipelineStatus {
	return uc.pipeline.Status()
}

// Trigger 手动触发，立即返回
func (uc *BriefingUseCase) Trigger(ctx context.Context, req pipeline.Request) (*domain.TriggerReply, error) {
	if req.Source == "" {
		req.Source = "manual"
	}
	if _, err := req.Analysis(); err != nil {
		return nil, kerrors.BadRequest("INVALID_ANALYSIS_TYPE", err.Error())
	}
	adm, err := uc.pipeline.Trigger(ctx, req)
	if err != nil {
		return nil, admissionError(err)
	}
	if adm.Republished {
		return &domain.TriggerReply{
			Status:     domain.StatusRepublished,
			Message:    "Reusing the latest briefing without a new analysis run",
			BriefingID: adm.BriefingID,
		}, nil
	}
	if !adm.Started {
		return &domain.TriggerReply{
			Status:     domain.StatusCooldown,
			Message:    "A recent briefing is still fresh, use force_refresh to regenerate",
			BriefingID: adm.BriefingID,
		}, nil
	}
	uc.log.Infof("pipeline run %s admitted (source=%s force=%v)", adm.RunID, req.Source, req.ForceRefresh)
	return &domain.TriggerReply{
		Status:  domain.StatusAccepted,
		Message: "Briefing generation started",
		RunID:   adm.RunID,
	}, nil
}

// Webhook 自动化回调；运行中直接跳过
func (uc *BriefingUseCase) Webhook(ctx context.Context, token string, ev *domain.WebhookEvent) (*domain.TriggerReply, error) {
	if err := uc.Authorize(token); err != nil {
		return nil, err
	}
	if ev == nil || ev.Source == "" || ev.EventType == "" {
		return nil, kerrors.BadRequest("INVALID_WEBHOOK", "source and event_type are required")
	}

	uc.log.Infof("webhook received from %s: %s", ev.Source, ev.EventType)

	skipped := &domain.TriggerReply{
		Status:  domain.StatusSkipped,
		Message: "Pipeline already running, webhook ignored",
	}
	if uc.pipeline.Status().State == model.StateRunning {
		return skipped, nil
	}

	reply, err := uc.Trigger(ctx, pipeline.Request{
		IncludeNotionPush: true,
		AnalysisType:      pipeline.AnalysisFull,
		Source:            "webhook:" + ev.Source,
	})
	if kerrors.IsConflict(err) {
		return skipped, nil
	}
	if err != nil {
		return nil, err
	}
	if reply.Status == domain.StatusAccepted {
		reply.Status = domain.StatusWebhookReceived
		reply.Message = "Webhook received, briefing generation started"
	}
	return reply, nil
}

// Authorize 校验 webhook 的 HS256 Bearer token，未配置密钥时放行
func (uc *BriefingUseCase) Authorize(header string) error {
	if uc.webhookKey == "" {
		return nil
	}
	raw, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !ok || raw == "" {
		return kerrors.Unauthorized("AUTH_FAILED", "missing bearer token")
	}
	_, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return []byte(uc.webhookKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		uc.log.Warnf("webhook token rejected: %v", err)
		return kerrors.Unauthorized("AUTH_FAILED", "invalid token")
	}
	return nil
}

// Health 服务健康与集成开关
func (uc *BriefingUseCase) Health(ctx context.Context) *domain.Health {
	h := &domain.Health{
		Status:    "healthy",
		Timestamp: time.Now(),
		Config: domain.HealthConfig{
			OpenAIConfigured: uc.cfg.LLM.APIKey != "",
			NotionConfigured: uc.cfg.Notion.Enabled(),
			OutputDir:        uc.cfg.Output.Dir,
			Store:            uc.cfg.Output.Store,
			ScheduleEnabled:  uc.cfg.Schedule.Enabled,
		},
	}
	if app, ok := kratos.FromContext(ctx); ok {
		h.Version = app.Version()
	}
	return h
}

func admissionError(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		return kerrors.Conflict("RUN_IN_PROGRESS", "pipeline is already running")
	case errors.Is(err, pipeline.ErrInvalidAnalysisType):
		return kerrors.BadRequest("INVALID_ANALYSIS_TYPE", err.Error())
	case errors.Is(err, store.ErrNoData):
		return kerrors.NotFound("BRIEFING_NOT_FOUND", "no briefing available to reuse")
	case errors.Is(err, pipeline.ErrShutdown):
		return kerrors.ServiceUnavailable("SHUTTING_DOWN", "service is shutting down")
	default:
		return kerrors.InternalServer("TRIGGER_FAILED", err.Error())
	}
}
