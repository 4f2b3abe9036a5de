package usecase

import (
	"context"
	"testing"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/iWorld-y/trend_briefing/app/briefing/internal/conf"
	"github.com/iWorld-y/trend_briefing/app/briefing/internal/domain"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/config"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/pipeline"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/store"
)

// mockBriefingRepo 模拟简报仓库
type mockBriefingRepo struct {
	latest *model.DailyBriefing
}

func (m *mockBriefingRepo) Latest(ctx context.Context) (*model.DailyBriefing, error) {
	return m.latest, nil
}

func (m *mockBriefingRepo) List(ctx context.Context) ([]model.BriefingListItem, error) {
	if m.latest == nil {
		return nil, nil
	}
	return []model.BriefingListItem{m.latest.ListItem("")}, nil
}

func (m *mockBriefingRepo) Get(ctx context.Context, id string) (*model.DailyBriefing, error) {
	if m.latest == nil || m.latest.BriefingID != id {
		return nil, kerrors.NotFound("BRIEFING_NOT_FOUND", "briefing not found")
	}
	return m.latest, nil
}

func (m *mockBriefingRepo) Artifact(ctx context.Context, id, format string) (*domain.Artifact, error) {
	return &domain.Artifact{Filename: id, Data: []byte(format)}, nil
}

// mockPipeline 模拟编排器
type mockPipeline struct {
	state model.PipelineState
	adm   *pipeline.Admission
	err   error
	reqs  []pipeline.Request
}

func (m *mockPipeline) Trigger(ctx context.Context, req pipeline.Request) (*pipeline.Admission, error) {
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.adm, nil
}

func (m *mockPipeline) Status() model.PipelineStatus {
	return model.PipelineStatus{State: m.state}
}

func newUseCase(p *mockPipeline, key string) *BriefingUseCase {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-test"
	return NewBriefingUseCase(&mockBriefingRepo{}, p, cfg, &conf.Auth{WebhookKey: key}, log.DefaultLogger)
}

func TestBriefingUseCase_Trigger(t *testing.T) {
	p := &mockPipeline{adm: &pipeline.Admission{Started: true, RunID: "run-1"}}
	uc := newUseCase(p, "")

	reply, err := uc.Trigger(context.Background(), pipeline.Request{ForceRefresh: true})
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if reply.Status != domain.StatusAccepted || reply.RunID != "run-1" {
		t.Errorf("Trigger() reply = %+v", reply)
	}
	if p.reqs[0].Source != "manual" || !p.reqs[0].ForceRefresh {
		t.Errorf("Trigger() request = %+v", p.reqs[0])
	}
}

func TestBriefingUseCase_TriggerRejected(t *testing.T) {
	uc := newUseCase(&mockPipeline{err: pipeline.ErrRunInProgress}, "")
	_, err := uc.Trigger(context.Background(), pipeline.Request{})
	if !kerrors.IsConflict(err) {
		t.Errorf("Trigger() error = %v, want Conflict", err)
	}

	uc = newUseCase(&mockPipeline{err: pipeline.ErrShutdown}, "")
	_, err = uc.Trigger(context.Background(), pipeline.Request{})
	if kerrors.Code(err) != 503 {
		t.Errorf("Trigger() code = %d, want 503", kerrors.Code(err))
	}
}

func TestBriefingUseCase_TriggerCooldown(t *testing.T) {
	uc := newUseCase(&mockPipeline{adm: &pipeline.Admission{BriefingID: "briefing_20250305_090000"}}, "")
	reply, err := uc.Trigger(context.Background(), pipeline.Request{})
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if reply.Status != domain.StatusCooldown || reply.BriefingID != "briefing_20250305_090000" {
		t.Errorf("Trigger() reply = %+v", reply)
	}
}

func TestBriefingUseCase_TriggerAnalysisType(t *testing.T) {
	ctx := context.Background()

	p := &mockPipeline{adm: &pipeline.Admission{Started: true, RunID: "run-3"}}
	_, err := newUseCase(p, "").Trigger(ctx, pipeline.Request{AnalysisType: "everything"})
	if !kerrors.IsBadRequest(err) {
		t.Fatalf("Trigger(unknown analysis_type) error = %v, want BadRequest", err)
	}
	if len(p.reqs) != 0 {
		t.Errorf("invalid request reached the pipeline: %+v", p.reqs)
	}

	p = &mockPipeline{adm: &pipeline.Admission{Republished: true, BriefingID: "briefing_20250305_090000"}}
	reply, err := newUseCase(p, "").Trigger(ctx, pipeline.Request{AnalysisType: "synthesis_only", IncludeNotionPush: true})
	if err != nil {
		t.Fatalf("Trigger(synthesis_only) error = %v", err)
	}
	if reply.Status != domain.StatusRepublished || reply.BriefingID != "briefing_20250305_090000" {
		t.Errorf("Trigger(synthesis_only) reply = %+v", reply)
	}

	_, err = newUseCase(&mockPipeline{err: store.ErrNoData}, "").Trigger(ctx, pipeline.Request{AnalysisType: "synthesis_only"})
	if !kerrors.IsNotFound(err) {
		t.Errorf("Trigger(synthesis_only, no data) error = %v, want NotFound", err)
	}
}

func TestBriefingUseCase_Webhook(t *testing.T) {
	ctx := context.Background()

	p := &mockPipeline{adm: &pipeline.Admission{Started: true, RunID: "run-2"}}
	uc := newUseCase(p, "")
	reply, err := uc.Webhook(ctx, "", &domain.WebhookEvent{Source: "cron", EventType: "daily"})
	if err != nil {
		t.Fatalf("Webhook() error = %v", err)
	}
	if reply.Status != domain.StatusWebhookReceived {
		t.Errorf("Webhook() status = %s", reply.Status)
	}
	if req := p.reqs[0]; !req.IncludeNotionPush || req.ForceRefresh || req.Source != "webhook:cron" || req.AnalysisType != pipeline.AnalysisFull {
		t.Errorf("Webhook() request = %+v", req)
	}

	if _, err := uc.Webhook(ctx, "", &domain.WebhookEvent{Source: "cron"}); !kerrors.IsBadRequest(err) {
		t.Errorf("Webhook(missing event_type) error = %v, want BadRequest", err)
	}

	running := &mockPipeline{state: model.StateRunning}
	reply, err = newUseCase(running, "").Webhook(ctx, "", &domain.WebhookEvent{Source: "cron", EventType: "daily"})
	if err != nil || reply.Status != domain.StatusSkipped || len(running.reqs) != 0 {
		t.Errorf("Webhook() while running = %+v, %v", reply, err)
	}
}

func TestBriefingUseCase_Authorize(t *testing.T) {
	uc := newUseCase(&mockPipeline{}, "secret")
	sign := func(key string, method jwt.SigningMethod) string {
		token := jwt.NewWithClaims(method, jwt.MapClaims{
			"sub": "scheduler",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		s, err := token.SignedString([]byte(key))
		if err != nil {
			t.Fatalf("SignedString() error = %v", err)
		}
		return s
	}

	if err := uc.Authorize("Bearer " + sign("secret", jwt.SigningMethodHS256)); err != nil {
		t.Errorf("Authorize(valid) error = %v", err)
	}
	for name, header := range map[string]string{
		"missing":   "",
		"no bearer": sign("secret", jwt.SigningMethodHS256),
		"wrong key": "Bearer " + sign("other", jwt.SigningMethodHS256),
		"wrong alg": "Bearer " + sign("secret", jwt.SigningMethodHS512),
	} {
		if err := uc.Authorize(header); !kerrors.IsUnauthorized(err) {
			t.Errorf("Authorize(%s) error = %v, want Unauthorized", name, err)
		}
	}

	if err := newUseCase(&mockPipeline{}, "").Authorize(""); err != nil {
		t.Errorf("Authorize() without key error = %v", err)
	}
}

func TestBriefingUseCase_GetAndDownload(t *testing.T) {
	uc := newUseCase(&mockPipeline{}, "")
	ctx := context.Background()

	if _, err := uc.Get(ctx, "../../etc/passwd"); !kerrors.IsNotFound(err) {
		t.Errorf("Get(bad id) error = %v, want NotFound", err)
	}
	if _, err := uc.Download(ctx, "pdf", "briefing_20250305_090000"); !kerrors.IsBadRequest(err) {
		t.Errorf("Download(pdf) error = %v, want BadRequest", err)
	}
	a, err := uc.Download(ctx, "json", "briefing_20250305_090000")
	if err != nil || string(a.Data) != "json" {
		t.Errorf("Download() = %+v, %v", a, err)
	}
}

func TestBriefingUseCase_Health(t *testing.T) {
	h := newUseCase(&mockPipeline{}, "").Health(context.Background())
	if h.Status != "healthy" || !h.Config.OpenAIConfigured || h.Config.NotionConfigured || h.Config.ScheduleEnabled {
		t.Errorf("Health() = %+v", h)
	}

	// 调度开关只来自配置
	uc := newUseCase(&mockPipeline{}, "")
	uc.cfg.Schedule.Enabled = true
	if h := uc.Health(context.Background()); !h.Config.ScheduleEnabled {
		t.Errorf("Health() schedule_enabled = false, want true")
	}
}
