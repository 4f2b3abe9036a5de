package service

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/trend_briefing/app/briefing/internal/domain"
	"github.com/iWorld-y/trend_briefing/app/briefing/internal/usecase"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/pipeline"
)

const (
	OperationLatest   = "/briefing.v1.Briefing/Latest"
	OperationList     = "/briefing.v1.Briefing/List"
	OperationGet      = "/briefing.v1.Briefing/Get"
	OperationStatus   = "/briefing.v1.Briefing/Status"
	OperationTrigger  = "/briefing.v1.Briefing/Trigger"
	OperationWebhook  = "/briefing.v1.Briefing/Webhook"
	OperationDownload = "/briefing.v1.Briefing/Download"
	OperationHealth   = "/briefing.v1.Briefing/Health"
)

type BriefingService struct {
	uc  *usecase.BriefingUseCase
	log *log.Helper
}

func NewBriefingService(uc *usecase.BriefingUseCase, logger log.Logger) *BriefingService {
	return &BriefingService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

func (s *BriefingService) Latest(ctx context.Context) (*domain.Reply, error) {
	b, err := s.uc.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return &domain.Reply{Status: domain.StatusNoData, Message: "No briefings available yet"}, nil
	}
	return &domain.Reply{Status: domain.StatusSuccess, Data: b}, nil
}

func (s *BriefingService) List(ctx context.Context) (*domain.Reply, error) {
	items, err := s.uc.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &domain.Reply{Status: domain.StatusNoData, Message: "No briefings available yet"}, nil
	}
	return &domain.Reply{Status: domain.StatusSuccess, Data: items}, nil
}

// RegisterBriefingHTTPServer 注册简报 HTTP 路由
func RegisterBriefingHTTPServer(srv *http.Server, s *BriefingService) {
	r := srv.Route("/")
	r.GET("/latest", s.latestHandler)
	r.GET("/briefings", s.listHandler)
	r.GET("/briefings/{id}", s.getHandler)
	r.GET("/status", s.statusHandler)
	r.POST("/trigger", s.triggerHandler)
	r.POST("/webhook", s.webhookHandler)
	r.GET("/download/{format}/{id}", s.downloadHandler)
	r.GET("/health", s.healthHandler)
}

func (s *BriefingService) latestHandler(ctx http.Context) error {
	http.SetOperation(ctx, OperationLatest)
	h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
		return s.Latest(ctx)
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *BriefingService) listHandler(ctx http.Context) error {
	http.SetOperation(ctx, OperationList)
	h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
		return s.List(ctx)
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *BriefingService) getHandler(ctx http.Context) error {
	http.SetOperation(ctx, OperationGet)
	id := ctx.Vars().Get("id")
	h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
		return s.uc.Get(ctx, id)
	})
	out, err := h(ctx, id)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *BriefingService) statusHandler(ctx http.Context) error {
	http.SetOperation(ctx, OperationStatus)
	st := s.uc.Status()
	return ctx.Result(200, &st)
}

func (s *BriefingService) triggerHandler(ctx http.Context) error {
	http.SetOperation(ctx, OperationTrigger)
	var in pipeline.Request
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&in); err != nil {
			return err
		}
	}
	h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.uc.Trigger(ctx, *req.(*pipeline.Request))
	})
	out, err := h(ctx, &in)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *BriefingService) webhookHandler(ctx http.Context) error {
	http.SetOperation(ctx, OperationWebhook)
	var in domain.WebhookEvent
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	token := ctx.Header().Get("Authorization")
	h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.uc.Webhook(ctx, token, req.(*domain.WebhookEvent))
	})
	out, err := h(ctx, &in)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *BriefingService) downloadHandler(ctx http.Context) error {
	http.SetOperation(ctx, OperationDownload)
	vars := ctx.Vars()
	a, err := s.uc.Download(ctx, vars.Get("format"), vars.Get("id"))
	if err != nil {
		return err
	}
	ctx.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	return ctx.Blob(200, a.ContentType, a.Data)
}

func (s *BriefingService) healthHandler(ctx http.Context) error {
	http.SetOperation(ctx, OperationHealth)
	return ctx.Result(200, s.uc.Health(ctx))
}
