package data

import (
	"context"
	"errors"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/trend_briefing/app/briefing/internal/domain"
	"github.com/iWorld-y/trend_briefing/app/briefing/internal/repo"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/render"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/store"
)

type briefingRepo struct {
	data *Data
	log  *log.Helper
}

func NewBriefingRepo(data *Data, logger log.Logger) repo.BriefingRepo {
	return &briefingRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *briefingRepo) Latest(ctx context.Context) (*model.DailyBriefing, error) {
	b, err := r.data.store.Latest(ctx)
	if errors.Is(err, store.ErrNoData) {
		return nil, nil
	}
	return b, err
}

func (r *briefingRepo) List(ctx context.Context) ([]model.BriefingListItem, error) {
	return r.data.store.List(ctx)
}

func (r *briefingRepo) Get(ctx context.Context, id string) (*model.DailyBriefing, error) {
	b, err := r.data.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (r *briefingRepo) Artifact(ctx context.Context, id, format string) (*domain.Artifact, error) {
	var (
		content []byte
		err     error
	)
	if a, ok := r.data.store.(store.Artifacts); ok {
		content, err = a.Artifact(ctx, id, format)
	} else {
		// 没有落盘产物的存储现场渲染
		var b *model.DailyBriefing
		if b, err = r.data.store.Get(ctx, id); err == nil {
			content, _, err = render.Render(b, format)
		}
	}
	if err != nil {
		return nil, notFound(err)
	}
	return &domain.Artifact{
		Filename:    id + render.Extension(format),
		ContentType: render.ContentType(format),
		Data:        content,
	}, nil
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrNoData) {
		return kerrors.NotFound("BRIEFING_NOT_FOUND", "briefing not found")
	}
	return err
}
