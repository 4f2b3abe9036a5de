package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/config"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/pipeline"
)

// TriggerSource 定时触发在 PipelineStatus.trigger 中的取值
const TriggerSource = "scheduler"

// Triggerer 编排器的触发能力
type Triggerer interface {
	Trigger(ctx context.Context, req pipeline.Request) (*pipeline.Admission, error)
}

// Scheduler 每天固定时刻触发一次非强制运行。实现 kratos transport.Server
type Scheduler struct {
	hour, minute int
	loc          *time.Location
	target       Triggerer

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New 解析 HH:MM 与时区
func New(cfg config.ScheduleConfig, target Triggerer) (*Scheduler, error) {
	hour, minute, err := cfg.Clock()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		hour:   hour,
		minute: minute,
		loc:    loc,
		target: target,
		now:    time.Now,
		after:  time.After,
		stop:   make(chan struct{}),
	}, nil
}

// NextRun now 之后（不含）最近的 hour:minute
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Start 阻塞直到 ctx 结束或 Stop
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		next := NextRun(s.now(), s.hour, s.minute, s.loc)
		logger.Log.Infof("下一次定时运行: %s", next.Format(time.RFC3339))
		select {
		case <-s.after(next.Sub(s.now())):
			s.fire(ctx)
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		}
	}
}

// Stop 可重复调用
func (s *Scheduler) Stop(context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *Scheduler) fire(ctx context.Context) {
	adm, err := s.target.Trigger(ctx, pipeline.Request{Source: TriggerSource})
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		logger.Log.Warn("定时触发时已有运行中的任务，本次跳过")
	case err != nil:
		logger.Log.Errorf("定时触发失败: %v", err)
	case !adm.Started:
		logger.Log.Infof("冷却期内，沿用简报 %s", adm.BriefingID)
	default:
		logger.Log.WithField("run_id", adm.RunID).Info("定时运行已启动")
	}
}
