package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/agent"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/briefing"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/filter"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/store"
)

var (
	// ErrRunInProgress 已有运行中的任务，不排队
	ErrRunInProgress = errors.New("pipeline run already in progress")
	// ErrShutdown 编排器已关闭
	ErrShutdown = errors.New("pipeline is shutting down")
	// ErrInvalidAnalysisType 未知的 analysis_type
	ErrInvalidAnalysisType = errors.New("analysis_type must be full, trends_only or synthesis_only")
)

// analysis_type 取值
const (
	AnalysisFull          = "full"
	AnalysisTrendsOnly    = "trends_only"
	AnalysisSynthesisOnly = "synthesis_only"
)

// Collector 采集阶段
type Collector interface {
	Collect(ctx context.Context, descs []source.Descriptor) (*source.Result, error)
}

// Filter 过滤阶段
type Filter interface {
	Apply(ctx context.Context, posts []model.ScrapedPost) (*filter.Result, error)
}

// Extractor 趋势抽取阶段
type Extractor interface {
	Extract(ctx context.Context, posts []model.ScrapedPost) (*agent.ExtractionResult, error)
}

// Synthesizer 综合分析阶段
type Synthesizer interface {
	Synthesize(ctx context.Context, in agent.SynthesisInput) (*agent.SynthesisOutput, error)
}

// Publisher 第三方工作区推送
type Publisher interface {
	Publish(ctx context.Context, b *model.DailyBriefing) (string, error)
}

// CallCounter LLM 调用计数
type CallCounter interface {
	Calls() int64
}

// Deps 编排器依赖；Publisher 与 LLM 可为空
type Deps struct {
	Collector   Collector
	Sources     []source.Descriptor
	Filter      Filter
	Extractor   Extractor
	Synthesizer Synthesizer
	Assembler   *briefing.Assembler
	Store       store.Store
	Publisher   Publisher
	LLM         CallCounter
}

// Options 冷却与各阶段时限，0 表示不限制
type Options struct {
	Cooldown         time.Duration
	RunTimeout       time.Duration
	FilterTimeout    time.Duration
	ExtractTimeout   time.Duration
	SynthesisTimeout time.Duration
	PersistTimeout   time.Duration
	PublishTimeout   time.Duration
}

// Request 一次触发请求
type Request struct {
	ForceRefresh      bool   `json:"force_refresh"`
	IncludeNotionPush bool   `json:"include_notion_push"`
	AnalysisType      string `json:"analysis_type"`
	Source            string `json:"source"`
}

// Analysis 归一化后的分析类型，空值视为 full
func (r Request) Analysis() (string, error) {
	switch t := strings.ToLower(strings.TrimSpace(r.AnalysisType)); t {
	case "":
		return AnalysisFull, nil
	case AnalysisFull, AnalysisTrendsOnly, AnalysisSynthesisOnly:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAnalysisType, r.AnalysisType)
}

// pushes trends_only 只分析不推送
func (r Request) pushes() bool {
	kind, _ := r.Analysis()
	return r.IncludeNotionPush && kind != AnalysisTrendsOnly
}

// Admission 触发结果。Started 为 false 表示命中冷却，BriefingID 为现有 latest；
// Republished 表示 synthesis_only，不新建运行，仅复用 latest
type Admission struct {
	Started     bool
	Republished bool
	RunID       string
	BriefingID  string
}

// Orchestrator 串联各阶段，持有运行状态机，保证同一时刻最多一个运行
type Orchestrator struct {
	deps Deps
	opts Options
	now  func() time.Time

	mu            sync.Mutex
	status        model.PipelineStatus
	lastCompleted time.Time
	closed        bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New 初始状态为 idle
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Assembler == nil {
		deps.Assembler = briefing.NewAssembler()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		deps:    deps,
		opts:    opts,
		now:     time.Now,
		status:  model.PipelineStatus{State: model.StateIdle},
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Status 当前状态的快照
func (o *Orchestrator) Status() model.PipelineStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status.Clone()
}

// Trigger 立即返回，运行在后台进行
func (o *Orchestrator) Trigger(ctx context.Context, req Request) (*Admission, error) {
	kind, err := req.Analysis()
	if err != nil {
		return nil, err
	}
	if kind == AnalysisSynthesisOnly {
		return o.republish(ctx, req)
	}
	adm, err := o.admit(req)
	if err != nil || !adm.Started {
		return adm, err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_, _ = o.run(o.baseCtx, adm.RunID, req)
	}()
	return adm, nil
}

// RunSync 在调用方 goroutine 中完成一次运行；命中冷却时返回现有 latest
func (o *Orchestrator) RunSync(ctx context.Context, req Request) (*model.DailyBriefing, error) {
	kind, err := req.Analysis()
	if err != nil {
		return nil, err
	}
	if kind == AnalysisSynthesisOnly {
		latest, err := o.deps.Store.Latest(ctx)
		if err != nil {
			return nil, err
		}
		if req.IncludeNotionPush {
			o.publish(uuid.NewString(), latest)
		}
		return latest, nil
	}
	adm, err := o.admit(req)
	if err != nil {
		return nil, err
	}
	if !adm.Started {
		return o.deps.Store.Latest(ctx)
	}
	o.wg.Add(1)
	defer o.wg.Done()
	return o.run(ctx, adm.RunID, req)
}

// Wait 等待在途运行结束
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown 拒绝新的触发，取消在途运行并等待其进入终态
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancel()
	return o.Wait(ctx)
}

// republish 不重新分析，按需推送现有 latest；无简报时返回 store.ErrNoData
func (o *Orchestrator) republish(ctx context.Context, req Request) (*Admission, error) {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return nil, ErrShutdown
	}
	latest, err := o.deps.Store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if req.IncludeNotionPush {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.publish(uuid.NewString(), latest)
		}()
	}
	return &Admission{Republished: true, BriefingID: latest.BriefingID}, nil
}

func (o *Orchestrator) admit(req Request) (*Admission, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrShutdown
	}
	if o.status.State == model.StateRunning {
		return nil, ErrRunInProgress
	}
	now := o.now()
	if !req.ForceRefresh && o.opts.Cooldown > 0 && o.status.State == model.StateCompleted &&
		now.Sub(o.lastCompleted) < o.opts.Cooldown {
		logger.Log.Infof("冷却期内，复用简报 %s", o.status.CurrentBriefingID)
		return &Admission{BriefingID: o.status.CurrentBriefingID}, nil
	}

	trigger := req.Source
	if trigger == "" {
		trigger = "manual"
	}
	runID := uuid.NewString()
	o.status = model.PipelineStatus{
		State:       model.StateRunning,
		RunID:       runID,
		Trigger:     trigger,
		StartedAt:   now,
		Diagnostics: &model.Diagnostics{SourcesTotal: len(o.deps.Sources)},
	}
	logger.Log.WithField("run_id", runID).Infof("开始运行，触发来源: %s, force_refresh=%v", trigger, req.ForceRefresh)
	return &Admission{Started: true, RunID: runID}, nil
}

func (o *Orchestrator) run(ctx context.Context, runID string, req Request) (b *model.DailyBriefing, err error) {
	if o.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RunTimeout)
		defer cancel()
	}

	var calls0 int64
	if o.deps.LLM != nil {
		calls0 = o.deps.LLM.Calls()
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				b, err = nil, fmt.Errorf("pipeline panic: %v", r)
			}
		}()
		b, err = o.execute(ctx, runID)
	}()

	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("run timed out or cancelled: %w", err)
	}
	if o.deps.LLM != nil {
		calls := o.deps.LLM.Calls() - calls0
		o.updateDiag(runID, func(d *model.Diagnostics) { d.LLMCalls = calls })
	}
	o.finish(runID, b, err)

	if err == nil && req.pushes() {
		o.publish(runID, b)
	}
	return b, err
}

func (o *Orchestrator) execute(ctx context.Context, runID string) (*model.DailyBriefing, error) {
	// 采集：单源失败被吸收，时限由采集器自身控制
	o.enter(runID, model.StageCollecting)
	collected, err := o.deps.Collector.Collect(ctx, o.deps.Sources)
	if collected != nil {
		failures := make([]string, 0, len(collected.Failures))
		for _, f := range collected.Failures {
			failures = append(failures, f.Error())
		}
		o.updateDiag(runID, func(d *model.Diagnostics) {
			d.SourceFailures = failures
			d.ScrapedPosts = len(collected.Posts)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	posts := collected.Posts

	if err := o.enterChecked(ctx, runID, model.StageFiltering); err != nil {
		return nil, err
	}
	filtered, err := withStage(ctx, o.opts.FilterTimeout, func(ctx context.Context) (*filter.Result, error) {
		return o.deps.Filter.Apply(ctx, posts)
	})
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	relevant := filtered.Kept
	o.updateDiag(runID, func(d *model.Diagnostics) {
		d.RelevantPosts = len(relevant)
		d.DiscardedPosts = filtered.Discarded
	})

	if err := o.enterChecked(ctx, runID, model.StageExtracting); err != nil {
		return nil, err
	}
	extracted, err := withStage(ctx, o.opts.ExtractTimeout, func(ctx context.Context) (*agent.ExtractionResult, error) {
		return o.deps.Extractor.Extract(ctx, relevant)
	})
	if err != nil {
		// 阶段时限耗尽而整体运行仍存活时，以已抽取的趋势继续
		if extracted == nil || ctx.Err() != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		logger.Stage(runID, string(model.StageExtracting)).Warnf("抽取阶段超时，以已完成批次的 %d 个趋势继续: %v", len(extracted.Trends), err)
	}
	if extracted.Exhausted {
		logger.Stage(runID, string(model.StageExtracting)).Warn("所有批次均失败，以空趋势列表继续")
	}
	o.updateDiag(runID, func(d *model.Diagnostics) {
		d.Batches = extracted.Batches
		d.FailedBatches = extracted.FailedBatches
	})

	if err := o.enterChecked(ctx, runID, model.StageSynthesizing); err != nil {
		return nil, err
	}
	synth, err := withStage(ctx, o.opts.SynthesisTimeout, func(ctx context.Context) (*agent.SynthesisOutput, error) {
		return o.deps.Synthesizer.Synthesize(ctx, agent.SynthesisInput{
			Trends:        extracted.Trends,
			ScrapedPosts:  len(posts),
			RelevantPosts: len(relevant),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	o.updateDiag(runID, func(d *model.Diagnostics) { d.FallbackSynthesis = synth.Fallback })

	if err := o.enterChecked(ctx, runID, model.StageAssembling); err != nil {
		return nil, err
	}
	prev, err := o.deps.Store.Latest(ctx)
	if err != nil && !errors.Is(err, store.ErrNoData) {
		return nil, fmt.Errorf("load latest briefing: %w", err)
	}
	in := briefing.Input{
		Analysis: model.TrendAnalysis{
			Trends:              extracted.Trends,
			PriorityTrends:      synth.PriorityTrends,
			MarketOpportunities: synth.MarketOpportunities,
			RiskFactors:         synth.RiskFactors,
			Summary:             synth.Summary,
		},
		Synthesis:         synth.Results,
		ScrapedPostsCount: len(posts),
	}
	if prev != nil {
		in.PreviousID = prev.BriefingID
	}
	b, err := o.deps.Assembler.Assemble(in)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	if err := o.enterChecked(ctx, runID, model.StagePersisting); err != nil {
		return nil, err
	}
	if _, err := withStage(ctx, o.opts.PersistTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.deps.Store.Put(ctx, b)
	}); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	return b, nil
}

func (o *Orchestrator) publish(runID string, b *model.DailyBriefing) {
	if o.deps.Publisher == nil {
		logger.Log.WithField("run_id", runID).Warn("未配置 Notion，跳过推送")
		return
	}
	timeout := o.opts.PublishTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(o.baseCtx, timeout)
	defer cancel()
	url, err := o.deps.Publisher.Publish(ctx, b)
	if err != nil {
		logger.Log.WithField("run_id", runID).Errorf("Notion 推送失败: %v", err)
		return
	}
	logger.Log.WithField("run_id", runID).Infof("Notion 推送完成: %s", url)
}

func (o *Orchestrator) enter(runID string, stage model.Stage) {
	o.mu.Lock()
	if o.status.RunID == runID {
		o.status.CurrentStage = stage
	}
	o.mu.Unlock()
	logger.Stage(runID, string(stage)).Info("进入阶段")
}

// enterChecked 运行整体超时后不再进入新阶段
func (o *Orchestrator) enterChecked(ctx context.Context, runID string, stage model.Stage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("before %s: %w", stage, err)
	}
	o.enter(runID, stage)
	return nil
}

func (o *Orchestrator) updateDiag(runID string, fn func(d *model.Diagnostics)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.RunID != runID || o.status.Diagnostics == nil {
		return
	}
	fn(o.status.Diagnostics)
}

func (o *Orchestrator) finish(runID string, b *model.DailyBriefing, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.RunID != runID {
		return
	}
	now := o.now()
	o.status.FinishedAt = &now
	entry := logger.Log.WithField("run_id", runID)
	if err != nil {
		o.status.State = model.StateFailed
		o.status.Error = err.Error()
		entry.Errorf("运行失败 [%s]: %v", o.status.CurrentStage, err)
		return
	}
	o.status.State = model.StateCompleted
	o.status.CurrentStage = ""
	o.status.CurrentBriefingID = b.BriefingID
	o.lastCompleted = now
	entry.Infof("运行完成，简报 %s，耗时 %s", b.BriefingID, now.Sub(o.status.StartedAt).Round(time.Millisecond))
}

// withStage 为单个阶段套上独立时限
func withStage[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}
