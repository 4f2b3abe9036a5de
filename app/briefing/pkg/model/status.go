package model

import "time"

// PipelineState 运行状态机
type PipelineState string

const (
	StateIdle      PipelineState = "idle"
	StateRunning   PipelineState = "running"
	StateCompleted PipelineState = "completed"
	StateFailed    PipelineState = "failed"
)

// Terminal completed 或 failed
func (s PipelineState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Stage 运行中的阶段标记，客户端轮询 /status 获取
type Stage string

const (
	StageCollecting   Stage = "collecting"
	StageFiltering    Stage = "filtering"
	StageExtracting   Stage = "extracting"
	StageSynthesizing Stage = "synthesizing"
	StageAssembling   Stage = "assembling"
	StagePersisting   Stage = "persisting"
)

// Diagnostics 汇总被各阶段吸收的局部失败
type Diagnostics struct {
	SourcesTotal      int      `json:"sources_total"`
	SourceFailures    []string `json:"source_failures"`
	ScrapedPosts      int      `json:"scraped_posts"`
	RelevantPosts     int      `json:"relevant_posts"`
	DiscardedPosts    int      `json:"discarded_posts"`
	Batches           int      `json:"batches"`
	FailedBatches     int      `json:"failed_batches"`
	LLMCalls          int64    `json:"llm_calls"`
	FallbackSynthesis bool     `json:"fallback_synthesis"`
}

// PipelineStatus 进程内唯一实例，只由编排器修改
type PipelineStatus struct {
	State             PipelineState `json:"state"`
	CurrentStage      Stage         `json:"current_stage,omitempty"`
	RunID             string        `json:"run_id,omitempty"`
	Trigger           string        `json:"trigger,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        *time.Time    `json:"finished_at,omitempty"`
	CurrentBriefingID string        `json:"current_briefing_id,omitempty"`
	Error             string        `json:"error,omitempty"`
	Diagnostics       *Diagnostics  `json:"diagnostics,omitempty"`
}

// Clone 拷贝一份给读者，避免共享可变字段
func (s PipelineStatus) Clone() PipelineStatus {
	out := s
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	if s.Diagnostics != nil {
		d := *s.Diagnostics
		d.SourceFailures = cloneStrings(s.Diagnostics.SourceFailures)
		out.Diagnostics = &d
	}
	return out
}
