package domain

import "time"

// Reply 列表类接口的统一外壳
type Reply struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	StatusSuccess         = "success"
	StatusNoData          = "no_data"
	StatusAccepted        = "accepted"
	StatusCooldown        = "cooldown"
	StatusSkipped         = "skipped"
	StatusWebhookReceived = "webhook_received"
	StatusRepublished     = "republished"
)

// TriggerReply 触发结果
type TriggerReply struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	RunID      string `json:"run_id,omitempty"`
	BriefingID string `json:"briefing_id,omitempty"`
}

// WebhookEvent 外部自动化回调
type WebhookEvent struct {
	Source    string                 `json:"source"`
	EventType string                 `json:"event_type"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Artifact 下载内容
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Health 健康检查
type Health struct {
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Version   string       `json:"version,omitempty"`
	Config    HealthConfig `json:"config"`
}

// HealthConfig 可选集成的开关状态
type HealthConfig struct {
	OpenAIConfigured bool   `json:"openai_configured"`
	NotionConfigured bool   `json:"notion_configured"`
	OutputDir        string `json:"output_dir"`
	Store            string `json:"store"`
	ScheduleEnabled  bool   `json:"schedule_enabled"`
}
