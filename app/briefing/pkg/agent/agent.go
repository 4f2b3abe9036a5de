package agent

import (
	"context"
	"fmt"
)

// AgentError LLM 阶段的致命错误
type AgentError struct {
	Agent string
	Err   error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s agent: %v", e.Agent, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// JSONGenerator llm.Client 的最小能力
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system, user string, out any) error
}
