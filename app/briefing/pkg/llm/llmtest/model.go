// Package llmtest 提供测试用的脚本化 ChatModel
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Reply 单次调用的返回
type Reply struct {
	Content string
	Err     error
}

// Model 依次返回 Replies，用尽后调用 Handler，二者都没有时报错
type Model struct {
	mu      sync.Mutex
	Replies []Reply
	Handler func(ctx context.Context, input []*schema.Message) (string, error)
	inputs  [][]*schema.Message
}

var _ model.BaseChatModel = (*Model)(nil)

// Generate 实现 model.BaseChatModel
func (m *Model) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	var next *Reply
	if len(m.Replies) > 0 {
		r := m.Replies[0]
		m.Replies = m.Replies[1:]
		next = &r
	}
	handler := m.Handler
	m.mu.Unlock()

	if next != nil {
		if next.Err != nil {
			return nil, next.Err
		}
		return schema.AssistantMessage(next.Content, nil), nil
	}
	if handler == nil {
		return nil, errors.New("llmtest: no scripted reply")
	}
	content, err := handler(ctx, input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

// Stream 未实现
func (m *Model) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("llmtest: stream not supported")
}

// Calls 已收到的调用次数
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

// LastUser 最近一次调用的 user 消息
func (m *Model) LastUser() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		return ""
	}
	for _, msg := range m.inputs[len(m.inputs)-1] {
		if msg.Role == schema.User {
			return msg.Content
		}
	}
	return ""
}
