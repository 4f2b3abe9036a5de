package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
)

// ErrExhausted 重试次数用尽
var ErrExhausted = errors.New("llm retries exhausted")

// Validator 解析后的结构自检，失败按可重试处理
type Validator interface {
	Validate() error
}

// Options 客户端参数
type Options struct {
	MaxRetries  int
	BaseDelay   time.Duration
	CallTimeout time.Duration
	Limiter     *rate.Limiter
}

// Client 对 eino ChatModel 的封装：限流、单次超时、指数退避重试、JSON 解析
type Client struct {
	model       model.BaseChatModel
	limiter     *rate.Limiter
	maxRetries  int
	baseDelay   time.Duration
	callTimeout time.Duration
	calls       atomic.Int64
}

// NewClient 创建客户端
func NewClient(cm model.BaseChatModel, opts Options) *Client {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{
		model:       cm,
		limiter:     opts.Limiter,
		maxRetries:  opts.MaxRetries,
		baseDelay:   opts.BaseDelay,
		callTimeout: opts.CallTimeout,
	}
}

// NewLimiter 按每分钟请求数和突发量创建限流器
func NewLimiter(rpm, qps int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if qps <= 0 {
		qps = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), qps)
}

// Calls 返回累计的模型调用次数
func (c *Client) Calls() int64 {
	return c.calls.Load()
}

// GenerateJSON 发送 system/user 消息并把回复解析进 out
func (c *Client) GenerateJSON(ctx context.Context, system, user string, out any) error {
	var lastErr error

	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			delay := c.baseDelay * time.Duration(1<<(i-1))
			logger.Log.Warnf("LLM 调用失败，%v 后重试 (%d/%d): %v", delay, i, c.maxRetries, lastErr)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		content, err := c.generate(ctx, system, user)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !IsTransient(err) {
				return fmt.Errorf("llm call failed: %w", err)
			}
			lastErr = err
			continue
		}

		if err := decode(content, out); err != nil {
			lastErr = err
			continue
		}
		if v, ok := out.(Validator); ok {
			if err := v.Validate(); err != nil {
				lastErr = fmt.Errorf("invalid payload: %w", err)
				continue
			}
		}
		return nil
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, c.maxRetries+1, lastErr)
}

func (c *Client) generate(ctx context.Context, system, user string) (string, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}

	c.calls.Add(1)
	resp, err := c.model.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("empty response")
	}
	return resp.Content, nil
}

// IsTransient 限流、超时和 5xx 视为可重试
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "too many requests", "rate limit",
		"timeout", "deadline exceeded", "connection reset", "eof",
		"500", "502", "503", "504", "overloaded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func decode(content string, out any) error {
	clean := CleanJSON(content)
	if clean == "" {
		return errors.New("empty json content")
	}
	if err := json.Unmarshal([]byte(clean), out); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// CleanJSON 去掉 markdown 代码块并截取最外层 JSON
func CleanJSON(content string) string {
	clean := strings.TrimSpace(content)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	start := strings.IndexAny(clean, "{[")
	if start < 0 {
		return clean
	}
	closer := byte('}')
	if clean[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(clean, closer)
	if end < start {
		return clean[start:]
	}
	return clean[start : end+1]
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
