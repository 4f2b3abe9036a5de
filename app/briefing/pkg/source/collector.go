package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

var (
	// ErrAllSourcesFailed 所有采集源都失败
	ErrAllSourcesFailed = errors.New("all sources failed")
	// ErrNoSources 没有可用的采集源
	ErrNoSources = errors.New("no sources configured")
)

// Failure 单个采集源的失败，不影响其他源
type Failure struct {
	Source string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("source %s: %v", f.Source, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Result 采集结果
type Result struct {
	Posts    []model.ScrapedPost
	Failures []Failure
}

// Collector 并发采集所有源
type Collector struct {
	registry       *Registry
	concurrency    int
	timeout        time.Duration
	defaultTimeout time.Duration
}

// NewCollector concurrency 为并发上限，timeout 为整体时限（0 表示只受上层 ctx 约束）
func NewCollector(registry *Registry, concurrency int, timeout time.Duration) *Collector {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Collector{
		registry:       registry,
		concurrency:    concurrency,
		timeout:        timeout,
		defaultTimeout: 30 * time.Second,
	}
}

// Collect 部分失败记录在 Result.Failures 中；全部失败时返回 ErrAllSourcesFailed
func (c *Collector) Collect(ctx context.Context, descs []Descriptor) (*Result, error) {
	if len(descs) == 0 {
		return &Result{}, ErrNoSources
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	perSource := make([][]model.ScrapedPost, len(descs))
	errs := make([]error, len(descs))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, d := range descs {
		g.Go(func() error {
			perSource[i], errs[i] = c.fetchOne(runCtx, d)
			return nil
		})
	}
	_ = g.Wait()

	// 上层取消（运行整体超时）直接返回，不产生部分结果
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	seen := make(map[string]bool)
	for i, d := range descs {
		if errs[i] != nil {
			f := Failure{Source: d.Name, Err: errs[i]}
			logger.Log.WithField("source", d.Name).Warnf("采集失败: %v", errs[i])
			res.Failures = append(res.Failures, f)
			continue
		}

		n := 0
		for _, p := range perSource[i] {
			if d.MaxPosts > 0 && n >= d.MaxPosts {
				break
			}
			if key := urlKey(p.URL); key != "" {
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			n++
			if p.SourceName == "" {
				p.SourceName = d.Name
			}
			if p.ID == "" {
				p.ID = fmt.Sprintf("%s_%d", d.Name, n)
			}
			res.Posts = append(res.Posts, p)
		}
		logger.Log.WithField("source", d.Name).Infof("采集完成，获得 %d 条内容", n)
	}

	if len(res.Failures) == len(descs) {
		names := make([]string, 0, len(res.Failures))
		for _, f := range res.Failures {
			names = append(names, f.Error())
		}
		return res, fmt.Errorf("%w: %s", ErrAllSourcesFailed, strings.Join(names, "; "))
	}
	return res, nil
}

func (c *Collector) fetchOne(ctx context.Context, d Descriptor) (posts []model.ScrapedPost, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := c.registry.Resolve(d.Strategy)
	if err != nil {
		return nil, err
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	posts, err = f.Fetch(fctx, d)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		logger.Log.WithField("source", d.Name).Warn("采集源没有返回任何内容")
	}
	return posts, nil
}

func urlKey(u string) string {
	u = strings.TrimSpace(u)
	u = strings.TrimSuffix(u, "/")
	return strings.ToLower(u)
}
