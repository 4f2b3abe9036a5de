package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-runewidth"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

var (
	// ErrNoData 尚无任何简报
	ErrNoData = errors.New("no briefing available")
	// ErrNotFound 指定 id 的简报不存在
	ErrNotFound = errors.New("briefing not found")
	// ErrNotIncreasing 新简报 id 未大于当前 latest
	ErrNotIncreasing = errors.New("briefing id is not increasing")
)

// Store 简报持久化契约：只追加，latest 原子切换
type Store interface {
	Put(ctx context.Context, b *model.DailyBriefing) error
	Latest(ctx context.Context) (*model.DailyBriefing, error)
	Get(ctx context.Context, id string) (*model.DailyBriefing, error)
	List(ctx context.Context) ([]model.BriefingListItem, error)
}

// Artifacts 可直接提供已渲染文件的存储
type Artifacts interface {
	Artifact(ctx context.Context, id, format string) ([]byte, error)
}

// PersistenceError 写入失败，本次运行不产生新的 latest
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist briefing %s: %s: %v", e.ID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Summarize 列表摘要按显示宽度截断，0 表示不截断
func Summarize(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
