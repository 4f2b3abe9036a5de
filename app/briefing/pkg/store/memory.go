package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

// Memory 进程内存储。写入串行，latest 指针在写入完成后原子切换
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]*model.DailyBriefing
	order  []string // 升序
	latest atomic.Pointer[model.DailyBriefing]
	width  int
}

// NewMemory summaryWidth 为列表摘要的显示宽度
func NewMemory(summaryWidth int) *Memory {
	return &Memory{
		byID:  make(map[string]*model.DailyBriefing),
		width: summaryWidth,
	}
}

func (m *Memory) Put(ctx context.Context, b *model.DailyBriefing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil || b.BriefingID == "" {
		return &PersistenceError{Op: "validate", Err: errors.New("briefing id is empty")}
	}
	snap := b.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkNext(snap.BriefingID); err != nil {
		return err
	}
	m.insert(snap)
	return nil
}

// checkNext 调用方须持有锁
func (m *Memory) checkNext(id string) error {
	if last := m.latest.Load(); last != nil && id <= last.BriefingID {
		return fmt.Errorf("%w: %s <= %s", ErrNotIncreasing, id, last.BriefingID)
	}
	return nil
}

func (m *Memory) insert(b *model.DailyBriefing) {
	m.byID[b.BriefingID] = b
	m.order = append(m.order, b.BriefingID)
	m.latest.Store(b)
}

// load 启动时批量装载已有简报，不做递增检查
func (m *Memory) load(items []*model.DailyBriefing) {
	sort.Slice(items, func(i, j int) bool { return items[i].BriefingID < items[j].BriefingID })
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range items {
		if _, ok := m.byID[b.BriefingID]; ok {
			continue
		}
		m.insert(b)
	}
}

func (m *Memory) Latest(ctx context.Context) (*model.DailyBriefing, error) {
	b := m.latest.Load()
	if b == nil {
		return nil, ErrNoData
	}
	return b.Clone(), nil
}

func (m *Memory) Get(ctx context.Context, id string) (*model.DailyBriefing, error) {
	m.mu.RLock()
	b, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b.Clone(), nil
}

func (m *Memory) List(ctx context.Context) ([]model.BriefingListItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]model.BriefingListItem, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		b := m.byID[m.order[i]]
		items = append(items, b.ListItem(Summarize(b.SynthesisResults.ExecutiveSummary, m.width)))
	}
	return items, nil
}

func (m *Memory) has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[id]
	return ok
}
