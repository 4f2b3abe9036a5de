package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/render"
)

// File 输出目录存储：每份简报写 <id>.json 与 <id>.md，内存索引负责查询
type File struct {
	dir string
	mu  sync.Mutex
	mem *Memory
}

// NewFile 打开输出目录并从已有 JSON 产物重建索引
func NewFile(dir string, summaryWidth int) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f := &File{dir: dir, mem: NewMemory(summaryWidth)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	var items []*model.DailyBriefing
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			logger.Log.Warnf("读取简报失败 [%s]: %v", e.Name(), err)
			continue
		}
		b, err := render.ParseJSON(data)
		if err != nil {
			logger.Log.Warnf("跳过无法解析的简报 [%s]: %v", e.Name(), err)
			continue
		}
		items = append(items, b)
	}
	f.mem.load(items)
	if len(items) > 0 {
		logger.Log.Infof("已从 %s 载入 %d 份简报", dir, len(items))
	}
	return f, nil
}

func (f *File) Put(ctx context.Context, b *model.DailyBriefing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil || b.BriefingID == "" {
		return &PersistenceError{Op: "validate", Err: errors.New("briefing id is empty")}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.mem.mu.RLock()
	err := f.mem.checkNext(b.BriefingID)
	f.mem.mu.RUnlock()
	if err != nil {
		return err
	}

	// 索引由 JSON 重建，JSON 必须最后写入；任一步失败都清掉已写的产物
	var written []string
	for _, format := range []string{render.FormatMarkdown, render.FormatJSON} {
		data, _, err := render.Render(b, format)
		if err == nil {
			path := f.path(b.BriefingID, format)
			if err = writeAtomic(path, data); err == nil {
				written = append(written, path)
				continue
			}
		}
		for _, path := range written {
			os.Remove(path)
		}
		return &PersistenceError{Op: "write " + format, ID: b.BriefingID, Err: err}
	}
	// 文件落盘后才切换 latest
	f.mem.mu.Lock()
	f.mem.insert(b.Clone())
	f.mem.mu.Unlock()
	return nil
}

func (f *File) Latest(ctx context.Context) (*model.DailyBriefing, error) {
	return f.mem.Latest(ctx)
}

func (f *File) Get(ctx context.Context, id string) (*model.DailyBriefing, error) {
	return f.mem.Get(ctx, id)
}

func (f *File) List(ctx context.Context) ([]model.BriefingListItem, error) {
	return f.mem.List(ctx)
}

// Artifact 读取已落盘的渲染结果，只接受索引中存在的 id
func (f *File) Artifact(ctx context.Context, id, format string) ([]byte, error) {
	if !render.Supported(format) {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if !f.mem.has(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	data, err := os.ReadFile(f.path(id, format))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s%s", ErrNotFound, id, render.Extension(format))
	}
	return data, err
}

// Dir 输出目录
func (f *File) Dir() string {
	return f.dir
}

func (f *File) path(id, format string) string {
	return filepath.Join(f.dir, filepath.Base(id)+render.Extension(format))
}

// writeAtomic 先写临时文件再 rename，读者不会看到写了一半的文件
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+"-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
