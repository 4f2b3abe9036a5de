package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/config"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
)

// Open 按 output.store 选择存储实现，cleanup 释放连接
func Open(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	width := cfg.Output.SummaryWidth
	switch strings.ToLower(cfg.Output.Store) {
	case "memory":
		return NewMemory(width), func() {}, nil
	case "file":
		f, err := NewFile(cfg.Output.Dir, width)
		if err != nil {
			return nil, nil, err
		}
		return f, func() {}, nil
	case "postgres":
		p, err := OpenPostgres(ctx, cfg.DB.ConnString(), width)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			logger.Log.Info("关闭数据库连接")
			p.Close()
		}
		return p, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown store: %s", cfg.Output.Store)
	}
}
