package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/config"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/pipeline"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/render"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/store"
)

var (
	flagconf     string
	flagNotion   bool
	flagAnalysis string
)

func init() {
	flag.StringVar(&flagconf, "conf", "app/briefing/configs/pipeline.yaml", "pipeline config path, eg: -conf pipeline.yaml")
	flag.BoolVar(&flagNotion, "notion", false, "push the briefing to Notion when credentials are configured")
	flag.StringVar(&flagAnalysis, "analysis", pipeline.AnalysisFull, "full, trends_only or synthesis_only (republish latest without a run)")
}

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}

	// 2. 初始化日志
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动 K-beauty 趋势简报...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 初始化存储
	st, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("存储初始化失败: %v", err)
	}
	defer closeStore()

	// 4. 装配管线并同步运行一次
	o, err := pipeline.NewFromConfig(ctx, cfg, st)
	if err != nil {
		logger.Log.Fatalf("管线初始化失败: %v", err)
	}
	b, err := o.RunSync(ctx, pipeline.Request{
		ForceRefresh:      true,
		IncludeNotionPush: flagNotion,
		AnalysisType:      flagAnalysis,
		Source:            "cli",
	})
	if err != nil {
		logger.Log.Fatalf("简报生成失败: %v", err)
	}

	// 5. 文件存储已落盘，其余存储额外导出一份
	if _, ok := st.(store.Artifacts); !ok {
		if err := export(cfg.Output.Dir, b); err != nil {
			logger.Log.Fatalf("导出简报失败: %v", err)
		}
	}

	status := o.Status()
	if d := status.Diagnostics; d != nil {
		logger.Log.Infof("采集 %d 篇，相关 %d 篇，LLM 调用 %d 次，失败来源 %d 个",
			d.ScrapedPosts, d.RelevantPosts, d.LLMCalls, len(d.SourceFailures))
	}
	logger.Log.Infof("✅ 简报生成完毕: %s (%d 个趋势)", b.BriefingID, len(b.TrendAnalysis.Trends))
}

func export(dir string, b *model.DailyBriefing) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, format := range []string{render.FormatMarkdown, render.FormatJSON} {
		data, _, err := render.Render(b, format)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, b.BriefingID+render.Extension(format))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		logger.Log.Infof("已写出 %s", path)
	}
	return nil
}
