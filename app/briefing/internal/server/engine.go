package server

import (
	"context"
	"os"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/trend_briefing/app/briefing/internal/conf"
	"github.com/iWorld-y/trend_briefing/app/briefing/internal/data"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/config"
	bLogger "github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/pipeline"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/scheduler"
)

const shutdownTimeout = 30 * time.Second

// NewBriefingConfig 将 internal/conf.Briefing 转换为 pkg/config.Config
func NewBriefingConfig(c *conf.Briefing, d *conf.Data, logger log.Logger) (*config.Config, error) {
	helper := log.NewHelper(logger)

	cfg := config.Default()
	if c != nil && c.ConfigFile != "" {
		loaded, err := config.LoadConfig(c.ConfigFile)
		if err != nil {
			helper.Errorf("Failed to load pipeline config %s: %v", c.ConfigFile, err)
			return nil, err
		}
		cfg = loaded
	}
	if err := overlay(cfg, c); err != nil {
		return nil, err
	}
	if d != nil && d.Database != nil && d.Database.Source != "" {
		cfg.DB.DSN = d.Database.Source
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		helper.Errorf("Invalid briefing config: %v", err)
		return nil, err
	}

	// 初始化日志
	if err := bLogger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		helper.Errorf("Failed to init briefing logger: %v", err)
		_ = bLogger.InitLogger("info", "") // 降级处理
	}
	return cfg, nil
}

func overlay(cfg *config.Config, c *conf.Briefing) error {
	if c == nil {
		return nil
	}
	if c.Llm != nil {
		setString(&cfg.LLM.BaseURL, c.Llm.BaseUrl)
		setString(&cfg.LLM.APIKey, c.Llm.ApiKey)
		setString(&cfg.LLM.Model, c.Llm.Model)
	}
	if c.Output != nil {
		setString(&cfg.Output.Store, c.Output.Store)
		setString(&cfg.Output.Dir, c.Output.Dir)
	}
	if c.Notion != nil {
		setString(&cfg.Notion.Token, c.Notion.Token)
		setString(&cfg.Notion.DatabaseID, c.Notion.DatabaseId)
	}
	if c.Pipeline != nil {
		if err := setDuration(&cfg.Pipeline.Cooldown, c.Pipeline.Cooldown); err != nil {
			return err
		}
		if err := setDuration(&cfg.Pipeline.RunTimeout, c.Pipeline.RunTimeout); err != nil {
			return err
		}
	}
	if c.Schedule != nil {
		cfg.Schedule.Enabled = c.Schedule.Enabled
		setString(&cfg.Schedule.Time, c.Schedule.Time)
		setString(&cfg.Schedule.Timezone, c.Schedule.Timezone)
	}
	if c.Log != nil {
		setString(&cfg.Log.Level, c.Log.Level)
		setString(&cfg.Log.File, c.Log.File)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *config.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = config.Duration(d)
	return nil
}

// NewPipeline 初始化编排器，cleanup 等待进行中的运行结束
func NewPipeline(cfg *config.Config, d *data.Data, logger log.Logger) (*pipeline.Orchestrator, func(), error) {
	o, err := pipeline.NewFromConfig(context.Background(), cfg, d.Store())
	if err != nil {
		log.NewHelper(logger).Errorf("Failed to init pipeline: %v", err)
		return nil, nil, err
	}

	cleanup := func() {
		log.NewHelper(logger).Info("Shutting down briefing pipeline")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := o.Shutdown(ctx); err != nil {
			log.NewHelper(logger).Warnf("pipeline shutdown: %v", err)
		}
	}
	return o, cleanup, nil
}

// NewScheduler 未启用时返回 nil
func NewScheduler(cfg *config.Config, o *pipeline.Orchestrator, logger log.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Schedule.Enabled {
		return nil, nil
	}
	s, err := scheduler.New(cfg.Schedule, o)
	if err != nil {
		log.NewHelper(logger).Errorf("Failed to init scheduler: %v", err)
		return nil, err
	}
	log.NewHelper(logger).Infof("daily briefing scheduled at %s (%s)", cfg.Schedule.Time, cfg.Schedule.Timezone)
	return s, nil
}
