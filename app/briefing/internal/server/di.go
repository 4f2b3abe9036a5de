package server

import (
	"github.com/google/wire"

	"github.com/iWorld-y/trend_briefing/app/briefing/internal/data"
	"github.com/iWorld-y/trend_briefing/app/briefing/internal/repo"
	"github.com/iWorld-y/trend_briefing/app/briefing/internal/service"
	"github.com/iWorld-y/trend_briefing/app/briefing/internal/usecase"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/pipeline"
)

// ProviderSet 是简报服务的依赖注入 Provider 集合
var ProviderSet = wire.NewSet(
	// Server providers
	NewHTTPServer,
	NewGRPCServer,
	NewScheduler,

	// Pipeline providers
	NewBriefingConfig,
	NewPipeline,
	wire.Bind(new(repo.PipelineRepo), new(*pipeline.Orchestrator)),

	// Data providers
	data.NewData,
	data.NewBriefingRepo,

	// UseCase providers
	usecase.NewBriefingUseCase,

	// Service providers
	service.NewBriefingService,
)
