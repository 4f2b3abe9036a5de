package server

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/iWorld-y/trend_briefing/app/briefing/internal/conf"
)

// HealthService 供探针使用的服务名
const HealthService = "briefing.v1.Briefing"

// NewGRPCServer 未配置地址时返回 nil
func NewGRPCServer(c *conf.Server, logger log.Logger) *grpc.Server {
	if c == nil || c.Grpc == nil || c.Grpc.Addr == "" {
		return nil
	}
	var opts = []grpc.ServerOption{
		grpc.Middleware(
			recovery.Recovery(),
		),
		grpc.Address(c.Grpc.Addr),
		// 健康检查由下方自行注册，按服务名上报状态
		grpc.CustomHealth(),
	}
	if c.Grpc.Timeout != "" {
		if d, err := time.ParseDuration(c.Grpc.Timeout); err == nil {
			opts = append(opts, grpc.Timeout(d))
		}
	}

	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, newHealthServer())
	log.NewHelper(logger).Infof("grpc health service listening on %s", c.Grpc.Addr)
	return srv
}

func newHealthServer() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	return hs
}
