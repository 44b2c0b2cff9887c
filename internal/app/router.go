package app

import (
	"context"

	"github.com/yungbote/familytree-backend/internal/data/db"
	httpx "github.com/yungbote/familytree-backend/internal/http"
	httpH "github.com/yungbote/familytree-backend/internal/http/handlers"
	"github.com/yungbote/familytree-backend/internal/observability"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, dbs *db.Service, clients Clients, svc Services, metrics *observability.Metrics) *httpx.Server {
	log.Info("Wiring router...")

	checks := map[string]httpH.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := dbs.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"render_tools": svc.Tree.AssertReady,
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}
	if clients.Neo4j != nil {
		checks["neo4j"] = func(ctx context.Context) error { return clients.Neo4j.Driver.VerifyConnectivity(ctx) }
	}

	return httpx.NewServer(httpx.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		AllowedOrigins: cfg.AllowedOrigins,
		ServiceName:    cfg.Otel.ServiceName,
		HealthHandler:  httpH.NewHealthHandler(checks),
		FamilyHandler:  httpH.NewFamilyHandler(svc.Family),
		TreeHandler:    httpH.NewTreeHandler(svc.Tree, log),
	})
}
