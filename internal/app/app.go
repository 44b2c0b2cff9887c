package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/yungbote/familytree-backend/internal/data/db"
	repos "github.com/yungbote/familytree-backend/internal/data/repos/family"
	httpx "github.com/yungbote/familytree-backend/internal/http"
	"github.com/yungbote/familytree-backend/internal/observability"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *db.Service
	Clients  Clients
	Store    *repos.RelationStore
	Services Services
	Metrics  *observability.Metrics
	Server   *httpx.Server

	shutdownOtel func(context.Context) error
}

// New loads configuration and wires every dependency. Callers must Close
// the returned App.
func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := NewWithConfig(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

func NewWithConfig(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Otel.Environment,
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		Headers:     observability.ParseHeaders(cfg.Otel.Headers),
		SampleRatio: cfg.Otel.SampleRatio,
	})

	dbs, err := db.Open(db.Config{
		Driver:          cfg.DB.Driver,
		URL:             cfg.DB.URL,
		Host:            cfg.DB.Host,
		Port:            cfg.DB.Port,
		User:            cfg.DB.User,
		Password:        cfg.DB.Password,
		Name:            cfg.DB.Name,
		SSLMode:         cfg.DB.SSLMode,
		SQLitePath:      cfg.DB.SQLitePath,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}, log)
	if err != nil {
		_ = shutdownOtel(ctx)
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		_ = dbs.Close()
		_ = shutdownOtel(ctx)
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = dbs.Close()
		_ = shutdownOtel(ctx)
		return nil, err
	}

	metrics := observability.NewMetrics()
	store := repos.NewRelationStore(dbs.DB(), log, cfg.IDMaxAttempts)
	svc, err := wireServices(log, cfg, store, clients, metrics)
	if err != nil {
		clients.Close(ctx)
		_ = dbs.Close()
		_ = shutdownOtel(ctx)
		return nil, err
	}

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           dbs,
		Clients:      clients,
		Store:        store,
		Services:     svc,
		Metrics:      metrics,
		Server:       wireServer(log, cfg, dbs, clients, svc, metrics),
		shutdownOtel: shutdownOtel,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.Services.Tools.AssertReady(ctx); err != nil {
		a.Log.Warn("render tools not ready; image requests will fail", "error", err)
	}

	addr := ":" + strconv.Itoa(a.Cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("HTTP server listening", "addr", addr)
		errCh <- a.Server.Run(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.Log.Info("HTTP server shutting down")
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.Clients.Close(ctx)
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.shutdownOtel != nil {
		_ = a.shutdownOtel(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
