package app

import (
	"github.com/yungbote/familytree-backend/internal/data/graph"
	repos "github.com/yungbote/familytree-backend/internal/data/repos/family"
	"github.com/yungbote/familytree-backend/internal/modules/familytree"
	"github.com/yungbote/familytree-backend/internal/modules/familytree/render"
	"github.com/yungbote/familytree-backend/internal/observability"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
	"github.com/yungbote/familytree-backend/internal/platform/redis"
	"github.com/yungbote/familytree-backend/internal/platform/rendertools"
	"github.com/yungbote/familytree-backend/internal/services"
)

type Services struct {
	Family   services.FamilyService
	Tree     services.TreeService
	Pipeline *render.Pipeline
	Tools    rendertools.Tools
}

func wireServices(log *logger.Logger, cfg Config, store *repos.RelationStore, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	cleanup, err := render.ParseCleanupPolicy(cfg.Tree.Cleanup)
	if err != nil {
		return Services{}, err
	}
	naming, err := render.ParseNamingPolicy(cfg.Tree.Naming)
	if err != nil {
		return Services{}, err
	}

	tools := rendertools.New(rendertools.Config{
		ConverterBin:    cfg.Tree.ConverterBin,
		ConverterScript: cfg.Tree.ConverterScript,
		ConverterMode:   cfg.Tree.ConverterMode,
		RasterizerBin:   cfg.Tree.RasterizerBin,
		Format:          cfg.Tree.Format,
		Charset:         cfg.Tree.Charset,
		CanvasSize:      cfg.Tree.CanvasSize,
		DPI:             cfg.Tree.DPI,
		WorkDir:         cfg.Tree.WorkDir,
		Timeout:         cfg.Tree.StageTimeout,
	}, log)

	var locker render.Locker
	if clients.Redis != nil {
		locker = redis.NewArtifactLock(clients.Redis, log, cfg.Redis.LockTTL)
	}
	pipeline := render.NewPipeline(tools, locker, render.Config{
		WorkDir:       cfg.Tree.WorkDir,
		Format:        cfg.Tree.Format,
		Cleanup:       cleanup,
		Naming:        naming,
		MaxConcurrent: cfg.Tree.MaxConcurrent,
	}, metrics, log)

	loader := familytree.NewGraphLoader(store, log)
	expander := familytree.NewExpander(loader, log, cfg.Tree.ExpandWorkers)
	mirror := graph.NewFamilyGraph(clients.Neo4j, log)

	return Services{
		Family:   services.NewFamilyService(store, mirror, metrics, log),
		Tree:     services.NewTreeService(loader, expander, store, pipeline, cfg.Tree.GedcomSource, metrics, log),
		Pipeline: pipeline,
		Tools:    tools,
	}, nil
}
