package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/modules/familytree"
	"github.com/yungbote/familytree-backend/internal/observability"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
	"github.com/yungbote/familytree-backend/internal/platform/rendertools"
)

// ErrStageFailed marks every external tool failure returned by Render.
var ErrStageFailed = errors.New("render stage failed")

// failureMessage is all a caller ever sees of a tool failure; details go to
// the log.
const failureMessage = "the family tree could not be drawn right now"

type State string

const (
	StateIdle                State = "idle"
	StateConvertingStructure State = "converting_structure"
	StateRasterizing         State = "rasterizing"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

type Config struct {
	WorkDir       string
	Format        string
	Cleanup       CleanupPolicy
	Naming        NamingPolicy
	MaxConcurrent int
}

// Result is a successful render. Callers must call Release once they have
// consumed ImagePath; until then a keyed render holds its key.
type Result struct {
	ImagePath   string
	Artifacts   Artifacts
	Transitions []State
	Stages      []*rendertools.StageResult

	releaseOnce sync.Once
	release     func() error
	releaseErr  error
}

func (r *Result) Release() error {
	if r == nil {
		return nil
	}
	r.releaseOnce.Do(func() {
		if r.release != nil {
			r.releaseErr = r.release()
		}
	})
	return r.releaseErr
}

type Pipeline struct {
	tools   rendertools.Tools
	locker  Locker
	sem     *semaphore.Weighted
	cfg     Config
	metrics *observability.Metrics
	log     *logger.Logger

	// onTransition observes every state change.
	onTransition func(artifactKey string, s State)
}

func NewPipeline(tools rendertools.Tools, locker Locker, cfg Config, metrics *observability.Metrics, log *logger.Logger) *Pipeline {
	if cfg.Format == "" {
		cfg.Format = "png"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.Cleanup == "" {
		cfg.Cleanup = CleanupKeep
	}
	if cfg.Naming == "" {
		cfg.Naming = NamingKeyed
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &Pipeline{
		tools:   tools,
		locker:  locker,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cfg:     cfg,
		metrics: metrics,
		log:     log.With("service", "RenderPipeline"),
	}
}

// AssertReady checks the external binaries and the work directory.
func (p *Pipeline) AssertReady(ctx context.Context) error {
	return p.tools.AssertReady(ctx)
}

// run tracks one request through the state machine.
type run struct {
	key         string
	state       State
	transitions []State
	observe     func(artifactKey string, s State)
}

func (r *run) to(s State) {
	r.state = s
	r.transitions = append(r.transitions, s)
	if r.observe != nil {
		r.observe(r.key, s)
	}
}

// Render writes treeText, converts it to a graph description and rasterizes
// that into an image. The rasterizer only starts after the converter exited
// zero. Any failure is returned as an external_tool error wrapping
// ErrStageFailed and the underlying *rendertools.StageError.
func (p *Pipeline) Render(ctx context.Context, rootLabel, treeText, artifactKey string) (*Result, error) {
	ctx, span := observability.Tracer().Start(ctx, "tree.render")
	defer span.End()

	stem := SafeKey(artifactKey)
	if stem == "" {
		return nil, family.NewError(family.CodeValidation, "render", "artifact key required", nil)
	}
	span.SetAttributes(attribute.String("render.artifact_key", stem), attribute.String("render.naming", string(p.cfg.Naming)))

	// Take a concurrency slot before the key lock so a queued request never
	// holds its key while it waits.
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, family.Wrap(family.CodeInternal, "render.acquire", err)
	}
	unlock := func() {}
	if p.cfg.Naming == NamingKeyed {
		u, err := p.locker.Lock(ctx, stem)
		if err != nil {
			p.sem.Release(1)
			return nil, family.Wrap(family.CodeInternal, "render.lock", err)
		}
		unlock = u
	} else {
		stem = stem + "-" + uuid.NewString()
	}
	paths := artifactsFor(p.cfg.WorkDir, stem, p.cfg.Format)

	r := &run{key: stem, observe: p.observe}
	r.to(StateIdle)
	stages, err := p.execute(ctx, r, rootLabel, treeText, artifactKey, paths)
	p.sem.Release(1)

	if err != nil {
		if p.cfg.Cleanup != CleanupKeep {
			if rmErr := removeFiles(paths.Text, paths.Graph, paths.Image); rmErr != nil {
				p.log.Warn("failed to remove partial artifacts", "artifact_key", stem, "error", rmErr)
			}
		}
		unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		p.metrics.ObserveRender("failed")
		return nil, err
	}

	if p.cfg.Cleanup != CleanupKeep {
		if rmErr := removeFiles(paths.Text, paths.Graph); rmErr != nil {
			p.log.Warn("failed to remove intermediate artifacts", "artifact_key", stem, "error", rmErr)
		}
	}
	p.metrics.ObserveRender("done")

	cleanup := p.cfg.Cleanup
	res := &Result{
		ImagePath:   paths.Image,
		Artifacts:   paths,
		Transitions: r.transitions,
		Stages:      stages,
	}
	res.release = func() error {
		defer unlock()
		if cleanup == CleanupAll {
			return removeFiles(paths.Image)
		}
		return nil
	}
	return res, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run, rootLabel, treeText, artifactKey string, paths Artifacts) ([]*rendertools.StageResult, error) {
	var stages []*rendertools.StageResult

	r.to(StateConvertingStructure)
	if err := os.MkdirAll(p.cfg.WorkDir, 0o755); err != nil {
		r.to(StateFailed)
		return stages, p.fail(rendertools.StageConvert, artifactKey, &rendertools.StageError{Stage: rendertools.StageConvert, SpawnFailed: true, Err: err})
	}
	if err := os.WriteFile(paths.Text, []byte(treeText), 0o644); err != nil {
		r.to(StateFailed)
		return stages, p.fail(rendertools.StageConvert, artifactKey, &rendertools.StageError{Stage: rendertools.StageConvert, SpawnFailed: true, Err: err})
	}

	label := familytree.SanitizeLabel(rootLabel, artifactKey)
	res, err := p.stage(ctx, rendertools.StageConvert, func(ctx context.Context) (*rendertools.StageResult, error) {
		return p.tools.ConvertTree(ctx, rendertools.ConvertRequest{RootLabel: label, TreePath: paths.Text, OutPath: paths.Graph})
	})
	if res != nil {
		stages = append(stages, res)
	}
	if err != nil {
		r.to(StateFailed)
		return stages, p.fail(rendertools.StageConvert, artifactKey, err)
	}

	r.to(StateRasterizing)
	res, err = p.stage(ctx, rendertools.StageRasterize, func(ctx context.Context) (*rendertools.StageResult, error) {
		return p.tools.Rasterize(ctx, rendertools.RasterizeRequest{GraphPath: paths.Graph, OutPath: paths.Image})
	})
	if res != nil {
		stages = append(stages, res)
	}
	if err != nil {
		r.to(StateFailed)
		return stages, p.fail(rendertools.StageRasterize, artifactKey, err)
	}

	r.to(StateDone)
	return stages, nil
}

func (p *Pipeline) stage(ctx context.Context, stage rendertools.Stage, fn func(context.Context) (*rendertools.StageResult, error)) (*rendertools.StageResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "render."+string(stage))
	defer span.End()

	res, err := fn(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage)+" failed")
	}
	if res != nil {
		span.SetAttributes(attribute.Int("process.exit_code", res.ExitCode))
		p.metrics.ObserveStage(string(stage), outcome, res.Duration)
	}
	return res, err
}

func (p *Pipeline) observe(key string, s State) {
	p.log.Debug("render state", "artifact_key", key, "state", s)
	if p.onTransition != nil {
		p.onTransition(key, s)
	}
}

// fail logs the full process detail and returns the caller-facing error.
func (p *Pipeline) fail(stage rendertools.Stage, artifactKey string, err error) error {
	kv := []interface{}{"stage", stage, "artifact_key", artifactKey, "error", err}
	var se *rendertools.StageError
	if errors.As(err, &se) {
		kv = append(kv,
			"exit_code", se.ExitCode,
			"timed_out", se.TimedOut,
			"spawn_failed", se.SpawnFailed,
			"output", string(se.Output),
		)
	}
	p.log.Error("render stage failed", kv...)
	return family.NewError(family.CodeExternalTool, "render", failureMessage, fmt.Errorf("%w: %w", ErrStageFailed, err))
}
