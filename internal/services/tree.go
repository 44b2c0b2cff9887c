package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/modules/familytree"
	"github.com/yungbote/familytree-backend/internal/modules/familytree/render"
	"github.com/yungbote/familytree-backend/internal/observability"
	"github.com/yungbote/familytree-backend/internal/platform/ctxutil"
	"github.com/yungbote/familytree-backend/internal/platform/dbctx"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

// TreeRequest selects the part of the graph drawn around RootID.
type TreeRequest struct {
	RootID string
	// Depth <= 0 means unbounded. Otherwise ancestors are followed Depth
	// hops and descendants twice as far.
	Depth int
	// Global follows relations recorded under other scopes.
	Global bool
	// Scope overrides the root's own marriage scope.
	Scope string
}

// Options maps a request onto expansion options.
func (r TreeRequest) Options() familytree.ExpandOptions {
	opts := familytree.ExpandOptions{
		Forward:    familytree.Unbounded,
		Backward:   familytree.Unbounded,
		CrossScope: r.Global,
		Scope:      strings.TrimSpace(r.Scope),
	}
	if r.Depth > 0 {
		opts.Backward = r.Depth
		opts.Forward = r.Depth * 2
	}
	return opts
}

// LabelSource resolves display names for member ids.
type LabelSource interface {
	DisplayNames(dbc dbctx.Context, memberIDs []string) (map[string]string, error)
}

// Renderer turns tree-text into an image.
type Renderer interface {
	AssertReady(ctx context.Context) error
	Render(ctx context.Context, rootLabel, treeText, artifactKey string) (*render.Result, error)
}

// Tree is one expansion with its resolved labels.
type Tree struct {
	Expansion *familytree.Expansion
	Labels    familytree.Labels
}

type TreeService interface {
	Expand(ctx context.Context, req TreeRequest) (*Tree, error)
	TreeText(ctx context.Context, req TreeRequest) (string, error)
	// Gedcom returns the download file name and the GEDCOM body.
	Gedcom(ctx context.Context, req TreeRequest) (string, string, error)
	// RenderImage runs the pipeline; the caller must Release the result.
	RenderImage(ctx context.Context, req TreeRequest) (*render.Result, error)
	AssertReady(ctx context.Context) error
}

type treeService struct {
	loader   familytree.Loader
	expander *familytree.Expander
	labels   LabelSource
	renderer Renderer
	source   string
	metrics  *observability.Metrics
	log      *logger.Logger
}

func NewTreeService(loader familytree.Loader, expander *familytree.Expander, labels LabelSource, renderer Renderer, gedcomSource string, metrics *observability.Metrics, log *logger.Logger) TreeService {
	return &treeService{
		loader:   loader,
		expander: expander,
		labels:   labels,
		renderer: renderer,
		source:   gedcomSource,
		metrics:  metrics,
		log:      log.With("service", "TreeService"),
	}
}

// Expand loads the root and walks the graph. A root without relations is
// ErrNoFamily.
func (s *treeService) Expand(ctx context.Context, req TreeRequest) (*Tree, error) {
	rootID, err := ValidateMemberID("tree", req.RootID)
	if err != nil {
		return nil, err
	}
	opts := req.Options()

	ctx, span := observability.Tracer().Start(ctx, "tree.expand")
	defer span.End()
	span.SetAttributes(
		attribute.Int("tree.forward", opts.Forward),
		attribute.Int("tree.backward", opts.Backward),
		attribute.Bool("tree.cross_scope", opts.CrossScope),
	)

	root, err := s.loader.Load(ctx, rootID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load root failed")
		return nil, err
	}
	exp, err := s.expander.Expand(ctx, root, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "expand failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("tree.nodes", exp.Len()))
	s.metrics.ObserveExpansion(exp.Len())
	if exp.Empty() {
		return nil, family.ErrNoFamily
	}

	names, err := s.labels.DisplayNames(dbctx.Context{Ctx: ctx}, exp.IDs())
	if err != nil {
		return nil, err
	}
	return &Tree{Expansion: exp, Labels: familytree.Labels(names)}, nil
}

func (s *treeService) TreeText(ctx context.Context, req TreeRequest) (string, error) {
	tree, err := s.Expand(ctx, req)
	if err != nil {
		return "", err
	}
	return familytree.SerializeTreeText(tree.Expansion, tree.Labels), nil
}

func (s *treeService) Gedcom(ctx context.Context, req TreeRequest) (string, string, error) {
	tree, err := s.Expand(ctx, req)
	if err != nil {
		return "", "", err
	}
	body := familytree.SerializeGedcom(tree.Expansion, tree.Labels, s.source)
	return familytree.GedcomFilename(tree.Expansion.RootID), body, nil
}

func (s *treeService) RenderImage(ctx context.Context, req TreeRequest) (*render.Result, error) {
	tree, err := s.Expand(ctx, req)
	if err != nil {
		return nil, err
	}
	rootID := tree.Expansion.RootID
	text := familytree.SerializeTreeText(tree.Expansion, tree.Labels)
	res, err := s.renderer.Render(ctx, tree.Labels[rootID], text, rootID)
	if err != nil {
		return nil, err
	}
	s.log.Info("tree rendered", append(ctxutil.LogFields(ctx), "root_id", rootID, "nodes", tree.Expansion.Len())...)
	return res, nil
}

func (s *treeService) AssertReady(ctx context.Context) error {
	if s.renderer == nil {
		return family.NewError(family.CodeInternal, "assert_ready", "renderer not configured", nil)
	}
	return s.renderer.AssertReady(ctx)
}
