package familytree

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

// Unbounded disables a hop limit.
const Unbounded = -1

const DefaultExpandConcurrency = 8

type ExpandOptions struct {
	// Forward limits descendant hops below the root.
	Forward int
	// Backward limits ancestor hops above the root.
	Backward int
	// CrossScope follows relations recorded under other scopes.
	CrossScope bool
	// Scope is the community the expansion is confined to. Empty means the
	// root's own scope.
	Scope string
}

func (o ExpandOptions) allows(gen int) bool {
	if gen < 0 && o.Backward >= 0 && -gen > o.Backward {
		return false
	}
	if gen > 0 && o.Forward >= 0 && gen > o.Forward {
		return false
	}
	return true
}

type Expander struct {
	loader      Loader
	log         *logger.Logger
	concurrency int
}

func NewExpander(loader Loader, log *logger.Logger, concurrency int) *Expander {
	if concurrency <= 0 {
		concurrency = DefaultExpandConcurrency
	}
	return &Expander{
		loader:      loader,
		log:         log.With("component", "TreeExpander"),
		concurrency: concurrency,
	}
}

type candidate struct {
	id  string
	gen int
}

// Expand walks outward from root level by level. Each frontier member
// contributes its partner (same generation), its parent (one generation up)
// and its children in insertion order (one generation down); members outside
// the hop limits are never loaded. The visited set keeps the walk finite on
// a corrupted graph. Loads within one level run concurrently but results
// are placed by candidate index so traversal order is deterministic.
func (x *Expander) Expand(ctx context.Context, root *family.Member, opts ExpandOptions) (*Expansion, error) {
	if root == nil {
		return nil, family.NewError(family.CodeValidation, "expand", "root member required", nil)
	}
	exp := newExpansion(root.ID)
	if !root.HasRelations() {
		exp.link()
		return exp, nil
	}
	scope := opts.Scope
	if scope == "" {
		scope = root.Scope
	}

	frontier := []*Node{exp.add(root, 0, false)}
	levels := 0
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var cands []candidate
		queued := map[string]bool{}
		push := func(id string, gen int) {
			if id == "" || queued[id] || exp.Contains(id) || !opts.allows(gen) {
				return
			}
			queued[id] = true
			cands = append(cands, candidate{id: id, gen: gen})
		}
		for _, n := range frontier {
			if n.Opaque {
				continue
			}
			m := n.Member
			push(m.Partner, n.Generation)
			push(m.Parent, n.Generation-1)
			for _, c := range m.Children {
				push(c, n.Generation+1)
			}
		}
		if len(cands) == 0 {
			break
		}

		loaded := make([]*family.Member, len(cands))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(x.concurrency)
		for i, c := range cands {
			g.Go(func() error {
				m, err := x.loader.Load(gctx, c.id)
				if err != nil {
					return err
				}
				loaded[i] = m
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		next := make([]*Node, 0, len(cands))
		for i, c := range cands {
			m := loaded[i]
			opaque := !opts.CrossScope && outOfScope(m, scope)
			next = append(next, exp.add(m, c.gen, opaque))
		}
		frontier = next
		levels++
	}

	exp.link()
	x.log.Debug("tree expanded",
		"root_id", root.ID,
		"nodes", exp.Len(),
		"levels", levels,
		"forward", opts.Forward,
		"backward", opts.Backward,
		"cross_scope", opts.CrossScope,
	)
	return exp, nil
}

// A member is out of scope when their marriage is recorded under a different
// community. Unmarried members carry no scope and are never out of scope.
func outOfScope(m *family.Member, scope string) bool {
	return scope != "" && m.Scope != "" && m.Scope != scope
}
