package familytree

import (
	"context"
	"sync/atomic"

	"github.com/yungbote/familytree-backend/internal/domain/family"
)

// memGraph is an in-memory relationship graph used as a Loader.
type memGraph struct {
	members map[string]*family.Member
	loads   atomic.Int64
}

func newMemGraph() *memGraph {
	return &memGraph{members: map[string]*family.Member{}}
}

func (g *memGraph) get(id string) *family.Member {
	m, ok := g.members[id]
	if !ok {
		m = &family.Member{ID: id}
		g.members[id] = m
	}
	return m
}

func (g *memGraph) marry(a, b, scope string) *memGraph {
	ma, mb := g.get(a), g.get(b)
	ma.Partner, ma.Scope = b, scope
	mb.Partner, mb.Scope = a, scope
	return g
}

func (g *memGraph) adopt(parent string, children ...string) *memGraph {
	p := g.get(parent)
	for _, c := range children {
		p.Children = append(p.Children, c)
		g.get(c).Parent = parent
	}
	return g
}

func (g *memGraph) Load(_ context.Context, id string) (*family.Member, error) {
	g.loads.Add(1)
	return g.root(id), nil
}

// root returns a copy of id's record without counting it as a load.
func (g *memGraph) root(id string) *family.Member {
	m, ok := g.members[id]
	if !ok {
		return &family.Member{ID: id}
	}
	cp := *m
	cp.Children = append([]string(nil), m.Children...)
	return &cp
}

type failingLoader struct{ err error }

func (f failingLoader) Load(context.Context, string) (*family.Member, error) { return nil, f.err }

// scenarioOne is R with parent P, partner S and children C1, C2, plus a
// grandparent and grandchild just outside one hop.
func scenarioOne() *memGraph {
	return newMemGraph().
		marry("R", "S", "guild").
		adopt("GP", "P").
		adopt("P", "R").
		adopt("R", "C1", "C2").
		adopt("C1", "GC")
}
