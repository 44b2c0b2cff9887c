package familytree

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

func newTestExpander(l Loader, concurrency int) *Expander {
	return NewExpander(l, logger.NewNop(), concurrency)
}

func generations(exp *Expansion) map[string]int {
	out := map[string]int{}
	for _, n := range exp.Nodes {
		out[n.ID()] = n.Generation
	}
	return out
}

func TestExpand_OneHopEachWay(t *testing.T) {
	g := scenarioOne()
	exp, err := newTestExpander(g, 4).Expand(context.Background(), g.root("R"), ExpandOptions{Forward: 1, Backward: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"R", "S", "P", "C1", "C2"}, exp.IDs())
	assert.Equal(t, map[string]int{"R": 0, "S": 0, "P": -1, "C1": 1, "C2": 1}, generations(exp))
	assert.Equal(t, "P", exp.ParentOf("R"))
	assert.Equal(t, []string{"C1", "C2"}, exp.ChildrenOf("R"))
	assert.Equal(t, "S", exp.PartnerOf("R"))
	assert.Equal(t, "R", exp.PartnerOf("S"))
}

func TestExpand_NoRelationsIsEmpty(t *testing.T) {
	g := newMemGraph()
	exp, err := newTestExpander(g, 1).Expand(context.Background(), g.root("lonely"), ExpandOptions{Forward: Unbounded, Backward: Unbounded})
	require.NoError(t, err)
	assert.True(t, exp.Empty())
	assert.Equal(t, "", SerializeTreeText(exp, nil))
	assert.Equal(t, "", SerializeGedcom(exp, nil, ""))
	assert.Zero(t, g.loads.Load())
}

func TestExpand_PartnersDoNotConsumeDepth(t *testing.T) {
	g := scenarioOne()
	exp, err := newTestExpander(g, 2).Expand(context.Background(), g.root("R"), ExpandOptions{Forward: 0, Backward: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"R", "S"}, exp.IDs())
}

func TestExpand_DepthBound(t *testing.T) {
	g := newMemGraph()
	chain := []string{"a0", "a1", "a2", "a3", "a4", "a5", "a6"}
	for i := 0; i+1 < len(chain); i++ {
		g.adopt(chain[i], chain[i+1])
	}
	for f := 0; f <= 3; f++ {
		for b := 0; b <= 3; b++ {
			exp, err := newTestExpander(g, 3).Expand(context.Background(), g.root("a3"), ExpandOptions{Forward: f, Backward: b})
			require.NoError(t, err)
			for _, n := range exp.Nodes {
				assert.LessOrEqual(t, n.Generation, f, "forward=%d backward=%d node=%s", f, b, n.ID())
				assert.GreaterOrEqual(t, n.Generation, -b, "forward=%d backward=%d node=%s", f, b, n.ID())
			}
			assert.Equal(t, 1+f+b, exp.Len(), "forward=%d backward=%d", f, b)
		}
	}
}

func TestExpand_UnboundedReturnsConnectedComponent(t *testing.T) {
	g := scenarioOne().
		marry("C2", "X", "guild").
		adopt("XP", "X").
		adopt("P", "SIB").
		adopt("unrelated", "other")

	exp, err := newTestExpander(g, 4).Expand(context.Background(), g.root("R"), ExpandOptions{Forward: Unbounded, Backward: Unbounded})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"R", "S", "P", "GP", "SIB", "C1", "C2", "GC", "X", "XP"}, exp.IDs())
}

func TestExpand_TerminatesOnCorruptedCycle(t *testing.T) {
	g := newMemGraph()
	// a -> b -> c -> a, which the mutation layer would never allow.
	g.get("a").Children = []string{"b"}
	g.get("b").Children = []string{"c"}
	g.get("c").Children = []string{"a"}
	g.get("a").Parent = "c"
	g.get("b").Parent = "a"
	g.get("c").Parent = "b"

	exp, err := newTestExpander(g, 2).Expand(context.Background(), g.root("a"), ExpandOptions{Forward: Unbounded, Backward: Unbounded})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, exp.IDs())

	text := SerializeTreeText(exp, nil)
	assert.Contains(t, text, "(id=a)")
	assert.Contains(t, text, "(id=b)")
	assert.Contains(t, text, "(id=c)")
}

func TestExpand_CrossScopeNeighboursAreOpaque(t *testing.T) {
	g := newMemGraph().
		marry("R", "S", "g1").
		adopt("R", "C").
		marry("C", "D", "g2").
		adopt("C", "CC")

	exp, err := newTestExpander(g, 2).Expand(context.Background(), g.root("R"), ExpandOptions{Forward: Unbounded, Backward: Unbounded})
	require.NoError(t, err)
	assert.Equal(t, []string{"R", "S", "C"}, exp.IDs())
	c, ok := exp.Get("C")
	require.True(t, ok)
	assert.True(t, c.Opaque)
	assert.Equal(t, []string{"C"}, exp.ChildrenOf("R"))

	global, err := newTestExpander(g, 2).Expand(context.Background(), g.root("R"), ExpandOptions{Forward: Unbounded, Backward: Unbounded, CrossScope: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"R", "S", "C", "D", "CC"}, global.IDs())
	for _, n := range global.Nodes {
		assert.False(t, n.Opaque, n.ID())
	}
}

func TestExpand_ExplicitScopeOverridesRoot(t *testing.T) {
	g := newMemGraph().
		marry("R", "S", "g1").
		adopt("R", "C").
		marry("C", "D", "g2")

	exp, err := newTestExpander(g, 2).Expand(context.Background(), g.root("R"), ExpandOptions{Forward: Unbounded, Backward: Unbounded, Scope: "g2"})
	require.NoError(t, err)
	s, _ := exp.Get("S")
	assert.True(t, s.Opaque)
	d, ok := exp.Get("D")
	require.True(t, ok)
	assert.False(t, d.Opaque)
}

func TestExpand_DeterministicAcrossConcurrency(t *testing.T) {
	g := scenarioOne().adopt("R", "C3", "C4", "C5").adopt("C3", "G1", "G2")
	opts := ExpandOptions{Forward: Unbounded, Backward: Unbounded}

	serial, err := newTestExpander(g, 1).Expand(context.Background(), g.root("R"), opts)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		parallel, err := newTestExpander(g, 16).Expand(context.Background(), g.root("R"), opts)
		require.NoError(t, err)
		require.Equal(t, serial.IDs(), parallel.IDs())
		require.Equal(t, SerializeTreeText(serial, nil), SerializeTreeText(parallel, nil))
		require.Equal(t, SerializeGedcom(serial, nil, ""), SerializeGedcom(parallel, nil, ""))
	}
}

func TestExpand_LoaderErrorPropagates(t *testing.T) {
	boom := family.NewError(family.CodePersistence, "get_relations", "pool exhausted", nil)
	root := &family.Member{ID: "R", Partner: "S"}
	_, err := newTestExpander(failingLoader{err: boom}, 2).Expand(context.Background(), root, ExpandOptions{Forward: 1, Backward: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, family.CodePersistence, family.CodeOf(err))
}

func TestExpand_CancelledContext(t *testing.T) {
	g := scenarioOne()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestExpander(g, 2).Expand(ctx, g.root("R"), ExpandOptions{Forward: Unbounded, Backward: Unbounded})
	assert.ErrorIs(t, err, context.Canceled)
}
