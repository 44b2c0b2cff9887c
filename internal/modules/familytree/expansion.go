package familytree

import "github.com/yungbote/familytree-backend/internal/domain/family"

// Node is one member placed in an expansion.
type Node struct {
	Member *family.Member
	// Generation is relative to the root: negative for ancestors, positive
	// for descendants. Partners share their spouse's generation.
	Generation int
	// Opaque nodes belong to another scope; they are present but were not
	// expanded further.
	Opaque bool
	// Index is the node's position in traversal order.
	Index int
}

func (n *Node) ID() string { return n.Member.ID }

// Expansion is the bounded subgraph reached from a root. Nodes are kept in
// traversal order, which every serializer relies on for determinism.
type Expansion struct {
	RootID string
	Nodes  []*Node

	byID       map[string]*Node
	parentOf   map[string]string
	childrenOf map[string][]string
	partnerOf  map[string]string
}

func newExpansion(rootID string) *Expansion {
	return &Expansion{
		RootID: rootID,
		byID:   map[string]*Node{},
	}
}

func (e *Expansion) add(m *family.Member, gen int, opaque bool) *Node {
	n := &Node{Member: m, Generation: gen, Opaque: opaque, Index: len(e.Nodes)}
	e.Nodes = append(e.Nodes, n)
	e.byID[m.ID] = n
	return n
}

// Empty reports whether the root had no relations at all.
func (e *Expansion) Empty() bool { return e == nil || len(e.Nodes) == 0 }

func (e *Expansion) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Nodes)
}

func (e *Expansion) Get(id string) (*Node, bool) {
	if e == nil {
		return nil, false
	}
	n, ok := e.byID[id]
	return n, ok
}

func (e *Expansion) Contains(id string) bool {
	_, ok := e.Get(id)
	return ok
}

// IDs lists member ids in traversal order.
func (e *Expansion) IDs() []string {
	out := make([]string, 0, e.Len())
	if e == nil {
		return out
	}
	for _, n := range e.Nodes {
		out = append(out, n.ID())
	}
	return out
}

// ParentOf returns the in-expansion parent of id, or "".
func (e *Expansion) ParentOf(id string) string { return e.parentOf[id] }

// ChildrenOf returns the in-expansion children of id in insertion order.
func (e *Expansion) ChildrenOf(id string) []string { return e.childrenOf[id] }

// PartnerOf returns the in-expansion partner of id, or "".
func (e *Expansion) PartnerOf(id string) string { return e.partnerOf[id] }

// link derives the edge set between included nodes. An edge counts when at
// least one endpoint was expanded; two opaque stubs are never linked.
// Conflicting records on a corrupted graph resolve to the first claim in
// traversal order.
func (e *Expansion) link() {
	e.parentOf = map[string]string{}
	e.childrenOf = map[string][]string{}
	e.partnerOf = map[string]string{}

	for _, n := range e.Nodes {
		id := n.ID()
		if p := n.Member.Partner; p != "" && p != id {
			if other, ok := e.byID[p]; ok && !(n.Opaque && other.Opaque) {
				if e.partnerOf[id] == "" && e.partnerOf[p] == "" {
					e.partnerOf[id] = p
					e.partnerOf[p] = id
				}
			}
		}
		for _, c := range n.Member.Children {
			child, ok := e.byID[c]
			if !ok || c == id || (n.Opaque && child.Opaque) {
				continue
			}
			if _, taken := e.parentOf[c]; taken {
				continue
			}
			e.parentOf[c] = id
			e.childrenOf[id] = append(e.childrenOf[id], c)
		}
	}
	// Members are read one at a time, not from one snapshot, so a link seen
	// only from the child's side is still honoured.
	for _, n := range e.Nodes {
		id := n.ID()
		p := n.Member.Parent
		if p == "" || p == id {
			continue
		}
		if _, taken := e.parentOf[id]; taken {
			continue
		}
		parent, ok := e.byID[p]
		if !ok || (n.Opaque && parent.Opaque) {
			continue
		}
		e.parentOf[id] = p
		e.childrenOf[p] = append(e.childrenOf[p], id)
	}
}
