package familytree

import (
	"sort"
	"strings"
)

const partnerMarker = "+ "

// SerializeTreeText renders exp in the converter's indented input grammar:
//
//	<tabs><label> (id=<id>[, opaque])
//	<tabs>+ <label> (id=<id>[, opaque])   partner of the line above
//	<tabs>\t...                           children of the household
//
// Entities without an in-expansion parent start at column zero, oldest
// generation first. A household (member plus partner) is written once and
// its children are the member's followed by the partner's.
func SerializeTreeText(exp *Expansion, labels Labels) string {
	if exp.Empty() {
		return ""
	}
	w := &treeWriter{exp: exp, labels: labels, done: map[string]bool{}}

	tops := make([]*Node, 0)
	for _, n := range exp.Nodes {
		if exp.ParentOf(n.ID()) == "" {
			tops = append(tops, n)
		}
	}
	sort.SliceStable(tops, func(i, j int) bool {
		return tops[i].Generation < tops[j].Generation
	})
	for _, n := range tops {
		w.household(n.ID(), 0)
	}
	// Parent cycles leave members unreachable from any top; emit them so
	// nothing in the expansion is dropped.
	for _, n := range exp.Nodes {
		w.household(n.ID(), 0)
	}
	return w.b.String()
}

type treeWriter struct {
	exp    *Expansion
	labels Labels
	done   map[string]bool
	b      strings.Builder
}

type frame struct {
	id    string
	depth int
	child bool
}

// household writes id, its partner and all descendants iteratively. A child
// already written elsewhere (as someone's partner) gets a bare reference line
// so its parent edge still reaches the converter, which joins lines by id.
func (w *treeWriter) household(id string, depth int) {
	stack := []frame{{id: id, depth: depth}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if w.done[f.id] {
			if f.child {
				w.line(f.id, f.depth, false)
			}
			continue
		}
		w.done[f.id] = true
		w.line(f.id, f.depth, false)

		kids := append([]string(nil), w.exp.ChildrenOf(f.id)...)
		if p := w.exp.PartnerOf(f.id); p != "" && !w.done[p] {
			w.done[p] = true
			w.line(p, f.depth, true)
			kids = append(kids, w.exp.ChildrenOf(p)...)
		}
		// Push in reverse so the first child is written first.
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: kids[i], depth: f.depth + 1, child: true})
		}
	}
}

func (w *treeWriter) line(id string, depth int, partner bool) {
	w.b.WriteString(strings.Repeat("\t", depth))
	if partner {
		w.b.WriteString(partnerMarker)
	}
	w.b.WriteString(w.labels.For(id))
	w.b.WriteString(" (id=")
	w.b.WriteString(id)
	if n, ok := w.exp.Get(id); ok && n.Opaque {
		w.b.WriteString(", opaque")
	}
	w.b.WriteString(")\n")
}
