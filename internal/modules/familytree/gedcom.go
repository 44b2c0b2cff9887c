package familytree

import (
	"fmt"
	"strings"
)

const (
	gedcomVersion = "5.5.1"
	// DefaultGedcomSource names this system in the HEAD record.
	DefaultGedcomSource = "FAMILYTREE"
	maxGedcomNameRunes  = 120
	// USER_REFERENCE_NUMBER is limited to 20 characters; longer member ids
	// go into the user-defined memberIDTag instead.
	maxGedcomRefnRunes = 20
	memberIDTag        = "_MEMBERID"
)

type gedcomFamily struct {
	xref     string
	husb     string
	wife     string
	children []string
}

// GedcomFilename is the download name for a root's export.
func GedcomFilename(rootID string) string {
	return fmt.Sprintf("Tree of %s.ged", rootID)
}

// SerializeGedcom renders exp as a GEDCOM 5.5.1 lineage-linked file.
// Individuals are numbered in traversal order and carry their member id in
// REFN, or in _MEMBERID when the id is too long for REFN. Each in-expansion marriage becomes a family; a parent with children
// but no in-expansion partner gets a single-parent family. An empty
// expansion yields "".
func SerializeGedcom(exp *Expansion, labels Labels, source string) string {
	if exp.Empty() {
		return ""
	}
	if strings.TrimSpace(source) == "" {
		source = DefaultGedcomSource
	}

	indi := make(map[string]string, exp.Len())
	for i, n := range exp.Nodes {
		indi[n.ID()] = fmt.Sprintf("@I%d@", i+1)
	}

	var fams []*gedcomFamily
	famsOf := map[string][]string{}
	famc := map[string]string{}
	for _, n := range exp.Nodes {
		id := n.ID()
		p := exp.PartnerOf(id)
		var f *gedcomFamily
		switch {
		case p != "":
			other, _ := exp.Get(p)
			if other.Index < n.Index {
				continue
			}
			f = &gedcomFamily{husb: id, wife: p}
			f.children = append(f.children, exp.ChildrenOf(id)...)
			f.children = append(f.children, exp.ChildrenOf(p)...)
		case len(exp.ChildrenOf(id)) > 0:
			f = &gedcomFamily{husb: id}
			f.children = append(f.children, exp.ChildrenOf(id)...)
		default:
			continue
		}
		f.xref = fmt.Sprintf("@F%d@", len(fams)+1)
		fams = append(fams, f)
		famsOf[f.husb] = append(famsOf[f.husb], f.xref)
		if f.wife != "" {
			famsOf[f.wife] = append(famsOf[f.wife], f.xref)
		}
		for _, c := range f.children {
			if famc[c] == "" {
				famc[c] = f.xref
			}
		}
	}

	var b strings.Builder
	line := func(level int, parts ...string) {
		fmt.Fprintf(&b, "%d %s\n", level, strings.Join(parts, " "))
	}

	line(0, "HEAD")
	line(1, "SOUR", source)
	line(1, "GEDC")
	line(2, "VERS", gedcomVersion)
	line(2, "FORM", "LINEAGE-LINKED")
	line(1, "CHAR", "UTF-8")

	for _, n := range exp.Nodes {
		id := n.ID()
		line(0, indi[id], "INDI")
		line(1, "NAME", gedcomName(labels[id], id))
		line(1, memberIDField(id), escapeGedcom(id))
		for _, x := range famsOf[id] {
			line(1, "FAMS", x)
		}
		if x := famc[id]; x != "" {
			line(1, "FAMC", x)
		}
	}
	for _, f := range fams {
		line(0, f.xref, "FAM")
		line(1, "HUSB", indi[f.husb])
		if f.wife != "" {
			line(1, "WIFE", indi[f.wife])
		}
		for _, c := range f.children {
			line(1, "CHIL", indi[c])
		}
	}
	line(0, "TRLR")
	return b.String()
}

func memberIDField(id string) string {
	if len([]rune(id)) > maxGedcomRefnRunes {
		return memberIDTag
	}
	return "REFN"
}

func gedcomName(label, fallback string) string {
	s := strings.Join(strings.Fields(label), " ")
	if r := []rune(s); len(r) > maxGedcomNameRunes {
		s = string(r[:maxGedcomNameRunes])
	}
	if s == "" {
		s = fallback
	}
	return escapeGedcom(s)
}

// Line values may not contain a bare "@".
func escapeGedcom(s string) string {
	return strings.ReplaceAll(s, "@", "@@")
}
