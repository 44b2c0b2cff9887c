package family

// Member is one node of the relationship graph as seen by a single lookup.
// Optional relations are empty strings when absent.
type Member struct {
	ID string
	// Scope is the community the member's active marriage belongs to.
	Scope string
	// Parent is the member's single parent, if any.
	Parent string
	// Children are ordered by link insertion.
	Children []string
	// Partner is the active spouse, if any.
	Partner string
}

func (m *Member) HasParent() bool  { return m != nil && m.Parent != "" }
func (m *Member) HasPartner() bool { return m != nil && m.Partner != "" }

// HasRelations reports whether the member has any edge at all.
func (m *Member) HasRelations() bool {
	return m != nil && (m.Parent != "" || m.Partner != "" || len(m.Children) > 0)
}

// Relations is the raw read returned by the persistence layer for one member.
type Relations struct {
	Parent   string
	Children []string
	Partner  string
	Scope    string
}

// ToMember builds the Member view of a relations read.
func (r Relations) ToMember(id string) *Member {
	children := make([]string, len(r.Children))
	copy(children, r.Children)
	return &Member{
		ID:       id,
		Scope:    r.Scope,
		Parent:   r.Parent,
		Children: children,
		Partner:  r.Partner,
	}
}
