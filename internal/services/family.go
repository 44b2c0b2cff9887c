package services

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/observability"
	"github.com/yungbote/familytree-backend/internal/platform/ctxutil"
	"github.com/yungbote/familytree-backend/internal/platform/dbctx"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

const maxDisplayNameRunes = 100

var memberIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// FamilyStore is the persistence the family services need.
type FamilyStore interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
	GetRelations(dbc dbctx.Context, memberID string) (family.Relations, error)
	CreateMarriageWithID(dbc dbctx.Context, marriageID, a, b, scope string) (string, error)
	InvalidateMarriages(dbc dbctx.Context, memberID string) (int64, error)
	InvalidateMarriagesAndParentLinks(dbc dbctx.Context, memberID string) error
	AddParentLink(dbc dbctx.Context, parentID, childID string) error
	RemoveParentLink(dbc dbctx.Context, parentID, childID string) (bool, error)
	LockParentLinks(dbc dbctx.Context) error
	SetDisplayName(dbc dbctx.Context, memberID, name string) error
	DisplayNames(dbc dbctx.Context, memberIDs []string) (map[string]string, error)
}

// GraphMirror receives every committed mutation. Failures are logged and
// never undo the relational write.
type GraphMirror interface {
	UpsertMarriage(ctx context.Context, marriageID, a, b, scope string) error
	EndMarriages(ctx context.Context, memberID string) error
	UpsertParentLink(ctx context.Context, parentID, childID string) error
	RemoveParentLink(ctx context.Context, parentID, childID string) error
	DetachMember(ctx context.Context, memberID string) error
}

type MarryInput struct {
	A     string
	B     string
	Scope string
	// MarriageID is optional; a fresh id is generated when empty.
	MarriageID string
}

// Neighbour is a related member with its display label.
type Neighbour struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type FamilyService interface {
	Marry(ctx context.Context, in MarryInput) (string, error)
	Divorce(ctx context.Context, memberID string) error
	Adopt(ctx context.Context, parentID, childID string) error
	Disown(ctx context.Context, parentID, childID string) error
	Remove(ctx context.Context, memberID string) error
	SetProfile(ctx context.Context, memberID, displayName string) error

	Partner(ctx context.Context, memberID string) (*Neighbour, error)
	Children(ctx context.Context, memberID string) ([]Neighbour, error)
	Parent(ctx context.Context, memberID string) (*Neighbour, error)
}

type familyService struct {
	store   FamilyStore
	mirror  GraphMirror
	metrics *observability.Metrics
	log     *logger.Logger
}

func NewFamilyService(store FamilyStore, mirror GraphMirror, metrics *observability.Metrics, log *logger.Logger) FamilyService {
	return &familyService{
		store:   store,
		mirror:  mirror,
		metrics: metrics,
		log:     log.With("service", "FamilyService"),
	}
}

// ValidateMemberID checks the shape of an externally supplied member id.
func ValidateMemberID(op, id string) (string, error) {
	id = strings.TrimSpace(id)
	if !memberIDPattern.MatchString(id) {
		return "", family.NewError(family.CodeValidation, op, "member id must be 1-64 characters of A-Z a-z 0-9 _ -", nil)
	}
	return id, nil
}

func (s *familyService) Marry(ctx context.Context, in MarryInput) (id string, err error) {
	const op = "marry"
	defer func() { s.metrics.ObserveMutation(op, err) }()

	a, err := ValidateMemberID(op, in.A)
	if err != nil {
		return "", err
	}
	b, err := ValidateMemberID(op, in.B)
	if err != nil {
		return "", err
	}
	if a == b {
		return "", family.ErrSelfRelation
	}
	marriageID := strings.TrimSpace(in.MarriageID)
	if marriageID != "" && !memberIDPattern.MatchString(marriageID) {
		return "", family.NewError(family.CodeValidation, op, "invalid marriage id", nil)
	}
	scope := strings.TrimSpace(in.Scope)

	err = s.store.InTx(ctx, func(dbc dbctx.Context) error {
		for _, m := range []string{a, b} {
			rel, err := s.store.GetRelations(dbc, m)
			if err != nil {
				return err
			}
			if rel.Partner != "" {
				return family.ErrAlreadyMarried
			}
		}
		var err error
		id, err = s.store.CreateMarriageWithID(dbc, marriageID, a, b, scope)
		return err
	})
	if err != nil {
		return "", err
	}

	s.log.Info("members married", append(ctxutil.LogFields(ctx), "member_id", a, "partner_id", b, "scope", scope)...)
	s.mirrorOp(ctx, op, func(ctx context.Context) error { return s.mirror.UpsertMarriage(ctx, id, a, b, scope) })
	return id, nil
}

func (s *familyService) Divorce(ctx context.Context, memberID string) (err error) {
	const op = "divorce"
	defer func() { s.metrics.ObserveMutation(op, err) }()

	id, err := ValidateMemberID(op, memberID)
	if err != nil {
		return err
	}
	n, err := s.store.InvalidateMarriages(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return family.ErrNotMarried
	}
	s.log.Info("marriage ended", append(ctxutil.LogFields(ctx), "member_id", id, "rows", n)...)
	s.mirrorOp(ctx, op, func(ctx context.Context) error { return s.mirror.EndMarriages(ctx, id) })
	return nil
}

// Adopt links childID under parentID. The link is refused when the child
// already has a parent or when parentID descends from childID.
func (s *familyService) Adopt(ctx context.Context, parentID, childID string) (err error) {
	const op = "adopt"
	defer func() { s.metrics.ObserveMutation(op, err) }()

	parent, err := ValidateMemberID(op, parentID)
	if err != nil {
		return err
	}
	child, err := ValidateMemberID(op, childID)
	if err != nil {
		return err
	}
	if parent == child {
		return family.ErrSelfRelation
	}

	err = s.store.InTx(ctx, func(dbc dbctx.Context) error {
		if err := s.store.LockParentLinks(dbc); err != nil {
			return err
		}
		rel, err := s.store.GetRelations(dbc, child)
		if err != nil {
			return err
		}
		if rel.Parent != "" {
			return family.ErrHasParent
		}
		descends, err := s.descendsFrom(dbc, parent, child)
		if err != nil {
			return err
		}
		if descends {
			return family.ErrCycle
		}
		return s.store.AddParentLink(dbc, parent, child)
	})
	if err != nil {
		return err
	}

	s.log.Info("parent link added", append(ctxutil.LogFields(ctx), "parent_id", parent, "child_id", child)...)
	s.mirrorOp(ctx, op, func(ctx context.Context) error { return s.mirror.UpsertParentLink(ctx, parent, child) })
	return nil
}

// descendsFrom walks up from member and reports whether ancestor is met.
// A cycle already present in storage ends the walk.
func (s *familyService) descendsFrom(dbc dbctx.Context, member, ancestor string) (bool, error) {
	seen := map[string]bool{}
	for cur := member; cur != "" && !seen[cur]; {
		if cur == ancestor {
			return true, nil
		}
		seen[cur] = true
		rel, err := s.store.GetRelations(dbc, cur)
		if err != nil {
			return false, err
		}
		cur = rel.Parent
	}
	return false, nil
}

func (s *familyService) Disown(ctx context.Context, parentID, childID string) (err error) {
	const op = "disown"
	defer func() { s.metrics.ObserveMutation(op, err) }()

	parent, err := ValidateMemberID(op, parentID)
	if err != nil {
		return err
	}
	child, err := ValidateMemberID(op, childID)
	if err != nil {
		return err
	}
	removed, err := s.store.RemoveParentLink(dbctx.Context{Ctx: ctx}, parent, child)
	if err != nil {
		return err
	}
	if !removed {
		return family.ErrNotParent
	}
	s.log.Info("parent link removed", append(ctxutil.LogFields(ctx), "parent_id", parent, "child_id", child)...)
	s.mirrorOp(ctx, op, func(ctx context.Context) error { return s.mirror.RemoveParentLink(ctx, parent, child) })
	return nil
}

// Remove detaches a member from every marriage and parent link.
func (s *familyService) Remove(ctx context.Context, memberID string) (err error) {
	const op = "remove"
	defer func() { s.metrics.ObserveMutation(op, err) }()

	id, err := ValidateMemberID(op, memberID)
	if err != nil {
		return err
	}
	if err := s.store.InvalidateMarriagesAndParentLinks(dbctx.Context{Ctx: ctx}, id); err != nil {
		return err
	}
	s.log.Info("member removed", append(ctxutil.LogFields(ctx), "member_id", id)...)
	s.mirrorOp(ctx, op, func(ctx context.Context) error { return s.mirror.DetachMember(ctx, id) })
	return nil
}

func (s *familyService) SetProfile(ctx context.Context, memberID, displayName string) (err error) {
	const op = "set_profile"
	defer func() { s.metrics.ObserveMutation(op, err) }()

	id, err := ValidateMemberID(op, memberID)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(displayName)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameRunes {
		return family.NewError(family.CodeValidation, op, "display name must be 1-100 characters", nil)
	}
	return s.store.SetDisplayName(dbctx.Context{Ctx: ctx}, id, name)
}

func (s *familyService) Partner(ctx context.Context, memberID string) (*Neighbour, error) {
	rel, err := s.relations(ctx, "partner", memberID)
	if err != nil {
		return nil, err
	}
	if rel.Partner == "" {
		return nil, family.NewError(family.CodeNotFound, "partner", "member has no partner", nil)
	}
	out, err := s.label(ctx, rel.Partner)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *familyService) Parent(ctx context.Context, memberID string) (*Neighbour, error) {
	rel, err := s.relations(ctx, "parent", memberID)
	if err != nil {
		return nil, err
	}
	if rel.Parent == "" {
		return nil, family.NewError(family.CodeNotFound, "parent", "member has no parent", nil)
	}
	out, err := s.label(ctx, rel.Parent)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// Children returns the member's children in link order; none is an empty
// slice, not an error.
func (s *familyService) Children(ctx context.Context, memberID string) ([]Neighbour, error) {
	rel, err := s.relations(ctx, "children", memberID)
	if err != nil {
		return nil, err
	}
	return s.label(ctx, rel.Children...)
}

func (s *familyService) relations(ctx context.Context, op, memberID string) (family.Relations, error) {
	id, err := ValidateMemberID(op, memberID)
	if err != nil {
		return family.Relations{}, err
	}
	return s.store.GetRelations(dbctx.Context{Ctx: ctx}, id)
}

func (s *familyService) label(ctx context.Context, ids ...string) ([]Neighbour, error) {
	out := make([]Neighbour, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	names, err := s.store.DisplayNames(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		label := names[id]
		if label == "" {
			label = id
		}
		out = append(out, Neighbour{ID: id, Label: label})
	}
	return out, nil
}

func (s *familyService) mirrorOp(ctx context.Context, op string, fn func(ctx context.Context) error) {
	if s.mirror == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("graph mirror write failed", append(ctxutil.LogFields(ctx), "op", op, "error", err)...)
	}
}
