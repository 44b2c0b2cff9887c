package family

import (
	"context"
	"time"

	"gorm.io/gorm"

	domain "github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/platform/dbctx"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

// RelationStore is the persistence collaborator for the relationship graph.
// Every method accepts an optional transaction through dbctx.Context; writes
// that span several rows open their own transaction when none is supplied.
type RelationStore struct {
	db        *gorm.DB
	log       *logger.Logger
	marriages MarriageRepo
	parents   ParentRepo
	profiles  MemberProfileRepo
	ids       *IDGenerator
}

func NewRelationStore(db *gorm.DB, baseLog *logger.Logger, idMaxAttempts int) *RelationStore {
	return &RelationStore{
		db:        db,
		log:       baseLog.With("repo", "RelationStore"),
		marriages: NewMarriageRepo(db, baseLog),
		parents:   NewParentRepo(db, baseLog),
		profiles:  NewMemberProfileRepo(db, baseLog),
		ids:       NewIDGenerator(db, baseLog, idMaxAttempts),
	}
}

func (s *RelationStore) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

func (s *RelationStore) inTx(dbc dbctx.Context, fn func(dbc dbctx.Context) error) error {
	if dbc.Tx != nil {
		return fn(dbc)
	}
	return s.InTx(dbc.Ctx, fn)
}

// GetRelations reads a member's parent, children and active partner.
// The partner lookup matches either side of a marriage row, so a pair that
// was only half written still reads symmetrically.
func (s *RelationStore) GetRelations(dbc dbctx.Context, memberID string) (domain.Relations, error) {
	const op = "get_relations"
	var rel domain.Relations

	link, err := s.parents.GetByChild(dbc, memberID)
	if err != nil {
		return rel, MapError(op, err)
	}
	if link != nil {
		rel.Parent = link.ParentID
	}

	children, err := s.parents.ListByParent(dbc, memberID)
	if err != nil {
		return rel, MapError(op, err)
	}
	for _, c := range children {
		rel.Children = append(rel.Children, c.ChildID)
	}

	rows, err := s.marriages.ListActiveFor(dbc, memberID)
	if err != nil {
		return rel, MapError(op, err)
	}
	for _, row := range rows {
		other := row.PartnerID
		if other == memberID {
			other = row.UserID
		}
		if other == "" || other == memberID {
			continue
		}
		rel.Partner = other
		rel.Scope = row.ScopeID
		break
	}
	return rel, nil
}

// CreateMarriage writes both mirrored rows under one fresh marriage id.
func (s *RelationStore) CreateMarriage(dbc dbctx.Context, a, b, scope string) (string, error) {
	return s.CreateMarriageWithID(dbc, "", a, b, scope)
}

// CreateMarriageWithID is CreateMarriage with a caller-chosen marriage id.
// An empty id is generated; an id already present in the table is a
// conflict even when its rows are no longer valid.
func (s *RelationStore) CreateMarriageWithID(dbc dbctx.Context, marriageID, a, b, scope string) (string, error) {
	const op = "create_marriage"
	id := marriageID
	err := s.inTx(dbc, func(dbc dbctx.Context) error {
		if id == "" {
			var err error
			id, err = s.ids.Generate(dbc, "marriages", "marriage_id")
			if err != nil {
				return err
			}
		} else {
			n, err := s.marriages.CountByID(dbc, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return domain.NewError(domain.CodeConflict, op, "marriage id already in use", nil)
			}
		}
		now := time.Now().UTC()
		rows := []*domain.Marriage{
			{MarriageID: id, UserID: a, PartnerID: b, Valid: true, ScopeID: scope, CreatedAt: now, UpdatedAt: now},
			{MarriageID: id, UserID: b, PartnerID: a, Valid: true, ScopeID: scope, CreatedAt: now, UpdatedAt: now},
		}
		return s.marriages.Create(dbc, rows)
	})
	if err != nil {
		return "", MapError(op, err)
	}
	return id, nil
}

// InvalidateMarriages ends every active marriage naming memberID.
func (s *RelationStore) InvalidateMarriages(dbc dbctx.Context, memberID string) (int64, error) {
	n, err := s.marriages.InvalidateFor(dbc, memberID)
	return n, MapError("invalidate_marriages", err)
}

// InvalidateMarriagesAndParentLinks detaches memberID from the graph: all
// marriages naming them become invalid and every parent link in which they
// appear as parent or child is deleted.
func (s *RelationStore) InvalidateMarriagesAndParentLinks(dbc dbctx.Context, memberID string) error {
	const op = "invalidate_member"
	err := s.inTx(dbc, func(dbc dbctx.Context) error {
		if _, err := s.marriages.InvalidateFor(dbc, memberID); err != nil {
			return err
		}
		_, err := s.parents.DeleteForMember(dbc, memberID)
		return err
	})
	return MapError(op, err)
}

func (s *RelationStore) AddParentLink(dbc dbctx.Context, parentID, childID string) error {
	err := s.parents.Create(dbc, &domain.ParentLink{
		ParentID:  parentID,
		ChildID:   childID,
		CreatedAt: time.Now().UTC(),
	})
	return MapError("add_parent_link", err)
}

func (s *RelationStore) RemoveParentLink(dbc dbctx.Context, parentID, childID string) (bool, error) {
	n, err := s.parents.Delete(dbc, parentID, childID)
	if err != nil {
		return false, MapError("remove_parent_link", err)
	}
	return n > 0, nil
}

func (s *RelationStore) GenerateUniqueID(dbc dbctx.Context, table, field string) (string, error) {
	return s.ids.Generate(dbc, table, field)
}

// LockParentLinks serializes parent-link writers for the rest of the
// transaction on Postgres. SQLite already serializes writers.
func (s *RelationStore) LockParentLinks(dbc dbctx.Context) error {
	if dbc.Tx == nil || dbc.Tx.Dialector.Name() != "postgres" {
		return nil
	}
	err := dbc.Tx.WithContext(dbc.Ctx).Exec("SELECT pg_advisory_xact_lock(hashtext('familytree.parents'))").Error
	return MapError("lock_parent_links", err)
}

func (s *RelationStore) SetDisplayName(dbc dbctx.Context, memberID, name string) error {
	return MapError("set_display_name", s.profiles.Upsert(dbc, memberID, name))
}

// DisplayNames returns the stored labels for the given ids. Ids without a
// profile are absent from the map.
func (s *RelationStore) DisplayNames(dbc dbctx.Context, memberIDs []string) (map[string]string, error) {
	rows, err := s.profiles.GetByIDs(dbc, memberIDs)
	if err != nil {
		return nil, MapError("display_names", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.MemberID] = r.DisplayName
	}
	return out, nil
}
