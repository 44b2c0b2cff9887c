package family

import (
	"gorm.io/gorm"

	domain "github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/platform/dbctx"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

type ParentRepo interface {
	Create(dbc dbctx.Context, link *domain.ParentLink) error
	GetByChild(dbc dbctx.Context, childID string) (*domain.ParentLink, error)
	// ListByParent returns links in insertion order.
	ListByParent(dbc dbctx.Context, parentID string) ([]*domain.ParentLink, error)
	Delete(dbc dbctx.Context, parentID, childID string) (int64, error)
	DeleteForMember(dbc dbctx.Context, memberID string) (int64, error)
}

type parentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewParentRepo(db *gorm.DB, baseLog *logger.Logger) ParentRepo {
	return &parentRepo{
		db:  db,
		log: baseLog.With("repo", "ParentRepo"),
	}
}

func (r *parentRepo) Create(dbc dbctx.Context, link *domain.ParentLink) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Create(link).Error
}

func (r *parentRepo) GetByChild(dbc dbctx.Context, childID string) (*domain.ParentLink, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if childID == "" {
		return nil, nil
	}
	var row domain.ParentLink
	if err := t.WithContext(dbc.Ctx).
		Where("child_id = ?", childID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *parentRepo) ListByParent(dbc dbctx.Context, parentID string) ([]*domain.ParentLink, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*domain.ParentLink
	if parentID == "" {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("parent_id = ?", parentID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *parentRepo) Delete(dbc dbctx.Context, parentID, childID string) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).
		Where("parent_id = ? AND child_id = ?", parentID, childID).
		Delete(&domain.ParentLink{})
	return res.RowsAffected, res.Error
}

func (r *parentRepo) DeleteForMember(dbc dbctx.Context, memberID string) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if memberID == "" {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Where("child_id = ? OR parent_id = ?", memberID, memberID).
		Delete(&domain.ParentLink{})
	return res.RowsAffected, res.Error
}
