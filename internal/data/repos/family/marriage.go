package family

import (
	"gorm.io/gorm"

	domain "github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/platform/dbctx"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

type MarriageRepo interface {
	Create(dbc dbctx.Context, rows []*domain.Marriage) error
	// ListActiveFor returns valid rows naming memberID on either side,
	// newest first.
	ListActiveFor(dbc dbctx.Context, memberID string) ([]*domain.Marriage, error)
	InvalidateFor(dbc dbctx.Context, memberID string) (int64, error)
	// CountByID counts rows, valid or not, carrying marriageID.
	CountByID(dbc dbctx.Context, marriageID string) (int64, error)
}

type marriageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMarriageRepo(db *gorm.DB, baseLog *logger.Logger) MarriageRepo {
	return &marriageRepo{
		db:  db,
		log: baseLog.With("repo", "MarriageRepo"),
	}
}

func (r *marriageRepo) Create(dbc dbctx.Context, rows []*domain.Marriage) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *marriageRepo) ListActiveFor(dbc dbctx.Context, memberID string) ([]*domain.Marriage, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*domain.Marriage
	if memberID == "" {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("valid = ? AND (user_id = ? OR partner_id = ?)", true, memberID, memberID).
		Order("created_at DESC, marriage_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *marriageRepo) InvalidateFor(dbc dbctx.Context, memberID string) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if memberID == "" {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Model(&domain.Marriage{}).
		Where("valid = ? AND (user_id = ? OR partner_id = ?)", true, memberID, memberID).
		Update("valid", false)
	return res.RowsAffected, res.Error
}

func (r *marriageRepo) CountByID(dbc dbctx.Context, marriageID string) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	err := t.WithContext(dbc.Ctx).
		Model(&domain.Marriage{}).
		Where("marriage_id = ?", marriageID).
		Count(&n).Error
	return n, err
}
