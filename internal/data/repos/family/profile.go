package family

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/platform/dbctx"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

type MemberProfileRepo interface {
	Upsert(dbc dbctx.Context, memberID, displayName string) error
	GetByIDs(dbc dbctx.Context, memberIDs []string) ([]*domain.MemberProfile, error)
}

type memberProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemberProfileRepo(db *gorm.DB, baseLog *logger.Logger) MemberProfileRepo {
	return &memberProfileRepo{
		db:  db,
		log: baseLog.With("repo", "MemberProfileRepo"),
	}
}

func (r *memberProfileRepo) Upsert(dbc dbctx.Context, memberID, displayName string) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	row := &domain.MemberProfile{
		MemberID:    memberID,
		DisplayName: displayName,
		UpdatedAt:   time.Now().UTC(),
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "updated_at"}),
		}).
		Create(row).Error
}

// GetByIDs looks up profiles in chunks so large trees stay under driver
// parameter limits.
func (r *memberProfileRepo) GetByIDs(dbc dbctx.Context, memberIDs []string) ([]*domain.MemberProfile, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	const chunk = 500
	out := make([]*domain.MemberProfile, 0, len(memberIDs))
	for start := 0; start < len(memberIDs); start += chunk {
		end := start + chunk
		if end > len(memberIDs) {
			end = len(memberIDs)
		}
		var rows []*domain.MemberProfile
		if err := t.WithContext(dbc.Ctx).
			Where("member_id IN ?", memberIDs[start:end]).
			Find(&rows).Error; err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}
