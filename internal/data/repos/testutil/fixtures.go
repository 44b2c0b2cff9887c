package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/familytree-backend/internal/domain/family"
)

// SeedMarriage writes both rows of a marriage directly.
func SeedMarriage(tb testing.TB, ctx context.Context, tx *gorm.DB, marriageID, a, b, scope string) {
	tb.Helper()
	now := time.Now().UTC()
	rows := []*family.Marriage{
		{MarriageID: marriageID, UserID: a, PartnerID: b, Valid: true, ScopeID: scope, CreatedAt: now, UpdatedAt: now},
		{MarriageID: marriageID, UserID: b, PartnerID: a, Valid: true, ScopeID: scope, CreatedAt: now, UpdatedAt: now},
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		tb.Fatalf("seed marriage: %v", err)
	}
}

// SeedHalfMarriage writes only a's side of a marriage.
func SeedHalfMarriage(tb testing.TB, ctx context.Context, tx *gorm.DB, marriageID, a, b, scope string) {
	tb.Helper()
	now := time.Now().UTC()
	row := &family.Marriage{MarriageID: marriageID, UserID: a, PartnerID: b, Valid: true, ScopeID: scope, CreatedAt: now, UpdatedAt: now}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed half marriage: %v", err)
	}
}

func SeedParent(tb testing.TB, ctx context.Context, tx *gorm.DB, parentID, childID string) {
	tb.Helper()
	link := &family.ParentLink{ParentID: parentID, ChildID: childID, CreatedAt: time.Now().UTC()}
	if err := tx.WithContext(ctx).Create(link).Error; err != nil {
		tb.Fatalf("seed parent: %v", err)
	}
}
