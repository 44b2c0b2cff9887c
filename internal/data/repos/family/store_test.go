package family

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/yungbote/familytree-backend/internal/data/repos/testutil"
	domain "github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/platform/dbctx"
)

func TestRelationStore_MarriageIsSymmetric(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	store := NewRelationStore(db, testutil.Logger(t), 0)

	id, err := store.CreateMarriage(dbc, "X", "Y", "guild-1")
	if err != nil {
		t.Fatalf("CreateMarriage: %v", err)
	}
	if len(id) != IDLength {
		t.Fatalf("marriage id length: got %d want %d", len(id), IDLength)
	}

	for _, tc := range []struct{ member, want string }{{"X", "Y"}, {"Y", "X"}} {
		rel, err := store.GetRelations(dbc, tc.member)
		if err != nil {
			t.Fatalf("GetRelations(%s): %v", tc.member, err)
		}
		if rel.Partner != tc.want {
			t.Fatalf("partner of %s: got %q want %q", tc.member, rel.Partner, tc.want)
		}
		if rel.Scope != "guild-1" {
			t.Fatalf("scope of %s: got %q", tc.member, rel.Scope)
		}
	}

	var rows []domain.Marriage
	if err := tx.Where("marriage_id = ?", id).Find(&rows).Error; err != nil {
		t.Fatalf("load rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected mirrored rows, got %d", len(rows))
	}
}

func TestRelationStore_HalfWrittenMarriageReadsBothWays(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	testutil.SeedHalfMarriage(t, ctx, tx, "m1", "A", "B", "")

	store := NewRelationStore(db, testutil.Logger(t), 0)
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	relA, err := store.GetRelations(dbc, "A")
	if err != nil || relA.Partner != "B" {
		t.Fatalf("A: partner=%q err=%v", relA.Partner, err)
	}
	relB, err := store.GetRelations(dbc, "B")
	if err != nil || relB.Partner != "A" {
		t.Fatalf("B: partner=%q err=%v", relB.Partner, err)
	}
}

func TestRelationStore_ChildrenInInsertionOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	for _, c := range []string{"c3", "c1", "c2"} {
		testutil.SeedParent(t, ctx, tx, "P", c)
	}
	store := NewRelationStore(db, testutil.Logger(t), 0)

	rel, err := store.GetRelations(dbctx.Context{Ctx: ctx, Tx: tx}, "P")
	if err != nil {
		t.Fatalf("GetRelations: %v", err)
	}
	want := []string{"c3", "c1", "c2"}
	if len(rel.Children) != len(want) {
		t.Fatalf("children: got %v want %v", rel.Children, want)
	}
	for i := range want {
		if rel.Children[i] != want[i] {
			t.Fatalf("children: got %v want %v", rel.Children, want)
		}
	}

	child, err := store.GetRelations(dbctx.Context{Ctx: ctx, Tx: tx}, "c1")
	if err != nil || child.Parent != "P" {
		t.Fatalf("c1 parent=%q err=%v", child.Parent, err)
	}
}

func TestRelationStore_SecondParentRejected(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	store := NewRelationStore(db, testutil.Logger(t), 0)
	dbc := dbctx.Context{Ctx: ctx}

	if err := store.AddParentLink(dbc, "P1", "C"); err != nil {
		t.Fatalf("first link: %v", err)
	}
	err := store.AddParentLink(dbc, "P2", "C")
	if !domain.IsCode(err, domain.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRelationStore_InvalidateRemovesEveryEdge(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	testutil.SeedMarriage(t, ctx, tx, "m1", "A", "B", "")
	testutil.SeedParent(t, ctx, tx, "G", "A")
	testutil.SeedParent(t, ctx, tx, "A", "K1")
	testutil.SeedParent(t, ctx, tx, "A", "K2")

	store := NewRelationStore(db, testutil.Logger(t), 0)
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	if err := store.InvalidateMarriagesAndParentLinks(dbc, "A"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	for _, id := range []string{"A", "B", "G", "K1", "K2"} {
		rel, err := store.GetRelations(dbc, id)
		if err != nil {
			t.Fatalf("GetRelations(%s): %v", id, err)
		}
		if rel.Partner == "A" || rel.Parent == "A" {
			t.Fatalf("%s still linked to A: %+v", id, rel)
		}
		for _, c := range rel.Children {
			if c == "A" {
				t.Fatalf("%s still lists A as child", id)
			}
		}
		if id == "A" && (rel.Partner != "" || rel.Parent != "" || len(rel.Children) != 0) {
			t.Fatalf("A still has relations: %+v", rel)
		}
	}

	var valid int64
	if err := tx.Model(&domain.Marriage{}).Where("marriage_id = ? AND valid = ?", "m1", true).Count(&valid).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if valid != 0 {
		t.Fatalf("marriage rows still valid: %d", valid)
	}

	// A can marry again once the old marriage is invalid.
	if _, err := store.CreateMarriage(dbc, "A", "Z", ""); err != nil {
		t.Fatalf("remarry: %v", err)
	}
}

func TestRelationStore_RemoveParentLink(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	testutil.SeedParent(t, ctx, tx, "P", "C")
	store := NewRelationStore(db, testutil.Logger(t), 0)
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	removed, err := store.RemoveParentLink(dbc, "Q", "C")
	if err != nil || removed {
		t.Fatalf("wrong parent: removed=%v err=%v", removed, err)
	}
	removed, err = store.RemoveParentLink(dbc, "P", "C")
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
}

func TestRelationStore_CallerMarriageIDMustBeUnused(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	store := NewRelationStore(db, testutil.Logger(t), 0)

	id, err := store.CreateMarriageWithID(dbc, "m-1", "A", "B", "")
	if err != nil {
		t.Fatalf("CreateMarriageWithID: %v", err)
	}
	if id != "m-1" {
		t.Fatalf("marriage id: got %q want %q", id, "m-1")
	}
	if _, err := store.InvalidateMarriages(dbc, "A"); err != nil {
		t.Fatalf("InvalidateMarriages: %v", err)
	}

	_, err = store.CreateMarriageWithID(dbc, "m-1", "C", "D", "")
	if !domain.IsCode(err, domain.CodeConflict) {
		t.Fatalf("reused id: want conflict, got %v", err)
	}
	rel, err := store.GetRelations(dbc, "C")
	if err != nil {
		t.Fatalf("GetRelations: %v", err)
	}
	if rel.Partner != "" {
		t.Fatalf("conflicting marriage was partially written: partner %q", rel.Partner)
	}
}

func TestIDGenerator_GivesUpAfterMaxAttempts(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	// An all-zero random source always yields "aaaaaaaaaaa".
	testutil.SeedMarriage(t, ctx, tx, "aaaaaaaaaaa", "A", "B", "")

	gen := NewIDGenerator(db, testutil.Logger(t), 3)
	gen.rand = bytes.NewReader(make([]byte, 3*IDLength))

	_, err := gen.Generate(dbctx.Context{Ctx: ctx, Tx: tx}, "marriages", "marriage_id")
	if !domain.IsCode(err, domain.CodeIDExhausted) {
		t.Fatalf("expected id_exhausted, got %v", err)
	}
}

func TestIDGenerator_RejectsUnknownColumns(t *testing.T) {
	db := testutil.DB(t)
	gen := NewIDGenerator(db, testutil.Logger(t), 0)

	_, err := gen.Generate(dbctx.Context{Ctx: context.Background()}, "marriages; DROP TABLE parents", "marriage_id")
	if !domain.IsCode(err, domain.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMapError(t *testing.T) {
	if got := MapError("op", nil); got != nil {
		t.Fatalf("nil: got %v", got)
	}
	if got := MapError("op", context.DeadlineExceeded); !domain.IsCode(got, domain.CodePersistence) {
		t.Fatalf("deadline: got %v", got)
	}
	if got := MapError("op", errors.New("UNIQUE constraint failed: parents.child_id")); !domain.IsCode(got, domain.CodeConflict) {
		t.Fatalf("sqlite unique: got %v", got)
	}
	if got := MapError("op", domain.ErrCycle); got != domain.ErrCycle {
		t.Fatalf("domain errors pass through, got %v", got)
	}
}
