package graph

import (
	"context"
	"testing"

	"github.com/yungbote/familytree-backend/internal/platform/logger"
	"github.com/yungbote/familytree-backend/internal/platform/neo4jdb"
)

func TestFamilyGraph_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	for name, g := range map[string]*FamilyGraph{
		"nil graph":     nil,
		"nil client":    NewFamilyGraph(nil, logger.NewNop()),
		"closed client": NewFamilyGraph(&neo4jdb.Client{}, logger.NewNop()),
	} {
		t.Run(name, func(t *testing.T) {
			if g.enabled() {
				t.Fatalf("expected disabled graph")
			}
			if err := g.UpsertMarriage(ctx, "M1", "A", "B", "S"); err != nil {
				t.Fatalf("UpsertMarriage: %v", err)
			}
			if err := g.EndMarriages(ctx, "A"); err != nil {
				t.Fatalf("EndMarriages: %v", err)
			}
			if err := g.UpsertParentLink(ctx, "A", "C"); err != nil {
				t.Fatalf("UpsertParentLink: %v", err)
			}
			if err := g.RemoveParentLink(ctx, "A", "C"); err != nil {
				t.Fatalf("RemoveParentLink: %v", err)
			}
			if err := g.DetachMember(ctx, "A"); err != nil {
				t.Fatalf("DetachMember: %v", err)
			}
		})
	}
}
