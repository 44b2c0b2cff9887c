package graph

import (
	"context"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/familytree-backend/internal/platform/logger"
	"github.com/yungbote/familytree-backend/internal/platform/neo4jdb"
)

// FamilyGraph mirrors relationship mutations into Neo4j as
// (:Member)-[:MARRIED_TO]-(:Member) and (:Member)-[:PARENT_OF]->(:Member).
// The relational store stays authoritative; a nil client makes every call a
// no-op.
type FamilyGraph struct {
	client     *neo4jdb.Client
	log        *logger.Logger
	schemaOnce sync.Once
}

func NewFamilyGraph(client *neo4jdb.Client, log *logger.Logger) *FamilyGraph {
	return &FamilyGraph{client: client, log: log.With("graph", "FamilyGraph")}
}

func (g *FamilyGraph) enabled() bool {
	return g != nil && g.client != nil && g.client.Driver != nil
}

func (g *FamilyGraph) UpsertMarriage(ctx context.Context, marriageID, a, b, scope string) error {
	return g.write(ctx, `
MERGE (a:Member {id: $a})
MERGE (b:Member {id: $b})
MERGE (a)-[m:MARRIED_TO {marriage_id: $marriage_id}]->(b)
SET m.scope_id = $scope, m.valid = true, m.synced_at = $now
`, map[string]any{"a": a, "b": b, "marriage_id": marriageID, "scope": scope})
}

// EndMarriages invalidates every mirrored marriage touching memberID.
func (g *FamilyGraph) EndMarriages(ctx context.Context, memberID string) error {
	return g.write(ctx, `
MATCH (:Member {id: $id})-[m:MARRIED_TO]-(:Member)
SET m.valid = false, m.synced_at = $now
`, map[string]any{"id": memberID})
}

func (g *FamilyGraph) UpsertParentLink(ctx context.Context, parentID, childID string) error {
	return g.write(ctx, `
MERGE (p:Member {id: $parent})
MERGE (c:Member {id: $child})
MERGE (p)-[e:PARENT_OF]->(c)
SET e.synced_at = $now
`, map[string]any{"parent": parentID, "child": childID})
}

func (g *FamilyGraph) RemoveParentLink(ctx context.Context, parentID, childID string) error {
	return g.write(ctx, `
MATCH (:Member {id: $parent})-[e:PARENT_OF]->(:Member {id: $child})
DELETE e
`, map[string]any{"parent": parentID, "child": childID})
}

// DetachMember mirrors a full removal: marriages end and parent edges in
// both directions are dropped.
func (g *FamilyGraph) DetachMember(ctx context.Context, memberID string) error {
	if err := g.EndMarriages(ctx, memberID); err != nil {
		return err
	}
	return g.write(ctx, `
MATCH (:Member {id: $id})-[e:PARENT_OF]-(:Member)
DELETE e
`, map[string]any{"id": memberID})
}

func (g *FamilyGraph) write(ctx context.Context, cypher string, params map[string]any) error {
	if !g.enabled() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	params["now"] = time.Now().UTC().Format(time.RFC3339Nano)

	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)

	g.schemaOnce.Do(func() {
		q := `CREATE CONSTRAINT family_member_id_unique IF NOT EXISTS FOR (m:Member) REQUIRE m.id IS UNIQUE`
		if res, err := session.Run(ctx, q, nil); err != nil {
			g.log.Warn("neo4j schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	})

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return err
}
