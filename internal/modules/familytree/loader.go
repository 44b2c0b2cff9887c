package familytree

import (
	"context"
	"strings"

	"github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/platform/dbctx"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

// RelationReader is the read half of the persistence collaborator.
type RelationReader interface {
	GetRelations(dbc dbctx.Context, memberID string) (family.Relations, error)
}

// Loader materializes one member's immediate neighbourhood.
type Loader interface {
	Load(ctx context.Context, memberID string) (*family.Member, error)
}

type GraphLoader struct {
	reader RelationReader
	log    *logger.Logger
}

func NewGraphLoader(reader RelationReader, log *logger.Logger) *GraphLoader {
	return &GraphLoader{reader: reader, log: log.With("component", "GraphLoader")}
}

// Load reads a member's parent, children and partner. A member with no
// recorded relations is returned with empty fields. Persistence errors are
// returned as-is and never retried here.
func (l *GraphLoader) Load(ctx context.Context, memberID string) (*family.Member, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, family.NewError(family.CodeValidation, "load_member", "member id required", nil)
	}
	rel, err := l.reader.GetRelations(dbctx.Context{Ctx: ctx}, memberID)
	if err != nil {
		return nil, err
	}
	return rel.ToMember(memberID), nil
}
