package family

import (
	"crypto/rand"
	"fmt"
	"io"

	"gorm.io/gorm"

	domain "github.com/yungbote/familytree-backend/internal/domain/family"
	"github.com/yungbote/familytree-backend/internal/platform/dbctx"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

const (
	idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"
	IDLength   = 11

	DefaultIDMaxAttempts = 10
)

// idColumns lists the only table/column pairs ids may be generated for.
// Names are interpolated into SQL, so anything else is rejected.
var idColumns = map[string]map[string]bool{
	"marriages": {"marriage_id": true},
}

type IDGenerator struct {
	db          *gorm.DB
	log         *logger.Logger
	maxAttempts int
	rand        io.Reader
}

func NewIDGenerator(db *gorm.DB, baseLog *logger.Logger, maxAttempts int) *IDGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultIDMaxAttempts
	}
	return &IDGenerator{
		db:          db,
		log:         baseLog.With("component", "IDGenerator"),
		maxAttempts: maxAttempts,
		rand:        rand.Reader,
	}
}

// Generate returns an 11-character token not present in table.field.
// It gives up with an id_exhausted error after the configured number of
// collisions.
func (g *IDGenerator) Generate(dbc dbctx.Context, table, field string) (string, error) {
	const op = "generate_unique_id"
	if !idColumns[table][field] {
		return "", domain.NewError(domain.CodeValidation, op, fmt.Sprintf("ids cannot be generated for %s.%s", table, field), nil)
	}
	t := dbc.Tx
	if t == nil {
		t = g.db
	}
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		token, err := g.token()
		if err != nil {
			return "", domain.Wrap(domain.CodeInternal, op, err)
		}
		var n int64
		if err := t.WithContext(dbc.Ctx).
			Table(table).
			Where(field+" = ?", token).
			Count(&n).Error; err != nil {
			return "", MapError(op, err)
		}
		if n == 0 {
			return token, nil
		}
		g.log.Warn("generated id collided", "table", table, "attempt", attempt)
	}
	return "", domain.NewError(domain.CodeIDExhausted, op, fmt.Sprintf("no free id in %s.%s after %d attempts", table, field, g.maxAttempts), nil)
}

// The alphabet has 64 symbols so masking a random byte is unbiased.
func (g *IDGenerator) token() (string, error) {
	buf := make([]byte, IDLength)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = idAlphabet[b&63]
	}
	return string(buf), nil
}
