package family

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domain "github.com/yungbote/familytree-backend/internal/domain/family"
)

// MapError classifies storage failures into domain error codes.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *domain.Error
	if errors.As(err, &fe) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.Wrap(domain.CodeNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.Wrap(domain.CodeConflict, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Wrap(domain.CodePersistence, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return domain.Wrap(domain.CodeConflict, op, err) // unique_violation
		case "23503", "23514":
			return domain.Wrap(domain.CodeValidation, op, err) // foreign_key / check
		}
		return domain.Wrap(domain.CodePersistence, op, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint failed"):
		return domain.Wrap(domain.CodeConflict, op, err)
	default:
		return domain.Wrap(domain.CodePersistence, op, err)
	}
}
