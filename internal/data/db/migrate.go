package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/familytree-backend/internal/domain/family"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&family.Marriage{},
		&family.ParentLink{},
		&family.MemberProfile{},
	)
}

// EnsureFamilyIndexes adds lookup indexes AutoMigrate cannot express on
// every dialect.
func EnsureFamilyIndexes(db *gorm.DB) error {
	stmts := []struct{ name, sql string }{
		{"idx_marriages_partner_valid", `CREATE INDEX IF NOT EXISTS idx_marriages_partner_valid ON marriages (partner_id, valid);`},
		{"idx_parents_parent_order", `CREATE INDEX IF NOT EXISTS idx_parents_parent_order ON parents (parent_id, id);`},
	}
	for _, st := range stmts {
		if err := db.Exec(st.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", st.name, err)
		}
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating family tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureFamilyIndexes(s.db); err != nil {
		s.log.Error("Family index migration failed", "error", err)
		return err
	}
	return nil
}
