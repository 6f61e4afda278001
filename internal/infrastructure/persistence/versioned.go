package persistence

import (
	"github.com/cryptonexus/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// versioned is the part of shared.BaseAggregateRoot the lock check needs
type versioned interface {
	PersistedVersion() int
	MarkPersisted()
}

// saveVersioned inserts an aggregate that was never stored and otherwise
// rewrites its row only if the row still carries the version the aggregate
// was read at. A row changed by another writer in between yields
// shared.ErrConcurrencyConflict and nothing is written.
func saveVersioned(db *gorm.DB, model any, agg versioned) error {
	if agg.PersistedVersion() == 0 {
		if err := db.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		agg.MarkPersisted()
		return nil
	}

	result := db.Model(model).
		Where("version = ?", agg.PersistedVersion()).
		Select("*").
		Omit(clause.Associations, "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	agg.MarkPersisted()
	return nil
}
