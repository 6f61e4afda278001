package persistence

import (
	"errors"
	"strings"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// notFound maps gorm's missing-row error to shared.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// isUniqueViolation recognises duplicate-key errors from postgres and sqlite.
// gorm.Config.TranslateError must be on for the typed check to fire.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
