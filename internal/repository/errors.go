package repository

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("already exists")
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
