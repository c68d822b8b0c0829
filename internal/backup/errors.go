package backup

import "errors"

var (
	// ErrNotFound means no readable, valid backup exists for the identifier.
	ErrNotFound = errors.New("backup not found")

	// ErrInvalidFormat means the backup content is structurally malformed.
	ErrInvalidFormat = errors.New("invalid backup format")

	// ErrIncompatibleSchema means the backup was taken at a newer schema
	// version than this build supports; restoring it would be a downgrade.
	ErrIncompatibleSchema = errors.New("incompatible backup schema")
)
