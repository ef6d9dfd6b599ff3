package service

import "errors"

var (
	// ErrBackupNotFound is returned when the addressed backup version does not
	// exist for the authenticated user.
	ErrBackupNotFound = errors.New("backup version not found")

	// ErrKeyNotFound is returned when the addressed room or session key is not
	// stored in the backup.
	ErrKeyNotFound = errors.New("backup key not found")

	// ErrNotLatestBackup is returned when a key mutation addresses a version
	// that is not the user's most recently created one. Older versions are
	// frozen: readable and deletable, never writable.
	ErrNotLatestBackup = errors.New("you may only manipulate the most recently created version of the backup")

	// ErrInvalidDataProvided is returned when a request body fails validation
	// before any storage call is made.
	ErrInvalidDataProvided = errors.New("invalid data provided")

	ErrTokenIsExpiredOrInvalid = errors.New("token is expired or invalid")
)
