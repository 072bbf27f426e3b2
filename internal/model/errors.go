package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Record errors
	ErrRecordNotFound = errors.New("registration record not found")
	ErrRecordExists   = errors.New("registration record already exists")

	// Storage errors are wrapped in StorageError; this sentinel matches any of them
	ErrStorage = errors.New("registration storage failure")

	// Command errors
	ErrInvalidCommandUsage  = errors.New("invalid register command usage")
	ErrRegistrationDisabled = errors.New("account registration is disabled")
	ErrAlreadyValidated     = errors.New("account is already validated")
	ErrNoExternalAccount    = errors.New("no external account has been claimed")
	ErrTokenMismatch        = errors.New("validation token does not match")

	// Confirmation errors
	ErrStateMismatch = errors.New("no matching pending confirmation")

	// Companion errors
	ErrAlreadyActive     = errors.New("companion already pending or active")
	ErrSpawningDisabled  = errors.New("companion spawning is disabled")
	ErrSessionEnded      = errors.New("player session has ended")
	ErrCompanionNotFound = errors.New("companion not found")

	// Host errors
	ErrPlayerNotFound = errors.New("player not found")
	ErrEntityNotFound = errors.New("entity not found")
)

// StorageError wraps a failed record store operation
type StorageError struct {
	Op      string
	Account string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("registration storage %s %q: %v", e.Op, e.Account, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStorage) match any StorageError
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// NewStorageError wraps err unless it is nil or already a StorageError
func NewStorageError(op, account string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Account: account, Err: err}
}
