package store

import (
	"errors"
	"fmt"
)

var (
	ErrNoWallets = errors.New("no wallets available")
	ErrNotFound  = errors.New("not found")
)

// ValidationError rejects a malformed request; it is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a disk failure. In-memory state stays authoritative.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
