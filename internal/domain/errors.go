package domain

import "errors"

var (
	ErrResultNotFound = errors.New("batch result not found")
	ErrEmptyMessage   = errors.New("message text must not be empty")
)
