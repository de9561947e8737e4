package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound   = errors.New("not found")
	ErrEmptyTitle = errors.New("task title is empty")
)
