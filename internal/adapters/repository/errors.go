package repository

import "errors"

// Sentinel kinds for outcome store errors.
var (
	ErrNotFound     = errors.New("pair not found")
	ErrEmpty        = errors.New("no outcomes recorded")
	ErrInvalidLimit = errors.New("invalid ranking limit")
)
