package file

import (
	"errors"
)

// -- Sentinels --

var (
	ErrPathRequired      = errors.New("path is required")
	ErrOldStringRequired = errors.New("old_string is required")
	ErrNoChange          = errors.New("old_string and new_string are identical")
	ErrNegativeOffset    = errors.New("offset cannot be negative")
	ErrNegativeLimit     = errors.New("limit cannot be negative")
)
