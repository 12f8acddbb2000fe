package core

import "errors"

var (
	ErrNotFound            = errors.New("core: record not found")
	ErrAlreadyExists       = errors.New("core: record already exists")
	ErrInsufficientStock   = errors.New("core: insufficient stock")
	ErrInvalidState        = errors.New("core: invalid state")
	ErrInvalidArgument     = errors.New("core: invalid argument")
	ErrContention          = errors.New("core: lock contention, retry")
	ErrValidation          = errors.New("core: validation failed")
	ErrPartialBatchFailure = errors.New("core: partial batch failure")
)
