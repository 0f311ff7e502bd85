package common

import "errors"

// Error kinds. Callers wrap these with fmt.Errorf("...: %w", Err...) and
// classify with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrOutOfRange = errors.New("out of range")
	ErrRender     = errors.New("render failure")
	ErrStartup    = errors.New("startup failure")
)
