package controlplane

import "errors"

// Sentinel errors for control plane requests.
var (
	ErrInvalidJSON   = errors.New("invalid json")
	ErrEmptyMessage  = errors.New("message is required")
	ErrEmptyToolName = errors.New("tool name is required")
)
