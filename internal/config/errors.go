// Package config provides configuration types and defaults for dovetail.
package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidFallbackMode indicates an unknown fallback mode name was provided.
	ErrInvalidFallbackMode = errors.New("invalid fallback mode")

	// ErrInvalidCRF indicates a CRF value outside the valid 0-51 range.
	ErrInvalidCRF = errors.New("CRF value out of range")

	// ErrInvalidDoviMode indicates a dovi_tool mode outside 0-5.
	ErrInvalidDoviMode = errors.New("dovi_tool mode out of range")

	// ErrNoLibraryRoots indicates no library roots were configured.
	ErrNoLibraryRoots = errors.New("no library roots configured")

	// ErrMissingTool indicates a tool path is empty.
	ErrMissingTool = errors.New("tool path not set")

	// ErrInvalidGrace indicates a non-positive terminate grace period.
	ErrInvalidGrace = errors.New("terminate grace must be positive")
)
