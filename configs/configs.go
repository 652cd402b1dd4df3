// Package configs provides configuration assets embedded in the binary.
package configs

import (
	_ "embed"
)

// DefaultScoring is the platform default scoring configuration seed.
// Parsed by the scoring module at startup; PULSE_DEFAULT_CONFIG_PATH
// points at an external file to override it without rebuilding.
//
//go:embed default_scoring.yaml
var DefaultScoring []byte
