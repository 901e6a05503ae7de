// Package logging builds the zap logger every binary and package in
// this module shares, the way the teacher implementation's cmd/*/main.go
// call out to a NewLogger helper keyed off a textual level.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger at the given level ("debug",
// "info", "warn", "error"). Every log line, whatever its level, is
// written to stdout; stderr receives only zap's own internal errors, so
// log lines are not split between the two streams.
func New(level string) (*zap.Logger, error) {
	var lvl zapcore.Level

	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("error while parsing log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("error while building logger: %w", err)
	}

	return l, nil
}
