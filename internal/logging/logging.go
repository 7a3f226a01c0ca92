// Package logging builds the engine's logger: a stderr handler fanned out
// with a per-experiment execution.log handler inside the workspace, so the
// same record reaches the operator's terminal and the run's audit log.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

var level = new(slog.LevelVar)

// SetDebug lowers the global level to debug.
func SetDebug() {
	level.Set(slog.LevelDebug)
}

// ForWorkspace returns a logger writing to stderr and to
// <workspace>/execution.log, plus a closer for the log file.
func ForWorkspace(workspace string) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(filepath.Join(workspace, "execution.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	handler := slogmulti.Fanout(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}),
	)
	return slog.New(handler), f, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
