package compose

import (
	"context"
	"log/slog"
)

// noopHandler discards every record. go 1.21 (this module's floor)
// predates slog.DiscardHandler (added in go 1.24), so a Subsystem built
// without WithLogger gets one of these instead of a nil *slog.Logger --
// keeps every call site a plain method call, never a nil check.
type noopHandler struct{}

func (noopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h noopHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h noopHandler) WithGroup(string) slog.Handler            { return h }

func discardLogger() *slog.Logger {
	return slog.New(noopHandler{})
}
