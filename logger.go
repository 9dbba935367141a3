package facegate

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/facegate/session"
)

// Logger wraps slog.Logger with facegate-specific helpers so register
// and login flows log with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithFlow adds a flow correlation ID field to the logger.
func (l *Logger) WithFlow(id string) *Logger {
	return &Logger{Logger: l.Logger.With("flow", id)}
}

// LogRegister logs a register operation with the flow's state at the
// time of logging, terminal on success.
func (l *Logger) LogRegister(ctx context.Context, flow *session.Flow, identity string, replaced bool, err error) {
	log := l.WithFlow(flow.ID())
	if err != nil {
		log.WarnContext(ctx, "register failed",
			"state", flow.State().String(),
			"identity", identity,
			"error", err,
		)
	} else {
		log.InfoContext(ctx, "identity enrolled",
			"state", flow.State().String(),
			"identity", identity,
			"replaced", replaced,
		)
	}
}

// LogLogin logs a login operation with the flow's state at the time
// of logging, terminal for every defined outcome.
func (l *Logger) LogLogin(ctx context.Context, flow *session.Flow, outcome LoginOutcome, err error) {
	log := l.WithFlow(flow.ID())
	if err != nil {
		log.ErrorContext(ctx, "login failed",
			"state", flow.State().String(),
			"status", outcome.Status.String(),
			"error", err,
		)
		return
	}

	switch outcome.Status {
	case LoginAuthenticated:
		log.InfoContext(ctx, "login authenticated",
			"state", flow.State().String(),
			"identity", outcome.Identity,
			"distance", outcome.Distance,
			"duplicate_suppressed", outcome.DuplicateSuppressed,
		)
	case LoginRejected:
		log.InfoContext(ctx, "login rejected",
			"state", flow.State().String(),
			"ambiguous", outcome.Ambiguous,
		)
	case LoginNoFaceDetected:
		log.DebugContext(ctx, "login saw no face", "state", flow.State().String())
	}
}
