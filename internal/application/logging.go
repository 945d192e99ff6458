package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/schoolsoft-sync/internal/logging"
	"github.com/example/schoolsoft-sync/internal/persistence"
	"github.com/example/schoolsoft-sync/internal/schoolsoft"
	"github.com/example/schoolsoft-sync/internal/session"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrRefreshInFlight):
		return "refresh_in_flight"
	case errors.Is(err, ErrSessionChanged):
		return "session_changed"
	case errors.Is(err, ErrNoOrganization):
		return "no_organization"
	case errors.Is(err, session.ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, session.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, schoolsoft.ErrInvalidAuth):
		return "invalid_auth"
	case errors.Is(err, schoolsoft.ErrConnection):
		return "connection"
	case errors.Is(err, schoolsoft.ErrServer):
		return "server"
	case errors.Is(err, persistence.ErrNotFound):
		return "not_found"
	}

	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return "sync_" + syncErr.Step
	}

	return "unexpected"
}
