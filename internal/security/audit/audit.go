package audit

import (
	"context"
	"log/slog"
	"time"
)

type requestIDKey struct{}

// WithRequestID attaches the request ID that audit entries carry.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the ID set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type Logger struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, now: time.Now}
}

func (al *Logger) LogAction(ctx context.Context, tenantID, userID, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("tenant_id", tenantID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", RequestID(ctx)),
		slog.Time("timestamp", al.now()),
	)
}

// LogLogin records a login attempt. userID is empty for failed attempts.
func (al *Logger) LogLogin(ctx context.Context, tenantID, userID, email, status string) {
	al.LogAction(ctx, tenantID, userID, "login", "session", email, status, "")
}

func (al *Logger) LogLogout(ctx context.Context, tenantID, userID string) {
	al.LogAction(ctx, tenantID, userID, "logout", "session", "", "success", "")
}

// LogDenied records a guard denial for area.
func (al *Logger) LogDenied(ctx context.Context, tenantID, userID, area, reason string) {
	al.LogAction(ctx, tenantID, userID, "access_denied", "area", area, "denied", reason)
}
