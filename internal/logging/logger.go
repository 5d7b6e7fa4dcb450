package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithTenant returns a logger with tenant context fields attached.
// Use this for all logging on tenant-scoped request paths.
func WithTenant(tenantID, userID string) *slog.Logger {
	return slog.With(
		"tenant_id", tenantID,
		"user_id", userID,
	)
}

// WithJob returns a logger scoped to one embedding job.
func WithJob(logger *slog.Logger, jobID int64, targetTable, targetID string) *slog.Logger {
	return logger.With(
		"job_id", jobID,
		"target_table", targetTable,
		"target_id", targetID,
	)
}
