// Package replylog records generation traces for the reply audit log.
package replylog

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/runixer/personad/internal/storage"
)

// Entry describes one reply generation for auditing.
type Entry struct {
	Persona      string
	Conversation string
	Prompt       string
	Response     string
	Attempts     int
	Duration     time.Duration
	Success      bool
	ErrorMessage string
}

// Logger writes generation traces to the reply log repository. A failed write
// never fails the reply that produced it.
type Logger struct {
	repo    storage.ReplyLogRepository
	logger  *slog.Logger
	enabled bool
}

// NewLogger creates a reply trace logger.
// If enabled is false, Log() calls will be no-ops.
func NewLogger(repo storage.ReplyLogRepository, logger *slog.Logger, enabled bool) *Logger {
	return &Logger{
		repo:    repo,
		logger:  logger,
		enabled: enabled,
	}
}

// Log records a reply trace and returns its assigned ID, or "" when disabled.
func (l *Logger) Log(entry Entry) string {
	if !l.enabled || l.repo == nil {
		return ""
	}

	id := uuid.NewString()
	log := storage.ReplyLog{
		ID:           id,
		Persona:      entry.Persona,
		Conversation: entry.Conversation,
		Prompt:       entry.Prompt,
		Response:     entry.Response,
		Attempts:     entry.Attempts,
		DurationMs:   int(entry.Duration.Milliseconds()),
		Success:      entry.Success,
		ErrorMessage: entry.ErrorMessage,
		CreatedAt:    time.Now(),
	}

	if err := l.repo.AddReplyLog(log); err != nil {
		l.logger.Warn("failed to save reply log",
			"persona", entry.Persona,
			"error", err,
		)
		return ""
	}
	return id
}

// Enabled returns whether logging is enabled.
func (l *Logger) Enabled() bool {
	return l.enabled
}
