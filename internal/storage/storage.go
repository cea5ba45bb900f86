package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ReplyLog is one generation attempt trace: the rendered prompt, the final
// response (or failure), and timing. One row per GenerateReply call.
type ReplyLog struct {
	ID           string // UUID assigned by the writer
	Persona      string
	Conversation string
	Prompt       string
	Response     string
	Attempts     int
	DurationMs   int
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}

// ReplyLogFilter for filtering reply log queries.
type ReplyLogFilter struct {
	Persona string
	Success *bool // nil = all
	Search  string
}

// ReplyLogResult wraps reply logs with total count for pagination.
type ReplyLogResult struct {
	Data       []ReplyLog
	TotalCount int
}

// ReplyLogRepository is the persistence contract for generation traces.
type ReplyLogRepository interface {
	AddReplyLog(log ReplyLog) error
	GetReplyLogs(persona string, limit int) ([]ReplyLog, error)
	GetReplyLogsExtended(filter ReplyLogFilter, limit, offset int) (ReplyLogResult, error)
	PruneReplyLogs(olderThan time.Duration) (int64, error)
}

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	dbPath string // Original path without query params, for file size check
}

func NewSQLiteStore(logger *slog.Logger, path string) (*SQLiteStore, error) {
	// Save original path for file operations (before adding query params)
	originalPath := path
	if idx := strings.Index(path, "?"); idx != -1 {
		originalPath = path[:idx]
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// A single connection avoids "database is locked" errors with
	// modernc.org/sqlite under concurrent writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// The _journal_mode query param doesn't work with modernc.org/sqlite,
	// so WAL is set via PRAGMA after opening the connection.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		logger.Warn("failed to set WAL journal mode", "error", err)
	} else {
		logger.Info("SQLite journal mode set", "mode", journalMode, "path", originalPath)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("failed to set busy timeout", "error", err)
	}

	return &SQLiteStore{db: db, logger: logger, dbPath: originalPath}, nil
}

func (s *SQLiteStore) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS reply_logs (
		id TEXT PRIMARY KEY,
		persona TEXT NOT NULL,
		conversation TEXT NOT NULL,
		prompt TEXT NOT NULL,
		response TEXT,
		attempts INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reply_logs_persona ON reply_logs(persona);
	CREATE INDEX IF NOT EXISTS idx_reply_logs_created_at ON reply_logs(created_at);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpdateSizeMetric refreshes the database size gauge from the file on disk.
// In-memory databases have no file and are skipped.
func (s *SQLiteStore) UpdateSizeMetric() {
	if s.dbPath == "" || s.dbPath == ":memory:" {
		return
	}
	fi, err := os.Stat(s.dbPath)
	if err != nil {
		s.logger.Warn("failed to stat database file", "path", s.dbPath, "error", err)
		return
	}
	SetStorageSize(fi.Size())
}
