package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AddReplyLog inserts a new reply log entry.
func (s *SQLiteStore) AddReplyLog(log ReplyLog) error {
	query := `
		INSERT INTO reply_logs (
			id, persona, conversation, prompt, response,
			attempts, duration_ms, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		log.ID,
		log.Persona,
		log.Conversation,
		log.Prompt,
		log.Response,
		log.Attempts,
		log.DurationMs,
		log.Success,
		log.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to add reply log: %w", err)
	}
	recordReplyLogInsert(log.Persona, log.Success)
	return nil
}

// GetReplyLogs returns the most recent reply logs for a persona.
// If persona is "", returns logs for all personas.
func (s *SQLiteStore) GetReplyLogs(persona string, limit int) ([]ReplyLog, error) {
	var query string
	var args []interface{}

	if persona != "" {
		query = `
			SELECT id, persona, conversation, prompt, response,
				   attempts, duration_ms, success, error_message, created_at
			FROM reply_logs
			WHERE persona = ?
			ORDER BY created_at DESC
			LIMIT ?
		`
		args = []interface{}{persona, limit}
	} else {
		query = `
			SELECT id, persona, conversation, prompt, response,
				   attempts, duration_ms, success, error_message, created_at
			FROM reply_logs
			ORDER BY created_at DESC
			LIMIT ?
		`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reply logs: %w", err)
	}
	defer rows.Close()

	return s.scanReplyLogs(rows)
}

// GetReplyLogsExtended returns reply logs with filtering and pagination.
func (s *SQLiteStore) GetReplyLogsExtended(filter ReplyLogFilter, limit, offset int) (ReplyLogResult, error) {
	var result ReplyLogResult

	var conditions []string
	var args []interface{}

	if filter.Persona != "" {
		conditions = append(conditions, "persona = ?")
		args = append(args, filter.Persona)
	}

	if filter.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *filter.Success)
	}

	if filter.Search != "" {
		conditions = append(conditions, "(conversation LIKE ? OR response LIKE ? OR error_message LIKE ?)")
		searchPattern := "%" + filter.Search + "%"
		args = append(args, searchPattern, searchPattern, searchPattern)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM reply_logs " + whereClause
	if err := s.db.QueryRow(countQuery, args...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("failed to count reply logs: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT id, persona, conversation, prompt, response,
			   attempts, duration_ms, success, error_message, created_at
		FROM reply_logs
		%s
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, whereClause)

	args = append(args, limit, offset)
	rows, err := s.db.Query(dataQuery, args...)
	if err != nil {
		return result, fmt.Errorf("failed to query reply logs: %w", err)
	}
	defer rows.Close()

	result.Data, err = s.scanReplyLogs(rows)
	if err != nil {
		return result, err
	}

	return result, nil
}

// PruneReplyLogs deletes entries older than the given age and returns the
// number of deleted rows.
func (s *SQLiteStore) PruneReplyLogs(olderThan time.Duration) (int64, error) {
	start := time.Now()
	cutoff := time.Now().Add(-olderThan).UTC()

	res, err := s.db.Exec("DELETE FROM reply_logs WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune reply logs: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned reply logs: %w", err)
	}

	RecordCleanupDeleted("reply_logs", deleted)
	RecordCleanupDuration("reply_logs", time.Since(start).Seconds())
	if deleted > 0 {
		s.logger.Info("Pruned reply logs", "deleted", deleted, "older_than", olderThan)
	}
	return deleted, nil
}

// scanReplyLogs scans rows into a ReplyLog slice.
func (s *SQLiteStore) scanReplyLogs(rows *sql.Rows) ([]ReplyLog, error) {
	var logs []ReplyLog

	for rows.Next() {
		var log ReplyLog
		var response, errorMessage sql.NullString
		err := rows.Scan(
			&log.ID,
			&log.Persona,
			&log.Conversation,
			&log.Prompt,
			&response,
			&log.Attempts,
			&log.DurationMs,
			&log.Success,
			&errorMessage,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reply log: %w", err)
		}
		if response.Valid {
			log.Response = response.String
		}
		if errorMessage.Valid {
			log.ErrorMessage = errorMessage.String
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return logs, nil
}
