package storage

// sessions.go contains SQLiteStore methods for the wake-session audit
// log: one row per run, started when holds are acquired and finished
// when teardown completes.

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is one durable wake-session audit record.
type Session struct {
	ID         int64
	StartedAt  time.Time
	EndedAt    time.Time // zero while the session is still running
	Categories string    // comma-separated category names
	Condition  string    // command, pid, timeout, pid+timeout, indefinite
	Outcome    string    // race outcome kind, empty while running
	ExitCode   int
	DryRun     bool
}

// RecordStart inserts a session row and prunes the oldest rows beyond
// maxRows in a single tx. Returns the new row's id for RecordFinish.
func (s *SQLiteStore) RecordStart(sess *Session, maxRows int) (int64, error) {
	if sess == nil {
		return 0, fmt.Errorf("session cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const insertQuery = `
		INSERT INTO wake_sessions (started_at, categories, condition, dry_run)
		VALUES (?, ?, ?, ?)
	`
	res, err := tx.Exec(insertQuery,
		sess.StartedAt.Format(time.RFC3339Nano),
		sess.Categories,
		sess.Condition,
		boolToInt(sess.DryRun),
	)
	if err != nil {
		return 0, fmt.Errorf("insert wake session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	if maxRows > 0 {
		const pruneQuery = `
			DELETE FROM wake_sessions
			WHERE id NOT IN (SELECT id FROM wake_sessions ORDER BY id DESC LIMIT ?)
		`
		if _, err := tx.Exec(pruneQuery, maxRows); err != nil {
			return 0, fmt.Errorf("prune wake sessions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit wake session: %w", err)
	}

	return id, nil
}

// RecordFinish closes out a session row with its outcome.
func (s *SQLiteStore) RecordFinish(id int64, endedAt time.Time, outcome string, exitCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		UPDATE wake_sessions SET ended_at = ?, outcome = ?, exit_code = ?
		WHERE id = ?
	`
	res, err := s.db.Exec(query, endedAt.Format(time.RFC3339Nano), outcome, exitCode, id)
	if err != nil {
		return fmt.Errorf("finish wake session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("wake session %d not found", id)
	}
	return nil
}

// ListSessions returns sessions in reverse chronological order
// (newest first). A limit of 0 returns everything.
func (s *SQLiteStore) ListSessions(limit int) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, started_at, ended_at, categories, condition, outcome, exit_code, dry_run
		FROM wake_sessions
		ORDER BY id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query wake sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var (
			sess       Session
			startedStr string
			endedStr   sql.NullString
			outcome    sql.NullString
			dryRun     int
		)
		err := rows.Scan(
			&sess.ID,
			&startedStr,
			&endedStr,
			&sess.Categories,
			&sess.Condition,
			&outcome,
			&sess.ExitCode,
			&dryRun,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wake session row: %w", err)
		}

		sess.StartedAt, err = time.Parse(time.RFC3339Nano, startedStr)
		if err != nil {
			return nil, fmt.Errorf("parse wake session started_at: %w", err)
		}
		if endedStr.Valid && endedStr.String != "" {
			sess.EndedAt, err = time.Parse(time.RFC3339Nano, endedStr.String)
			if err != nil {
				return nil, fmt.Errorf("parse wake session ended_at: %w", err)
			}
		}
		sess.Outcome = outcome.String
		sess.DryRun = dryRun != 0

		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wake session rows: %w", err)
	}

	return sessions, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
