// Package store persists sessions and transcripts in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"meeting-sidekick/internal/faults"
)

// Store provides access to the session database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL DEFAULT '',
	client_id      TEXT NOT NULL DEFAULT '',
	started_at     INTEGER NOT NULL,
	ended_at       INTEGER,
	has_audio      INTEGER NOT NULL DEFAULT 0,
	has_transcript INTEGER NOT NULL DEFAULT 0,
	has_summary    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS transcript_segments (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	text       TEXT NOT NULL,
	start_time REAL NOT NULL,
	end_time   REAL NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, seq)
);
`

// Open opens (creating if needed) the database at path with WAL enabled.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(id, title, clientID string, startedAt time.Time) (*Session, error) {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, title, client_id, started_at)
		VALUES (?, ?, ?, ?)
	`, id, title, clientID, startedAt.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &Session{ID: id, Title: title, ClientID: clientID, StartedAt: startedAt.UTC()}, nil
}

// GetSession returns a session by id, or NotFoundError.
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, title, client_id, started_at, ended_at, has_audio, has_transcript, has_summary
		FROM sessions
		WHERE id = ?
	`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, &faults.NotFoundError{Kind: "session", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}

// EndSession stamps the session's end time. Idempotent.
func (s *Store) EndSession(id string, endedAt time.Time) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET ended_at = COALESCE(ended_at, ?) WHERE id = ?
	`, endedAt.UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return requireRow(res, "session", id)
}

// SetTitle updates the session title.
func (s *Store) SetTitle(id, title string) error {
	res, err := s.db.Exec(`UPDATE sessions SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return requireRow(res, "session", id)
}

// SetHasAudio marks the session as having a finalized audio artifact.
func (s *Store) SetHasAudio(id string) error {
	res, err := s.db.Exec(`UPDATE sessions SET has_audio = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("set has_audio: %w", err)
	}
	return requireRow(res, "session", id)
}

// SetHasSummary marks the session as having at least one exported summary.
func (s *Store) SetHasSummary(id string) error {
	res, err := s.db.Exec(`UPDATE sessions SET has_summary = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("set has_summary: %w", err)
	}
	return requireRow(res, "session", id)
}

// ListSessions returns sessions ordered newest first.
func (s *Store) ListSessions(limit, offset int) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, title, client_id, started_at, ended_at, has_audio, has_transcript, has_summary
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and its transcript.
func (s *Store) DeleteSession(id string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRow(res, "session", id)
}

// ReplaceTranscript atomically replaces the session's transcript with the
// given ordered segments and sets has_transcript. Either the full
// transcript lands or none of it does, so the flag stays meaningful.
func (s *Store) ReplaceTranscript(sessionID string, segments []Segment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transcript tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM transcript_segments WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear transcript: %w", err)
	}
	for _, seg := range segments {
		if _, err := tx.Exec(`
			INSERT INTO transcript_segments (session_id, seq, text, start_time, end_time, confidence)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sessionID, seg.Seq, seg.Text, seg.StartTime, seg.EndTime, seg.Confidence); err != nil {
			return fmt.Errorf("insert segment %d: %w", seg.Seq, err)
		}
	}
	res, err := tx.Exec(`UPDATE sessions SET has_transcript = 1 WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("set has_transcript: %w", err)
	}
	if err := requireRow(res, "session", sessionID); err != nil {
		return err
	}

	return tx.Commit()
}

// Transcript returns the session's segments in order.
func (s *Store) Transcript(sessionID string) ([]Segment, error) {
	rows, err := s.db.Query(`
		SELECT seq, text, start_time, end_time, confidence
		FROM transcript_segments
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.Seq, &seg.Text, &seg.StartTime, &seg.EndTime, &seg.Confidence); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var startedAt int64
	var endedAt sql.NullInt64
	var hasAudio, hasTranscript, hasSummary int

	if err := row.Scan(&sess.ID, &sess.Title, &sess.ClientID, &startedAt, &endedAt,
		&hasAudio, &hasTranscript, &hasSummary); err != nil {
		return nil, err
	}

	sess.StartedAt = time.Unix(startedAt, 0).UTC()
	if endedAt.Valid {
		t := time.Unix(endedAt.Int64, 0).UTC()
		sess.EndedAt = &t
	}
	sess.HasAudio = hasAudio != 0
	sess.HasTranscript = hasTranscript != 0
	sess.HasSummary = hasSummary != 0
	return &sess, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &faults.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
