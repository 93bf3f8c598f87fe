// Package sqlite provides a SQLite-backed Storage adapter.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Dagger77/tabdoc/storage"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// Store implements storage.Storage using SQLite.
type Store struct {
	db *sql.DB
}

// New opens a SQLite database at the given path (":memory:" for in-memory).
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Migrate creates all required tables.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS exchanges (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			question TEXT NOT NULL,
			intent TEXT NOT NULL,
			rag_output TEXT,
			sql_output TEXT,
			final_answer TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle so the SQL agent and the ingestion
// pipeline can share one database file with the session store.
func (s *Store) DB() *sql.DB { return s.db }

// --- Sessions ---

func (s *Store) CreateSession(ctx context.Context, sess *storage.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, channel, created_at, updated_at) VALUES (?,?,?,?)`,
		sess.ID, sess.Channel, sess.CreatedAt, sess.UpdatedAt,
	)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel, created_at, updated_at FROM sessions WHERE id=?`, id)
	sess := &storage.Session{}
	if err := row.Scan(&sess.ID, &sess.Channel, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at=? WHERE id=?`, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]*storage.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, created_at, updated_at FROM sessions
		 ORDER BY updated_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Session
	for rows.Next() {
		sess := &storage.Session{}
		if err := rows.Scan(&sess.ID, &sess.Channel, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// --- Exchanges ---

func (s *Store) AppendExchange(ctx context.Context, e *storage.Exchange) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, session_id, question, intent, rag_output, sql_output, final_answer, duration_ms, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, e.SessionID, e.Question, e.Intent, e.RAGOutput, e.SQLOutput,
		e.FinalAnswer, e.DurationMS, e.CreatedAt,
	)
	return err
}

func (s *Store) ListExchanges(ctx context.Context, sessionID string, limit, offset int) ([]*storage.Exchange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, question, intent, rag_output, sql_output, final_answer, duration_ms, created_at
		 FROM exchanges WHERE session_id=? ORDER BY created_at LIMIT ? OFFSET ?`,
		sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Exchange
	for rows.Next() {
		e := &storage.Exchange{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Question, &e.Intent,
			&e.RAGOutput, &e.SQLOutput, &e.FinalAnswer, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
