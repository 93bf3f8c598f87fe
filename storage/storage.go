// Package storage defines the persistence interfaces for conversation
// sessions and their question/answer history.
package storage

import (
	"context"
	"time"
)

// Session represents one user conversation.
type Session struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"` // cli, http
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exchange records one routed question and its outcome.
type Exchange struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Question    string    `json:"question"`
	Intent      string    `json:"intent"`
	RAGOutput   string    `json:"rag_output,omitempty"`
	SQLOutput   string    `json:"sql_output,omitempty"`
	FinalAnswer string    `json:"final_answer"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Storage is the primary persistence interface. All adapters must implement this.
type Storage interface {
	// Sessions
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	ListSessions(ctx context.Context, limit, offset int) ([]*Session, error)

	// Exchanges (append-only)
	AppendExchange(ctx context.Context, e *Exchange) error
	ListExchanges(ctx context.Context, sessionID string, limit, offset int) ([]*Exchange, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
