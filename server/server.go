// Package server exposes the question router over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Dagger77/tabdoc/engine/stream"
	"github.com/Dagger77/tabdoc/orchestrator"
	"github.com/Dagger77/tabdoc/storage"
)

// ReadyFunc reports whether the backing data stores are populated.
type ReadyFunc func(ctx context.Context) (bool, error)

// Server wires the router, persistence and event streaming behind a gin engine.
type Server struct {
	router *orchestrator.Router
	store  storage.Storage
	broker *stream.Broker
	ready  ReadyFunc
	engine *gin.Engine
}

// New builds the HTTP server around a compiled router.
func New(rt *orchestrator.Router, store storage.Storage, broker *stream.Broker, ready ReadyFunc) *Server {
	s := &Server{
		router: rt,
		store:  store,
		broker: broker,
		ready:  ready,
	}
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	e.GET("/healthz", s.handleHealth)
	api := e.Group("/api")
	api.POST("/ask", s.handleAsk)
	api.GET("/ask/stream", s.handleAskStream)
	api.GET("/events", gin.WrapF(broker.SSEHandler()))
	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id/exchanges", s.handleListExchanges)

	s.engine = e
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error { return s.engine.Run(addr) }

type askRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id"`
}

type askResponse struct {
	SessionID  string               `json:"session_id"`
	Result     *orchestrator.Result `json:"result"`
	DurationMS int64                `json:"duration_ms"`
}

func (s *Server) handleHealth(c *gin.Context) {
	ready := true
	if s.ready != nil {
		var err error
		ready, err = s.ready(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
			return
		}
	}
	status := "ok"
	code := http.StatusOK
	if !ready {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status})
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	sessionID, err := s.ensureSession(c.Request.Context(), req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := s.router.Run(c.Request.Context(), req.Question)
	if err != nil {
		s.writeRunError(c, sessionID, result, err)
		return
	}

	s.recordExchange(c.Request.Context(), sessionID, req.Question, result)
	c.JSON(http.StatusOK, askResponse{
		SessionID:  sessionID,
		Result:     result,
		DurationMS: result.Duration.Milliseconds(),
	})
}

// handleAskStream runs a question and streams summary fragments to the
// caller as SSE events: "token" per fragment, then one "done" carrying the
// full result, or "error".
func (s *Server) handleAskStream(c *gin.Context) {
	question := c.Query("question")
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}
	sessionID, err := s.ensureSession(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	onToken := func(frag string) {
		c.SSEvent("token", frag)
		c.Writer.Flush()
		s.broker.Publish(stream.Event{Type: "token", Session: sessionID, Data: frag})
	}

	result, err := s.router.RunStream(c.Request.Context(), question, onToken)
	if err != nil {
		c.SSEvent("error", gin.H{"error": err.Error()})
		c.Writer.Flush()
		s.broker.Publish(stream.Event{Type: "error", Session: sessionID, Data: err.Error()})
		return
	}

	s.recordExchange(c.Request.Context(), sessionID, question, result)
	c.SSEvent("done", askResponse{
		SessionID:  sessionID,
		Result:     result,
		DurationMS: result.Duration.Milliseconds(),
	})
	c.Writer.Flush()
	s.broker.Publish(stream.Event{Type: "done", Session: sessionID})
}

func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.store.ListSessions(c.Request.Context(), 50, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []*storage.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleListExchanges(c *gin.Context) {
	exchanges, err := s.store.ListExchanges(c.Request.Context(), c.Param("id"), 100, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if exchanges == nil {
		exchanges = []*storage.Exchange{}
	}
	c.JSON(http.StatusOK, gin.H{"exchanges": exchanges})
}

// ensureSession returns a valid session ID, creating a session when the
// caller did not supply one.
func (s *Server) ensureSession(ctx context.Context, id string) (string, error) {
	now := time.Now().UTC()
	if id != "" {
		if err := s.store.TouchSession(ctx, id, now); err == nil {
			return id, nil
		}
		// Unknown ID: fall through and mint a fresh session.
	}
	sess := &storage.Session{
		ID:        uuid.NewString(),
		Channel:   "http",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (s *Server) recordExchange(ctx context.Context, sessionID, question string, result *orchestrator.Result) {
	e := &storage.Exchange{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Question:    question,
		Intent:      string(result.Intent),
		FinalAnswer: result.FinalAnswer,
		DurationMS:  result.Duration.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if result.RAGOutput != nil {
		e.RAGOutput = *result.RAGOutput
	}
	if result.SQLOutput != nil {
		e.SQLOutput = *result.SQLOutput
	}
	// Best effort; losing history must not fail the request.
	_ = s.store.AppendExchange(ctx, e)
}

func (s *Server) writeRunError(c *gin.Context, sessionID string, result *orchestrator.Result, err error) {
	var classErr *orchestrator.ClassificationError
	var sumErr *orchestrator.SummarizationError
	switch {
	case errors.Is(err, orchestrator.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &classErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &sumErr):
		// Partial outputs survive summarization failure.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      err.Error(),
			"session_id": sessionID,
			"result":     result,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
