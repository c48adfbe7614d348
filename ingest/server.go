// Package ingest runs the local HTTP endpoint the browser extension
// pushes scraped candidate events to. The listener binds loopback only;
// nothing here is reachable off-machine.
package ingest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/logger"
	"github.com/hirevox/hirevox/roster"
)

// Receipt describes one accepted candidate event. It is published to
// observers and streamed to websocket subscribers.
type Receipt struct {
	Type     string    `json:"type"` // "receipt"
	Phone    string    `json:"phone"`
	Name     string    `json:"name,omitempty"`
	Created  bool      `json:"created"`
	Revision int       `json:"revision"`
	At       time.Time `json:"at"`
}

// Server is the ingestion endpoint.
type Server struct {
	store      *roster.Store
	cfg        am.IngestConfig
	limiter    *rate.Limiter
	hub        *Hub
	httpServer *http.Server

	observerMu sync.RWMutex
	observers  []func(Receipt)
}

// NewServer wires an ingestion server around a record store.
func NewServer(store *roster.Store, cfg am.IngestConfig) *Server {
	s := &Server{
		store:   store,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.EventsPerSecond), cfg.EventBurst),
		hub:     NewHub(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/candidates", s.handleCandidates)
	mux.HandleFunc("/api/session/start", s.handleSessionStart)
	mux.HandleFunc("/api/session/end", s.handleSessionEnd)
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/ws/receipts", s.hub.ServeWS)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// OnReceipt registers an observer called for every accepted event.
// Observers run on the request path and must be fast.
func (s *Server) OnReceipt(fn func(Receipt)) {
	s.observerMu.Lock()
	s.observers = append(s.observers, fn)
	s.observerMu.Unlock()
}

// SetRate adjusts the inbound event rate bound at runtime (config
// reloads while serving).
func (s *Server) SetRate(eventsPerSecond float64, burst int) {
	s.limiter.SetLimit(rate.Limit(eventsPerSecond))
	s.limiter.SetBurst(burst)
	logger.Infow("ingest rate bound updated", "events_per_second", eventsPerSecond, "burst", burst)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens and serves until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.httpServer.Addr)
	}
	logger.Infow("ingestion endpoint listening", "addr", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "ingestion endpoint failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown ingestion endpoint")
		}
		logger.Infow("ingestion endpoint stopped")
		return nil
	}
}

type candidateResponse struct {
	Accepted bool   `json:"accepted"`
	Phone    string `json:"phone"`
	Revision int    `json:"revision"`
}

// handleCandidates accepts one candidate event per request. Malformed
// payloads get a 400 and the endpoint keeps serving; ingestion never
// takes the process down.
func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "event rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxPayloadBytes)
	var event roster.CandidateEvent
	if err := readJSON(w, r, &event); err != nil {
		return
	}

	validated, err := roster.ValidateEvent(event)
	if err != nil {
		logger.Debugw("event rejected", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.store.Upsert(validated)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	receipt := Receipt{
		Type:     "receipt",
		Phone:    res.Record.Normalized,
		Name:     res.Record.Name,
		Created:  res.Created,
		Revision: res.Record.Revision,
		At:       time.Now(),
	}
	s.publish(receipt)

	writeJSON(w, http.StatusOK, candidateResponse{
		Accepted: true,
		Phone:    res.Record.Normalized,
		Revision: res.Record.Revision,
	})
}

func (s *Server) publish(receipt Receipt) {
	s.observerMu.RLock()
	observers := s.observers
	s.observerMu.RUnlock()
	for _, fn := range observers {
		fn(receipt)
	}
	s.hub.Broadcast(receipt)
}

type sessionStartRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req sessionStartRequest
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &req); err != nil {
			return
		}
	}

	sess, err := s.store.StartSession(req.Label)
	if err != nil {
		if errors.IsConflict(err) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	sess, err := s.store.EndSession()
	if err != nil {
		if errors.IsNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	sess, active := s.store.ActiveSession()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":  active,
		"session": sess,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"records": s.store.Len(),
	})
}
