package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/myuser/txkv/internal/command"
	"github.com/myuser/txkv/internal/config"
	"github.com/myuser/txkv/internal/metrics"
	"github.com/myuser/txkv/internal/txn"
)

const (
	maxCommandBytes = 1 << 20
	maxRestoreBytes = 64 << 20
)

// Server exposes a transaction manager over HTTP. Each client opens a
// session, sends one command line per request and closes the session when
// done; sessions left idle are reaped.
type Server struct {
	cfg      config.ServerConfig
	mgr      *txn.Manager
	sessions *sessionTable
	metrics  *metrics.Registry
	logger   *zap.Logger
	router   *mux.Router
}

type sessionResponse struct {
	ID    string `json:"id"`
	Depth int    `json:"depth"`
}

type execResponse struct {
	Output string `json:"output"`
	Found  *bool  `json:"found,omitempty"`
	Count  *int   `json:"count,omitempty"`
	Depth  int    `json:"depth"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(cfg config.ServerConfig, mgr *txn.Manager, m *metrics.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		mgr:      mgr,
		sessions: newSessionTable(),
		metrics:  m,
		logger:   logger,
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/sessions", s.handleOpen).Methods(http.MethodPost)
	s.router.HandleFunc("/sessions/{id}", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/sessions/{id}", s.handleClose).Methods(http.MethodDelete)
	s.router.HandleFunc("/sessions/{id}/exec", s.handleExec).Methods(http.MethodPost)
	s.router.HandleFunc("/debug/dump", s.handleDump).Methods(http.MethodGet)
	s.router.HandleFunc("/debug/restore", s.handleRestore).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Addr and reaps idle sessions until ctx is cancelled,
// then shuts the listener down and closes every remaining session.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	reapCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go s.sessions.runReaper(reapCtx, s.cfg.ReapInterval.Duration,
		s.cfg.SessionIdleTimeout.Duration, s.logger, s.metrics)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.sessions.closeAll()
	s.logger.Info("server stopped")
	return err
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	sess := s.mgr.NewSession()
	s.sessions.add(sess)
	s.logger.Info("session opened", zap.String("session", sess.ID()), zap.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: sess.ID(), Depth: sess.Depth()})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.sessions.remove(id) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}
	s.logger.Info("session closed", zap.String("session", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	cmd, err := command.Parse(strings.TrimSpace(string(body)))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := command.Execute(sess, cmd)
	if errors.Is(err, txn.ErrNoActiveTransaction) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: command.NoTransaction})
		return
	}
	if err != nil {
		s.logger.Error("exec failed", zap.String("session", sess.ID()), zap.Stringer("command", cmd), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	resp := execResponse{Output: res.String(), Depth: sess.Depth()}
	switch cmd.Op {
	case command.OpGet:
		resp.Found = &res.Found
	case command.OpCount:
		resp.Count = &res.Count
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	data, err := s.mgr.Store().Dump()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handleRestore replaces the shared store with a /debug/dump image.
// Open transactions keep their snapshots and merge into the restored state.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRestoreBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	store := s.mgr.Store()
	if err := store.Restore(body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	keys := store.Len()
	s.logger.Info("store restored", zap.Int("keys", keys), zap.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusOK, map[string]int{"keys": keys})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.len(),
		"keys":     s.mgr.Store().Len(),
	})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*txn.Session, bool) {
	id := mux.Vars(r)["id"]
	sess, ok := s.sessions.lookup(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session"})
	}
	return sess, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
