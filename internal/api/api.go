package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/joescharf/tracker/internal/auth"
	"github.com/joescharf/tracker/internal/store"
	"github.com/joescharf/tracker/internal/tracker"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server provides the REST API handlers.
type Server struct {
	store     store.Store
	dir       *auth.Directory
	submitter *tracker.Submitter
	logger    *slog.Logger
	now       func() time.Time
	keepAlive time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithDuplicateFinder replaces the exact-title duplicate check.
func WithDuplicateFinder(f tracker.DuplicateFinder) Option {
	return func(s *Server) { s.submitter = tracker.NewSubmitter(s.store, f, s.logger) }
}

// WithKeepAlive sets how often an idle event stream gets a comment line.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) { s.keepAlive = d }
}

// NewServer creates a new API server.
func NewServer(s store.Store, dir *auth.Directory, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		store:     s,
		dir:       dir,
		submitter: tracker.NewSubmitter(s, nil, logger),
		logger:    logger,
		now:       time.Now,
		keepAlive: 25 * time.Second,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/signup", s.signUp)
	mux.HandleFunc("POST /api/v1/auth/signin", s.signIn)
	mux.HandleFunc("POST /api/v1/auth/signout", s.authed(s.signOut))
	mux.HandleFunc("GET /api/v1/auth/me", s.authed(s.me))

	mux.HandleFunc("GET /api/v1/issues", s.authed(s.listIssues))
	mux.HandleFunc("POST /api/v1/issues", s.authed(s.createIssue))
	mux.HandleFunc("GET /api/v1/issues/stream", s.authed(s.streamIssues))
	mux.HandleFunc("GET /api/v1/issues/{id}", s.authed(s.getIssue))
	mux.HandleFunc("POST /api/v1/issues/{id}/transition", s.authed(s.transitionIssue))

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps an error to a status code. fallback is the message
// shown for write failures, whose details stay in the log.
func (s *Server) writeFailure(w http.ResponseWriter, err error, fallback string) {
	var authErr *auth.Error
	switch {
	case errors.As(err, &authErr):
		writeError(w, authStatus(authErr), authErr.Message)
	case errors.Is(err, tracker.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, tracker.UserMessage(err))
	case errors.Is(err, tracker.ErrNotSignedIn):
		writeError(w, http.StatusUnauthorized, tracker.MsgNotSignedIn)
	case errors.Is(err, tracker.ErrSubmissionDeclined):
		writeJSON(w, http.StatusConflict, map[string]any{"error": tracker.MsgDuplicateHint, "duplicate": true})
	case errors.Is(err, tracker.ErrRuleViolation):
		writeError(w, http.StatusUnprocessableEntity, tracker.UserMessage(err))
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func authStatus(err *auth.Error) int {
	switch err {
	case auth.ErrInvalidEmail, auth.ErrWeakPassword:
		return http.StatusBadRequest
	case auth.ErrEmailInUse:
		return http.StatusConflict
	default:
		return http.StatusUnauthorized
	}
}
