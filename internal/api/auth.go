package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/joescharf/tracker/internal/models"
)

type userKey struct{}

type tokenKey struct{}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// bearerToken reads the Authorization header. EventSource cannot set
// headers, so the stream route also accepts ?token=.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if strings.HasSuffix(r.URL.Path, "/stream") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// authed resolves the bearer token and rejects the request with 401 when it
// does not belong to a live session.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		u, err := s.dir.Resolve(r.Context(), token)
		if err != nil {
			s.writeFailure(w, err, "authentication failed")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, u)
		ctx = context.WithValue(ctx, tokenKey{}, token)
		next(w, r.WithContext(ctx))
	}
}

func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey{}).(*models.User)
	return u
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, err := s.dir.Register(r.Context(), c.Email, c.Password)
	if err != nil {
		s.writeFailure(w, err, "sign-up failed")
		return
	}
	s.startSession(w, r, u, http.StatusCreated)
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, err := s.dir.Verify(r.Context(), c.Email, c.Password)
	if err != nil {
		s.writeFailure(w, err, "sign-in failed")
		return
	}
	s.startSession(w, r, u, http.StatusOK)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u *models.User, status int) {
	token, err := s.dir.IssueToken(r.Context(), u)
	if err != nil {
		s.writeFailure(w, err, "could not start session")
		return
	}
	s.logger.Info("session started", "user", u.Email)
	writeJSON(w, status, sessionResponse{Token: token, User: u})
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	token, _ := r.Context().Value(tokenKey{}).(string)
	if err := s.dir.Revoke(r.Context(), token); err != nil {
		s.writeFailure(w, err, "sign-out failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}
