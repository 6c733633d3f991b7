package api

import (
	"net/http"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
	"github.com/joescharf/tracker/internal/tracker"
)

type createIssueRequest struct {
	tracker.Form
	// Confirm answers the duplicate warning ahead of time. Without it a
	// duplicate title gets 409 and the client asks the user.
	Confirm bool `json:"confirm"`
}

type transitionRequest struct {
	Status string `json:"status"`
	// Current is the status the client displays. The rule is checked
	// against it; when empty the stored status is used.
	Current string `json:"current"`
}

func parseFilter(r *http.Request) (models.StatusFilter, error) {
	f, err := models.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		return models.StatusFilter{}, &tracker.ValidationError{Field: "status", Message: err.Error()}
	}
	return f, nil
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeFailure(w, err, "")
		return
	}
	issues, err := s.store.ListIssues(r.Context(), store.QueryFor(filter))
	if err != nil {
		s.writeFailure(w, err, "Failed to load issues.")
		return
	}
	writeJSON(w, http.StatusOK, tracker.BuildCards(issues, s.now()))
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.store.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err, "Failed to load issue.")
		return
	}
	writeJSON(w, http.StatusOK, tracker.NewCard(issue, s.now()))
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	confirm := tracker.Decline
	if req.Confirm {
		confirm = tracker.Accept
	}
	issue, err := s.submitter.Submit(r.Context(), currentUser(r), req.Form, confirm)
	if err != nil {
		s.writeFailure(w, err, tracker.MsgCreateFailed)
		return
	}
	s.logger.Info("issue created", "id", issue.ID, "by", issue.CreatedBy)
	writeJSON(w, http.StatusCreated, tracker.NewCard(issue, s.now()))
}

func (s *Server) transitionIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	requested, err := models.ParseStatus(req.Status)
	if err != nil {
		s.writeFailure(w, &tracker.ValidationError{Field: "status", Message: err.Error()}, "")
		return
	}

	var current models.IssueStatus
	if req.Current != "" {
		if current, err = models.ParseStatus(req.Current); err != nil {
			s.writeFailure(w, &tracker.ValidationError{Field: "current", Message: err.Error()}, "")
			return
		}
	} else {
		issue, err := s.store.GetIssue(r.Context(), id)
		if err != nil {
			s.writeFailure(w, err, tracker.MsgUpdateFailed)
			return
		}
		current = issue.Status
	}

	if err := tracker.Transition(r.Context(), s.store, id, current, requested); err != nil {
		s.writeFailure(w, err, tracker.MsgUpdateFailed)
		return
	}

	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err, tracker.MsgUpdateFailed)
		return
	}
	writeJSON(w, http.StatusOK, tracker.NewCard(issue, s.now()))
}
