package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jredmond/openhouse/internal/auth"
	"github.com/jredmond/openhouse/internal/session"
)

// handleSessions routes /api/sessions — list or create.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.apiListSessions(w, r)
	case http.MethodPost:
		s.apiCreateSession(w, r)
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSessionRoute routes /api/sessions/{id} and its sub-resources.
func (s *Server) handleSessionRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")

	// /api/sessions/{id}/start (?early=1 when starting ahead of schedule)
	if strings.HasSuffix(path, "/start") {
		fn := s.sessions.Start
		if r.URL.Query().Get("early") == "1" {
			fn = s.sessions.StartEarly
		}
		s.apiTransition(w, r, strings.TrimSuffix(path, "/start"), fn)
		return
	}
	// /api/sessions/{id}/cancel
	if strings.HasSuffix(path, "/cancel") {
		s.apiTransition(w, r, strings.TrimSuffix(path, "/cancel"), s.sessions.Cancel)
		return
	}
	// /api/sessions/{id}/end
	if strings.HasSuffix(path, "/end") {
		if r.Method != http.MethodPost {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiEndSession(w, strings.TrimSuffix(path, "/end"))
		return
	}
	// /api/sessions/{id}/visitors
	if strings.HasSuffix(path, "/visitors") {
		id := strings.TrimSuffix(path, "/visitors")
		switch r.Method {
		case http.MethodGet:
			s.apiListVisitors(w, id)
		case http.MethodPost:
			s.apiCheckInVisitor(w, r, id, "manual")
		default:
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}
	// /api/sessions/{id}/enrollments
	if strings.HasSuffix(path, "/enrollments") {
		if r.Method != http.MethodGet {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiListSessionEnrollments(w, strings.TrimSuffix(path, "/enrollments"))
		return
	}
	// /api/sessions/{id}/token
	if strings.HasSuffix(path, "/token") {
		if r.Method != http.MethodGet {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiSessionToken(w, strings.TrimSuffix(path, "/token"))
		return
	}

	// /api/sessions/{id}
	switch r.Method {
	case http.MethodGet:
		s.apiGetSession(w, path)
	case http.MethodDelete:
		s.apiDeleteSession(w, path)
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) apiListSessions(w http.ResponseWriter, r *http.Request) {
	opts := session.ListOptions{}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		if !session.ValidStatus(statusStr) {
			apiError(w, "status must be scheduled, active, completed, or cancelled", http.StatusBadRequest)
			return
		}
		opts.Status = session.Status(statusStr)
	}

	sessions, err := s.sessions.List(opts)
	if err != nil {
		writeFault(w, err)
		return
	}

	apiJSON(w, sessions, http.StatusOK)
}

func (s *Server) apiCreateSession(w http.ResponseWriter, r *http.Request) {
	var in session.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if in.AgentID == "" {
		in.AgentID = s.defaultAgent
	}

	created, err := s.sessions.Create(in)
	if err != nil {
		writeFault(w, err)
		return
	}

	apiJSON(w, created, http.StatusCreated)
}

func (s *Server) apiGetSession(w http.ResponseWriter, id string) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, sess, http.StatusOK)
}

// apiTransition runs a status transition that returns just the session.
func (s *Server) apiTransition(w http.ResponseWriter, r *http.Request, id string, fn func(string) (*session.Session, error)) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := fn(id)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, sess, http.StatusOK)
}

func (s *Server) apiEndSession(w http.ResponseWriter, id string) {
	sess, minutes, err := s.sessions.End(id)
	if err != nil {
		writeFault(w, err)
		return
	}

	apiJSON(w, map[string]interface{}{
		"session":          sess,
		"duration_minutes": minutes,
	}, http.StatusOK)
}

func (s *Server) apiDeleteSession(w http.ResponseWriter, id string) {
	if err := s.sessions.Delete(id); err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, map[string]string{"deleted": id}, http.StatusOK)
}

func (s *Server) apiSessionToken(w http.ResponseWriter, id string) {
	if _, err := s.sessions.Get(id); err != nil {
		writeFault(w, err)
		return
	}

	token, err := s.tokens.TokenFor(id)
	if err != nil {
		apiError(w, err.Error(), http.StatusNotFound)
		return
	}

	apiJSON(w, map[string]string{
		"checkin_token": token,
		"qr_payload":    auth.QRPayload(s.baseURL, token),
	}, http.StatusOK)
}

func (s *Server) apiListSessionEnrollments(w http.ResponseWriter, id string) {
	if _, err := s.sessions.Get(id); err != nil {
		writeFault(w, err)
		return
	}

	enrollments, err := s.enrollments.ListBySession(id)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, enrollments, http.StatusOK)
}
