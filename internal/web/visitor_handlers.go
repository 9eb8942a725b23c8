package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jredmond/openhouse/internal/visitor"
)

// handleVisitorRoute routes /api/visitors/{id} and its sub-resources.
func (s *Server) handleVisitorRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/visitors/")

	// /api/visitors/{id}/notes
	if strings.HasSuffix(path, "/notes") {
		if r.Method != http.MethodPost {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiAppendNotes(w, r, strings.TrimSuffix(path, "/notes"))
		return
	}

	// /api/visitors/{id}
	switch r.Method {
	case http.MethodGet:
		s.apiGetVisitor(w, path)
	case http.MethodPatch:
		s.apiUpdateVisitor(w, r, path)
	case http.MethodDelete:
		s.apiDeleteVisitor(w, path)
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// apiCheckInVisitor records a check-in against the session. source tags
// where the check-in came from when the client does not say.
func (s *Server) apiCheckInVisitor(w http.ResponseWriter, r *http.Request, sessionID, source string) {
	var in visitor.CheckInInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if in.Source == "" {
		in.Source = source
	}

	v, err := s.visitors.CheckIn(sessionID, in)
	if err != nil {
		writeFault(w, err)
		return
	}

	apiJSON(w, v, http.StatusCreated)
}

func (s *Server) apiListVisitors(w http.ResponseWriter, sessionID string) {
	visitors, err := s.visitors.ListBySession(sessionID)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, visitors, http.StatusOK)
}

func (s *Server) apiGetVisitor(w http.ResponseWriter, id string) {
	v, err := s.visitors.Get(id)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, v, http.StatusOK)
}

func (s *Server) apiUpdateVisitor(w http.ResponseWriter, r *http.Request, id string) {
	var in visitor.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	v, err := s.visitors.Update(id, in)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, v, http.StatusOK)
}

func (s *Server) apiDeleteVisitor(w http.ResponseWriter, id string) {
	if err := s.visitors.Delete(id); err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, map[string]string{"deleted": id}, http.StatusOK)
}

func (s *Server) apiAppendNotes(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	v, err := s.visitors.AppendNotes(id, body.Text)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, v, http.StatusOK)
}
