package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jredmond/openhouse/internal/sequence"
)

// handleSequences routes /api/sequences — list or create.
func (s *Server) handleSequences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		agent := r.URL.Query().Get("agent_id")
		if agent == "" {
			agent = s.defaultAgent
		}
		sequences, err := s.sequences.List(agent)
		if err != nil {
			writeFault(w, err)
			return
		}
		apiJSON(w, sequences, http.StatusOK)
	case http.MethodPost:
		var in sequence.Input
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apiError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if in.AgentID == "" {
			in.AgentID = s.defaultAgent
		}
		seq, err := s.sequences.Create(in)
		if err != nil {
			writeFault(w, err)
			return
		}
		apiJSON(w, seq, http.StatusCreated)
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSequenceRoute routes /api/sequences/{id} and activation toggles.
func (s *Server) handleSequenceRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sequences/")

	if strings.HasSuffix(path, "/activate") {
		s.apiSetSequenceActive(w, r, strings.TrimSuffix(path, "/activate"), true)
		return
	}
	if strings.HasSuffix(path, "/deactivate") {
		s.apiSetSequenceActive(w, r, strings.TrimSuffix(path, "/deactivate"), false)
		return
	}

	switch r.Method {
	case http.MethodGet:
		seq, err := s.sequences.Get(path)
		if err != nil {
			writeFault(w, err)
			return
		}
		apiJSON(w, seq, http.StatusOK)
	case http.MethodPut:
		var in sequence.Input
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apiError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		seq, err := s.sequences.Update(path, in)
		if err != nil {
			writeFault(w, err)
			return
		}
		apiJSON(w, seq, http.StatusOK)
	case http.MethodDelete:
		if err := s.sequences.Delete(path); err != nil {
			writeFault(w, err)
			return
		}
		apiJSON(w, map[string]string{"deleted": path}, http.StatusOK)
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) apiSetSequenceActive(w http.ResponseWriter, r *http.Request, id string, active bool) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	seq, err := s.sequences.SetActive(id, active)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, seq, http.StatusOK)
}
