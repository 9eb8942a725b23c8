package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// handleEnrollments routes /api/enrollments — manual enroll.
func (s *Server) handleEnrollments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in struct {
		VisitorID  string `json:"visitor_id"`
		SessionID  string `json:"session_id"`
		SequenceID string `json:"sequence_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	e, err := s.enrollments.Enroll(in.VisitorID, in.SessionID, in.SequenceID)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, e, http.StatusCreated)
}

// handleEnrollmentRoute routes /api/enrollments/{id} plus the scheduler
// endpoints. The due-work endpoints exist so an external cron can drive the
// pull-based scheduler.
func (s *Server) handleEnrollmentRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/enrollments/")

	switch path {
	case "due":
		if r.Method != http.MethodGet {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiListDue(w, r)
		return
	case "run":
		if r.Method != http.MethodPost {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiRunDue(w, r)
		return
	}

	if strings.HasSuffix(path, "/pause") {
		s.apiPauseEnrollment(w, r, strings.TrimSuffix(path, "/pause"), true)
		return
	}
	if strings.HasSuffix(path, "/resume") {
		s.apiPauseEnrollment(w, r, strings.TrimSuffix(path, "/resume"), false)
		return
	}
	if strings.HasSuffix(path, "/execute") {
		if r.Method != http.MethodPost {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiExecuteEnrollment(w, r, strings.TrimSuffix(path, "/execute"))
		return
	}

	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	e, err := s.enrollments.Get(path)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, e, http.StatusOK)
}

func parseLimit(r *http.Request) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		return 0, false
	}
	return limit, true
}

func (s *Server) apiListDue(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		apiError(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return
	}

	due, err := s.enrollments.ListDue(time.Now().UTC(), limit)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, due, http.StatusOK)
}

func (s *Server) apiRunDue(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		apiError(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return
	}

	executed, failed, err := s.enrollments.RunDue(r.Context(), limit)
	if err != nil {
		writeFault(w, err)
		return
	}

	apiJSON(w, map[string]int{
		"executed": executed,
		"failed":   failed,
	}, http.StatusOK)
}

func (s *Server) apiPauseEnrollment(w http.ResponseWriter, r *http.Request, id string, pause bool) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var err error
	var e interface{}
	if pause {
		e, err = s.enrollments.Pause(id)
	} else {
		e, err = s.enrollments.Resume(id)
	}
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, e, http.StatusOK)
}

func (s *Server) apiExecuteEnrollment(w http.ResponseWriter, r *http.Request, id string) {
	res, err := s.enrollments.Execute(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return
	}
	apiJSON(w, res, http.StatusOK)
}
