package web

import (
	"net/http"
	"strings"
)

// handleCheckin routes /api/checkin/{token}. These routes are public: the
// token from the QR code is the credential. GET describes the session for
// the check-in form; POST records the visitor.
func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, "/api/checkin/")
	if token == "" || strings.Contains(token, "/") {
		apiError(w, "check-in token required", http.StatusNotFound)
		return
	}

	sessionID, err := s.tokens.Resolve(token)
	if err != nil {
		apiError(w, "invalid check-in token", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.apiCheckinInfo(w, sessionID)
	case http.MethodPost:
		s.apiCheckInVisitor(w, r, sessionID, "qr")
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// apiCheckinInfo returns just enough for the check-in form, not the full
// session record with its aggregates.
func (s *Server) apiCheckinInfo(w http.ResponseWriter, sessionID string) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		writeFault(w, err)
		return
	}

	apiJSON(w, map[string]interface{}{
		"session_id": sess.ID,
		"address":    sess.Address,
		"status":     sess.Status,
	}, http.StatusOK)
}
