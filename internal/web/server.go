// Package web provides the coordinator's HTTP API.
package web

import (
	"fmt"
	"net/http"

	"github.com/jredmond/openhouse/internal/auth"
	"github.com/jredmond/openhouse/internal/enrollment"
	"github.com/jredmond/openhouse/internal/logging"
	"github.com/jredmond/openhouse/internal/sequence"
	"github.com/jredmond/openhouse/internal/session"
	"github.com/jredmond/openhouse/internal/visitor"
)

// Server is the HTTP API server.
type Server struct {
	sessions     *session.Service
	visitors     *visitor.Service
	sequences    *sequence.Service
	enrollments  *enrollment.Service
	tokens       *auth.TokenStore
	apiKeys      *auth.APIKeyStore
	defaultAgent string
	baseURL      string
	mux          *http.ServeMux
}

// NewServer wires the API routes around the given services.
func NewServer(
	sessions *session.Service,
	visitors *visitor.Service,
	sequences *sequence.Service,
	enrollments *enrollment.Service,
	tokens *auth.TokenStore,
	apiKeys *auth.APIKeyStore,
	defaultAgent, baseURL string,
) *Server {
	s := &Server{
		sessions:     sessions,
		visitors:     visitors,
		sequences:    sequences,
		enrollments:  enrollments,
		tokens:       tokens,
		apiKeys:      apiKeys,
		defaultAgent: defaultAgent,
		baseURL:      baseURL,
		mux:          http.NewServeMux(),
	}

	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/sessions", s.handleSessions)
	s.mux.HandleFunc("/api/sessions/", s.handleSessionRoute)
	s.mux.HandleFunc("/api/visitors/", s.handleVisitorRoute)
	s.mux.HandleFunc("/api/sequences", s.handleSequences)
	s.mux.HandleFunc("/api/sequences/", s.handleSequenceRoute)
	s.mux.HandleFunc("/api/enrollments", s.handleEnrollments)
	s.mux.HandleFunc("/api/enrollments/", s.handleEnrollmentRoute)
	s.mux.HandleFunc("/api/checkin/", s.handleCheckin)
	s.mux.HandleFunc("/api/keys", s.handleKeys)
	s.mux.HandleFunc("/api/keys/", s.handleKeyRoute)

	return s
}

// ServeHTTP implements http.Handler without middleware, for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the full middleware chain: request logging outside,
// API key enforcement inside. The check-in routes stay public.
func (s *Server) Handler() http.Handler {
	return logging.RequestLogger(auth.RequireAPIKey(s.apiKeys, s.mux))
}

// ListenAndServe starts the API server.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
