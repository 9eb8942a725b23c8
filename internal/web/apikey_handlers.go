package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/jredmond/openhouse/internal/auth"
)

type apiKeyResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	KeyPrefix  string `json:"key_prefix"`
	CreatedAt  string `json:"created_at,omitempty"`
	LastUsedAt string `json:"last_used_at,omitempty"`
}

func toKeyResponse(k auth.APIKey) apiKeyResponse {
	resp := apiKeyResponse{
		ID:        k.ID,
		Name:      k.Name,
		KeyPrefix: k.KeyPrefix,
	}
	if !k.CreatedAt.IsZero() {
		resp.CreatedAt = k.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	if k.LastUsedAt != nil {
		resp.LastUsedAt = k.LastUsedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return resp
}

// handleKeys routes /api/keys — list or create.
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		keys, err := s.apiKeys.List()
		if err != nil {
			apiError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp := make([]apiKeyResponse, 0, len(keys))
		for _, k := range keys {
			resp = append(resp, toKeyResponse(k))
		}
		apiJSON(w, resp, http.StatusOK)
	case http.MethodPost:
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			apiError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		name := strings.TrimSpace(body.Name)
		if name == "" {
			name = "API Key"
		}

		raw, key, err := s.apiKeys.Create(name)
		if err != nil {
			apiError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// The raw key is shown exactly once.
		apiJSON(w, map[string]interface{}{
			"key":     raw,
			"api_key": toKeyResponse(*key),
		}, http.StatusCreated)
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleKeyRoute routes /api/keys/{id} — delete only.
func (s *Server) handleKeyRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/keys/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		apiError(w, "invalid key ID", http.StatusBadRequest)
		return
	}

	if err := s.apiKeys.Delete(id); err != nil {
		apiError(w, err.Error(), http.StatusNotFound)
		return
	}
	apiJSON(w, map[string]string{"deleted": idStr}, http.StatusOK)
}
