package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// TokenStore manages session check-in tokens in SQLite. Each session gets
// one token at creation; its QR payload is {baseURL}/checkin/{token}.
// Unlike a magic link the token is reusable for the lifetime of the session.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a check-in token store.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Create generates and stores a check-in token for the given session.
// Returns the raw token string.
func (s *TokenStore) Create(sessionID string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	if _, err := s.db.Exec(
		"INSERT INTO checkin_tokens (token, session_id) VALUES (?, ?)",
		token, sessionID,
	); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}

	return token, nil
}

// Resolve returns the session ID a check-in token belongs to.
func (s *TokenStore) Resolve(token string) (string, error) {
	var sessionID string
	err := s.db.QueryRow(
		"SELECT session_id FROM checkin_tokens WHERE token = ?",
		token,
	).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("invalid check-in token")
	}
	if err != nil {
		return "", fmt.Errorf("querying token: %w", err)
	}

	return sessionID, nil
}

// TokenFor returns the token for a session, if one exists.
func (s *TokenStore) TokenFor(sessionID string) (string, error) {
	var token string
	err := s.db.QueryRow(
		"SELECT token FROM checkin_tokens WHERE session_id = ?",
		sessionID,
	).Scan(&token)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no check-in token for session %s", sessionID)
	}
	if err != nil {
		return "", fmt.Errorf("querying token: %w", err)
	}

	return token, nil
}

// QRPayload builds the URL encoded into the session's check-in QR code.
func QRPayload(baseURL, token string) string {
	return fmt.Sprintf("%s/checkin/%s", baseURL, token)
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
