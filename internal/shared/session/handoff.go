package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenIssuer   = "match-engine"
	TokenAudience = "collaboration"
	tokenTTL      = time.Minute * 5
)

var (
	ErrMissingEndpoint = errors.New("collaboration service url is not configured")
	ErrMissingSecret   = errors.New("jwt secret is not configured")
)

// Request is what the collaboration service needs to open a practice session for a pair.
// User1 is the party whose parameters were assigned.
type Request struct {
	MatchID    string `json:"matchId"`
	User1ID    string `json:"user1Id"`
	User2ID    string `json:"user2Id"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

type response struct {
	SessionID string `json:"sessionId"`
}

// Handoff creates the downstream session for a freshly formed pair. It is a notification:
// callers log failures and keep the match.
type Handoff interface {
	CreateSession(ctx context.Context, req Request) (string, error)
}

type HTTPHandoff struct {
	baseURL string
	secret  []byte
	client  *http.Client
	now     func() time.Time
}

func NewHTTPHandoff(baseURL, secret string, client *http.Client) *HTTPHandoff {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPHandoff{
		baseURL: baseURL,
		secret:  []byte(secret),
		client:  client,
		now:     time.Now,
	}
}

// Token mints the bearer credential for the session request, scoped to userID.
func (h *HTTPHandoff) Token(userID, matchID string) (string, error) {
	if len(h.secret) == 0 {
		return "", ErrMissingSecret
	}
	now := h.now()
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    TokenIssuer,
		Subject:   userID,
		ID:        matchID,
		Audience:  []string{TokenAudience},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

func (h *HTTPHandoff) CreateSession(ctx context.Context, req Request) (string, error) {
	if h.baseURL == "" {
		return "", ErrMissingEndpoint
	}
	token, err := h.Token(req.User1ID, req.MatchID)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/sessions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Idempotency-Key", req.MatchID)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("session service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	return out.SessionID, nil
}
