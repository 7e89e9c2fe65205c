package authn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPProvider verifies tokens against a remote identity endpoint. The
// endpoint receives {"token": "..."} and answers 200 with the subject and
// expiry, or 401 for a bad token.
type HTTPProvider struct {
	url    string
	client *http.Client
}

// NewHTTPProvider creates a provider for the given verification URL.
func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	SubjectID string `json:"subject_id"`
	ExpiresAt string `json:"expires_at"`
}

// VerifyToken implements TokenVerifier.
func (p *HTTPProvider) VerifyToken(ctx context.Context, token string) (string, time.Time, error) {
	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("authn: encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("authn: build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("authn: identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", time.Time{}, ErrInvalidToken
	default:
		return "", time.Time{}, fmt.Errorf("authn: identity provider returned %d", resp.StatusCode)
	}

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return "", time.Time{}, fmt.Errorf("authn: decode verify response: %w", err)
	}
	if vr.SubjectID == "" {
		return "", time.Time{}, fmt.Errorf("authn: identity provider returned empty subject")
	}

	var expiry time.Time
	if vr.ExpiresAt != "" {
		expiry, err = time.Parse(time.RFC3339, vr.ExpiresAt)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("authn: bad expiry %q: %w", vr.ExpiresAt, err)
		}
	}
	return vr.SubjectID, expiry, nil
}
