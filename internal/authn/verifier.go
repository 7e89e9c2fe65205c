// Package authn resolves bearer tokens to server-derived identities.
// The authorization flag is re-read from the document store on every
// request; no client-supplied field can grant it.
package authn

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ppiankov/admingate/internal/model"
	"github.com/ppiankov/admingate/internal/store"
)

// Authentication failures, in the order the gateway maps them to HTTP status.
var (
	ErrInvalidToken   = errors.New("authn: invalid token")
	ErrExpired        = errors.New("authn: token expired")
	ErrUnknownSubject = errors.New("authn: unknown subject")
	ErrForbidden      = errors.New("authn: administrator privileges required")
)

// maxTokenLen bounds what is forwarded to the identity provider.
// Oversized tokens are rejected locally.
const maxTokenLen = 4096

// tokenPattern is the allowed character class for opaque bearer tokens
// (covers JWS compact serialization and base64/url-safe token formats).
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9._~+/=-]+$`)

// TokenVerifier is the external identity provider capability. The token
// format is opaque to this package beyond the local pre-check.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (subjectID string, expiry time.Time, err error)
}

// Verifier resolves tokens to identities via the identity provider and
// a subject lookup in the document store.
type Verifier struct {
	provider TokenVerifier
	users    store.Store
	now      func() time.Time
}

// New creates a Verifier over the given provider and store.
func New(provider TokenVerifier, users store.Store) *Verifier {
	return &Verifier{provider: provider, users: users, now: time.Now}
}

// Verify resolves a bearer token to an Identity. It fails with
// ErrInvalidToken on malformed or provider-rejected tokens, ErrExpired on
// expiry, and ErrUnknownSubject when the subject has no store record.
func (v *Verifier) Verify(ctx context.Context, token string) (model.Identity, error) {
	if token == "" || len(token) > maxTokenLen || !tokenPattern.MatchString(token) {
		return model.Identity{}, ErrInvalidToken
	}

	subjectID, expiry, err := v.provider.VerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrExpired) {
			return model.Identity{}, ErrExpired
		}
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !expiry.IsZero() && !v.now().Before(expiry) {
		return model.Identity{}, ErrExpired
	}

	user, err := v.users.GetUser(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Identity{}, ErrUnknownSubject
		}
		return model.Identity{}, fmt.Errorf("authn: subject lookup: %w", err)
	}

	return model.Identity{
		SubjectID:   user.SubjectID,
		IsAdmin:     user.IsAdmin,
		TokenExpiry: expiry,
	}, nil
}
