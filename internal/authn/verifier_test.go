package authn

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/admingate/internal/store"
)

type fakeProvider struct {
	subjects map[string]string // token → subject
	expiry   time.Time
	calls    int
	err      error
}

func (f *fakeProvider) VerifyToken(ctx context.Context, token string) (string, time.Time, error) {
	f.calls++
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	subject, ok := f.subjects[token]
	if !ok {
		return "", time.Time{}, errors.New("unknown token")
	}
	return subject, f.expiry, nil
}

func testVerifier(t *testing.T) (*Verifier, *fakeProvider, *store.Memory) {
	t.Helper()
	users := store.NewMemory()
	users.PutUser(store.User{SubjectID: "admin-user-001", IsAdmin: true})
	users.PutUser(store.User{SubjectID: "plain-user-002", IsAdmin: false})
	provider := &fakeProvider{
		subjects: map[string]string{
			"admin-token": "admin-user-001",
			"plain-token": "plain-user-002",
			"ghost-token": "no-such-subject",
		},
		expiry: time.Now().Add(time.Hour),
	}
	return New(provider, users), provider, users
}

func TestVerifyAdminToken(t *testing.T) {
	v, _, _ := testVerifier(t)

	id, err := v.Verify(context.Background(), "admin-token")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.SubjectID != "admin-user-001" || !id.IsAdmin {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyNonAdminHasNoFlag(t *testing.T) {
	v, _, _ := testVerifier(t)

	id, err := v.Verify(context.Background(), "plain-token")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.IsAdmin {
		t.Fatal("non-admin subject resolved with admin flag")
	}
}

func TestVerifyMalformedTokenSkipsProvider(t *testing.T) {
	v, provider, _ := testVerifier(t)

	cases := []string{
		"",
		"has spaces in it",
		"semi;colon",
		strings.Repeat("a", maxTokenLen+1),
	}
	for _, token := range cases {
		if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
	if provider.calls != 0 {
		t.Fatalf("malformed tokens reached the provider: %d calls", provider.calls)
	}
}

func TestVerifyProviderRejection(t *testing.T) {
	v, _, _ := testVerifier(t)

	if _, err := v.Verify(context.Background(), "bogus-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	v, provider, _ := testVerifier(t)
	provider.expiry = time.Now().Add(-time.Minute)

	if _, err := v.Verify(context.Background(), "admin-token"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyUnknownSubject(t *testing.T) {
	v, _, _ := testVerifier(t)

	if _, err := v.Verify(context.Background(), "ghost-token"); !errors.Is(err, ErrUnknownSubject) {
		t.Fatalf("expected ErrUnknownSubject, got %v", err)
	}
}
