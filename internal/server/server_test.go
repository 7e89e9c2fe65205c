package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/admingate/internal/audit"
	"github.com/ppiankov/admingate/internal/authn"
	"github.com/ppiankov/admingate/internal/config"
	"github.com/ppiankov/admingate/internal/gateway"
	"github.com/ppiankov/admingate/internal/ratelimit"
	"github.com/ppiankov/admingate/internal/schema"
	"github.com/ppiankov/admingate/internal/store"
)

type stubProvider struct {
	subjects map[string]string
}

func (s *stubProvider) VerifyToken(ctx context.Context, token string) (string, time.Time, error) {
	subject, ok := s.subjects[token]
	if !ok {
		return "", time.Time{}, errors.New("unknown token")
	}
	return subject, time.Now().Add(time.Hour), nil
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	mem := store.NewMemory()
	mem.PutUser(store.User{SubjectID: "admin-user-001", IsAdmin: true})
	mem.PutUser(store.User{SubjectID: "plain-user-002", IsAdmin: false})

	provider := &stubProvider{subjects: map[string]string{
		"admin-token": "admin-user-001",
		"plain-token": "plain-user-002",
	}}

	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	auditLog, err := audit.Open(auditPath)
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { auditLog.Close() })

	limiter := ratelimit.NewMemory()
	t.Cleanup(limiter.Close)

	gw := gateway.New(gateway.Options{
		Verifier: authn.New(provider, mem),
		Limiter:  limiter,
		Schemas:  schema.MustRegistry(),
		Store:    mem,
		AuditLog: auditLog,
		General:  ratelimit.Class{Name: "general", Limit: 100, Window: time.Minute},
		Admin:    ratelimit.Class{Name: "admin", Limit: 10, Window: time.Minute},
	})

	cfg := config.DefaultConfig()
	srv := New(cfg, gw, "")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, auditPath
}

func postJSON(t *testing.T, url, token string, body map[string]any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestBanUserAdmitted(t *testing.T) {
	ts, auditPath := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/ban-user", "admin-token", map[string]any{
		"userId":   "user1234567",
		"reason":   "spam posting",
		"duration": 30,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	if banID, _ := body["banId"].(string); banID == "" {
		t.Fatalf("banId missing: %v", body)
	}

	result := audit.Verify(auditPath)
	if !result.Valid || result.Lines != 1 {
		t.Fatalf("expected 1 valid audit record: %+v", result)
	}
}

func TestTokenInBodyAccepted(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/verify-admin", "", map[string]any{
		"idToken": "admin-token",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["adminUid"] != "admin-user-001" {
		t.Fatalf("unexpected adminUid: %v", body)
	}
}

func TestMissingTokenIs401(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/ban-user", "", map[string]any{
		"userId":   "user1234567",
		"reason":   "spam posting",
		"duration": 30,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestNonAdminIs403(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/ban-user", "plain-token", map[string]any{
		"userId":   "user1234567",
		"reason":   "spam posting",
		"duration": 30,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestValidationFailureIs400WithFields(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/ban-user", "admin-token", map[string]any{
		"userId":   map[string]any{"$ne": nil},
		"reason":   "spam posting",
		"duration": 30,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	fields, _ := body["fields"].([]any)
	if len(fields) == 0 {
		t.Fatalf("field errors missing: %v", body)
	}
	first, _ := fields[0].(map[string]any)
	if first["field"] != "userId" || first["code"] != "type_mismatch" {
		t.Fatalf("unexpected field error: %v", first)
	}
}

func TestMalformedJSONIs400(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/ban-user", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer admin-token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestVerifyAdminEleventhCallIs429(t *testing.T) {
	ts, _ := newTestServer(t)

	for i := 0; i < 10; i++ {
		resp := postJSON(t, ts.URL+"/v1/verify-admin", "admin-token", map[string]any{
			"idToken": "admin-token",
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i+1, resp.StatusCode)
		}
	}

	resp := postJSON(t, ts.URL+"/v1/verify-admin", "admin-token", map[string]any{
		"idToken": "admin-token",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on 11th call, got %d", resp.StatusCode)
	}
}

func TestListUsersViaHeader(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/list-users", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	users, _ := body["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %v", body)
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestReloadConfigSwapsClasses(t *testing.T) {
	mem := store.NewMemory()
	mem.PutUser(store.User{SubjectID: "admin-user-001", IsAdmin: true})
	provider := &stubProvider{subjects: map[string]string{"admin-token": "admin-user-001"}}

	limiter := ratelimit.NewMemory()
	t.Cleanup(limiter.Close)

	gw := gateway.New(gateway.Options{
		Verifier: authn.New(provider, mem),
		Limiter:  limiter,
		Schemas:  schema.MustRegistry(),
		Store:    mem,
	})

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, "rate_limits:\n  admin:\n    limit: 1\n    window: 1m\n")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv := New(cfg, gw, cfgPath)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	call := func() int {
		resp := postJSON(t, ts.URL+"/v1/verify-admin", "admin-token", map[string]any{"idToken": "admin-token"})
		resp.Body.Close()
		return resp.StatusCode
	}

	// Server was built with default classes; apply the file's strict limit.
	if err := srv.ReloadConfig(); err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}
	if got := call(); got != http.StatusOK {
		t.Fatalf("first call: expected 200, got %d", got)
	}
	if got := call(); got != http.StatusTooManyRequests {
		t.Fatalf("second call under limit 1: expected 429, got %d", got)
	}

	// Raise the limit and reload: traffic flows again.
	writeFile(t, cfgPath, "rate_limits:\n  admin:\n    limit: 100\n    window: 1m\n")
	if err := srv.ReloadConfig(); err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}
	if got := call(); got != http.StatusOK {
		t.Fatalf("after raising limit: expected 200, got %d", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
