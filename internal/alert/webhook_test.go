package alert

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatchMatchesOutcome(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]Config{
		{URL: srv.URL, Format: "generic", Events: []string{"rejected"}},
	})

	d.Dispatch(Event{Outcome: "rejected", Operation: "ban-user", Reason: "rate_limited"})
	time.Sleep(200 * time.Millisecond)

	if called.Load() != 1 {
		t.Errorf("expected 1 call, got %d", called.Load())
	}
}

func TestDispatchSkipsNonMatching(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]Config{
		{URL: srv.URL, Format: "generic", Events: []string{"rejected"}},
	})

	d.Dispatch(Event{Outcome: "admitted", Operation: "list-users"})
	time.Sleep(200 * time.Millisecond)

	if called.Load() != 0 {
		t.Errorf("expected 0 calls for non-matching event, got %d", called.Load())
	}
}

func TestDispatchMatchesAuditFailureType(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]Config{
		{URL: srv.URL, Format: "generic", Events: []string{"audit_write_failure"}},
	})

	d.Dispatch(Event{Outcome: "admitted", Type: "audit_write_failure", Operation: "ban-user"})
	time.Sleep(200 * time.Millisecond)

	if called.Load() != 1 {
		t.Errorf("expected 1 call for audit failure type, got %d", called.Load())
	}
}

func TestSendGenericPayload(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := Send(Config{URL: srv.URL, Format: "generic"}, Event{
		Operation: "ban-ip",
		ActorID:   "admin-user-001",
		Outcome:   "admitted",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Operation != "ban-ip" || got.ActorID != "admin-user-001" {
		t.Fatalf("payload not delivered: %+v", got)
	}
}

func TestSendDoesNotRetry4xx(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := Send(Config{URL: srv.URL}, Event{Outcome: "rejected"}); err == nil {
		t.Fatal("expected error on 4xx")
	}
	if called.Load() != 1 {
		t.Fatalf("4xx should not retry, got %d calls", called.Load())
	}
}

func TestFormatSlackPayload(t *testing.T) {
	body, err := FormatPayload("slack", Event{
		Operation: "create-license",
		Outcome:   "error",
		Reason:    "store unavailable",
	})
	if err != nil {
		t.Fatalf("FormatPayload: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := payload["blocks"]; !ok {
		t.Fatalf("slack payload missing blocks: %s", body)
	}
}
