// Package gateway runs the privileged-operation pipeline: authentication,
// rate limiting, schema validation, injection detection, dispatch, and
// audit. Stages run strictly in that order, short-circuit on the first
// hard failure, and every invocation writes exactly one audit record.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/admingate/internal/alert"
	"github.com/ppiankov/admingate/internal/audit"
	"github.com/ppiankov/admingate/internal/authn"
	"github.com/ppiankov/admingate/internal/detect"
	"github.com/ppiankov/admingate/internal/logging"
	"github.com/ppiankov/admingate/internal/metrics"
	"github.com/ppiankov/admingate/internal/model"
	"github.com/ppiankov/admingate/internal/ratelimit"
	"github.com/ppiankov/admingate/internal/schema"
	"github.com/ppiankov/admingate/internal/store"
)

// Request is one privileged request entering the pipeline.
type Request struct {
	Operation  model.Operation
	Token      string
	ClientAddr string
	Payload    map[string]any
}

// Response is the pipeline's terminal result. The transport layer maps it
// to HTTP status codes; nothing in here leaks schema internals beyond
// offending field names.
type Response struct {
	Outcome      model.Outcome
	RejectReason model.RejectReason
	FieldErrors  []schema.FieldError
	Result       map[string]any
	Err          error
}

// Gateway wires the pipeline stages together.
type Gateway struct {
	verifier *authn.Verifier
	limiter  ratelimit.Limiter
	schemas  *schema.Registry
	store    store.Store
	auditLog *audit.Log
	alerts   *alert.Dispatcher
	metrics  metrics.Metrics

	mu      sync.RWMutex
	general ratelimit.Class
	admin   ratelimit.Class

	newID func() string
}

// Options configures a Gateway. AuditLog and Alerts may be nil (disabled);
// everything else is required.
type Options struct {
	Verifier *authn.Verifier
	Limiter  ratelimit.Limiter
	Schemas  *schema.Registry
	Store    store.Store
	AuditLog *audit.Log
	Alerts   *alert.Dispatcher
	Metrics  metrics.Metrics
	General  ratelimit.Class
	Admin    ratelimit.Class
}

// New creates a Gateway from options, applying default rate classes and
// noop metrics where unset.
func New(opts Options) *Gateway {
	g := &Gateway{
		verifier: opts.Verifier,
		limiter:  opts.Limiter,
		schemas:  opts.Schemas,
		store:    opts.Store,
		auditLog: opts.AuditLog,
		alerts:   opts.Alerts,
		metrics:  opts.Metrics,
		general:  opts.General,
		admin:    opts.Admin,
		newID:    func() string { return uuid.NewString() },
	}
	if g.metrics == nil {
		g.metrics = metrics.Noop{}
	}
	if g.general.Limit == 0 && g.general.Window == 0 {
		g.general = ratelimit.DefaultGeneral
	}
	if g.admin.Limit == 0 && g.admin.Window == 0 {
		g.admin = ratelimit.DefaultAdmin
	}
	return g
}

// SetRateClasses atomically swaps the admission classes. Called by the
// config hot-reloader.
func (g *Gateway) SetRateClasses(general, admin ratelimit.Class) {
	g.mu.Lock()
	g.general = general
	g.admin = admin
	g.mu.Unlock()
}

func (g *Gateway) classFor(op model.Operation) ratelimit.Class {
	g.mu.RLock()
	defer g.mu.RUnlock()
	// Every mutation and the admin-verification probe use the strict
	// class; list-users is read-only general traffic.
	if op.Mutating() || op == model.OpVerifyAdmin {
		return g.admin
	}
	return g.general
}

// Handle runs one request through the pipeline. It always returns a
// terminal Response and always writes exactly one audit record, including
// when the dispatched operation panics (recorded as outcome=error).
func (g *Gateway) Handle(ctx context.Context, req Request) (resp Response) {
	rec := audit.Record{
		RecordID:  g.newID(),
		Operation: string(req.Operation),
	}

	defer func() {
		if r := recover(); r != nil {
			resp = Response{Outcome: model.OutcomeError, Err: fmt.Errorf("gateway: operation panic: %v", r)}
		}
		rec.Outcome = resp.Outcome
		rec.RejectReason = resp.RejectReason
		g.finish(rec, resp)
	}()

	// Stage 1: identity. Nothing else runs for unauthenticated callers —
	// in particular no rate-limit slot is consumed.
	identity, err := g.verifier.Verify(ctx, req.Token)
	if err != nil {
		if errors.Is(err, authn.ErrInvalidToken) || errors.Is(err, authn.ErrExpired) || errors.Is(err, authn.ErrUnknownSubject) {
			return Response{Outcome: model.OutcomeRejected, RejectReason: model.ReasonUnauthenticated}
		}
		return Response{Outcome: model.OutcomeError, Err: err}
	}
	rec.ActorID = identity.SubjectID

	if !identity.IsAdmin {
		return Response{Outcome: model.OutcomeRejected, RejectReason: model.ReasonForbidden}
	}

	// Stage 2: admission. The increment is never rolled back, even if the
	// caller disconnects later in the pipeline.
	class := g.classFor(req.Operation)
	key := req.ClientAddr + "|" + string(req.Operation)
	admitted, err := g.limiter.Admit(ctx, key, class)
	if err != nil {
		logging.Error("gateway", "rate limiter backend failure", "error", err)
	}
	if !admitted {
		g.metrics.IncRateLimitRejection(class.Name)
		return Response{Outcome: model.OutcomeRejected, RejectReason: model.ReasonRateLimited}
	}

	// Detection is annotation only: findings ride on the audit record for
	// admitted and rejected requests alike.
	rec.Findings = detect.Scan(req.Payload)
	for _, f := range rec.Findings {
		g.metrics.IncFinding(f.Category)
	}

	// Stage 3: structural validation, fail closed.
	validated, err := g.schemas.Validate(string(req.Operation), req.Payload)
	if err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			return Response{
				Outcome:      model.OutcomeRejected,
				RejectReason: model.ReasonInvalidInput,
				FieldErrors:  ve.Fields,
			}
		}
		return Response{Outcome: model.OutcomeError, Err: err}
	}

	// Stage 4: dispatch with the validated payload and the server-derived
	// actor. Client-supplied actor fields never reach this point, and the
	// credential is transport data: it is dropped here, after validation.
	delete(validated, "idToken")
	rec.Target = targetSummary(req.Operation, validated)
	result, err := g.dispatch(ctx, req.Operation, identity, validated)
	if err != nil {
		return Response{Outcome: model.OutcomeError, Err: err}
	}
	return Response{Outcome: model.OutcomeAdmitted, Result: result}
}

// finish records the terminal audit entry and operational signals for one
// request. Audit write failures are surfaced to the alert channel and
// metrics but never alter the already-decided outcome.
func (g *Gateway) finish(rec audit.Record, resp Response) {
	g.metrics.IncRequest(rec.Operation, string(resp.Outcome))

	if g.auditLog != nil {
		if err := g.auditLog.Record(rec); err != nil {
			logging.Error("audit", "write failed", "record_id", rec.RecordID, "error", err)
			g.metrics.IncAuditWriteFailure()
			if g.alerts != nil {
				g.alerts.Dispatch(alert.Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					RecordID:  rec.RecordID,
					Operation: rec.Operation,
					ActorID:   rec.ActorID,
					Outcome:   string(resp.Outcome),
					Reason:    err.Error(),
					Type:      "audit_write_failure",
				})
			}
		}
	}

	if g.alerts != nil && resp.Outcome != model.OutcomeAdmitted {
		reason := string(resp.RejectReason)
		if resp.Err != nil {
			reason = resp.Err.Error()
		}
		g.alerts.Dispatch(alert.Event{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			RecordID:  rec.RecordID,
			Operation: rec.Operation,
			ActorID:   rec.ActorID,
			Outcome:   string(resp.Outcome),
			Reason:    reason,
		})
	}
}

// targetSummary extracts the audit target from a validated payload.
func targetSummary(op model.Operation, payload map[string]any) string {
	switch op {
	case model.OpBanUser:
		s, _ := payload["userId"].(string)
		return s
	case model.OpBanIP:
		s, _ := payload["ipAddress"].(string)
		return s
	case model.OpCreateLicense:
		s, _ := payload["plan"].(string)
		return s
	}
	return ""
}
