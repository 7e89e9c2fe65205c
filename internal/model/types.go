package model

import "time"

// Operation names the privileged operations the gateway dispatches.
type Operation string

const (
	OpVerifyAdmin   Operation = "verify-admin"
	OpListUsers     Operation = "list-users"
	OpBanUser       Operation = "ban-user"
	OpCreateLicense Operation = "create-license"
	OpBanIP         Operation = "ban-ip"
)

// KnownOperations lists every dispatchable operation.
var KnownOperations = []Operation{
	OpVerifyAdmin, OpListUsers, OpBanUser, OpCreateLicense, OpBanIP,
}

// Mutating reports whether the operation writes to the document store.
// Mutating operations use the strict rate-limit class.
func (o Operation) Mutating() bool {
	switch o {
	case OpBanUser, OpCreateLicense, OpBanIP:
		return true
	}
	return false
}

// Identity is the server-derived caller identity for one request.
// It is rebuilt from the bearer token on every request and never cached
// or accepted from client-supplied payload fields.
type Identity struct {
	SubjectID   string    `json:"subject_id"`
	IsAdmin     bool      `json:"is_admin"`
	TokenExpiry time.Time `json:"token_expiry"`
}

// Outcome is the terminal result of one gateway invocation.
type Outcome string

const (
	OutcomeAdmitted Outcome = "admitted"
	OutcomeRejected Outcome = "rejected"
	OutcomeError    Outcome = "error"
)

// RejectReason classifies why a request was rejected before dispatch.
type RejectReason string

const (
	ReasonUnauthenticated RejectReason = "unauthenticated"
	ReasonForbidden       RejectReason = "forbidden"
	ReasonRateLimited     RejectReason = "rate_limited"
	ReasonInvalidInput    RejectReason = "invalid_input"
)

// DetectionFinding is one heuristic pattern match inside a request payload.
// Findings annotate the audit record; they never change the admit/reject
// decision on their own.
type DetectionFinding struct {
	Field    string `json:"field"`
	Category string `json:"category"`
	Match    string `json:"match"`
}
