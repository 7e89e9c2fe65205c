package audit

import "github.com/ppiankov/admingate/internal/model"

// Record is one line in the hash-chained JSONL audit log: exactly one per
// gateway invocation, whatever branch the request took. All fields are
// structs and scalars (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type Record struct {
	Timestamp    string                   `json:"ts"`
	RecordID     string                   `json:"record_id"`
	ActorID      string                   `json:"actor_id"`
	Operation    string                   `json:"operation"`
	Outcome      model.Outcome            `json:"outcome"`
	RejectReason model.RejectReason       `json:"reject_reason,omitempty"`
	Findings     []model.DetectionFinding `json:"findings,omitempty"`
	Target       string                   `json:"target,omitempty"`
	PrevHash     string                   `json:"prev_hash"`
}
