package alert

// Config defines a webhook alert destination for the operational channel.
type Config struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack"
	Events  []string          `yaml:"events"  json:"events"` // ["rejected", "error", "audit_write_failure"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the payload sent to webhook endpoints. Alerts are advisory:
// a webhook outage never changes a request outcome.
type Event struct {
	Timestamp string `json:"timestamp"`
	RecordID  string `json:"record_id"`
	Operation string `json:"operation"`
	ActorID   string `json:"actor_id"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason"`
	Type      string `json:"type,omitempty"` // "audit_write_failure" etc.
}
