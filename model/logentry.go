package model

// Severity is the log classification shown in the observer event feed.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityAlert    Severity = "ALERT"
	SeverityCritical Severity = "CRITICAL"
)

// LogEntry is a single immutable event in the range's append-only log.
// ID is a short random token used only as an observer-side list key; it is
// collision-tolerant and carries no ordering or security meaning.
type LogEntry struct {
	Timestamp string   `json:"timestamp"`
	Type      Severity `json:"type"`
	Source    string   `json:"source"`
	Dest      string   `json:"dest"`
	EventID   string   `json:"eventId"`
	Message   string   `json:"message"`
	ID        string   `json:"id"`
}
