package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/cyberrange-simulator/model"
)

// GenerateLog produces a timestamped log entry with a fresh short ID. It is
// pure apart from the timestamp and ID and never fails; callers append the
// result to the range log and broadcast it.
func GenerateLog(severity model.Severity, source, dest, eventID, message string) model.LogEntry {
	return model.LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Type:      severity,
		Source:    source,
		Dest:      dest,
		EventID:   eventID,
		Message:   message,
		ID:        uuid.NewString()[:8],
	}
}
