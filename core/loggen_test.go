package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/cyberrange-simulator/model"
)

func TestGenerateLogFields(t *testing.T) {
	entry := GenerateLog(model.SeverityAlert, "SIEM", "SOC", "9999", "test message")

	if entry.Type != model.SeverityAlert {
		t.Fatalf("Type = %q, want %q", entry.Type, model.SeverityAlert)
	}
	if entry.Source != "SIEM" || entry.Dest != "SOC" || entry.EventID != "9999" {
		t.Fatalf("routing fields = %+v", entry)
	}
	if entry.Message != "test message" {
		t.Fatalf("Message = %q", entry.Message)
	}

	if _, err := time.Parse(time.RFC3339, entry.Timestamp); err != nil {
		t.Fatalf("Timestamp %q is not RFC3339: %v", entry.Timestamp, err)
	}
	if len(entry.ID) != 8 {
		t.Fatalf("len(ID) = %d, want 8", len(entry.ID))
	}
}

func TestGenerateLogIDsDiffer(t *testing.T) {
	a := GenerateLog(model.SeverityInfo, "a", "b", "c", "")
	b := GenerateLog(model.SeverityInfo, "a", "b", "c", "")
	if a.ID == b.ID {
		t.Fatalf("consecutive entries share ID %q", a.ID)
	}
}
