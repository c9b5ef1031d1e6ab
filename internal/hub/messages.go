package hub

import "encoding/json"

// Inbound event names accepted from operator connections.
const (
	EventJoin            = "join"
	EventPerformAction   = "perform_action"
	EventTriggerScenario = "trigger_scenario"
	EventResetSim        = "reset_sim"
)

// envelope frames every message on the wire in both directions.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outbound is the marshal-side counterpart of envelope.
type outbound struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// actionPayload carries a perform_action request.
type actionPayload struct {
	ActionType string `json:"actionType"`
	NodeID     string `json:"nodeId"`
	Handle     string `json:"handle"`
}
