// Package event defines the wire event emitted onto a session's stream and
// its Server-Sent Events encoding.
package event

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Visibility controls which audience an event is meant for.
type Visibility string

const (
	VisibilityUserFacing Visibility = "user_facing"
	VisibilityModelOnly  Visibility = "model_only"
	VisibilityLiveUIOnly Visibility = "live_ui_only"
	VisibilityInternal   Visibility = "internal_only"
)

// Type identifies the kind of event flowing through a stream. It is a
// plain string rather than a closed enum so that publishers can emit
// application-specific event types the engine has no opinion about —
// only a handful of values (below) change engine behavior.
type Type string

const (
	TypeWorkflowStarted     Type = "workflow_started"
	TypeWorkflowCompleted   Type = "workflow_completed"
	TypeStepStarted         Type = "step_started"
	TypeStepProgress        Type = "step_progress"
	TypeStepCompleted       Type = "step_completed"
	TypeStepFailed          Type = "step_failed"
	TypeToolExecuted        Type = "tool_executed"
	TypeToolCompleted       Type = "tool_completed"
	TypeError               Type = "error"
	TypeHeartbeat           Type = "heartbeat"
	TypeAgentMessage        Type = "agent_message"
	TypeTokenChunk          Type = "token_chunk"
	TypeWorkflowInterruption Type = "workflow_interruption"
	TypeReasoningChunk      Type = "reasoning_chunk"
	TypeUserDecision        Type = "user_decision"
)

// NewID returns a fresh event ID. Event IDs back SSE Last-Event-ID replay,
// so they only need to be unique, not ordered — the replay buffer's own
// logical position provides ordering.
func NewID() string {
	return uuid.NewString()
}

// Event is a single item on a session's stream.
type Event struct {
	Type       Type
	SessionID  string
	Timestamp  float64 // unix seconds, fractional
	EventID    string
	Step       *int
	Message    string
	Data       map[string]any
	Progress   *float64
	Tool       *string
	DurationMS *int
	Success    bool
	Metadata   map[string]any
	Visibility Visibility
}

// New constructs an event with a fresh ID, USER_FACING visibility, and
// Success=true as the implicit defaults.
func New(typ Type, sessionID string, timestamp float64) *Event {
	return &Event{
		Type:       typ,
		SessionID:  sessionID,
		Timestamp:  timestamp,
		EventID:    NewID(),
		Success:    true,
		Visibility: VisibilityUserFacing,
	}
}

// wireJSON is the on-the-wire field layout. Pointer/map fields are
// `omitempty` so that unset optional fields are dropped entirely rather
// than serialized as null.
type wireJSON struct {
	Type      string         `json:"type"`
	EventID   string         `json:"eventId"`
	SessionID string         `json:"sessionId"`
	Timestamp float64        `json:"timestamp"`
	Step      *int           `json:"step,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Progress  *float64       `json:"progress,omitempty"`
	Tool      *string        `json:"tool,omitempty"`
	Duration  *int           `json:"duration,omitempty"`
	Success   bool           `json:"success"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Visibility string        `json:"visibility"`
}

func (e *Event) toWire() wireJSON {
	return wireJSON{
		Type:       string(e.Type),
		EventID:    e.EventID,
		SessionID:  e.SessionID,
		Timestamp:  e.Timestamp,
		Step:       e.Step,
		Message:    e.Message,
		Data:       e.Data,
		Progress:   e.Progress,
		Tool:       e.Tool,
		Duration:   e.DurationMS,
		Success:    e.Success,
		Metadata:   e.Metadata,
		Visibility: string(e.Visibility),
	}
}

// MarshalJSON renders the event the way the dashboard/client expects it,
// i.e. the same shape ToSSE embeds in its `data:` line.
func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.toWire())
}

// UnmarshalJSON is permissive about unknown type/visibility values: an
// unrecognized type is kept as-is (application-defined types are allowed),
// an unrecognized visibility coerces to VisibilityUserFacing.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	e.Type = Type(w.Type)
	e.EventID = w.EventID
	if e.EventID == "" {
		e.EventID = NewID()
	}
	e.SessionID = w.SessionID
	e.Timestamp = w.Timestamp
	e.Step = w.Step
	e.Message = w.Message
	e.Data = w.Data
	e.Progress = w.Progress
	e.Tool = w.Tool
	e.DurationMS = w.Duration
	e.Success = w.Success
	e.Metadata = w.Metadata

	switch Visibility(w.Visibility) {
	case VisibilityUserFacing, VisibilityModelOnly, VisibilityLiveUIOnly, VisibilityInternal:
		e.Visibility = Visibility(w.Visibility)
	default:
		e.Visibility = VisibilityUserFacing
	}
	return nil
}

// ToSSE renders the event as a single Server-Sent Events frame, including
// the `id:` line reconnecting clients send back as Last-Event-ID.
func (e *Event) ToSSE() (string, error) {
	data, err := json.Marshal(e.toWire())
	if err != nil {
		return "", err
	}
	return "id: " + e.EventID + "\nevent: message\ndata: " + string(data) + "\n\n", nil
}
