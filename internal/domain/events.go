package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for citation decision events.
const (
	EventTypeCitationAccepted = "citation.accepted"
	EventTypeCitationRejected = "citation.rejected"
)

// CitationEvent is published once the pipeline reaches a final decision for a citing paper.
type CitationEvent struct {
	EventID      string    `json:"event_id"`
	EventVersion int       `json:"event_version"`
	EventType    string    `json:"event_type"`
	CycleID      string    `json:"cycle_id,omitempty"`
	Payload      []byte    `json:"payload"`
	CreatedAt    time.Time `json:"created_at"`
	AggregateID  string    `json:"aggregate_id"`
}

// CitationDecisionPayload is the payload of citation.accepted and citation.rejected events.
type CitationDecisionPayload struct {
	TargetID       string         `json:"target_id"`
	TargetAlias    string         `json:"target_alias"`
	PaperID        string         `json:"paper_id"`
	Title          string         `json:"title"`
	Year           int            `json:"year,omitempty"`
	URL            string         `json:"url,omitempty"`
	Classification Classification `json:"classification"`
	Reason         string         `json:"reason,omitempty"`
	SummaryPath    string         `json:"summary_path,omitempty"`
}

// NewCitationEvent creates a new event with the given parameters.
// The payload is JSON-serialized automatically.
func NewCitationEvent(eventType, cycleID string, payload CitationDecisionPayload) (*CitationEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &CitationEvent{
		EventID:      uuid.New().String(),
		EventVersion: 1,
		EventType:    eventType,
		CycleID:      cycleID,
		Payload:      payloadBytes,
		CreatedAt:    time.Now(),
		AggregateID:  payload.PaperID,
	}, nil
}
