package events

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal projects an event to its canonical JSON form. Pure, no I/O.
func Marshal(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", ev.Type(), err)
	}
	return data, nil
}

// Unmarshal parses canonical event JSON back into its concrete type.
// Unknown event tags and unknown fields are rejected.
func Unmarshal(data []byte) (Event, error) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to read event envelope: %w", err)
	}

	var ev Event
	switch envelope.EventType {
	case TypePipelineStart:
		ev = &PipelineStart{}
	case TypePipelineEnd:
		ev = &PipelineEnd{}
	case TypePipelineError:
		ev = &PipelineError{}
	case TypeLeadGenerated:
		ev = &LeadGenerated{}
	case TypeLeadEnrichmentStart:
		ev = &LeadEnrichmentStart{}
	case TypeLeadEnrichmentEnd:
		ev = &LeadEnrichmentEnd{}
	case TypeAgentStart:
		ev = &AgentStart{}
	case TypeAgentEnd:
		ev = &AgentEnd{}
	case TypeToolCallStart:
		ev = &ToolCallStart{}
	case TypeToolCallOutput:
		ev = &ToolCallOutput{}
	case TypeToolCallEnd:
		ev = &ToolCallEnd{}
	case TypeStatusUpdate:
		ev = &StatusUpdate{}
	default:
		return nil, fmt.Errorf("unknown event type %q", envelope.EventType)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(ev); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", envelope.EventType, err)
	}
	return ev, nil
}
