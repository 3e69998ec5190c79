// Package events defines the typed event records emitted by a pipeline job
// and the bounded stream they travel on.
//
// Every event carries the common Meta header (event_type, timestamp, job_id,
// user_id) plus tag-specific fields. Events are values: construction is the
// only mutation, and the JSON projection is a pure total function (codec.go).
//
// Pairing invariants (enforced by emitters, asserted by tests):
//   - every lead_enrichment_start(lead_id=X) is followed by exactly one
//     lead_enrichment_end(lead_id=X) later in the same stream,
//   - agent_start/agent_end pairs nest within one lead the same way,
//   - tool_call_start/tool_call_end pairs nest within one agent scope,
//   - pipeline_start is the first event of a stream, pipeline_end the last.
package events

import (
	"time"

	"github.com/Nellia-dev/prospector/pkg/models"
)

// Event tag names. These are the canonical event_type values in the JSON
// projection.
const (
	TypePipelineStart       = "pipeline_start"
	TypePipelineEnd         = "pipeline_end"
	TypePipelineError       = "pipeline_error"
	TypeLeadGenerated       = "lead_generated"
	TypeLeadEnrichmentStart = "lead_enrichment_start"
	TypeLeadEnrichmentEnd   = "lead_enrichment_end"
	TypeAgentStart          = "agent_start"
	TypeAgentEnd            = "agent_end"
	TypeToolCallStart       = "tool_call_start"
	TypeToolCallOutput      = "tool_call_output"
	TypeToolCallEnd         = "tool_call_end"
	TypeStatusUpdate        = "status_update"
)

// Event is implemented by all twelve event types.
type Event interface {
	// Type returns the canonical event tag.
	Type() string
	// Header returns the common metadata.
	Header() Meta
}

// Meta is the header shared by every event.
type Meta struct {
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"` // RFC3339Nano UTC
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id"`
}

// Type implements Event.
func (m Meta) Type() string { return m.EventType }

// Header implements Event.
func (m Meta) Header() Meta { return m }

// NewMeta builds the header for a fresh event, stamping the current time.
func NewMeta(eventType, jobID, userID string) Meta {
	return Meta{
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		JobID:     jobID,
		UserID:    userID,
	}
}

// PipelineStart is the first event of every job stream.
type PipelineStart struct {
	Meta
	InitialQuery       string `json:"initial_query"`
	MaxLeadsToGenerate int    `json:"max_leads_to_generate"`
}

// PipelineEnd is the last event of every job stream.
type PipelineEnd struct {
	Meta
	Success              bool    `json:"success"`
	TotalLeadsGenerated  int     `json:"total_leads_generated"`
	TotalLeadsEnriched   int     `json:"total_leads_enriched"`
	TotalFailures        int     `json:"total_failures"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
}

// PipelineError reports an orchestrator-level failure (invariant violation,
// persistence unavailable, RAG build crash). The job terminates after it.
type PipelineError struct {
	Meta
	ErrorMessage string `json:"error_message"`
}

// LeadGenerated announces a harvested (or fallback) candidate company.
// Strictly precedes the matching LeadEnrichmentStart.
type LeadGenerated struct {
	Meta
	LeadID      string `json:"lead_id"`
	CompanyName string `json:"company_name"`
	WebsiteURL  string `json:"website_url"`
	Description string `json:"description"`
	Source      string `json:"source"` // "search" or "fallback"
}

// LeadEnrichmentStart opens a lead worker's event scope.
type LeadEnrichmentStart struct {
	Meta
	LeadID      string `json:"lead_id"`
	CompanyName string `json:"company_name"`
}

// LeadEnrichmentEnd closes a lead worker's event scope. Success is true when
// the DAG completed, even if individual stages downgraded to defaults; the
// package is attached on success.
type LeadEnrichmentEnd struct {
	Meta
	LeadID       string                  `json:"lead_id"`
	Success      bool                    `json:"success"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	Package      *models.ProspectPackage `json:"package,omitempty"`
}

// AgentStart opens one stage execution within a lead.
type AgentStart struct {
	Meta
	LeadID         string `json:"lead_id"`
	AgentName      string `json:"agent_name"`
	ExecutionOrder int    `json:"execution_order"`
}

// AgentEnd closes one stage execution within a lead.
type AgentEnd struct {
	Meta
	LeadID           string  `json:"lead_id"`
	AgentName        string  `json:"agent_name"`
	Success          bool    `json:"success"`
	DurationSeconds  float64 `json:"duration_seconds"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
}

// ToolCallStart opens an external tool call (search, scrape, RAG query)
// within an agent scope.
type ToolCallStart struct {
	Meta
	LeadID    string         `json:"lead_id"`
	AgentName string         `json:"agent_name"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolCallOutput carries a snippet of a tool call's result.
type ToolCallOutput struct {
	Meta
	LeadID        string `json:"lead_id"`
	AgentName     string `json:"agent_name"`
	ToolName      string `json:"tool_name"`
	OutputSnippet string `json:"output_snippet"`
}

// ToolCallEnd closes an external tool call.
type ToolCallEnd struct {
	Meta
	LeadID       string `json:"lead_id"`
	AgentName    string `json:"agent_name"`
	ToolName     string `json:"tool_name"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// StatusUpdate is a free-form progress event (phase transitions, RAG
// degradation notices).
type StatusUpdate struct {
	Meta
	Status   string         `json:"status"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
