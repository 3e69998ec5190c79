package models

// Lead is a candidate company produced by the harvester. Leads never mutate
// after creation; the evolving per-lead work lives in LeadState.
type Lead struct {
	LeadID      string `json:"lead_id"`
	CompanyName string `json:"company_name"`
	WebsiteURL  string `json:"website_url"`
	Description string `json:"initial_description"`

	// Source records how the lead was produced: "search" or "fallback".
	Source string `json:"source,omitempty"`
}

// Lead source values.
const (
	LeadSourceSearch   = "search"
	LeadSourceFallback = "fallback"
)

// NodeStatus is the DAG-node status of one stage within a lead.
type NodeStatus string

const (
	NodeStatusPending           NodeStatus = "pending"
	NodeStatusRunning           NodeStatus = "running"
	NodeStatusSucceeded         NodeStatus = "succeeded"
	NodeStatusFailedWithDefault NodeStatus = "failed_with_default"
)

// StageOutput is the result of one stage execution. Every stage always
// produces a StageOutput: on failure the payload is the stage's default and
// ErrorMessage carries the reason. Exactly one failure path sets ErrorMessage.
type StageOutput struct {
	StageName    string `json:"stage_name"`
	Payload      any    `json:"payload"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Failed reports whether the stage downgraded to its default output.
func (o StageOutput) Failed() bool { return o.ErrorMessage != "" }

// StageMetrics records the execution of one stage agent.
type StageMetrics struct {
	StageName        string  `json:"stage_name"`
	StartedAt        string  `json:"started_at"`  // RFC3339Nano UTC
	FinishedAt       string  `json:"finished_at"` // RFC3339Nano UTC
	DurationSeconds  float64 `json:"duration_seconds"`
	Success          bool    `json:"success"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	LLMCalls         int     `json:"llm_calls"`
}

// LeadState is the per-lead working set. Owned by exactly one lead worker;
// never shared across workers.
type LeadState struct {
	Lead    Lead
	Outputs map[string]StageOutput
	Metrics []StageMetrics
	Status  map[string]NodeStatus
}

// NewLeadState creates an empty working set for a lead.
func NewLeadState(lead Lead) *LeadState {
	return &LeadState{
		Lead:    lead,
		Outputs: make(map[string]StageOutput),
		Status:  make(map[string]NodeStatus),
	}
}

// SetOutput stores a stage output and its DAG-node status.
func (s *LeadState) SetOutput(out StageOutput) {
	s.Outputs[out.StageName] = out
	if out.Failed() {
		s.Status[out.StageName] = NodeStatusFailedWithDefault
	} else {
		s.Status[out.StageName] = NodeStatusSucceeded
	}
}

// Output returns the stored output for a stage, if present.
func (s *LeadState) Output(stageName string) (StageOutput, bool) {
	out, ok := s.Outputs[stageName]
	return out, ok
}

// AddMetrics appends one stage's execution record.
func (s *LeadState) AddMetrics(m StageMetrics) {
	s.Metrics = append(s.Metrics, m)
}

// Payload returns the typed payload of a stage output. The second return is
// false when the stage has not run or the payload is of a different type.
func Payload[T any](s *LeadState, stageName string) (T, bool) {
	var zero T
	out, ok := s.Outputs[stageName]
	if !ok {
		return zero, false
	}
	p, ok := out.Payload.(T)
	if !ok {
		return zero, false
	}
	return p, true
}

// ProcessingMetadata summarizes a lead's DAG run for the final package.
type ProcessingMetadata struct {
	TotalDurationSeconds float64        `json:"total_duration_seconds"`
	StageMetrics         []StageMetrics `json:"stage_metrics"`
	SuccessRate          float64        `json:"success_rate"`
	FailedStages         []string       `json:"failed_stages,omitempty"`
	RAGDegraded          bool           `json:"rag_degraded,omitempty"`
}

// ProspectPackage is the terminal artifact for one lead: the lead itself,
// every stage output by name, the computed scores, and processing metadata.
// Emitted as the payload of the lead's final event.
type ProspectPackage struct {
	Lead                     Lead                   `json:"lead"`
	Outputs                  map[string]StageOutput `json:"stage_outputs"`
	ConfidenceScore          float64                `json:"confidence_score"`
	ROIPotentialScore        float64                `json:"roi_potential_score"`
	EngagementReadinessScore float64                `json:"engagement_readiness_score"`
	Processing               ProcessingMetadata     `json:"processing"`
}
