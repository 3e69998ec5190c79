// Package stage defines the agent contract every enrichment stage satisfies
// and the runner that executes it: emit agent_start, render the prompt under
// per-variable budgets, call the LLM gateway, decode the response, substitute
// the stage default on any failure, record metrics, emit agent_end. A stage
// never aborts the DAG.
package stage

import (
	"context"

	"github.com/Nellia-dev/prospector/pkg/models"
)

// Category classifies a stage within the catalog.
type Category string

const (
	CategoryInitial      Category = "initial"
	CategoryOrchestrator Category = "orchestrator"
	CategorySpecialized  Category = "specialized"
	CategoryAlternative  Category = "alternative"
)

// Var is one template variable with its per-stage character budget.
// A non-positive budget leaves the value untruncated.
type Var struct {
	Name   string
	Value  string
	Budget int
}

// Stage is the abstract agent contract. Stages are stateless and safe for
// concurrent use across lead workers; all per-lead data flows through the
// LeadState argument.
type Stage interface {
	// Name is the stable identifier used in events, metrics and the DAG.
	Name() string
	Category() Category
	// DependsOn lists the stage names this stage consumes outputs from.
	DependsOn() []string
	// ExecutionOrder is the stage's position in the catalog's total order,
	// monotone with topological order.
	ExecutionOrder() int

	// Template is the prompt template, referencing variables as {{.name}}.
	Template() string
	// Vars assembles the template variables from the lead state. Never
	// mutates its inputs.
	Vars(state *models.LeadState, ec models.EnrichedContext) []Var
	// Decode parses the model's response into the stage's payload schema.
	Decode(content string) (any, error)
	// Default builds the on-failure payload for this stage.
	Default(state *models.LeadState) any
}

// DirectUsage reports the LLM consumption of a DirectStage run, so the
// runner can account tokens for stages that call the gateway themselves.
type DirectUsage struct {
	PromptTokens     int
	CompletionTokens int
	LLMCalls         int
}

// DirectStage is the escape hatch for stages that do their own work instead
// of the standard prompt/decode cycle (intake scrapes, tavily_enrichment
// searches before its summary call). Template, Vars and Decode are unused
// for a DirectStage.
type DirectStage interface {
	Stage
	RunDirect(ctx context.Context, env *Env, state *models.LeadState, ec models.EnrichedContext) (any, DirectUsage, error)
}
