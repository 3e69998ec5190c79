package stage

import (
	"context"
	"log/slog"

	"github.com/Nellia-dev/prospector/pkg/config"
	"github.com/Nellia-dev/prospector/pkg/events"
	"github.com/Nellia-dev/prospector/pkg/llm"
	"github.com/Nellia-dev/prospector/pkg/rag"
	"github.com/Nellia-dev/prospector/pkg/webtools"
)

// toolSnippetLimit caps the output_snippet carried by tool_call_output.
const toolSnippetLimit = 500

// Env is the per-lead execution environment handed to stages: the external
// adapters, the job's RAG store, and the event stream. Built once per lead
// worker; read-only after construction.
type Env struct {
	JobID  string
	UserID string
	LeadID string

	Gateway  *llm.Gateway
	Searcher webtools.Searcher
	Scraper  webtools.Scraper
	RAG      *rag.Store
	Stream   *events.Stream
	Config   *config.Config
	Logger   *slog.Logger
}

// ToolStart emits tool_call_start for an external call within an agent scope.
func (e *Env) ToolStart(ctx context.Context, agent, tool string, args map[string]any) error {
	return e.Stream.Emit(ctx, events.ToolCallStart{
		Meta:      events.NewMeta(events.TypeToolCallStart, e.JobID, e.UserID),
		LeadID:    e.LeadID,
		AgentName: agent,
		ToolName:  tool,
		Arguments: args,
	})
}

// ToolOutput emits tool_call_output with a bounded snippet of the result.
func (e *Env) ToolOutput(ctx context.Context, agent, tool, output string) error {
	output = TruncateVar(output, toolSnippetLimit)
	return e.Stream.Emit(ctx, events.ToolCallOutput{
		Meta:          events.NewMeta(events.TypeToolCallOutput, e.JobID, e.UserID),
		LeadID:        e.LeadID,
		AgentName:     agent,
		ToolName:      tool,
		OutputSnippet: output,
	})
}

// ToolEnd emits tool_call_end, closing the scope opened by ToolStart.
func (e *Env) ToolEnd(ctx context.Context, agent, tool string, success bool, errMsg string) error {
	return e.Stream.Emit(ctx, events.ToolCallEnd{
		Meta:         events.NewMeta(events.TypeToolCallEnd, e.JobID, e.UserID),
		LeadID:       e.LeadID,
		AgentName:    agent,
		ToolName:     tool,
		Success:      success,
		ErrorMessage: errMsg,
	})
}

// QueryRAG runs a RAG query against the job store inside a tool-call event
// scope. Returns nil results when the store is empty or the query fails;
// the failure is recorded on the tool_call_end event, not raised.
func (e *Env) QueryRAG(ctx context.Context, agent, query string, k int) []rag.Result {
	if e.RAG == nil {
		return nil
	}
	_ = e.ToolStart(ctx, agent, "rag_query", map[string]any{"query": query, "k": k})
	results, err := e.RAG.Query(ctx, query, k)
	if err != nil {
		_ = e.ToolEnd(ctx, agent, "rag_query", false, err.Error())
		return nil
	}
	if len(results) > 0 {
		_ = e.ToolOutput(ctx, agent, "rag_query", results[0].Chunk)
	}
	_ = e.ToolEnd(ctx, agent, "rag_query", true, "")
	return results
}
