package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Nellia-dev/prospector/pkg/events"
	"github.com/Nellia-dev/prospector/pkg/llm"
	"github.com/Nellia-dev/prospector/pkg/models"
)

// Runner executes one stage under the agent contract. The same runner is
// shared by all lead workers; it holds no per-lead state.
type Runner struct {
	maxPromptChars int
	logger         *slog.Logger
	now            func() time.Time
}

// NewRunner creates a runner enforcing the given global prompt ceiling.
func NewRunner(maxPromptChars int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		maxPromptChars: maxPromptChars,
		logger:         logger,
		now:            time.Now,
	}
}

// Run executes one stage for one lead. It always returns a StageOutput: on
// any failure the payload is the stage's default and ErrorMessage carries the
// reason. Run returns an error only when agent_start could not be delivered;
// once the pair is open the closing agent_end always delivers.
func (r *Runner) Run(ctx context.Context, env *Env, s Stage, state *models.LeadState, ec models.EnrichedContext) (models.StageOutput, models.StageMetrics, error) {
	if err := env.Stream.Emit(ctx, events.AgentStart{
		Meta:           events.NewMeta(events.TypeAgentStart, env.JobID, env.UserID),
		LeadID:         env.LeadID,
		AgentName:      s.Name(),
		ExecutionOrder: s.ExecutionOrder(),
	}); err != nil {
		return models.StageOutput{}, models.StageMetrics{}, err
	}

	started := r.now()
	payload, usage, runErr := r.execute(ctx, env, s, state, ec)
	finished := r.now()
	duration := finished.Sub(started).Seconds()

	errMsg := ""
	if runErr != nil {
		errMsg = failureMessage(runErr)
		payload = s.Default(state)
		r.logger.Warn("stage downgraded to default output",
			"job_id", env.JobID,
			"lead_id", env.LeadID,
			"stage", s.Name(),
			"error", runErr)
	}

	metrics := models.StageMetrics{
		StageName:        s.Name(),
		StartedAt:        started.UTC().Format(time.RFC3339Nano),
		FinishedAt:       finished.UTC().Format(time.RFC3339Nano),
		DurationSeconds:  duration,
		Success:          runErr == nil,
		ErrorMessage:     errMsg,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.PromptTokens + usage.CompletionTokens,
		LLMCalls:         usage.LLMCalls,
	}

	// The stage already ran and its agent_start was delivered; the closing
	// agent_end must deliver even when the context was cancelled mid-stage.
	if err := env.Stream.Emit(context.WithoutCancel(ctx), events.AgentEnd{
		Meta:             events.NewMeta(events.TypeAgentEnd, env.JobID, env.UserID),
		LeadID:           env.LeadID,
		AgentName:        s.Name(),
		Success:          runErr == nil,
		DurationSeconds:  duration,
		ErrorMessage:     errMsg,
		PromptTokens:     metrics.PromptTokens,
		CompletionTokens: metrics.CompletionTokens,
		TotalTokens:      metrics.TotalTokens,
	}); err != nil {
		return models.StageOutput{}, metrics, err
	}

	return models.StageOutput{
		StageName:    s.Name(),
		Payload:      payload,
		ErrorMessage: errMsg,
	}, metrics, nil
}

// execute runs the stage body: a DirectStage runs itself, everything else
// goes through the prompt/generate/decode cycle.
func (r *Runner) execute(ctx context.Context, env *Env, s Stage, state *models.LeadState, ec models.EnrichedContext) (any, DirectUsage, error) {
	if ds, ok := s.(DirectStage); ok {
		return ds.RunDirect(ctx, env, state, ec)
	}

	prompt, err := RenderPrompt(s.Name(), s.Template(), s.Vars(state, ec), r.maxPromptChars)
	if err != nil {
		return nil, DirectUsage{}, err
	}
	resp, err := env.Gateway.Generate(ctx, prompt)
	if err != nil {
		return nil, DirectUsage{LLMCalls: 1}, err
	}
	usage := DirectUsage{
		PromptTokens:     resp.TokensIn,
		CompletionTokens: resp.TokensOut,
		LLMCalls:         1,
	}
	payload, err := s.Decode(resp.Content)
	if err != nil {
		return nil, usage, err
	}
	return payload, usage, nil
}

// failureMessage renders a human-readable reason for the output's
// error_message field. Parse failures include the head of the raw response.
func failureMessage(err error) string {
	var pe *llm.ParseError
	if errors.As(err, &pe) {
		return fmt.Sprintf("invalid JSON response: %v; raw head: %s", pe.Err, pe.Head())
	}
	return err.Error()
}
