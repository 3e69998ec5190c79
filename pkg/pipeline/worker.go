// Package pipeline contains the orchestrator and the per-lead DAG worker.
// The orchestrator owns the job event stream and the worker pool; each
// worker runs the stage catalog sequentially for one lead and funnels its
// events into the shared stream.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Nellia-dev/prospector/pkg/events"
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/scoring"
	"github.com/Nellia-dev/prospector/pkg/stage"
	"github.com/Nellia-dev/prospector/pkg/stages"
)

// Worker runs the enrichment DAG for one lead at a time. Stateless; the same
// worker value is shared by every goroutine in the pool.
type Worker struct {
	catalog *stage.Registry
	runner  *stage.Runner
	logger  *slog.Logger
}

// NewWorker creates a worker over the validated stage catalog.
func NewWorker(catalog *stage.Registry, runner *stage.Runner, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{catalog: catalog, runner: runner, logger: logger}
}

// Enrich walks the catalog in topological order for one lead, emitting the
// lead_enrichment_start/end pair around the stage runs. Individual stage
// failures downgrade to defaults and still count as success; only
// cancellation (checked between stages) ends the lead early, with a closing
// lead_enrichment_end(success=false) once the start was delivered. Returns
// true when the lead was fully enriched.
func (w *Worker) Enrich(ctx context.Context, env *stage.Env, lead models.Lead, ec models.EnrichedContext) bool {
	// Closing events must still deliver after cancellation.
	emitCtx := context.WithoutCancel(ctx)

	if err := env.Stream.Emit(ctx, events.LeadEnrichmentStart{
		Meta:        events.NewMeta(events.TypeLeadEnrichmentStart, env.JobID, env.UserID),
		LeadID:      lead.LeadID,
		CompanyName: lead.CompanyName,
	}); err != nil {
		// The start was never delivered, so emitting a closing end would
		// leave an unpaired lead_enrichment_end on the stream.
		return false
	}

	state := models.NewLeadState(lead)
	started := time.Now()

	for _, s := range w.catalog.Ordered() {
		if ctx.Err() != nil {
			w.emitEnd(emitCtx, env, lead, false, "cancelled", nil)
			return false
		}
		out, metrics, err := w.runner.Run(ctx, env, s, state, ec)
		if err != nil {
			w.emitEnd(emitCtx, env, lead, false, "cancelled", nil)
			return false
		}
		state.SetOutput(out)
		state.AddMetrics(metrics)

		if s.Name() == stages.NameTavilyEnrichment {
			w.appendEnrichment(ctx, env, state)
		}
	}

	pkg := w.buildPackage(ctx, env, state, time.Since(started).Seconds())
	w.emitEnd(emitCtx, env, lead, true, "", pkg)
	return true
}

func (w *Worker) emitEnd(ctx context.Context, env *stage.Env, lead models.Lead, success bool, errMsg string, pkg *models.ProspectPackage) {
	if err := env.Stream.Emit(ctx, events.LeadEnrichmentEnd{
		Meta:         events.NewMeta(events.TypeLeadEnrichmentEnd, env.JobID, env.UserID),
		LeadID:       lead.LeadID,
		Success:      success,
		ErrorMessage: errMsg,
		Package:      pkg,
	}); err != nil {
		w.logger.Error("failed to emit lead_enrichment_end",
			"job_id", env.JobID, "lead_id", lead.LeadID, "error", err)
	}
}

// appendEnrichment feeds the tavily_enrichment findings into the job's RAG
// store before the next stage runs. Indexing failures are logged, not raised.
func (w *Worker) appendEnrichment(ctx context.Context, env *stage.Env, state *models.LeadState) {
	if env.RAG == nil {
		return
	}
	out, ok := models.Payload[models.EnrichmentOutput](state, stages.NameTavilyEnrichment)
	if !ok {
		return
	}
	var parts []string
	if out.EnrichmentSummary != "" {
		parts = append(parts, state.Lead.CompanyName+": "+out.EnrichmentSummary)
	}
	for _, f := range out.KeyFindings {
		parts = append(parts, state.Lead.CompanyName+" finding: "+f)
	}
	if len(parts) == 0 {
		return
	}
	if err := env.RAG.Add(ctx, strings.Join(parts, "\n\n")); err != nil {
		w.logger.Warn("failed to index enrichment findings",
			"job_id", env.JobID, "lead_id", state.Lead.LeadID, "error", err)
	}
}

// buildPackage computes the scores and processing metadata for a completed
// DAG run. The engagement sub-scores come from a RAG query with the lead's
// company name; missing values keep the 0.5 substitute.
func (w *Worker) buildPackage(ctx context.Context, env *stage.Env, state *models.LeadState, totalSeconds float64) *models.ProspectPackage {
	in := scoring.DefaultEngagementInputs()
	ragDegraded := false
	if env.RAG != nil {
		ragDegraded = env.RAG.Degraded()
		if results, err := env.RAG.Query(ctx, state.Lead.CompanyName, 4); err == nil {
			subs := []*float64{&in.ProspectScore, &in.UrgencyScore, &in.PainAlignment, &in.BuyingIntent}
			for i, r := range results {
				if i >= len(subs) {
					break
				}
				*subs[i] = clamp01(r.Score)
			}
		}
	}

	succeeded := 0
	var failed []string
	for _, m := range state.Metrics {
		if m.Success {
			succeeded++
		} else {
			failed = append(failed, m.StageName)
		}
	}
	rate := 0.0
	if len(state.Metrics) > 0 {
		rate = float64(succeeded) / float64(len(state.Metrics))
	}

	return &models.ProspectPackage{
		Lead:                     state.Lead,
		Outputs:                  state.Outputs,
		ConfidenceScore:          scoring.Confidence(state),
		ROIPotentialScore:        scoring.ROIPotential(state),
		EngagementReadinessScore: scoring.EngagementReadiness(state, in),
		Processing: models.ProcessingMetadata{
			TotalDurationSeconds: totalSeconds,
			StageMetrics:         state.Metrics,
			SuccessRate:          rate,
			FailedStages:         failed,
			RAGDegraded:          ragDegraded,
		},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
