package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Nellia-dev/prospector/pkg/config"
	"github.com/Nellia-dev/prospector/pkg/events"
	"github.com/Nellia-dev/prospector/pkg/llm"
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/query"
	"github.com/Nellia-dev/prospector/pkg/rag"
	"github.com/Nellia-dev/prospector/pkg/stage"
	"github.com/Nellia-dev/prospector/pkg/stages"
	"github.com/Nellia-dev/prospector/pkg/store"
	"github.com/Nellia-dev/prospector/pkg/webtools"
)

// Deps are the external adapters the orchestrator wires into every job.
// Sidecar and Embedder may be nil: persistence is then skipped and the RAG
// store runs degraded from the start.
type Deps struct {
	Gateway  *llm.Gateway
	Searcher webtools.Searcher
	Scraper  webtools.Scraper
	Embedder rag.Embedder
	Sidecar  *store.ContextSidecar
	Logger   *slog.Logger
}

// Orchestrator is the top-level driver. One Orchestrator serves many jobs;
// each Run call owns exactly one event stream.
type Orchestrator struct {
	cfg     *config.Config
	deps    Deps
	catalog *stage.Registry
	runner  *stage.Runner
	worker  *Worker
	synth   *query.Synthesizer
	ragReg  *rag.Registry
	logger  *slog.Logger
}

// New builds an orchestrator over a validated configuration.
func New(cfg *config.Config, deps Deps) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	catalog, err := stages.NewCatalog()
	if err != nil {
		return nil, err
	}
	runner := stage.NewRunner(cfg.LLMMaxPromptChars, logger)
	return &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		catalog: catalog,
		runner:  runner,
		worker:  NewWorker(catalog, runner, logger),
		synth:   query.NewSynthesizer(deps.Gateway, logger),
		ragReg:  rag.NewRegistry(deps.Embedder),
		logger:  logger,
	}, nil
}

// Run starts a job and returns its event stream. The stream begins with
// pipeline_start, ends with pipeline_end, and is closed by the orchestrator;
// the caller must drain it. Cancelling ctx stops the job between stages.
func (o *Orchestrator) Run(ctx context.Context, job models.Job) *events.Stream {
	stream := events.NewStream(o.cfg.EventChannelCapacity)
	go o.run(ctx, job, stream)
	return stream
}

func (o *Orchestrator) run(ctx context.Context, job models.Job, stream *events.Stream) {
	defer stream.Close()
	// pipeline_end and pipeline_error must deliver even after cancellation.
	emitCtx := context.WithoutCancel(ctx)
	started := time.Now()

	emit := func(ev events.Event) bool { return stream.Emit(ctx, ev) == nil }
	end := func(success bool, generated, enriched, failures int) {
		_ = stream.Emit(emitCtx, events.PipelineEnd{
			Meta:                 events.NewMeta(events.TypePipelineEnd, job.JobID, job.UserID),
			Success:              success,
			TotalLeadsGenerated:  generated,
			TotalLeadsEnriched:   enriched,
			TotalFailures:        failures,
			ExecutionTimeSeconds: time.Since(started).Seconds(),
		})
	}

	if !emit(events.PipelineStart{
		Meta:               events.NewMeta(events.TypePipelineStart, job.JobID, job.UserID),
		InitialQuery:       job.Business.UserSearchQuery,
		MaxLeadsToGenerate: job.MaxLeads,
	}) {
		end(false, 0, 0, 0)
		return
	}
	if job.MaxLeads <= 0 {
		end(true, 0, 0, 0)
		return
	}

	o.status(ctx, stream, job, "synthesizing_query", "synthesizing search query from business context", nil)
	q := o.synth.Synthesize(ctx, job.Business)

	ec := models.EnrichedContext{
		JobID:       job.JobID,
		UserID:      job.UserID,
		Business:    job.Business,
		SearchQuery: q,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if o.deps.Sidecar != nil {
		if err := o.deps.Sidecar.Save(ctx, ec); err != nil {
			_ = stream.Emit(emitCtx, events.PipelineError{
				Meta:         events.NewMeta(events.TypePipelineError, job.JobID, job.UserID),
				ErrorMessage: "persistence unavailable: " + err.Error(),
			})
			end(false, 0, 0, 0)
			return
		}
	}

	// RAG build runs in the background; workers wait on ragReady before
	// their first stage. The seed text comes from the persisted snapshot,
	// reloaded through the sidecar; a reload failure falls back to the
	// in-memory copy.
	ragReady := make(chan struct{})
	var jobRAG *rag.Store
	go func() {
		defer close(ragReady)
		seed := ec
		if o.deps.Sidecar != nil {
			if loaded, err := o.deps.Sidecar.Load(ctx, job.JobID); err == nil {
				seed = *loaded
			} else {
				o.logger.Warn("failed to reload persisted context, seeding RAG from memory",
					"job_id", job.JobID, "error", err)
			}
		}
		st, err := o.ragReg.Build(ctx, job.JobID, seed.SeedText())
		if err != nil {
			o.logger.Warn("RAG store build degraded", "job_id", job.JobID, "error", err)
		}
		jobRAG = st
	}()
	defer o.ragReg.Drop(job.JobID)

	o.status(ctx, stream, job, "harvesting_leads", "searching for candidate companies", map[string]any{"query": q})
	leads := o.harvest(ctx, q, job.MaxLeads)

	sem := semaphore.NewWeighted(int64(o.cfg.LeadWorkerConcurrency))
	var wg sync.WaitGroup
	var enriched, failures atomic.Int64
	generated := 0

	for _, lead := range leads {
		if ctx.Err() != nil {
			break
		}
		if !emit(events.LeadGenerated{
			Meta:        events.NewMeta(events.TypeLeadGenerated, job.JobID, job.UserID),
			LeadID:      lead.LeadID,
			CompanyName: lead.CompanyName,
			WebsiteURL:  lead.WebsiteURL,
			Description: lead.Description,
			Source:      lead.Source,
		}) {
			break
		}
		generated++
		if err := sem.Acquire(ctx, 1); err != nil {
			failures.Add(1)
			break
		}
		wg.Add(1)
		go func(lead models.Lead) {
			defer wg.Done()
			defer sem.Release(1)
			<-ragReady
			env := &stage.Env{
				JobID:    job.JobID,
				UserID:   job.UserID,
				LeadID:   lead.LeadID,
				Gateway:  o.deps.Gateway,
				Searcher: o.deps.Searcher,
				Scraper:  o.deps.Scraper,
				RAG:      jobRAG,
				Stream:   stream,
				Config:   o.cfg,
				Logger:   o.logger,
			}
			if o.worker.Enrich(ctx, env, lead, ec) {
				enriched.Add(1)
			} else {
				failures.Add(1)
			}
		}(lead)
	}
	wg.Wait()
	<-ragReady
	if jobRAG != nil && jobRAG.Degraded() {
		o.status(emitCtx, stream, job, "rag_degraded", "RAG store degraded to keyword retrieval", map[string]any{"rag_degraded": true})
	}

	success := ctx.Err() == nil && failures.Load() == 0
	end(success, generated, int(enriched.Load()), int(failures.Load()))
}

func (o *Orchestrator) status(ctx context.Context, stream *events.Stream, job models.Job, status, msg string, metadata map[string]any) {
	_ = stream.Emit(ctx, events.StatusUpdate{
		Meta:     events.NewMeta(events.TypeStatusUpdate, job.JobID, job.UserID),
		Status:   status,
		Message:  msg,
		Metadata: metadata,
	})
}

// harvest turns search results into leads. A failed or empty search yields
// one synthesized fallback lead so the downstream DAG is still exercised;
// its description carries the "fallback" marker.
func (o *Orchestrator) harvest(ctx context.Context, q string, maxLeads int) []models.Lead {
	results, err := o.deps.Searcher.Search(ctx, q, maxLeads)
	if err != nil {
		o.logger.Warn("lead search failed, synthesizing fallback lead", "error", err)
	}
	if err != nil || len(results) == 0 {
		return []models.Lead{fallbackLead(q)}
	}
	leads := make([]models.Lead, 0, len(results))
	for _, r := range results {
		if len(leads) == maxLeads {
			break
		}
		leads = append(leads, models.Lead{
			LeadID:      uuid.NewString(),
			CompanyName: companyName(r),
			WebsiteURL:  r.URL,
			Description: r.Snippet,
			Source:      models.LeadSourceSearch,
		})
	}
	return leads
}

func fallbackLead(q string) models.Lead {
	return models.Lead{
		LeadID:      uuid.NewString(),
		CompanyName: "Example Prospect Co",
		WebsiteURL:  "https://example.com/prospect",
		Description: "fallback lead synthesized because search returned no results for: " + q,
		Source:      models.LeadSourceFallback,
	}
}

func companyName(r webtools.SearchResult) string {
	if r.Title != "" {
		return r.Title
	}
	if u, err := url.Parse(r.URL); err == nil && u.Host != "" {
		return u.Host
	}
	return r.URL
}
