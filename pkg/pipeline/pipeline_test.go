package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nellia-dev/prospector/pkg/config"
	"github.com/Nellia-dev/prospector/pkg/events"
	"github.com/Nellia-dev/prospector/pkg/llm"
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
	"github.com/Nellia-dev/prospector/pkg/stages"
	"github.com/Nellia-dev/prospector/pkg/store"
	"github.com/Nellia-dev/prospector/pkg/webtools"
)

// scriptedProvider routes prompts to canned responses by the first line of
// the rendered template, so each stage in the DAG can be scripted separately.
type scriptedProvider struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
}

func (p *scriptedProvider) Generate(_ context.Context, prompt string) (*llm.ProviderResponse, error) {
	first := strings.SplitN(prompt, "\n", 2)[0]
	p.mu.Lock()
	defer p.mu.Unlock()
	for marker, err := range p.failures {
		if strings.Contains(first, marker) {
			return nil, err
		}
	}
	for marker, content := range p.responses {
		if strings.Contains(first, marker) {
			return &llm.ProviderResponse{Content: content, PromptTokens: 50, CompletionTokens: 25}, nil
		}
	}
	return nil, fmt.Errorf("unscripted prompt: %s", first)
}

func cannedResponses() map[string]string {
	return map[string]string{
		"web search query":                "b2b saas companies adopting sales automation",
		"B2B sales analyst":               `{"sector":"software","main_services":["widgets"],"relevance_score":0.8,"general_diagnosis":"solid fit"}`,
		"enriching a B2B sales lead":      `{"enrichment_summary":"Acme is expanding into Europe","key_findings":["opened a Berlin office"],"confidence":0.6}`,
		"Extract contact information":     `{"emails":["sales@acme.example"],"phones":[],"social_profiles":[],"search_suggestions":[],"confidence":0.4}`,
		"diagnosing the business pains":   `{"primary_pain_category":"operations","detailed_pain_points":[{"description":"manual lead research","impact":"slow pipeline"},{"description":"long sales cycles","impact":"missed quota"}],"urgency_level":"high","investigative_questions":["how long is your cycle?"]}`,
		"Qualify this B2B prospect":       `{"qualification_tier":"high","confidence_score":0.8,"justification":"clear pains and budget"}`,
		"Identify competitors":            `{"competitors":[{"name":"Rival Corp","description":"incumbent"}]}`,
		"open-ended discovery questions":  `{"questions":["what does your current process look like?","who owns this problem?"]}`,
		"Identify buying triggers":        `{"identified_triggers":[{"description":"hiring SDRs","relevance":"team is scaling"}]}`,
		"distinct outreach strategies":    `{"strategies":[{"name":"direct value","channel":"email","hook":"Berlin expansion"},{"name":"social proof","channel":"linkedin","hook":"peer results"}]}`,
		"Evaluate each proposed outreach": `{"evaluations":[{"strategy_name":"direct value","suitability":"high","confidence_label":"high"},{"strategy_name":"social proof","suitability":"medium","confidence_label":"medium"}]}`,
		"synthesize the single best":      `{"name":"direct value","summary":"lead with the expansion hook","primary_channel":"email","confidence_score":0.7}`,
		"Expand the chosen action plan":   `{"main_objective":"book a discovery call","contact_sequence":[{"step_number":1,"channel":"email","objective":"open the conversation"}]}`,
		"Anticipate the objections":       `{"objections":[{"category":"budget","statement":"no budget this quarter","response_strategy":"quantify the cost of waiting"}]}`,
		"customized value propositions":   `{"value_propositions":[{"title":"cut research time","detailed_proposition":"automated enrichment saves hours per lead"}]}`,
		"first outreach message":          `{"channel":"email","subject":"Your Berlin expansion","body":"Hi, congrats on the new office.","call_to_action":"open to a 15 minute call?","personalization_elements":["Berlin office"]}`,
		"internal sales briefing":         `{"executive_summary":"High-fit prospect with urgent pains","talking_points":["expansion"],"next_steps":["send email"]}`,
	}
}

type fakeSearcher struct {
	mu      sync.Mutex
	results []webtools.SearchResult
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, max int) ([]webtools.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > max {
		return f.results[:max], nil
	}
	return f.results, nil
}

type fakeScraper struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	delay    time.Duration
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*webtools.ScrapeResult, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return &webtools.ScrapeResult{
		Title:         "Acme Inc",
		TextContent:   "Acme builds widgets and is hiring in Berlin.",
		StatusMessage: "fetched",
	}, nil
}

func newOrchestrator(t *testing.T, cfg *config.Config, provider llm.Provider, searcher webtools.Searcher, sidecar *store.ContextSidecar) *Orchestrator {
	t.Helper()
	deps := Deps{
		Searcher: searcher,
		Scraper:  &fakeScraper{},
		Sidecar:  sidecar,
	}
	if provider != nil {
		deps.Gateway = llm.New(provider, llm.Options{MaxRetries: 1, RetryDelay: time.Millisecond})
	}
	o, err := New(cfg, deps)
	require.NoError(t, err)
	return o
}

func collect(stream *events.Stream) []events.Event {
	var out []events.Event
	for ev := range stream.Events() {
		out = append(out, ev)
	}
	return out
}

func ofType[T events.Event](evs []events.Event) []T {
	var out []T
	for _, ev := range evs {
		if v, ok := ev.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func testJob(maxLeads int) models.Job {
	return models.Job{
		JobID:    "job-1",
		UserID:   "user-1",
		MaxLeads: maxLeads,
		Business: models.BusinessContext{
			BusinessDescription:       "we sell prospecting software",
			ProductServiceDescription: "automated lead enrichment",
			IdealCustomer:             "B2B sales teams",
			PainPoints:                []string{"manual research"},
		},
	}
}

func searchHit(n int) webtools.SearchResult {
	return webtools.SearchResult{
		URL:     fmt.Sprintf("https://acme-%d.example", n),
		Title:   fmt.Sprintf("Acme %d", n),
		Snippet: "Acme sells widgets",
	}
}

func TestRunHappyPath(t *testing.T) {
	provider := &scriptedProvider{responses: cannedResponses()}
	searcher := &fakeSearcher{results: []webtools.SearchResult{searchHit(1)}}
	o := newOrchestrator(t, config.Default(), provider, searcher, store.NewContextSidecar(store.NewMemoryStore()))

	evs := collect(o.Run(context.Background(), testJob(1)))
	require.NotEmpty(t, evs)

	_, ok := evs[0].(events.PipelineStart)
	require.True(t, ok, "stream must open with pipeline_start")
	end, ok := evs[len(evs)-1].(events.PipelineEnd)
	require.True(t, ok, "stream must close with pipeline_end")
	assert.True(t, end.Success)
	assert.Equal(t, 1, end.TotalLeadsGenerated)
	assert.Equal(t, 1, end.TotalLeadsEnriched)
	assert.Zero(t, end.TotalFailures)
	assert.Greater(t, end.ExecutionTimeSeconds, 0.0)

	generated := ofType[events.LeadGenerated](evs)
	require.Len(t, generated, 1)
	assert.Equal(t, "Acme 1", generated[0].CompanyName)
	assert.Equal(t, models.LeadSourceSearch, generated[0].Source)

	starts := ofType[events.AgentStart](evs)
	ends := ofType[events.AgentEnd](evs)
	require.Len(t, starts, 17)
	require.Len(t, ends, 17)
	for _, ae := range ends {
		assert.True(t, ae.Success, "stage %s", ae.AgentName)
	}

	enrichEnds := ofType[events.LeadEnrichmentEnd](evs)
	require.Len(t, enrichEnds, 1)
	assert.True(t, enrichEnds[0].Success)
	pkg := enrichEnds[0].Package
	require.NotNil(t, pkg)
	assert.InDelta(t, 1.0, pkg.Processing.SuccessRate, 1e-9)
	assert.Empty(t, pkg.Processing.FailedStages)
	assert.Greater(t, pkg.ConfidenceScore, 0.0)
	assert.Greater(t, pkg.ROIPotentialScore, 0.0)

	msg, ok := models.Payload[models.MessageOutput](pkgState(pkg), stages.NamePersonalizedMessage)
	require.True(t, ok)
	assert.Equal(t, "email", msg.Channel)
	assert.Equal(t, "Hi, congrats on the new office.", msg.Body)
}

// pkgState rebuilds a LeadState view over a finished package's outputs.
func pkgState(pkg *models.ProspectPackage) *models.LeadState {
	state := models.NewLeadState(pkg.Lead)
	for _, out := range pkg.Outputs {
		state.SetOutput(out)
	}
	return state
}

func TestRunStageFailureDowngradesToDefault(t *testing.T) {
	provider := &scriptedProvider{
		responses: cannedResponses(),
		failures:  map[string]error{"diagnosing the business pains": &llm.TransportError{Err: errors.New("llm down")}},
	}
	searcher := &fakeSearcher{results: []webtools.SearchResult{searchHit(1)}}
	o := newOrchestrator(t, config.Default(), provider, searcher, nil)

	evs := collect(o.Run(context.Background(), testJob(1)))

	ends := ofType[events.AgentEnd](evs)
	require.Len(t, ends, 17)
	byName := make(map[string]events.AgentEnd, len(ends))
	for _, ae := range ends {
		byName[ae.AgentName] = ae
	}
	pain := byName[stages.NamePainPointDeepening]
	assert.False(t, pain.Success)
	assert.NotEmpty(t, pain.ErrorMessage)
	// Downstream stages still ran and succeeded on the default payload.
	assert.True(t, byName[stages.NameLeadQualification].Success)
	assert.True(t, byName[stages.NameInternalBriefing].Success)

	enrichEnds := ofType[events.LeadEnrichmentEnd](evs)
	require.Len(t, enrichEnds, 1)
	assert.True(t, enrichEnds[0].Success, "a failed stage must not fail the lead")
	require.NotNil(t, enrichEnds[0].Package)
	assert.Contains(t, enrichEnds[0].Package.Processing.FailedStages, stages.NamePainPointDeepening)

	end := evs[len(evs)-1].(events.PipelineEnd)
	assert.True(t, end.Success)
	assert.Equal(t, 1, end.TotalLeadsEnriched)
}

func TestRunEmptySearchSynthesizesFallbackLead(t *testing.T) {
	provider := &scriptedProvider{responses: cannedResponses()}
	searcher := &fakeSearcher{} // zero results
	o := newOrchestrator(t, config.Default(), provider, searcher, nil)

	evs := collect(o.Run(context.Background(), testJob(3)))

	generated := ofType[events.LeadGenerated](evs)
	require.Len(t, generated, 1)
	assert.Equal(t, models.LeadSourceFallback, generated[0].Source)
	assert.Contains(t, generated[0].Description, "fallback")

	end := evs[len(evs)-1].(events.PipelineEnd)
	assert.True(t, end.Success)
	assert.Equal(t, 1, end.TotalLeadsGenerated)
	assert.Equal(t, 1, end.TotalLeadsEnriched)
}

func TestRunZeroMaxLeadsEndsImmediately(t *testing.T) {
	o := newOrchestrator(t, config.Default(), nil, &fakeSearcher{}, nil)

	evs := collect(o.Run(context.Background(), testJob(0)))
	require.Len(t, evs, 2)
	_, ok := evs[0].(events.PipelineStart)
	assert.True(t, ok)
	end, ok := evs[1].(events.PipelineEnd)
	require.True(t, ok)
	assert.True(t, end.Success)
	assert.Zero(t, end.TotalLeadsGenerated)
}

// recordingStore tracks Get calls so tests can observe the snapshot reload.
type recordingStore struct {
	inner  store.Store
	mu     sync.Mutex
	gets   []string
	getErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{inner: store.NewMemoryStore()}
}

func (r *recordingStore) Put(ctx context.Context, key string, blob []byte) error {
	return r.inner.Put(ctx, key, blob)
}

func (r *recordingStore) Get(ctx context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	r.gets = append(r.gets, key)
	err := r.getErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.inner.Get(ctx, key)
}

func TestRunReloadsPersistedContextForRAG(t *testing.T) {
	provider := &scriptedProvider{responses: cannedResponses()}
	searcher := &fakeSearcher{results: []webtools.SearchResult{searchHit(1)}}
	rs := newRecordingStore()
	o := newOrchestrator(t, config.Default(), provider, searcher, store.NewContextSidecar(rs))

	evs := collect(o.Run(context.Background(), testJob(1)))

	end := evs[len(evs)-1].(events.PipelineEnd)
	assert.True(t, end.Success)
	assert.Equal(t, []string{store.ContextKey("job-1")}, rs.gets)
}

func TestRunReloadFailureFallsBackToMemoryCopy(t *testing.T) {
	provider := &scriptedProvider{responses: cannedResponses()}
	searcher := &fakeSearcher{results: []webtools.SearchResult{searchHit(1)}}
	rs := newRecordingStore()
	rs.getErr = errors.New("store flaking")
	o := newOrchestrator(t, config.Default(), provider, searcher, store.NewContextSidecar(rs))

	evs := collect(o.Run(context.Background(), testJob(1)))

	end := evs[len(evs)-1].(events.PipelineEnd)
	assert.True(t, end.Success, "a failed reload degrades to the in-memory context, not a failed job")
	assert.Equal(t, 1, end.TotalLeadsEnriched)
	assert.Len(t, rs.gets, 1)
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("db unreachable") }
func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("db unreachable")
}

func TestRunPersistenceFailureAbortsJob(t *testing.T) {
	provider := &scriptedProvider{responses: cannedResponses()}
	o := newOrchestrator(t, config.Default(), provider, &fakeSearcher{}, store.NewContextSidecar(failingStore{}))

	evs := collect(o.Run(context.Background(), testJob(2)))

	perrs := ofType[events.PipelineError](evs)
	require.Len(t, perrs, 1)
	assert.Contains(t, perrs[0].ErrorMessage, "persistence unavailable")

	end := evs[len(evs)-1].(events.PipelineEnd)
	assert.False(t, end.Success)
	assert.Zero(t, end.TotalLeadsGenerated)
	assert.Empty(t, ofType[events.LeadGenerated](evs))
}

func TestRunCancellationClosesCleanly(t *testing.T) {
	provider := &scriptedProvider{responses: cannedResponses()}
	searcher := &fakeSearcher{results: []webtools.SearchResult{searchHit(1)}}
	cfg := config.Default()
	// A tiny channel makes the worker block on emits, so cancellation lands
	// deterministically between stages.
	cfg.EventChannelCapacity = 1
	o := newOrchestrator(t, cfg, provider, searcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := o.Run(ctx, testJob(1))

	var evs []events.Event
	cancelled := false
	for ev := range stream.Events() {
		evs = append(evs, ev)
		if _, ok := ev.(events.AgentEnd); ok && !cancelled {
			cancelled = true
			cancel()
		}
	}
	require.True(t, cancelled, "expected at least one agent_end before cancellation")

	end, ok := evs[len(evs)-1].(events.PipelineEnd)
	require.True(t, ok, "pipeline_end must still close the stream")
	assert.False(t, end.Success)

	enrichEnds := ofType[events.LeadEnrichmentEnd](evs)
	require.Len(t, enrichEnds, 1)
	assert.False(t, enrichEnds[0].Success)
	assert.Equal(t, "cancelled", enrichEnds[0].ErrorMessage)
	assert.Nil(t, enrichEnds[0].Package)

	// Cancellation must not break pairing: every delivered agent_start has
	// its agent_end, and nothing ran to completion.
	starts := ofType[events.AgentStart](evs)
	ends := ofType[events.AgentEnd](evs)
	assert.Less(t, len(ends), 17)
	assert.Equal(t, len(starts), len(ends))
}

func TestEnrichWithoutDeliveredStartEmitsNoEvents(t *testing.T) {
	catalog, err := stages.NewCatalog()
	require.NoError(t, err)
	w := NewWorker(catalog, stage.NewRunner(1000, nil), nil)

	// A full capacity-1 stream plus a cancelled context means the opening
	// lead_enrichment_start can never be delivered.
	stream := events.NewStream(1)
	require.NoError(t, stream.Emit(context.Background(), events.StatusUpdate{
		Meta:   events.NewMeta(events.TypeStatusUpdate, "job-1", "user-1"),
		Status: "harvesting_leads",
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := &stage.Env{
		JobID:  "job-1",
		UserID: "user-1",
		LeadID: "lead-1",
		Stream: stream,
		Config: config.Default(),
	}
	ok := w.Enrich(ctx, env, models.Lead{LeadID: "lead-1", CompanyName: "Acme"}, models.EnrichedContext{})
	assert.False(t, ok)

	stream.Close()
	evs := collect(stream)
	require.Len(t, evs, 1, "no lead events may be emitted when the start was never delivered")
	assert.Equal(t, events.TypeStatusUpdate, evs[0].Type())
}

func TestRunEveryLLMCallFailingStillEnriches(t *testing.T) {
	provider := &scriptedProvider{failures: map[string]error{"": &llm.TransportError{Err: errors.New("provider down")}}}
	searcher := &fakeSearcher{results: []webtools.SearchResult{searchHit(1)}}
	o := newOrchestrator(t, config.Default(), provider, searcher, nil)

	evs := collect(o.Run(context.Background(), testJob(1)))

	ends := ofType[events.AgentEnd](evs)
	require.Len(t, ends, 17)
	for _, ae := range ends {
		if ae.AgentName == stages.NameIntake {
			assert.True(t, ae.Success, "intake does not touch the LLM")
			continue
		}
		assert.False(t, ae.Success, "stage %s", ae.AgentName)
	}

	enrichEnds := ofType[events.LeadEnrichmentEnd](evs)
	require.Len(t, enrichEnds, 1)
	assert.True(t, enrichEnds[0].Success, "defaults carry the lead to completion")

	end := evs[len(evs)-1].(events.PipelineEnd)
	assert.True(t, end.Success)
	assert.Equal(t, 1, end.TotalLeadsEnriched)
}

func TestRunRespectsWorkerConcurrency(t *testing.T) {
	provider := &scriptedProvider{responses: cannedResponses()}
	results := make([]webtools.SearchResult, 5)
	for i := range results {
		results[i] = searchHit(i)
	}
	searcher := &fakeSearcher{results: results}

	cfg := config.Default()
	cfg.LeadWorkerConcurrency = 2
	scraper := &fakeScraper{delay: 10 * time.Millisecond}
	gw := llm.New(provider, llm.Options{MaxRetries: 1, RetryDelay: time.Millisecond})
	o, err := New(cfg, Deps{Gateway: gw, Searcher: searcher, Scraper: scraper})
	require.NoError(t, err)

	evs := collect(o.Run(context.Background(), testJob(5)))

	end := evs[len(evs)-1].(events.PipelineEnd)
	assert.True(t, end.Success)
	assert.Equal(t, 5, end.TotalLeadsGenerated)
	assert.Equal(t, 5, end.TotalLeadsEnriched)
	assert.LessOrEqual(t, scraper.maxSeen, 2)

	assert.Len(t, ofType[events.LeadEnrichmentStart](evs), 5)
	assert.Len(t, ofType[events.LeadEnrichmentEnd](evs), 5)
	assert.Len(t, ofType[events.AgentStart](evs), 5*17)
}

func TestRunEventOrderingInvariants(t *testing.T) {
	provider := &scriptedProvider{responses: cannedResponses()}
	searcher := &fakeSearcher{results: []webtools.SearchResult{searchHit(1), searchHit(2)}}
	o := newOrchestrator(t, config.Default(), provider, searcher, nil)

	evs := collect(o.Run(context.Background(), testJob(2)))

	generatedAt := make(map[string]int)
	startAt := make(map[string]int)
	for i, ev := range evs {
		switch v := ev.(type) {
		case events.PipelineStart:
			assert.Zero(t, i, "pipeline_start must be first")
		case events.PipelineEnd:
			assert.Equal(t, len(evs)-1, i, "pipeline_end must be last")
		case events.LeadGenerated:
			generatedAt[v.LeadID] = i
		case events.LeadEnrichmentStart:
			startAt[v.LeadID] = i
		}
	}
	require.Len(t, generatedAt, 2)
	require.Len(t, startAt, 2)
	for leadID, gi := range generatedAt {
		si, ok := startAt[leadID]
		require.True(t, ok, "lead %s never started enrichment", leadID)
		assert.Less(t, gi, si, "lead_generated must precede lead_enrichment_start")
	}
}
