package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nellia-dev/prospector/pkg/config"
	"github.com/Nellia-dev/prospector/pkg/events"
	"github.com/Nellia-dev/prospector/pkg/llm"
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/rag"
	"github.com/Nellia-dev/prospector/pkg/stage"
	"github.com/Nellia-dev/prospector/pkg/webtools"
)

func TestCatalogShape(t *testing.T) {
	reg, err := NewCatalog()
	require.NoError(t, err)
	require.Equal(t, 17, reg.Len())

	ordered := reg.Ordered()
	wantOrder := []string{
		NameIntake, NameAnalysis, NameTavilyEnrichment, NameContactExtraction,
		NamePainPointDeepening, NameLeadQualification, NameCompetitorIdentification,
		NameStrategicQuestions, NameBuyingTriggers, NameToTGenerate, NameToTEvaluate,
		NameToTSynthesize, NameDetailedPlan, NameObjectionHandling,
		NameValuePropositions, NamePersonalizedMessage, NameInternalBriefing,
	}
	require.Len(t, ordered, len(wantOrder))
	for i, s := range ordered {
		assert.Equal(t, wantOrder[i], s.Name(), "position %d", i)
		assert.Equal(t, i+1, s.ExecutionOrder())
	}

	intake, ok := reg.Get(NameIntake)
	require.True(t, ok)
	assert.Equal(t, stage.CategoryInitial, intake.Category())
	assert.Empty(t, intake.DependsOn())

	msg, ok := reg.Get(NamePersonalizedMessage)
	require.True(t, ok)
	assert.Equal(t, stage.CategoryAlternative, msg.Category())

	briefing, ok := reg.Get(NameInternalBriefing)
	require.True(t, ok)
	assert.Len(t, briefing.DependsOn(), 16)
}

func TestCatalogDefaultsAreTyped(t *testing.T) {
	reg, err := NewCatalog()
	require.NoError(t, err)
	state := models.NewLeadState(models.Lead{LeadID: "l", CompanyName: "Acme", Description: "desc"})

	for _, s := range reg.Ordered() {
		assert.NotNil(t, s.Default(state), "stage %s must have a non-nil default", s.Name())
	}
}

// --- fakes -----------------------------------------------------------------

type fakeScraper struct {
	result *webtools.ScrapeResult
	err    error
	urls   []string
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*webtools.ScrapeResult, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSearcher struct {
	results []webtools.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]webtools.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fixedProvider struct {
	content string
	err     error
	prompts []string
}

func (p *fixedProvider) Generate(_ context.Context, prompt string) (*llm.ProviderResponse, error) {
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ProviderResponse{Content: p.content, PromptTokens: 15, CompletionTokens: 5}, nil
}

func newEnv(provider llm.Provider, searcher *fakeSearcher, scraper *fakeScraper) *stage.Env {
	var gw *llm.Gateway
	if provider != nil {
		gw = llm.New(provider, llm.Options{MaxRetries: 1, RetryDelay: time.Millisecond})
	}
	return &stage.Env{
		JobID:    "job-1",
		UserID:   "user-1",
		LeadID:   "lead-1",
		Gateway:  gw,
		Searcher: searcher,
		Scraper:  scraper,
		Stream:   events.NewStream(256),
		Config:   config.Default(),
	}
}

func drainEvents(env *stage.Env) []events.Event {
	env.Stream.Close()
	var out []events.Event
	for ev := range env.Stream.Events() {
		out = append(out, ev)
	}
	return out
}

// --- intake ---------------------------------------------------------------

func TestIntakeScrapesAndEmitsToolEvents(t *testing.T) {
	scraper := &fakeScraper{result: &webtools.ScrapeResult{
		Title:         "Acme Inc",
		TextContent:   "Acme builds widgets for factories.",
		StatusMessage: "fetched",
	}}
	env := newEnv(nil, nil, scraper)
	state := models.NewLeadState(models.Lead{LeadID: "lead-1", CompanyName: "Acme", WebsiteURL: "acme.example"})

	s := &intakeStage{meta{NameIntake, stage.CategoryInitial, nil, 1}}
	payload, usage, err := s.RunDirect(context.Background(), env, state, models.EnrichedContext{})
	require.NoError(t, err)
	assert.Zero(t, usage.LLMCalls)

	out, ok := payload.(models.IntakeOutput)
	require.True(t, ok)
	assert.True(t, out.ExtractionSuccessful)
	assert.Equal(t, "Acme builds widgets for factories.", out.CleanedText)
	assert.Equal(t, "https://acme.example", out.SourceURL)
	assert.Equal(t, []string{"https://acme.example"}, scraper.urls)

	evs := drainEvents(env)
	require.Len(t, evs, 3)
	assert.Equal(t, events.TypeToolCallStart, evs[0].Type())
	assert.Equal(t, events.TypeToolCallOutput, evs[1].Type())
	assert.Equal(t, events.TypeToolCallEnd, evs[2].Type())
}

func TestIntakeScrapeFailureReturnsError(t *testing.T) {
	scraper := &fakeScraper{err: &webtools.ScrapeHTTPError{URL: "https://acme.example", StatusCode: 404}}
	env := newEnv(nil, nil, scraper)
	state := models.NewLeadState(models.Lead{LeadID: "lead-1", WebsiteURL: "https://acme.example", Description: "initial description"})

	s := &intakeStage{meta{NameIntake, stage.CategoryInitial, nil, 1}}
	_, _, err := s.RunDirect(context.Background(), env, state, models.EnrichedContext{})
	require.Error(t, err)

	// The default keeps downstream stages alive on the initial description.
	def := s.Default(state).(models.IntakeOutput)
	assert.False(t, def.ExtractionSuccessful)
	assert.Equal(t, "initial description", def.CleanedText)

	evs := drainEvents(env)
	require.Len(t, evs, 2) // start + failed end, no output
	end := evs[1].(events.ToolCallEnd)
	assert.False(t, end.Success)
	assert.NotEmpty(t, end.ErrorMessage)
}

func TestIntakeMissingURL(t *testing.T) {
	env := newEnv(nil, nil, &fakeScraper{})
	state := models.NewLeadState(models.Lead{LeadID: "lead-1", Description: "only a description"})

	s := &intakeStage{meta{NameIntake, stage.CategoryInitial, nil, 1}}
	_, _, err := s.RunDirect(context.Background(), env, state, models.EnrichedContext{})
	require.Error(t, err)
}

func TestCanonicalURL(t *testing.T) {
	assert.Equal(t, "https://acme.example", canonicalURL("acme.example"))
	assert.Equal(t, "https://acme.example", canonicalURL(" https://acme.example/ "))
	assert.Equal(t, "http://acme.example", canonicalURL("http://acme.example"))
	assert.Equal(t, "", canonicalURL("   "))
}

// --- tavily_enrichment ----------------------------------------------------

func TestEnrichmentSearchesThenSummarizes(t *testing.T) {
	searcher := &fakeSearcher{results: []webtools.SearchResult{
		{URL: "https://news.example", Title: "Acme raises funding", Snippet: "Acme closed a round"},
	}}
	provider := &fixedProvider{content: `{"enrichment_summary":"Acme is growing","key_findings":["raised a funding round"],"confidence":0.7}`}
	env := newEnv(provider, searcher, nil)

	state := models.NewLeadState(models.Lead{LeadID: "lead-1", CompanyName: "Acme"})
	state.SetOutput(models.StageOutput{StageName: NameAnalysis, Payload: models.AnalysisOutput{Sector: "manufacturing"}})

	s := &enrichmentStage{meta{NameTavilyEnrichment, stage.CategorySpecialized, []string{NameAnalysis}, 3}}
	payload, usage, err := s.RunDirect(context.Background(), env, state, models.EnrichedContext{})
	require.NoError(t, err)

	out := payload.(models.EnrichmentOutput)
	assert.True(t, out.APICalled)
	assert.Equal(t, "Acme is growing", out.EnrichmentSummary)
	assert.Len(t, out.QueriesUsed, 3)
	assert.Equal(t, 1, usage.LLMCalls)
	assert.Len(t, searcher.queries, 3)
}

func TestEnrichmentNoResultsSkipsLLM(t *testing.T) {
	searcher := &fakeSearcher{} // search succeeds with zero hits
	env := newEnv(nil, searcher, nil)
	state := models.NewLeadState(models.Lead{LeadID: "lead-1", CompanyName: "Acme"})

	s := &enrichmentStage{meta{NameTavilyEnrichment, stage.CategorySpecialized, []string{NameAnalysis}, 3}}
	payload, usage, err := s.RunDirect(context.Background(), env, state, models.EnrichedContext{})
	require.NoError(t, err)

	out := payload.(models.EnrichmentOutput)
	assert.True(t, out.APICalled)
	assert.Empty(t, out.EnrichmentSummary)
	assert.Zero(t, usage.LLMCalls)
}

func TestEnrichmentAllSearchesFail(t *testing.T) {
	searcher := &fakeSearcher{err: &webtools.SearchUnavailableError{Err: errors.New("api down")}}
	env := newEnv(nil, searcher, nil)
	state := models.NewLeadState(models.Lead{LeadID: "lead-1", CompanyName: "Acme"})

	s := &enrichmentStage{meta{NameTavilyEnrichment, stage.CategorySpecialized, []string{NameAnalysis}, 3}}
	_, _, err := s.RunDirect(context.Background(), env, state, models.EnrichedContext{})
	require.Error(t, err)

	def := s.Default(state).(models.EnrichmentOutput)
	assert.False(t, def.APICalled)
}

// --- personalized_message -------------------------------------------------

func TestMessageNoContactChannel(t *testing.T) {
	env := newEnv(&fixedProvider{content: "unused"}, nil, nil)
	state := models.NewLeadState(models.Lead{LeadID: "lead-1", CompanyName: "Acme"})
	state.SetOutput(models.StageOutput{StageName: NameContactExtraction, Payload: models.ContactOutput{}})

	s := &messageStage{meta{NamePersonalizedMessage, stage.CategoryAlternative, nil, 16}}
	_, usage, err := s.RunDirect(context.Background(), env, state, models.EnrichedContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suitable contact channel")
	assert.Zero(t, usage.LLMCalls)

	def := s.Default(state).(models.MessageOutput)
	assert.Equal(t, "none", def.Channel)
}

func TestMessageWithContacts(t *testing.T) {
	provider := &fixedProvider{content: `{"channel":"email","subject":"Quick idea for Acme","body":"Hi there","call_to_action":"15 min call?","personalization_elements":["widgets"]}`}
	env := newEnv(provider, nil, nil)
	state := models.NewLeadState(models.Lead{LeadID: "lead-1", CompanyName: "Acme"})
	state.SetOutput(models.StageOutput{StageName: NameContactExtraction, Payload: models.ContactOutput{Emails: []string{"hello@acme.example"}}})

	s := &messageStage{meta{NamePersonalizedMessage, stage.CategoryAlternative, nil, 16}}
	payload, usage, err := s.RunDirect(context.Background(), env, state, models.EnrichedContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, usage.LLMCalls)

	out := payload.(models.MessageOutput)
	assert.Equal(t, "email", out.Channel)
	assert.Equal(t, "Hi there", out.Body)
}

func TestMessageIncludesResearchNotes(t *testing.T) {
	provider := &fixedProvider{content: `{"channel":"email","subject":"s","body":"hello","call_to_action":"call?","personalization_elements":[]}`}
	env := newEnv(provider, nil, nil)

	reg := rag.NewRegistry(nil)
	jobRAG, err := reg.Build(context.Background(), "job-1", "Acme opened a Berlin office this quarter.")
	require.NoError(t, err)
	env.RAG = jobRAG

	state := models.NewLeadState(models.Lead{LeadID: "lead-1", CompanyName: "Acme"})
	state.SetOutput(models.StageOutput{StageName: NameContactExtraction, Payload: models.ContactOutput{Emails: []string{"hello@acme.example"}}})

	s := &messageStage{meta{NamePersonalizedMessage, stage.CategoryAlternative, nil, 16}}
	_, usage, err := s.RunDirect(context.Background(), env, state, models.EnrichedContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, usage.LLMCalls)

	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "Berlin office")

	evs := drainEvents(env)
	require.Len(t, evs, 3)
	start := evs[0].(events.ToolCallStart)
	assert.Equal(t, "rag_query", start.ToolName)
	assert.Equal(t, NamePersonalizedMessage, start.AgentName)
	end := evs[2].(events.ToolCallEnd)
	assert.True(t, end.Success)
}

// --- decode validation ----------------------------------------------------

func TestDecodeValidation(t *testing.T) {
	reg, err := NewCatalog()
	require.NoError(t, err)

	cases := []struct {
		stageName string
		content   string
		wantErr   bool
	}{
		{NameAnalysis, `{"sector":"saas","relevance_score":0.9}`, false},
		{NameAnalysis, `{"sector":"saas","relevance_score":1.5}`, true},
		{NamePainPointDeepening, `{"primary_pain_category":"ops","urgency_level":"high"}`, false},
		{NamePainPointDeepening, `{"primary_pain_category":"ops","urgency_level":"urgent"}`, true},
		{NameLeadQualification, `{"qualification_tier":"high","confidence_score":0.8}`, false},
		{NameLeadQualification, `{"qualification_tier":"super","confidence_score":0.8}`, true},
		{NameLeadQualification, `{"qualification_tier":"low","confidence_score":2.0}`, true},
		{NameToTGenerate, `{"strategies":[{"name":"direct"}]}`, false},
		{NameToTGenerate, `{"strategies":[]}`, true},
		{NameToTSynthesize, `{"name":"plan","confidence_score":0.7}`, false},
		{NameToTSynthesize, `{"name":"plan","confidence_score":-0.1}`, true},
		{NameDetailedPlan, `{"main_objective":"x","contact_sequence":[{"step_number":1,"channel":"email"}]}`, false},
		{NameDetailedPlan, `{"main_objective":"x","contact_sequence":[]}`, true},
		{NameStrategicQuestions, `{"questions":["what keeps you up at night?"]}`, false},
		{NameStrategicQuestions, `{"questions":[]}`, true},
		{NameValuePropositions, `{"value_propositions":[{"title":"t"}]}`, false},
		{NameValuePropositions, `{"value_propositions":[]}`, true},
		{NamePersonalizedMessage, `{"channel":"fax","body":"hi"}`, true},
		{NamePersonalizedMessage, `{"channel":"email","body":""}`, true},
	}
	for _, tc := range cases {
		s, ok := reg.Get(tc.stageName)
		require.True(t, ok, tc.stageName)
		_, err := s.Decode(tc.content)
		if tc.wantErr {
			assert.Error(t, err, "%s: %s", tc.stageName, tc.content)
		} else {
			assert.NoError(t, err, "%s: %s", tc.stageName, tc.content)
		}
	}
}

func TestCleanedTextFallsBackToDescription(t *testing.T) {
	state := models.NewLeadState(models.Lead{LeadID: "l", Description: "the description"})
	assert.Equal(t, "the description", cleanedText(state))

	state.SetOutput(models.StageOutput{StageName: NameIntake, Payload: models.IntakeOutput{
		CleanedText: "scraped text", ExtractionSuccessful: true,
	}})
	assert.Equal(t, "scraped text", cleanedText(state))
}

func TestStateDigestMarksFailedStages(t *testing.T) {
	state := models.NewLeadState(models.Lead{LeadID: "l"})
	state.SetOutput(models.StageOutput{StageName: NameAnalysis, Payload: models.AnalysisOutput{Sector: "retail"}})
	state.SetOutput(models.StageOutput{StageName: NamePainPointDeepening, Payload: models.PainOutput{}, ErrorMessage: "llm down"})

	digest := stateDigest(state, NameAnalysis, NamePainPointDeepening, NameLeadQualification)
	assert.Contains(t, digest, "## "+NameAnalysis)
	assert.Contains(t, digest, "retail")
	assert.Contains(t, digest, "produced a default")
	assert.NotContains(t, digest, NameLeadQualification)
}
