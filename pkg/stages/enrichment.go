package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// enrichmentStage (tavily_enrichment) issues up to the configured number of
// external search calls through the tool layer, then one LLM call that
// condenses the findings into an EnrichmentOutput.
type enrichmentStage struct{ meta }

const enrichmentTemplate = `You are enriching a B2B sales lead with fresh external intelligence.

Company: {{.company_name}}
Sector (from prior analysis): {{.sector}}

Search findings:
{{.findings}}

Summarize what these findings reveal about the company. Respond with a single JSON object, no prose, no code fences:
{
  "enrichment_summary": "2-4 sentence summary of the most relevant intelligence",
  "key_findings": ["finding 1", "finding 2"],
  "confidence": 0.0
}
confidence is your 0..1 estimate of how reliable these findings are for sales outreach.`

func (s *enrichmentStage) Template() string { return enrichmentTemplate }

func (s *enrichmentStage) Vars(*models.LeadState, models.EnrichedContext) []stage.Var { return nil }

func (s *enrichmentStage) Decode(content string) (any, error) {
	return decodeInto[models.EnrichmentOutput](content)
}

func (s *enrichmentStage) Default(*models.LeadState) any {
	return models.EnrichmentOutput{
		EnrichmentSummary: "",
		KeyFindings:       []string{},
		APICalled:         false,
	}
}

func (s *enrichmentStage) RunDirect(ctx context.Context, env *stage.Env, state *models.LeadState, _ models.EnrichedContext) (any, stage.DirectUsage, error) {
	analysis := payloadOf[models.AnalysisOutput](state, NameAnalysis)
	queries := s.queries(state.Lead, analysis, env.Config.TavilyQueriesPerLead)

	var snippets []string
	var used []string
	searchFailures := 0
	for _, q := range queries {
		_ = env.ToolStart(ctx, s.name, "tavily_search", map[string]any{"query": q})
		results, err := env.Searcher.Search(ctx, q, env.Config.SearchMaxResultsPerQuery)
		if err != nil {
			searchFailures++
			_ = env.ToolEnd(ctx, s.name, "tavily_search", false, err.Error())
			continue
		}
		used = append(used, q)
		for _, r := range results {
			snippets = append(snippets, fmt.Sprintf("- [%s](%s): %s", r.Title, r.URL, r.Snippet))
		}
		if len(results) > 0 {
			_ = env.ToolOutput(ctx, s.name, "tavily_search", results[0].Snippet)
		}
		_ = env.ToolEnd(ctx, s.name, "tavily_search", true, "")
	}

	if searchFailures == len(queries) {
		return nil, stage.DirectUsage{}, fmt.Errorf("all %d search queries failed", len(queries))
	}
	if len(snippets) == 0 {
		// Searches ran but found nothing; no point burning an LLM call.
		return models.EnrichmentOutput{
			EnrichmentSummary: "",
			KeyFindings:       []string{},
			APICalled:         true,
			QueriesUsed:       used,
		}, stage.DirectUsage{}, nil
	}

	prompt, err := stage.RenderPrompt(s.name, enrichmentTemplate, []stage.Var{
		{Name: "company_name", Value: state.Lead.CompanyName, Budget: 200},
		{Name: "sector", Value: analysis.Sector, Budget: 200},
		{Name: "findings", Value: strings.Join(snippets, "\n"), Budget: budgetEnrichment},
	}, env.Config.LLMMaxPromptChars)
	if err != nil {
		return nil, stage.DirectUsage{}, err
	}
	resp, err := env.Gateway.Generate(ctx, prompt)
	if err != nil {
		return nil, stage.DirectUsage{LLMCalls: 1}, err
	}
	usage := stage.DirectUsage{PromptTokens: resp.TokensIn, CompletionTokens: resp.TokensOut, LLMCalls: 1}

	out, err := decodeInto[models.EnrichmentOutput](resp.Content)
	if err != nil {
		return nil, usage, err
	}
	out.APICalled = true
	out.QueriesUsed = used
	return out, usage, nil
}

// queries builds the per-lead search query list, capped at max.
func (s *enrichmentStage) queries(lead models.Lead, analysis models.AnalysisOutput, max int) []string {
	candidates := []string{
		lead.CompanyName + " company news",
		lead.CompanyName + " " + analysis.Sector,
		lead.CompanyName + " funding hiring growth",
	}
	if analysis.Sector == "" {
		candidates[1] = lead.CompanyName + " products services"
	}
	if max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}
