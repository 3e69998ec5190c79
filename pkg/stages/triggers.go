package stages

import (
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// triggersStage surfaces buying signals from the lead data and the external
// enrichment summary.
type triggersStage struct{ meta }

const triggersTemplate = `Identify buying triggers: signals that this prospect may be ready to buy.

Prospect analysis:
{{.analysis}}

External intelligence:
{{.enrichment}}

Our product/service: {{.product}}

Respond with a single JSON object, no prose, no code fences:
{
  "identified_triggers": [
    {"description": "the observed signal", "relevance": "why it matters for our offering"}
  ]
}
Only report triggers grounded in the inputs. An empty list is a valid answer.`

func (s *triggersStage) Template() string { return triggersTemplate }

func (s *triggersStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "analysis", Value: jsonVar(payloadOf[models.AnalysisOutput](state, NameAnalysis)), Budget: budgetAnalysis},
		{Name: "enrichment", Value: jsonVar(payloadOf[models.EnrichmentOutput](state, NameTavilyEnrichment)), Budget: budgetEnrichment},
		{Name: "product", Value: ec.Business.ProductServiceDescription, Budget: budgetProduct},
	}
}

func (s *triggersStage) Decode(content string) (any, error) {
	return decodeInto[models.TriggersOutput](content)
}

func (s *triggersStage) Default(*models.LeadState) any {
	return models.TriggersOutput{Triggers: []models.BuyingTrigger{}}
}
