package stages

import (
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// competitorStage identifies competitors of the prospect from its website
// text and the user's known-competitor list.
type competitorStage struct{ meta }

const competitorTemplate = `Identify competitors of the company {{.company_name}}.

Website content:
{{.website_text}}

Our product/service (for context): {{.product}}
Competitors we already know about: {{.known_competitors}}

Respond with a single JSON object, no prose, no code fences:
{
  "competitors": [
    {"name": "...", "description": "...", "strengths": ["..."], "weaknesses": ["..."]}
  ],
  "other_notes": "anything relevant that does not fit above"
}
Only name competitors supported by the content or the known list.`

func (s *competitorStage) Template() string { return competitorTemplate }

func (s *competitorStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "company_name", Value: state.Lead.CompanyName, Budget: 200},
		{Name: "website_text", Value: cleanedText(state), Budget: budgetScrapedText},
		{Name: "product", Value: ec.Business.ProductServiceDescription, Budget: budgetProduct},
		{Name: "known_competitors", Value: jsonVar(ec.Business.CompetitorsList), Budget: budgetPersona},
	}
}

func (s *competitorStage) Decode(content string) (any, error) {
	return decodeInto[models.CompetitorOutput](content)
}

func (s *competitorStage) Default(*models.LeadState) any {
	return models.CompetitorOutput{Competitors: []models.Competitor{}}
}
