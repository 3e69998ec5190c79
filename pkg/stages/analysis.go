package stages

import (
	"fmt"

	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// analysisStage is the first LLM read of the company: sector, services,
// challenges, and a relevance score against the user's business context.
type analysisStage struct{ meta }

const analysisTemplate = `You are a B2B sales analyst. Analyze this prospect company for the business described below.

Our business: {{.business}}
Our product/service: {{.product}}

Prospect company: {{.company_name}}
Website content:
{{.website_text}}

Respond with a single JSON object, no prose, no code fences:
{
  "sector": "the company's sector",
  "main_services": ["service 1", "service 2"],
  "recent_activities": ["activity 1"],
  "potential_challenges": ["challenge 1"],
  "company_size_estimate": "e.g. 10-50 employees",
  "company_culture": "one sentence",
  "relevance_score": 0.0,
  "general_diagnosis": "2-3 sentence diagnosis",
  "opportunity_fit": "how our offering could fit"
}
relevance_score is 0..1: how relevant this prospect is to our business.`

func (s *analysisStage) Template() string { return analysisTemplate }

func (s *analysisStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "business", Value: ec.Business.BusinessDescription, Budget: budgetProduct},
		{Name: "product", Value: ec.Business.ProductServiceDescription, Budget: budgetProduct},
		{Name: "company_name", Value: state.Lead.CompanyName, Budget: 200},
		{Name: "website_text", Value: cleanedText(state), Budget: budgetScrapedText},
	}
}

func (s *analysisStage) Decode(content string) (any, error) {
	out, err := decodeInto[models.AnalysisOutput](content)
	if err != nil {
		return nil, err
	}
	if out.RelevanceScore < 0 || out.RelevanceScore > 1 {
		return nil, fmt.Errorf("relevance_score %v out of range [0,1]", out.RelevanceScore)
	}
	return out, nil
}

func (s *analysisStage) Default(*models.LeadState) any {
	return models.AnalysisOutput{
		Sector:              "unidentified",
		MainServices:        []string{},
		RecentActivities:    []string{},
		PotentialChallenges: []string{},
		CompanySizeEstimate: "unknown",
		GeneralDiagnosis:    "analysis unavailable",
		OpportunityFit:      "unknown",
	}
}
