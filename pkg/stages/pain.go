package stages

import (
	"fmt"

	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// painStage deepens the pain-point analysis for the lead against the user's
// persona profile.
type painStage struct{ meta }

const painTemplate = `You are diagnosing the business pains of a B2B prospect.

Prospect analysis:
{{.analysis}}

Our ideal customer profile: {{.persona}}
Known pains of our market: {{.market_pains}}

Respond with a single JSON object, no prose, no code fences:
{
  "primary_pain_category": "the dominant pain category",
  "detailed_pain_points": [
    {"description": "...", "impact": "business impact", "solution_fit": "how our offering addresses it"}
  ],
  "urgency_level": "low|medium|high|critical",
  "investigative_questions": ["question to validate the pain"]
}`

func (s *painStage) Template() string { return painTemplate }

func (s *painStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "analysis", Value: jsonVar(payloadOf[models.AnalysisOutput](state, NameAnalysis)), Budget: budgetAnalysis},
		{Name: "persona", Value: ec.Business.PersonaProfile(), Budget: budgetPersona},
		{Name: "market_pains", Value: jsonVar(ec.Business.PainPoints), Budget: budgetPersona},
	}
}

func (s *painStage) Decode(content string) (any, error) {
	out, err := decodeInto[models.PainOutput](content)
	if err != nil {
		return nil, err
	}
	if !out.UrgencyLevel.Valid() {
		return nil, fmt.Errorf("unknown urgency_level %q", out.UrgencyLevel)
	}
	return out, nil
}

func (s *painStage) Default(*models.LeadState) any {
	return models.PainOutput{
		PrimaryPainCategory:    "unknown",
		DetailedPainPoints:     []models.PainPoint{},
		UrgencyLevel:           models.UrgencyMedium,
		InvestigativeQuestions: []string{},
	}
}
