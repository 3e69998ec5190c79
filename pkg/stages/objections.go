package stages

import (
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// objectionsStage anticipates 3-5 objections against the detailed plan.
type objectionsStage struct{ meta }

const objectionsTemplate = `Anticipate the objections {{.company_name}} is likely to raise against this outreach plan.

The plan:
{{.plan}}

Our product/service: {{.product}}
Our ideal customer profile: {{.persona}}

Respond with a single JSON object, no prose, no code fences:
{
  "objections": [
    {
      "category": "e.g. price, timing, trust, status quo",
      "statement": "the objection as the prospect would voice it",
      "response_strategy": "how to respond",
      "talking_points": ["point"]
    }
  ],
  "general_advice": "overall advice for handling pushback"
}
Produce 3 to 5 objections.`

func (s *objectionsStage) Template() string { return objectionsTemplate }

func (s *objectionsStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "company_name", Value: state.Lead.CompanyName, Budget: 200},
		{Name: "plan", Value: jsonVar(payloadOf[models.DetailedPlanOutput](state, NameDetailedPlan)), Budget: budgetPlan},
		{Name: "product", Value: ec.Business.ProductServiceDescription, Budget: budgetProduct},
		{Name: "persona", Value: ec.Business.PersonaProfile(), Budget: budgetPersona},
	}
}

func (s *objectionsStage) Decode(content string) (any, error) {
	return decodeInto[models.ObjectionsOutput](content)
}

func (s *objectionsStage) Default(*models.LeadState) any {
	return models.ObjectionsOutput{Objections: []models.Objection{}}
}
