package stages

import (
	"fmt"

	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// valuePropsStage crafts 2-3 value propositions customized to the lead's
// pains and buying triggers.
type valuePropsStage struct{ meta }

const valuePropsTemplate = `Write customized value propositions for the prospect {{.company_name}}.

Prospect analysis:
{{.analysis}}

Identified pains:
{{.pains}}

Buying triggers:
{{.triggers}}

Our product/service: {{.product}}
Our ideal customer profile: {{.persona}}

Respond with a single JSON object, no prose, no code fences:
{
  "value_propositions": [
    {
      "title": "short title",
      "detailed_proposition": "the proposition in 2-3 sentences",
      "key_benefits": ["benefit"],
      "target_pain_or_trigger": "the pain or trigger this targets",
      "evidence_suggestion": "what proof point to bring"
    }
  ]
}
Produce 2 or 3 propositions, each targeting a different pain or trigger.`

func (s *valuePropsStage) Template() string { return valuePropsTemplate }

func (s *valuePropsStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "company_name", Value: state.Lead.CompanyName, Budget: 200},
		{Name: "analysis", Value: jsonVar(payloadOf[models.AnalysisOutput](state, NameAnalysis)), Budget: budgetAnalysis},
		{Name: "pains", Value: jsonVar(payloadOf[models.PainOutput](state, NamePainPointDeepening)), Budget: budgetPains},
		{Name: "triggers", Value: jsonVar(payloadOf[models.TriggersOutput](state, NameBuyingTriggers)), Budget: budgetEnrichment},
		{Name: "product", Value: ec.Business.ProductServiceDescription, Budget: budgetProduct},
		{Name: "persona", Value: ec.Business.PersonaProfile(), Budget: budgetPersona},
	}
}

func (s *valuePropsStage) Decode(content string) (any, error) {
	out, err := decodeInto[models.ValuePropsOutput](content)
	if err != nil {
		return nil, err
	}
	if len(out.Propositions) == 0 {
		return nil, fmt.Errorf("no value propositions returned")
	}
	return out, nil
}

func (s *valuePropsStage) Default(*models.LeadState) any {
	return models.ValuePropsOutput{Propositions: []models.ValueProposition{}}
}
