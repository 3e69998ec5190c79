package stages

import (
	"fmt"

	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// questionsStage produces 3-5 open-ended discovery questions for the lead.
type questionsStage struct{ meta }

const questionsTemplate = `Write open-ended discovery questions for a sales conversation with this prospect.

Prospect analysis:
{{.analysis}}

Identified pains:
{{.pains}}

Our ideal customer profile: {{.persona}}

Respond with a single JSON object, no prose, no code fences:
{
  "questions": ["3 to 5 open-ended questions"],
  "categories": {"question text": "category such as pain, budget, timeline, authority"}
}`

func (s *questionsStage) Template() string { return questionsTemplate }

func (s *questionsStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "analysis", Value: jsonVar(payloadOf[models.AnalysisOutput](state, NameAnalysis)), Budget: budgetAnalysis},
		{Name: "pains", Value: jsonVar(payloadOf[models.PainOutput](state, NamePainPointDeepening)), Budget: budgetPains},
		{Name: "persona", Value: ec.Business.PersonaProfile(), Budget: budgetPersona},
	}
}

func (s *questionsStage) Decode(content string) (any, error) {
	out, err := decodeInto[models.StrategicQuestionsOutput](content)
	if err != nil {
		return nil, err
	}
	if len(out.Questions) == 0 {
		return nil, fmt.Errorf("no questions returned")
	}
	return out, nil
}

func (s *questionsStage) Default(*models.LeadState) any {
	return models.StrategicQuestionsOutput{Questions: []string{}}
}
