package stages

import (
	"fmt"

	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// detailedPlanStage expands the synthesized action plan into a concrete
// contact sequence.
type detailedPlanStage struct{ meta }

const detailedPlanTemplate = `Expand the chosen action plan into a detailed contact sequence for this prospect.

Chosen plan:
{{.plan}}

Prospect analysis:
{{.analysis}}

Identified pains:
{{.pains}}

Our ideal customer profile: {{.persona}}

Respond with a single JSON object, no prose, no code fences:
{
  "main_objective": "the objective of the whole sequence",
  "elevator_pitch": "30-second pitch",
  "contact_sequence": [
    {
      "step_number": 1,
      "channel": "email|linkedin|phone|whatsapp",
      "objective": "objective of this step",
      "key_topics": ["topic"],
      "key_questions": ["question"],
      "cta": "the call to action",
      "supporting_material": "optional material to attach or reference"
    }
  ],
  "engagement_indicators": ["signal that the prospect is engaging"],
  "potential_obstacles": ["obstacle"],
  "success_next_steps": ["what to do once the sequence succeeds"]
}
Produce 3 or 4 sequence steps.`

func (s *detailedPlanStage) Template() string { return detailedPlanTemplate }

func (s *detailedPlanStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "plan", Value: jsonVar(payloadOf[models.ActionPlanOutput](state, NameToTSynthesize)), Budget: budgetPlan},
		{Name: "analysis", Value: jsonVar(payloadOf[models.AnalysisOutput](state, NameAnalysis)), Budget: budgetAnalysis},
		{Name: "pains", Value: jsonVar(payloadOf[models.PainOutput](state, NamePainPointDeepening)), Budget: budgetPains},
		{Name: "persona", Value: ec.Business.PersonaProfile(), Budget: budgetPersona},
	}
}

func (s *detailedPlanStage) Decode(content string) (any, error) {
	out, err := decodeInto[models.DetailedPlanOutput](content)
	if err != nil {
		return nil, err
	}
	if len(out.ContactSequence) == 0 {
		return nil, fmt.Errorf("empty contact_sequence")
	}
	return out, nil
}

func (s *detailedPlanStage) Default(*models.LeadState) any {
	return models.DetailedPlanOutput{
		MainObjective:        "establish first contact",
		ElevatorPitch:        "",
		ContactSequence:      []models.ContactStep{},
		EngagementIndicators: []string{},
		PotentialObstacles:   []string{},
		SuccessNextSteps:     []string{},
	}
}
