package stages

import (
	"fmt"

	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// The Tree-of-Thought trio: generate candidate approach strategies, evaluate
// each, then synthesize the single action plan the rest of the pipeline
// builds on.

type totGenerateStage struct{ meta }

const totGenerateTemplate = `Generate distinct outreach strategies for this B2B prospect.

Everything known about the prospect so far:
{{.digest}}

Our ideal customer profile: {{.persona}}

Respond with a single JSON object, no prose, no code fences:
{
  "strategies": [
    {
      "name": "short strategy name",
      "description": "the approach in 2-3 sentences",
      "hook": "the opening hook",
      "talking_points": ["point"],
      "channel": "email|linkedin|phone|whatsapp",
      "tone": "e.g. consultative, direct",
      "opening_question": "the first question to ask"
    }
  ]
}
Produce 3 or 4 genuinely different strategies.`

func (s *totGenerateStage) Template() string { return totGenerateTemplate }

func (s *totGenerateStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "digest", Value: stateDigest(state,
			NameAnalysis, NameTavilyEnrichment, NamePainPointDeepening,
			NameLeadQualification, NameBuyingTriggers), Budget: budgetDigest},
		{Name: "persona", Value: ec.Business.PersonaProfile(), Budget: budgetPersona},
	}
}

func (s *totGenerateStage) Decode(content string) (any, error) {
	out, err := decodeInto[models.ToTGenerateOutput](content)
	if err != nil {
		return nil, err
	}
	if len(out.Strategies) == 0 {
		return nil, fmt.Errorf("no strategies returned")
	}
	return out, nil
}

func (s *totGenerateStage) Default(*models.LeadState) any {
	return models.ToTGenerateOutput{Strategies: []models.Strategy{}}
}

type totEvaluateStage struct{ meta }

const totEvaluateTemplate = `Evaluate each proposed outreach strategy for this prospect.

Proposed strategies:
{{.strategies}}

Prospect context:
{{.digest}}

Respond with a single JSON object, no prose, no code fences:
{
  "evaluations": [
    {
      "strategy_name": "must match a proposed strategy name",
      "suitability": "how well it fits this prospect",
      "strengths": ["strength"],
      "weaknesses": ["weakness"],
      "improvements": ["suggested improvement"],
      "confidence_label": "high|medium|low",
      "justification": "why"
    }
  ]
}
Evaluate every strategy exactly once.`

func (s *totEvaluateStage) Template() string { return totEvaluateTemplate }

func (s *totEvaluateStage) Vars(state *models.LeadState, _ models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "strategies", Value: jsonVar(payloadOf[models.ToTGenerateOutput](state, NameToTGenerate)), Budget: budgetDigest},
		{Name: "digest", Value: stateDigest(state, NameAnalysis, NamePainPointDeepening, NameLeadQualification), Budget: budgetDigest},
	}
}

func (s *totEvaluateStage) Decode(content string) (any, error) {
	out, err := decodeInto[models.ToTEvaluateOutput](content)
	if err != nil {
		return nil, err
	}
	if len(out.Evaluations) == 0 {
		return nil, fmt.Errorf("no evaluations returned")
	}
	return out, nil
}

func (s *totEvaluateStage) Default(*models.LeadState) any {
	return models.ToTEvaluateOutput{Evaluations: []models.StrategyEvaluation{}}
}

type totSynthesizeStage struct{ meta }

const totSynthesizeTemplate = `Choose and synthesize the single best action plan from the evaluated strategies.

Proposed strategies:
{{.strategies}}

Evaluations:
{{.evaluations}}

Prospect context:
{{.digest}}

Respond with a single JSON object, no prose, no code fences:
{
  "name": "plan name",
  "summary": "the plan in 2-3 sentences",
  "key_steps": ["step"],
  "primary_channel": "email|linkedin|phone|whatsapp",
  "tone": "chosen tone",
  "main_value_proposition": "the central value proposition",
  "confidence_score": 0.0,
  "expected_impact": "expected business impact",
  "justification": "why this plan over the alternatives"
}
confidence_score is 0..1.`

func (s *totSynthesizeStage) Template() string { return totSynthesizeTemplate }

func (s *totSynthesizeStage) Vars(state *models.LeadState, _ models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "strategies", Value: jsonVar(payloadOf[models.ToTGenerateOutput](state, NameToTGenerate)), Budget: budgetDigest},
		{Name: "evaluations", Value: jsonVar(payloadOf[models.ToTEvaluateOutput](state, NameToTEvaluate)), Budget: budgetDigest},
		{Name: "digest", Value: stateDigest(state, NameAnalysis, NamePainPointDeepening), Budget: budgetDigest},
	}
}

func (s *totSynthesizeStage) Decode(content string) (any, error) {
	out, err := decodeInto[models.ActionPlanOutput](content)
	if err != nil {
		return nil, err
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return nil, fmt.Errorf("confidence_score %v out of range [0,1]", out.Confidence)
	}
	return out, nil
}

// Default is the minimal viable plan: a single-step email approach with a
// generic value proposition, so downstream planning still has something to
// expand.
func (s *totSynthesizeStage) Default(state *models.LeadState) any {
	return models.ActionPlanOutput{
		Name:           "minimal viable approach",
		Summary:        "Introduce the offering over email and ask for a short call.",
		KeySteps:       []string{"send introduction email", "follow up within a week"},
		PrimaryChannel: "email",
		Tone:           "consultative",
		MainValueProp:  "relevant efficiency gains for " + state.Lead.CompanyName,
		Confidence:     0.0,
		ExpectedImpact: "unknown",
		Justification:  "synthesis unavailable, fell back to minimal plan",
	}
}
