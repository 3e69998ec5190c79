package stages

import (
	"fmt"

	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// qualificationStage buckets the lead into a tier with a confidence score.
type qualificationStage struct{ meta }

const qualificationTemplate = `Qualify this B2B prospect for outreach.

Prospect analysis:
{{.analysis}}

Identified pains:
{{.pains}}

Our ideal customer profile: {{.persona}}

Respond with a single JSON object, no prose, no code fences:
{
  "qualification_tier": "high|medium|low|not_qualified",
  "confidence_score": 0.0,
  "justification": "why this tier",
  "positive_signals": ["signal"],
  "risks": ["risk"],
  "next_steps": ["step"]
}
confidence_score is 0..1.`

func (s *qualificationStage) Template() string { return qualificationTemplate }

func (s *qualificationStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "analysis", Value: jsonVar(payloadOf[models.AnalysisOutput](state, NameAnalysis)), Budget: budgetAnalysis},
		{Name: "pains", Value: jsonVar(payloadOf[models.PainOutput](state, NamePainPointDeepening)), Budget: budgetPains},
		{Name: "persona", Value: ec.Business.PersonaProfile(), Budget: budgetPersona},
	}
}

func (s *qualificationStage) Decode(content string) (any, error) {
	out, err := decodeInto[models.QualificationOutput](content)
	if err != nil {
		return nil, err
	}
	switch out.Tier {
	case models.TierHigh, models.TierMedium, models.TierLow, models.TierNotQualified:
	default:
		return nil, fmt.Errorf("unknown qualification_tier %q", out.Tier)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return nil, fmt.Errorf("confidence_score %v out of range [0,1]", out.Confidence)
	}
	return out, nil
}

func (s *qualificationStage) Default(*models.LeadState) any {
	return models.QualificationOutput{
		Tier:            models.TierNotQualified,
		Confidence:      0.0,
		Justification:   "qualification unavailable",
		PositiveSignals: []string{},
		Risks:           []string{},
		NextSteps:       []string{},
	}
}
