package stages

import (
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// briefingStage aggregates everything into the internal sales briefing. It is
// the terminal stage of the catalog.
type briefingStage struct{ meta }

const briefingTemplate = `Write the internal sales briefing for the prospect {{.company_name}}.

Everything produced for this prospect:
{{.digest}}

Our product/service: {{.product}}

Respond with a single JSON object, no prose, no code fences:
{
  "executive_summary": "3-4 sentences for a salesperson with no context",
  "profile_highlights": "the most important facts about the company",
  "approach_summary": "the chosen approach in brief",
  "engagement_overview": "how the contact sequence unfolds",
  "objections_summary": "the main objections and how to handle them",
  "talking_points": ["point the salesperson should make"],
  "next_steps": ["concrete next step"],
  "final_notes": "anything else worth knowing"
}`

func (s *briefingStage) Template() string { return briefingTemplate }

func (s *briefingStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "company_name", Value: state.Lead.CompanyName, Budget: 200},
		{Name: "digest", Value: stateDigest(state, allPriorStages()...), Budget: budgetDigest},
		{Name: "product", Value: ec.Business.ProductServiceDescription, Budget: budgetProduct},
	}
}

func (s *briefingStage) Decode(content string) (any, error) {
	return decodeInto[models.BriefingOutput](content)
}

func (s *briefingStage) Default(state *models.LeadState) any {
	return models.BriefingOutput{
		ExecutiveSummary:  "Briefing generation failed; see stage outputs for " + state.Lead.CompanyName + ".",
		ProfileHighlights: "",
		ApproachSummary:   "",
		TalkingPoints:     []string{},
		NextSteps:         []string{},
	}
}
