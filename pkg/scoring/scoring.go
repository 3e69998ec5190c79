// Package scoring computes the three package scores as pure functions over a
// completed LeadState. The formulas are fixed contracts asserted numerically
// by tests; do not tune them casually.
package scoring

import (
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stages"
)

// Confidence scores how much of the package rests on solid stage results.
//
//	0.3 base
//	+ 0.2 × qualification confidence
//	+ min(0.15, 0.05 × |detailed pain points|)
//	+ 0.1 × contact extraction confidence
//	+ 0.10 if enrichment confidence > 0.5, else 0.05
//	+ 0.15 if the action plan synthesis succeeded, else 0.05
func Confidence(state *models.LeadState) float64 {
	qual, _ := models.Payload[models.QualificationOutput](state, stages.NameLeadQualification)
	pains, _ := models.Payload[models.PainOutput](state, stages.NamePainPointDeepening)
	contact, _ := models.Payload[models.ContactOutput](state, stages.NameContactExtraction)
	enrich, _ := models.Payload[models.EnrichmentOutput](state, stages.NameTavilyEnrichment)

	score := 0.3
	score += 0.2 * qual.Confidence
	score += minF(0.15, 0.05*float64(len(pains.DetailedPainPoints)))
	score += 0.1 * contact.Confidence
	if enrich.Confidence > 0.5 {
		score += 0.10
	} else {
		score += 0.05
	}
	if stageSucceeded(state, stages.NameToTSynthesize) {
		score += 0.15
	} else {
		score += 0.05
	}
	return clamp(score)
}

// ROIPotential scores the expected return of pursuing the lead.
//
//	0.4 × qualification confidence
//	+ 0.25 × urgency weight (low 0.1, medium 0.2, high 0.3, critical 0.4)
//	+ min(0.25, 0.10 × |valid value propositions|)
//	+ min(0.10, 0.05 × |identified triggers|)
func ROIPotential(state *models.LeadState) float64 {
	qual, _ := models.Payload[models.QualificationOutput](state, stages.NameLeadQualification)
	pains, _ := models.Payload[models.PainOutput](state, stages.NamePainPointDeepening)
	props, _ := models.Payload[models.ValuePropsOutput](state, stages.NameValuePropositions)
	triggers, _ := models.Payload[models.TriggersOutput](state, stages.NameBuyingTriggers)

	score := 0.4 * qual.Confidence
	score += 0.25 * urgencyWeight(pains.UrgencyLevel)
	score += minF(0.25, 0.10*float64(countValidProps(props)))
	score += minF(0.10, 0.05*float64(len(triggers.Triggers)))
	return clamp(score)
}

// EngagementInputs are the RAG-profile sub-scores feeding the engagement
// readiness score. Absent sub-scores substitute 0.5.
type EngagementInputs struct {
	ProspectScore float64
	UrgencyScore  float64
	PainAlignment float64
	BuyingIntent  float64
}

// DefaultEngagementInputs is the all-absent substitution.
func DefaultEngagementInputs() EngagementInputs {
	return EngagementInputs{
		ProspectScore: 0.5,
		UrgencyScore:  0.5,
		PainAlignment: 0.5,
		BuyingIntent:  0.5,
	}
}

// EngagementReadiness averages the four sub-scores at 0.25 weight each, with
// a 0.1 penalty for each of a failed personalized_message and a failed
// detailed_plan.
func EngagementReadiness(state *models.LeadState, in EngagementInputs) float64 {
	score := 0.25*in.ProspectScore + 0.25*in.UrgencyScore + 0.25*in.PainAlignment + 0.25*in.BuyingIntent
	if !stageSucceeded(state, stages.NamePersonalizedMessage) {
		score -= 0.1
	}
	if !stageSucceeded(state, stages.NameDetailedPlan) {
		score -= 0.1
	}
	return clamp(score)
}

func urgencyWeight(u models.Urgency) float64 {
	switch u {
	case models.UrgencyCritical:
		return 0.4
	case models.UrgencyHigh:
		return 0.3
	case models.UrgencyMedium:
		return 0.2
	default:
		return 0.1
	}
}

// countValidProps counts propositions with actual content.
func countValidProps(out models.ValuePropsOutput) int {
	n := 0
	for _, p := range out.Propositions {
		if p.Title != "" || p.Detail != "" {
			n++
		}
	}
	return n
}

func stageSucceeded(state *models.LeadState, name string) bool {
	out, ok := state.Output(name)
	return ok && !out.Failed()
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
