// Package stages implements the fixed enrichment catalog: seventeen agents
// from intake through internal_briefing, each satisfying the stage contract.
// The catalog's names, categories, dependencies and execution orders are
// stable identifiers; changing one is a breaking change for every consumer
// of the event stream.
package stages

import (
	"encoding/json"

	"github.com/Nellia-dev/prospector/pkg/llm"
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// Stage names. These appear verbatim in agent_start/agent_end events and in
// the final package's stage_outputs map.
const (
	NameIntake                   = "intake"
	NameAnalysis                 = "analysis"
	NameTavilyEnrichment         = "tavily_enrichment"
	NameContactExtraction        = "contact_extraction"
	NamePainPointDeepening       = "pain_point_deepening"
	NameLeadQualification        = "lead_qualification"
	NameCompetitorIdentification = "competitor_identification"
	NameStrategicQuestions       = "strategic_questions"
	NameBuyingTriggers           = "buying_triggers"
	NameToTGenerate              = "tot_generate"
	NameToTEvaluate              = "tot_evaluate"
	NameToTSynthesize            = "tot_synthesize"
	NameDetailedPlan             = "detailed_plan"
	NameObjectionHandling        = "objection_handling"
	NameValuePropositions        = "value_propositions"
	NamePersonalizedMessage      = "personalized_message"
	NameInternalBriefing         = "internal_briefing"
)

// Per-variable character budgets. Declared here, not in the runner: each
// stage decides how much of each input it can afford under the global
// prompt ceiling.
const (
	budgetScrapedText = 30000
	budgetAnalysis    = 8000
	budgetPersona     = 2000
	budgetPains       = 6000
	budgetEnrichment  = 6000
	budgetProduct     = 3000
	budgetPlan        = 8000
	budgetContacts    = 2000
	budgetValueProps  = 6000
	budgetResearch    = 2000
	budgetDigest      = 20000
)

// meta carries the catalog identity of a stage; embedded by every stage type.
type meta struct {
	name     string
	category stage.Category
	deps     []string
	order    int
}

func (m meta) Name() string             { return m.name }
func (m meta) Category() stage.Category { return m.category }
func (m meta) DependsOn() []string      { return m.deps }
func (m meta) ExecutionOrder() int      { return m.order }

// NewCatalog builds the full validated stage registry.
func NewCatalog() (*stage.Registry, error) {
	reg := stage.NewRegistry()
	all := []stage.Stage{
		&intakeStage{meta{NameIntake, stage.CategoryInitial, nil, 1}},
		&analysisStage{meta{NameAnalysis, stage.CategoryInitial, []string{NameIntake}, 2}},
		&enrichmentStage{meta{NameTavilyEnrichment, stage.CategorySpecialized, []string{NameAnalysis}, 3}},
		&contactStage{meta{NameContactExtraction, stage.CategorySpecialized, []string{NameIntake, NameAnalysis}, 4}},
		&painStage{meta{NamePainPointDeepening, stage.CategorySpecialized, []string{NameAnalysis}, 5}},
		&qualificationStage{meta{NameLeadQualification, stage.CategorySpecialized, []string{NameAnalysis, NamePainPointDeepening}, 6}},
		&competitorStage{meta{NameCompetitorIdentification, stage.CategorySpecialized, []string{NameIntake, NameAnalysis}, 7}},
		&questionsStage{meta{NameStrategicQuestions, stage.CategorySpecialized, []string{NameAnalysis, NamePainPointDeepening}, 8}},
		&triggersStage{meta{NameBuyingTriggers, stage.CategorySpecialized, []string{NameAnalysis, NameTavilyEnrichment}, 9}},
		&totGenerateStage{meta{NameToTGenerate, stage.CategoryOrchestrator, []string{NameAnalysis, NamePainPointDeepening, NameLeadQualification}, 10}},
		&totEvaluateStage{meta{NameToTEvaluate, stage.CategoryOrchestrator, []string{NameToTGenerate}, 11}},
		&totSynthesizeStage{meta{NameToTSynthesize, stage.CategoryOrchestrator, []string{NameToTGenerate, NameToTEvaluate}, 12}},
		&detailedPlanStage{meta{NameDetailedPlan, stage.CategoryOrchestrator, []string{NameToTSynthesize, NamePainPointDeepening}, 13}},
		&objectionsStage{meta{NameObjectionHandling, stage.CategorySpecialized, []string{NameDetailedPlan}, 14}},
		&valuePropsStage{meta{NameValuePropositions, stage.CategorySpecialized, []string{NameAnalysis, NamePainPointDeepening, NameBuyingTriggers}, 15}},
		&messageStage{meta{NamePersonalizedMessage, stage.CategoryAlternative, []string{NameDetailedPlan, NameValuePropositions, NameContactExtraction}, 16}},
		&briefingStage{meta{NameInternalBriefing, stage.CategoryOrchestrator, allPriorStages(), 17}},
	}
	for _, s := range all {
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func allPriorStages() []string {
	return []string{
		NameIntake, NameAnalysis, NameTavilyEnrichment, NameContactExtraction,
		NamePainPointDeepening, NameLeadQualification, NameCompetitorIdentification,
		NameStrategicQuestions, NameBuyingTriggers, NameToTGenerate, NameToTEvaluate,
		NameToTSynthesize, NameDetailedPlan, NameObjectionHandling,
		NameValuePropositions, NamePersonalizedMessage,
	}
}

// decodeInto parses a model response into T via the salvaging JSON parser.
func decodeInto[T any](content string) (T, error) {
	var out T
	if err := llm.ParseJSON(content, &out); err != nil {
		return out, err
	}
	return out, nil
}

// payloadOf returns a stage's typed payload, or the zero value when the
// stage has not run or downgraded to an untyped default.
func payloadOf[T any](state *models.LeadState, name string) T {
	p, _ := models.Payload[T](state, name)
	return p
}

// jsonVar renders a payload as indented JSON for prompt embedding.
func jsonVar(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

// cleanedText returns the intake stage's text, falling back to the lead's
// initial description when extraction failed.
func cleanedText(state *models.LeadState) string {
	out := payloadOf[models.IntakeOutput](state, NameIntake)
	if out.ExtractionSuccessful && out.CleanedText != "" {
		return out.CleanedText
	}
	if out.CleanedText != "" {
		return out.CleanedText
	}
	return state.Lead.Description
}

// stateDigest renders the named stage outputs as a labeled document, used by
// the orchestrator-category stages that consume "everything so far".
func stateDigest(state *models.LeadState, names ...string) string {
	out := ""
	for _, name := range names {
		so, ok := state.Output(name)
		if !ok {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += "## " + name + "\n" + jsonVar(so.Payload)
		if so.ErrorMessage != "" {
			out += "\n(note: this stage failed and produced a default)"
		}
	}
	return out
}
