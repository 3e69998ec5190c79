package models

// Stage payload schemas. One struct per stage in the catalog; each is the
// strict JSON shape the stage's LLM response must decode into, and the shape
// stored in StageOutput.Payload. Default instances (used when a stage fails)
// are built by the stages themselves.

// Urgency is the fixed urgency enum used at stage boundaries.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Valid reports whether u is one of the four known urgency levels.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// QualificationTier buckets a lead's fit.
type QualificationTier string

const (
	TierHigh         QualificationTier = "high"
	TierMedium       QualificationTier = "medium"
	TierLow          QualificationTier = "low"
	TierNotQualified QualificationTier = "not_qualified"
)

// IntakeOutput is produced by the intake stage (direct, no LLM): the cleaned
// website text and whether extraction succeeded.
type IntakeOutput struct {
	CleanedText          string `json:"cleaned_text"`
	ExtractionSuccessful bool   `json:"extraction_successful"`
	SourceURL            string `json:"source_url"`
	StatusMessage        string `json:"status_message,omitempty"`
}

// AnalysisOutput is the first LLM read of the company.
type AnalysisOutput struct {
	Sector              string   `json:"sector"`
	MainServices        []string `json:"main_services"`
	RecentActivities    []string `json:"recent_activities"`
	PotentialChallenges []string `json:"potential_challenges"`
	CompanySizeEstimate string   `json:"company_size_estimate"`
	CompanyCulture      string   `json:"company_culture"`
	RelevanceScore      float64  `json:"relevance_score"`
	GeneralDiagnosis    string   `json:"general_diagnosis"`
	OpportunityFit      string   `json:"opportunity_fit"`
}

// EnrichmentOutput is produced by tavily_enrichment from external search.
type EnrichmentOutput struct {
	EnrichmentSummary string   `json:"enrichment_summary"`
	KeyFindings       []string `json:"key_findings"`
	APICalled         bool     `json:"api_called"`
	QueriesUsed       []string `json:"queries_used,omitempty"`
	Confidence        float64  `json:"confidence"`
}

// ContactOutput lists contact points found on the company's site.
type ContactOutput struct {
	Emails            []string `json:"emails"`
	Phones            []string `json:"phones"`
	SocialProfiles    []string `json:"social_profiles"`
	SearchSuggestions []string `json:"search_suggestions"`
	Confidence        float64  `json:"confidence"`
}

// PainPoint is one concrete pain with its business impact and how the
// product addresses it.
type PainPoint struct {
	Description string `json:"description"`
	Impact      string `json:"impact"`
	SolutionFit string `json:"solution_fit"`
}

// PainOutput deepens the pain-point analysis for the lead.
type PainOutput struct {
	PrimaryPainCategory    string      `json:"primary_pain_category"`
	DetailedPainPoints     []PainPoint `json:"detailed_pain_points"`
	UrgencyLevel           Urgency     `json:"urgency_level"`
	InvestigativeQuestions []string    `json:"investigative_questions"`
}

// QualificationOutput buckets the lead and explains why.
type QualificationOutput struct {
	Tier            QualificationTier `json:"qualification_tier"`
	Confidence      float64           `json:"confidence_score"`
	Justification   string            `json:"justification"`
	PositiveSignals []string          `json:"positive_signals"`
	Risks           []string          `json:"risks"`
	NextSteps       []string          `json:"next_steps"`
}

// Competitor is one identified competitor of the prospect.
type Competitor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
}

// CompetitorOutput lists competitors discovered in the lead's content.
type CompetitorOutput struct {
	Competitors []Competitor `json:"competitors"`
	OtherNotes  string       `json:"other_notes,omitempty"`
}

// StrategicQuestionsOutput holds 3–5 open-ended discovery questions.
type StrategicQuestionsOutput struct {
	Questions  []string          `json:"questions"`
	Categories map[string]string `json:"categories,omitempty"`
}

// BuyingTrigger is one observed signal that the lead may be ready to buy.
type BuyingTrigger struct {
	Description string `json:"description"`
	Relevance   string `json:"relevance"`
}

// TriggersOutput lists identified buying triggers.
type TriggersOutput struct {
	Triggers []BuyingTrigger `json:"identified_triggers"`
}

// Strategy is one Tree-of-Thought approach option.
type Strategy struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Hook            string   `json:"hook"`
	TalkingPoints   []string `json:"talking_points"`
	Channel         string   `json:"channel"`
	Tone            string   `json:"tone"`
	OpeningQuestion string   `json:"opening_question"`
}

// ToTGenerateOutput holds 3–4 distinct strategy options.
type ToTGenerateOutput struct {
	Strategies []Strategy `json:"strategies"`
}

// StrategyEvaluation grades one generated strategy.
type StrategyEvaluation struct {
	StrategyName    string   `json:"strategy_name"`
	Suitability     string   `json:"suitability"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Improvements    []string `json:"improvements"`
	ConfidenceLabel string   `json:"confidence_label"`
	Justification   string   `json:"justification"`
}

// ToTEvaluateOutput holds one evaluation per generated strategy.
type ToTEvaluateOutput struct {
	Evaluations []StrategyEvaluation `json:"evaluations"`
}

// ActionPlanOutput is the single synthesized plan chosen from the evaluated
// strategies (tot_synthesize).
type ActionPlanOutput struct {
	Name           string  `json:"name"`
	Summary        string  `json:"summary"`
	KeySteps       []string `json:"key_steps"`
	PrimaryChannel string  `json:"primary_channel"`
	Tone           string  `json:"tone"`
	MainValueProp  string  `json:"main_value_proposition"`
	Confidence     float64 `json:"confidence_score"`
	ExpectedImpact string  `json:"expected_impact"`
	Justification  string  `json:"justification"`
}

// ContactStep is one step of the detailed contact sequence.
type ContactStep struct {
	StepNumber         int      `json:"step_number"`
	Channel            string   `json:"channel"`
	Objective          string   `json:"objective"`
	KeyTopics          []string `json:"key_topics"`
	KeyQuestions       []string `json:"key_questions"`
	CTA                string   `json:"cta"`
	SupportingMaterial string   `json:"supporting_material,omitempty"`
}

// DetailedPlanOutput expands the chosen strategy into a contact sequence.
type DetailedPlanOutput struct {
	MainObjective        string        `json:"main_objective"`
	ElevatorPitch        string        `json:"elevator_pitch"`
	ContactSequence      []ContactStep `json:"contact_sequence"`
	EngagementIndicators []string      `json:"engagement_indicators"`
	PotentialObstacles   []string      `json:"potential_obstacles"`
	SuccessNextSteps     []string      `json:"success_next_steps"`
}

// Objection is one anticipated objection with its handling strategy.
type Objection struct {
	Category         string   `json:"category"`
	Statement        string   `json:"statement"`
	ResponseStrategy string   `json:"response_strategy"`
	TalkingPoints    []string `json:"talking_points"`
}

// ObjectionsOutput anticipates 3–5 objections.
type ObjectionsOutput struct {
	Objections    []Objection `json:"objections"`
	GeneralAdvice string      `json:"general_advice,omitempty"`
}

// ValueProposition is one customized value proposition for the lead.
type ValueProposition struct {
	Title               string   `json:"title"`
	Detail              string   `json:"detailed_proposition"`
	KeyBenefits         []string `json:"key_benefits"`
	TargetPainOrTrigger string   `json:"target_pain_or_trigger"`
	EvidenceSuggestion  string   `json:"evidence_suggestion,omitempty"`
}

// ValuePropsOutput holds 2–3 customized value propositions.
type ValuePropsOutput struct {
	Propositions []ValueProposition `json:"value_propositions"`
}

// MessageOutput is the crafted outreach message. Channel is "none" when no
// suitable contact channel was found (the stage still runs and emits events;
// the output carries the error message).
type MessageOutput struct {
	Channel                 string   `json:"channel"`
	Subject                 string   `json:"subject,omitempty"` // email only
	Body                    string   `json:"body"`
	CallToAction            string   `json:"call_to_action"`
	PersonalizationElements []string `json:"personalization_elements"`
}

// BriefingOutput is the internal sales briefing aggregated from everything.
type BriefingOutput struct {
	ExecutiveSummary   string   `json:"executive_summary"`
	ProfileHighlights  string   `json:"profile_highlights"`
	ApproachSummary    string   `json:"approach_summary"`
	EngagementOverview string   `json:"engagement_overview"`
	ObjectionsSummary  string   `json:"objections_summary"`
	TalkingPoints      []string `json:"talking_points"`
	NextSteps          []string `json:"next_steps"`
	FinalNotes         string   `json:"final_notes,omitempty"`
}
