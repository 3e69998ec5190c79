package stages

import (
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// contactStage extracts contact points from the scraped website text.
type contactStage struct{ meta }

const contactTemplate = `Extract contact information for the company {{.company_name}} from its website text.

Website content:
{{.website_text}}

Respond with a single JSON object, no prose, no code fences:
{
  "emails": ["found email addresses"],
  "phones": ["found phone numbers"],
  "social_profiles": ["found social media profile URLs or handles"],
  "search_suggestions": ["queries that could locate missing contact info"],
  "confidence": 0.0
}
Only include contact points literally present in the text. confidence is 0..1.`

func (s *contactStage) Template() string { return contactTemplate }

func (s *contactStage) Vars(state *models.LeadState, _ models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "company_name", Value: state.Lead.CompanyName, Budget: 200},
		{Name: "website_text", Value: cleanedText(state), Budget: budgetScrapedText},
	}
}

func (s *contactStage) Decode(content string) (any, error) {
	return decodeInto[models.ContactOutput](content)
}

func (s *contactStage) Default(*models.LeadState) any {
	return models.ContactOutput{
		Emails:            []string{},
		Phones:            []string{},
		SocialProfiles:    []string{},
		SearchSuggestions: []string{},
	}
}
