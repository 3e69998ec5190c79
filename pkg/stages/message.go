package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// messageStage crafts the outreach message. It always runs and always emits
// its event pair: when no contact channel exists the output downgrades to
// channel "none" with the reason in error_message, it is never skipped.
type messageStage struct{ meta }

const messageTemplate = `Write the first outreach message to {{.company_name}}.

The action plan:
{{.plan}}

Value propositions:
{{.value_props}}

Available contact points:
{{.contacts}}

Research notes on the prospect:
{{.research}}

Our product/service: {{.product}}
Our ideal customer profile: {{.persona}}

Respond with a single JSON object, no prose, no code fences:
{
  "channel": "email|linkedin|phone|whatsapp",
  "subject": "subject line, only when channel is email",
  "body": "the full message body",
  "call_to_action": "the specific ask",
  "personalization_elements": ["which prospect-specific facts the message uses"]
}
Pick the channel from the available contact points and the plan's primary channel.`

func (s *messageStage) Template() string { return messageTemplate }

func (s *messageStage) Vars(state *models.LeadState, ec models.EnrichedContext) []stage.Var {
	return []stage.Var{
		{Name: "company_name", Value: state.Lead.CompanyName, Budget: 200},
		{Name: "plan", Value: jsonVar(payloadOf[models.DetailedPlanOutput](state, NameDetailedPlan)), Budget: budgetPlan},
		{Name: "value_props", Value: jsonVar(payloadOf[models.ValuePropsOutput](state, NameValuePropositions)), Budget: budgetValueProps},
		{Name: "contacts", Value: jsonVar(payloadOf[models.ContactOutput](state, NameContactExtraction)), Budget: budgetContacts},
		{Name: "product", Value: ec.Business.ProductServiceDescription, Budget: budgetProduct},
		{Name: "persona", Value: ec.Business.PersonaProfile(), Budget: budgetPersona},
	}
}

func (s *messageStage) Decode(content string) (any, error) {
	out, err := decodeInto[models.MessageOutput](content)
	if err != nil {
		return nil, err
	}
	switch out.Channel {
	case "email", "linkedin", "phone", "whatsapp":
	default:
		return nil, fmt.Errorf("unknown channel %q", out.Channel)
	}
	if out.Body == "" {
		return nil, fmt.Errorf("empty message body")
	}
	return out, nil
}

func (s *messageStage) Default(*models.LeadState) any {
	return models.MessageOutput{
		Channel:                 "none",
		PersonalizationElements: []string{},
	}
}

// RunDirect short-circuits the LLM call when the lead has no contact channel
// at all; the runner then records the default output with the reason.
func (s *messageStage) RunDirect(ctx context.Context, env *stage.Env, state *models.LeadState, ec models.EnrichedContext) (any, stage.DirectUsage, error) {
	contacts := payloadOf[models.ContactOutput](state, NameContactExtraction)
	if len(contacts.Emails) == 0 && len(contacts.Phones) == 0 && len(contacts.SocialProfiles) == 0 {
		return nil, stage.DirectUsage{}, fmt.Errorf("no suitable contact channel found")
	}

	// Pull the job's research notes on this company for personalization.
	var research []string
	for _, r := range env.QueryRAG(ctx, s.name, state.Lead.CompanyName, 2) {
		research = append(research, r.Chunk)
	}
	vars := append(s.Vars(state, ec),
		stage.Var{Name: "research", Value: strings.Join(research, "\n"), Budget: budgetResearch})

	prompt, err := stage.RenderPrompt(s.name, s.Template(), vars, env.Config.LLMMaxPromptChars)
	if err != nil {
		return nil, stage.DirectUsage{}, err
	}
	resp, err := env.Gateway.Generate(ctx, prompt)
	if err != nil {
		return nil, stage.DirectUsage{LLMCalls: 1}, err
	}
	usage := stage.DirectUsage{PromptTokens: resp.TokensIn, CompletionTokens: resp.TokensOut, LLMCalls: 1}
	out, err := s.Decode(resp.Content)
	if err != nil {
		return nil, usage, err
	}
	return out, usage, nil
}
