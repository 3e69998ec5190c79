// Package query synthesizes the harvest search query from the business
// context: an LLM primary path with a deterministic keyword fallback, so a
// query always exists even when the model is down.
package query

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Nellia-dev/prospector/pkg/llm"
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// FallbackQuery is the static last resort when no keywords can be extracted.
const FallbackQuery = "growing companies seeking business solutions"

const maxKeywords = 10

const synthesisTemplate = `Write one short web search query to find companies matching this prospecting profile.

Business: {{.business}}
Product/service: {{.product}}
Ideal customer: {{.ideal_customer}}
Industry focus: {{.industries}}
Location: {{.location}}

Respond with the query only: a single line, no quotes, no explanation.`

// stopwords dropped during fallback keyword extraction, on top of the
// length cutoff.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "and": {}, "or": {}, "of": {}, "for": {},
	"to": {}, "with": {}, "in": {}, "on": {}, "at": {},
}

// Synthesizer produces the harvest query. A nil gateway skips the LLM path.
type Synthesizer struct {
	gateway *llm.Gateway
	logger  *slog.Logger
}

// NewSynthesizer creates a synthesizer around the shared gateway.
func NewSynthesizer(gateway *llm.Gateway, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{gateway: gateway, logger: logger}
}

// Synthesize returns the search query for a business context. A user-supplied
// override wins outright; otherwise the LLM path runs with the deterministic
// fallback behind it. Never returns an empty string.
func (s *Synthesizer) Synthesize(ctx context.Context, bc models.BusinessContext) string {
	if q := strings.TrimSpace(bc.UserSearchQuery); q != "" {
		return q
	}
	if s.gateway != nil {
		if q := s.generate(ctx, bc); q != "" {
			return q
		}
	}
	return Fallback(bc)
}

func (s *Synthesizer) generate(ctx context.Context, bc models.BusinessContext) string {
	prompt, err := stage.RenderPrompt("query_synthesis", synthesisTemplate, []stage.Var{
		{Name: "business", Value: bc.BusinessDescription, Budget: 2000},
		{Name: "product", Value: bc.ProductServiceDescription, Budget: 2000},
		{Name: "ideal_customer", Value: bc.IdealCustomer, Budget: 1000},
		{Name: "industries", Value: strings.Join(bc.IndustryFocus, ", "), Budget: 500},
		{Name: "location", Value: bc.Location, Budget: 200},
	}, 0)
	if err != nil {
		return ""
	}
	resp, err := s.gateway.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("query synthesis LLM call failed, using fallback", "error", err)
		return ""
	}
	// The model is asked for a single line; take the first non-empty one.
	for _, line := range strings.Split(resp.Content, "\n") {
		if q := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), `"`)); q != "" {
			return q
		}
	}
	return ""
}

// Fallback deterministically extracts keywords from the context fields in
// priority order, dropping short tokens and stopwords, deduplicating while
// preserving order, capped at ten tokens.
func Fallback(bc models.BusinessContext) string {
	sources := make([]string, 0, len(bc.IndustryFocus)+4)
	sources = append(sources, bc.IndustryFocus...)
	sources = append(sources, bc.ProductServiceDescription, bc.IdealCustomer, bc.Location)
	if len(bc.PainPoints) > 0 {
		sources = append(sources, bc.PainPoints[0])
	}
	sources = append(sources, bc.UserSearchQuery)

	seen := make(map[string]struct{})
	var keywords []string
	for _, src := range sources {
		for _, tok := range strings.Fields(src) {
			tok = strings.ToLower(strings.Trim(tok, ".,;:!?()[]{}\"'"))
			if len(tok) <= 3 {
				continue
			}
			if _, drop := stopwords[tok]; drop {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			keywords = append(keywords, tok)
			if len(keywords) == maxKeywords {
				return strings.Join(keywords, " ")
			}
		}
	}
	if len(keywords) == 0 {
		return FallbackQuery
	}
	return strings.Join(keywords, " ")
}
