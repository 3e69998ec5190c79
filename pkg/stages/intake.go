package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/stage"
)

// intakeStage is the only non-LLM initial stage: it canonicalizes the lead's
// website URL and scrapes it through the tool layer. It always yields an
// IntakeOutput; a scrape failure downgrades to the default (the lead's
// initial description) without skipping downstream stages.
type intakeStage struct{ meta }

func (s *intakeStage) Template() string { return "" }

func (s *intakeStage) Vars(*models.LeadState, models.EnrichedContext) []stage.Var { return nil }

func (s *intakeStage) Decode(string) (any, error) { return nil, nil }

func (s *intakeStage) Default(state *models.LeadState) any {
	return models.IntakeOutput{
		CleanedText:          state.Lead.Description,
		ExtractionSuccessful: false,
		SourceURL:            state.Lead.WebsiteURL,
	}
}

func (s *intakeStage) RunDirect(ctx context.Context, env *stage.Env, state *models.LeadState, _ models.EnrichedContext) (any, stage.DirectUsage, error) {
	url := canonicalURL(state.Lead.WebsiteURL)
	if url == "" {
		return nil, stage.DirectUsage{}, fmt.Errorf("lead %s has no website URL", state.Lead.LeadID)
	}

	_ = env.ToolStart(ctx, s.name, "website_scrape", map[string]any{"url": url})
	result, err := env.Scraper.Scrape(ctx, url)
	if err != nil {
		_ = env.ToolEnd(ctx, s.name, "website_scrape", false, err.Error())
		return nil, stage.DirectUsage{}, fmt.Errorf("scrape of %s failed: %w", url, err)
	}
	_ = env.ToolOutput(ctx, s.name, "website_scrape", result.TextContent)
	_ = env.ToolEnd(ctx, s.name, "website_scrape", true, "")

	return models.IntakeOutput{
		CleanedText:          result.TextContent,
		ExtractionSuccessful: true,
		SourceURL:            url,
		StatusMessage:        result.StatusMessage,
	}, stage.DirectUsage{}, nil
}

// canonicalURL normalizes a raw website value into something fetchable.
func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}
