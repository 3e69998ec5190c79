// Package models defines the domain data model for the prospecting pipeline:
// jobs, business context, leads, per-lead state, stage outputs and the final
// prospect package. Types here are pure data: no I/O, no goroutines.
package models

import "time"

// BusinessContext is the user-supplied description of the business the
// pipeline prospects for. Immutable for the life of a job.
type BusinessContext struct {
	BusinessDescription       string   `json:"business_description,omitempty" yaml:"business_description,omitempty"`
	ProductServiceDescription string   `json:"product_service_description,omitempty" yaml:"product_service_description,omitempty"`
	ValueProposition          string   `json:"value_proposition,omitempty" yaml:"value_proposition,omitempty"`
	IdealCustomer             string   `json:"ideal_customer,omitempty" yaml:"ideal_customer,omitempty"`
	IndustryFocus             []string `json:"industry_focus,omitempty" yaml:"industry_focus,omitempty"`
	PainPoints                []string `json:"pain_points,omitempty" yaml:"pain_points,omitempty"`
	CompetitorsList           []string `json:"competitors_list,omitempty" yaml:"competitors_list,omitempty"`
	Location                  string   `json:"location,omitempty" yaml:"location,omitempty"`

	// UserSearchQuery overrides the synthesized search query when set.
	UserSearchQuery string `json:"user_search_query,omitempty" yaml:"user_search_query,omitempty"`
}

// PersonaProfile renders the ideal-customer description used by the
// persona-driven stages (pain points, qualification, messaging).
func (b BusinessContext) PersonaProfile() string {
	if b.IdealCustomer != "" {
		return b.IdealCustomer
	}
	return b.BusinessDescription
}

// Job is one pipeline invocation. Created by the orchestrator entry point;
// owns exactly one event stream.
type Job struct {
	JobID     string          `json:"job_id"`
	UserID    string          `json:"user_id"`
	Business  BusinessContext `json:"business_context"`
	MaxLeads  int             `json:"max_leads"`
	CreatedAt time.Time       `json:"created_at"`
}

// EnrichedContext is the immutable per-job snapshot of the business context
// plus the generated search query. Built once at job start, persisted through
// the store sidecar, and shared read-only across all lead workers. It seeds
// the job's RAG store.
type EnrichedContext struct {
	JobID       string          `json:"job_id"`
	UserID      string          `json:"user_id"`
	Business    BusinessContext `json:"business_context"`
	SearchQuery string          `json:"search_query"`
	CreatedAt   string          `json:"created_at"` // RFC3339Nano UTC
}

// SeedText renders the context as a single document for RAG seeding.
// Sections are separated by blank lines so the chunker splits on them.
func (e EnrichedContext) SeedText() string {
	sections := []struct{ label, text string }{
		{"Business", e.Business.BusinessDescription},
		{"Product/Service", e.Business.ProductServiceDescription},
		{"Value proposition", e.Business.ValueProposition},
		{"Ideal customer", e.Business.IdealCustomer},
		{"Location", e.Business.Location},
		{"Search query", e.SearchQuery},
	}
	out := ""
	for _, s := range sections {
		if s.text == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += s.label + ": " + s.text
	}
	for _, p := range e.Business.PainPoints {
		if out != "" {
			out += "\n\n"
		}
		out += "Pain point: " + p
	}
	for _, f := range e.Business.IndustryFocus {
		if out != "" {
			out += "\n\n"
		}
		out += "Industry focus: " + f
	}
	return out
}
