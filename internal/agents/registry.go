// Package agents provides the multi-agent generation pipeline for
// SiteForge: a fixed-order sequence of specialized agents that turn a
// business description into a generated website, tracked by a session
// state machine and broadcast to subscribers step by step.
package agents

import (
	"fmt"
	"time"

	"siteforge/pkg/models"
)

// AgentType identifies one phase of the generation pipeline.
type AgentType string

const (
	AgentPlanner    AgentType = "planner"
	AgentDesigner   AgentType = "designer"
	AgentBuilder    AgentType = "builder"
	AgentIntegrator AgentType = "integrator"
	AgentTesting    AgentType = "testing"
)

// AgentDescriptor describes one registry entry: the agent's type, its
// human-facing name, and its simulated execution duration. Durations
// stand in for real model-inference latency and are configurable.
type AgentDescriptor struct {
	Type     AgentType     `json:"type"`
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Registry is the static ordered list of agents the orchestrator runs.
type Registry struct {
	agents []AgentDescriptor
}

// NewRegistry returns the five-agent registry in execution order with
// the default simulated durations.
func NewRegistry() *Registry {
	return &Registry{agents: []AgentDescriptor{
		{Type: AgentPlanner, Name: "Project Planner", Duration: 2000 * time.Millisecond},
		{Type: AgentDesigner, Name: "UI Designer", Duration: 3000 * time.Millisecond},
		{Type: AgentBuilder, Name: "Site Builder", Duration: 4000 * time.Millisecond},
		{Type: AgentIntegrator, Name: "Integration Engineer", Duration: 2000 * time.Millisecond},
		{Type: AgentTesting, Name: "QA Tester", Duration: 1500 * time.Millisecond},
	}}
}

// WithDurations overrides the simulated duration per agent type and
// returns the registry for chaining. Unknown types are ignored.
func (r *Registry) WithDurations(overrides map[AgentType]time.Duration) *Registry {
	for i := range r.agents {
		if d, ok := overrides[r.agents[i].Type]; ok {
			r.agents[i].Duration = d
		}
	}
	return r
}

// ScaleDurations multiplies every duration by factor. Used to speed the
// pipeline up in development and tests.
func (r *Registry) ScaleDurations(factor float64) *Registry {
	for i := range r.agents {
		r.agents[i].Duration = time.Duration(float64(r.agents[i].Duration) * factor)
	}
	return r
}

// Agents returns the descriptors in execution order.
func (r *Registry) Agents() []AgentDescriptor {
	out := make([]AgentDescriptor, len(r.agents))
	copy(out, r.agents)
	return out
}

// Len returns the number of agents in the pipeline.
func (r *Registry) Len() int {
	return len(r.agents)
}

// PlanFor returns the narrative plan text an agent announces for a
// project before it starts working.
func (r *Registry) PlanFor(agentType AgentType, project *models.Project) string {
	siteType := project.WebsiteType
	if siteType == "" {
		siteType = "business"
	}

	switch agentType {
	case AgentPlanner:
		return fmt.Sprintf("Analyze the requirements for %q and draft the sitemap and page structure for a %s website: %s",
			project.BusinessName, siteType, project.Prompt)
	case AgentDesigner:
		return fmt.Sprintf("Create the visual identity for %q: color palette, typography, and layout system suited to a %s site",
			project.BusinessName, siteType)
	case AgentBuilder:
		return fmt.Sprintf("Build the HTML structure and CSS styling for %q based on the approved design", project.BusinessName)
	case AgentIntegrator:
		return fmt.Sprintf("Wire up navigation, forms, and third-party integrations for the %s site", siteType)
	case AgentTesting:
		return fmt.Sprintf("Run accessibility, responsiveness, and markup validation checks for %q", project.BusinessName)
	default:
		return fmt.Sprintf("Work on %q", project.BusinessName)
	}
}

// ResultFor returns the fixed-shape result payload an agent produces on
// completion. Shapes are stable per agent type so the dashboard can
// render them without schema negotiation.
func (r *Registry) ResultFor(agentType AgentType) map[string]any {
	switch agentType {
	case AgentPlanner:
		return map[string]any{
			"architecture": "single-page",
			"components":   []string{"header", "hero", "features", "footer"},
		}
	case AgentDesigner:
		return map[string]any{
			"theme":  "modern",
			"colors": []string{"#667eea", "#764ba2", "#1a202c", "#ffffff"},
		}
	case AgentBuilder:
		return map[string]any{
			"pages":    1,
			"sections": []string{"header", "hero", "features", "footer"},
		}
	case AgentIntegrator:
		return map[string]any{
			"integrations": []string{"navigation", "contact_form"},
		}
	case AgentTesting:
		return map[string]any{
			"all_tests_passed": true,
			"recommendations":  []string{"Add real content", "Connect a custom domain"},
		}
	default:
		return map[string]any{}
	}
}
