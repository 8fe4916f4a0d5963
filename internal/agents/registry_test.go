package agents

import (
	"testing"
	"time"

	"siteforge/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryOrderAndDurations(t *testing.T) {
	r := NewRegistry()
	agents := r.Agents()
	require.Len(t, agents, 5)

	wantOrder := []AgentType{AgentPlanner, AgentDesigner, AgentBuilder, AgentIntegrator, AgentTesting}
	wantDurations := []time.Duration{2 * time.Second, 3 * time.Second, 4 * time.Second, 2 * time.Second, 1500 * time.Millisecond}
	for i, agent := range agents {
		assert.Equal(t, wantOrder[i], agent.Type)
		assert.Equal(t, wantDurations[i], agent.Duration)
		assert.NotEmpty(t, agent.Name)
	}
}

func TestRegistryAgentsReturnsCopy(t *testing.T) {
	r := NewRegistry()
	agents := r.Agents()
	agents[0].Duration = 0

	assert.Equal(t, 2*time.Second, r.Agents()[0].Duration)
}

func TestRegistryScaleDurations(t *testing.T) {
	r := NewRegistry().ScaleDurations(0.01)
	assert.Equal(t, 20*time.Millisecond, r.Agents()[0].Duration)
	assert.Equal(t, 15*time.Millisecond, r.Agents()[4].Duration)
}

func TestRegistryWithDurations(t *testing.T) {
	r := NewRegistry().WithDurations(map[AgentType]time.Duration{
		AgentBuilder: time.Millisecond,
	})
	agents := r.Agents()
	assert.Equal(t, time.Millisecond, agents[2].Duration)
	assert.Equal(t, 2*time.Second, agents[0].Duration)
}

func TestPlanForInterpolatesProjectFields(t *testing.T) {
	project := &models.Project{
		BusinessName: "Aurora Coffee",
		WebsiteType:  "restaurant",
		Prompt:       "a cozy coffee shop in Portland",
	}
	r := NewRegistry()

	plan := r.PlanFor(AgentPlanner, project)
	assert.Contains(t, plan, "Aurora Coffee")
	assert.Contains(t, plan, "restaurant")
	assert.Contains(t, plan, "a cozy coffee shop in Portland")

	// Empty website type falls back to generic business copy.
	plan = r.PlanFor(AgentDesigner, &models.Project{BusinessName: "Acme"})
	assert.Contains(t, plan, "business")
}

func TestResultForShapes(t *testing.T) {
	r := NewRegistry()

	planner := r.ResultFor(AgentPlanner)
	assert.Contains(t, planner, "architecture")
	assert.Contains(t, planner, "components")

	designer := r.ResultFor(AgentDesigner)
	assert.Contains(t, designer, "theme")
	assert.Contains(t, designer, "colors")

	testing_ := r.ResultFor(AgentTesting)
	assert.Equal(t, true, testing_["all_tests_passed"])
	assert.Contains(t, testing_, "recommendations")
}
