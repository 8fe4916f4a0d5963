package agents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"siteforge/internal/assembler"
	"siteforge/internal/metrics"
	"siteforge/pkg/models"

	"go.uber.org/zap"
)

// ErrNotCancellable is returned when cancelling a session with no
// in-flight orchestration.
var ErrNotCancellable = errors.New("no active orchestration for session")

// Artifact is the generated website returned to the caller.
type Artifact struct {
	HTML       string             `json:"html"`
	CSS        string             `json:"css"`
	Components []models.Component `json:"components"`
}

// Orchestrator drives a generation session through every agent in the
// registry, strictly in order, with no parallelism and no per-agent
// retry. Each step mutates the session through the store so every
// sub-step is broadcast.
type Orchestrator struct {
	registry *Registry
	store    *SessionStore
	log      *zap.Logger

	// agentTimeout bounds a single agent step when > 0. Off by default:
	// the simulated agents cannot hang, real model calls can.
	agentTimeout time.Duration

	mu     sync.Mutex
	active map[string]context.CancelFunc

	// runAgent performs one agent's work and returns its result payload.
	// The default implementation waits the descriptor's simulated
	// duration and returns the registry's canned result; swapping it for
	// a real model call changes nothing about the session contract.
	runAgent func(ctx context.Context, agent AgentDescriptor, project *models.Project) (map[string]any, error)
}

// NewOrchestrator creates an orchestrator over the given registry and
// session store.
func NewOrchestrator(registry *Registry, store *SessionStore, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		registry: registry,
		store:    store,
		log:      log,
		active:   make(map[string]context.CancelFunc),
	}
	o.runAgent = o.simulateAgent
	return o
}

// SetAgentTimeout bounds each agent step. Zero disables the bound.
func (o *Orchestrator) SetAgentTimeout(d time.Duration) {
	o.agentTimeout = d
}

// Execute runs every agent against the session in registry order and
// assembles the final artifact. Re-invoking on a terminal session is
// rejected. Any agent failure aborts the loop, leaves already-completed
// plans completed, marks the session failed, and propagates the error.
func (o *Orchestrator) Execute(ctx context.Context, sessionID string, project *models.Project) (*Artifact, error) {
	session, ok := o.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrSessionTerminal, session.Status)
	}

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.active[sessionID] = cancel
	o.mu.Unlock()
	defer func() {
		cancel()
		o.mu.Lock()
		delete(o.active, sessionID)
		o.mu.Unlock()
	}()

	metrics.Get().ActiveSessions.Inc()
	defer metrics.Get().ActiveSessions.Dec()

	started := time.Now()
	agents := o.registry.Agents()
	total := len(agents)

	for i, agent := range agents {
		plan := o.registry.PlanFor(agent.Type, project)
		if err := o.store.StartAgent(sessionID, agent, i, total, plan); err != nil {
			return nil, err
		}

		result, err := o.runStep(ctx, agent, project)
		if err != nil {
			metrics.Get().AgentStepsTotal.WithLabelValues(string(agent.Type), "failed").Inc()
			stepErr := fmt.Errorf("agent %s failed: %w", agent.Type, err)
			o.log.Error("generation aborted",
				zap.String("session_id", sessionID),
				zap.String("agent", string(agent.Type)),
				zap.Error(err))
			if failErr := o.store.Fail(sessionID, stepErr.Error()); failErr != nil {
				o.log.Warn("failed to mark session failed", zap.Error(failErr))
			}
			return nil, stepErr
		}

		if err := o.store.CompleteAgent(sessionID, agent.Type, result); err != nil {
			return nil, err
		}
		metrics.Get().AgentStepsTotal.WithLabelValues(string(agent.Type), "completed").Inc()
	}

	// Assembly runs exactly once, on project metadata only; the agent
	// result payloads feed the session log, not the artifact.
	artifact := &Artifact{
		HTML:       assembler.RenderHTML(project),
		CSS:        assembler.RenderCSS(project),
		Components: assembler.Components(project),
	}

	if err := o.store.Complete(sessionID); err != nil {
		return nil, err
	}

	metrics.Get().GenerationDuration.Observe(time.Since(started).Seconds())
	o.log.Info("generation completed",
		zap.String("session_id", sessionID),
		zap.Uint("project_id", project.ID),
		zap.Duration("duration", time.Since(started)))
	return artifact, nil
}

// Cancel aborts an in-flight orchestration. The running step observes
// the cancellation at its next wait point and the session transitions
// to failed with the cancellation recorded.
func (o *Orchestrator) Cancel(sessionID string) error {
	o.mu.Lock()
	cancel, ok := o.active[sessionID]
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCancellable, sessionID)
	}
	cancel()
	return nil
}

// runStep executes one agent with the per-step timeout applied.
func (o *Orchestrator) runStep(ctx context.Context, agent AgentDescriptor, project *models.Project) (map[string]any, error) {
	if o.agentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.agentTimeout)
		defer cancel()
	}
	return o.runAgent(ctx, agent, project)
}

// simulateAgent is the default agent runner: wait out the simulated
// inference latency, then return the canned result payload.
func (o *Orchestrator) simulateAgent(ctx context.Context, agent AgentDescriptor, _ *models.Project) (map[string]any, error) {
	timer := time.NewTimer(agent.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return o.registry.ResultFor(agent.Type), nil
}
