package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"siteforge/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBroadcaster captures emitted progress events.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []*ProgressEvent
}

func (b *recordingBroadcaster) BroadcastSession(_ string, event *ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

func newTestPipeline(t *testing.T) (*Orchestrator, *SessionStore, *recordingBroadcaster) {
	t.Helper()
	hub := &recordingBroadcaster{}
	store := NewSessionStore(nil, hub, nil)
	registry := NewRegistry().ScaleDurations(0.001) // 2-4ms per agent
	return NewOrchestrator(registry, store, nil), store, hub
}

func testProject() *models.Project {
	return &models.Project{
		ID:           42,
		BusinessName: "Test Co",
		WebsiteType:  "saas",
		Prompt:       "a project tracker for small teams",
	}
}

func TestExecuteSuccess(t *testing.T) {
	orch, store, hub := newTestPipeline(t)
	session := store.Create(1, nil)

	artifact, err := orch.Execute(context.Background(), session.ID, testProject())
	require.NoError(t, err)
	require.NotNil(t, artifact)

	assert.True(t, strings.HasPrefix(artifact.HTML, "<!DOCTYPE html>"))
	assert.NotEmpty(t, artifact.CSS)
	assert.Len(t, artifact.Components, 4)

	final, ok := store.Get(session.ID)
	require.True(t, ok)
	assert.Equal(t, models.SessionCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.NotNil(t, final.CompletedAt)
	assert.Empty(t, final.ErrorMessage)

	// Exactly five plans, all completed, in registry order.
	require.Len(t, final.Plans, 5)
	wantOrder := []string{"planner", "designer", "builder", "integrator", "testing"}
	for i, plan := range final.Plans {
		assert.Equal(t, wantOrder[i], plan.AgentType)
		assert.Equal(t, models.PlanCompleted, plan.Status)
		assert.Equal(t, 100, plan.Progress)
		assert.NotNil(t, plan.CompletedAt)
		assert.NotEmpty(t, plan.Result)
	}

	// Every sub-step was broadcast: created, 5x(started+completed), completed.
	types := hub.types()
	assert.Equal(t, EventSessionCreated, types[0])
	assert.Equal(t, EventSessionCompleted, types[len(types)-1])
	started, completed := 0, 0
	for _, typ := range types {
		switch typ {
		case EventAgentStarted:
			started++
		case EventAgentCompleted:
			completed++
		}
	}
	assert.Equal(t, 5, started)
	assert.Equal(t, 5, completed)
}

func TestExecuteProgressReflectsStartedAgent(t *testing.T) {
	orch, store, _ := newTestPipeline(t)
	session := store.Create(1, nil)

	var progress []int
	orch.runAgent = func(_ context.Context, _ AgentDescriptor, _ *models.Project) (map[string]any, error) {
		current, _ := store.Get(session.ID)
		progress = append(progress, current.Progress)
		return map[string]any{}, nil
	}

	_, err := orch.Execute(context.Background(), session.ID, testProject())
	require.NoError(t, err)

	// floor(index/total*100) for index 0..4 of 5.
	assert.Equal(t, []int{0, 20, 40, 60, 80}, progress)
}

func TestExecuteFailureAtThirdAgent(t *testing.T) {
	orch, store, _ := newTestPipeline(t)
	session := store.Create(1, nil)

	calls := 0
	orch.runAgent = func(_ context.Context, agent AgentDescriptor, _ *models.Project) (map[string]any, error) {
		calls++
		if calls == 3 {
			return nil, errors.New("model timeout")
		}
		return map[string]any{"ok": true}, nil
	}

	_, err := orch.Execute(context.Background(), session.ID, testProject())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "builder")
	assert.Equal(t, 3, calls, "agents 4 and 5 must never run")

	final, ok := store.Get(session.ID)
	require.True(t, ok)
	assert.Equal(t, models.SessionFailed, final.Status)
	assert.NotEmpty(t, final.ErrorMessage)

	// Exactly the two finished plans survive; nothing for agents 3-5.
	require.Len(t, final.Plans, 2)
	assert.Equal(t, "planner", final.Plans[0].AgentType)
	assert.Equal(t, "designer", final.Plans[1].AgentType)
	for _, plan := range final.Plans {
		assert.Equal(t, models.PlanCompleted, plan.Status)
	}
}

func TestExecuteRejectsTerminalSession(t *testing.T) {
	orch, store, _ := newTestPipeline(t)
	session := store.Create(1, nil)

	_, err := orch.Execute(context.Background(), session.ID, testProject())
	require.NoError(t, err)

	_, err = orch.Execute(context.Background(), session.ID, testProject())
	assert.ErrorIs(t, err, ErrSessionTerminal)

	// Failed sessions are terminal too.
	failed := store.Create(1, nil)
	require.NoError(t, store.Fail(failed.ID, "boom"))
	_, err = orch.Execute(context.Background(), failed.ID, testProject())
	assert.ErrorIs(t, err, ErrSessionTerminal)
}

func TestExecuteUnknownSession(t *testing.T) {
	orch, _, _ := newTestPipeline(t)
	_, err := orch.Execute(context.Background(), "no-such-session", testProject())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCancelAbortsRunningStep(t *testing.T) {
	hub := &recordingBroadcaster{}
	store := NewSessionStore(nil, hub, nil)
	// Long durations so the cancel lands mid-step.
	registry := NewRegistry().WithDurations(map[AgentType]time.Duration{
		AgentPlanner:    10 * time.Second,
		AgentDesigner:   10 * time.Second,
		AgentBuilder:    10 * time.Second,
		AgentIntegrator: 10 * time.Second,
		AgentTesting:    10 * time.Second,
	})
	orch := NewOrchestrator(registry, store, nil)
	session := store.Create(1, nil)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Execute(context.Background(), session.ID, testProject())
		done <- err
	}()

	// Wait until the orchestration registers as cancellable.
	require.Eventually(t, func() bool {
		return orch.Cancel(session.ID) == nil
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not abort the run")
	}

	final, _ := store.Get(session.ID)
	assert.Equal(t, models.SessionFailed, final.Status)
	assert.NotEmpty(t, final.ErrorMessage)
}

func TestCancelWithoutActiveRun(t *testing.T) {
	orch, store, _ := newTestPipeline(t)
	session := store.Create(1, nil)
	assert.ErrorIs(t, orch.Cancel(session.ID), ErrNotCancellable)
}

func TestAgentTimeoutFailsStep(t *testing.T) {
	hub := &recordingBroadcaster{}
	store := NewSessionStore(nil, hub, nil)
	registry := NewRegistry() // full-length durations
	orch := NewOrchestrator(registry, store, nil)
	orch.SetAgentTimeout(5 * time.Millisecond)
	session := store.Create(1, nil)

	_, err := orch.Execute(context.Background(), session.ID, testProject())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	final, _ := store.Get(session.ID)
	assert.Equal(t, models.SessionFailed, final.Status)
}

func TestSessionStoreSnapshots(t *testing.T) {
	store := NewSessionStore(nil, nil, nil)
	session := store.Create(7, map[string]any{"prompt": "hello"})

	snap, ok := store.Get(session.ID)
	require.True(t, ok)
	snap.Status = models.SessionFailed
	snap.SessionData["prompt"] = "mutated"

	fresh, _ := store.Get(session.ID)
	assert.Equal(t, models.SessionActive, fresh.Status)
	assert.Equal(t, "hello", fresh.SessionData["prompt"])
}

func TestSessionStoreListByUser(t *testing.T) {
	store := NewSessionStore(nil, nil, nil)
	store.Create(1, nil)
	store.Create(1, nil)
	store.Create(2, nil)

	assert.Len(t, store.List(1), 2)
	assert.Len(t, store.List(2), 1)
	assert.Empty(t, store.List(3))
}
