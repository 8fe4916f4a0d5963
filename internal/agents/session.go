package agents

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"siteforge/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionTerminal is returned when a mutation targets a session
	// that already completed or failed. Terminal states are final.
	ErrSessionTerminal = errors.New("session already in a terminal state")
)

// Progress event types broadcast to session subscribers.
const (
	EventSessionCreated   = "session:created"
	EventAgentStarted     = "agent:started"
	EventAgentCompleted   = "agent:completed"
	EventSessionCompleted = "session:completed"
	EventSessionFailed    = "session:failed"
)

// ProgressEvent is one broadcast update for a generation session. An
// event is emitted on every state mutation, not just on state-level
// transitions, so subscribers can re-render continuously.
type ProgressEvent struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Broadcaster delivers progress events to session subscribers.
type Broadcaster interface {
	BroadcastSession(sessionID string, event *ProgressEvent)
}

// SessionStore owns all active generation sessions. It is an explicit
// service object (session id -> record behind a lock) rather than
// process-global state; all mutation goes through its methods so every
// change is emitted and terminal sessions get persisted exactly once.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.GenerationSession

	db  *gorm.DB    // optional: terminal-state persistence
	hub Broadcaster // optional: progress broadcast
	log *zap.Logger
}

// NewSessionStore creates a session store. db and hub may be nil.
func NewSessionStore(db *gorm.DB, hub Broadcaster, log *zap.Logger) *SessionStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionStore{
		sessions: make(map[string]*models.GenerationSession),
		db:       db,
		hub:      hub,
		log:      log,
	}
}

// Create registers a new active session with progress 0 and a snapshot
// of the originating request.
func (s *SessionStore) Create(userID uint, snapshot map[string]any) *models.GenerationSession {
	now := time.Now().UTC()
	session := &models.GenerationSession{
		ID:          uuid.New().String(),
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      userID,
		Status:      models.SessionActive,
		Progress:    0,
		SessionData: snapshot,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.emit(session, EventSessionCreated, map[string]any{
		"status":   session.Status,
		"progress": session.Progress,
	})
	return session
}

// AttachProject links the session to its project record once the
// project row exists.
func (s *SessionStore) AttachProject(sessionID string, projectID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	session.ProjectID = projectID
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns a snapshot copy of the session. Callers never receive the
// live record; all mutation goes through store methods.
func (s *SessionStore) Get(sessionID string) (*models.GenerationSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return cloneSession(session), true
}

// List returns snapshots of all sessions owned by the user, newest first.
func (s *SessionStore) List(userID uint) []*models.GenerationSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.GenerationSession
	for _, session := range s.sessions {
		if session.UserID == userID {
			out = append(out, cloneSession(session))
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// StartAgent records step index of total beginning: the session's
// current agent, status message, and overall progress reflect the agent
// that just STARTED (floor(index/total*100), so the last agent's start
// never reads 100), and a new AgentPlan is appended in executing state.
func (s *SessionStore) StartAgent(sessionID string, agent AgentDescriptor, index, total int, plan string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if session.IsTerminal() {
		s.mu.Unlock()
		return ErrSessionTerminal
	}

	now := time.Now().UTC()
	session.CurrentAgent = string(agent.Type)
	session.CurrentMessage = fmt.Sprintf("%s is working on your website...", agent.Name)
	session.Progress = index * 100 / total
	session.UpdatedAt = now
	session.Plans = append(session.Plans, models.AgentPlan{
		ID:        uuid.New().String(),
		CreatedAt: now,
		SessionID: session.ID,
		AgentType: string(agent.Type),
		Plan:      plan,
		Status:    models.PlanExecuting,
		Progress:  0,
	})
	snapshot := cloneSession(session)
	s.mu.Unlock()

	s.emitSnapshot(snapshot, EventAgentStarted, map[string]any{
		"agent":    string(agent.Type),
		"message":  snapshot.CurrentMessage,
		"progress": snapshot.Progress,
		"plan":     plan,
	})
	return nil
}

// CompleteAgent marks the executing plan for agentType as completed
// with its result payload attached.
func (s *SessionStore) CompleteAgent(sessionID string, agentType AgentType, result map[string]any) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if session.IsTerminal() {
		s.mu.Unlock()
		return ErrSessionTerminal
	}

	now := time.Now().UTC()
	var plan *models.AgentPlan
	for i := range session.Plans {
		if session.Plans[i].AgentType == string(agentType) && session.Plans[i].Status == models.PlanExecuting {
			plan = &session.Plans[i]
			break
		}
	}
	if plan == nil {
		s.mu.Unlock()
		return fmt.Errorf("no executing plan for agent %s in session %s", agentType, sessionID)
	}

	plan.Status = models.PlanCompleted
	plan.Progress = 100
	plan.Result = result
	plan.CompletedAt = &now
	session.UpdatedAt = now
	snapshot := cloneSession(session)
	s.mu.Unlock()

	s.emitSnapshot(snapshot, EventAgentCompleted, map[string]any{
		"agent":  string(agentType),
		"result": result,
	})
	return nil
}

// Complete transitions the session to its completed terminal state,
// forcing progress to 100.
func (s *SessionStore) Complete(sessionID string) error {
	return s.finish(sessionID, models.SessionCompleted, "")
}

// Fail transitions the session to its failed terminal state with the
// captured error message. Already-completed plans are left completed;
// unexecuted agents get no plan record.
func (s *SessionStore) Fail(sessionID string, message string) error {
	if message == "" {
		message = "generation failed"
	}
	return s.finish(sessionID, models.SessionFailed, message)
}

func (s *SessionStore) finish(sessionID, status, errorMessage string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if session.IsTerminal() {
		s.mu.Unlock()
		return ErrSessionTerminal
	}

	now := time.Now().UTC()
	session.Status = status
	session.UpdatedAt = now
	session.CompletedAt = &now
	if status == models.SessionCompleted {
		session.Progress = 100
		session.CurrentMessage = "Your website is ready!"
	} else {
		session.ErrorMessage = errorMessage
		session.CurrentMessage = "Generation failed"
		// The failing agent's executing plan is dropped: a failed
		// session records only the work that actually finished.
		kept := session.Plans[:0]
		for _, plan := range session.Plans {
			if plan.Status == models.PlanCompleted {
				kept = append(kept, plan)
			}
		}
		session.Plans = kept
	}
	snapshot := cloneSession(session)
	s.mu.Unlock()

	s.persist(snapshot)

	event := EventSessionCompleted
	data := map[string]any{"status": status, "progress": snapshot.Progress}
	if status == models.SessionFailed {
		event = EventSessionFailed
		data["error"] = errorMessage
	}
	s.emitSnapshot(snapshot, event, data)
	return nil
}

// persist writes a terminal session (and its plans) to the database for
// dashboard history. Persistence failures are logged, never fatal.
func (s *SessionStore) persist(session *models.GenerationSession) {
	if s.db == nil {
		return
	}
	if err := s.db.Create(session).Error; err != nil {
		s.log.Warn("failed to persist terminal session",
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
}

func (s *SessionStore) emit(session *models.GenerationSession, eventType string, data map[string]any) {
	s.emitSnapshot(cloneSession(session), eventType, data)
}

func (s *SessionStore) emitSnapshot(snapshot *models.GenerationSession, eventType string, data map[string]any) {
	if s.hub == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["session"] = snapshot
	s.hub.BroadcastSession(snapshot.ID, &ProgressEvent{
		Type:      eventType,
		SessionID: snapshot.ID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func cloneSession(session *models.GenerationSession) *models.GenerationSession {
	out := *session
	out.Plans = make([]models.AgentPlan, len(session.Plans))
	copy(out.Plans, session.Plans)
	if session.SessionData != nil {
		out.SessionData = make(map[string]any, len(session.SessionData))
		for k, v := range session.SessionData {
			out.SessionData[k] = v
		}
	}
	return &out
}
