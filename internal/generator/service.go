// Package generator exposes the end-to-end website generation flow:
// authorize the token cost, create the project and session records,
// drive the multi-agent orchestrator, persist the artifact, and debit
// the ledger.
package generator

import (
	"context"
	"errors"
	"fmt"

	"siteforge/internal/agents"
	"siteforge/internal/ai"
	"siteforge/internal/metrics"
	"siteforge/internal/tokens"
	"siteforge/pkg/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Request is one caller-initiated generation.
type Request struct {
	UserID       uint
	Name         string
	BusinessName string
	WebsiteType  string
	Prompt       string
	Options      tokens.CostOptions
	WorkspaceID  *uint
}

// Result is the completed generation returned to the caller.
type Result struct {
	Project   *models.Project            `json:"project"`
	Session   *models.GenerationSession  `json:"session"`
	Artifact  *agents.Artifact           `json:"artifact"`
	TokenCost int64                      `json:"token_cost"`

	// Headline is supplementary LLM copywriting; empty when no content
	// client is configured or the call failed (non-fatal either way).
	Headline string `json:"headline,omitempty"`
}

// Service wires the ledger, session store, and orchestrator into the
// single entry point handlers call.
type Service struct {
	db         *gorm.DB
	ledger     *tokens.Ledger
	store      *agents.SessionStore
	orch       *agents.Orchestrator
	copywriter *ai.Copywriter
	log        *zap.Logger
}

// NewService creates a generation service. copywriter may be nil.
func NewService(db *gorm.DB, ledger *tokens.Ledger, store *agents.SessionStore, orch *agents.Orchestrator, copywriter *ai.Copywriter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:         db,
		ledger:     ledger,
		store:      store,
		orch:       orch,
		copywriter: copywriter,
		log:        log,
	}
}

// Store exposes the session store for status/listing endpoints.
func (s *Service) Store() *agents.SessionStore {
	return s.store
}

// Orchestrator exposes the orchestrator for the cancel endpoint.
func (s *Service) Orchestrator() *agents.Orchestrator {
	return s.orch
}

// Generate runs one generation request end to end. Authorization is
// evaluated before any session or project row is created: a rejected
// request leaves no partial state behind. The debit lands only after
// the orchestrator succeeds; a failed debit is logged and swallowed
// (the generation already happened, punishing the user helps nobody).
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	cost := tokens.EstimateCost(req.Prompt, req.Options)

	if err := s.ledger.Authorize(ctx, req.UserID, cost); err != nil {
		if errors.Is(err, tokens.ErrInsufficientTokens) {
			metrics.Get().AuthorizationsDenied.Inc()
		}
		return nil, err
	}

	session := s.store.Create(req.UserID, map[string]any{
		"business_name": req.BusinessName,
		"website_type":  req.WebsiteType,
		"prompt":        req.Prompt,
		"options":       req.Options,
	})

	name := req.Name
	if name == "" {
		name = req.BusinessName
	}
	if name == "" {
		name = "Untitled Website"
	}
	project := &models.Project{
		OwnerID:      req.UserID,
		Name:         name,
		BusinessName: req.BusinessName,
		WebsiteType:  req.WebsiteType,
		Prompt:       req.Prompt,
		WorkspaceID:  req.WorkspaceID,
		Version:      1,
	}
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		_ = s.store.Fail(session.ID, "failed to create project record")
		return nil, fmt.Errorf("create project: %w", err)
	}
	if err := s.store.AttachProject(session.ID, project.ID); err != nil {
		return nil, err
	}

	artifact, err := s.orch.Execute(ctx, session.ID, project)
	if err != nil {
		metrics.Get().GenerationsTotal.WithLabelValues("failed").Inc()
		finished, _ := s.store.Get(session.ID)
		return &Result{Project: project, Session: finished, TokenCost: cost},
			fmt.Errorf("generation failed: %w", err)
	}

	project.GeneratedHTML = artifact.HTML
	project.GeneratedCSS = artifact.CSS
	project.Components = artifact.Components
	project.TokenCost = cost
	if err := s.db.WithContext(ctx).Save(project).Error; err != nil {
		s.log.Error("failed to persist generated artifact",
			zap.Uint("project_id", project.ID), zap.Error(err))
	}

	if err := s.ledger.Debit(ctx, req.UserID, cost); err != nil {
		metrics.Get().DebitFailuresTotal.Inc()
		s.log.Error("token debit failed after successful generation",
			zap.Uint("user_id", req.UserID),
			zap.Int64("amount", cost),
			zap.Error(err))
	} else {
		metrics.Get().TokensDebitedTotal.Add(float64(cost))
	}

	metrics.Get().GenerationsTotal.WithLabelValues("completed").Inc()

	result := &Result{
		Project:   project,
		Artifact:  artifact,
		TokenCost: cost,
	}
	result.Session, _ = s.store.Get(session.ID)

	if s.copywriter != nil {
		headline, hErr := s.copywriter.Headline(ctx, project)
		if hErr != nil {
			s.log.Warn("supplementary headline generation failed", zap.Error(hErr))
		} else {
			result.Headline = headline
		}
	}

	return result, nil
}
