package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user of the SiteForge platform
type User struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Basic user information
	Username     string `json:"username" gorm:"uniqueIndex;not null"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	FullName     string `json:"full_name"`
	AvatarURL    string `json:"avatar_url"`

	// Account status
	IsActive   bool `json:"is_active" gorm:"default:true"`
	IsVerified bool `json:"is_verified" gorm:"default:false"`

	// Subscription tier: free, pro, enterprise
	SubscriptionTier string    `json:"subscription_tier" gorm:"default:'free'"`
	SubscriptionEnd  time.Time `json:"subscription_end"`

	// Token quota (generation usage units, unrelated to LLM tokenization).
	// Invariant: TokenBalance never goes below zero.
	TokenBalance int64     `json:"token_balance" gorm:"default:150000"`
	LastReset    time.Time `json:"last_reset"`

	// Lifetime usage counters
	TotalGenerations int   `json:"total_generations" gorm:"default:0"`
	TotalTokensSpent int64 `json:"total_tokens_spent" gorm:"default:0"`

	// Relationships
	Projects   []Project   `json:"projects,omitempty" gorm:"foreignKey:OwnerID"`
	Workspaces []Workspace `json:"workspaces,omitempty" gorm:"foreignKey:OwnerID"`
}

// IsFreeTier returns true if the user is on the free plan and subject
// to the 24h balance refresh cycle.
func (u *User) IsFreeTier() bool {
	return u.SubscriptionTier == "" || u.SubscriptionTier == "free"
}

// Component is a structured piece of a generated site (type + props),
// stored as JSON on the owning project.
type Component struct {
	Type  string         `json:"type"`
	Props map[string]any `json:"props,omitempty"`
}

// Project represents one generated website
type Project struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	OwnerID uint `json:"owner_id" gorm:"not null;index"`
	Owner   User `json:"-" gorm:"foreignKey:OwnerID"`

	Name         string `json:"name" gorm:"not null"`
	Description  string `json:"description"`
	BusinessName string `json:"business_name"`
	WebsiteType  string `json:"website_type"` // portfolio, saas, restaurant, ecommerce, blog, business
	Prompt       string `json:"prompt" gorm:"type:text"`

	// Generated artifact. Empty until a generation session completes.
	GeneratedHTML string      `json:"generated_html" gorm:"type:text"`
	GeneratedCSS  string      `json:"generated_css" gorm:"type:text"`
	Components    []Component `json:"components" gorm:"serializer:json"`

	// Publication
	IsPublished bool   `json:"is_published" gorm:"default:false"`
	LiveURL     string `json:"live_url"`

	// Invariants: TokenCost >= 0, Version >= 1.
	TokenCost int64 `json:"token_cost" gorm:"default:0"`
	Version   int   `json:"version" gorm:"default:1"`

	WorkspaceID *uint `json:"workspace_id,omitempty"`
}

// Workspace groups projects for team accounts
type Workspace struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Name    string `json:"name" gorm:"not null"`
	OwnerID uint   `json:"owner_id" gorm:"not null;index"`

	Projects []Project `json:"projects,omitempty" gorm:"foreignKey:WorkspaceID"`
}

// GenerationSession status values
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
	SessionPaused    = "paused"
)

// GenerationSession tracks one generation request's progress across all
// agent phases. Active sessions live in memory; terminal sessions are
// persisted for the dashboard history.
type GenerationSession struct {
	ID        string    `json:"id" gorm:"primarykey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID uint `json:"project_id" gorm:"index"`
	UserID    uint `json:"user_id" gorm:"not null;index"`

	// active, completed, failed, paused. Terminal states (completed,
	// failed) are never left. paused exists in the schema but nothing
	// currently transitions into it.
	Status   string `json:"status" gorm:"default:'active';size:20"`
	Progress int    `json:"progress" gorm:"default:0"` // 0-100

	CurrentAgent   string `json:"current_agent" gorm:"size:30"`
	CurrentMessage string `json:"current_message"`

	Plans []AgentPlan `json:"plans" gorm:"foreignKey:SessionID"`

	// Snapshot of the original request
	SessionData map[string]any `json:"session_data" gorm:"serializer:json"`

	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// IsTerminal reports whether the session has reached a final state.
func (s *GenerationSession) IsTerminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionFailed
}

// AgentPlan status values
const (
	PlanPending   = "pending"
	PlanExecuting = "executing"
	PlanCompleted = "completed"
	PlanFailed    = "failed"
)

// AgentPlan is one agent phase's record within a session. Exactly one
// per agent type, appended in registry order. Status is monotonic:
// pending -> executing -> completed (or failed), never regresses.
type AgentPlan struct {
	ID        string    `json:"id" gorm:"primarykey;size:36"`
	CreatedAt time.Time `json:"created_at"`

	SessionID string `json:"session_id" gorm:"index;size:36"`

	AgentType string `json:"agent_type" gorm:"not null;size:30"`
	Plan      string `json:"plan" gorm:"type:text"`

	// pending, executing, completed, failed
	Status   string `json:"status" gorm:"default:'pending';size:20"`
	Progress int    `json:"progress" gorm:"default:0"`

	Result map[string]any `json:"result,omitempty" gorm:"serializer:json"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Template is a starter entry in the template gallery
type Template struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string `json:"name" gorm:"not null"`
	WebsiteType string `json:"website_type" gorm:"index"`
	Description string `json:"description"`
	PreviewURL  string `json:"preview_url"`
	Popular     bool   `json:"popular" gorm:"default:false"`
}

// CommunityProject is a published project surfaced in the community feed
type CommunityProject struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID uint    `json:"project_id" gorm:"uniqueIndex;not null"`
	Project   Project `json:"project" gorm:"foreignKey:ProjectID"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Likes       int    `json:"likes" gorm:"default:0"`
	Featured    bool   `json:"featured" gorm:"default:false"`
}

// TokenPurchase records a completed token pack purchase (Stripe)
type TokenPurchase struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	UserID          uint   `json:"user_id" gorm:"not null;index"`
	PackID          string `json:"pack_id" gorm:"size:40"`
	Tokens          int64  `json:"tokens"`
	AmountCents     int64  `json:"amount_cents"`
	StripeSessionID string `json:"stripe_session_id" gorm:"uniqueIndex;size:255"`
}
