package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"siteforge/internal/assembler"
	"siteforge/internal/generator"
	"siteforge/internal/middleware"
	"siteforge/internal/tokens"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GenerateRequest is the body of POST /api/generate. Prompt is decoded
// as json.RawMessage so a non-string prompt is rejected as a
// validation error rather than a bind error.
type GenerateRequest struct {
	Prompt        json.RawMessage `json:"prompt"`
	BusinessName  string          `json:"businessName"`
	WebsiteType   string          `json:"websiteType"`
	Name          string          `json:"name"`
	Screenshot    bool            `json:"screenshot"`
	Collaborative bool            `json:"collaborative"`
}

const (
	maxPromptLen       = 1000
	maxBusinessNameLen = 100
)

// validateGenerateRequest applies the request rules in order and
// returns the decoded prompt. The first violation wins; nothing
// downstream (ledger, orchestrator) runs on failure.
func validateGenerateRequest(req *GenerateRequest) (string, error) {
	if len(req.Prompt) == 0 || string(req.Prompt) == "null" {
		return "", errors.New("prompt is required")
	}
	var prompt string
	if err := json.Unmarshal(req.Prompt, &prompt); err != nil {
		return "", errors.New("prompt must be a string")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt is required")
	}
	if len(prompt) > maxPromptLen {
		return "", fmt.Errorf("prompt must be %d characters or fewer", maxPromptLen)
	}
	if len(req.BusinessName) > maxBusinessNameLen {
		return "", fmt.Errorf("businessName must be %d characters or fewer", maxBusinessNameLen)
	}
	if req.WebsiteType != "" && !assembler.IsValidWebsiteType(req.WebsiteType) {
		return "", fmt.Errorf("websiteType must be one of: %s", strings.Join(assembler.WebsiteTypes, ", "))
	}
	return prompt, nil
}

// sanitize strips the literal < and > characters before interpolation
// into generated markup. Deliberately not full HTML escaping: ampersands
// and quotes pass through verbatim.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "<", "")
	return strings.ReplaceAll(s, ">", "")
}

// Generate handles POST /api/generate: validate, authorize tokens, run
// the agent pipeline, and return the assembled site.
func (h *Handler) Generate(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	prompt, err := validateGenerateRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Generator.Generate(c.Request.Context(), generator.Request{
		UserID:       userID,
		Name:         sanitize(req.Name),
		BusinessName: sanitize(req.BusinessName),
		WebsiteType:  req.WebsiteType,
		Prompt:       sanitize(prompt),
		Options: tokens.CostOptions{
			UseScreenshot: req.Screenshot,
			Collaborative: req.Collaborative,
		},
	})
	if err != nil {
		if errors.Is(err, tokens.ErrInsufficientTokens) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient tokens"})
			return
		}
		h.Log.Error("generation failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate website"})
		return
	}

	resp := gin.H{
		"success":      true,
		"html":         result.Artifact.HTML,
		"businessName": result.Project.BusinessName,
		"generatedAt":  time.Now().UTC().Format(time.RFC3339),
		"projectId":    result.Project.ID,
		"sessionId":    result.Session.ID,
		"tokenCost":    result.TokenCost,
	}
	// Omitted entirely when the caller never supplied one.
	if req.WebsiteType != "" {
		resp["websiteType"] = result.Project.WebsiteType
	}
	if result.Headline != "" {
		resp["headline"] = result.Headline
	}
	c.JSON(http.StatusOK, resp)
}

// EstimateCost handles POST /api/generate/estimate: returns the token
// cost of a prospective generation without running it.
func (h *Handler) EstimateCost(c *gin.Context) {
	var req struct {
		Prompt        string `json:"prompt" binding:"required"`
		Screenshot    bool   `json:"screenshot"`
		Collaborative bool   `json:"collaborative"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	cost := tokens.EstimateCost(req.Prompt, tokens.CostOptions{
		UseScreenshot: req.Screenshot,
		Collaborative: req.Collaborative,
	})
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    gin.H{"cost": cost},
	})
}
