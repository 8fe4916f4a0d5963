package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"siteforge/internal/middleware"
	"siteforge/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GetProjects returns the authenticated user's projects, newest first.
func (h *Handler) GetProjects(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "User not authenticated",
			Code:    "NOT_AUTHENTICATED",
		})
		return
	}

	page, limit := parsePaginationParams(c)

	var total int64
	h.DB.Model(&models.Project{}).Where("owner_id = ?", userID).Count(&total)

	var projects []models.Project
	result := h.DB.Where("owner_id = ?", userID).
		Order("updated_at DESC").
		Scopes(paginate(page, limit)).
		Find(&projects)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to fetch projects",
			Code:    "DATABASE_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects":   projects,
		"pagination": getPaginationInfo(page, limit, total),
	})
}

// GetProject returns one project owned by the authenticated user,
// including generated HTML/CSS and components.
func (h *Handler) GetProject(c *gin.Context) {
	project, ok := h.loadOwnedProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: project})
}

// UpdateProject updates mutable project metadata and bumps the version.
func (h *Handler) UpdateProject(c *gin.Context) {
	project, ok := h.loadOwnedProject(c)
	if !ok {
		return
	}

	var req struct {
		Name         *string `json:"name" binding:"omitempty,min=1,max=100"`
		BusinessName *string `json:"businessName" binding:"omitempty,max=100"`
		Description  *string `json:"description" binding:"omitempty,max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Invalid request format",
			Code:    "INVALID_REQUEST",
		})
		return
	}

	updates := map[string]any{"version": gorm.Expr("version + 1")}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.BusinessName != nil {
		updates["business_name"] = *req.BusinessName
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}

	if err := h.DB.Model(project).Updates(updates).Error; err != nil {
		h.Log.Error("project update failed", zap.Uint("project_id", project.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to update project",
			Code:    "DATABASE_ERROR",
		})
		return
	}

	h.DB.First(project, project.ID)
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: project})
}

// DeleteProject soft-deletes a project.
func (h *Handler) DeleteProject(c *gin.Context) {
	project, ok := h.loadOwnedProject(c)
	if !ok {
		return
	}

	if err := h.DB.Delete(project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to delete project",
			Code:    "DATABASE_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Message: "Project deleted",
	})
}

// PublishProject marks a generated project as live and assigns its
// public URL. Publishing an ungenerated project is rejected.
func (h *Handler) PublishProject(c *gin.Context) {
	project, ok := h.loadOwnedProject(c)
	if !ok {
		return
	}

	if project.GeneratedHTML == "" {
		c.JSON(http.StatusConflict, StandardResponse{
			Success: false,
			Error:   "Project has no generated site to publish",
			Code:    "NOT_GENERATED",
		})
		return
	}

	updates := map[string]any{
		"is_published": true,
		"live_url":     fmt.Sprintf("https://sites.siteforge.dev/%d", project.ID),
		"version":      gorm.Expr("version + 1"),
	}
	if err := h.DB.Model(project).Updates(updates).Error; err != nil {
		h.Log.Error("publish failed", zap.Uint("project_id", project.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to publish project",
			Code:    "DATABASE_ERROR",
		})
		return
	}

	h.DB.First(project, project.ID)
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: project})
}

// UnpublishProject takes a published project offline.
func (h *Handler) UnpublishProject(c *gin.Context) {
	project, ok := h.loadOwnedProject(c)
	if !ok {
		return
	}

	updates := map[string]any{
		"is_published": false,
		"live_url":     "",
		"version":      gorm.Expr("version + 1"),
	}
	if err := h.DB.Model(project).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to unpublish project",
			Code:    "DATABASE_ERROR",
		})
		return
	}

	h.DB.First(project, project.ID)
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: project})
}

// PreviewProject serves the generated HTML directly, for iframe
// previews and published sites.
func (h *Handler) PreviewProject(c *gin.Context) {
	project, ok := h.loadOwnedProject(c)
	if !ok {
		return
	}
	if project.GeneratedHTML == "" {
		c.JSON(http.StatusNotFound, StandardResponse{
			Success: false,
			Error:   "Project has no generated site",
			Code:    "NOT_GENERATED",
		})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(project.GeneratedHTML))
}

// loadOwnedProject resolves the :id path param to a project owned by
// the caller, writing the error response itself on failure.
func (h *Handler) loadOwnedProject(c *gin.Context) (*models.Project, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "User not authenticated",
			Code:    "NOT_AUTHENTICATED",
		})
		return nil, false
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Invalid project ID",
			Code:    "INVALID_ID",
		})
		return nil, false
	}

	var project models.Project
	err = h.DB.Where("id = ? AND owner_id = ?", id, userID).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, StandardResponse{
			Success: false,
			Error:   "Project not found",
			Code:    "NOT_FOUND",
		})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to fetch project",
			Code:    "DATABASE_ERROR",
		})
		return nil, false
	}
	return &project, true
}
