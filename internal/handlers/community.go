package handlers

import (
	"errors"
	"net/http"

	"siteforge/internal/middleware"
	"siteforge/pkg/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetTemplates lists starter templates, optionally filtered by website
// type.
func (h *Handler) GetTemplates(c *gin.Context) {
	query := h.DB.Model(&models.Template{}).Order("popular DESC, name ASC")
	if wt := c.Query("type"); wt != "" {
		query = query.Where("website_type = ?", wt)
	}

	var templates []models.Template
	if err := query.Find(&templates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to fetch templates",
			Code:    "DATABASE_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    gin.H{"templates": templates},
	})
}

// GetCommunityProjects returns the public showcase feed, featured
// entries first.
func (h *Handler) GetCommunityProjects(c *gin.Context) {
	page, limit := parsePaginationParams(c)

	var total int64
	h.DB.Model(&models.CommunityProject{}).Count(&total)

	var entries []models.CommunityProject
	err := h.DB.Preload("Project").
		Order("featured DESC, likes DESC, created_at DESC").
		Scopes(paginate(page, limit)).
		Find(&entries).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to fetch community projects",
			Code:    "DATABASE_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects":   entries,
		"pagination": getPaginationInfo(page, limit, total),
	})
}

// ShareProject publishes one of the caller's projects to the community
// feed.
func (h *Handler) ShareProject(c *gin.Context) {
	project, ok := h.loadOwnedProject(c)
	if !ok {
		return
	}
	if !project.IsPublished {
		c.JSON(http.StatusConflict, StandardResponse{
			Success: false,
			Error:   "Publish the project before sharing it",
			Code:    "NOT_PUBLISHED",
		})
		return
	}

	var req struct {
		Title       string `json:"title" binding:"required,max=100"`
		Description string `json:"description" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Invalid request format",
			Code:    "INVALID_REQUEST",
		})
		return
	}

	entry := &models.CommunityProject{
		ProjectID:   project.ID,
		Title:       req.Title,
		Description: req.Description,
	}
	if err := h.DB.Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, StandardResponse{
				Success: false,
				Error:   "Project is already shared",
				Code:    "ALREADY_SHARED",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to share project",
			Code:    "DATABASE_ERROR",
		})
		return
	}

	c.JSON(http.StatusCreated, StandardResponse{Success: true, Data: entry})
}

// LikeCommunityProject increments a showcase entry's like counter.
func (h *Handler) LikeCommunityProject(c *gin.Context) {
	if _, ok := middleware.UserID(c); !ok {
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "User not authenticated",
			Code:    "NOT_AUTHENTICATED",
		})
		return
	}

	res := h.DB.Model(&models.CommunityProject{}).
		Where("id = ?", c.Param("id")).
		UpdateColumn("likes", gorm.Expr("likes + 1"))
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to like project",
			Code:    "DATABASE_ERROR",
		})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, StandardResponse{
			Success: false,
			Error:   "Community project not found",
			Code:    "NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true})
}
