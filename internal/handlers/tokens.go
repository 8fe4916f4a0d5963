package handlers

import (
	"net/http"

	"siteforge/internal/middleware"
	"siteforge/internal/tokens"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetBalance returns the caller's current token balance, applying the
// free-tier daily refresh first.
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "User not authenticated",
			Code:    "NOT_AUTHENTICATED",
		})
		return
	}

	balance, err := h.Ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.Log.Error("balance lookup failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to fetch balance",
			Code:    "DATABASE_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data: gin.H{
			"balance":             balance,
			"free_tier_allotment": tokens.FreeTierAllotment,
		},
	})
}
