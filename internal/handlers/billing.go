package handlers

import (
	"errors"
	"io"
	"net/http"

	"siteforge/internal/middleware"
	"siteforge/internal/payments"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetTokenPacks lists the purchasable token packs.
func (h *Handler) GetTokenPacks(c *gin.Context) {
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    gin.H{"packs": payments.Packs},
	})
}

// CreateCheckout opens a Stripe Checkout session for a token pack.
func (h *Handler) CreateCheckout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "User not authenticated",
			Code:    "NOT_AUTHENTICATED",
		})
		return
	}

	var req struct {
		PackID     string `json:"pack_id" binding:"required"`
		SuccessURL string `json:"success_url" binding:"required,url"`
		CancelURL  string `json:"cancel_url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Invalid request format",
			Code:    "INVALID_REQUEST",
		})
		return
	}

	result, err := h.Payments.CreateCheckout(c.Request.Context(), userID, req.PackID, req.SuccessURL, req.CancelURL)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidPack):
			c.JSON(http.StatusBadRequest, StandardResponse{
				Success: false,
				Error:   "Unknown token pack",
				Code:    "INVALID_PACK",
			})
		case errors.Is(err, payments.ErrNotConfigured):
			c.JSON(http.StatusServiceUnavailable, StandardResponse{
				Success: false,
				Error:   "Payments are not available",
				Code:    "PAYMENTS_UNAVAILABLE",
			})
		default:
			h.Log.Error("checkout creation failed", zap.Uint("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, StandardResponse{
				Success: false,
				Error:   "Failed to create checkout session",
				Code:    "CHECKOUT_FAILED",
			})
		}
		return
	}

	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: result})
}

// StripeWebhook receives Stripe event deliveries.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}

	err = h.Payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidWebhook) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		h.Log.Error("webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
