package handlers

import (
	"errors"
	"net/http"

	"siteforge/internal/agents"
	"siteforge/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetSessions lists the caller's generation sessions, in-memory ones
// first.
func (h *Handler) GetSessions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "User not authenticated",
			Code:    "NOT_AUTHENTICATED",
		})
		return
	}

	sessions := h.Generator.Store().List(userID)
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    gin.H{"sessions": sessions},
	})
}

// GetSession returns one generation session with its full agent plan
// log.
func (h *Handler) GetSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "User not authenticated",
			Code:    "NOT_AUTHENTICATED",
		})
		return
	}

	session, found := h.Generator.Store().Get(c.Param("id"))
	if !found || session.UserID != userID {
		c.JSON(http.StatusNotFound, StandardResponse{
			Success: false,
			Error:   "Session not found",
			Code:    "NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: session})
}

// CancelSession aborts an in-flight generation. The running agent step
// observes the cancellation and the session transitions to failed.
func (h *Handler) CancelSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "User not authenticated",
			Code:    "NOT_AUTHENTICATED",
		})
		return
	}

	sessionID := c.Param("id")
	session, found := h.Generator.Store().Get(sessionID)
	if !found || session.UserID != userID {
		c.JSON(http.StatusNotFound, StandardResponse{
			Success: false,
			Error:   "Session not found",
			Code:    "NOT_FOUND",
		})
		return
	}

	if err := h.Generator.Orchestrator().Cancel(sessionID); err != nil {
		if errors.Is(err, agents.ErrNotCancellable) {
			c.JSON(http.StatusConflict, StandardResponse{
				Success: false,
				Error:   "Session is not running",
				Code:    "NOT_RUNNING",
			})
			return
		}
		h.Log.Error("cancel failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to cancel session",
			Code:    "CANCEL_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Message: "Cancellation requested",
	})
}

// SessionProgressWS upgrades the connection and streams the session's
// progress events until the client disconnects.
func (h *Handler) SessionProgressWS(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "User not authenticated",
			Code:    "NOT_AUTHENTICATED",
		})
		return
	}

	sessionID := c.Param("id")
	session, found := h.Generator.Store().Get(sessionID)
	if !found || session.UserID != userID {
		c.JSON(http.StatusNotFound, StandardResponse{
			Success: false,
			Error:   "Session not found",
			Code:    "NOT_FOUND",
		})
		return
	}

	if err := h.Hub.ServeSession(c.Writer, c.Request, sessionID, userID); err != nil {
		h.Log.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
