package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/duolog/duolog-server/internal/httperror"
	"github.com/duolog/duolog-server/internal/middleware"
	"github.com/duolog/duolog-server/internal/quota"
)

// ResetUsageRequest is the body of POST /api/admin/reset-user-usage.
type ResetUsageRequest struct {
	Email string `json:"email"`
}

// VerifyUserRequest is the body of POST /api/admin/verify-user.
// Verified defaults to true when omitted.
type VerifyUserRequest struct {
	Email    string `json:"email"`
	Verified *bool  `json:"verified"`
}

// AdminHandler serves the admin quota operations. The routes sit behind
// the admin-key middleware.
type AdminHandler struct {
	gate       *quota.Gate
	resolver   quota.Resolver
	suspicious *quota.SuspiciousTracker
	logger     *slog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(
	gate *quota.Gate,
	resolver quota.Resolver,
	suspicious *quota.SuspiciousTracker,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		gate:       gate,
		resolver:   resolver,
		suspicious: suspicious,
		logger:     logger,
	}
}

// RegisterRoutes registers the admin routes.
func (h *AdminHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/admin")
	group.POST("/reset-user-usage", h.handleReset)
	group.POST("/verify-user", h.handleVerify)
	group.GET("/suspicious", h.handleSuspicious)
}

// handleReset zeroes the conversation counter. Verification status and
// the limit stay untouched.
func (h *AdminHandler) handleReset(c *gin.Context) {
	var req ResetUsageRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeError(c, httperror.NewMissingField("email"))
		return
	}

	identity := h.resolver.Resolve(quota.Signals{Email: email})
	if err := h.gate.Reset(c.Request.Context(), identity); err != nil {
		h.logger.Warn("usage_reset_failed", "err", err, "email", email)
		writeError(c, err)
		return
	}

	h.logger.Info("usage_reset",
		"request_id", middleware.GetRequestID(c), "email", email)
	c.JSON(http.StatusOK, gin.H{"success": true, "email": email})
}

func (h *AdminHandler) handleVerify(c *gin.Context) {
	var req VerifyUserRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeError(c, httperror.NewMissingField("email"))
		return
	}

	verified := true
	if req.Verified != nil {
		verified = *req.Verified
	}

	identity := h.resolver.Resolve(quota.Signals{Email: email})
	if err := h.gate.SetVerified(c.Request.Context(), identity, verified); err != nil {
		h.logger.Warn("verification_update_failed", "err", err, "email", email)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "email": email, "verified": verified})
}

// handleSuspicious surfaces the advisory multi-identity flags. Advisory
// only, nothing is enforced from here.
func (h *AdminHandler) handleSuspicious(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"flags": h.suspicious.Flags()})
}
