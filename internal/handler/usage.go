package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/ledger"
	"github.com/duolog/duolog-server/internal/quota"
)

// EmailUsageResponse is the usage-check response body.
type EmailUsageResponse struct {
	Allowed              bool   `json:"allowed"`
	Used                 int    `json:"used"`
	Limit                int    `json:"limit"`
	HasOwnKeys           bool   `json:"hasOwnKeys"`
	EmailVerified        bool   `json:"emailVerified"`
	VerificationRequired bool   `json:"verificationRequired"`
	Reason               string `json:"reason,omitempty"`
}

// EmailUsageRequest is the body of POST /api/email-usage.
type EmailUsageRequest struct {
	Email       string `json:"email"`
	Fingerprint string `json:"fingerprint"`
	ClientID    string `json:"clientId"`
	HasOwnKeys  bool   `json:"hasOwnKeys"`
}

// CostResponse reports cost ledgers for one conversation and the session.
type CostResponse struct {
	Conversation *ledger.Ledger `json:"conversation,omitempty"`
	Session      ledger.Ledger  `json:"session"`
}

// UsageHandler serves usage checks and cost reads.
type UsageHandler struct {
	cfg      *config.Config
	gate     *quota.Gate
	resolver quota.Resolver
	ledger   *ledger.Store
	logger   *slog.Logger
}

// NewUsageHandler creates the usage handler.
func NewUsageHandler(
	cfg *config.Config,
	gate *quota.Gate,
	resolver quota.Resolver,
	ledgerStore *ledger.Store,
	logger *slog.Logger,
) *UsageHandler {
	return &UsageHandler{
		cfg:      cfg,
		gate:     gate,
		resolver: resolver,
		ledger:   ledgerStore,
		logger:   logger,
	}
}

// RegisterRoutes registers the usage routes.
func (h *UsageHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/email-usage", h.handleGet)
	router.POST("/api/email-usage", h.handlePost)
	router.GET("/api/usage/cost", h.handleCost)
}

func (h *UsageHandler) handleGet(c *gin.Context) {
	signals := quota.Signals{
		Email:       c.Query("email"),
		IP:          c.ClientIP(),
		Fingerprint: c.Query("fingerprint"),
		ClientID:    c.Query("clientId"),
	}
	hasOwnKeys := strings.EqualFold(c.Query("hasOwnKeys"), "true")
	h.respond(c, signals, hasOwnKeys)
}

// handlePost runs the same check before a conversation starts, with the
// signals in the body instead of the query string.
func (h *UsageHandler) handlePost(c *gin.Context) {
	var req EmailUsageRequest
	if !bindJSONAllowEmpty(c, &req) {
		return
	}
	signals := quota.Signals{
		Email:       req.Email,
		IP:          c.ClientIP(),
		Fingerprint: req.Fingerprint,
		ClientID:    req.ClientID,
	}
	h.respond(c, signals, req.HasOwnKeys)
}

func (h *UsageHandler) respond(c *gin.Context, signals quota.Signals, hasOwnKeys bool) {
	identity := h.resolver.Resolve(signals)
	decision := h.gate.CheckLimit(c.Request.Context(), identity, hasOwnKeys)

	c.JSON(http.StatusOK, EmailUsageResponse{
		Allowed:              decision.Allowed,
		Used:                 decision.Used,
		Limit:                decision.Limit,
		HasOwnKeys:           decision.HasOwnKeys,
		EmailVerified:        decision.EmailVerified,
		VerificationRequired: decision.Reason == quota.ReasonVerificationRequired,
		Reason:               decision.Reason,
	})
}

func (h *UsageHandler) handleCost(c *gin.Context) {
	response := CostResponse{Session: h.ledger.SessionTotals()}

	if conversationID := strings.TrimSpace(c.Query("conversationId")); conversationID != "" {
		if entry, ok := h.ledger.Conversation(conversationID); ok {
			response.Conversation = &entry
		}
	}

	c.JSON(http.StatusOK, response)
}
