package handler

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/duolog/duolog-server/internal/collab"
	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/httperror"
	"github.com/duolog/duolog-server/internal/middleware"
	"github.com/duolog/duolog-server/internal/quota"
	"github.com/duolog/duolog-server/internal/stream"
)

// CollaboratePath is the streaming endpoint path. The gzip middleware
// must skip it, compression would buffer the event frames.
const CollaboratePath = "/api/collaborate"

// UserCredentials carries caller-supplied provider keys.
type UserCredentials struct {
	ProviderA string `json:"providerA"`
	ProviderB string `json:"providerB"`
}

// CollaborateRequest is the body of POST /api/collaborate.
type CollaborateRequest struct {
	Prompt          string          `json:"prompt"`
	SessionID       string          `json:"sessionId"`
	IdentityEmail   string          `json:"identityEmail"`
	Fingerprint     string          `json:"fingerprint"`
	ClientID        string          `json:"clientId"`
	UserCredentials UserCredentials `json:"userCredentials"`
}

// CollaborateHandler runs the collaboration stream endpoint.
type CollaborateHandler struct {
	cfg          *config.Config
	orchestrator *collab.Orchestrator
	gate         *quota.Gate
	resolver     quota.Resolver
	suspicious   *quota.SuspiciousTracker
	logger       *slog.Logger
}

// NewCollaborateHandler creates the collaboration handler.
func NewCollaborateHandler(
	cfg *config.Config,
	orchestrator *collab.Orchestrator,
	gate *quota.Gate,
	resolver quota.Resolver,
	suspicious *quota.SuspiciousTracker,
	logger *slog.Logger,
) *CollaborateHandler {
	return &CollaborateHandler{
		cfg:          cfg,
		orchestrator: orchestrator,
		gate:         gate,
		resolver:     resolver,
		suspicious:   suspicious,
		logger:       logger,
	}
}

// RegisterRoutes registers the collaboration route.
func (h *CollaborateHandler) RegisterRoutes(router *gin.Engine) {
	router.POST(CollaboratePath, h.handleCollaborate)
}

func (h *CollaborateHandler) handleCollaborate(c *gin.Context) {
	var req CollaborateRequest
	if !bindJSON(c, &req) {
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeError(c, httperror.NewMissingField("prompt"))
		return
	}
	if max := h.cfg.Collab.MaxPromptChars; max > 0 && len([]rune(prompt)) > max {
		writeError(c, httperror.NewInvalidInput("prompt too long"))
		return
	}

	ip := c.ClientIP()
	identity := h.resolver.Resolve(quota.Signals{
		Email:       req.IdentityEmail,
		IP:          ip,
		Fingerprint: req.Fingerprint,
		ClientID:    req.ClientID,
	})
	h.suspicious.Observe(req.Fingerprint, ip, req.IdentityEmail)

	hasOwnKeys := strings.TrimSpace(req.UserCredentials.ProviderA) != "" ||
		strings.TrimSpace(req.UserCredentials.ProviderB) != ""

	decision := h.gate.CheckLimit(c.Request.Context(), identity, hasOwnKeys)
	if !decision.Allowed {
		switch decision.Reason {
		case quota.ReasonVerificationRequired:
			writeError(c, httperror.NewVerificationRequired())
		default:
			writeError(c, httperror.NewQuotaExceeded(decision.Used, decision.Limit))
		}
		return
	}

	conversationID := strings.TrimSpace(req.SessionID)
	if conversationID == "" {
		conversationID = middleware.GetRequestID(c)
	}

	h.logger.Info("collaboration_started",
		"request_id", middleware.GetRequestID(c),
		"conversation_id", conversationID,
		"own_keys", hasOwnKeys,
		"degraded", decision.Degraded,
	)

	sink := stream.NewSSESink(c.Writer)
	h.orchestrator.Run(c.Request.Context(), collab.Request{
		ConversationID: conversationID,
		Prompt:         prompt,
		IdentityKey:    identity,
		HasOwnKeys:     hasOwnKeys,
		APIKeyA:        strings.TrimSpace(req.UserCredentials.ProviderA),
		APIKeyB:        strings.TrimSpace(req.UserCredentials.ProviderB),
	}, sink)
}
