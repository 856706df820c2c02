// Package rest provides the node's operator-facing REST handlers:
// read-only status/peer/block inspection and the VoteToAdd/
// VoteToRemove mutation surface, mirroring the teacher's
// internal/api/rest/handlers.go route-group/Handler shape but backed
// by *engine.Engine instead of anomaly-detection services.
package rest

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ruvnet/parsec/internal/api"
	"github.com/ruvnet/parsec/internal/auth"
	"github.com/ruvnet/parsec/internal/config"
	"github.com/ruvnet/parsec/internal/consensus/engine"
	"github.com/ruvnet/parsec/internal/crypto/idkeys"
	"github.com/ruvnet/parsec/internal/middleware"
)

// Handler serves the ops REST surface for a single node.
type Handler struct {
	engine  *engine.Engine
	authSvc *auth.Service
	jwtCfg  config.JWTConfig
	logger  *zap.Logger
}

// NewHandler builds a Handler wired to eng and svc.
func NewHandler(eng *engine.Engine, svc *auth.Service, jwtCfg config.JWTConfig, logger *zap.Logger) *Handler {
	return &Handler{engine: eng, authSvc: svc, jwtCfg: jwtCfg, logger: logger}
}

// SetupRoutes registers every route on router.
func (h *Handler) SetupRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.Health)

	authGroup := router.Group("/auth")
	authGroup.POST("/login", h.Login)

	node := router.Group("/")
	node.Use(middleware.Auth(h.authSvc))
	{
		node.GET("/status", h.Status)
		node.GET("/peers", h.ListPeers)
		node.GET("/blocks", h.PollBlocks)

		votes := node.Group("/votes")
		votes.Use(middleware.RequireAction(h.authSvc, "write"))
		{
			votes.POST("/add", h.VoteToAdd)
			votes.POST("/remove", h.VoteToRemove)
		}
	}
}

// Health reports liveness without requiring auth.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.Ok(gin.H{"status": "healthy"}))
}

// Login exchanges the admin operator's password for a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.FailWithDetails("INVALID_REQUEST", "invalid request body", err.Error()))
		return
	}

	if req.OperatorID != h.jwtCfg.AdminOperatorID || h.jwtCfg.AdminPasswordHash == "" {
		c.JSON(http.StatusUnauthorized, api.Fail("INVALID_CREDENTIALS", "invalid operator id or password"))
		return
	}
	if err := h.authSvc.CheckPassword(req.Password, h.jwtCfg.AdminPasswordHash); err != nil {
		c.JSON(http.StatusUnauthorized, api.Fail("INVALID_CREDENTIALS", "invalid operator id or password"))
		return
	}

	token, err := h.authSvc.IssueToken(auth.Operator{ID: req.OperatorID, Role: "admin"})
	if err != nil {
		h.logger.Error("failed to issue operator token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, api.Fail("TOKEN_ISSUE_FAILED", "failed to issue token"))
		return
	}

	c.JSON(http.StatusOK, api.Ok(api.LoginResponse{Token: token, Role: "admin"}))
}

// Status reports a snapshot of this node's consensus core.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, api.Ok(h.engine.Status()))
}

// ListPeers reports every known section member.
func (h *Handler) ListPeers(c *gin.Context) {
	c.JSON(http.StatusOK, api.Ok(h.engine.Peers()))
}

// PollBlocks drains and returns every block that has become ready for
// consumption since the last call.
func (h *Handler) PollBlocks(c *gin.Context) {
	c.JSON(http.StatusOK, api.Ok(h.engine.Poll()))
}

// VoteToAdd casts this node's vote to admit a new peer.
func (h *Handler) VoteToAdd(c *gin.Context) {
	var req api.VoteAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.FailWithDetails("INVALID_REQUEST", "invalid request body", err.Error()))
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.PublicKey)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.FailWithDetails("INVALID_PUBLIC_KEY", "public_key must be base64", err.Error()))
		return
	}
	id, err := idkeys.UnmarshalPublicId(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.FailWithDetails("INVALID_PUBLIC_KEY", "malformed public key", err.Error()))
		return
	}

	if err := h.engine.VoteToAdd(id); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("VOTE_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusOK, api.Ok(gin.H{"message": "vote cast"}))
}

// VoteToRemove casts this node's vote to strip a peer's voting rights.
func (h *Handler) VoteToRemove(c *gin.Context) {
	var req api.VoteRemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.FailWithDetails("INVALID_REQUEST", "invalid request body", err.Error()))
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.PeerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.FailWithDetails("INVALID_PEER_ID", "peer_id must be base64", err.Error()))
		return
	}
	id, err := idkeys.UnmarshalPublicId(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.FailWithDetails("INVALID_PEER_ID", "malformed peer id", err.Error()))
		return
	}

	if err := h.engine.VoteToRemove(id); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("VOTE_FAILED", err.Error()))
		return
	}
	c.JSON(http.StatusOK, api.Ok(gin.H{"message": "vote cast"}))
}
