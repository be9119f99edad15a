package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/telsite/fieldops-api/internal/dto"
	"github.com/telsite/fieldops-api/internal/service"
	appErrors "github.com/telsite/fieldops-api/pkg/errors"
	"github.com/telsite/fieldops-api/pkg/response"
)

// GatewayHandler serves the field officer console: the approval queue and the
// per-vendor message channel.
type GatewayHandler struct {
	service *service.GatewayService
}

// NewGatewayHandler creates a new handler.
func NewGatewayHandler(svc *service.GatewayService) *GatewayHandler {
	return &GatewayHandler{service: svc}
}

// PendingApprovals lists sites awaiting an access or key decision.
func (h *GatewayHandler) PendingApprovals(c *gin.Context) {
	pending, err := h.service.PendingApprovals(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// SendMessage posts a message on a vendor's channel.
func (h *GatewayHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	message, err := h.service.SendMessage(c.Request.Context(), c.Param("vendorId"), req, claimsFromContext(c), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// Messages returns a vendor's channel in insertion order.
func (h *GatewayHandler) Messages(c *gin.Context) {
	messages, err := h.service.Messages(c.Request.Context(), c.Param("vendorId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// MarkRead acknowledges one message on the authenticated vendor's channel.
func (h *GatewayHandler) MarkRead(c *gin.Context) {
	err := h.service.MarkRead(c.Request.Context(), c.Param("vendorId"), c.Param("messageId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnreadCount returns the number of unacknowledged messages.
func (h *GatewayHandler) UnreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), c.Param("vendorId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread": count}, nil)
}
