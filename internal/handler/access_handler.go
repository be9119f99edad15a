package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/telsite/fieldops-api/internal/dto"
	"github.com/telsite/fieldops-api/internal/service"
	appErrors "github.com/telsite/fieldops-api/pkg/errors"
	"github.com/telsite/fieldops-api/pkg/response"
)

// AccessHandler wires HTTP endpoints to the site access workflow.
type AccessHandler struct {
	service *service.AccessService
}

// NewAccessHandler creates a new handler.
func NewAccessHandler(svc *service.AccessService) *AccessHandler {
	return &AccessHandler{service: svc}
}

// Submit files an access request for a site on behalf of the authenticated
// vendor.
func (h *AccessHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid access request payload"))
		return
	}

	visitor, err := h.service.Submit(c.Request.Context(), c.Param("siteId"), claims.UserID, req, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, visitor)
}

// Authorize approves the pending access request. Safe to repeat.
func (h *AccessHandler) Authorize(c *gin.Context) {
	if err := h.service.Authorize(c.Request.Context(), c.Param("siteId"), claimsFromContext(c), c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Deny clears the pending access request.
func (h *AccessHandler) Deny(c *gin.Context) {
	if err := h.service.Deny(c.Request.Context(), c.Param("siteId"), claimsFromContext(c), c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CheckIn promotes the pending request into the current visit.
func (h *AccessHandler) CheckIn(c *gin.Context) {
	visitor, err := h.service.CheckIn(c.Request.Context(), c.Param("siteId"), claimsFromContext(c), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}

// CheckOut finalizes the current visit and archives it.
func (h *AccessHandler) CheckOut(c *gin.Context) {
	var req dto.CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid checkout payload"))
		return
	}

	visitor, err := h.service.CheckOut(c.Request.Context(), c.Param("siteId"), req, claimsFromContext(c), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}
