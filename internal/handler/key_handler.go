package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/telsite/fieldops-api/internal/dto"
	"github.com/telsite/fieldops-api/internal/service"
	appErrors "github.com/telsite/fieldops-api/pkg/errors"
	"github.com/telsite/fieldops-api/pkg/response"
)

// KeyHandler wires HTTP endpoints to the key custody workflow.
type KeyHandler struct {
	service *service.KeyService
}

// NewKeyHandler creates a new handler.
func NewKeyHandler(svc *service.KeyService) *KeyHandler {
	return &KeyHandler{service: svc}
}

// RequestBorrow files a key borrow request on behalf of the authenticated
// vendor.
func (h *KeyHandler) RequestBorrow(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.KeyBorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid key borrow payload"))
		return
	}

	log, err := h.service.RequestBorrow(c.Request.Context(), c.Param("siteId"), claims.UserID, req, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, log)
}

// AuthorizeBorrow approves the pending borrow request. Safe to repeat.
func (h *KeyHandler) AuthorizeBorrow(c *gin.Context) {
	if err := h.service.AuthorizeBorrow(c.Request.Context(), c.Param("siteId"), claimsFromContext(c), c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DenyBorrow clears the pending borrow request.
func (h *KeyHandler) DenyBorrow(c *gin.Context) {
	if err := h.service.DenyBorrow(c.Request.Context(), c.Param("siteId"), claimsFromContext(c), c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ConfirmBorrow promotes the pending request into active custody.
func (h *KeyHandler) ConfirmBorrow(c *gin.Context) {
	log, err := h.service.ConfirmBorrow(c.Request.Context(), c.Param("siteId"), claimsFromContext(c), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, log, nil)
}

// Return finalizes the active custody cycle and archives it.
func (h *KeyHandler) Return(c *gin.Context) {
	var req dto.KeyReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid key return payload"))
		return
	}

	log, err := h.service.ReturnKey(c.Request.Context(), c.Param("siteId"), req, claimsFromContext(c), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, log, nil)
}
