package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/estateflow/estateflow/internal/middleware"
	"github.com/estateflow/estateflow/internal/services"
	appErrors "github.com/estateflow/estateflow/pkg/errors"
	"github.com/estateflow/estateflow/pkg/response"
)

// BannedVisitorHandler manages the per-property visitor ban list.
type BannedVisitorHandler struct {
	bans *services.BannedVisitorService
}

func NewBannedVisitorHandler(bans *services.BannedVisitorService) *BannedVisitorHandler {
	return &BannedVisitorHandler{bans: bans}
}

type banVisitorRequest struct {
	PropertyID  string `json:"property_id" validate:"required"`
	VisitorName string `json:"visitor_name" validate:"required,max=120"`
	Reason      string `json:"reason" validate:"max=500"`
}

// POST /api/banned-visitors
func (h *BannedVisitorHandler) Ban(c *gin.Context) {
	var req banVisitorRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ban, err := h.bans.Ban(requestContext(c), services.BanInput{
		PropertyID:  req.PropertyID,
		VisitorName: req.VisitorName,
		Reason:      req.Reason,
		BannedBy:    c.GetString(middleware.CtxAccountIDKey),
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusCreated, ban)
}

// GET /api/banned-visitors?property_id=...
func (h *BannedVisitorHandler) List(c *gin.Context) {
	propertyID := c.Query("property_id")
	if propertyID == "" {
		response.Error(c, appErrors.NewBadRequest("property_id is required"))
		return
	}

	bans, err := h.bans.List(requestContext(c), propertyID)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, bans)
}

// DELETE /api/banned-visitors/:id
func (h *BannedVisitorHandler) Unban(c *gin.Context) {
	if err := h.bans.Unban(requestContext(c), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrBanNotFound) {
			response.Error(c, appErrors.NewNotFound("ban entry not found"))
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
