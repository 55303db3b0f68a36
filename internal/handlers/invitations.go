package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/estateflow/estateflow/internal/middleware"
	"github.com/estateflow/estateflow/internal/notify"
	"github.com/estateflow/estateflow/internal/services"
	appErrors "github.com/estateflow/estateflow/pkg/errors"
	"github.com/estateflow/estateflow/pkg/metrics"
	"github.com/estateflow/estateflow/pkg/response"
)

// InvitationHandler exposes the admin invitation surface and the public
// token endpoints the invitee-facing page uses.
type InvitationHandler struct {
	invitations *services.InvitationService
}

func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type issueInvitationRequest struct {
	Email       string  `json:"email" validate:"omitempty,email"`
	PhoneNumber string  `json:"phone_number" validate:"max=32"`
	FullName    string  `json:"full_name" validate:"max=120"`
	Role        string  `json:"role" validate:"required,oneof=tenant guard"`
	PropertyID  string  `json:"property_id" validate:"required"`
	UnitID      *string `json:"unit_id"`
}

// POST /api/invitations
func (h *InvitationHandler) Issue(c *gin.Context) {
	var req issueInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invitation, _, link, err := h.invitations.Issue(requestContext(c), services.IssueInvitationInput{
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		FullName:    req.FullName,
		Role:        req.Role,
		PropertyID:  req.PropertyID,
		UnitID:      req.UnitID,
		InvitedBy:   c.GetString(middleware.CtxAccountIDKey),
	})
	if err != nil {
		response.Error(c, mapInvitationError(err))
		return
	}

	metrics.InvitationsIssued.WithLabelValues(invitation.Role).Inc()

	propertyName := ""
	if invitation.Property != nil {
		propertyName = invitation.Property.Name
	}

	payload := gin.H{
		"invitation":  invitation,
		"invite_link": link,
	}
	if invitation.PhoneNumber != "" {
		payload["whatsapp_link"] = notify.WhatsAppLink(invitation.PhoneNumber, link, propertyName)
	}

	response.Success(c, http.StatusCreated, payload)
}

// GET /api/invitations
func (h *InvitationHandler) List(c *gin.Context) {
	invitations, err := h.invitations.List(requestContext(c), c.Query("status"), c.Query("property_id"))
	if err != nil {
		response.Error(c, mapInvitationError(err))
		return
	}
	response.Success(c, http.StatusOK, invitations)
}

// POST /api/invitations/:id/revoke
func (h *InvitationHandler) Revoke(c *gin.Context) {
	invitation, err := h.invitations.Revoke(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapInvitationError(err))
		return
	}
	response.Success(c, http.StatusOK, invitation)
}

// GET /api/invitations/info?token=...
//
// Public: drives the invitee-facing accept page. Returns only the
// projection needed to render the form, never the invitation row itself.
func (h *InvitationHandler) Info(c *gin.Context) {
	preview, err := h.invitations.Validate(requestContext(c), c.Query("token"))
	if err != nil {
		response.Error(c, mapInvitationError(err))
		return
	}
	response.Success(c, http.StatusOK, preview)
}

type acceptInvitationRequest struct {
	Token       string `json:"token" validate:"required"`
	Password    string `json:"password" validate:"required,min=6"`
	FullName    string `json:"full_name" validate:"required,max=120"`
	PhoneNumber string `json:"phone_number" validate:"max=32"`
}

// POST /api/invitations/accept
//
// Public: consumes the invitation and provisions the account.
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req acceptInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.invitations.Accept(requestContext(c), services.AcceptInvitationInput{
		Token:       req.Token,
		Password:    req.Password,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		response.Error(c, mapInvitationError(err))
		return
	}

	metrics.InvitationsAccepted.WithLabelValues(result.Role).Inc()
	response.Success(c, http.StatusCreated, result)
}

func mapInvitationError(err error) error {
	switch {
	case errors.Is(err, services.ErrInvitationNotFound):
		return appErrors.NewNotFound("invitation not found")
	case errors.Is(err, services.ErrInvitationExpired):
		return appErrors.NewGone("invitation has expired")
	case errors.Is(err, services.ErrInvitationRevoked):
		return appErrors.NewGone("invitation has been revoked")
	case errors.Is(err, services.ErrInvitationAlreadyUsed):
		return appErrors.NewConflict("invitation has already been used")
	case errors.Is(err, services.ErrAccountExists):
		return appErrors.NewConflict("an account already exists for this email")
	case errors.Is(err, services.ErrInvalidRole):
		return appErrors.NewBadRequest("role must be tenant or guard")
	case errors.Is(err, services.ErrPropertyNotFound):
		return appErrors.NewNotFound("property not found")
	case errors.Is(err, services.ErrUnitRequired):
		return appErrors.NewBadRequest("unit is required for tenant invitations")
	case errors.Is(err, services.ErrUnitNotFound):
		return appErrors.NewNotFound("unit not found")
	case errors.Is(err, services.ErrUnitOccupied):
		return appErrors.NewConflict("unit is already occupied")
	case errors.Is(err, services.ErrPasswordTooShort):
		return appErrors.NewBadRequest("password must be at least 6 characters")
	case errors.Is(err, services.ErrFullNameRequired):
		return appErrors.NewBadRequest("full name is required")
	case errors.Is(err, services.ErrProfileCreation):
		return appErrors.ErrInternalServer.WithInternal(err)
	default:
		return appErrors.ErrInternalServer.WithInternal(err)
	}
}
