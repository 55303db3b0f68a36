package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/estateflow/estateflow/internal/middleware"
	"github.com/estateflow/estateflow/internal/models"
	"github.com/estateflow/estateflow/internal/services"
	"github.com/estateflow/estateflow/pkg/accesscode"
	appErrors "github.com/estateflow/estateflow/pkg/errors"
	"github.com/estateflow/estateflow/pkg/metrics"
	"github.com/estateflow/estateflow/pkg/response"
)

const qrImageSize = 256

// GatePassHandler exposes gate pass issuance and the guard verification flow.
type GatePassHandler struct {
	passes *services.GatePassService
}

func NewGatePassHandler(passes *services.GatePassService) *GatePassHandler {
	return &GatePassHandler{passes: passes}
}

type issuePassRequest struct {
	UnitID      string     `json:"unit_id" validate:"required"`
	VisitorName string     `json:"visitor_name" validate:"max=120"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidUntil  time.Time  `json:"valid_until" validate:"required"`
	PassType    string     `json:"pass_type" validate:"omitempty,oneof=single_use recurring"`
	CodeFormat  string     `json:"code_format" validate:"omitempty,oneof=numeric alphanumeric"`
}

// POST /api/passes
func (h *GatePassHandler) Issue(c *gin.Context) {
	var req issuePassRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pass, err := h.passes.Issue(requestContext(c), services.IssuePassInput{
		UnitID:      req.UnitID,
		IssuerID:    c.GetString(middleware.CtxAccountIDKey),
		VisitorName: req.VisitorName,
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
		PassType:    req.PassType,
		CodeFormat:  accesscode.Format(req.CodeFormat),
	})
	if err != nil {
		response.Error(c, mapPassError(err))
		return
	}

	response.Success(c, http.StatusCreated, pass)
}

// GET /api/passes
func (h *GatePassHandler) List(c *gin.Context) {
	ctx := requestContext(c)

	if unitID := c.Query("unit_id"); unitID != "" {
		passes, err := h.passes.ListForUnit(ctx, unitID)
		if err != nil {
			response.Error(c, mapPassError(err))
			return
		}
		response.Success(c, http.StatusOK, passes)
		return
	}

	passes, err := h.passes.ListForTenant(ctx, c.GetString(middleware.CtxAccountIDKey))
	if err != nil {
		response.Error(c, mapPassError(err))
		return
	}
	response.Success(c, http.StatusOK, passes)
}

// GET /api/passes/:id
func (h *GatePassHandler) Get(c *gin.Context) {
	pass, err := h.passes.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapPassError(err))
		return
	}
	response.Success(c, http.StatusOK, pass)
}

// GET /api/passes/:id/qr
//
// Renders the access code as a PNG so tenants can forward a scannable
// image instead of dictating digits at the gate.
func (h *GatePassHandler) QRCode(c *gin.Context) {
	pass, err := h.passes.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapPassError(err))
		return
	}

	png, err := qrcode.Encode(pass.AccessCode, qrcode.Medium, qrImageSize)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

type verifyPassRequest struct {
	Code string `json:"code" validate:"required"`
}

// POST /api/passes/verify
func (h *GatePassHandler) Verify(c *gin.Context) {
	var req verifyPassRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.passes.Verify(requestContext(c), req.Code, c.GetString(middleware.CtxAccountIDKey))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrVisitorBanned):
			metrics.PassVerifications.WithLabelValues(models.AccessOutcomeBanned).Inc()
			response.Error(c, appErrors.ErrForbidden.WithInternal(err))
		case errors.Is(err, services.ErrInvalidOrExpiredCode):
			metrics.PassVerifications.WithLabelValues(models.AccessOutcomeDenied).Inc()
			response.Error(c, appErrors.NewNotFound("invalid or expired code"))
		default:
			response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		}
		return
	}

	metrics.PassVerifications.WithLabelValues(models.AccessOutcomeGranted).Inc()
	response.Success(c, http.StatusOK, gin.H{
		"outcome":      result.Outcome,
		"visitor_name": result.VisitorName,
		"unit":         result.UnitNumber,
		"property":     result.PropertyName,
		"pass":         result.Pass,
	})
}

// POST /api/passes/:id/checkout
func (h *GatePassHandler) Checkout(c *gin.Context) {
	pass, err := h.passes.Checkout(requestContext(c), c.Param("id"), c.GetString(middleware.CtxAccountIDKey))
	if err != nil {
		response.Error(c, mapPassError(err))
		return
	}
	response.Success(c, http.StatusOK, pass)
}

// POST /api/passes/:id/revoke
func (h *GatePassHandler) Revoke(c *gin.Context) {
	pass, err := h.passes.Revoke(requestContext(c), c.Param("id"), c.GetString(middleware.CtxAccountIDKey))
	if err != nil {
		response.Error(c, mapPassError(err))
		return
	}
	response.Success(c, http.StatusOK, pass)
}

func mapPassError(err error) error {
	switch {
	case errors.Is(err, services.ErrPassNotFound):
		return appErrors.NewNotFound("pass not found")
	case errors.Is(err, services.ErrInvalidValidity):
		return appErrors.NewBadRequest("valid_until must be in the future")
	case errors.Is(err, services.ErrUnitNotOccupiedByIssuer):
		return appErrors.ErrForbidden.WithInternal(err)
	case errors.Is(err, services.ErrNotRecurring):
		return appErrors.NewBadRequest("checkout requires a recurring pass")
	case errors.Is(err, services.ErrAlreadyTerminal):
		return appErrors.NewConflict("pass is already in a terminal state")
	case errors.Is(err, services.ErrInvalidOrExpiredCode):
		return appErrors.NewNotFound("invalid or expired code")
	default:
		return appErrors.ErrInternalServer.WithInternal(err)
	}
}
