package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/estateflow/estateflow/internal/auth"
	"github.com/estateflow/estateflow/internal/services"
	appErrors "github.com/estateflow/estateflow/pkg/errors"
	"github.com/estateflow/estateflow/pkg/response"
)

// AuthHandler manages the login flow for portal sessions.
type AuthHandler struct {
	accounts *services.AccountService
	tokens   *iauth.TokenService
}

func NewAuthHandler(accounts *services.AccountService, tokens *iauth.TokenService) *AuthHandler {
	return &AuthHandler{accounts: accounts, tokens: tokens}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.accounts.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidLogin):
			response.Error(c, appErrors.ErrInvalidCredentials)
		case errors.Is(err, services.ErrAccountDisabled):
			response.Error(c, appErrors.ErrForbidden)
		default:
			response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		}
		return
	}

	token, err := h.tokens.Generate(account.ID, account.Role)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"access_token": token,
		"account": gin.H{
			"id":    account.ID,
			"email": account.Email,
			"role":  account.Role,
		},
	})
}
