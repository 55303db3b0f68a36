package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/estateflow/estateflow/internal/auth"
	"github.com/estateflow/estateflow/internal/handlers"
	"github.com/estateflow/estateflow/internal/middleware"
	"github.com/estateflow/estateflow/internal/models"
	"github.com/estateflow/estateflow/internal/services"
)

// Services bundles the service layer the router depends on.
type Services struct {
	Accounts    *services.AccountService
	Passes      *services.GatePassService
	Invitations *services.InvitationService
	Bans        *services.BannedVisitorService
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, tokens *iauth.TokenService, svcs Services) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service must be provided")
	}
	if svcs.Accounts == nil || svcs.Passes == nil || svcs.Invitations == nil || svcs.Bans == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	authHandler := handlers.NewAuthHandler(svcs.Accounts, tokens)
	passHandler := handlers.NewGatePassHandler(svcs.Passes)
	invitationHandler := handlers.NewInvitationHandler(svcs.Invitations)
	banHandler := handlers.NewBannedVisitorHandler(svcs.Bans)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	// Public invitation routes: the invitee has no session yet.
	r.GET("/api/invitations/info", invitationHandler.Info)
	r.POST("/api/invitations/accept", invitationHandler.Accept)

	// Protected routes
	requireAuth := middleware.Auth(tokens)
	admins := middleware.RequireRole(models.RoleAdmin, models.RoleSuperadmin)
	guards := middleware.RequireRole(models.RoleGuard, models.RoleAdmin, models.RoleSuperadmin)
	tenants := middleware.RequireRole(models.RoleTenant, models.RoleAdmin, models.RoleSuperadmin)

	api := r.Group("/api")
	api.Use(requireAuth)

	passes := api.Group("/passes")
	{
		passes.POST("", tenants, passHandler.Issue)
		passes.GET("", passHandler.List)
		passes.GET("/:id", passHandler.Get)
		passes.GET("/:id/qr", passHandler.QRCode)
		passes.POST("/verify", guards, passHandler.Verify)
		passes.POST("/:id/checkout", guards, passHandler.Checkout)
		passes.POST("/:id/revoke", tenants, passHandler.Revoke)
	}

	invitations := api.Group("/invitations")
	{
		invitations.POST("", admins, invitationHandler.Issue)
		invitations.GET("", admins, invitationHandler.List)
		invitations.POST("/:id/revoke", admins, invitationHandler.Revoke)
	}

	bans := api.Group("/banned-visitors")
	{
		bans.POST("", admins, banHandler.Ban)
		bans.GET("", guards, banHandler.List)
		bans.DELETE("/:id", admins, banHandler.Unban)
	}

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
