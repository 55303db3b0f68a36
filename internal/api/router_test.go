package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/estateflow/estateflow/internal/auth"
	"github.com/estateflow/estateflow/internal/database/testutil"
	"github.com/estateflow/estateflow/internal/models"
	"github.com/estateflow/estateflow/internal/services"
)

type routerFixture struct {
	db     *gorm.DB
	router *gin.Engine
	tokens *iauth.TokenService

	property *models.Property
	unit     *models.Unit
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	tokens, err := iauth.NewTokenService(iauth.Config{Secret: "test-secret", Issuer: "estateflow"})
	require.NoError(t, err)

	accounts, err := services.NewAccountService(db)
	require.NoError(t, err)
	bans, err := services.NewBannedVisitorService(db)
	require.NoError(t, err)
	logs, err := services.NewAccessLogService(db)
	require.NoError(t, err)
	passes, err := services.NewGatePassService(db, bans, logs)
	require.NoError(t, err)
	invitations, err := services.NewInvitationService(db, accounts, nil,
		services.WithInvitationBaseURL("https://portal.example.test"))
	require.NoError(t, err)

	router, err := NewRouter(db, tokens, Services{
		Accounts:    accounts,
		Passes:      passes,
		Invitations: invitations,
		Bans:        bans,
	})
	require.NoError(t, err)

	f := &routerFixture{db: db, router: router, tokens: tokens}
	f.property = &models.Property{Name: "Palm Court"}
	require.NoError(t, db.Create(f.property).Error)
	f.unit = &models.Unit{PropertyID: f.property.ID, UnitNumber: "A1", RentAmount: 1500}
	require.NoError(t, db.Create(f.unit).Error)

	return f
}

func (f *routerFixture) seedAccount(t *testing.T, email, role string) *models.Account {
	t.Helper()
	accounts, err := services.NewAccountService(f.db)
	require.NoError(t, err)
	account, err := accounts.Create(context.Background(), services.CreateAccountInput{
		Email: email, Password: "Str0ngPass!", Role: role,
	})
	require.NoError(t, err)
	return account
}

func (f *routerFixture) bearer(t *testing.T, account *models.Account) string {
	t.Helper()
	token, err := f.tokens.Generate(account.ID, account.Role)
	require.NoError(t, err)
	return "Bearer " + token
}

func (f *routerFixture) do(t *testing.T, method, path, auth string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func TestHealthEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestLoginEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	f.seedAccount(t, "login@palm.test", models.RoleTenant)

	w := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "login@palm.test", "password": "Str0ngPass!",
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	require.NotEmpty(t, data["access_token"])

	w = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "login@palm.test", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPassEndpointsRequireAuth(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodGet, "/api/passes", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/passes/verify", "", gin.H{"code": "123456"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIssueVerifyFlow(t *testing.T) {
	f := newRouterFixture(t)
	tenant := f.seedAccount(t, "tenant@palm.test", models.RoleTenant)
	guard := f.seedAccount(t, "guard@palm.test", models.RoleGuard)
	require.NoError(t, f.db.Model(f.unit).Updates(map[string]any{
		"current_tenant_id": tenant.ID, "occupied": true,
	}).Error)

	w := f.do(t, http.MethodPost, "/api/passes", f.bearer(t, tenant), gin.H{
		"unit_id":      f.unit.ID,
		"visitor_name": "Alice Visitor",
		"valid_until":  time.Now().Add(2 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	pass := decodeData(t, w)
	code, _ := pass["access_code"].(string)
	require.Len(t, code, 6)
	passID, _ := pass["id"].(string)
	require.NotEmpty(t, passID)

	// Guards may not issue passes.
	w = f.do(t, http.MethodPost, "/api/passes", f.bearer(t, guard), gin.H{
		"unit_id":     f.unit.ID,
		"valid_until": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	// QR is rendered from the stored code.
	w = f.do(t, http.MethodGet, "/api/passes/"+passID+"/qr", f.bearer(t, tenant), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = f.do(t, http.MethodPost, "/api/passes/verify", f.bearer(t, guard), gin.H{"code": code})
	require.Equal(t, http.StatusOK, w.Code)
	result := decodeData(t, w)
	require.Equal(t, "granted", result["outcome"])
	require.Equal(t, "A1", result["unit"])

	// Second verification loses the conditional update.
	w = f.do(t, http.MethodPost, "/api/passes/verify", f.bearer(t, guard), gin.H{"code": code})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvitationLifecycleOverHTTP(t *testing.T) {
	f := newRouterFixture(t)
	admin := f.seedAccount(t, "admin@palm.test", models.RoleAdmin)
	tenant := f.seedAccount(t, "tenant@palm.test", models.RoleTenant)

	// Tenants cannot issue invitations.
	w := f.do(t, http.MethodPost, "/api/invitations", f.bearer(t, tenant), gin.H{
		"email": "x@y.test", "role": "guard", "property_id": f.property.ID,
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/invitations", f.bearer(t, admin), gin.H{
		"email":       "invitee@palm.test",
		"role":        "tenant",
		"property_id": f.property.ID,
		"unit_id":     f.unit.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	issued := decodeData(t, w)
	link, _ := issued["invite_link"].(string)
	require.Contains(t, link, "token=")

	token := link[len("https://portal.example.test/invite?token="):]

	w = f.do(t, http.MethodGet, "/api/invitations/info?token="+token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decodeData(t, w)
	require.Equal(t, "Palm Court", info["property"])
	require.Equal(t, "A1", info["unit"])

	w = f.do(t, http.MethodGet, "/api/invitations/info?token=bogus", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/invitations/accept", "", gin.H{
		"token": token, "password": "12345", "full_name": "Too Short",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/invitations/accept", "", gin.H{
		"token": token, "password": "Str0ngPass!", "full_name": "New Tenant",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	accepted := decodeData(t, w)
	require.Equal(t, "invitee@palm.test", accepted["email"])

	// Consumed invitations conflict on reuse.
	w = f.do(t, http.MethodPost, "/api/invitations/accept", "", gin.H{
		"token": token, "password": "Str0ngPass!", "full_name": "Again",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	// The invitee can now log in.
	w = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "invitee@palm.test", "password": "Str0ngPass!",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestExpiredInvitationReturnsGone(t *testing.T) {
	f := newRouterFixture(t)

	current := time.Now()
	accounts, err := services.NewAccountService(f.db)
	require.NoError(t, err)
	invitations, err := services.NewInvitationService(f.db, accounts, nil,
		services.WithInvitationClock(func() time.Time { return current }),
		services.WithInvitationExpiry(time.Hour))
	require.NoError(t, err)

	_, token, _, err := invitations.Issue(context.Background(), services.IssueInvitationInput{
		Email: "late@palm.test", Role: models.RoleGuard, PropertyID: f.property.ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Invitation{}).
		Where("email = ?", "late@palm.test").
		Update("expires_at", current.Add(-time.Minute)).Error)

	w := f.do(t, http.MethodGet, "/api/invitations/info?token="+token, "", nil)
	require.Equal(t, http.StatusGone, w.Code)
}

func TestBannedVisitorEndpoints(t *testing.T) {
	f := newRouterFixture(t)
	admin := f.seedAccount(t, "admin@palm.test", models.RoleAdmin)
	guard := f.seedAccount(t, "guard@palm.test", models.RoleGuard)

	w := f.do(t, http.MethodPost, "/api/banned-visitors", f.bearer(t, admin), gin.H{
		"property_id": f.property.ID, "visitor_name": "jane", "reason": "trespass",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	ban := decodeData(t, w)
	banID, _ := ban["id"].(string)
	require.NotEmpty(t, banID)

	path := fmt.Sprintf("/api/banned-visitors?property_id=%s", f.property.ID)
	w = f.do(t, http.MethodGet, path, f.bearer(t, guard), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "jane")

	// Guards cannot manage the list.
	w = f.do(t, http.MethodDelete, "/api/banned-visitors/"+banID, f.bearer(t, guard), nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodDelete, "/api/banned-visitors/"+banID, f.bearer(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "go_goroutines")
}
