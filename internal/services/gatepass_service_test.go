package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/estateflow/estateflow/internal/models"
	"github.com/estateflow/estateflow/pkg/accesscode"
)

type gatePassFixture struct {
	db      *gorm.DB
	svc     *GatePassService
	bans    *BannedVisitorService
	logs    *AccessLogService
	current time.Time

	property *models.Property
	unit     *models.Unit
	tenant   *models.Account
	guard    *models.Account
}

func newGatePassFixture(t *testing.T) *gatePassFixture {
	t.Helper()

	db := openServiceTestDB(t)
	f := &gatePassFixture{
		db:      db,
		current: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	var err error
	f.bans, err = NewBannedVisitorService(db)
	require.NoError(t, err)
	f.logs, err = NewAccessLogService(db)
	require.NoError(t, err)
	f.svc, err = NewGatePassService(db, f.bans, f.logs,
		WithGatePassClock(func() time.Time { return f.current }))
	require.NoError(t, err)

	f.property = seedProperty(t, db, "Palm Court")
	f.unit = seedUnit(t, db, f.property.ID, "A1")
	f.tenant = seedAccount(t, db, "tenant@palm.test", models.RoleTenant)
	f.guard = seedAccount(t, db, "guard@palm.test", models.RoleGuard)
	occupyUnit(t, db, f.unit, f.tenant.ID)

	return f
}

func (f *gatePassFixture) issue(t *testing.T, passType string) *models.GatePass {
	t.Helper()
	pass, err := f.svc.Issue(context.Background(), IssuePassInput{
		UnitID:      f.unit.ID,
		IssuerID:    f.tenant.ID,
		VisitorName: "Alice Visitor",
		ValidUntil:  f.current.Add(4 * time.Hour),
		PassType:    passType,
		CodeFormat:  accesscode.FormatNumeric,
	})
	require.NoError(t, err)
	return pass
}

func TestGatePassIssueAndVerify(t *testing.T) {
	f := newGatePassFixture(t)
	pass := f.issue(t, models.PassTypeSingleUse)

	require.Equal(t, models.PassStatusActive, pass.Status)
	require.Len(t, pass.AccessCode, 6)

	result, err := f.svc.Verify(context.Background(), pass.AccessCode, f.guard.ID)
	require.NoError(t, err)
	require.Equal(t, models.AccessOutcomeGranted, result.Outcome)
	require.Equal(t, "A1", result.UnitNumber)
	require.Equal(t, "Palm Court", result.PropertyName)
	require.Equal(t, "Alice Visitor", result.VisitorName)

	var stored models.GatePass
	require.NoError(t, f.db.First(&stored, "id = ?", pass.ID).Error)
	require.Equal(t, models.PassStatusUsed, stored.Status)
	require.NotNil(t, stored.EntryTime)
	require.NotNil(t, stored.GuardID)
	require.Equal(t, f.guard.ID, *stored.GuardID)

	logs, err := f.logs.ListForProperty(context.Background(), f.property.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, models.AccessOutcomeGranted, logs[0].Outcome)
}

func TestGatePassSecondVerificationLoses(t *testing.T) {
	f := newGatePassFixture(t)
	pass := f.issue(t, models.PassTypeSingleUse)

	_, err := f.svc.Verify(context.Background(), pass.AccessCode, f.guard.ID)
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), pass.AccessCode, f.guard.ID)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	var stored models.GatePass
	require.NoError(t, f.db.First(&stored, "id = ?", pass.ID).Error)
	require.Equal(t, models.PassStatusUsed, stored.Status)
}

func TestGatePassVerifyLosesInterleavedRace(t *testing.T) {
	f := newGatePassFixture(t)
	pass := f.issue(t, models.PassTypeSingleUse)
	rival := seedAccount(t, f.db, "rival@palm.test", models.RoleGuard)

	// Redeem the pass from under the verifier between its lookup and its
	// conditional update, as a second guard racing on the same code would.
	stolen := false
	err := f.db.Callback().Query().After("gorm:query").Register("rival_redeem", func(tx *gorm.DB) {
		if stolen || tx.Statement.Table != "gate_passes" {
			return
		}
		stolen = true
		require.NoError(t, f.db.Model(&models.GatePass{}).
			Where("id = ?", pass.ID).
			Updates(map[string]any{
				"status":     models.PassStatusUsed,
				"entry_time": f.current,
				"guard_id":   rival.ID,
			}).Error)
	})
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), pass.AccessCode, f.guard.ID)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	require.True(t, stolen)

	// The winner's redemption is untouched by the loser.
	var stored models.GatePass
	require.NoError(t, f.db.First(&stored, "id = ?", pass.ID).Error)
	require.Equal(t, models.PassStatusUsed, stored.Status)
	require.NotNil(t, stored.GuardID)
	require.Equal(t, rival.ID, *stored.GuardID)

	// The losing attempt is audit-logged as a denial.
	var denials int64
	require.NoError(t, f.db.Model(&models.AccessLog{}).
		Where("pass_id = ? AND outcome = ?", pass.ID, models.AccessOutcomeDenied).
		Count(&denials).Error)
	require.EqualValues(t, 1, denials)
}

func TestGatePassIssueRejectsPastValidity(t *testing.T) {
	f := newGatePassFixture(t)

	_, err := f.svc.Issue(context.Background(), IssuePassInput{
		UnitID:     f.unit.ID,
		IssuerID:   f.tenant.ID,
		ValidUntil: f.current.Add(-time.Minute),
	})
	require.ErrorIs(t, err, ErrInvalidValidity)

	_, err = f.svc.Issue(context.Background(), IssuePassInput{
		UnitID:     f.unit.ID,
		IssuerID:   f.tenant.ID,
		ValidUntil: f.current,
	})
	require.ErrorIs(t, err, ErrInvalidValidity)

	// A window that ends before it starts can never verify either.
	start := f.current.Add(2 * time.Hour)
	_, err = f.svc.Issue(context.Background(), IssuePassInput{
		UnitID:     f.unit.ID,
		IssuerID:   f.tenant.ID,
		ValidFrom:  &start,
		ValidUntil: f.current.Add(time.Hour),
	})
	require.ErrorIs(t, err, ErrInvalidValidity)
}

func TestGatePassIssueRequiresOccupancy(t *testing.T) {
	f := newGatePassFixture(t)
	other := seedAccount(t, f.db, "other@palm.test", models.RoleTenant)

	_, err := f.svc.Issue(context.Background(), IssuePassInput{
		UnitID:     f.unit.ID,
		IssuerID:   other.ID,
		ValidUntil: f.current.Add(time.Hour),
	})
	require.ErrorIs(t, err, ErrUnitNotOccupiedByIssuer)

	vacant := seedUnit(t, f.db, f.property.ID, "B2")
	_, err = f.svc.Issue(context.Background(), IssuePassInput{
		UnitID:     vacant.ID,
		IssuerID:   f.tenant.ID,
		ValidUntil: f.current.Add(time.Hour),
	})
	require.ErrorIs(t, err, ErrUnitNotOccupiedByIssuer)
}

func TestGatePassVerifyExpiredPass(t *testing.T) {
	f := newGatePassFixture(t)
	pass := f.issue(t, models.PassTypeSingleUse)

	f.current = f.current.Add(5 * time.Hour)

	_, err := f.svc.Verify(context.Background(), pass.AccessCode, f.guard.ID)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	// Expiry is derived from the validity window; the row keeps its
	// stored status.
	var stored models.GatePass
	require.NoError(t, f.db.First(&stored, "id = ?", pass.ID).Error)
	require.Equal(t, models.PassStatusActive, stored.Status)
	require.True(t, stored.Expired(f.current))
}

func TestGatePassVerifyBannedVisitorSubstring(t *testing.T) {
	f := newGatePassFixture(t)

	_, err := f.bans.Ban(context.Background(), BanInput{
		PropertyID:  f.property.ID,
		VisitorName: "jane",
		Reason:      "trespass",
		BannedBy:    f.guard.ID,
	})
	require.NoError(t, err)

	pass, err := f.svc.Issue(context.Background(), IssuePassInput{
		UnitID:      f.unit.ID,
		IssuerID:    f.tenant.ID,
		VisitorName: "Jane Doe",
		ValidUntil:  f.current.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), pass.AccessCode, f.guard.ID)
	require.ErrorIs(t, err, ErrVisitorBanned)

	// The pass is left untouched so staff can resolve a false positive.
	var stored models.GatePass
	require.NoError(t, f.db.First(&stored, "id = ?", pass.ID).Error)
	require.Equal(t, models.PassStatusActive, stored.Status)
	require.Nil(t, stored.EntryTime)

	logs, err := f.logs.ListForProperty(context.Background(), f.property.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, models.AccessOutcomeBanned, logs[0].Outcome)
}

func TestGatePassRecurringCheckinCheckout(t *testing.T) {
	f := newGatePassFixture(t)
	pass := f.issue(t, models.PassTypeRecurring)

	result, err := f.svc.Verify(context.Background(), pass.AccessCode, f.guard.ID)
	require.NoError(t, err)
	require.Equal(t, models.PassStatusCheckedIn, result.Pass.Status)

	// A different guard may sign the visitor out; the pass records them.
	relief := seedAccount(t, f.db, "relief@palm.test", models.RoleGuard)
	checked, err := f.svc.Checkout(context.Background(), pass.ID, relief.ID)
	require.NoError(t, err)
	require.Equal(t, models.PassStatusCheckedOut, checked.Status)
	require.NotNil(t, checked.ExitTime)
	require.NotNil(t, checked.GuardID)
	require.Equal(t, relief.ID, *checked.GuardID)

	_, err = f.svc.Checkout(context.Background(), pass.ID, f.guard.ID)
	require.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestGatePassCheckoutRejectsSingleUse(t *testing.T) {
	f := newGatePassFixture(t)
	pass := f.issue(t, models.PassTypeSingleUse)

	_, err := f.svc.Checkout(context.Background(), pass.ID, f.guard.ID)
	require.ErrorIs(t, err, ErrNotRecurring)
}

func TestGatePassRevoke(t *testing.T) {
	f := newGatePassFixture(t)
	pass := f.issue(t, models.PassTypeSingleUse)

	revoked, err := f.svc.Revoke(context.Background(), pass.ID, f.tenant.ID)
	require.NoError(t, err)
	require.Equal(t, models.PassStatusRevoked, revoked.Status)

	_, err = f.svc.Revoke(context.Background(), pass.ID, f.tenant.ID)
	require.ErrorIs(t, err, ErrAlreadyTerminal)

	_, err = f.svc.Verify(context.Background(), pass.AccessCode, f.guard.ID)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestGatePassRevokeMissing(t *testing.T) {
	f := newGatePassFixture(t)

	_, err := f.svc.Revoke(context.Background(), "2f9d9f3e-9c3c-4a36-9f64-000000000000", f.tenant.ID)
	require.ErrorIs(t, err, ErrPassNotFound)
}

func TestGatePassListForTenant(t *testing.T) {
	f := newGatePassFixture(t)
	first := f.issue(t, models.PassTypeSingleUse)
	second := f.issue(t, models.PassTypeRecurring)

	passes, err := f.svc.ListForTenant(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, passes, 2)

	ids := []string{passes[0].ID, passes[1].ID}
	require.Contains(t, ids, first.ID)
	require.Contains(t, ids, second.ID)
}
