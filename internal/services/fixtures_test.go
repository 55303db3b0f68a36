package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/estateflow/estateflow/internal/database/testutil"
	"github.com/estateflow/estateflow/internal/models"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func seedProperty(t *testing.T, db *gorm.DB, name string) *models.Property {
	t.Helper()
	property := &models.Property{Name: name, Address: "1 Estate Road"}
	require.NoError(t, db.Create(property).Error)
	return property
}

func seedUnit(t *testing.T, db *gorm.DB, propertyID, number string) *models.Unit {
	t.Helper()
	unit := &models.Unit{PropertyID: propertyID, UnitNumber: number, RentAmount: 1200}
	require.NoError(t, db.Create(unit).Error)
	return unit
}

func seedAccount(t *testing.T, db *gorm.DB, email, role string) *models.Account {
	t.Helper()
	svc, err := NewAccountService(db)
	require.NoError(t, err)

	account, err := svc.Create(context.Background(), CreateAccountInput{
		Email:    email,
		Password: "TestPass123!",
		Role:     role,
	})
	require.NoError(t, err)
	return account
}

func occupyUnit(t *testing.T, db *gorm.DB, unit *models.Unit, tenantID string) {
	t.Helper()
	require.NoError(t, db.Model(unit).Updates(map[string]any{
		"current_tenant_id": tenantID,
		"occupied":          true,
	}).Error)
	unit.CurrentTenantID = &tenantID
	unit.Occupied = true
}
