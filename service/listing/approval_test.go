package listing

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mahalbook/mahalbook-server/cmd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Mahal{},
		&models.Contractor{},
		&models.ContractorPackage{},
		&models.Service{},
	))
	return db
}

func createMahal(t *testing.T, db *gorm.DB, ownerID uint, status string) *models.Mahal {
	t.Helper()
	mahal := &models.Mahal{
		OwnerID:        ownerID,
		Name:           "Grand Palace",
		City:           "Chennai",
		Capacity:       500,
		BasePrice:      50000,
		ApprovalStatus: status,
		IsActive:       true,
	}
	require.NoError(t, db.Create(mahal).Error)
	return mahal
}

func TestDecideApprove(t *testing.T) {
	db := setupTestDB(t)
	mahal := createMahal(t, db, 1, models.ApprovalPending)

	summary, err := Decide(db, KindMahal, mahal.ID, models.ApprovalApproved, "")
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalApproved, summary.ApprovalStatus)
	assert.Empty(t, summary.RejectionReason)
}

func TestDecideDeclineRequiresReason(t *testing.T) {
	db := setupTestDB(t)
	mahal := createMahal(t, db, 1, models.ApprovalPending)

	_, err := Decide(db, KindMahal, mahal.ID, models.ApprovalDeclined, "   ")
	assert.ErrorIs(t, err, ErrReasonRequired)

	summary, err := Decide(db, KindMahal, mahal.ID, models.ApprovalDeclined, "Incomplete address details")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalDeclined, summary.ApprovalStatus)
	assert.Equal(t, "Incomplete address details", summary.RejectionReason)
}

func TestDecideRejectsInvalidDecision(t *testing.T) {
	db := setupTestDB(t)
	mahal := createMahal(t, db, 1, models.ApprovalPending)

	_, err := Decide(db, KindMahal, mahal.ID, "pending", "")
	assert.ErrorIs(t, err, ErrInvalidDecision)

	_, err = Decide(db, KindMahal, mahal.ID, "banana", "")
	assert.ErrorIs(t, err, ErrInvalidDecision)
}

func TestDecideApproveClearsRejectionReason(t *testing.T) {
	db := setupTestDB(t)
	mahal := createMahal(t, db, 1, models.ApprovalPending)

	_, err := Decide(db, KindMahal, mahal.ID, models.ApprovalDeclined, "Blurry photos")
	require.NoError(t, err)

	summary, err := Decide(db, KindMahal, mahal.ID, models.ApprovalApproved, "")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, summary.ApprovalStatus)
	assert.Empty(t, summary.RejectionReason)
}

func TestDecideUnknownKind(t *testing.T) {
	db := setupTestDB(t)
	_, err := Decide(db, Kind("venue"), 1, models.ApprovalApproved, "")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecideWorksForAllKinds(t *testing.T) {
	db := setupTestDB(t)

	contractor := &models.Contractor{OwnerID: 2, Name: "Royal Caterers", Category: "catering", BasePrice: 10000, ApprovalStatus: models.ApprovalPending, IsActive: true}
	require.NoError(t, db.Create(contractor).Error)
	service := &models.Service{OwnerID: 3, Name: "DJ Nights", Category: "music", BasePrice: 5000, ApprovalStatus: models.ApprovalPending, IsActive: true}
	require.NoError(t, db.Create(service).Error)

	cs, err := Decide(db, KindContractor, contractor.ID, models.ApprovalApproved, "")
	require.NoError(t, err)
	assert.Equal(t, KindContractor, cs.Kind)
	assert.Equal(t, models.ApprovalApproved, cs.ApprovalStatus)

	ss, err := Decide(db, KindService, service.ID, models.ApprovalDeclined, "Duplicate listing")
	require.NoError(t, err)
	assert.Equal(t, KindService, ss.Kind)
	assert.Equal(t, models.ApprovalDeclined, ss.ApprovalStatus)
}

func TestResetOnEdit(t *testing.T) {
	db := setupTestDB(t)
	approved := createMahal(t, db, 1, models.ApprovalApproved)

	require.NoError(t, ResetOnEdit(db, KindMahal, approved.ID))

	_, summary, err := Fetch(db, KindMahal, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, summary.ApprovalStatus)
}

func TestResetOnEditClearsReasonForDeclined(t *testing.T) {
	db := setupTestDB(t)
	mahal := createMahal(t, db, 1, models.ApprovalPending)

	_, err := Decide(db, KindMahal, mahal.ID, models.ApprovalDeclined, "Capacity unverified")
	require.NoError(t, err)

	require.NoError(t, ResetOnEdit(db, KindMahal, mahal.ID))

	_, summary, err := Fetch(db, KindMahal, mahal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, summary.ApprovalStatus)
	assert.Empty(t, summary.RejectionReason)
}

func TestVisibleTo(t *testing.T) {
	approvedSummary := Summary{ID: 1, OwnerID: 7, ApprovalStatus: models.ApprovalApproved}
	pendingSummary := Summary{ID: 2, OwnerID: 7, ApprovalStatus: models.ApprovalPending}

	assert.True(t, VisibleTo(approvedSummary, 0, ""))
	assert.True(t, VisibleTo(pendingSummary, 7, models.RoleMahalOwner))
	assert.True(t, VisibleTo(pendingSummary, 99, models.RoleAdmin))
	assert.False(t, VisibleTo(pendingSummary, 8, models.RoleUser))
	assert.False(t, VisibleTo(pendingSummary, 0, ""))
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("mahal")
	require.NoError(t, err)
	assert.Equal(t, KindMahal, kind)

	_, err = ParseKind("venue")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
