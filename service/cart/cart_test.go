package cart

import (
	"testing"
	"time"

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
		&models.Mahal{},
		&models.Contractor{},
		&models.Cart{},
		&models.CartContractor{},
	))
	return db
}

func createMahal(t *testing.T, db *gorm.DB, status string) *models.Mahal {
	t.Helper()
	mahal := &models.Mahal{
		OwnerID:        1,
		Name:           "Grand Palace",
		Capacity:       500,
		BasePrice:      50000,
		ApprovalStatus: status,
		IsActive:       true,
	}
	require.NoError(t, db.Create(mahal).Error)
	return mahal
}

func createContractor(t *testing.T, db *gorm.DB, status string) *models.Contractor {
	t.Helper()
	contractor := &models.Contractor{
		OwnerID:        2,
		Name:           "Royal Caterers",
		Category:       "catering",
		BasePrice:      10000,
		ApprovalStatus: status,
		IsActive:       true,
	}
	require.NoError(t, db.Create(contractor).Error)
	return contractor
}

func TestGetOrCreateReturnsSameCart(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	first, err := store.GetOrCreate(10)
	require.NoError(t, err)
	second, err := store.GetOrCreate(10)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&models.Cart{}).Where("user_id = ?", 10).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGetOrCreateFirstAccessRace(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	// The winner of a first-access race has already inserted the row.
	winner := models.Cart{UserID: 10}
	require.NoError(t, db.Create(&winner).Error)

	// The loser's insert must be rejected by the unique index and
	// recognized as a violation, which GetOrCreate resolves by re-reading.
	err := db.Create(&models.Cart{UserID: 10}).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	cart, err := store.GetOrCreate(10)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, cart.ID)

	var count int64
	db.Model(&models.Cart{}).Where("user_id = ?", 10).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSetMahalReplacesSelection(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	first := createMahal(t, db, models.ApprovalApproved)
	second := createMahal(t, db, models.ApprovalApproved)

	eventDate := time.Now().AddDate(0, 1, 0)
	cart, err := store.SetMahal(10, first.ID, &eventDate)
	require.NoError(t, err)
	require.NotNil(t, cart.MahalID)
	assert.Equal(t, first.ID, *cart.MahalID)
	require.NotNil(t, cart.EventDate)

	cart, err = store.SetMahal(10, second.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, cart.MahalID)
	assert.Equal(t, second.ID, *cart.MahalID)
}

func TestSetMahalDeclinedUnavailable(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	declined := createMahal(t, db, models.ApprovalDeclined)

	_, err := store.SetMahal(10, declined.ID, nil)
	assert.ErrorIs(t, err, ErrListingUnavailable)

	_, err = store.SetMahal(10, 9999, nil)
	assert.ErrorIs(t, err, ErrListingUnavailable)
}

func TestSetMahalPendingAllowed(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	pending := createMahal(t, db, models.ApprovalPending)

	cart, err := store.SetMahal(10, pending.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, cart.MahalID)
	assert.Equal(t, pending.ID, *cart.MahalID)
}

func TestClearMahal(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	mahal := createMahal(t, db, models.ApprovalApproved)

	eventDate := time.Now().AddDate(0, 1, 0)
	_, err := store.SetMahal(10, mahal.ID, &eventDate)
	require.NoError(t, err)

	cart, err := store.ClearMahal(10)
	require.NoError(t, err)
	assert.Nil(t, cart.MahalID)
	assert.Nil(t, cart.EventDate)
}

func TestClearMahalWithoutSelection(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	_, err := store.ClearMahal(10)
	assert.ErrorIs(t, err, ErrNothingToRemove)
}

func TestAddContractor(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	contractor := createContractor(t, db, models.ApprovalApproved)

	cart, err := store.AddContractor(10, contractor.ID)
	require.NoError(t, err)
	require.Len(t, cart.Contractors, 1)
	assert.Equal(t, contractor.ID, cart.Contractors[0].ContractorID)
}

func TestAddContractorDuplicate(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	contractor := createContractor(t, db, models.ApprovalApproved)

	_, err := store.AddContractor(10, contractor.ID)
	require.NoError(t, err)

	_, err = store.AddContractor(10, contractor.ID)
	assert.ErrorIs(t, err, ErrDuplicateSelection)

	cart, err := store.GetOrCreate(10)
	require.NoError(t, err)
	assert.Len(t, cart.Contractors, 1)
}

func TestAddContractorRequiresApproval(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	pending := createContractor(t, db, models.ApprovalPending)
	declined := createContractor(t, db, models.ApprovalDeclined)

	_, err := store.AddContractor(10, pending.ID)
	assert.ErrorIs(t, err, ErrListingUnavailable)

	_, err = store.AddContractor(10, declined.ID)
	assert.ErrorIs(t, err, ErrListingUnavailable)

	_, err = store.AddContractor(10, 9999)
	assert.ErrorIs(t, err, ErrListingUnavailable)
}

func TestRemoveContractorIdempotent(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	contractor := createContractor(t, db, models.ApprovalApproved)

	_, err := store.AddContractor(10, contractor.ID)
	require.NoError(t, err)

	cart, err := store.RemoveContractor(10, contractor.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Contractors)

	cart, err = store.RemoveContractor(10, contractor.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Contractors)
}

func TestSameContractorInTwoCarts(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	contractor := createContractor(t, db, models.ApprovalApproved)

	_, err := store.AddContractor(10, contractor.ID)
	require.NoError(t, err)
	cart, err := store.AddContractor(11, contractor.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Contractors, 1)
}

func TestReset(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	mahal := createMahal(t, db, models.ApprovalApproved)
	contractor := createContractor(t, db, models.ApprovalApproved)

	eventDate := time.Now().AddDate(0, 1, 0)
	_, err := store.SetMahal(10, mahal.ID, &eventDate)
	require.NoError(t, err)
	_, err = store.AddContractor(10, contractor.ID)
	require.NoError(t, err)

	cart, err := store.Reset(10)
	require.NoError(t, err)
	assert.Nil(t, cart.MahalID)
	assert.Nil(t, cart.EventDate)
	assert.Empty(t, cart.Contractors)
}
