package cart

import (
	"errors"
	"strings"
	"time"

	"github.com/mahalbook/mahalbook-server/cmd/models"
	"gorm.io/gorm"
)

var (
	// ErrListingUnavailable covers both a missing listing and one whose
	// approval state forbids selection.
	ErrListingUnavailable = errors.New("listing is not available for booking")
	ErrDuplicateSelection = errors.New("contractor is already in the cart")
	ErrNothingToRemove    = errors.New("no mahal in cart")
)

// Store implements the per-user cart. All coordination runs through the
// storage layer: the unique index on user_id keeps first-access races from
// producing two carts, and the composite index on (cart_id, contractor_id)
// enforces set semantics under concurrent adds.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "UNIQUE constraint")
}

// GetOrCreate returns the user's cart, creating it lazily on first access.
// A lost insert race falls back to reading the winner's row.
func (s *Store) GetOrCreate(userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cart = models.Cart{UserID: userID}
		err = s.db.Create(&cart).Error
		if isUniqueViolation(err) {
			err = s.db.Where("user_id = ?", userID).First(&cart).Error
		}
	}
	if err != nil {
		return nil, err
	}
	return s.load(cart.ID)
}

func (s *Store) load(cartID uint) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.Preload("Mahal").
		Preload("Contractors").
		Preload("Contractors.Contractor").
		First(&cart, cartID).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// SetMahal selects a venue, replacing any previous selection. Declined
// venues are unavailable; pending ones are allowed so owners can preview
// the booking flow before approval.
func (s *Store) SetMahal(userID, mahalID uint, eventDate *time.Time) (*models.Cart, error) {
	var mahal models.Mahal
	if err := s.db.First(&mahal, mahalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingUnavailable
		}
		return nil, err
	}
	if mahal.ApprovalStatus == models.ApprovalDeclined {
		return nil, ErrListingUnavailable
	}

	cart, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"mahal_id": mahalID}
	if eventDate != nil {
		updates["event_date"] = *eventDate
	}
	if err := s.db.Model(&models.Cart{}).Where("id = ?", cart.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.load(cart.ID)
}

// ClearMahal removes the venue selection and its event date.
func (s *Store) ClearMahal(userID uint) (*models.Cart, error) {
	cart, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}
	if cart.MahalID == nil {
		return nil, ErrNothingToRemove
	}
	err = s.db.Model(&models.Cart{}).Where("id = ?", cart.ID).Updates(map[string]interface{}{
		"mahal_id":   nil,
		"event_date": nil,
	}).Error
	if err != nil {
		return nil, err
	}
	return s.load(cart.ID)
}

// AddContractor adds an approved contractor to the selection set.
func (s *Store) AddContractor(userID, contractorID uint) (*models.Cart, error) {
	var contractor models.Contractor
	if err := s.db.First(&contractor, contractorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingUnavailable
		}
		return nil, err
	}
	if contractor.ApprovalStatus != models.ApprovalApproved {
		return nil, ErrListingUnavailable
	}

	cart, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	item := models.CartContractor{CartID: cart.ID, ContractorID: contractorID}
	if err := s.db.Create(&item).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSelection
		}
		return nil, err
	}
	return s.load(cart.ID)
}

// RemoveContractor removes a contractor from the set. Removal is
// idempotent: removing an absent contractor succeeds quietly.
func (s *Store) RemoveContractor(userID, contractorID uint) (*models.Cart, error) {
	cart, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}
	err = s.db.Where("cart_id = ? AND contractor_id = ?", cart.ID, contractorID).
		Delete(&models.CartContractor{}).Error
	if err != nil {
		return nil, err
	}
	return s.load(cart.ID)
}

// Reset empties the cart entirely. Always succeeds for an existing user.
func (s *Store) Reset(userID uint) (*models.Cart, error) {
	cart, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	if err := tx.Model(&models.Cart{}).Where("id = ?", cart.ID).Updates(map[string]interface{}{
		"mahal_id":   nil,
		"event_date": nil,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartContractor{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return s.load(cart.ID)
}
