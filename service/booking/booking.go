package booking

import (
	"errors"
	"time"

	"github.com/mahalbook/mahalbook-server/cmd/models"
	"gorm.io/gorm"
)

var (
	ErrEmptyCart         = errors.New("no mahal selected in cart")
	ErrInvalidEventDate  = errors.New("event date must be in the future")
	ErrInvalidGuestCount = errors.New("guest count must be at least 1")
	ErrAccessDenied      = errors.New("not authorized for this booking")
	ErrInvalidStatus     = errors.New("invalid booking status")
	ErrInvalidTransition = errors.New("booking status transition not allowed")
)

// allowedTransitions is the admin status transition table. Completed is
// terminal and a cancelled booking cannot be revived.
var allowedTransitions = map[string]map[string]bool{
	models.BookingPending: {
		models.BookingConfirmed: true,
		models.BookingCancelled: true,
		models.BookingCompleted: true,
	},
	models.BookingConfirmed: {
		models.BookingCancelled: true,
		models.BookingCompleted: true,
	},
	models.BookingCancelled: {},
	models.BookingCompleted: {},
}

// Engine converts carts into immutable bookings and guards their status
// lifecycle. Payment-driven transitions live in the payment service.
type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// Create materializes the user's cart into a booking. The booking insert
// and the cart clear commit together: the caller never observes a booking
// without an emptied cart or vice versa.
func (e *Engine) Create(userID uint, eventDate time.Time, guestCount int, specialRequests string) (*models.Booking, error) {
	now := time.Now()
	if !eventDate.After(now) {
		return nil, ErrInvalidEventDate
	}
	if guestCount < 1 {
		return nil, ErrInvalidGuestCount
	}

	tx := e.db.Begin()

	var cart models.Cart
	err := tx.Preload("Contractors").Preload("Contractors.Contractor").
		Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return nil, ErrEmptyCart
	}
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if cart.MahalID == nil {
		tx.Rollback()
		return nil, ErrEmptyCart
	}

	var mahal models.Mahal
	if err := tx.First(&mahal, *cart.MahalID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	total := mahal.BasePrice
	var items []models.BookingContractorItem
	for _, selection := range cart.Contractors {
		if selection.Contractor == nil {
			continue
		}
		// Snapshot the contractor's current base price. The stored
		// price_at_booking stays fixed even if the contractor reprices.
		item := models.BookingContractorItem{
			ContractorID:   selection.ContractorID,
			PackageID:      "base",
			PackageName:    "Base package",
			PriceAtBooking: selection.Contractor.BasePrice,
			Quantity:       1,
		}
		total += item.PriceAtBooking
		items = append(items, item)
	}

	booking := models.Booking{
		UserID:          userID,
		MahalID:         *cart.MahalID,
		EventDate:       eventDate,
		GuestCount:      guestCount,
		Status:          models.BookingPending,
		PaymentStatus:   models.PaymentUnpaid,
		TotalAmount:     total,
		SpecialRequests: specialRequests,
		Items:           items,
	}

	if err := tx.Create(&booking).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

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

	return e.load(booking.ID)
}

func (e *Engine) load(id uint) (*models.Booking, error) {
	var booking models.Booking
	err := e.db.Preload("Mahal").
		Preload("Items").
		Preload("Items.Contractor").
		First(&booking, id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// Get returns the booking if the requester is the creating user, the venue
// owner, one of the referenced contractor owners, or an admin.
func (e *Engine) Get(id, requesterID uint, role string) (*models.Booking, error) {
	booking, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if !e.canView(booking, requesterID, role) {
		return nil, ErrAccessDenied
	}
	return booking, nil
}

func (e *Engine) canView(booking *models.Booking, requesterID uint, role string) bool {
	if role == models.RoleAdmin {
		return true
	}
	if booking.UserID == requesterID {
		return true
	}
	if booking.Mahal != nil && booking.Mahal.OwnerID == requesterID {
		return true
	}
	for _, item := range booking.Items {
		if item.Contractor != nil && item.Contractor.OwnerID == requesterID {
			return true
		}
	}
	return false
}

// UpdateStatus applies an admin status change through the transition table.
func (e *Engine) UpdateStatus(id uint, newStatus string) (*models.Booking, error) {
	if newStatus != models.BookingConfirmed &&
		newStatus != models.BookingCancelled &&
		newStatus != models.BookingCompleted {
		return nil, ErrInvalidStatus
	}

	booking, err := e.load(id)
	if err != nil {
		return nil, err
	}

	if !allowedTransitions[booking.Status][newStatus] {
		return nil, ErrInvalidTransition
	}

	if err := e.db.Model(&models.Booking{}).Where("id = ?", id).
		Update("status", newStatus).Error; err != nil {
		return nil, err
	}
	return e.load(id)
}

// ListForUser returns the requester's own bookings.
func (e *Engine) ListForUser(userID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := e.db.Preload("Mahal").Preload("Items").Preload("Items.Contractor").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bookings).Error
	return bookings, err
}

// ListForMahalOwner returns bookings against any venue the owner holds.
func (e *Engine) ListForMahalOwner(ownerID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := e.db.Preload("Mahal").Preload("Items").Preload("Items.Contractor").
		Joins("JOIN mahals ON mahals.id = bookings.mahal_id").
		Where("mahals.owner_id = ?", ownerID).
		Order("bookings.created_at DESC").
		Find(&bookings).Error
	return bookings, err
}

// ListForContractorOwner returns bookings referencing any contractor the
// owner holds.
func (e *Engine) ListForContractorOwner(ownerID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := e.db.Preload("Mahal").Preload("Items").Preload("Items.Contractor").
		Joins("JOIN booking_contractor_items ON booking_contractor_items.booking_id = bookings.id").
		Joins("JOIN contractors ON contractors.id = booking_contractor_items.contractor_id").
		Where("contractors.owner_id = ?", ownerID).
		Distinct().
		Order("bookings.created_at DESC").
		Find(&bookings).Error
	return bookings, err
}
