package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/mahalbook/mahalbook-server/cmd/models"
	"github.com/mahalbook/mahalbook-server/gateway"
	"gorm.io/gorm"
)

var (
	ErrAlreadyPaid      = errors.New("payment already completed for this booking")
	ErrAccessDenied     = errors.New("not authorized for this payment")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrPaymentNotFound  = errors.New("payment record not found")
)

// Gateway is the slice of the Razorpay client the reconciliation core
// depends on. Kept as an interface so tests can stub order creation.
type Gateway interface {
	CreateOrder(amountMinor int64, currency, receipt string) (*gateway.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// Service reconciles bookings with the payment gateway. Marking a booking
// paid happens here and only here, driven by a verified signature.
type Service struct {
	db *gorm.DB
	gw Gateway
}

func NewService(db *gorm.DB, gw Gateway) *Service {
	return &Service{db: db, gw: gw}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "UNIQUE constraint")
}

// CreateOrder registers a gateway order for the booking's total. A prior
// non-success payment row is overwritten; a success payment blocks further
// orders.
func (s *Service) CreateOrder(bookingID, requesterID uint) (*models.Payment, *gateway.Order, error) {
	var booking models.Booking
	if err := s.db.First(&booking, bookingID).Error; err != nil {
		return nil, nil, err
	}
	if booking.UserID != requesterID {
		return nil, nil, ErrAccessDenied
	}

	var existing models.Payment
	hasExisting := true
	if err := s.db.Where("booking_id = ?", bookingID).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}
		hasExisting = false
	}
	if hasExisting && existing.Status == models.PaymentStatusSuccess {
		return nil, nil, ErrAlreadyPaid
	}

	// The gateway takes the amount in paise.
	amountMinor := int64(math.Round(booking.TotalAmount * 100))
	receipt := fmt.Sprintf("booking_%d_%s", bookingID, uuid.NewString()[:8])

	order, err := s.gw.CreateOrder(amountMinor, "INR", receipt)
	if err != nil {
		return nil, nil, err
	}

	var payment models.Payment
	if hasExisting {
		existing.GatewayOrderID = order.ID
		existing.GatewayPaymentID = ""
		existing.Amount = booking.TotalAmount
		existing.Status = models.PaymentStatusCreated
		existing.RawResponse = ""
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, nil, err
		}
		payment = existing
	} else {
		payment = models.Payment{
			BookingID:      bookingID,
			Gateway:        "razorpay",
			GatewayOrderID: order.ID,
			Amount:         booking.TotalAmount,
			Status:         models.PaymentStatusCreated,
		}
		if err := s.db.Create(&payment).Error; err != nil {
			if !isUniqueViolation(err) {
				return nil, nil, err
			}
			// Lost a create race: the unique index on booking_id kept the
			// second row out. Re-read the winner and take over its slot,
			// unless it already settled.
			if err := s.db.Where("booking_id = ?", bookingID).First(&payment).Error; err != nil {
				return nil, nil, err
			}
			if payment.Status == models.PaymentStatusSuccess {
				return nil, nil, ErrAlreadyPaid
			}
			payment.GatewayOrderID = order.ID
			payment.GatewayPaymentID = ""
			payment.Amount = booking.TotalAmount
			payment.Status = models.PaymentStatusCreated
			payment.RawResponse = ""
			if err := s.db.Save(&payment).Error; err != nil {
				return nil, nil, err
			}
		}
	}

	if err := s.db.Model(&models.Booking{}).Where("id = ?", bookingID).
		Update("payment_id", payment.ID).Error; err != nil {
		return nil, nil, err
	}

	return &payment, order, nil
}

// Verify checks the gateway signature and, on a match, marks the payment
// successful and the booking confirmed/paid in one transaction. This is the
// only path by which a booking becomes paid. A replayed valid callback is a
// no-op returning the already-confirmed state.
func (s *Service) Verify(orderID, paymentID, signature string) (*models.Payment, *models.Booking, error) {
	if !s.gw.VerifySignature(orderID, paymentID, signature) {
		return nil, nil, ErrInvalidSignature
	}

	var payment models.Payment
	if err := s.db.Where("gateway_order_id = ?", orderID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPaymentNotFound
		}
		return nil, nil, err
	}

	var booking models.Booking
	if err := s.db.First(&booking, payment.BookingID).Error; err != nil {
		return nil, nil, err
	}

	// Duplicate delivery of the same confirmation.
	if payment.Status == models.PaymentStatusSuccess {
		return &payment, &booking, nil
	}

	raw, _ := json.Marshal(map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  signature,
	})

	tx := s.db.Begin()
	if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(map[string]interface{}{
		"status":             models.PaymentStatusSuccess,
		"gateway_payment_id": paymentID,
		"raw_response":       string(raw),
	}).Error; err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if err := tx.Model(&models.Booking{}).Where("id = ?", payment.BookingID).Updates(map[string]interface{}{
		"status":         models.BookingConfirmed,
		"payment_status": models.PaymentPaid,
	}).Error; err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, nil, err
	}

	if err := s.db.First(&payment, payment.ID).Error; err != nil {
		return nil, nil, err
	}
	if err := s.db.First(&booking, payment.BookingID).Error; err != nil {
		return nil, nil, err
	}
	return &payment, &booking, nil
}

// HandleFailure records a failed gateway attempt. The booking stays
// pending/unpaid so the user can retry with a fresh order. A settled
// payment is immutable: a late failure report for it is ignored and the
// settled state returned.
func (s *Service) HandleFailure(orderID string, errorPayload json.RawMessage) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.Where("gateway_order_id = ?", orderID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if payment.Status == models.PaymentStatusSuccess {
		return &payment, nil
	}

	raw, _ := json.Marshal(map[string]interface{}{"error": json.RawMessage(errorPayload)})
	if err := s.db.Model(&models.Payment{}).
		Where("id = ? AND status <> ?", payment.ID, models.PaymentStatusSuccess).
		Updates(map[string]interface{}{
			"status":       models.PaymentStatusFailed,
			"raw_response": string(raw),
		}).Error; err != nil {
		return nil, err
	}

	if err := s.db.First(&payment, payment.ID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// Get returns a payment to its booking's owner or an admin.
func (s *Service) Get(id, requesterID uint, role string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.Preload("Booking").Preload("Booking.Mahal").First(&payment, id).Error; err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && (payment.Booking == nil || payment.Booking.UserID != requesterID) {
		return nil, ErrAccessDenied
	}
	return &payment, nil
}

// ListForUser returns the payment history across the user's bookings.
func (s *Service) ListForUser(userID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.Preload("Booking").Preload("Booking.Mahal").
		Joins("JOIN bookings ON bookings.id = payments.booking_id").
		Where("bookings.user_id = ?", userID).
		Order("payments.created_at DESC").
		Find(&payments).Error
	return payments, err
}
