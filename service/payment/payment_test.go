package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mahalbook/mahalbook-server/cmd/models"
	"github.com/mahalbook/mahalbook-server/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubGateway creates deterministic orders locally and verifies signatures
// with the same HMAC scheme as the real client.
type stubGateway struct {
	secret     string
	orderCount int
	failCreate bool
}

func (g *stubGateway) CreateOrder(amountMinor int64, currency, receipt string) (*gateway.Order, error) {
	if g.failCreate {
		return nil, gateway.ErrGateway
	}
	g.orderCount++
	return &gateway.Order{
		ID:       fmt.Sprintf("order_stub%03d", g.orderCount),
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.secret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *stubGateway) sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(g.secret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	return hex.EncodeToString(mac.Sum(nil))
}

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
		&models.Booking{},
		&models.BookingContractorItem{},
		&models.Payment{},
	))
	return db
}

// seedBooking creates a pending unpaid booking for userID: a 50000 venue
// plus a 10000 contractor item, totalling 60000.
func seedBooking(t *testing.T, db *gorm.DB, userID uint) *models.Booking {
	t.Helper()

	mahal := &models.Mahal{
		OwnerID: 1, Name: "Grand Palace", Capacity: 500,
		BasePrice: 50000, ApprovalStatus: models.ApprovalApproved, IsActive: true,
	}
	require.NoError(t, db.Create(mahal).Error)

	contractor := &models.Contractor{
		OwnerID: 2, Name: "Royal Caterers", Category: "catering",
		BasePrice: 10000, ApprovalStatus: models.ApprovalApproved, IsActive: true,
	}
	require.NoError(t, db.Create(contractor).Error)

	booking := &models.Booking{
		UserID:        userID,
		MahalID:       mahal.ID,
		EventDate:     time.Now().AddDate(0, 2, 0),
		GuestCount:    200,
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentUnpaid,
		TotalAmount:   60000,
		Items: []models.BookingContractorItem{{
			ContractorID:   contractor.ID,
			PackageID:      "base",
			PackageName:    "Base package",
			PriceAtBooking: 10000,
			Quantity:       1,
		}},
	}
	require.NoError(t, db.Create(booking).Error)
	return booking
}

func TestCreateOrderConvertsToPaise(t *testing.T) {
	db := setupTestDB(t)
	gw := &stubGateway{secret: "test_secret"}
	service := NewService(db, gw)
	booking := seedBooking(t, db, 10)

	payment, order, err := service.CreateOrder(booking.ID, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(6000000), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, float64(60000), payment.Amount)
	assert.Equal(t, models.PaymentStatusCreated, payment.Status)
	assert.Equal(t, order.ID, payment.GatewayOrderID)

	var reloaded models.Booking
	require.NoError(t, db.First(&reloaded, booking.ID).Error)
	require.NotNil(t, reloaded.PaymentID)
	assert.Equal(t, payment.ID, *reloaded.PaymentID)
}

func TestCreateOrderOwnerOnly(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, &stubGateway{secret: "test_secret"})
	booking := seedBooking(t, db, 10)

	_, _, err := service.CreateOrder(booking.ID, 42)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, _, err = service.CreateOrder(9999, 10)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCreateOrderGatewayDown(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, &stubGateway{secret: "test_secret", failCreate: true})
	booking := seedBooking(t, db, 10)

	_, _, err := service.CreateOrder(booking.ID, 10)
	assert.ErrorIs(t, err, gateway.ErrGateway)

	// No payment row should exist for the failed attempt.
	var count int64
	db.Model(&models.Payment{}).Where("booking_id = ?", booking.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestVerifySettlesBooking(t *testing.T) {
	db := setupTestDB(t)
	gw := &stubGateway{secret: "test_secret"}
	service := NewService(db, gw)
	booking := seedBooking(t, db, 10)

	_, order, err := service.CreateOrder(booking.ID, 10)
	require.NoError(t, err)

	payment, settled, err := service.Verify(order.ID, "pay_abc123", gw.sign(order.ID, "pay_abc123"))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, "pay_abc123", payment.GatewayPaymentID)
	assert.Equal(t, models.BookingConfirmed, settled.Status)
	assert.Equal(t, models.PaymentPaid, settled.PaymentStatus)

	var raw map[string]string
	require.NoError(t, json.Unmarshal([]byte(payment.RawResponse), &raw))
	assert.Equal(t, order.ID, raw["razorpay_order_id"])
}

func TestVerifyIdempotent(t *testing.T) {
	db := setupTestDB(t)
	gw := &stubGateway{secret: "test_secret"}
	service := NewService(db, gw)
	booking := seedBooking(t, db, 10)

	_, order, err := service.CreateOrder(booking.ID, 10)
	require.NoError(t, err)

	signature := gw.sign(order.ID, "pay_abc123")
	_, _, err = service.Verify(order.ID, "pay_abc123", signature)
	require.NoError(t, err)

	payment, settled, err := service.Verify(order.ID, "pay_abc123", signature)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, models.BookingConfirmed, settled.Status)
	assert.Equal(t, models.PaymentPaid, settled.PaymentStatus)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	db := setupTestDB(t)
	gw := &stubGateway{secret: "test_secret"}
	service := NewService(db, gw)
	booking := seedBooking(t, db, 10)

	_, order, err := service.CreateOrder(booking.ID, 10)
	require.NoError(t, err)

	_, _, err = service.Verify(order.ID, "pay_abc123", "forged")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Signature for a different payment ID must not settle this one.
	_, _, err = service.Verify(order.ID, "pay_abc123", gw.sign(order.ID, "pay_other"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	var reloadedBooking models.Booking
	require.NoError(t, db.First(&reloadedBooking, booking.ID).Error)
	assert.Equal(t, models.BookingPending, reloadedBooking.Status)
	assert.Equal(t, models.PaymentUnpaid, reloadedBooking.PaymentStatus)

	var reloadedPayment models.Payment
	require.NoError(t, db.Where("gateway_order_id = ?", order.ID).First(&reloadedPayment).Error)
	assert.Equal(t, models.PaymentStatusCreated, reloadedPayment.Status)
}

func TestVerifyUnknownOrder(t *testing.T) {
	db := setupTestDB(t)
	gw := &stubGateway{secret: "test_secret"}
	service := NewService(db, gw)

	_, _, err := service.Verify("order_ghost", "pay_abc123", gw.sign("order_ghost", "pay_abc123"))
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestHandleFailureKeepsBookingPending(t *testing.T) {
	db := setupTestDB(t)
	gw := &stubGateway{secret: "test_secret"}
	service := NewService(db, gw)
	booking := seedBooking(t, db, 10)

	_, order, err := service.CreateOrder(booking.ID, 10)
	require.NoError(t, err)

	payment, err := service.HandleFailure(order.ID, json.RawMessage(`{"code":"BAD_REQUEST_ERROR","description":"Payment declined"}`))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Contains(t, payment.RawResponse, "Payment declined")

	var reloaded models.Booking
	require.NoError(t, db.First(&reloaded, booking.ID).Error)
	assert.Equal(t, models.BookingPending, reloaded.Status)
	assert.Equal(t, models.PaymentUnpaid, reloaded.PaymentStatus)
}

func TestRetryAfterFailureReusesRow(t *testing.T) {
	db := setupTestDB(t)
	gw := &stubGateway{secret: "test_secret"}
	service := NewService(db, gw)
	booking := seedBooking(t, db, 10)

	first, order, err := service.CreateOrder(booking.ID, 10)
	require.NoError(t, err)
	_, err = service.HandleFailure(order.ID, json.RawMessage(`{"code":"BAD_REQUEST_ERROR"}`))
	require.NoError(t, err)

	second, retryOrder, err := service.CreateOrder(booking.ID, 10)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, order.ID, retryOrder.ID)
	assert.Equal(t, models.PaymentStatusCreated, second.Status)
	assert.Empty(t, second.GatewayPaymentID)

	var count int64
	db.Model(&models.Payment{}).Where("booking_id = ?", booking.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSecondPaymentRowRejectedByIndex(t *testing.T) {
	db := setupTestDB(t)
	booking := seedBooking(t, db, 10)

	first := models.Payment{
		BookingID: booking.ID, Gateway: "razorpay",
		GatewayOrderID: "order_one", Amount: 60000, Status: models.PaymentStatusCreated,
	}
	require.NoError(t, db.Create(&first).Error)

	second := models.Payment{
		BookingID: booking.ID, Gateway: "razorpay",
		GatewayOrderID: "order_two", Amount: 60000, Status: models.PaymentStatusCreated,
	}
	err := db.Create(&second).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	var count int64
	db.Model(&models.Payment{}).Where("booking_id = ?", booking.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateOrderRaceReusesWinnerRow(t *testing.T) {
	db := setupTestDB(t)
	gw := &stubGateway{secret: "test_secret"}
	service := NewService(db, gw)
	booking := seedBooking(t, db, 10)

	// A competing request already inserted the booking's payment row.
	winner := models.Payment{
		BookingID: booking.ID, Gateway: "razorpay",
		GatewayOrderID: "order_winner", Amount: 60000, Status: models.PaymentStatusCreated,
	}
	require.NoError(t, db.Create(&winner).Error)

	payment, order, err := service.CreateOrder(booking.ID, 10)
	require.NoError(t, err)

	assert.Equal(t, winner.ID, payment.ID)
	assert.Equal(t, order.ID, payment.GatewayOrderID)

	var count int64
	db.Model(&models.Payment{}).Where("booking_id = ?", booking.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestFailureReportAfterSettleIgnored(t *testing.T) {
	db := setupTestDB(t)
	gw := &stubGateway{secret: "test_secret"}
	service := NewService(db, gw)
	booking := seedBooking(t, db, 10)

	_, order, err := service.CreateOrder(booking.ID, 10)
	require.NoError(t, err)
	_, _, err = service.Verify(order.ID, "pay_abc123", gw.sign(order.ID, "pay_abc123"))
	require.NoError(t, err)

	payment, err := service.HandleFailure(order.ID, json.RawMessage(`{"code":"BAD_REQUEST_ERROR"}`))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)

	var reloaded models.Booking
	require.NoError(t, db.First(&reloaded, booking.ID).Error)
	assert.Equal(t, models.BookingConfirmed, reloaded.Status)
	assert.Equal(t, models.PaymentPaid, reloaded.PaymentStatus)

	_, _, err = service.CreateOrder(booking.ID, 10)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestCreateOrderAfterSuccessBlocked(t *testing.T) {
	db := setupTestDB(t)
	gw := &stubGateway{secret: "test_secret"}
	service := NewService(db, gw)
	booking := seedBooking(t, db, 10)

	_, order, err := service.CreateOrder(booking.ID, 10)
	require.NoError(t, err)
	_, _, err = service.Verify(order.ID, "pay_abc123", gw.sign(order.ID, "pay_abc123"))
	require.NoError(t, err)

	_, _, err = service.CreateOrder(booking.ID, 10)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}
