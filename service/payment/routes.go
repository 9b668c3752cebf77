package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mahalbook/mahalbook-server/cmd/models"
	"github.com/mahalbook/mahalbook-server/cmd/utils"
	"github.com/mahalbook/mahalbook-server/gateway"
	"github.com/mahalbook/mahalbook-server/service/activity"
	"github.com/mahalbook/mahalbook-server/service/notifications"
	"gorm.io/gorm"
)

type Handler struct {
	db       *gorm.DB
	service  *Service
	keyID    string
	logger   *activity.Logger
	notifier *notifications.Notifier
}

func NewHandler(db *gorm.DB, gw *gateway.Client, logger *activity.Logger, notifier *notifications.Notifier) *Handler {
	return &Handler{
		db:       db,
		service:  NewService(db, gw),
		keyID:    gw.KeyID(),
		logger:   logger,
		notifier: notifier,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	paymentRouter := router.PathPrefix("/payments").Subrouter()

	paymentRouter.HandleFunc("/create-order", utils.AuthMiddleware(h.CreateOrder)).Methods("POST")
	paymentRouter.HandleFunc("/verify", utils.AuthMiddleware(h.VerifyPayment)).Methods("POST")
	paymentRouter.HandleFunc("/failure", utils.AuthMiddleware(h.HandlePaymentFailure)).Methods("POST")
	paymentRouter.HandleFunc("/my/history", utils.AuthMiddleware(h.GetMyPayments)).Methods("GET")
	paymentRouter.HandleFunc("/{id}", utils.AuthMiddleware(h.GetPayment)).Methods("GET")
}

// CreateOrder opens a gateway order for a booking owned by the caller.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var orderRequest struct {
		BookingID uint `json:"booking_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&orderRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if orderRequest.BookingID == 0 {
		utils.WriteError(w, http.StatusBadRequest, "booking_id is required")
		return
	}

	payment, order, err := h.service.CreateOrder(orderRequest.BookingID, userID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.WriteError(w, http.StatusNotFound, "Booking not found")
		case errors.Is(err, ErrAccessDenied):
			utils.WriteError(w, http.StatusForbidden, "Not authorized to pay for this booking")
		case errors.Is(err, ErrAlreadyPaid):
			utils.WriteError(w, http.StatusConflict, "Payment already completed for this booking")
		case errors.Is(err, gateway.ErrGateway):
			utils.WriteError(w, http.StatusBadGateway, "Payment service unavailable, try again later")
		default:
			utils.WriteError(w, http.StatusInternalServerError, "Error creating payment order")
		}
		return
	}

	utils.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"order_id": order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
		"key_id":   h.keyID,
		"payment":  payment,
	})
}

// VerifyPayment consumes the gateway callback and settles the booking.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r)

	var verifyRequest struct {
		RazorpayOrderID   string `json:"razorpay_order_id"`
		RazorpayPaymentID string `json:"razorpay_payment_id"`
		RazorpaySignature string `json:"razorpay_signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&verifyRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, booking, err := h.service.Verify(
		verifyRequest.RazorpayOrderID,
		verifyRequest.RazorpayPaymentID,
		verifyRequest.RazorpaySignature,
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			utils.WriteError(w, http.StatusBadRequest, "Invalid payment signature")
		case errors.Is(err, ErrPaymentNotFound):
			utils.WriteError(w, http.StatusNotFound, "Payment record not found")
		default:
			utils.WriteError(w, http.StatusInternalServerError, "Error verifying payment")
		}
		return
	}

	h.logger.Log(activity.Entry{
		UserID:      userID,
		Action:      "payment_verified",
		Description: fmt.Sprintf("Payment %d confirmed for booking %d", payment.ID, booking.ID),
		TargetType:  "payment",
		TargetID:    payment.ID,
		IPAddress:   activity.IPAddress(r),
		UserAgent:   activity.UserAgent(r),
	})

	h.notifier.PushToUser(booking.UserID, "Booking confirmed",
		fmt.Sprintf("Your booking for %s is confirmed.", booking.EventDate.Format("2 Jan 2006")),
		map[string]string{"booking_id": fmt.Sprintf("%d", booking.ID)})

	h.sendConfirmationEmail(booking)

	utils.WriteSuccessMessage(w, http.StatusOK, "Payment verified successfully", map[string]interface{}{
		"payment": payment,
		"booking": booking,
	})
}

// sendConfirmationEmail mails the booking owner in the background.
// Delivery failures are logged and otherwise ignored.
func (h *Handler) sendConfirmationEmail(booking *models.Booking) {
	go func() {
		var user models.User
		if err := h.db.First(&user, booking.UserID).Error; err != nil {
			log.Printf("Error loading user %d for confirmation email: %v", booking.UserID, err)
			return
		}
		body := fmt.Sprintf(
			"<h2>Booking confirmed</h2><p>Your booking #%d for %s is confirmed. Amount paid: %.2f INR.</p>",
			booking.ID, booking.EventDate.Format("2 January 2006"), booking.TotalAmount,
		)
		if err := utils.SendEmail(user.Email, "Your booking is confirmed", body); err != nil {
			log.Printf("Error sending confirmation email for booking %d: %v", booking.ID, err)
		}
	}()
}

// HandlePaymentFailure records a failed attempt reported by the client.
func (h *Handler) HandlePaymentFailure(w http.ResponseWriter, r *http.Request) {
	var failureRequest struct {
		RazorpayOrderID string          `json:"razorpay_order_id"`
		Error           json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(r.Body).Decode(&failureRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, err := h.service.HandleFailure(failureRequest.RazorpayOrderID, failureRequest.Error)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Payment record not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Error recording payment failure")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Response{
		Success: false,
		Message: "Payment failed",
		Data:    payment,
	})
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	role, _ := utils.GetRoleFromContext(r)

	vars := mux.Vars(r)
	paymentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}

	payment, err := h.service.Get(uint(paymentID), userID, role)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.WriteError(w, http.StatusNotFound, "Payment not found")
		case errors.Is(err, ErrAccessDenied):
			utils.WriteError(w, http.StatusForbidden, "Not authorized to view this payment")
		default:
			utils.WriteError(w, http.StatusInternalServerError, "Error retrieving payment")
		}
		return
	}

	utils.WriteSuccess(w, http.StatusOK, payment)
}

func (h *Handler) GetMyPayments(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	payments, err := h.service.ListForUser(userID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error retrieving payments")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, payments)
}
