package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mahalbook/mahalbook-server/cmd/models"
	"github.com/mahalbook/mahalbook-server/cmd/utils"
	"github.com/mahalbook/mahalbook-server/service/activity"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	engine *Engine
	logger *activity.Logger
}

func NewHandler(db *gorm.DB, logger *activity.Logger) *Handler {
	return &Handler{db: db, engine: NewEngine(db), logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	bookingRouter := router.PathPrefix("/bookings").Subrouter()

	bookingRouter.HandleFunc("", utils.AuthMiddleware(h.CreateBooking)).Methods("POST")
	bookingRouter.HandleFunc("/my", utils.AuthMiddleware(h.GetMyBookings)).Methods("GET")
	bookingRouter.HandleFunc("/mahal-owner", utils.RequireAnyRole(h.GetMahalBookings, models.RoleMahalOwner, models.RoleAdmin)).Methods("GET")
	bookingRouter.HandleFunc("/contractor", utils.RequireAnyRole(h.GetContractorBookings, models.RoleContractor, models.RoleAdmin)).Methods("GET")
	bookingRouter.HandleFunc("/all", utils.RequireAnyRole(h.GetAllBookings, models.RoleAdmin)).Methods("GET")
	bookingRouter.HandleFunc("/{id}", utils.AuthMiddleware(h.GetBooking)).Methods("GET")
	bookingRouter.HandleFunc("/{id}/status", utils.RequireAnyRole(h.UpdateBookingStatus, models.RoleAdmin)).Methods("PATCH")
}

// CreateBooking converts the caller's cart into a booking.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "User not found")
		return
	}
	if user.OrdersDisabled(time.Now()) {
		utils.WriteError(w, http.StatusForbidden, "Ordering is disabled for this account")
		return
	}

	var createRequest struct {
		EventDate       time.Time `json:"event_date"`
		GuestCount      int       `json:"guest_count"`
		SpecialRequests string    `json:"special_requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	booking, err := h.engine.Create(userID, createRequest.EventDate, createRequest.GuestCount, createRequest.SpecialRequests)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyCart):
			utils.WriteError(w, http.StatusBadRequest, "Select a Mahal before booking")
		case errors.Is(err, ErrInvalidEventDate):
			utils.WriteError(w, http.StatusBadRequest, "Event date must be in the future")
		case errors.Is(err, ErrInvalidGuestCount):
			utils.WriteError(w, http.StatusBadRequest, "Guest count must be at least 1")
		default:
			utils.WriteError(w, http.StatusInternalServerError, "Error creating booking")
		}
		return
	}

	h.logger.Log(activity.Entry{
		UserID:      userID,
		UserName:    user.FullName,
		Role:        user.Role,
		Action:      "booking_created",
		Description: fmt.Sprintf("Booking %d created for %s", booking.ID, booking.EventDate.Format("2006-01-02")),
		TargetType:  "booking",
		TargetID:    booking.ID,
		IPAddress:   activity.IPAddress(r),
		UserAgent:   activity.UserAgent(r),
	})

	utils.WriteSuccess(w, http.StatusCreated, booking)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	role, _ := utils.GetRoleFromContext(r)

	vars := mux.Vars(r)
	bookingID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := h.engine.Get(uint(bookingID), userID, role)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.WriteError(w, http.StatusNotFound, "Booking not found")
		case errors.Is(err, ErrAccessDenied):
			utils.WriteError(w, http.StatusForbidden, "Access denied")
		default:
			utils.WriteError(w, http.StatusInternalServerError, "Error retrieving booking")
		}
		return
	}

	utils.WriteSuccess(w, http.StatusOK, booking)
}

func (h *Handler) GetMyBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	bookings, err := h.engine.ListForUser(userID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error retrieving bookings")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, bookings)
}

func (h *Handler) GetMahalBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	bookings, err := h.engine.ListForMahalOwner(userID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error retrieving bookings")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, bookings)
}

func (h *Handler) GetContractorBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	bookings, err := h.engine.ListForContractorOwner(userID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error retrieving bookings")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, bookings)
}

// GetAllBookings lists every booking with optional status/date filters.
func (h *Handler) GetAllBookings(w http.ResponseWriter, r *http.Request) {
	query := h.db.Model(&models.Booking{}).
		Preload("Mahal").Preload("Items").Preload("Items.Contractor").Preload("User")

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if paymentStatus := r.URL.Query().Get("payment_status"); paymentStatus != "" {
		query = query.Where("payment_status = ?", paymentStatus)
	}
	if date := r.URL.Query().Get("event_date"); date != "" {
		query = query.Where("event_date = ?", date)
	}

	page, perPage, err := utils.ParsePaginationParams(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	var totalItems int64
	query.Count(&totalItems)

	var bookings []models.Booking
	if err := query.Order("created_at DESC").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&bookings).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error retrieving bookings")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.PaginatedData{
		Items:      bookings,
		Pagination: utils.NewPaginationMeta(page, perPage, totalItems),
	})
}

// UpdateBookingStatus lets an admin move a booking through the lifecycle.
func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	adminID, _ := utils.GetUserIDFromContext(r)

	vars := mux.Vars(r)
	bookingID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	var statusRequest struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&statusRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	booking, err := h.engine.UpdateStatus(uint(bookingID), statusRequest.Status)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.WriteError(w, http.StatusNotFound, "Booking not found")
		case errors.Is(err, ErrInvalidStatus):
			utils.WriteError(w, http.StatusBadRequest, "Status must be confirmed, cancelled or completed")
		case errors.Is(err, ErrInvalidTransition):
			utils.WriteError(w, http.StatusConflict, "Booking cannot move to that status")
		default:
			utils.WriteError(w, http.StatusInternalServerError, "Error updating booking")
		}
		return
	}

	h.logger.Log(activity.Entry{
		UserID:      adminID,
		Role:        models.RoleAdmin,
		Action:      "booking_status_updated",
		Description: fmt.Sprintf("Booking %d moved to %s", booking.ID, booking.Status),
		TargetType:  "booking",
		TargetID:    booking.ID,
		IPAddress:   activity.IPAddress(r),
		UserAgent:   activity.UserAgent(r),
	})

	utils.WriteSuccess(w, http.StatusOK, booking)
}
