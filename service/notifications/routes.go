package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mahalbook/mahalbook-server/cmd/models"
	"github.com/mahalbook/mahalbook-server/cmd/utils"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", utils.AuthMiddleware(h.RegisterDevice)).Methods("POST")
	router.HandleFunc("/devices", utils.AuthMiddleware(h.GetMyDevices)).Methods("GET")
	router.HandleFunc("/devices/{id}", utils.AuthMiddleware(h.DeleteDevice)).Methods("DELETE")
	router.HandleFunc("/notifications/history", utils.AuthMiddleware(h.GetMyHistory)).Methods("GET")
}

// RegisterDevice stores an Expo push token for the authenticated user.
// Re-registering an existing token updates its metadata.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var deviceRequest struct {
		Token      string `json:"token"`
		DeviceType string `json:"device_type"`
		DeviceName string `json:"device_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&deviceRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if deviceRequest.Token == "" {
		utils.WriteError(w, http.StatusBadRequest, "Token is required")
		return
	}

	if _, err := expo.NewExponentPushToken(deviceRequest.Token); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid Expo push token format")
		return
	}

	var device models.Device
	result := h.db.Where("token = ? AND user_id = ?", deviceRequest.Token, userID).First(&device)

	if result.Error == nil {
		device.UpdatedAt = time.Now()
		device.DeviceType = deviceRequest.DeviceType
		device.DeviceName = deviceRequest.DeviceName
		if err := h.db.Save(&device).Error; err != nil {
			utils.WriteError(w, http.StatusInternalServerError, "Error updating device")
			return
		}
	} else if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		device = models.Device{
			Token:      deviceRequest.Token,
			UserID:     userID,
			DeviceType: deviceRequest.DeviceType,
			DeviceName: deviceRequest.DeviceName,
		}
		if err := h.db.Create(&device).Error; err != nil {
			utils.WriteError(w, http.StatusInternalServerError, "Error creating device")
			return
		}
	} else {
		utils.WriteError(w, http.StatusInternalServerError, "Database error")
		return
	}

	utils.WriteSuccessMessage(w, http.StatusOK, "Device registered successfully", device)
}

func (h *Handler) GetMyDevices(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var devices []models.Device
	if err := h.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error retrieving devices")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, devices)
}

func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	vars := mux.Vars(r)
	deviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid device ID")
		return
	}

	result := h.db.Where("id = ? AND user_id = ?", deviceID, userID).Delete(&models.Device{})
	if result.Error != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error deleting device")
		return
	}
	if result.RowsAffected == 0 {
		utils.WriteError(w, http.StatusNotFound, "Device not found")
		return
	}

	utils.WriteSuccessMessage(w, http.StatusOK, "Device deleted", nil)
}

func (h *Handler) GetMyHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	page, perPage, err := utils.ParsePaginationParams(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	query := h.db.Model(&models.NotificationHistory{}).Where("user_id = ?", userID)

	var totalItems int64
	query.Count(&totalItems)

	var history []models.NotificationHistory
	if err := query.Order("sent_at DESC").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&history).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error retrieving notification history")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.PaginatedData{
		Items:      history,
		Pagination: utils.NewPaginationMeta(page, perPage, totalItems),
	})
}
