package activity

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mahalbook/mahalbook-server/cmd/models"
	"github.com/mahalbook/mahalbook-server/cmd/utils"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	logRouter := router.PathPrefix("/admin/logs").Subrouter()
	logRouter.HandleFunc("", utils.RequireAnyRole(h.GetLogs, models.RoleAdmin)).Methods("GET")
}

// GetLogs lists activity entries with optional user/action/date filters.
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	query := h.db.Model(&models.ActivityLog{})

	queryParams := r.URL.Query()

	if userIDStr := queryParams.Get("user_id"); userIDStr != "" {
		userID, err := strconv.ParseUint(userIDStr, 10, 32)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid user_id parameter")
			return
		}
		query = query.Where("user_id = ?", uint(userID))
	}

	if action := queryParams.Get("action"); action != "" {
		query = query.Where("action = ?", action)
	}

	layout := "2006-01-02"

	if startDateStr := queryParams.Get("start_date"); startDateStr != "" {
		startDate, err := time.Parse(layout, startDateStr)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid start_date format. Use YYYY-MM-DD")
			return
		}
		query = query.Where("created_at >= ?", startDate)
	}

	if endDateStr := queryParams.Get("end_date"); endDateStr != "" {
		endDate, err := time.Parse(layout, endDateStr)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid end_date format. Use YYYY-MM-DD")
			return
		}
		query = query.Where("created_at < ?", endDate.Add(24*time.Hour))
	}

	page, perPage, err := utils.ParsePaginationParams(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	var totalItems int64
	query.Count(&totalItems)

	var logs []models.ActivityLog
	if err := query.Order("created_at DESC").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&logs).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to retrieve activity logs")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.PaginatedData{
		Items:      logs,
		Pagination: utils.NewPaginationMeta(page, perPage, totalItems),
	})
}
