package listing

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mahalbook/mahalbook-server/cmd/models"
	"github.com/mahalbook/mahalbook-server/cmd/utils"
	"github.com/mahalbook/mahalbook-server/service/activity"
	"gorm.io/gorm"
)

func (h *Handler) registerAdminRoutes(router *mux.Router) {
	adminRouter := router.PathPrefix("/admin").Subrouter()

	registrations := []struct {
		path string
		kind Kind
	}{
		{"/mahals", KindMahal},
		{"/contractors", KindContractor},
		{"/services", KindService},
	}

	for _, reg := range registrations {
		adminRouter.HandleFunc(reg.path, utils.RequireAnyRole(h.ReviewQueue(reg.kind), models.RoleAdmin)).Methods("GET")
		adminRouter.HandleFunc(reg.path+"/{id}/status", utils.RequireAnyRole(h.DecideStatus(reg.kind), models.RoleAdmin)).Methods("PATCH")
	}
}

// ReviewQueue lists listings awaiting review. Admins can override the
// default pending filter with ?status=.
func (h *Handler) ReviewQueue(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		if status == "" {
			status = models.ApprovalPending
		}

		query := h.db.Model(kinds[kind].newRecord()).Where("is_active = ?", true)
		if status != "all" {
			query = query.Where("approval_status = ?", status)
		}

		page, perPage, err := utils.ParsePaginationParams(r)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid pagination parameters")
			return
		}

		var totalItems int64
		query.Count(&totalItems)

		query = query.Order("created_at ASC").Limit(perPage).Offset((page - 1) * perPage)

		var items interface{}
		switch kind {
		case KindMahal:
			var rows []models.Mahal
			err = query.Preload("Owner").Find(&rows).Error
			items = rows
		case KindContractor:
			var rows []models.Contractor
			err = query.Preload("Owner").Preload("Packages").Find(&rows).Error
			items = rows
		case KindService:
			var rows []models.Service
			err = query.Preload("Owner").Find(&rows).Error
			items = rows
		}
		if err != nil {
			utils.WriteError(w, http.StatusInternalServerError, "Error retrieving review queue")
			return
		}

		utils.WriteSuccess(w, http.StatusOK, utils.PaginatedData{
			Items:      items,
			Pagination: utils.NewPaginationMeta(page, perPage, totalItems),
		})
	}
}

// DecideStatus approves or declines one listing and notifies its owner.
func (h *Handler) DecideStatus(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseListingID(r)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid listing ID")
			return
		}

		adminID, _ := utils.GetUserIDFromContext(r)

		var decisionRequest struct {
			Status          string `json:"status"`
			RejectionReason string `json:"rejection_reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&decisionRequest); err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		summary, err := Decide(h.db, kind, id, decisionRequest.Status, decisionRequest.RejectionReason)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidDecision):
				utils.WriteError(w, http.StatusBadRequest, `Invalid approval status. Must be "approved" or "declined"`)
			case errors.Is(err, ErrReasonRequired):
				utils.WriteError(w, http.StatusBadRequest, "Rejection reason is required when declining")
			case errors.Is(err, gorm.ErrRecordNotFound):
				utils.WriteError(w, http.StatusNotFound, fmt.Sprintf("%s not found", Label(kind)))
			default:
				utils.WriteError(w, http.StatusInternalServerError, "Error updating approval status")
			}
			return
		}

		h.logger.Log(activity.Entry{
			UserID:      adminID,
			Role:        models.RoleAdmin,
			Action:      string(kind) + "_" + summary.ApprovalStatus,
			Description: fmt.Sprintf("%s %q %s", Label(kind), summary.Name, summary.ApprovalStatus),
			TargetType:  string(kind),
			TargetID:    summary.ID,
			TargetName:  summary.Name,
			IPAddress:   activity.IPAddress(r),
			UserAgent:   activity.UserAgent(r),
		})

		title := fmt.Sprintf("%s approved", Label(kind))
		body := fmt.Sprintf("Your listing %q is now live.", summary.Name)
		if summary.ApprovalStatus == models.ApprovalDeclined {
			title = fmt.Sprintf("%s declined", Label(kind))
			body = fmt.Sprintf("Your listing %q was declined: %s", summary.Name, summary.RejectionReason)
		}
		h.notifier.PushToUser(summary.OwnerID, title, body, map[string]string{
			"kind": string(kind),
			"id":   fmt.Sprintf("%d", summary.ID),
		})

		utils.WriteSuccessMessage(w, http.StatusOK, fmt.Sprintf("%s %s", Label(kind), summary.ApprovalStatus), summary)
	}
}
