package listing

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mahalbook/mahalbook-server/cmd/models"
	"github.com/mahalbook/mahalbook-server/cmd/utils"
	"github.com/mahalbook/mahalbook-server/service/activity"
	"github.com/mahalbook/mahalbook-server/service/notifications"
	"gorm.io/gorm"
)

type Handler struct {
	db       *gorm.DB
	logger   *activity.Logger
	notifier *notifications.Notifier
}

func NewHandler(db *gorm.DB, logger *activity.Logger, notifier *notifications.Notifier) *Handler {
	return &Handler{db: db, logger: logger, notifier: notifier}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	registrations := []struct {
		path        string
		kind        Kind
		createRoles []string
	}{
		{"/mahals", KindMahal, []string{models.RoleMahalOwner, models.RoleAdmin}},
		{"/contractors", KindContractor, []string{models.RoleContractor, models.RoleAdmin}},
		{"/services", KindService, []string{models.RoleContractor, models.RoleMahalOwner, models.RoleAdmin}},
	}

	for _, reg := range registrations {
		router.HandleFunc(reg.path, utils.RequireAnyRole(h.Create(reg.kind), reg.createRoles...)).Methods("POST")
		router.HandleFunc(reg.path, utils.OptionalAuth(h.List(reg.kind))).Methods("GET")
		router.HandleFunc(reg.path+"/{id}", utils.OptionalAuth(h.Get(reg.kind))).Methods("GET")
		router.HandleFunc(reg.path+"/{id}", utils.AuthMiddleware(h.Update(reg.kind))).Methods("PUT")
		router.HandleFunc(reg.path+"/{id}", utils.AuthMiddleware(h.Delete(reg.kind))).Methods("DELETE")
	}

	h.registerAdminRoutes(router)
}

func parseListingID(r *http.Request) (uint, error) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// Create registers a new listing of the given kind. Listings always start
// pending regardless of who creates them.
func (h *Handler) Create(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.GetUserIDFromContext(r)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		role, _ := utils.GetRoleFromContext(r)

		record, err := h.decodeCreate(kind, userID, r)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := h.db.Create(record).Error; err != nil {
			utils.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error creating %s", Label(kind)))
			return
		}

		summary := kinds[kind].summarize(record)
		h.logger.Log(activity.Entry{
			UserID:      userID,
			Role:        role,
			Action:      string(kind) + "_created",
			Description: fmt.Sprintf("%s %q submitted for approval", Label(kind), summary.Name),
			TargetType:  string(kind),
			TargetID:    summary.ID,
			TargetName:  summary.Name,
			IPAddress:   activity.IPAddress(r),
			UserAgent:   activity.UserAgent(r),
		})

		utils.WriteSuccessMessage(w, http.StatusCreated, fmt.Sprintf("%s created successfully", Label(kind)), record)
	}
}

func (h *Handler) decodeCreate(kind Kind, userID uint, r *http.Request) (interface{}, error) {
	switch kind {
	case KindMahal:
		var req struct {
			Name        string  `json:"name"`
			Description string  `json:"description"`
			Address     string  `json:"address"`
			City        string  `json:"city"`
			State       string  `json:"state"`
			Pincode     string  `json:"pincode"`
			Capacity    int     `json:"capacity"`
			BasePrice   float64 `json:"base_price"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.New("Invalid request body")
		}
		if req.Name == "" || req.City == "" {
			return nil, errors.New("Name and city are required")
		}
		if req.Capacity < 1 {
			return nil, errors.New("Capacity must be at least 1")
		}
		if req.BasePrice <= 0 {
			return nil, errors.New("Base price must be positive")
		}
		return &models.Mahal{
			OwnerID:        userID,
			Name:           req.Name,
			Description:    req.Description,
			Address:        req.Address,
			City:           req.City,
			State:          req.State,
			Pincode:        req.Pincode,
			Capacity:       req.Capacity,
			BasePrice:      req.BasePrice,
			ApprovalStatus: models.ApprovalPending,
			IsActive:       true,
		}, nil

	case KindContractor:
		var req struct {
			Name        string  `json:"name"`
			Category    string  `json:"category"`
			Description string  `json:"description"`
			City        string  `json:"city"`
			BasePrice   float64 `json:"base_price"`
			Packages    []struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
			} `json:"packages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.New("Invalid request body")
		}
		if req.Name == "" {
			return nil, errors.New("Name is required")
		}
		if req.BasePrice <= 0 {
			return nil, errors.New("Base price must be positive")
		}
		contractor := &models.Contractor{
			OwnerID:        userID,
			Name:           req.Name,
			Category:       req.Category,
			Description:    req.Description,
			City:           req.City,
			BasePrice:      req.BasePrice,
			ApprovalStatus: models.ApprovalPending,
			IsActive:       true,
		}
		for _, pkg := range req.Packages {
			if pkg.Name == "" || pkg.Price < 0 {
				return nil, errors.New("Package entries need a name and a non-negative price")
			}
			contractor.Packages = append(contractor.Packages, models.ContractorPackage{
				Name:  pkg.Name,
				Price: pkg.Price,
			})
		}
		return contractor, nil

	case KindService:
		var req struct {
			Name        string  `json:"name"`
			Category    string  `json:"category"`
			Description string  `json:"description"`
			BasePrice   float64 `json:"base_price"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.New("Invalid request body")
		}
		if req.Name == "" {
			return nil, errors.New("Name is required")
		}
		if req.BasePrice <= 0 {
			return nil, errors.New("Base price must be positive")
		}
		return &models.Service{
			OwnerID:        userID,
			Name:           req.Name,
			Category:       req.Category,
			Description:    req.Description,
			BasePrice:      req.BasePrice,
			ApprovalStatus: models.ApprovalPending,
			IsActive:       true,
		}, nil
	}
	return nil, ErrUnknownKind
}

// List returns listings of one kind with filters and pagination. Anonymous
// callers only ever see approved records; owners additionally see their own
// pending and declined ones, admins see everything.
func (h *Handler) List(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, _ := utils.GetUserIDFromContext(r)
		role, _ := utils.GetRoleFromContext(r)

		query := h.db.Model(kinds[kind].newRecord()).Where("is_active = ?", true)
		queryParams := r.URL.Query()

		status := queryParams.Get("status")
		switch {
		case status == "":
			query = query.Where("approval_status = ?", models.ApprovalApproved)
		case status == "all":
			if role != models.RoleAdmin {
				query = query.Where("approval_status = ? OR owner_id = ?", models.ApprovalApproved, viewerID)
			}
		case role == models.RoleAdmin || status == models.ApprovalApproved:
			query = query.Where("approval_status = ?", status)
		default:
			// Owners can inspect their own non-approved listings only.
			query = query.Where("approval_status = ? AND owner_id = ?", status, viewerID)
		}

		if city := queryParams.Get("city"); city != "" && kind != KindService {
			query = query.Where("city = ?", city)
		}
		if category := queryParams.Get("category"); category != "" && kind != KindMahal {
			query = query.Where("category = ?", category)
		}
		if minPriceStr := queryParams.Get("min_price"); minPriceStr != "" {
			minPrice, err := strconv.ParseFloat(minPriceStr, 64)
			if err != nil {
				utils.WriteError(w, http.StatusBadRequest, "Invalid min_price parameter")
				return
			}
			query = query.Where("base_price >= ?", minPrice)
		}
		if maxPriceStr := queryParams.Get("max_price"); maxPriceStr != "" {
			maxPrice, err := strconv.ParseFloat(maxPriceStr, 64)
			if err != nil {
				utils.WriteError(w, http.StatusBadRequest, "Invalid max_price parameter")
				return
			}
			query = query.Where("base_price <= ?", maxPrice)
		}
		if kind == KindMahal {
			if minCapStr := queryParams.Get("min_capacity"); minCapStr != "" {
				minCap, err := strconv.Atoi(minCapStr)
				if err != nil {
					utils.WriteError(w, http.StatusBadRequest, "Invalid min_capacity parameter")
					return
				}
				query = query.Where("capacity >= ?", minCap)
			}
		}

		page, perPage, err := utils.ParsePaginationParams(r)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid pagination parameters")
			return
		}

		var totalItems int64
		query.Count(&totalItems)

		query = query.Order("created_at DESC").Limit(perPage).Offset((page - 1) * perPage)

		var items interface{}
		switch kind {
		case KindMahal:
			var rows []models.Mahal
			err = query.Find(&rows).Error
			items = rows
		case KindContractor:
			var rows []models.Contractor
			err = query.Preload("Packages").Find(&rows).Error
			items = rows
		case KindService:
			var rows []models.Service
			err = query.Find(&rows).Error
			items = rows
		}
		if err != nil {
			utils.WriteError(w, http.StatusInternalServerError, "Error retrieving listings")
			return
		}

		utils.WriteSuccess(w, http.StatusOK, utils.PaginatedData{
			Items:      items,
			Pagination: utils.NewPaginationMeta(page, perPage, totalItems),
		})
	}
}

// Get returns one listing, hiding non-approved records from outsiders with
// a 404 so their existence is not leaked.
func (h *Handler) Get(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseListingID(r)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid listing ID")
			return
		}

		viewerID, _ := utils.GetUserIDFromContext(r)
		role, _ := utils.GetRoleFromContext(r)

		record, summary, err := h.fetchWithAssociations(kind, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.WriteError(w, http.StatusNotFound, fmt.Sprintf("%s not found", Label(kind)))
				return
			}
			utils.WriteError(w, http.StatusInternalServerError, "Database error")
			return
		}

		if !VisibleTo(summary, viewerID, role) {
			utils.WriteError(w, http.StatusNotFound, fmt.Sprintf("%s not found", Label(kind)))
			return
		}

		utils.WriteSuccess(w, http.StatusOK, record)
	}
}

func (h *Handler) fetchWithAssociations(kind Kind, id uint) (interface{}, Summary, error) {
	if kind == KindContractor {
		var contractor models.Contractor
		if err := h.db.Preload("Packages").First(&contractor, id).Error; err != nil {
			return nil, Summary{}, err
		}
		return &contractor, kinds[kind].summarize(&contractor), nil
	}
	return Fetch(h.db, kind, id)
}

// Update applies a content edit and sends the listing back to the review
// queue. Only the owner or an admin may edit.
func (h *Handler) Update(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseListingID(r)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid listing ID")
			return
		}

		userID, err := utils.GetUserIDFromContext(r)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		role, _ := utils.GetRoleFromContext(r)

		record, summary, err := Fetch(h.db, kind, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.WriteError(w, http.StatusNotFound, fmt.Sprintf("%s not found", Label(kind)))
				return
			}
			utils.WriteError(w, http.StatusInternalServerError, "Database error")
			return
		}

		if summary.OwnerID != userID && role != models.RoleAdmin {
			utils.WriteError(w, http.StatusForbidden, "You do not own this listing")
			return
		}

		updates, err := decodeContentUpdates(kind, r)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(updates) == 0 {
			utils.WriteError(w, http.StatusBadRequest, "No updatable fields supplied")
			return
		}

		tx := h.db.Begin()
		if err := tx.Model(record).Updates(updates).Error; err != nil {
			tx.Rollback()
			utils.WriteError(w, http.StatusInternalServerError, "Error updating listing")
			return
		}
		// Any content edit voids an earlier approval or decline.
		if err := ResetOnEdit(tx, kind, id); err != nil {
			tx.Rollback()
			utils.WriteError(w, http.StatusInternalServerError, "Error resetting approval status")
			return
		}
		if err := tx.Commit().Error; err != nil {
			utils.WriteError(w, http.StatusInternalServerError, "Error updating listing")
			return
		}

		record, _, err = h.fetchWithAssociations(kind, id)
		if err != nil {
			utils.WriteError(w, http.StatusInternalServerError, "Database error")
			return
		}

		utils.WriteSuccessMessage(w, http.StatusOK, fmt.Sprintf("%s updated and resubmitted for approval", Label(kind)), record)
	}
}

func decodeContentUpdates(kind Kind, r *http.Request) (map[string]interface{}, error) {
	var req struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Address     *string  `json:"address"`
		City        *string  `json:"city"`
		State       *string  `json:"state"`
		Pincode     *string  `json:"pincode"`
		Category    *string  `json:"category"`
		Capacity    *int     `json:"capacity"`
		BasePrice   *float64 `json:"base_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("Invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, errors.New("Name cannot be empty")
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.BasePrice != nil {
		if *req.BasePrice <= 0 {
			return nil, errors.New("Base price must be positive")
		}
		updates["base_price"] = *req.BasePrice
	}
	switch kind {
	case KindMahal:
		if req.Address != nil {
			updates["address"] = *req.Address
		}
		if req.City != nil {
			updates["city"] = *req.City
		}
		if req.State != nil {
			updates["state"] = *req.State
		}
		if req.Pincode != nil {
			updates["pincode"] = *req.Pincode
		}
		if req.Capacity != nil {
			if *req.Capacity < 1 {
				return nil, errors.New("Capacity must be at least 1")
			}
			updates["capacity"] = *req.Capacity
		}
	case KindContractor:
		if req.Category != nil {
			updates["category"] = *req.Category
		}
		if req.City != nil {
			updates["city"] = *req.City
		}
	case KindService:
		if req.Category != nil {
			updates["category"] = *req.Category
		}
	}
	return updates, nil
}

// Delete soft-deletes a listing. Owner or admin only.
func (h *Handler) Delete(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseListingID(r)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid listing ID")
			return
		}

		userID, err := utils.GetUserIDFromContext(r)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		role, _ := utils.GetRoleFromContext(r)

		record, summary, err := Fetch(h.db, kind, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.WriteError(w, http.StatusNotFound, fmt.Sprintf("%s not found", Label(kind)))
				return
			}
			utils.WriteError(w, http.StatusInternalServerError, "Database error")
			return
		}

		if summary.OwnerID != userID && role != models.RoleAdmin {
			utils.WriteError(w, http.StatusForbidden, "You do not own this listing")
			return
		}

		if err := h.db.Delete(record).Error; err != nil {
			utils.WriteError(w, http.StatusInternalServerError, "Error deleting listing")
			return
		}

		h.logger.Log(activity.Entry{
			UserID:      userID,
			Role:        role,
			Action:      string(kind) + "_deleted",
			Description: fmt.Sprintf("%s %q deleted", Label(kind), summary.Name),
			TargetType:  string(kind),
			TargetID:    summary.ID,
			TargetName:  summary.Name,
			IPAddress:   activity.IPAddress(r),
			UserAgent:   activity.UserAgent(r),
		})

		utils.WriteSuccessMessage(w, http.StatusOK, fmt.Sprintf("%s deleted", Label(kind)), nil)
	}
}
