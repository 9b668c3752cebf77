package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mahalbook/mahalbook-server/cmd/utils"
	"gorm.io/gorm"
)

type Handler struct {
	store *Store
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{store: NewStore(db)}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	cartRouter := router.PathPrefix("/cart").Subrouter()

	cartRouter.HandleFunc("", utils.AuthMiddleware(h.GetCart)).Methods("GET")
	cartRouter.HandleFunc("/mahal", utils.AuthMiddleware(h.SetMahal)).Methods("POST")
	cartRouter.HandleFunc("/mahal", utils.AuthMiddleware(h.ClearMahal)).Methods("DELETE")
	cartRouter.HandleFunc("/contractor", utils.AuthMiddleware(h.AddContractor)).Methods("POST")
	cartRouter.HandleFunc("/contractor/{contractorId}", utils.AuthMiddleware(h.RemoveContractor)).Methods("DELETE")
	cartRouter.HandleFunc("/reset", utils.AuthMiddleware(h.Reset)).Methods("DELETE")
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	cart, err := h.store.GetOrCreate(userID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error retrieving cart")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, cart)
}

func (h *Handler) SetMahal(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var setRequest struct {
		MahalID   uint       `json:"mahal_id"`
		EventDate *time.Time `json:"event_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&setRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if setRequest.MahalID == 0 {
		utils.WriteError(w, http.StatusBadRequest, "mahal_id is required")
		return
	}

	cart, err := h.store.SetMahal(userID, setRequest.MahalID, setRequest.EventDate)
	if err != nil {
		if errors.Is(err, ErrListingUnavailable) {
			utils.WriteError(w, http.StatusBadRequest, "This mahal is not available for booking")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Error updating cart")
		return
	}

	utils.WriteSuccessMessage(w, http.StatusOK, "Mahal added to cart", cart)
}

func (h *Handler) ClearMahal(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	cart, err := h.store.ClearMahal(userID)
	if err != nil {
		if errors.Is(err, ErrNothingToRemove) {
			utils.WriteError(w, http.StatusNotFound, "No mahal in cart")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Error updating cart")
		return
	}

	utils.WriteSuccessMessage(w, http.StatusOK, "Mahal removed from cart", cart)
}

func (h *Handler) AddContractor(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var addRequest struct {
		ContractorID uint `json:"contractor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&addRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if addRequest.ContractorID == 0 {
		utils.WriteError(w, http.StatusBadRequest, "contractor_id is required")
		return
	}

	cart, err := h.store.AddContractor(userID, addRequest.ContractorID)
	if err != nil {
		switch {
		case errors.Is(err, ErrListingUnavailable):
			utils.WriteError(w, http.StatusBadRequest, "This contractor is not available for booking")
		case errors.Is(err, ErrDuplicateSelection):
			utils.WriteError(w, http.StatusConflict, "Contractor already in cart")
		default:
			utils.WriteError(w, http.StatusInternalServerError, "Error updating cart")
		}
		return
	}

	utils.WriteSuccessMessage(w, http.StatusOK, "Contractor added to cart", cart)
}

func (h *Handler) RemoveContractor(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	vars := mux.Vars(r)
	contractorID, err := strconv.ParseUint(vars["contractorId"], 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid contractor ID")
		return
	}

	cart, err := h.store.RemoveContractor(userID, uint(contractorID))
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error updating cart")
		return
	}

	utils.WriteSuccessMessage(w, http.StatusOK, "Contractor removed from cart", cart)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	cart, err := h.store.Reset(userID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error clearing cart")
		return
	}

	utils.WriteSuccessMessage(w, http.StatusOK, "Cart cleared", cart)
}
