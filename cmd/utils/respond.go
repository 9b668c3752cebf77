package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PaginationMeta contains pagination metadata for list endpoints.
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	HasPrevious bool  `json:"has_previous"`
	HasNext     bool  `json:"has_next"`
}

type PaginatedData struct {
	Items      interface{}    `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

func WriteJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func WriteSuccess(w http.ResponseWriter, code int, data interface{}) {
	WriteJSON(w, code, Response{Success: true, Data: data})
}

func WriteSuccessMessage(w http.ResponseWriter, code int, message string, data interface{}) {
	WriteJSON(w, code, Response{Success: true, Message: message, Data: data})
}

func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, Response{Success: false, Message: message})
}

// ParsePaginationParams extracts page/per_page query parameters with the
// usual defaults (page 1, 10 per page, capped at 100).
func ParsePaginationParams(r *http.Request) (int, int, error) {
	query := r.URL.Query()

	page := 1
	if query.Get("page") != "" {
		parsedPage, err := strconv.Atoi(query.Get("page"))
		if err != nil || parsedPage < 1 {
			return 0, 0, errors.New("invalid page parameter")
		}
		page = parsedPage
	}

	perPage := 10
	if query.Get("per_page") != "" {
		parsedPerPage, err := strconv.Atoi(query.Get("per_page"))
		if err != nil || parsedPerPage < 1 {
			return 0, 0, errors.New("invalid per_page parameter")
		}
		if parsedPerPage > 100 {
			perPage = 100
		} else {
			perPage = parsedPerPage
		}
	}

	return page, perPage, nil
}

// NewPaginationMeta computes the metadata block for a page of results.
func NewPaginationMeta(page, perPage int, totalItems int64) PaginationMeta {
	totalPages := int((totalItems + int64(perPage) - 1) / int64(perPage))
	return PaginationMeta{
		CurrentPage: page,
		PerPage:     perPage,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasPrevious: page > 1,
		HasNext:     page < totalPages,
	}
}
