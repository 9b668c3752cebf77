package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/mahalbook/mahalbook-server/cmd/models"
	"github.com/mahalbook/mahalbook-server/cmd/utils"
	"github.com/mahalbook/mahalbook-server/service/activity"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *activity.Logger
}

func NewHandler(db *gorm.DB, logger *activity.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register", h.HandleRegister).Methods("POST")
	router.HandleFunc("/login", h.HandleLogin).Methods("POST")
	router.HandleFunc("/refresh", h.HandleRefreshToken).Methods("POST")
	router.HandleFunc("/user/verify", h.VerifyEmail).Methods("POST")
	router.HandleFunc("/me", utils.AuthMiddleware(h.GetMe)).Methods("GET")

	router.HandleFunc("/admin/users", utils.RequireAnyRole(h.GetUsers, models.RoleAdmin)).Methods("GET")
	router.HandleFunc("/admin/users/{id}/disable", utils.RequireAnyRole(h.DisableUser, models.RoleAdmin)).Methods("PATCH")
	router.HandleFunc("/admin/users/{id}/enable", utils.RequireAnyRole(h.EnableUser, models.RoleAdmin)).Methods("PATCH")
}

func validRole(role string) bool {
	for _, allowed := range models.ValidRoles {
		if role == allowed {
			return true
		}
	}
	return false
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var registerRequest struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&registerRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid JSON input")
		return
	}

	if registerRequest.FullName == "" || registerRequest.Email == "" || registerRequest.Password == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if registerRequest.Role == "" {
		registerRequest.Role = models.RoleUser
	}
	if !validRole(registerRequest.Role) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	if len(registerRequest.Password) < 8 {
		utils.WriteError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	var existingUser models.User
	if result := h.db.Where("email = ?", registerRequest.Email).First(&existingUser); !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		if result.Error != nil {
			utils.WriteError(w, http.StatusInternalServerError, "Database error")
			return
		}
		utils.WriteError(w, http.StatusConflict, "Email is already in use")
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(registerRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error hashing password")
		return
	}

	verificationCode := fmt.Sprintf("%06d", rand.Intn(1000000))

	user := models.User{
		FullName:              registerRequest.FullName,
		Email:                 registerRequest.Email,
		PasswordHash:          string(passwordHash),
		Phone:                 registerRequest.Phone,
		Role:                  registerRequest.Role,
		IsActive:              true,
		EmailVerificationCode: verificationCode,
		VerificationExpiry:    time.Now().Add(15 * time.Minute),
	}

	if err := h.db.Create(&user).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "duplicate key") {
			utils.WriteError(w, http.StatusConflict, "Email is already in use")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Error registering user")
		return
	}

	go func() {
		body := fmt.Sprintf("<p>Your verification code is <b>%s</b>. It expires in 15 minutes.</p>", verificationCode)
		if err := utils.SendEmail(user.Email, "Verify your email", body); err != nil {
			log.Printf("Error sending verification email to %s: %v", user.Email, err)
		}
	}()

	h.logger.Log(activity.Entry{
		UserID:      user.ID,
		UserName:    user.FullName,
		Role:        user.Role,
		Action:      "user_registered",
		Description: fmt.Sprintf("User %s registered as %s", user.Email, user.Role),
		IPAddress:   activity.IPAddress(r),
		UserAgent:   activity.UserAgent(r),
	})

	utils.WriteSuccessMessage(w, http.StatusCreated, "Registration successful, verification code sent", map[string]interface{}{
		"user_id": user.ID,
	})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var verifyRequest struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&verifyRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid JSON input")
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", verifyRequest.Email).First(&user).Error; err != nil {
		utils.WriteError(w, http.StatusNotFound, "User not found")
		return
	}

	if user.EmailVerified {
		utils.WriteSuccessMessage(w, http.StatusOK, "Email already verified", nil)
		return
	}
	if user.EmailVerificationCode != verifyRequest.Code || time.Now().After(user.VerificationExpiry) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid or expired verification code")
		return
	}

	if err := h.db.Model(&user).Updates(map[string]interface{}{
		"email_verified":          true,
		"email_verification_code": "",
	}).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error verifying email")
		return
	}

	utils.WriteSuccessMessage(w, http.StatusOK, "Email verified", nil)
}

func (h *Handler) generateTokens(user *models.User) (string, string, error) {
	secret := []byte(os.Getenv("SECRET_KEY"))

	accessClaims := utils.Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(secret)
	if err != nil {
		return "", "", err
	}

	refreshClaims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * 24 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(secret)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid JSON input")
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", loginRequest.Email).First(&user).Error; err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(loginRequest.Password)); err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if user.Disabled(time.Now()) {
		utils.WriteError(w, http.StatusForbidden, "Account is disabled")
		return
	}

	accessToken, refreshToken, err := h.generateTokens(&user)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error generating tokens")
		return
	}

	if err := h.db.Model(&user).Updates(map[string]interface{}{
		"refresh_token":            refreshToken,
		"refresh_token_expired_at": time.Now().Add(30 * 24 * time.Hour),
	}).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error saving session")
		return
	}

	h.logger.Log(activity.Entry{
		UserID:      user.ID,
		UserName:    user.FullName,
		Role:        user.Role,
		Action:      "login",
		Description: fmt.Sprintf("User %s logged in", user.Email),
		IPAddress:   activity.IPAddress(r),
		UserAgent:   activity.UserAgent(r),
	})

	utils.WriteSuccessMessage(w, http.StatusOK, "Login successful", map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user_id":       user.ID,
		"role":          user.Role,
	})
}

func (h *Handler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var refreshRequest struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&refreshRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid JSON input")
		return
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(refreshRequest.RefreshToken, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("SECRET_KEY")), nil
	})
	if err != nil || !token.Valid {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	var user models.User
	if err := h.db.First(&user, uint(userID)).Error; err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	if user.Refresh != refreshRequest.RefreshToken || time.Now().After(user.RefreshTokenExpiredAt) {
		utils.WriteError(w, http.StatusUnauthorized, "Refresh token expired")
		return
	}
	if user.Disabled(time.Now()) {
		utils.WriteError(w, http.StatusForbidden, "Account is disabled")
		return
	}

	accessToken, refreshToken, err := h.generateTokens(&user)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error generating tokens")
		return
	}

	if err := h.db.Model(&user).Updates(map[string]interface{}{
		"refresh_token":            refreshToken,
		"refresh_token_expired_at": time.Now().Add(30 * 24 * time.Hour),
	}).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error saving session")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		utils.WriteError(w, http.StatusNotFound, "User not found")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, user)
}

func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	query := h.db.Model(&models.User{})

	if role := r.URL.Query().Get("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	page, perPage, err := utils.ParsePaginationParams(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	var totalItems int64
	query.Count(&totalItems)

	var users []models.User
	if err := query.Order("created_at DESC").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&users).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error retrieving users")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.PaginatedData{
		Items:      users,
		Pagination: utils.NewPaginationMeta(page, perPage, totalItems),
	})
}

// DisableUser blocks an account entirely or just its ordering ability.
// Either duration may be omitted for an indefinite block.
func (h *Handler) DisableUser(w http.ResponseWriter, r *http.Request) {
	adminID, _ := utils.GetUserIDFromContext(r)

	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var disableRequest struct {
		Until       *time.Time `json:"until"`
		OrdersUntil *time.Time `json:"orders_until"`
		OrdersOnly  bool       `json:"orders_only"`
	}
	if err := json.NewDecoder(r.Body).Decode(&disableRequest); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var user models.User
	if err := h.db.First(&user, uint(userID)).Error; err != nil {
		utils.WriteError(w, http.StatusNotFound, "User not found")
		return
	}
	if user.Role == models.RoleAdmin {
		utils.WriteError(w, http.StatusForbidden, "Admin accounts cannot be disabled")
		return
	}

	updates := map[string]interface{}{}
	if disableRequest.OrdersOnly {
		until := disableRequest.OrdersUntil
		if until == nil {
			far := time.Now().AddDate(100, 0, 0)
			until = &far
		}
		updates["orders_disabled_until"] = *until
	} else {
		updates["is_active"] = false
		if disableRequest.Until != nil {
			updates["is_active"] = true
			updates["disabled_until"] = *disableRequest.Until
		}
	}

	if err := h.db.Model(&user).Updates(updates).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error disabling user")
		return
	}

	h.logger.Log(activity.Entry{
		UserID:      adminID,
		Role:        models.RoleAdmin,
		Action:      "user_disabled",
		Description: fmt.Sprintf("User %d disabled", user.ID),
		TargetType:  "user",
		TargetID:    user.ID,
		TargetName:  user.Email,
		IPAddress:   activity.IPAddress(r),
		UserAgent:   activity.UserAgent(r),
	})

	utils.WriteSuccessMessage(w, http.StatusOK, "User disabled", nil)
}

func (h *Handler) EnableUser(w http.ResponseWriter, r *http.Request) {
	adminID, _ := utils.GetUserIDFromContext(r)

	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var user models.User
	if err := h.db.First(&user, uint(userID)).Error; err != nil {
		utils.WriteError(w, http.StatusNotFound, "User not found")
		return
	}

	if err := h.db.Model(&user).Updates(map[string]interface{}{
		"is_active":             true,
		"disabled_until":        nil,
		"orders_disabled_until": nil,
	}).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error enabling user")
		return
	}

	h.logger.Log(activity.Entry{
		UserID:      adminID,
		Role:        models.RoleAdmin,
		Action:      "user_enabled",
		Description: fmt.Sprintf("User %d re-enabled", user.ID),
		TargetType:  "user",
		TargetID:    user.ID,
		TargetName:  user.Email,
		IPAddress:   activity.IPAddress(r),
		UserAgent:   activity.UserAgent(r),
	})

	utils.WriteSuccessMessage(w, http.StatusOK, "User enabled", nil)
}
