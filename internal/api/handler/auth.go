package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ripple-community/pebs-api/internal/api/middleware"
	"github.com/ripple-community/pebs-api/internal/repository"
	"github.com/ripple-community/pebs-api/internal/service"
	"go.uber.org/zap"
)

const tokenTTL = 7 * 24 * time.Hour

type AuthHandler struct {
	accounts *service.AccountService
}

func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type authResponse struct {
	Token string      `json:"token"`
	User  interface{} `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string   `json:"username"`
		DisplayName string   `json:"display_name"`
		Email       string   `json:"email"`
		Password    string   `json:"password"`
		Biography   string   `json:"biography"`
		Location    string   `json:"location"`
		Skills      []string `json:"skills"`
		Needs       []string `json:"needs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		RespondError(w, r, http.StatusBadRequest, "request/validation", "username, email and a password of at least 8 characters are required")
		return
	}

	user, err := h.accounts.Register(r.Context(), service.RegisterCmd{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
		Biography:   req.Biography,
		Location:    req.Location,
		Skills:      req.Skills,
		Needs:       req.Needs,
	})
	if err != nil {
		respondServiceError(w, r, err, "auth/register-failed", "Failed to register")
		return
	}

	token, err := signToken(user.ID.String(), user.Role)
	if err != nil {
		zap.L().Error("token signing failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/token-signing", "Failed to sign token")
		return
	}
	RespondJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, err, "auth/login-failed", "Failed to log in")
		return
	}

	token, err := signToken(user.ID.String(), user.Role)
	if err != nil {
		zap.L().Error("token signing failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/token-signing", "Failed to sign token")
		return
	}
	RespondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	user, err := h.accounts.Get(r.Context(), actorID)
	if err != nil {
		respondServiceError(w, r, err, "user/fetch-failed", "Failed to load profile")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"user":           user,
		"balance_status": user.BalanceStatus(),
	})
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req struct {
		DisplayName *string  `json:"display_name"`
		Username    *string  `json:"username"`
		Biography   *string  `json:"biography"`
		Location    *string  `json:"location"`
		Avatar      *string  `json:"avatar"`
		Skills      []string `json:"skills"`
		Needs       []string `json:"needs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), actorID, repository.UserProfileUpdate{
		DisplayName: req.DisplayName,
		Username:    req.Username,
		Biography:   req.Biography,
		Location:    req.Location,
		Avatar:      req.Avatar,
		Skills:      req.Skills,
		Needs:       req.Needs,
	})
	if err != nil {
		respondServiceError(w, r, err, "user/update-failed", "Failed to update profile")
		return
	}
	RespondJSON(w, http.StatusOK, user)
}

func signToken(userID, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"sub":     userID,
		"role":    role,
		"iat":     now.Unix(),
		"exp":     now.Add(tokenTTL).Unix(),
	}
	if iss := middleware.JWTIssuer(); iss != "" {
		claims["iss"] = iss
	}
	if aud := middleware.JWTAudience(); aud != "" {
		claims["aud"] = aud
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(middleware.JWTSecret())
}
