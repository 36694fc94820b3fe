package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ripple-community/pebs-api/internal/api/middleware"
	"github.com/ripple-community/pebs-api/internal/api/problem"
	"github.com/ripple-community/pebs-api/internal/models"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestActor(r *http.Request) (uuid.UUID, bool, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, false, errors.New("missing user in auth context")
	}

	actorID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false, errors.New("invalid user_id in auth context")
	}

	return actorID, middleware.UserRoleFromContext(r.Context()) == "admin", nil
}

// mapDomainError translates service sentinels onto HTTP statuses and stable
// problem slugs. Unmatched errors fall through as internal failures.
func mapDomainError(err error) (status int, problemType, message string, ok bool) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "resource/not-found", "resource not found", true
	case errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound, "user/not-found", "user not found", true
	case errors.Is(err, models.ErrSelfExchange):
		return http.StatusBadRequest, "exchange/self-reference", err.Error(), true
	case errors.Is(err, models.ErrInvalidDirection),
		errors.Is(err, models.ErrInvalidCategory),
		errors.Is(err, models.ErrNonPositiveAmount),
		errors.Is(err, models.ErrInvalidActivity),
		errors.Is(err, models.ErrInvalidResponse):
		return http.StatusBadRequest, "request/validation", err.Error(), true
	case errors.Is(err, models.ErrNotCounterpart):
		return http.StatusForbidden, "exchange/not-counterpart", err.Error(), true
	case errors.Is(err, models.ErrAlreadyConfirmed):
		return http.StatusConflict, "exchange/already-confirmed", err.Error(), true
	case errors.Is(err, models.ErrNotRecipient):
		return http.StatusForbidden, "notification/not-recipient", err.Error(), true
	case errors.Is(err, models.ErrNotInitiator):
		return http.StatusForbidden, "activity/not-initiator", err.Error(), true
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, "activity/invalid-transition", err.Error(), true
	case errors.Is(err, models.ErrActivityNotVisible):
		return http.StatusForbidden, "activity/not-visible", err.Error(), true
	case errors.Is(err, models.ErrUsernameTaken):
		return http.StatusConflict, "user/username-taken", err.Error(), true
	case errors.Is(err, models.ErrEmailTaken):
		return http.StatusConflict, "user/email-taken", err.Error(), true
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, "auth/invalid-credentials", err.Error(), true
	default:
		return 0, "", "", false
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}

// respondServiceError runs the domain and database mappings in order and falls
// back to a generic 500 with the given slug.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallbackSlug, fallbackMsg string) {
	if status, pType, msg, ok := mapDomainError(err); ok {
		RespondError(w, r, status, pType, msg)
		return
	}
	if status, pType, msg, ok := mapDBError(err); ok {
		RespondError(w, r, status, pType, msg)
		return
	}
	RespondError(w, r, http.StatusInternalServerError, fallbackSlug, fallbackMsg)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}

// pageMeta is the envelope shared by paginated list responses.
type pageMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}
