package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ripple-community/pebs-api/internal/models"
	"github.com/ripple-community/pebs-api/internal/service"
	"go.uber.org/zap"
)

type UserHandler struct {
	accounts *service.AccountService
}

func NewUserHandler(accounts *service.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// List is the member directory: active users, optional search, paginated.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	search := r.URL.Query().Get("search")

	users, total, err := h.accounts.Search(r.Context(), search, page, pageSize)
	if err != nil {
		zap.L().Error("user search failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "user/search-failed", "Failed to list users")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"users":      directoryEntries(users),
		"pagination": pageMeta{Page: page, PageSize: pageSize, Total: total},
	})
}

func (h *UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.accounts.GetByUsername(r.Context(), username)
	if err != nil {
		respondServiceError(w, r, err, "user/fetch-failed", "Failed to load user")
		return
	}
	RespondJSON(w, http.StatusOK, directoryEntry(user))
}

// SupportNeeded lists members whose balance has sunk far enough to surface
// on the community-support view.
func (h *UserHandler) SupportNeeded(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	users, err := h.accounts.UsersNeedingSupport(r.Context(), limit)
	if err != nil {
		zap.L().Error("support list failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "user/support-list-failed", "Failed to list members")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"users": directoryEntries(users)})
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	if err := h.accounts.Deactivate(r.Context(), actorID); err != nil {
		respondServiceError(w, r, err, "user/deactivate-failed", "Failed to deactivate account")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// publicUser is the directory projection of a member: no email, no password
// material, balance bucketed into a status.
type publicUser struct {
	models.UserRef
	Biography     string   `json:"biography"`
	Location      string   `json:"location"`
	Skills        []string `json:"skills"`
	Needs         []string `json:"needs"`
	BalanceStatus string   `json:"balance_status"`
}

func directoryEntry(u *models.User) publicUser {
	return publicUser{
		UserRef:       u.Ref(),
		Biography:     u.Biography,
		Location:      u.Location,
		Skills:        u.Skills,
		Needs:         u.Needs,
		BalanceStatus: u.BalanceStatus(),
	}
}

func directoryEntries(users []models.User) []publicUser {
	out := make([]publicUser, 0, len(users))
	for i := range users {
		out = append(out, directoryEntry(&users[i]))
	}
	return out
}
