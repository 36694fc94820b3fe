package handler

import (
	"net/http"
	"strconv"

	"github.com/ripple-community/pebs-api/internal/service"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 10)
	onlyUnread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	notifications, total, err := h.svc.ListForUser(r.Context(), actorID, onlyUnread, page, pageSize)
	if err != nil {
		zap.L().Error("notification list failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "notification/list-failed", "Failed to list notifications")
		return
	}

	unread, err := h.svc.UnreadCount(r.Context(), actorID)
	if err != nil {
		zap.L().Error("unread count failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "notification/list-failed", "Failed to list notifications")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"unread_count":  unread,
		"pagination":    pageMeta{Page: page, PageSize: pageSize, Total: total},
	})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	notificationID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid notification id")
		return
	}

	if err := h.svc.MarkRead(r.Context(), notificationID, actorID); err != nil {
		respondServiceError(w, r, err, "notification/mark-read-failed", "Failed to mark notification read")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	updated, err := h.svc.MarkAllRead(r.Context(), actorID)
	if err != nil {
		respondServiceError(w, r, err, "notification/mark-read-failed", "Failed to mark notifications read")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"status": "read", "updated": updated})
}
