package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ripple-community/pebs-api/internal/repository"
	"github.com/ripple-community/pebs-api/internal/service"
	"go.uber.org/zap"
)

type ActivityHandler struct {
	svc *service.ActivityService
}

func NewActivityHandler(svc *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{svc: svc}
}

func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req struct {
		ActivityType string     `json:"activity_type"`
		TargetUserID *uuid.UUID `json:"target_user_id"`
		Title        string     `json:"title"`
		Description  string     `json:"description"`
		Location     string     `json:"location"`
		Tags         []string   `json:"tags"`
		StartDate    *time.Time `json:"start_date"`
		EndDate      *time.Time `json:"end_date"`
		IsPublic     *bool      `json:"is_public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Title == "" {
		RespondError(w, r, http.StatusBadRequest, "request/validation", "title is required")
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	activity, err := h.svc.Create(r.Context(), service.CreateActivityCmd{
		InitiatorID:  actorID,
		ActivityType: req.ActivityType,
		TargetUserID: req.TargetUserID,
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		Tags:         req.Tags,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		IsPublic:     isPublic,
	})
	if err != nil {
		respondServiceError(w, r, err, "activity/create-failed", "Failed to create activity")
		return
	}

	zap.L().Info("activity created",
		zap.String("activity_id", activity.ID.String()),
		zap.String("activity_type", activity.ActivityType))
	RespondJSON(w, http.StatusCreated, activity)
}

func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	activityID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid activity id")
		return
	}

	// Anonymous viewers see public activities only.
	viewerID := uuid.Nil
	if actorID, _, err := requestActor(r); err == nil {
		viewerID = actorID
	}

	activity, err := h.svc.Get(r.Context(), activityID, viewerID)
	if err != nil {
		respondServiceError(w, r, err, "activity/fetch-failed", "Failed to load activity")
		return
	}
	RespondJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 10)

	filter := repository.ActivityFilter{
		ActivityType: r.URL.Query().Get("type"),
		Status:       r.URL.Query().Get("status"),
	}
	if raw := r.URL.Query().Get("target_user_id"); raw != "" {
		targetID, err := uuid.Parse(raw)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/validation", "target_user_id must be a UUID")
			return
		}
		filter.TargetUserID = targetID
	}

	activities, total, err := h.svc.List(r.Context(), filter, page, pageSize)
	if err != nil {
		zap.L().Error("activity list failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "activity/list-failed", "Failed to list activities")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"activities": activities,
		"pagination": pageMeta{Page: page, PageSize: pageSize, Total: total},
	})
}

func (h *ActivityHandler) Respond(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	activityID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid activity id")
		return
	}

	var req struct {
		Response     string `json:"response"`
		ResponseType string `json:"response_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	activity, err := h.svc.Respond(r.Context(), service.RespondCmd{
		ActivityID:   activityID,
		UserID:       actorID,
		Response:     req.Response,
		ResponseType: req.ResponseType,
	})
	if err != nil {
		respondServiceError(w, r, err, "activity/respond-failed", "Failed to record response")
		return
	}
	RespondJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	activityID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid activity id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	activity, err := h.svc.SetStatus(r.Context(), activityID, actorID, req.Status)
	if err != nil {
		respondServiceError(w, r, err, "activity/status-failed", "Failed to update status")
		return
	}
	RespondJSON(w, http.StatusOK, activity)
}
