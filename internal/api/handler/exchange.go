package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/repository"
	"github.com/ripple-community/pebs-api/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ExchangeHandler struct {
	svc *service.ExchangeService
}

func NewExchangeHandler(svc *service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{svc: svc}
}

// Create records an exchange. The route sits behind the idempotency
// middleware, so a replayed Idempotency-Key returns the stored response
// instead of moving pebs twice.
func (h *ExchangeHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req struct {
		CounterpartUsername string          `json:"counterpart_username"`
		Direction           string          `json:"direction"`
		Description         string          `json:"description"`
		Category            string          `json:"category"`
		Amount              decimal.Decimal `json:"amount"`
		Notes               string          `json:"notes"`
		Location            string          `json:"location"`
		Images              []string        `json:"images"`
		ExchangeDate        *time.Time      `json:"exchange_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.CounterpartUsername == "" || req.Description == "" {
		RespondError(w, r, http.StatusBadRequest, "request/validation", "counterpart_username and description are required")
		return
	}

	exchangeDate := time.Now()
	if req.ExchangeDate != nil {
		exchangeDate = *req.ExchangeDate
	}

	exchange, err := h.svc.Record(r.Context(), service.RecordExchangeCmd{
		InitiatorID:         actorID,
		Direction:           req.Direction,
		CounterpartUsername: req.CounterpartUsername,
		Description:         req.Description,
		Category:            req.Category,
		Amount:              domain.PebsFromDecimal(req.Amount),
		Notes:               req.Notes,
		Location:            req.Location,
		Images:              req.Images,
		ExchangeDate:        exchangeDate,
	})
	if err != nil {
		respondServiceError(w, r, err, "exchange/record-failed", "Failed to record exchange")
		return
	}

	zap.L().Info("exchange recorded",
		zap.String("exchange_id", exchange.ID.String()),
		zap.String("initiator_id", actorID.String()),
		zap.String("category", exchange.Category))
	RespondJSON(w, http.StatusCreated, exchange)
}

// Confirm marks the exchange confirmed. Only the counterpart may do this,
// and only once.
func (h *ExchangeHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	exchangeID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid exchange id")
		return
	}

	exchange, err := h.svc.Confirm(r.Context(), exchangeID, actorID)
	if err != nil {
		respondServiceError(w, r, err, "exchange/confirm-failed", "Failed to confirm exchange")
		return
	}
	RespondJSON(w, http.StatusOK, exchange)
}

func (h *ExchangeHandler) Get(w http.ResponseWriter, r *http.Request) {
	exchangeID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid exchange id")
		return
	}

	exchange, err := h.svc.Get(r.Context(), exchangeID)
	if err != nil {
		respondServiceError(w, r, err, "exchange/fetch-failed", "Failed to load exchange")
		return
	}
	RespondJSON(w, http.StatusOK, exchange)
}

// List is the public community feed with optional filters.
func (h *ExchangeHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 10)

	filter := repository.ExchangeFilter{Category: r.URL.Query().Get("category")}
	if raw := r.URL.Query().Get("participant"); raw != "" {
		participantID, err := uuid.Parse(raw)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/validation", "participant must be a UUID")
			return
		}
		filter.ParticipantID = participantID
	}
	if raw := r.URL.Query().Get("confirmed"); raw != "" {
		confirmed, err := strconv.ParseBool(raw)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/validation", "confirmed must be a boolean")
			return
		}
		filter.Confirmed = &confirmed
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/validation", "from must be RFC 3339")
			return
		}
		filter.From = from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/validation", "to must be RFC 3339")
			return
		}
		filter.To = to
	}

	exchanges, total, err := h.svc.List(r.Context(), filter, page, pageSize)
	if err != nil {
		zap.L().Error("exchange list failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "exchange/list-failed", "Failed to list exchanges")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"exchanges":  exchanges,
		"pagination": pageMeta{Page: page, PageSize: pageSize, Total: total},
	})
}

// ForUser lists all exchanges a member participated in, either side.
func (h *ExchangeHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userId")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid user id")
		return
	}

	exchanges, err := h.svc.ListForUser(r.Context(), userID)
	if err != nil {
		zap.L().Error("user exchanges failed", zap.Error(err), zap.String("user_id", userID.String()))
		RespondError(w, r, http.StatusInternalServerError, "exchange/list-failed", "Failed to list exchanges")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"exchanges": exchanges})
}

// Recent returns the authenticated member's latest exchanges.
func (h *ExchangeHandler) Recent(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	limit := queryInt(r, "limit", 5)

	exchanges, err := h.svc.Recent(r.Context(), actorID, limit)
	if err != nil {
		zap.L().Error("recent exchanges failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "exchange/list-failed", "Failed to list exchanges")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"exchanges": exchanges})
}

// Stats aggregates the whole ledger by category plus overall totals.
func (h *ExchangeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.StatsByCategory(r.Context())
	if err != nil {
		zap.L().Error("category stats failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "exchange/stats-failed", "Failed to compute statistics")
		return
	}
	overall, err := h.svc.Overall(r.Context())
	if err != nil {
		zap.L().Error("overall stats failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "exchange/stats-failed", "Failed to compute statistics")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"overall":    overall,
	})
}

// StatsDaily buckets the trailing window by day.
func (h *ExchangeHandler) StatsDaily(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	if days < 1 || days > 365 {
		days = 30
	}

	daily, err := h.svc.StatsOverTime(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		zap.L().Error("daily stats failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "exchange/stats-failed", "Failed to compute statistics")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"days": days, "daily": daily})
}
