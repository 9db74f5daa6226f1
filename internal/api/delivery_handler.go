package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/khyo-labs/mutate/internal/domain"
)

// defaultDeliveryLimit — лимит выдачи по умолчанию.
const defaultDeliveryLimit = 50

// ListDeadDeliveries возвращает dead-letter deliveries (новые первыми).
// GET /api/v1/deliveries/dead?limit=...
func (h *Handler) ListDeadDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := defaultDeliveryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	deliveries, err := h.deliveries.ListDead(r.Context(), limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DeliveryResponse, len(deliveries))
	for i, d := range deliveries {
		result[i] = DeliveryFromDomain(d)
	}

	List(w, result, len(result))
}

// GetDelivery возвращает delivery по ID.
// GET /api/v1/deliveries/{id}
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid delivery id")
		return
	}

	delivery, err := h.deliveries.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "delivery not found") {
		return
	}

	Success(w, DeliveryFromDomain(*delivery))
}

// ReplayDelivery повторно запускает доставку dead-letter delivery.
// Сами попытки идут асинхронно (retry может занять минуты),
// поэтому ответ — 202 с текущим состоянием delivery.
// POST /api/v1/deliveries/{id}/replay
func (h *Handler) ReplayDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid delivery id")
		return
	}

	delivery, err := h.deliveries.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "delivery not found") {
		return
	}

	if delivery.Status != domain.DeliveryStatusFailed {
		InvalidState(w, "only failed deliveries can be replayed")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := h.replayer.Replay(ctx, id); err != nil {
			h.logger.Warn("delivery replay failed", "delivery_id", id, "error", err)
		}
	}()

	Accepted(w, DeliveryFromDomain(*delivery))
}
