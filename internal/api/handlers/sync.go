package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/internal/domain/services"
	"github.com/athebyme/mms-connector/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// OrderSyncer запускает цикл синхронизации заказов
type OrderSyncer interface {
	RunCycle(ctx context.Context) (*services.CycleReport, error)
}

// StockPushing выгружает остаток стокайтема на маркетплейс
type StockPushing interface {
	PushBySKU(ctx context.Context, sku string) (*models.PushOutcome, error)
}

// OrderFulfiller отмечает отгрузку заказа на маркетплейсе
type OrderFulfiller interface {
	FulfilOrder(ctx context.Context, storeID, uniqueID, trackingReference string) error
}

// SyncHandler — обработчик административных запросов коннектора
type SyncHandler struct {
	syncer    OrderSyncer
	pusher    StockPushing
	fulfiller OrderFulfiller
	store     interfaces.EntityStorePort
	logger    interfaces.LoggerPort
	storeID   string
}

// NewSyncHandler создает обработчик административных запросов
func NewSyncHandler(
	syncer OrderSyncer,
	pusher StockPushing,
	fulfiller OrderFulfiller,
	store interfaces.EntityStorePort,
	logger interfaces.LoggerPort,
	storeID string,
) *SyncHandler {
	return &SyncHandler{
		syncer:    syncer,
		pusher:    pusher,
		fulfiller: fulfiller,
		store:     store,
		logger:    logger,
		storeID:   storeID,
	}
}

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

func renderError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: code, Code: status, Message: message})
}

// SyncStatus возвращает текущее состояние курсора синхронизации заказов
func (h *SyncHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	cursor, err := h.store.SyncCursor(r.Context(), interfaces.EntityTypeOrder)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "failed to load sync cursor", "error", err)
		renderError(w, r, http.StatusInternalServerError, "internal_error", "failed to load sync cursor")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true, Data: cursor})
}

// RunSync запускает цикл синхронизации заказов вручную
func (h *SyncHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	report, err := h.syncer.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrCycleInProgress) {
			renderError(w, r, http.StatusConflict, "cycle_in_progress", err.Error())
			return
		}
		h.logger.ErrorWithContext(r.Context(), "sync cycle failed", "error", err)
		renderError(w, r, http.StatusInternalServerError, "sync_failed", err.Error())
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true, Data: report})
}

// pushResultView — сериализуемое представление одной попытки выгрузки
type pushResultView struct {
	SKU      string `json:"sku"`
	Quantity int64  `json:"quantity"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

// PushStock выгружает остаток указанного SKU на маркетплейс
func (h *SyncHandler) PushStock(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	if sku == "" {
		renderError(w, r, http.StatusBadRequest, "bad_request", "sku is not specified")
		return
	}

	outcome, err := h.pusher.PushBySKU(r.Context(), sku)
	if err != nil {
		if models.IsKind(err, models.ValidationError) {
			renderError(w, r, http.StatusNotFound, "not_found", err.Error())
			return
		}
		h.logger.ErrorWithContext(r.Context(), "stock push failed", "sku", sku, "error", err)
		renderError(w, r, http.StatusInternalServerError, "push_failed", err.Error())
		return
	}

	results := make([]pushResultView, 0, len(outcome.Results()))
	for _, result := range outcome.Results() {
		view := pushResultView{
			SKU:      result.SKU,
			Quantity: result.Quantity,
			Outcome:  result.Severity.String(),
		}
		if result.Err != nil {
			view.Error = result.Err.Error()
		}
		results = append(results, view)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: outcome.Worst() != models.PushFailed,
		Data: map[string]interface{}{
			"sku":     sku,
			"outcome": outcome.Worst().String(),
			"results": results,
		},
	})
}

// fulfilRequest — тело запроса на отгрузку заказа
type fulfilRequest struct {
	TrackingReference string `json:"tracking_reference"`
}

// FulfilOrder отмечает заказ отгруженным на маркетплейсе
func (h *SyncHandler) FulfilOrder(w http.ResponseWriter, r *http.Request) {
	uniqueID := chi.URLParam(r, "id")
	if uniqueID == "" {
		renderError(w, r, http.StatusBadRequest, "bad_request", "order id is not specified")
		return
	}

	var req fulfilRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.TrackingReference == "" {
		renderError(w, r, http.StatusBadRequest, "bad_request", "tracking_reference is required")
		return
	}

	if err := h.fulfiller.FulfilOrder(r.Context(), h.storeID, uniqueID, req.TrackingReference); err != nil {
		if models.IsKind(err, models.ValidationError) {
			renderError(w, r, http.StatusUnprocessableEntity, "not_shippable", err.Error())
			return
		}
		h.logger.ErrorWithContext(r.Context(), "order fulfillment failed",
			"unique_id", uniqueID, "error", err)
		renderError(w, r, http.StatusInternalServerError, "fulfillment_failed", err.Error())
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true})
}
