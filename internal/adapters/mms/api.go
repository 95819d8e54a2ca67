package mms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/athebyme/mms-connector/internal/domain/models"
)

// API — типизированные вызовы эндпоинтов маркетплейса поверх Client
type API struct {
	client        *Client
	marketplaceID string
}

// NewAPI создает типизированный слой API
func NewAPI(client *Client, marketplaceID string) *API {
	return &API{client: client, marketplaceID: marketplaceID}
}

// orderIDsSinceWire различает отсутствующие и нулевые ключи ответа:
// неполному листингу доверять нельзя.
type orderIDsSinceWire struct {
	NewSinceID *int64   `json:"new_since_id"`
	OrderIDs   *[]int64 `json:"order_ids"`
}

// OrderIDsSince возвращает идентификаторы заказов, изменившихся после курсора
func (a *API) OrderIDsSince(ctx context.Context, sinceID int64) (*models.OrderIDsSince, error) {
	envelope, err := a.client.Get(ctx, "orders/ids", map[string]interface{}{"since_id": sinceID}, true)
	if err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, models.NewSyncError(models.RemoteApplicationError,
			fmt.Sprintf("order ids listing failed: %s", envelope.ErrorMessage))
	}

	var wire orderIDsSinceWire
	if err := json.Unmarshal(envelope.Result, &wire); err != nil {
		return nil, models.WrapSyncError(models.ProtocolError, "failed to decode order ids result", err)
	}
	if wire.NewSinceID == nil || wire.OrderIDs == nil {
		return nil, models.NewSyncError(models.ProtocolError,
			"order ids result misses new_since_id or order_ids")
	}

	return &models.OrderIDsSince{NewSinceID: *wire.NewSinceID, OrderIDs: *wire.OrderIDs}, nil
}

// OrderDetails возвращает полные данные заказа по его идентификатору
func (a *API) OrderDetails(ctx context.Context, orderID int64) (*models.OrderData, error) {
	callType := fmt.Sprintf("orders/%d", orderID)

	envelope, err := a.client.Get(ctx, callType, nil, true)
	if err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, models.NewSyncError(models.RemoteApplicationError,
			fmt.Sprintf("order %d details failed: %s", orderID, envelope.ErrorMessage))
	}

	var order models.OrderData
	if err := json.Unmarshal(envelope.Result, &order); err != nil {
		return nil, models.WrapSyncError(models.ProtocolError, "failed to decode order details result", err)
	}

	return &order, nil
}

// CompleteOrder отмечает выполнение заказа на маркетплейсе
func (a *API) CompleteOrder(ctx context.Context, orderID int64, trackingReference string, orderItemIDs []int64) error {
	orderItems := make([]map[string]interface{}, 0, len(orderItemIDs))
	for _, id := range orderItemIDs {
		orderItems = append(orderItems, map[string]interface{}{"order_item_id": id})
	}

	parameters := map[string]interface{}{
		"order_id":           orderID,
		"tracking_reference": trackingReference,
		"order_items":        orderItems,
	}

	envelope, err := a.client.Post(ctx, "fulfillments/complete", parameters, false)
	if err != nil {
		return err
	}
	if !envelope.Success {
		return models.NewSyncError(models.RemoteApplicationError,
			fmt.Sprintf("order %d completion failed: %s", orderID, envelope.ErrorMessage))
	}

	return nil
}

// updateInventory патчит остаток вариации на маркетплейсе
func (a *API) updateInventory(ctx context.Context, variationID int64, parameters map[string]interface{}) error {
	callType := fmt.Sprintf("variations/%d/inventory", variationID)
	parameters["market_place"] = a.marketplaceID

	envelope, err := a.client.Patch(ctx, callType, parameters, false)
	if err != nil {
		return err
	}
	if !envelope.Success {
		return models.NewSyncError(models.RemoteApplicationError,
			fmt.Sprintf("inventory update for variation %d failed: %s", variationID, envelope.ErrorMessage))
	}

	return nil
}

// SetStock выставляет абсолютный остаток вариации по её идентификатору.
// Маркетплейс не возвращает новое значение, поэтому при успехе считаем
// его равным отправленному.
func (a *API) SetStock(ctx context.Context, variationID int64, quantity int64) (int64, error) {
	parameters := map[string]interface{}{"available_quantity": quantity}
	if err := a.updateInventory(ctx, variationID, parameters); err != nil {
		return 0, err
	}
	return quantity, nil
}

// AdjustStock применяет дельту к остатку вариации
func (a *API) AdjustStock(ctx context.Context, variationID int64, adjustment int64) error {
	parameters := map[string]interface{}{"available_quantity_adjustment": adjustment}
	return a.updateInventory(ctx, variationID, parameters)
}

type variationLookupWire struct {
	VariationID *int64 `json:"variation_id"`
}

// lookupVariation находит идентификатор вариации по SKU
func (a *API) lookupVariation(ctx context.Context, sku string) (int64, error) {
	parameters := map[string]interface{}{"sku": sku}

	envelope, err := a.client.Get(ctx, "variations/ids", parameters, true)
	if err != nil {
		return 0, err
	}
	if !envelope.Success {
		return 0, models.NewSyncError(models.RemoteApplicationError,
			fmt.Sprintf("variation lookup for %q failed: %s", sku, envelope.ErrorMessage))
	}

	var wire variationLookupWire
	if err := json.Unmarshal(envelope.Result, &wire); err != nil {
		return 0, models.WrapSyncError(models.ProtocolError, "failed to decode variation lookup result", err)
	}
	if wire.VariationID == nil {
		return 0, models.NewSyncError(models.ProtocolError,
			fmt.Sprintf("variation lookup for %q misses variation_id", sku))
	}

	return *wire.VariationID, nil
}

// SetStockBySKU выставляет остаток через поиск вариации по SKU
func (a *API) SetStockBySKU(ctx context.Context, sku string, quantity int64) (int64, error) {
	variationID, err := a.lookupVariation(ctx, sku)
	if err != nil {
		return 0, err
	}
	return a.SetStock(ctx, variationID, quantity)
}
