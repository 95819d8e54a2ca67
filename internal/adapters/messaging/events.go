package messaging

import "time"

// Типы событий, которые коннектор публикует в брокер
const (
	EventOrderSynced        = "order.synced"
	EventOrderStatusChanged = "order.status_changed"
	EventStockPushed        = "stock.pushed"
)

// OrderSyncedEvent публикуется после успешной материализации заказа
type OrderSyncedEvent struct {
	Type       string    `json:"type"`
	UniqueID   string    `json:"unique_id"`
	OrderID    int64     `json:"order_id"`
	Status     string    `json:"status"`
	GrandTotal float64   `json:"grand_total"`
	ItemCount  int       `json:"item_count"`
	Created    bool      `json:"created"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderStatusChangedEvent публикуется при смене статуса существующего заказа
type OrderStatusChangedEvent struct {
	Type       string    `json:"type"`
	UniqueID   string    `json:"unique_id"`
	OrderID    int64     `json:"order_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StockPushedEvent публикуется после выгрузки остатка на маркетплейс
type StockPushedEvent struct {
	Type       string    `json:"type"`
	SKU        string    `json:"sku"`
	Quantity   int64     `json:"quantity"`
	Outcome    string    `json:"outcome"`
	OccurredAt time.Time `json:"occurred_at"`
}
