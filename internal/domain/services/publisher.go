package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/athebyme/mms-connector/internal/adapters/messaging"
	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/pkg/interfaces"
)

// eventPublisher публикует события коннектора в брокер.
// Публикация — побочный эффект синхронизации: сбой брокера логируется,
// но не прерывает обработку.
type eventPublisher struct {
	port   interfaces.MessagingPort
	logger interfaces.LoggerPort
	topic  string
}

func newEventPublisher(port interfaces.MessagingPort, logger interfaces.LoggerPort, topic string) *eventPublisher {
	return &eventPublisher{port: port, logger: logger, topic: topic}
}

func (p *eventPublisher) publish(ctx context.Context, key string, event interface{}) {
	if p.port == nil || p.topic == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorWithContext(ctx, "failed to encode event", "topic", p.topic, "error", err)
		return
	}

	if err := p.port.PublishWithKey(ctx, p.topic, key, payload); err != nil {
		p.logger.WarnWithContext(ctx, "failed to publish event",
			"topic", p.topic, "key", key, "error", err)
	}
}

func (p *eventPublisher) orderSynced(ctx context.Context, entity *interfaces.Entity,
	orderData *models.OrderData, created bool) {

	p.publish(ctx, orderData.UniqueID(), messaging.OrderSyncedEvent{
		Type:       messaging.EventOrderSynced,
		UniqueID:   orderData.UniqueID(),
		OrderID:    orderData.OrderID,
		Status:     orderData.Status,
		GrandTotal: entity.GetFloat("grand_total", 0),
		ItemCount:  len(orderData.OrderItems),
		Created:    created,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *eventPublisher) orderStatusChanged(ctx context.Context, orderData *models.OrderData,
	oldStatus, newStatus string) {

	p.publish(ctx, orderData.UniqueID(), messaging.OrderStatusChangedEvent{
		Type:       messaging.EventOrderStatusChanged,
		UniqueID:   orderData.UniqueID(),
		OrderID:    orderData.OrderID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *eventPublisher) stockPushed(ctx context.Context, sku string, quantity int64, outcome string) {
	p.publish(ctx, sku, messaging.StockPushedEvent{
		Type:       messaging.EventStockPushed,
		SKU:        sku,
		Quantity:   quantity,
		Outcome:    outcome,
		OccurredAt: time.Now().UTC(),
	})
}
