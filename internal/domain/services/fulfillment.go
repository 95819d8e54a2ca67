package services

import (
	"context"
	"fmt"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/pkg/interfaces"
)

// MarketplaceFulfillmentAPI — срез API маркетплейса для отгрузки заказов
type MarketplaceFulfillmentAPI interface {
	OrderDetails(ctx context.Context, orderID int64) (*models.OrderData, error)
	CompleteOrder(ctx context.Context, orderID int64, trackingReference string, orderItemIDs []int64) error
}

// FulfillmentService отмечает отгрузку заказов на маркетплейсе.
// Перед отгрузкой статус заказа перечитывается с маркетплейса:
// локальные данные могли устареть с последнего цикла синхронизации.
type FulfillmentService struct {
	api      MarketplaceFulfillmentAPI
	store    interfaces.EntityStorePort
	logger   interfaces.LoggerPort
	statuses models.StatusSets
}

// NewFulfillmentService создает сервис отгрузки заказов
func NewFulfillmentService(
	api MarketplaceFulfillmentAPI,
	store interfaces.EntityStorePort,
	logger interfaces.LoggerPort,
	statuses models.StatusSets,
) *FulfillmentService {
	if len(statuses.Shippable) == 0 && len(statuses.Excluded) == 0 {
		statuses = models.DefaultStatusSets()
	}

	return &FulfillmentService{
		api:      api,
		store:    store,
		logger:   logger,
		statuses: statuses,
	}
}

// RefreshOrderStatus перечитывает статус заказа с маркетплейса и
// обновляет локальный, если он изменился. Возвращает актуальный статус.
func (s *FulfillmentService) RefreshOrderStatus(ctx context.Context, order *interfaces.Entity) (string, error) {
	localID, linked, err := s.store.LocalID(ctx, order.ID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve local id of order %s: %w", order.UniqueID, err)
	}
	if !linked {
		return "", models.NewSyncError(models.ValidationError,
			fmt.Sprintf("order %s is not linked to a marketplace order", order.UniqueID))
	}

	remote, err := s.api.OrderDetails(ctx, localID)
	if err != nil {
		return "", fmt.Errorf("failed to refresh order %s: %w", order.UniqueID, err)
	}

	localStatus := order.GetString("status")
	if remote.Status != "" && remote.Status != localStatus {
		if err := s.store.Update(ctx, order.ID, map[string]interface{}{"status": remote.Status}); err != nil {
			return "", fmt.Errorf("failed to update status of order %s: %w", order.UniqueID, err)
		}
		order.Data["status"] = remote.Status

		s.logger.InfoWithContext(ctx, "order status refreshed from marketplace",
			"unique_id", order.UniqueID, "old_status", localStatus, "new_status", remote.Status)

		if err := s.store.CreateComment(ctx, order.ID, commentSource, "Status refresh",
			fmt.Sprintf("Order #%s moved from %s to %s", order.UniqueID, localStatus, remote.Status)); err != nil {
			s.logger.ErrorWithContext(ctx, "comment creation failed on order",
				"unique_id", order.UniqueID, "error", err)
		}
	}

	return order.GetString("status"), nil
}

// IsOrderShippable сообщает, можно ли отгружать заказ, по свежему
// статусу с маркетплейса
func (s *FulfillmentService) IsOrderShippable(ctx context.Context, order *interfaces.Entity) (bool, error) {
	status, err := s.RefreshOrderStatus(ctx, order)
	if err != nil {
		return false, err
	}
	return s.statuses.IsShippable(status), nil
}

// FulfilOrder отмечает заказ отгруженным на маркетплейсе: проверяет
// отгружаемость по свежему статусу, собирает внешние идентификаторы
// строк и отправляет завершение с трек-номером.
func (s *FulfillmentService) FulfilOrder(ctx context.Context, storeID, uniqueID, trackingReference string) error {
	order, err := s.store.LoadByUniqueID(ctx, interfaces.EntityTypeOrder, storeID, uniqueID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", uniqueID, err)
	}
	if order == nil {
		return models.NewSyncError(models.ValidationError,
			fmt.Sprintf("order %s does not exist", uniqueID))
	}

	shippable, err := s.IsOrderShippable(ctx, order)
	if err != nil {
		return err
	}
	if !shippable {
		return models.NewSyncError(models.ValidationError,
			fmt.Sprintf("invalid order status for shipment: %s has %s", uniqueID, order.GetString("status")))
	}

	localOrderID, _, err := s.store.LocalID(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve local id of order %s: %w", uniqueID, err)
	}

	items, err := s.store.Children(ctx, order.ID, interfaces.EntityTypeOrderItem)
	if err != nil {
		return fmt.Errorf("failed to load items of order %s: %w", uniqueID, err)
	}

	itemIDs := make([]int64, 0, len(items))
	for _, item := range items {
		itemID, linked, err := s.store.LocalID(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("failed to resolve local id of orderitem %s: %w", item.UniqueID, err)
		}
		if !linked {
			s.logger.WarnWithContext(ctx, "orderitem has no local id, excluded from fulfillment",
				"orderitem_unique_id", item.UniqueID)
			continue
		}
		itemIDs = append(itemIDs, itemID)
	}

	if err := s.api.CompleteOrder(ctx, localOrderID, trackingReference, itemIDs); err != nil {
		return fmt.Errorf("failed to complete order %s: %w", uniqueID, err)
	}

	s.logger.InfoWithContext(ctx, "order fulfilled on marketplace",
		"unique_id", uniqueID, "tracking_reference", trackingReference, "items", len(itemIDs))

	if err := s.store.CreateComment(ctx, order.ID, commentSource, "Shipment",
		fmt.Sprintf("Order #%s shipped with tracking reference %s", uniqueID, trackingReference)); err != nil {
		s.logger.ErrorWithContext(ctx, "comment creation failed on order",
			"unique_id", uniqueID, "error", err)
	}

	return nil
}
