package services

import (
	"context"
	"fmt"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/pkg/interfaces"
)

// createItems создает строки заказа в хабе. Строка идемпотентна по
// уникальному ключу: повторная синхронизация существующей строки не
// создает дубликат и не задваивает корректировку остатков.
func (r *OrderReconciler) createItems(ctx context.Context, orderData *models.OrderData, order *interfaces.Entity) error {
	for _, orderitem := range orderData.OrderItems {
		localID := orderitem.OrderItemID

		var localProductID, localStockitemID *int64
		var variationSKU, masterSKU string
		var weight float64
		if orderitem.Item != nil {
			localProductID = orderitem.Item.ItemID
			localStockitemID = orderitem.Item.VariationID
			variationSKU = orderitem.Item.SKU
			masterSKU = orderitem.Item.MasterSKU
			weight = orderitem.Item.Weight
		}

		rawSKU := variationSKU
		if rawSKU == "" {
			rawSKU = masterSKU
		}

		sku := rawSKU
		bundleQuantity := int64(1)
		if sku == "" {
			sku = models.FallbackSKU
		} else {
			var warning string
			sku, bundleQuantity, warning = models.SplitBundleSKU(rawSKU, r.cfg.BundleSeparator)
			if warning != "" {
				r.logger.ErrorWithContext(ctx, warning,
					"sku", rawSKU, "order_unique_id", order.UniqueID, "order_item_id", localID)
			}
		}

		uniqueID := fmt.Sprintf("%s-%s-%d", order.UniqueID, sku, localID)

		existing, err := r.store.LoadByUniqueID(ctx, interfaces.EntityTypeOrderItem, order.StoreID, uniqueID)
		if err != nil {
			return fmt.Errorf("failed to load orderitem %s: %w", uniqueID, err)
		}
		if existing != nil {
			continue
		}

		var productID interface{}
		if sku == models.FallbackSKU {
			r.logger.WarnWithContext(ctx, "item data did not contain a valid sku",
				"orderitem_unique_id", uniqueID, "master_sku", masterSKU, "variation_sku", variationSKU)
		} else {
			product, err := r.store.LoadByUniqueID(ctx, interfaces.EntityTypeProduct, interfaces.GlobalStoreID, sku)
			if err != nil {
				return fmt.Errorf("failed to load product %s: %w", sku, err)
			}
			if product != nil {
				productID = product.ID
				if err := r.reconcileLink(ctx, product, localProductID, "product", sku); err != nil {
					return err
				}
			} else {
				r.logger.ErrorWithContext(ctx, "no product existing for order item",
					"sku", sku, "orderitem_unique_id", uniqueID)
			}

			stockitem, err := r.store.LoadByUniqueID(ctx, interfaces.EntityTypeStockItem, interfaces.GlobalStoreID, sku)
			if err != nil {
				return fmt.Errorf("failed to load stockitem %s: %w", sku, err)
			}
			if stockitem != nil {
				if err := r.reconcileLink(ctx, stockitem, localStockitemID, "stockitem", sku); err != nil {
					return err
				}
			} else {
				r.logger.ErrorWithContext(ctx, "no stockitem existing for order item",
					"sku", sku, "orderitem_unique_id", uniqueID)
			}
		}

		quantity := orderitem.Quantity * bundleQuantity

		totalTax, _ := orderitem.Financial(models.TotalCodeTax)
		itemTax := totalTax
		if quantity > 0 {
			itemTax = totalTax / float64(quantity)
		}

		totalDiscount, _ := orderitem.Financial(models.TotalCodeDiscount)
		itemDiscount := totalDiscount
		if quantity > 0 {
			itemDiscount = totalDiscount / float64(quantity)
		}

		totalPrice := totalDiscount
		if payment, ok := orderitem.Financial(models.TotalCodePayment); ok {
			totalPrice = payment + totalDiscount
		}

		itemPrice := itemDiscount
		if price, ok := orderitem.Financial(models.TotalCodePrice); ok {
			itemPrice = price/float64(bundleQuantity) + itemDiscount
		}

		data := map[string]interface{}{
			"product":        productID,
			"sku":            sku,
			"product_name":   orderitem.Name,
			"is_physical":    1,
			"product_type":   nil,
			"quantity":       quantity,
			"item_price":     itemPrice,
			"item_discount":  itemDiscount,
			"item_tax":       itemTax,
			"total_price":    totalPrice,
			"total_discount": totalDiscount,
			"total_tax":      totalTax,
			"weight":         weight,
		}

		r.logger.InfoWithContext(ctx, "created order item data",
			"orderitem_unique_id", uniqueID, "quantity", quantity)

		created, err := r.store.Create(ctx, &interfaces.Entity{
			Type:     interfaces.EntityTypeOrderItem,
			StoreID:  order.StoreID,
			UniqueID: uniqueID,
			ParentID: order.ID,
			Data:     data,
		})
		if err != nil {
			return fmt.Errorf("failed to create orderitem %s: %w", uniqueID, err)
		}

		if err := r.store.Link(ctx, created.ID, localID); err != nil {
			return fmt.Errorf("failed to link orderitem %s: %w", uniqueID, err)
		}

		if err := r.updateStockQuantities(ctx, order, created); err != nil {
			return fmt.Errorf("failed to update stock quantities on %s: %w", uniqueID, err)
		}
	}

	return nil
}

// reconcileLink выравнивает привязку внешнего идентификатора сущности.
// Устаревшая привязка снимается перед установкой новой, чтобы один
// внешний идентификатор не указывал на две сущности.
func (r *OrderReconciler) reconcileLink(ctx context.Context, entity *interfaces.Entity,
	localID *int64, kind, sku string) error {

	storedID, linked, err := r.store.LocalID(ctx, entity.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve local id of %s %s: %w", kind, sku, err)
	}

	if linked && localID != nil && storedID != *localID {
		if err := r.store.Unlink(ctx, entity.ID); err != nil {
			return fmt.Errorf("failed to unlink %s %s: %w", kind, sku, err)
		}
		r.logger.WarnWithContext(ctx, "unlinked stale local id",
			"kind", kind, "sku", sku, "stored_local_id", storedID, "local_id", *localID)
		linked = false
	}

	if localID == nil && !linked {
		r.logger.ErrorWithContext(ctx, "unable to link entity", "kind", kind, "sku", sku)
		return nil
	}

	if localID != nil && (!linked || storedID != *localID) {
		if err := r.store.Link(ctx, entity.ID, *localID); err != nil {
			return fmt.Errorf("failed to link %s %s: %w", kind, sku, err)
		}
	}

	return nil
}

// updateStockQuantities корректирует остатки стокайтема по статусу
// заказа: обрабатываемый заказ резервирует количество в qty_pre_transit,
// закрытый возвращает его в available. Сбой самой записи логируется,
// но не прерывает синхронизацию заказа.
func (r *OrderReconciler) updateStockQuantities(ctx context.Context, order, orderitem *interfaces.Entity) error {
	status := order.GetString("status")

	var attributeCode string
	switch {
	case r.cfg.Statuses.IsShippable(status):
		attributeCode = "qty_pre_transit"
	case models.IsClosed(status):
		attributeCode = "available"
	default:
		r.logger.DebugWithContext(ctx, "no stock quantity update",
			"order_unique_id", order.UniqueID, "status", status)
		return nil
	}

	sku := orderitem.GetString("sku")
	stockitem, err := r.store.LoadByUniqueID(ctx, interfaces.EntityTypeStockItem, interfaces.GlobalStoreID, sku)
	if err != nil {
		return fmt.Errorf("failed to load stockitem %s: %w", sku, err)
	}
	if stockitem == nil {
		r.logger.ErrorWithContext(ctx, "stockitem does not exist",
			"sku", sku, "order_unique_id", order.UniqueID)
		return nil
	}

	current := stockitem.GetFloat(attributeCode, 0)
	quantity := orderitem.GetFloat("quantity", 0)
	updated := current + quantity

	if err := r.store.Update(ctx, stockitem.ID, map[string]interface{}{attributeCode: updated}); err != nil {
		r.logger.ErrorWithContext(ctx, "stockitem quantity update failed",
			"sku", sku, "attribute", attributeCode, "value", updated, "error", err)
		return nil
	}

	r.logger.InfoWithContext(ctx, "updated stockitem quantity",
		"sku", sku, "attribute", attributeCode, "quantity", quantity, "value", updated)
	return nil
}
