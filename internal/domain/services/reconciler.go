package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/internal/metrics"
	"github.com/athebyme/mms-connector/pkg/interfaces"
)

// ErrCycleInProgress возвращается, когда предыдущий цикл еще держит блокировку
var ErrCycleInProgress = errors.New("order sync cycle is already running")

// commentSource — источник комментариев, которые коннектор оставляет на заказах
const commentSource = "MMS/HUB"

// cycleLockKey — ключ распределенной блокировки цикла синхронизации
const cycleLockKey = "mms:sync:orders:lock"

// MarketplaceOrderAPI — срез API маркетплейса, который нужен реконсилеру
type MarketplaceOrderAPI interface {
	OrderIDsSince(ctx context.Context, sinceID int64) (*models.OrderIDsSince, error)
	OrderDetails(ctx context.Context, orderID int64) (*models.OrderData, error)
}

// ReconcilerConfig — настройки цикла синхронизации заказов
type ReconcilerConfig struct {
	// StoreID используется, когда заказ не несет marketplace_id
	StoreID string
	// InitialSinceID — стартовый курсор; совпадение с текущим означает
	// первый прогон и включает дополнительные исключения статусов
	InitialSinceID int64
	// EmailDomain — домен синтезированных email покупателей
	EmailDomain string
	// BundleSeparator — разделитель составного SKU в строках заказа
	BundleSeparator string
	// CycleLockTTL — срок жизни блокировки цикла
	CycleLockTTL time.Duration
	// OrderTopic — тема брокера для событий заказов
	OrderTopic string
	// Statuses — наборы статусов отбора и побочных эффектов
	Statuses models.StatusSets
}

// CycleReport — итог одного цикла синхронизации
type CycleReport struct {
	SinceID    int64 `json:"since_id"`
	NewSinceID int64 `json:"new_since_id"`
	Listed     int   `json:"listed"`
	Ingested   int   `json:"ingested"`
	Excluded   int   `json:"excluded"`
}

// OrderReconciler инкрементально переносит заказы маркетплейса в хаб.
// Курсор продвигается только после полностью успешного цикла: частично
// обработанная пачка будет перечитана целиком, материализация заказов
// идемпотентна.
type OrderReconciler struct {
	api       MarketplaceOrderAPI
	store     interfaces.EntityStorePort
	cache     interfaces.CachePort
	publisher *eventPublisher
	logger    interfaces.LoggerPort
	cfg       ReconcilerConfig
}

// NewOrderReconciler создает реконсилер заказов.
// cache и messaging опциональны: без cache цикл не защищен блокировкой,
// без messaging события не публикуются.
func NewOrderReconciler(
	api MarketplaceOrderAPI,
	store interfaces.EntityStorePort,
	cache interfaces.CachePort,
	messaging interfaces.MessagingPort,
	logger interfaces.LoggerPort,
	cfg ReconcilerConfig,
) *OrderReconciler {
	if cfg.InitialSinceID <= 0 {
		cfg.InitialSinceID = 1
	}
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = "example.com"
	}
	if cfg.BundleSeparator == "" {
		cfg.BundleSeparator = "**"
	}
	if cfg.CycleLockTTL <= 0 {
		cfg.CycleLockTTL = 10 * time.Minute
	}
	if len(cfg.Statuses.Shippable) == 0 && len(cfg.Statuses.Excluded) == 0 {
		cfg.Statuses = models.DefaultStatusSets()
	}

	return &OrderReconciler{
		api:       api,
		store:     store,
		cache:     cache,
		publisher: newEventPublisher(messaging, logger, cfg.OrderTopic),
		logger:    logger,
		cfg:       cfg,
	}
}

// RunCycle выполняет один цикл синхронизации: листинг изменившихся
// заказов с курсора, загрузка и материализация каждого, продвижение
// курсора. Любая ошибка внутри пачки прерывает цикл без продвижения.
func (r *OrderReconciler) RunCycle(ctx context.Context) (*CycleReport, error) {
	if r.cache != nil {
		acquired, err := r.cache.Lock(ctx, cycleLockKey, r.cfg.CycleLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire cycle lock: %w", err)
		}
		if !acquired {
			metrics.SyncCycles.WithLabelValues(metrics.ResultLocked).Inc()
			return nil, ErrCycleInProgress
		}
		defer func() {
			if err := r.cache.Unlock(context.Background(), cycleLockKey); err != nil {
				r.logger.Warn("failed to release cycle lock", "error", err)
			}
		}()
	}

	started := time.Now()
	report, err := r.runCycle(ctx)
	metrics.SyncCycleDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.SyncCycles.WithLabelValues(metrics.ResultFailed).Inc()
		return report, err
	}
	metrics.SyncCycles.WithLabelValues(metrics.ResultSuccess).Inc()
	return report, nil
}

func (r *OrderReconciler) runCycle(ctx context.Context) (*CycleReport, error) {
	cursor, err := r.store.SyncCursor(ctx, interfaces.EntityTypeOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync cursor: %w", err)
	}

	sinceID := cursor.SinceID
	if sinceID <= 0 {
		sinceID = r.cfg.InitialSinceID
	}
	initialRun := sinceID == r.cfg.InitialSinceID

	r.logger.InfoWithContext(ctx, "retrieving orders", "since_id", sinceID, "initial_run", initialRun)

	listing, err := r.api.OrderIDsSince(ctx, sinceID)
	if err != nil {
		return nil, models.WrapSyncError(models.ReconciliationError,
			fmt.Sprintf("failed to list order ids since %d", sinceID), err)
	}

	report := &CycleReport{SinceID: sinceID, NewSinceID: listing.NewSinceID, Listed: len(listing.OrderIDs)}

	for _, orderID := range listing.OrderIDs {
		orderData, err := r.orderDetails(ctx, sinceID, orderID)
		if err != nil {
			return report, models.WrapSyncError(models.ReconciliationError,
				fmt.Sprintf("failed to retrieve order %d", orderID), err)
		}

		if !r.isOrderToBeRetrieved(ctx, orderData, initialRun) {
			report.Excluded++
			metrics.OrdersProcessed.WithLabelValues(metrics.OutcomeExcluded).Inc()
			continue
		}

		created, err := r.storeOrderData(ctx, orderData)
		if err != nil {
			metrics.OrdersProcessed.WithLabelValues(metrics.OutcomeFailed).Inc()
			return report, models.WrapSyncError(models.ReconciliationError,
				fmt.Sprintf("failed to store order %d", orderID), err)
		}

		report.Ingested++
		if created {
			metrics.OrdersProcessed.WithLabelValues(metrics.OutcomeCreated).Inc()
		} else {
			metrics.OrdersProcessed.WithLabelValues(metrics.OutcomeUpdated).Inc()
		}
	}

	// Исключение всех заказов пачки — не сбой: курсор продвигается,
	// чтобы не перечитывать одни и те же заказы вечно.
	newCursor := interfaces.SyncCursor{SinceID: listing.NewSinceID, RetrievedAt: time.Now().UTC()}
	if err := r.store.SetSyncCursor(ctx, interfaces.EntityTypeOrder, newCursor); err != nil {
		return report, fmt.Errorf("failed to advance sync cursor to %d: %w", listing.NewSinceID, err)
	}
	metrics.SyncCursorSinceID.Set(float64(listing.NewSinceID))

	r.logger.InfoWithContext(ctx, "sync cycle completed",
		"since_id", sinceID, "new_since_id", listing.NewSinceID,
		"listed", report.Listed, "ingested", report.Ingested, "excluded", report.Excluded)

	return report, nil
}

// orderDetails загружает данные заказа, кэшируя их в пределах одной
// пачки: повтор прерванного цикла идет с тем же курсором и не перечитывает
// уже загруженные заказы. Новая пачка получает новый курсор и свежие данные.
func (r *OrderReconciler) orderDetails(ctx context.Context, sinceID, orderID int64) (*models.OrderData, error) {
	if r.cache == nil {
		return r.api.OrderDetails(ctx, orderID)
	}

	key := fmt.Sprintf("mms:sync:orders:detail:%d:%d", sinceID, orderID)
	if raw, err := r.cache.Get(ctx, key); err == nil {
		var order models.OrderData
		if err := json.Unmarshal(raw, &order); err == nil {
			return &order, nil
		}
		_ = r.cache.Delete(ctx, key)
	}

	order, err := r.api.OrderDetails(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(order); err == nil {
		if err := r.cache.Set(ctx, key, raw, r.cfg.CycleLockTTL); err != nil {
			r.logger.WarnWithContext(ctx, "failed to cache order details",
				"order_id", orderID, "error", err)
		}
	}
	return order, nil
}

// isOrderToBeRetrieved решает, импортировать ли заказ. Заказы в
// исключенных статусах пропускаются; на первом прогоне дополнительно
// отфильтровываются исторические статусы. Заказ без статуса
// импортируется с предупреждением.
func (r *OrderReconciler) isOrderToBeRetrieved(ctx context.Context, orderData *models.OrderData, initialRun bool) bool {
	status := orderData.Status
	if status == "" {
		r.logger.WarnWithContext(ctx, "order carries no status", "order_id", orderData.OrderID)
		return true
	}

	if r.cfg.Statuses.IsExcluded(status) {
		return false
	}
	if initialRun && r.cfg.Statuses.IsFirstRunExcluded(status) {
		return false
	}
	return true
}

// storeOrderData материализует один заказ маркетплейса в хабе:
// создает новый заказ со всеми дочерними сущностями в одной транзакции
// либо обновляет существующий, отслеживая смену статуса.
func (r *OrderReconciler) storeOrderData(ctx context.Context, orderData *models.OrderData) (bool, error) {
	storeID := orderData.MarketplaceID
	if storeID == "" {
		storeID = r.cfg.StoreID
	}

	uniqueID := orderData.UniqueID()
	localID := orderData.OrderID

	data, err := r.buildOrderData(ctx, orderData)
	if err != nil {
		return false, err
	}

	if err := r.resolveCustomer(ctx, orderData, data, uniqueID); err != nil {
		return false, err
	}

	existing, err := r.store.LoadByLocalID(ctx, interfaces.EntityTypeOrder, storeID, localID)
	if err != nil {
		return false, fmt.Errorf("failed to load order %s by local id: %w", uniqueID, err)
	}

	if existing == nil {
		existing, err = r.store.LoadByUniqueID(ctx, interfaces.EntityTypeOrder, storeID, uniqueID)
		if err != nil {
			return false, fmt.Errorf("failed to load order %s by unique id: %w", uniqueID, err)
		}

		if existing == nil {
			created, err := r.createOrder(ctx, orderData, data, storeID, uniqueID, localID)
			if err != nil {
				return false, err
			}
			r.commentOrder(ctx, created.ID, uniqueID, "Initial sync",
				fmt.Sprintf("Order #%s synced to hub.", uniqueID))
			r.publisher.orderSynced(ctx, created, orderData, true)
			return true, nil
		}

		// Заказ существует, но не привязан к внешнему идентификатору:
		// восстанавливаем привязку, данные не трогаем.
		r.logger.WarnWithContext(ctx, "relinked unlinked order", "unique_id", uniqueID, "local_id", localID)
		if err := r.store.Link(ctx, existing.ID, localID); err != nil {
			return false, fmt.Errorf("failed to link order %s: %w", uniqueID, err)
		}
	}

	if err := r.updateOrder(ctx, orderData, data, existing, uniqueID); err != nil {
		return false, err
	}
	r.publisher.orderSynced(ctx, existing, orderData, false)
	return false, nil
}

// createOrder создает заказ, его адреса, строки и привязки в одной
// транзакции. Ошибка любого шага откатывает все изменения.
func (r *OrderReconciler) createOrder(ctx context.Context, orderData *models.OrderData,
	data map[string]interface{}, storeID, uniqueID string, localID int64) (*interfaces.Entity, error) {

	var created *interfaces.Entity
	err := r.store.WithinTransaction(ctx, func(txCtx context.Context) error {
		addressRefs, err := r.createAddresses(txCtx, orderData)
		if err != nil {
			return err
		}
		for key, value := range addressRefs {
			data[key] = value
		}

		entity, err := r.store.Create(txCtx, &interfaces.Entity{
			Type:     interfaces.EntityTypeOrder,
			StoreID:  storeID,
			UniqueID: uniqueID,
			Data:     data,
		})
		if err != nil {
			return fmt.Errorf("failed to create order %s: %w", uniqueID, err)
		}

		if err := r.store.Link(txCtx, entity.ID, localID); err != nil {
			return fmt.Errorf("failed to link order %s: %w", uniqueID, err)
		}

		r.logger.InfoWithContext(txCtx, "new order", "unique_id", uniqueID, "local_id", localID)

		if err := r.createItems(txCtx, orderData, entity); err != nil {
			return err
		}

		created = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// updateOrder обновляет существующий заказ. grand_total неизменяем после
// создания; смена статуса порождает комментарий и, при переходе в
// обрабатываемое или закрытое состояние, корректировку остатков.
func (r *OrderReconciler) updateOrder(ctx context.Context, orderData *models.OrderData,
	data map[string]interface{}, existing *interfaces.Entity, uniqueID string) error {

	if existing.Has("grand_total") {
		delete(data, "grand_total")
	}

	oldStatus := existing.GetString("status")
	newStatus := orderData.Status
	statusChanged := oldStatus != newStatus

	movedToProcessing := r.cfg.Statuses.IsShippable(newStatus) && !r.cfg.Statuses.IsShippable(oldStatus)
	movedToCancel := models.IsClosed(newStatus) && !models.IsClosed(oldStatus)

	if err := r.store.Update(ctx, existing.ID, data); err != nil {
		return fmt.Errorf("failed to update order %s: %w", uniqueID, err)
	}
	for key, value := range data {
		existing.Data[key] = value
	}

	r.logger.InfoWithContext(ctx, "updated order",
		"unique_id", uniqueID, "old_status", oldStatus, "new_status", newStatus)

	if movedToProcessing || movedToCancel {
		items, err := r.store.Children(ctx, existing.ID, interfaces.EntityTypeOrderItem)
		if err != nil {
			return fmt.Errorf("failed to load items of order %s: %w", uniqueID, err)
		}
		for _, item := range items {
			if err := r.updateStockQuantities(ctx, existing, item); err != nil {
				return fmt.Errorf("failed to update stock on order %s: %w", uniqueID, err)
			}
		}
	}

	if statusChanged {
		r.commentOrder(ctx, existing.ID, uniqueID, "Status change",
			fmt.Sprintf("Order #%s moved from %s to %s", uniqueID, oldStatus, newStatus))
		r.publisher.orderStatusChanged(ctx, orderData, oldStatus, newStatus)
	}

	return nil
}

// resolveCustomer находит или создает покупателя по email и подставляет
// его идентификатор в данные заказа. Покупатели глобальны для всех витрин.
func (r *OrderReconciler) resolveCustomer(ctx context.Context, orderData *models.OrderData,
	data map[string]interface{}, uniqueID string) error {

	email, _ := data["customer_email"].(string)
	if email == "" {
		r.logger.ErrorWithContext(ctx, "order has no customer assigned", "unique_id", uniqueID)
		return nil
	}

	customer, err := r.store.LoadByUniqueID(ctx, interfaces.EntityTypeCustomer, interfaces.GlobalStoreID, email)
	if err != nil {
		return fmt.Errorf("failed to load customer %s: %w", email, err)
	}

	if customer == nil {
		name, err := customerName(orderData)
		if err != nil {
			return fmt.Errorf("failed to create customer for order %s: %w", uniqueID, err)
		}

		customerData := nameParts(name)
		customerData["customer_type"] = "MMS customer"

		customer, err = r.store.Create(ctx, &interfaces.Entity{
			Type:     interfaces.EntityTypeCustomer,
			StoreID:  interfaces.GlobalStoreID,
			UniqueID: email,
			Data:     customerData,
		})
		if err != nil {
			return fmt.Errorf("failed to create customer for order %s: %w", uniqueID, err)
		}
	}

	data["customer"] = customer.ID
	return nil
}

// buildOrderData собирает атрибуты заказа хаба из данных маркетплейса
func (r *OrderReconciler) buildOrderData(ctx context.Context, orderData *models.OrderData) (map[string]interface{}, error) {
	data := make(map[string]interface{})

	for _, address := range orderData.Addresses {
		if address.Name != "" {
			data["customer_name"] = address.Name
			break
		}
	}
	for _, address := range orderData.Addresses {
		if address.ContactEmail1 != "" {
			data["customer_email"] = address.ContactEmail1
			break
		}
	}

	totals := computeOrderTotals(orderData)
	for code, total := range totals.byCode {
		data[code+"_total"] = total
	}

	// Доставка включена в цены строк, отдельный итог всегда нулевой
	data["shipping_total"] = float64(0)
	// Итог по price не присваивается заказу
	delete(data, models.TotalCodePrice+"_total")

	if payment, ok := data[models.TotalCodePayment+"_total"]; ok {
		data["payment_method"] = map[string]interface{}{models.PaymentMethodCode: payment}
		delete(data, models.TotalCodePayment+"_total")
	}

	if totals.shippingMethod != "" {
		data["shipping_method"] = totals.shippingMethod
	} else {
		data["shipping_method"] = defaultShippingMethod
	}

	data["status"] = orderData.Status
	data["placed_at"] = placedAt(orderData.CreatedAt)
	data["grand_total"] = totals.grandTotal
	data["base_to_currency_rate"] = totals.baseToCurrencyRate

	email, _ := data["customer_email"].(string)
	if len(email) < 6 {
		synthesized, err := customerEmail(orderData, r.cfg.EmailDomain)
		if err != nil {
			return nil, err
		}
		data["customer_email"] = synthesized
	}

	return data, nil
}

// placedAt нормализует момент размещения заказа к формату хаба.
// Нераспознанное значение сохраняется как есть.
func placedAt(createdAt string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, createdAt); err == nil {
			return ts.Format("2006-01-02 15:04:05")
		}
	}
	return createdAt
}

// commentOrder добавляет комментарий к заказу. Сбой комментария не
// прерывает синхронизацию, только логируется.
func (r *OrderReconciler) commentOrder(ctx context.Context, entityID int64, uniqueID, title, body string) {
	if err := r.store.CreateComment(ctx, entityID, commentSource, title, body); err != nil {
		r.logger.ErrorWithContext(ctx, "comment creation failed on order",
			"unique_id", uniqueID, "title", title, "error", err)
	}
}
