package services

import (
	"context"
	"fmt"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/internal/metrics"
	"github.com/athebyme/mms-connector/pkg/interfaces"
)

// availableAttribute — единственный атрибут стокайтема, изменение
// которого триггерит выгрузку остатка
const availableAttribute = "available"

// MarketplaceStockAPI — срез API маркетплейса для выгрузки остатков
type MarketplaceStockAPI interface {
	SetStock(ctx context.Context, variationID int64, quantity int64) (int64, error)
	SetStockBySKU(ctx context.Context, sku string, quantity int64) (int64, error)
}

// StockPusherConfig — настройки выгрузки остатков
type StockPusherConfig struct {
	Enabled bool
	// BundleSeparator — разделитель составного SKU на маркетплейсе
	BundleSeparator string
	// MultiplierAttribute — атрибут продукта со списком множителей
	MultiplierAttribute string
	// StockTopic — тема брокера для событий выгрузки
	StockTopic string
}

// StockPusher выгружает остатки стокайтемов на маркетплейс, раскладывая
// остаток по настроенным множителям составных SKU. Попытки по множителям
// независимы: сбой одного варианта не мешает остальным, но портит
// итоговый результат.
type StockPusher struct {
	api       MarketplaceStockAPI
	store     interfaces.EntityStorePort
	publisher *eventPublisher
	logger    interfaces.LoggerPort
	cfg       StockPusherConfig
}

// NewStockPusher создает выгрузчик остатков.
// messaging опционален: без него события не публикуются.
func NewStockPusher(
	api MarketplaceStockAPI,
	store interfaces.EntityStorePort,
	messaging interfaces.MessagingPort,
	logger interfaces.LoggerPort,
	cfg StockPusherConfig,
) *StockPusher {
	if cfg.BundleSeparator == "" {
		cfg.BundleSeparator = "**"
	}
	if cfg.MultiplierAttribute == "" {
		cfg.MultiplierAttribute = "bundle_multipliers"
	}

	return &StockPusher{
		api:       api,
		store:     store,
		publisher: newEventPublisher(messaging, logger, cfg.StockTopic),
		logger:    logger,
		cfg:       cfg,
	}
}

// PushUpdates выгружает остаток, если среди изменившихся атрибутов есть
// available. Любое другое изменение — успешный пропуск.
func (p *StockPusher) PushUpdates(ctx context.Context, stockitem *interfaces.Entity, changedAttributes []string) (*models.PushOutcome, error) {
	outcome := &models.PushOutcome{}

	if !p.cfg.Enabled {
		p.logger.DebugWithContext(ctx, "stock push disabled", "sku", stockitem.UniqueID)
		return outcome, nil
	}

	changed := false
	for _, attribute := range changedAttributes {
		if attribute == availableAttribute {
			changed = true
			break
		}
	}
	if !changed {
		p.logger.DebugWithContext(ctx, "stock push skipped: available did not change",
			"sku", stockitem.UniqueID, "attributes", changedAttributes)
		return outcome, nil
	}

	return p.Push(ctx, stockitem)
}

// PushBySKU загружает стокайтем по SKU и выгружает его остаток
func (p *StockPusher) PushBySKU(ctx context.Context, sku string) (*models.PushOutcome, error) {
	stockitem, err := p.store.LoadByUniqueID(ctx, interfaces.EntityTypeStockItem, interfaces.GlobalStoreID, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to load stockitem %s: %w", sku, err)
	}
	if stockitem == nil {
		return nil, models.NewSyncError(models.ValidationError,
			fmt.Sprintf("stockitem %s does not exist", sku))
	}
	return p.Push(ctx, stockitem)
}

// Push выгружает остаток стокайтема по всем множителям его продукта.
// Продукт без атрибута множителей не настроен для маркетплейса:
// выгрузка пропускается, это не ошибка.
func (p *StockPusher) Push(ctx context.Context, stockitem *interfaces.Entity) (*models.PushOutcome, error) {
	outcome := &models.PushOutcome{}
	sku := stockitem.UniqueID

	product, err := p.store.LoadByUniqueID(ctx, interfaces.EntityTypeProduct, interfaces.GlobalStoreID, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", sku, err)
	}

	spec, configured := models.ParseBundleSpec(product.GetString(p.cfg.MultiplierAttribute))
	if !configured {
		p.logger.InfoWithContext(ctx, "stock push skipped: product not configured for marketplace", "sku", sku)
		metrics.StockPushes.WithLabelValues("skipped").Inc()
		return outcome, nil
	}

	available := int64(stockitem.GetFloat(availableAttribute, 0))

	variationID, linked, err := p.store.LocalID(ctx, stockitem.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve local id of stockitem %s: %w", sku, err)
	}

	for _, multiplier := range spec.Multipliers {
		remoteSKU := models.RemoteSKU(sku, p.cfg.BundleSeparator, multiplier)
		quantity := models.RemoteQuantity(available, multiplier)

		var sent int64
		var pushErr error
		pushed := false

		// Выгрузка по идентификатору только для базового SKU с привязкой,
		// иначе — и при сбое по идентификатору — поиск вариации по SKU.
		if multiplier == 1 && linked {
			sent, pushErr = p.api.SetStock(ctx, variationID, quantity)
			if pushErr != nil {
				p.logger.WarnWithContext(ctx, "stock push by id failed, falling back to sku",
					"sku", remoteSKU, "variation_id", variationID, "error", pushErr)
			} else {
				pushed = true
			}
		}
		if !pushed {
			sent, pushErr = p.api.SetStockBySKU(ctx, remoteSKU, quantity)
		}

		result := models.PushResult{SKU: remoteSKU, Quantity: quantity}
		if pushErr != nil && !pushed {
			result.Severity = models.PushFailed
			result.Err = pushErr
			metrics.StockPushes.WithLabelValues("failed").Inc()
			p.logger.ErrorWithContext(ctx, "stock push failed",
				"sku", remoteSKU, "quantity", quantity, "error", pushErr)
		} else {
			result.Severity = models.PushSuccess
			result.Quantity = sent
			metrics.StockPushes.WithLabelValues("success").Inc()
			p.logger.InfoWithContext(ctx, "stock pushed",
				"sku", remoteSKU, "quantity", sent, "multiplier", multiplier)
		}

		outcome.Add(result)
		p.publisher.stockPushed(ctx, remoteSKU, result.Quantity, result.Severity.String())
	}

	return outcome, nil
}
