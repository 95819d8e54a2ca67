package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики коннектора. Регистрируются в глобальном реестре prometheus,
// endpoint отдает их через promhttp.
var (
	// SyncCycles считает циклы синхронизации заказов по результату
	SyncCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mms_sync_cycles_total",
		Help: "Total number of order sync cycles by result",
	}, []string{"result"})

	// SyncCycleDuration — длительность цикла синхронизации
	SyncCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mms_sync_cycle_duration_seconds",
		Help:    "Order sync cycle duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// OrdersProcessed считает заказы по исходу обработки
	OrdersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mms_orders_processed_total",
		Help: "Total number of orders by processing outcome",
	}, []string{"outcome"})

	// SyncCursorSinceID — текущее значение курсора выборки заказов
	SyncCursorSinceID = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mms_sync_cursor_since_id",
		Help: "Current order sync cursor position",
	})

	// StockPushes считает выгрузки остатков по исходу
	StockPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mms_stock_pushes_total",
		Help: "Total number of stock pushes by outcome",
	}, []string{"outcome"})

	// RestCalls считает вызовы REST API маркетплейса по методу и исходу
	RestCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mms_rest_calls_total",
		Help: "Total number of marketplace REST calls by method and outcome",
	}, []string{"method", "outcome"})
)

// Исходы обработки заказа для метрики OrdersProcessed
const (
	OutcomeCreated  = "created"
	OutcomeUpdated  = "updated"
	OutcomeExcluded = "excluded"
	OutcomeFailed   = "failed"
)

// Результаты цикла для метрики SyncCycles
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultLocked  = "locked"
)
