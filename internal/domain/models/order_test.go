package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderUniqueID(t *testing.T) {
	order := &OrderData{MarketplaceOrderReference: "TB12345"}
	assert.Equal(t, "MTB12345", order.UniqueID())
}

func TestExchangeRatePreference(t *testing.T) {
	applied := 0.21
	estimated := 0.2

	order := &OrderData{ExchangeRateApplied: &applied, ExchangeRateEstimated: &estimated}
	assert.Equal(t, applied, order.ExchangeRate())

	order = &OrderData{ExchangeRateEstimated: &estimated}
	assert.Equal(t, estimated, order.ExchangeRate())

	order = &OrderData{}
	assert.Equal(t, float64(0), order.ExchangeRate())
}

func TestOrderItemFinancial(t *testing.T) {
	item := &OrderItemData{Financials: map[string]float64{"payment": 10.5}}

	value, ok := item.Financial("payment")
	assert.True(t, ok)
	assert.Equal(t, 10.5, value)

	_, ok = item.Financial("tax")
	assert.False(t, ok)

	empty := &OrderItemData{}
	_, ok = empty.Financial("payment")
	assert.False(t, ok)
}

func TestStatusSets(t *testing.T) {
	sets := DefaultStatusSets()

	assert.True(t, sets.IsShippable(StatusPaid))
	assert.True(t, sets.IsShippable(StatusWaitForGoods))
	assert.False(t, sets.IsShippable(StatusClosed))

	assert.True(t, sets.IsExcluded(StatusShipped))
	assert.False(t, sets.IsExcluded(StatusPaid))

	assert.True(t, sets.IsFirstRunExcluded(StatusPartiallyShipped))
	assert.False(t, sets.IsFirstRunExcluded(StatusPaid))

	assert.True(t, IsClosed(StatusClosed))
	assert.False(t, IsClosed(StatusCompleted))
}
