package services

import (
	"context"
	"errors"
	"testing"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStockAPI — API остатков маркетплейса для тестов выгрузчика
type fakeStockAPI struct {
	byID      map[int64]int64
	bySKU     map[string]int64
	failByID  bool
	failBySKU map[string]error
}

func newFakeStockAPI() *fakeStockAPI {
	return &fakeStockAPI{
		byID:      make(map[int64]int64),
		bySKU:     make(map[string]int64),
		failBySKU: make(map[string]error),
	}
}

func (a *fakeStockAPI) SetStock(ctx context.Context, variationID int64, quantity int64) (int64, error) {
	if a.failByID {
		return 0, errors.New("variation rejected update")
	}
	a.byID[variationID] = quantity
	return quantity, nil
}

func (a *fakeStockAPI) SetStockBySKU(ctx context.Context, sku string, quantity int64) (int64, error) {
	if err, ok := a.failBySKU[sku]; ok {
		return 0, err
	}
	a.bySKU[sku] = quantity
	return quantity, nil
}

func newTestPusher(api *fakeStockAPI, store *fakeStore) *StockPusher {
	return NewStockPusher(api, store, nil, nopLogger{}, StockPusherConfig{Enabled: true})
}

// seedStock создает продукт и стокайтем с заданным остатком
func seedStock(store *fakeStore, sku, multipliers string, available float64) *interfaces.Entity {
	productData := map[string]interface{}{}
	if multipliers != "" {
		productData["bundle_multipliers"] = multipliers
	}
	store.seed(interfaces.EntityTypeProduct, interfaces.GlobalStoreID, sku, productData)
	return store.seed(interfaces.EntityTypeStockItem, interfaces.GlobalStoreID, sku,
		map[string]interface{}{"available": available})
}

func TestPushAllMultipliers(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	stockitem := seedStock(store, "ABC-1", "3,6", 20)
	require.NoError(t, store.Link(ctx, stockitem.ID, 66))

	api := newFakeStockAPI()
	outcome, err := newTestPusher(api, store).PushBySKU(ctx, "ABC-1")
	require.NoError(t, err)

	success := outcome.Success()
	require.NotNil(t, success)
	assert.True(t, *success)
	assert.Len(t, outcome.Results(), 3)

	assert.Equal(t, int64(20), api.byID[66])
	assert.Equal(t, int64(6), api.bySKU["ABC-1**3"])
	assert.Equal(t, int64(3), api.bySKU["ABC-1**6"])
	assert.NotContains(t, api.bySKU, "ABC-1")
}

func TestPushFallsBackToSKUWhenIDFails(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	stockitem := seedStock(store, "ABC-1", "1", 20)
	require.NoError(t, store.Link(ctx, stockitem.ID, 66))

	api := newFakeStockAPI()
	api.failByID = true

	outcome, err := newTestPusher(api, store).PushBySKU(ctx, "ABC-1")
	require.NoError(t, err)

	success := outcome.Success()
	require.NotNil(t, success)
	assert.True(t, *success)
	assert.Equal(t, int64(20), api.bySKU["ABC-1"])
}

func TestPushUnlinkedUsesSKU(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedStock(store, "ABC-1", "1", 20)

	api := newFakeStockAPI()
	outcome, err := newTestPusher(api, store).PushBySKU(ctx, "ABC-1")
	require.NoError(t, err)

	success := outcome.Success()
	require.NotNil(t, success)
	assert.True(t, *success)
	assert.Empty(t, api.byID)
	assert.Equal(t, int64(20), api.bySKU["ABC-1"])
}

func TestPushPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedStock(store, "ABC-1", "3,6", 20)

	api := newFakeStockAPI()
	api.failBySKU["ABC-1**3"] = errors.New("variation does not exist")

	outcome, err := newTestPusher(api, store).PushBySKU(ctx, "ABC-1")
	require.NoError(t, err)

	success := outcome.Success()
	require.NotNil(t, success)
	assert.False(t, *success)
	assert.Equal(t, models.PushFailed, outcome.Worst())

	// сбой одного варианта не мешает остальным
	assert.Equal(t, int64(20), api.bySKU["ABC-1"])
	assert.Equal(t, int64(3), api.bySKU["ABC-1**6"])
}

func TestPushSkipsUnconfiguredProduct(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedStock(store, "ABC-1", "", 20)

	api := newFakeStockAPI()
	outcome, err := newTestPusher(api, store).PushBySKU(ctx, "ABC-1")
	require.NoError(t, err)

	assert.Nil(t, outcome.Success())
	assert.Empty(t, api.bySKU)
	assert.Empty(t, api.byID)
}

func TestPushBySKUUnknownStockitem(t *testing.T) {
	store := newFakeStore()
	api := newFakeStockAPI()

	_, err := newTestPusher(api, store).PushBySKU(context.Background(), "MISSING")
	assert.True(t, models.IsKind(err, models.ValidationError))
}

func TestPushUpdatesGatesOnAvailable(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	stockitem := seedStock(store, "ABC-1", "1", 20)

	api := newFakeStockAPI()
	pusher := newTestPusher(api, store)

	outcome, err := pusher.PushUpdates(ctx, stockitem, []string{"cost", "total_qty"})
	require.NoError(t, err)
	assert.Nil(t, outcome.Success())
	assert.Empty(t, api.bySKU)

	outcome, err = pusher.PushUpdates(ctx, stockitem, []string{"available"})
	require.NoError(t, err)
	require.NotNil(t, outcome.Success())
	assert.Equal(t, int64(20), api.bySKU["ABC-1"])
}

func TestPushUpdatesDisabled(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	stockitem := seedStock(store, "ABC-1", "1", 20)

	api := newFakeStockAPI()
	pusher := NewStockPusher(api, store, nil, nopLogger{}, StockPusherConfig{Enabled: false})

	outcome, err := pusher.PushUpdates(ctx, stockitem, []string{"available"})
	require.NoError(t, err)
	assert.Nil(t, outcome.Success())
	assert.Empty(t, api.bySKU)
}
