package services

import (
	"context"
	"testing"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFulfillmentAPI расширяет fakeOrderAPI завершением заказа
type fakeFulfillmentAPI struct {
	fakeOrderAPI
	completedOrderID int64
	tracking         string
	itemIDs          []int64
	completeErr      error
}

func (a *fakeFulfillmentAPI) CompleteOrder(ctx context.Context, orderID int64, trackingReference string, orderItemIDs []int64) error {
	if a.completeErr != nil {
		return a.completeErr
	}
	a.completedOrderID = orderID
	a.tracking = trackingReference
	a.itemIDs = orderItemIDs
	return nil
}

// seedLinkedOrder создает заказ со строкой, оба привязаны к внешним идентификаторам
func seedLinkedOrder(t *testing.T, store *fakeStore, status string) (*interfaces.Entity, *interfaces.Entity) {
	t.Helper()
	ctx := context.Background()

	order := store.seed(interfaces.EntityTypeOrder, "5", "MTB1",
		map[string]interface{}{"status": status})
	require.NoError(t, store.Link(ctx, order.ID, 101))

	item := store.seed(interfaces.EntityTypeOrderItem, "5", "MTB1-ABC-1-55",
		map[string]interface{}{"quantity": int64(2)})
	item.ParentID = order.ID
	require.NoError(t, store.Link(ctx, item.ID, 55))

	return order, item
}

func TestFulfilOrder(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedLinkedOrder(t, store, models.StatusPaid)

	api := &fakeFulfillmentAPI{fakeOrderAPI: fakeOrderAPI{
		orders: map[int64]*models.OrderData{101: {OrderID: 101, Status: models.StatusPaid}},
	}}
	service := NewFulfillmentService(api, store, nopLogger{}, models.DefaultStatusSets())

	require.NoError(t, service.FulfilOrder(ctx, "5", "MTB1", "RR123456789CN"))

	assert.Equal(t, int64(101), api.completedOrderID)
	assert.Equal(t, "RR123456789CN", api.tracking)
	assert.Equal(t, []int64{55}, api.itemIDs)

	require.Len(t, store.comments, 1)
	assert.Equal(t, "Shipment", store.comments[0].Title)
	assert.Contains(t, store.comments[0].Body, "RR123456789CN")
}

func TestFulfilOrderRefreshesStaleStatus(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	order, _ := seedLinkedOrder(t, store, models.StatusPaid)

	// маркетплейс уже закрыл заказ, локальный статус устарел
	api := &fakeFulfillmentAPI{fakeOrderAPI: fakeOrderAPI{
		orders: map[int64]*models.OrderData{101: {OrderID: 101, Status: models.StatusClosed}},
	}}
	service := NewFulfillmentService(api, store, nopLogger{}, models.DefaultStatusSets())

	err := service.FulfilOrder(ctx, "5", "MTB1", "RR123456789CN")
	assert.True(t, models.IsKind(err, models.ValidationError))
	assert.Equal(t, models.StatusClosed, order.GetString("status"))
	assert.Zero(t, api.completedOrderID)

	require.Len(t, store.comments, 1)
	assert.Equal(t, "Status refresh", store.comments[0].Title)
}

func TestFulfilOrderSkipsUnlinkedItems(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	order, _ := seedLinkedOrder(t, store, models.StatusPaid)

	unlinked := store.seed(interfaces.EntityTypeOrderItem, "5", "MTB1-XYZ-9-56", nil)
	unlinked.ParentID = order.ID

	api := &fakeFulfillmentAPI{fakeOrderAPI: fakeOrderAPI{
		orders: map[int64]*models.OrderData{101: {OrderID: 101, Status: models.StatusPaid}},
	}}
	service := NewFulfillmentService(api, store, nopLogger{}, models.DefaultStatusSets())

	require.NoError(t, service.FulfilOrder(ctx, "5", "MTB1", "RR123456789CN"))
	assert.Equal(t, []int64{55}, api.itemIDs)
}

func TestFulfilOrderUnknownOrder(t *testing.T) {
	store := newFakeStore()
	service := NewFulfillmentService(&fakeFulfillmentAPI{}, store, nopLogger{}, models.DefaultStatusSets())

	err := service.FulfilOrder(context.Background(), "5", "MISSING", "RR123456789CN")
	assert.True(t, models.IsKind(err, models.ValidationError))
}

func TestRefreshOrderStatusUnlinkedOrder(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	order := store.seed(interfaces.EntityTypeOrder, "5", "MTB1",
		map[string]interface{}{"status": models.StatusPaid})

	service := NewFulfillmentService(&fakeFulfillmentAPI{}, store, nopLogger{}, models.DefaultStatusSets())

	_, err := service.RefreshOrderStatus(ctx, order)
	assert.True(t, models.IsKind(err, models.ValidationError))
}

func TestRefreshOrderStatusUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	order, _ := seedLinkedOrder(t, store, models.StatusPaid)

	api := &fakeFulfillmentAPI{fakeOrderAPI: fakeOrderAPI{
		orders: map[int64]*models.OrderData{101: {OrderID: 101, Status: models.StatusPaid}},
	}}
	service := NewFulfillmentService(api, store, nopLogger{}, models.DefaultStatusSets())

	status, err := service.RefreshOrderStatus(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, status)
	assert.Empty(t, store.comments)
}
