package services

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/pkg/interfaces"
)

// nopLogger — логгер-заглушка для тестов
type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func (nopLogger) DebugWithContext(ctx context.Context, msg string, args ...interface{}) {}
func (nopLogger) InfoWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) WarnWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) ErrorWithContext(ctx context.Context, msg string, args ...interface{}) {}

func (l nopLogger) WithFields(fields ...interfaces.LogField) interfaces.LoggerPort { return l }
func (l nopLogger) WithField(key string, value interface{}) interfaces.LoggerPort  { return l }
func (nopLogger) Sync() error                                                      { return nil }

// fakeStore — хранилище сущностей в памяти для тестов
type fakeStore struct {
	nextID   int64
	entities map[int64]*interfaces.Entity
	links    map[int64]int64
	comments []interfaces.Comment
	cursors  map[string]interfaces.SyncCursor
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities: make(map[int64]*interfaces.Entity),
		links:    make(map[int64]int64),
		cursors:  make(map[string]interfaces.SyncCursor),
	}
}

// seed создает сущность напрямую, минуя проверки
func (s *fakeStore) seed(entityType, storeID, uniqueID string, data map[string]interface{}) *interfaces.Entity {
	if data == nil {
		data = make(map[string]interface{})
	}
	s.nextID++
	entity := &interfaces.Entity{
		ID:       s.nextID,
		Type:     entityType,
		StoreID:  storeID,
		UniqueID: uniqueID,
		Data:     data,
	}
	s.entities[entity.ID] = entity
	return entity
}

func (s *fakeStore) LoadByID(ctx context.Context, id int64) (*interfaces.Entity, error) {
	return s.entities[id], nil
}

func (s *fakeStore) LoadByUniqueID(ctx context.Context, entityType, storeID, uniqueID string) (*interfaces.Entity, error) {
	for _, entity := range s.entities {
		if entity.Type == entityType && entity.StoreID == storeID && entity.UniqueID == uniqueID {
			return entity, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) LoadByLocalID(ctx context.Context, entityType, storeID string, localID int64) (*interfaces.Entity, error) {
	for entityID, linked := range s.links {
		if linked != localID {
			continue
		}
		entity := s.entities[entityID]
		if entity != nil && entity.Type == entityType && entity.StoreID == storeID {
			return entity, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Children(ctx context.Context, parentID int64, entityType string) ([]*interfaces.Entity, error) {
	var children []*interfaces.Entity
	for _, entity := range s.entities {
		if entity.ParentID == parentID && entity.Type == entityType {
			children = append(children, entity)
		}
	}
	return children, nil
}

func (s *fakeStore) Create(ctx context.Context, entity *interfaces.Entity) (*interfaces.Entity, error) {
	existing, _ := s.LoadByUniqueID(ctx, entity.Type, entity.StoreID, entity.UniqueID)
	if existing != nil {
		return nil, fmt.Errorf("duplicate entity %s/%s/%s", entity.Type, entity.StoreID, entity.UniqueID)
	}

	s.nextID++
	entity.ID = s.nextID
	entity.CreatedAt = time.Now()
	entity.UpdatedAt = entity.CreatedAt
	if entity.Data == nil {
		entity.Data = make(map[string]interface{})
	}
	s.entities[entity.ID] = entity
	return entity, nil
}

func (s *fakeStore) Update(ctx context.Context, id int64, data map[string]interface{}) error {
	entity, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("entity %d does not exist", id)
	}
	for key, value := range data {
		entity.Data[key] = value
	}
	entity.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStore) Link(ctx context.Context, entityID int64, localID int64) error {
	s.links[entityID] = localID
	return nil
}

func (s *fakeStore) Unlink(ctx context.Context, entityID int64) error {
	delete(s.links, entityID)
	return nil
}

func (s *fakeStore) LocalID(ctx context.Context, entityID int64) (int64, bool, error) {
	localID, ok := s.links[entityID]
	return localID, ok, nil
}

func (s *fakeStore) CreateComment(ctx context.Context, entityID int64, source, title, body string) error {
	s.comments = append(s.comments, interfaces.Comment{
		EntityID: entityID,
		Source:   source,
		Title:    title,
		Body:     body,
	})
	return nil
}

func (s *fakeStore) LoadComments(ctx context.Context, entityID int64) ([]interfaces.Comment, error) {
	var comments []interfaces.Comment
	for _, comment := range s.comments {
		if comment.EntityID == entityID {
			comments = append(comments, comment)
		}
	}
	return comments, nil
}

func (s *fakeStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *fakeStore) SyncCursor(ctx context.Context, entityType string) (interfaces.SyncCursor, error) {
	return s.cursors[entityType], nil
}

func (s *fakeStore) SetSyncCursor(ctx context.Context, entityType string, cursor interfaces.SyncCursor) error {
	s.cursors[entityType] = cursor
	return nil
}

func (s *fakeStore) Close() error { return nil }

// fakeOrderAPI — API маркетплейса для тестов реконсилера
type fakeOrderAPI struct {
	listing     *models.OrderIDsSince
	listingErr  error
	orders      map[int64]*models.OrderData
	detailErr   map[int64]error
	lastSinceID int64
}

func (a *fakeOrderAPI) OrderIDsSince(ctx context.Context, sinceID int64) (*models.OrderIDsSince, error) {
	a.lastSinceID = sinceID
	if a.listingErr != nil {
		return nil, a.listingErr
	}
	return a.listing, nil
}

func (a *fakeOrderAPI) OrderDetails(ctx context.Context, orderID int64) (*models.OrderData, error) {
	if err, ok := a.detailErr[orderID]; ok {
		return nil, err
	}
	order, ok := a.orders[orderID]
	if !ok {
		return nil, models.NewSyncError(models.RemoteApplicationError,
			fmt.Sprintf("order %d does not exist", orderID))
	}
	return order, nil
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int64) *int64       { return &v }
