package interfaces

import (
	"context"
	"time"
)

// Типы сущностей хаба, с которыми работает коннектор
const (
	EntityTypeOrder     = "order"
	EntityTypeOrderItem = "orderitem"
	EntityTypeCustomer  = "customer"
	EntityTypeAddress   = "address"
	EntityTypeProduct   = "product"
	EntityTypeStockItem = "stockitem"
)

// GlobalStoreID — витрина для глобальных сущностей (клиенты, остатки, адреса)
const GlobalStoreID = "0"

// Entity представляет обобщённую сущность хаба.
// Атрибуты хранятся в Data как произвольный документ, по аналогии
// с jsonb-представлением в хранилище.
type Entity struct {
	ID        int64                  `json:"id"`
	Type      string                 `json:"type"`
	StoreID   string                 `json:"store_id"`
	UniqueID  string                 `json:"unique_id"`
	ParentID  int64                  `json:"parent_id,omitempty"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// GetString возвращает строковый атрибут или пустую строку
func (e *Entity) GetString(key string) string {
	if e == nil || e.Data == nil {
		return ""
	}
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}

// GetFloat возвращает числовой атрибут или значение по умолчанию.
// Значения из jsonb приходят как float64, но допускаем и целые типы.
func (e *Entity) GetFloat(key string, def float64) float64 {
	if e == nil || e.Data == nil {
		return def
	}
	switch v := e.Data[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Has сообщает, задан ли атрибут ненулевым значением
func (e *Entity) Has(key string) bool {
	if e == nil || e.Data == nil {
		return false
	}
	v, ok := e.Data[key]
	return ok && v != nil
}

// Comment — комментарий к сущности хаба
type Comment struct {
	ID        int64     `json:"id"`
	EntityID  int64     `json:"entity_id"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// SyncCursor — персистентный курсор инкрементальной выборки.
// Продвигается только после полностью успешного цикла.
type SyncCursor struct {
	SinceID     int64     `json:"since_id"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// EntityStorePort определяет интерфейс центрального хранилища сущностей.
// Семантика load-методов: отсутствие записи — это (nil, nil), а не ошибка.
type EntityStorePort interface {
	// LoadByID загружает сущность по внутреннему идентификатору хаба
	LoadByID(ctx context.Context, id int64) (*Entity, error)

	// LoadByUniqueID загружает сущность по типу, витрине и уникальному ключу
	LoadByUniqueID(ctx context.Context, entityType, storeID, uniqueID string) (*Entity, error)

	// LoadByLocalID загружает сущность по привязанному внешнему идентификатору
	LoadByLocalID(ctx context.Context, entityType, storeID string, localID int64) (*Entity, error)

	// Children возвращает дочерние сущности указанного типа
	Children(ctx context.Context, parentID int64, entityType string) ([]*Entity, error)

	// Create создаёт сущность и возвращает её с заполненным ID
	Create(ctx context.Context, entity *Entity) (*Entity, error)

	// Update обновляет атрибуты сущности по месту (merge, не замена документа)
	Update(ctx context.Context, id int64, data map[string]interface{}) error

	// Link привязывает внешний идентификатор к сущности хаба
	Link(ctx context.Context, entityID int64, localID int64) error

	// Unlink удаляет привязку внешнего идентификатора
	Unlink(ctx context.Context, entityID int64) error

	// LocalID возвращает привязанный внешний идентификатор, если он есть
	LocalID(ctx context.Context, entityID int64) (int64, bool, error)

	// CreateComment добавляет комментарий к сущности
	CreateComment(ctx context.Context, entityID int64, source, title, body string) error

	// LoadComments возвращает комментарии сущности
	LoadComments(ctx context.Context, entityID int64) ([]Comment, error)

	// WithinTransaction выполняет fn в рамках одной транзакции хранилища.
	// Ошибка fn откатывает все изменения, сделанные через переданный контекст.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// SyncCursor возвращает курсор выборки для типа сущности
	SyncCursor(ctx context.Context, entityType string) (SyncCursor, error)

	// SetSyncCursor сохраняет курсор выборки для типа сущности
	SetSyncCursor(ctx context.Context, entityType string, cursor SyncCursor) error

	// Close закрывает соединение с хранилищем
	Close() error
}
