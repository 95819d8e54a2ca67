package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/mms-connector/pkg/interfaces"
	"github.com/athebyme/mms-connector/pkg/tx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntityStorage реализация EntityStorePort для PostgreSQL
type EntityStorage struct {
	pool *pgxpool.Pool
	txm  tx.TxManager
}

// NewEntityStorage создает новое хранилище сущностей
func NewEntityStorage(ctx context.Context, connectionString string) (*EntityStorage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &EntityStorage{
		pool: pool,
		txm:  tx.NewTxManager(pool),
	}, nil
}

// NewEntityStorageWithPool создает хранилище поверх готового пула соединений
func NewEntityStorageWithPool(ctx context.Context, pool *pgxpool.Pool) (*EntityStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &EntityStorage{
		pool: pool,
		txm:  tx.NewTxManager(pool),
	}, nil
}

// Close закрывает соединение с БД
func (r *EntityStorage) Close() error {
	r.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// getExecutor возвращает исполнителя запросов (транзакцию или пул)
func (r *EntityStorage) getExecutor(ctx context.Context) executor {
	if t, ok := tx.GetTxFromContext(ctx); ok {
		return t
	}
	return r.pool
}

// WithinTransaction выполняет fn в рамках одной транзакции
func (r *EntityStorage) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.txm.Do(ctx, fn)
}

const entityColumns = "id, type, store_id, unique_id, COALESCE(parent_id, 0), data, created_at, updated_at"

func scanEntity(row pgx.Row) (*interfaces.Entity, error) {
	var entity interfaces.Entity
	err := row.Scan(&entity.ID, &entity.Type, &entity.StoreID, &entity.UniqueID,
		&entity.ParentID, &entity.Data, &entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// LoadByID загружает сущность по внутреннему идентификатору
func (r *EntityStorage) LoadByID(ctx context.Context, id int64) (*interfaces.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entity.entities
		WHERE id = $1
	`

	entity, err := scanEntity(r.getExecutor(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Сущность не найдена
		}
		return nil, fmt.Errorf("failed to load entity: %w", err)
	}
	return entity, nil
}

// LoadByUniqueID загружает сущность по типу, витрине и уникальному ключу
func (r *EntityStorage) LoadByUniqueID(ctx context.Context, entityType, storeID, uniqueID string) (*interfaces.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entity.entities
		WHERE type = $1 AND store_id = $2 AND unique_id = $3
	`

	entity, err := scanEntity(r.getExecutor(ctx).QueryRow(ctx, query, entityType, storeID, uniqueID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load entity by unique id: %w", err)
	}
	return entity, nil
}

// LoadByLocalID загружает сущность по привязанному внешнему идентификатору
func (r *EntityStorage) LoadByLocalID(ctx context.Context, entityType, storeID string, localID int64) (*interfaces.Entity, error) {
	query := `
		SELECT e.id, e.type, e.store_id, e.unique_id, COALESCE(e.parent_id, 0), e.data, e.created_at, e.updated_at
		FROM entity.entities e
		JOIN entity.identifiers i ON i.entity_id = e.id
		WHERE e.type = $1 AND e.store_id = $2 AND i.local_id = $3
	`

	entity, err := scanEntity(r.getExecutor(ctx).QueryRow(ctx, query, entityType, storeID, localID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load entity by local id: %w", err)
	}
	return entity, nil
}

// Children возвращает дочерние сущности указанного типа
func (r *EntityStorage) Children(ctx context.Context, parentID int64, entityType string) ([]*interfaces.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entity.entities
		WHERE parent_id = $1 AND type = $2
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).Query(ctx, query, parentID, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var entities []*interfaces.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity row: %w", err)
		}
		entities = append(entities, entity)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error while iterating entity rows: %w", rows.Err())
	}

	return entities, nil
}

// Create создает сущность и возвращает её с заполненным ID
func (r *EntityStorage) Create(ctx context.Context, entity *interfaces.Entity) (*interfaces.Entity, error) {
	query := `
		INSERT INTO entity.entities (type, store_id, unique_id, parent_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, 0), $5, $6, $7)
		RETURNING id
	`

	now := time.Now().UTC()
	entity.CreatedAt = now
	entity.UpdatedAt = now
	if entity.Data == nil {
		entity.Data = map[string]interface{}{}
	}

	err := r.getExecutor(ctx).QueryRow(ctx, query, entity.Type, entity.StoreID, entity.UniqueID,
		entity.ParentID, entity.Data, entity.CreatedAt, entity.UpdatedAt).Scan(&entity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}

	return entity, nil
}

// Update обновляет атрибуты сущности по месту. Переданные ключи
// сливаются с существующим документом, остальные атрибуты не трогаются.
func (r *EntityStorage) Update(ctx context.Context, id int64, data map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	query := `
		UPDATE entity.entities
		SET data = data || $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.getExecutor(ctx).Exec(ctx, query, id, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entity %d not found", id)
	}

	return nil
}

// Link привязывает внешний идентификатор к сущности хаба
func (r *EntityStorage) Link(ctx context.Context, entityID int64, localID int64) error {
	query := `
		INSERT INTO entity.identifiers (entity_id, local_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id)
		DO UPDATE SET local_id = $2
	`

	if _, err := r.getExecutor(ctx).Exec(ctx, query, entityID, localID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to link entity: %w", err)
	}
	return nil
}

// Unlink удаляет привязку внешнего идентификатора
func (r *EntityStorage) Unlink(ctx context.Context, entityID int64) error {
	query := `
		DELETE FROM entity.identifiers
		WHERE entity_id = $1
	`

	if _, err := r.getExecutor(ctx).Exec(ctx, query, entityID); err != nil {
		return fmt.Errorf("failed to unlink entity: %w", err)
	}
	return nil
}

// LocalID возвращает привязанный внешний идентификатор, если он есть
func (r *EntityStorage) LocalID(ctx context.Context, entityID int64) (int64, bool, error) {
	query := `
		SELECT local_id
		FROM entity.identifiers
		WHERE entity_id = $1
	`

	var localID int64
	err := r.getExecutor(ctx).QueryRow(ctx, query, entityID).Scan(&localID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get local id: %w", err)
	}

	return localID, true, nil
}

// CreateComment добавляет комментарий к сущности
func (r *EntityStorage) CreateComment(ctx context.Context, entityID int64, source, title, body string) error {
	query := `
		INSERT INTO entity.comments (entity_id, source, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.getExecutor(ctx).Exec(ctx, query, entityID, source, title, body, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// LoadComments возвращает комментарии сущности
func (r *EntityStorage) LoadComments(ctx context.Context, entityID int64) ([]interfaces.Comment, error) {
	query := `
		SELECT id, entity_id, source, title, body, created_at
		FROM entity.comments
		WHERE entity_id = $1
		ORDER BY created_at
	`

	rows, err := r.getExecutor(ctx).Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var comments []interfaces.Comment
	for rows.Next() {
		var comment interfaces.Comment
		err := rows.Scan(&comment.ID, &comment.EntityID, &comment.Source,
			&comment.Title, &comment.Body, &comment.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, comment)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error while iterating comment rows: %w", rows.Err())
	}

	return comments, nil
}

// SyncCursor возвращает курсор выборки для типа сущности.
// Отсутствие записи — это нулевой курсор, а не ошибка.
func (r *EntityStorage) SyncCursor(ctx context.Context, entityType string) (interfaces.SyncCursor, error) {
	query := `
		SELECT since_id, retrieved_at
		FROM entity.sync_cursors
		WHERE entity_type = $1
	`

	var cursor interfaces.SyncCursor
	err := r.getExecutor(ctx).QueryRow(ctx, query, entityType).Scan(&cursor.SinceID, &cursor.RetrievedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return interfaces.SyncCursor{}, nil
		}
		return interfaces.SyncCursor{}, fmt.Errorf("failed to get sync cursor: %w", err)
	}

	return cursor, nil
}

// SetSyncCursor сохраняет курсор выборки для типа сущности
func (r *EntityStorage) SetSyncCursor(ctx context.Context, entityType string, cursor interfaces.SyncCursor) error {
	query := `
		INSERT INTO entity.sync_cursors (entity_type, since_id, retrieved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_type)
		DO UPDATE SET since_id = $2, retrieved_at = $3
	`

	if _, err := r.getExecutor(ctx).Exec(ctx, query, entityType, cursor.SinceID, cursor.RetrievedAt); err != nil {
		return fmt.Errorf("failed to set sync cursor: %w", err)
	}
	return nil
}
