package pgdb

import (
	"context"
	"errors"

	"github.com/capvault/capsearch/internal/domain"
	"github.com/capvault/capsearch/internal/repository/pgdb/converter"
	"github.com/capvault/capsearch/internal/usecase"
	"github.com/capvault/capsearch/pkg/e"
	"github.com/capvault/capsearch/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// CapRepo реализует репозиторий крышек поверх PostgreSQL.
type CapRepo struct {
	pool *pgxpool.Pool
	conv converter.CapConverter
}

func NewCapRepo(pool *pgxpool.Pool, conv converter.CapConverter) *CapRepo {
	return &CapRepo{
		pool: pool,
		conv: conv,
	}
}

// Create добавляет крышку в каталог. Выполняется внутри транзакции регистрации.
func (c *CapRepo) Create(ctx context.Context, cap *domain.Cap) (*domain.Cap, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO caps (name, storage_key)
		VALUES ($1, $2)
		RETURNING id, name, storage_key, created_at, updated_at, is_archived;
	`

	var model converter.CapModel
	if err := tx.QueryRow(ctx, query, cap.Name, cap.StorageKey).
		Scan(
			&model.ID, &model.Name, &model.StorageKey,
			&model.CreatedAt, &model.UpdatedAt, &model.IsArchived,
		); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return c.conv.ToEntity(&model), nil
}

// All возвращает все незаархивированные крышки каталога.
func (c *CapRepo) All(ctx context.Context) ([]domain.Cap, error) {
	query := `
		SELECT id, name, storage_key, created_at, updated_at, is_archived
		FROM caps
		WHERE NOT is_archived
		ORDER BY id;
	`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.Cap, 0)
	for rows.Next() {
		var model converter.CapModel
		if err := rows.Scan(
			&model.ID, &model.Name, &model.StorageKey,
			&model.CreatedAt, &model.UpdatedAt, &model.IsArchived,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, *c.conv.ToEntity(&model))
	}

	return result, rows.Err()
}

// GetCapsInfo возвращает информацию о крышках по их идентификаторам.
func (c *CapRepo) GetCapsInfo(ctx context.Context, ids []int64) ([]usecase.CapInfo, error) {
	query := `
		SELECT id, name, storage_key
		FROM caps
		WHERE id = ANY($1);
	`

	rows, err := c.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.CapInfo, 0, len(ids))
	for rows.Next() {
		var info usecase.CapInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.StorageKey); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, info)
	}

	return result, rows.Err()
}

// GetByID возвращает крышку по идентификатору либо e.ErrCapNotFound.
func (c *CapRepo) GetByID(ctx context.Context, id int64) (*domain.Cap, error) {
	query := `
		SELECT id, name, storage_key, created_at, updated_at, is_archived
		FROM caps
		WHERE id = $1;
	`

	var model converter.CapModel
	if err := c.pool.QueryRow(ctx, query, id).
		Scan(
			&model.ID, &model.Name, &model.StorageKey,
			&model.CreatedAt, &model.UpdatedAt, &model.IsArchived,
		); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrCapNotFound)
		}

		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return c.conv.ToEntity(&model), nil
}
