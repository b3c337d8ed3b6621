package pgdb

import (
	"context"

	"github.com/capvault/capsearch/internal/domain"
	"github.com/capvault/capsearch/internal/repository/pgdb/converter"
	"github.com/capvault/capsearch/pkg/e"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// VariantRepo реализует репозиторий аугментированных вариантов поверх PostgreSQL.
// Эмбеддинг хранится в колонке real[]: pgx отображает её в []float32.
type VariantRepo struct {
	pool *pgxpool.Pool
	conv converter.VariantConverter
}

func NewVariantRepo(pool *pgxpool.Pool, conv converter.VariantConverter) *VariantRepo {
	return &VariantRepo{
		pool: pool,
		conv: conv,
	}
}

// Create добавляет вариант без эмбеддинга.
func (v *VariantRepo) Create(ctx context.Context, variant *domain.Variant) (*domain.Variant, error) {
	query := `
		INSERT INTO cap_variants (cap_id, storage_key)
		VALUES ($1, $2)
		RETURNING id, cap_id, storage_key, created_at, updated_at;
	`

	var model converter.VariantModel
	if err := v.pool.QueryRow(ctx, query, variant.CapID, variant.StorageKey).
		Scan(
			&model.ID, &model.CapID, &model.StorageKey,
			&model.CreatedAt, &model.UpdatedAt,
		); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return v.conv.ToEntity(&model), nil
}

// AllWithoutEmbedding возвращает варианты, ещё не прошедшие векторизацию.
func (v *VariantRepo) AllWithoutEmbedding(ctx context.Context) ([]domain.Variant, error) {
	query := `
		SELECT id, cap_id, storage_key, created_at, updated_at
		FROM cap_variants
		WHERE embedding IS NULL
		ORDER BY id;
	`

	rows, err := v.pool.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.Variant, 0)
	for rows.Next() {
		var model converter.VariantModel
		if err := rows.Scan(
			&model.ID, &model.CapID, &model.StorageKey,
			&model.CreatedAt, &model.UpdatedAt,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, *v.conv.ToEntity(&model))
	}

	return result, rows.Err()
}

// AllWithEmbedding возвращает варианты с эмбеддингами для сборки индекса.
// Варианты заархивированных крышек исключаются.
func (v *VariantRepo) AllWithEmbedding(ctx context.Context) ([]domain.Variant, error) {
	query := `
		SELECT cv.id, cv.cap_id, cv.storage_key, cv.embedding, cv.created_at, cv.updated_at
		FROM cap_variants cv
		JOIN caps c ON c.id = cv.cap_id
		WHERE cv.embedding IS NOT NULL AND NOT c.is_archived
		ORDER BY cv.id;
	`

	rows, err := v.pool.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.Variant, 0)
	for rows.Next() {
		var model converter.VariantModel
		if err := rows.Scan(
			&model.ID, &model.CapID, &model.StorageKey, &model.Embedding,
			&model.CreatedAt, &model.UpdatedAt,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, *v.conv.ToEntity(&model))
	}

	return result, rows.Err()
}

// SetEmbedding сохраняет эмбеддинг варианта.
func (v *VariantRepo) SetEmbedding(ctx context.Context, id int64, vector []float32) error {
	query := `
		UPDATE cap_variants
		SET embedding = $2, updated_at = NOW()
		WHERE id = $1;
	`

	if _, err := v.pool.Exec(ctx, query, id, vector); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
