package converter

import "time"

// CapModel представляет запись таблицы caps в PostgreSQL.
type CapModel struct {
	ID         int64      `db:"id"`
	Name       string     `db:"name"`
	StorageKey string     `db:"storage_key"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  *time.Time `db:"updated_at"`
	IsArchived bool       `db:"is_archived"`
}

// VariantModel представляет запись таблицы cap_variants в PostgreSQL.
type VariantModel struct {
	ID         int64      `db:"id"`
	CapID      int64      `db:"cap_id"`
	StorageKey string     `db:"storage_key"`
	Embedding  []float32  `db:"embedding"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  *time.Time `db:"updated_at"`
}
