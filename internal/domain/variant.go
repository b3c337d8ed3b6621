package domain

import "time"

// Variant — одно аугментированное изображение крышки.
// Embedding появляется только после стадии векторизации;
// в пределах одного поколения индекса все векторы одной длины.
type Variant struct {
	ID         int64
	CapID      int64
	StorageKey string
	Embedding  []float32
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

func NewVariant(capID int64, storageKey string) *Variant {
	return &Variant{
		CapID:      capID,
		StorageKey: storageKey,
	}
}

// HasEmbedding сообщает, прошёл ли вариант стадию векторизации.
func (v *Variant) HasEmbedding() bool {
	return len(v.Embedding) > 0
}
