package usecase

import (
	"context"

	"github.com/capvault/capsearch/internal/domain"
)

type CapRepository interface {
	Create(ctx context.Context, cap *domain.Cap) (*domain.Cap, error)
	All(ctx context.Context) ([]domain.Cap, error)
	GetByID(ctx context.Context, id int64) (*domain.Cap, error)
	GetCapsInfo(ctx context.Context, ids []int64) ([]CapInfo, error)
}

type VariantRepository interface {
	Create(ctx context.Context, variant *domain.Variant) (*domain.Variant, error)
	AllWithoutEmbedding(ctx context.Context) ([]domain.Variant, error)
	AllWithEmbedding(ctx context.Context) ([]domain.Variant, error)
	SetEmbedding(ctx context.Context, id int64, vector []float32) error
}

// ObjectRepository — хранилище бинарных объектов (S3).
type ObjectRepository interface {
	Put(ctx context.Context, obj *domain.Object) (string, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

type CacheRepository interface {
	GetCaps(ctx context.Context, ids []int64) (map[int64]CapInfo, error)
	SetCaps(ctx context.Context, caps []CapInfo) error
	DeleteCaps(ctx context.Context, ids []int64) error
}
