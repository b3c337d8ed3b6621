package usecase

import (
	"context"

	"github.com/capvault/capsearch/internal/domain"
)

// SearchUC — онлайн-путь: поиск похожих крышек по фотографии.
type SearchUC interface {
	Query(ctx context.Context, req *QueryReq) (*QueryRes, error)
	ReloadIndex(ctx context.Context) error
	IndexLoaded() bool
}

// IndexUC — офлайн-путь: пакетное построение индекса по всему каталогу.
type IndexUC interface {
	Run(ctx context.Context) (*RunReport, error)
	Start(ctx context.Context) error
	Status() *IndexStatus
}

// CapUC — карточки крышек каталога.
type CapUC interface {
	RegisterNewCap(ctx context.Context, req *RegisterCapReq) (*RegisterCapRes, error)
	GetCap(ctx context.Context, id int64) (*domain.Cap, error)
}
