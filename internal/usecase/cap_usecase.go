package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/capvault/capsearch/internal/cfg"
	"github.com/capvault/capsearch/internal/domain"
	"github.com/capvault/capsearch/pkg/e"
	"github.com/capvault/capsearch/pkg/logger"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const maxImageSize = 10 << 20 // 10 MiB

// CapUseCase реализует регистрацию новой крышки: загрузка исходной
// фотографии в S3 и запись в каталог в одной транзакции.
type CapUseCase struct {
	capRepo   CapRepository
	objRepo   ObjectRepository
	cacheRepo CacheRepository
	dbPool    transaction.Transactional
	minioCfg  *cfg.MinIOCfg
	logger    logger.Logger
}

func NewCapUC(
	capRepo CapRepository,
	objRepo ObjectRepository,
	cacheRepo CacheRepository,
	dbPool transaction.Transactional,
	minioCfg *cfg.MinIOCfg,
	logger logger.Logger,
) *CapUseCase {
	return &CapUseCase{
		capRepo:   capRepo,
		objRepo:   objRepo,
		cacheRepo: cacheRepo,
		dbPool:    dbPool,
		minioCfg:  minioCfg,
		logger:    logger,
	}
}

// RegisterNewCap сохраняет фотографию крышки и создаёт запись каталога.
// Новая крышка попадает в индекс только после следующего прогона индексации.
func (c *CapUseCase) RegisterNewCap(ctx context.Context, req *RegisterCapReq) (*RegisterCapRes, error) {
	const op = "CapUseCase.RegisterNewCap"

	var err error
	if err = c.validate(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	var uploadedKey string

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, c.dbPool)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	// При ошибке откатываем транзакцию и убираем уже загруженный объект.
	defer func() {
		if err != nil {
			if tx.IsActive() {
				tx.Rollback(ctx)
			}

			if uploadedKey != "" {
				c.logger.Warnf(
					"cleaning up orphaned image after registration failure. cap_name: %s, error: %v",
					req.Name,
					e.Wrap(op, err),
				)

				if delErr := c.objRepo.Delete(context.Background(), c.minioCfg.OriginalsBucket, uploadedKey); delErr != nil {
					c.logger.Errorf(delErr, "failed to delete orphaned image %s", uploadedKey)
				}
			}
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	key := storageKey(req.Image)

	obj := domain.NewObject(c.minioCfg.OriginalsBucket, key, req.Image.Data, req.Image.MimeType)
	if _, err = c.objRepo.Put(ctx, obj); err != nil {
		return nil, e.Wrap(op, err)
	}
	uploadedKey = key

	cap, err := c.capRepo.Create(ctx, domain.NewCap(strings.TrimSpace(req.Name), key))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err := c.cacheRepo.DeleteCaps(ctx, []int64{cap.ID}); err != nil {
		c.logger.Warnf("failed to invalidate cap cache: %v", e.Wrap(op, err))
	}

	return &RegisterCapRes{Cap: cap}, nil
}

// GetCap возвращает карточку крышки по идентификатору.
func (c *CapUseCase) GetCap(ctx context.Context, id int64) (*domain.Cap, error) {
	const op = "CapUseCase.GetCap"

	cap, err := c.capRepo.GetByID(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return cap, nil
}

func (c *CapUseCase) validate(req *RegisterCapReq) error {
	if strings.TrimSpace(req.Name) == "" {
		return e.ErrCapNameRequired
	}

	if len(req.Image.Data) == 0 {
		return e.ErrNoImage
	}

	if req.Image.Size > maxImageSize {
		return e.ErrImageTooLarge
	}

	return nil
}

// storageKey строит уникальный ключ исходной фотографии.
func storageKey(img CapImage) string {
	ext := ".jpg"
	switch img.MimeType {
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	}

	return fmt.Sprintf("%s%s", uuid.NewString(), ext)
}
