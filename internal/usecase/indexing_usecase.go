package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/capvault/capsearch/internal/cfg"
	"github.com/capvault/capsearch/internal/domain"
	"github.com/capvault/capsearch/internal/index"
	"github.com/capvault/capsearch/pkg/e"
	"github.com/capvault/capsearch/pkg/jitter"
	"github.com/capvault/capsearch/pkg/logger"
	"github.com/google/uuid"
)

// Состояния оркестратора индексации. Переход FAILED возможен из любой
// стадии; READY достигается только после публикации обоих артефактов.
const (
	StateIdle          = "IDLE"
	StatePreprocessing = "PREPROCESSING"
	StateEmbedding     = "EMBEDDING"
	StateIndexing      = "INDEXING"
	StateReady         = "READY"
	StateFailed        = "FAILED"
)

// IndexingUseCase — пакетный конвейер построения индекса: аугментация
// каталога, векторизация вариантов и публикация артефактов индекса.
// Одновременно может выполняться только один прогон.
type IndexingUseCase struct {
	capRepo     CapRepository
	variantRepo VariantRepository
	objRepo     ObjectRepository
	pre         Preprocessor
	augmenter   Augmenter
	encoder     Encoder
	publisher   ReloadPublisher
	minioCfg    *cfg.MinIOCfg
	visionCfg   *cfg.VisionCfg
	logger      logger.Logger

	mu      sync.Mutex
	running bool
	status  IndexStatus
}

func NewIndexUC(
	capRepo CapRepository,
	variantRepo VariantRepository,
	objRepo ObjectRepository,
	pre Preprocessor,
	augmenter Augmenter,
	encoder Encoder,
	publisher ReloadPublisher,
	minioCfg *cfg.MinIOCfg,
	visionCfg *cfg.VisionCfg,
	logger logger.Logger,
) *IndexingUseCase {
	return &IndexingUseCase{
		capRepo:     capRepo,
		variantRepo: variantRepo,
		objRepo:     objRepo,
		pre:         pre,
		augmenter:   augmenter,
		encoder:     encoder,
		publisher:   publisher,
		minioCfg:    minioCfg,
		visionCfg:   visionCfg,
		logger:      logger,
		status:      IndexStatus{State: StateIdle},
	}
}

// Run выполняет полный прогон: PREPROCESSING -> EMBEDDING -> INDEXING -> READY.
// Ошибки отдельных изображений пропускаются и попадают в счётчик Failures;
// прогон падает целиком только на ошибках инфраструктуры.
func (u *IndexingUseCase) Run(ctx context.Context) (*RunReport, error) {
	const op = "IndexingUseCase.Run"

	if err := u.acquire(); err != nil {
		return nil, e.Wrap(op, err)
	}

	report := &RunReport{}

	err := u.run(ctx, report)
	u.finish(report, err)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return report, nil
}

// Start запускает прогон в фоне, сразу возвращая e.ErrIndexingBusy,
// если предыдущий прогон ещё не завершён.
func (u *IndexingUseCase) Start(ctx context.Context) error {
	const op = "IndexingUseCase.Start"

	if err := u.acquire(); err != nil {
		return e.Wrap(op, err)
	}

	go func() {
		report := &RunReport{}

		err := u.run(ctx, report)
		u.finish(report, err)
		if err != nil {
			u.logger.Errorf(err, "index run failed")
			return
		}

		u.logger.Infof(
			"index run finished: %d variants, %d embeddings, %d vectors, %d failures",
			report.CreatedVariants, report.UpdatedEmbeddings, report.IndexedVectors, report.Failures,
		)
	}()

	return nil
}

func (u *IndexingUseCase) acquire() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.running {
		return e.ErrIndexingBusy
	}
	u.running = true
	u.status = IndexStatus{State: StatePreprocessing}

	return nil
}

func (u *IndexingUseCase) finish(report *RunReport, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.running = false
	now := time.Now()
	u.status.Report = *report
	u.status.FinishedAt = &now
	if err != nil {
		u.status.State = StateFailed
		u.status.LastError = err.Error()
		return
	}
	u.status.State = StateReady
	u.status.LastError = ""
}

// Status возвращает снимок текущего состояния оркестратора.
func (u *IndexingUseCase) Status() *IndexStatus {
	u.mu.Lock()
	defer u.mu.Unlock()

	st := u.status
	return &st
}

func (u *IndexingUseCase) setState(state string) {
	u.mu.Lock()
	u.status.State = state
	u.mu.Unlock()
}

func (u *IndexingUseCase) run(ctx context.Context, report *RunReport) error {
	if err := u.preprocessStage(ctx, report); err != nil {
		return err
	}

	u.setState(StateEmbedding)
	if err := u.embedStage(ctx, report); err != nil {
		return err
	}

	u.setState(StateIndexing)
	if err := u.buildAndPublish(ctx, report); err != nil {
		return err
	}

	return nil
}

// preprocessStage генерирует варианты для каждой крышки каталога:
// выделение объекта, нормализация, n+1 аугментаций, загрузка в S3 и
// запись в БД. Крышки обрабатываются параллельно с ограничением.
func (u *IndexingUseCase) preprocessStage(ctx context.Context, report *RunReport) error {
	caps, err := u.capRepo.All(ctx)
	if err != nil {
		return err
	}

	u.logger.Infof("preprocessing %d caps", len(caps))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		created  int
		failures int
	)

	sem := make(chan struct{}, u.visionCfg.MaxConcurrent)
	uploadSem := make(chan struct{}, u.minioCfg.UploadImagesLimit)
	for _, c := range caps {
		wg.Add(1)
		sem <- struct{}{}

		go func(c domain.Cap) {
			defer wg.Done()
			defer func() { <-sem }()

			n, err := u.preprocessCap(ctx, &c, uploadSem)

			mu.Lock()
			defer mu.Unlock()
			created += n
			if err != nil {
				failures++
				u.logger.Warnf("cap %d skipped at preprocessing: %v", c.ID, err)
			}
		}(c)
	}
	wg.Wait()

	report.CreatedVariants = created
	report.Failures += failures

	return ctx.Err()
}

// preprocessCap возвращает число созданных вариантов; при ошибке часть
// вариантов может быть уже записана, счётчик это учитывает.
// uploadSem ограничивает число одновременных загрузок в S3 на весь прогон.
func (u *IndexingUseCase) preprocessCap(ctx context.Context, c *domain.Cap, uploadSem chan struct{}) (int, error) {
	original, err := u.objRepo.Get(ctx, u.minioCfg.OriginalsBucket, c.StorageKey)
	if err != nil {
		return 0, err
	}

	normalized, err := u.pre.Preprocess(ctx, original)
	if err != nil {
		return 0, err
	}

	variants, err := u.augmenter.Augment(ctx, normalized, u.visionCfg.AugmentationsPerImage)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, data := range variants {
		key := fmt.Sprintf("%d/%s.png", c.ID, uuid.NewString())

		obj := domain.NewObject(u.minioCfg.VariantsBucket, key, data, "image/png")

		uploadSem <- struct{}{}
		_, err := u.objRepo.Put(ctx, obj)
		<-uploadSem
		if err != nil {
			return created, err
		}

		if _, err := u.variantRepo.Create(ctx, domain.NewVariant(c.ID, key)); err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}

// embedStage векторизует варианты без эмбеддинга. Вызов энкодера
// повторяется с экспоненциальным отступлением.
func (u *IndexingUseCase) embedStage(ctx context.Context, report *RunReport) error {
	variants, err := u.variantRepo.AllWithoutEmbedding(ctx)
	if err != nil {
		return err
	}

	u.logger.Infof("embedding %d variants", len(variants))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		updated  int
		failures int
	)

	sem := make(chan struct{}, u.visionCfg.MaxConcurrent)
	for _, v := range variants {
		wg.Add(1)
		sem <- struct{}{}

		go func(v domain.Variant) {
			defer wg.Done()
			defer func() { <-sem }()

			err := u.embedVariant(ctx, &v)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				u.logger.Warnf("variant %d skipped at embedding: %v", v.ID, err)
				return
			}
			updated++
		}(v)
	}
	wg.Wait()

	report.UpdatedEmbeddings = updated
	report.Failures += failures

	return ctx.Err()
}

func (u *IndexingUseCase) embedVariant(ctx context.Context, v *domain.Variant) error {
	data, err := u.objRepo.Get(ctx, u.minioCfg.VariantsBucket, v.StorageKey)
	if err != nil {
		return err
	}

	vec, err := u.encodeWithRetry(ctx, data)
	if err != nil {
		return err
	}

	return u.variantRepo.SetEmbedding(ctx, v.ID, vec)
}

func (u *IndexingUseCase) encodeWithRetry(ctx context.Context, data []byte) ([]float32, error) {
	const backoffBase = 200 * time.Millisecond
	const backoffMax = 5 * time.Second

	var lastErr error
	for attempt := 0; attempt < u.visionCfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter.ExponentialBackoff(backoffBase, backoffMax, attempt-1, jitter.DefaultJitter)):
			}
		}

		encodeCtx, cancel := context.WithTimeout(ctx, u.visionCfg.EncodeTimeout)
		vec, err := u.encoder.Encode(encodeCtx, data)
		cancel()
		if err == nil {
			return vec, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

// buildAndPublish собирает индекс по всем векторизованным вариантам и
// атомарно публикует пару артефактов в S3. Сообщение в Kafka — сигнал
// обслуживающим запросы процессам перечитать индекс; его потеря не
// делает прогон неуспешным.
func (u *IndexingUseCase) buildAndPublish(ctx context.Context, report *RunReport) error {
	variants, err := u.variantRepo.AllWithEmbedding(ctx)
	if err != nil {
		return err
	}

	vectors := make([][]float32, 0, len(variants))
	ids := make([]int64, 0, len(variants))
	for _, v := range variants {
		// Пустой массив в колонке embedding не является вектором.
		if !v.HasEmbedding() {
			continue
		}
		vectors = append(vectors, v.Embedding)
		ids = append(ids, v.CapID)
	}

	snapshot, err := index.Build(vectors, ids)
	if err != nil {
		return err
	}

	indexBytes := index.EncodeFlat(snapshot.Flat())

	idsBytes, err := index.EncodeIDs(snapshot.IDs())
	if err != nil {
		return err
	}

	indexObj := domain.NewObject(u.minioCfg.IndexBucket, u.minioCfg.IndexKey, indexBytes, "application/octet-stream")
	if _, err := u.objRepo.Put(ctx, indexObj); err != nil {
		return err
	}

	metaObj := domain.NewObject(u.minioCfg.IndexBucket, u.minioCfg.MetadataKey, idsBytes, "application/octet-stream")
	if _, err := u.objRepo.Put(ctx, metaObj); err != nil {
		return err
	}

	report.IndexedVectors = snapshot.Len()
	u.logger.Infof("index published: %d vectors, dim %d", snapshot.Len(), snapshot.Dim())

	if err := u.publisher.IndexPublished(ctx, snapshot.Len()); err != nil {
		u.logger.Warnf("failed to publish index event: %v", err)
	}

	return nil
}
