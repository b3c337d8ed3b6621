package usecase

import (
	"context"
	"time"

	"github.com/capvault/capsearch/internal/cfg"
	"github.com/capvault/capsearch/internal/domain"
	"github.com/capvault/capsearch/internal/index"
	"github.com/capvault/capsearch/pkg/e"
	"github.com/capvault/capsearch/pkg/logger"
)

// SearchUseCase реализует путь запроса: та же нормализация и векторизация,
// что и при построении индекса, затем поиск соседей и агрегация по крышкам.
type SearchUseCase struct {
	holder    *index.Holder
	pre       Preprocessor
	encoder   Encoder
	capRepo   CapRepository
	cacheRepo CacheRepository
	objRepo   ObjectRepository
	minioCfg  *cfg.MinIOCfg
	queryCfg  *cfg.QueryCfg
	visionCfg *cfg.VisionCfg
	logger    logger.Logger
}

func NewSearchUC(
	holder *index.Holder,
	pre Preprocessor,
	encoder Encoder,
	capRepo CapRepository,
	cacheRepo CacheRepository,
	objRepo ObjectRepository,
	minioCfg *cfg.MinIOCfg,
	queryCfg *cfg.QueryCfg,
	visionCfg *cfg.VisionCfg,
	logger logger.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		holder:    holder,
		pre:       pre,
		encoder:   encoder,
		capRepo:   capRepo,
		cacheRepo: cacheRepo,
		objRepo:   objRepo,
		minioCfg:  minioCfg,
		queryCfg:  queryCfg,
		visionCfg: visionCfg,
		logger:    logger,
	}
}

// Query обрабатывает фотографию и возвращает top_k крышек, упорядоченных
// по убыванию средней косинусной близости их вариантов к запросу.
func (s *SearchUseCase) Query(ctx context.Context, req *QueryReq) (*QueryRes, error) {
	const op = "SearchUseCase.Query"

	topK, candidateK, err := s.validate(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	snapshot, err := s.holder.Current()
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vec, err := s.embedQuery(ctx, req.Image)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	index.Normalize(vec)

	candidates, err := snapshot.Search(vec, candidateK)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	matches := Aggregate(candidates)
	if len(matches) > topK {
		matches = matches[:topK]
	}

	capsByID, err := s.resolveCaps(ctx, matches)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	result := make([]CapMatch, 0, len(matches))
	for _, m := range matches {
		info, ok := capsByID[m.CapID]
		if !ok {
			// Индекс ссылается на крышку, которой нет в каталоге —
			// рассинхронизация, требующая перестроения индекса.
			s.logger.Warnf("cap %d is present in the index but missing in the catalog", m.CapID)
			return nil, e.Wrap(op, e.ErrIntegrity)
		}

		result = append(result, newCapMatch(info, m))
	}

	return &QueryRes{Matches: result}, nil
}

// ReloadIndex загружает оба артефакта индекса из хранилища и атомарно
// подменяет текущее поколение. Рассогласованная пара артефактов не
// публикуется — действующее поколение остаётся прежним.
func (s *SearchUseCase) ReloadIndex(ctx context.Context) error {
	const op = "SearchUseCase.ReloadIndex"

	indexBytes, err := s.objRepo.Get(ctx, s.minioCfg.IndexBucket, s.minioCfg.IndexKey)
	if err != nil {
		return e.Wrap(op, err)
	}

	idsBytes, err := s.objRepo.Get(ctx, s.minioCfg.IndexBucket, s.minioCfg.MetadataKey)
	if err != nil {
		return e.Wrap(op, err)
	}

	flat, err := index.DecodeFlat(indexBytes)
	if err != nil {
		return e.Wrap(op, err)
	}

	ids, err := index.DecodeIDs(idsBytes)
	if err != nil {
		return e.Wrap(op, err)
	}

	snapshot, err := index.NewSnapshot(flat, ids)
	if err != nil {
		return e.Wrap(op, err)
	}

	s.holder.Swap(snapshot)
	s.logger.Infof("index reloaded: %d vectors, dim %d", snapshot.Len(), snapshot.Dim())

	return nil
}

func (s *SearchUseCase) IndexLoaded() bool {
	return s.holder.Loaded()
}

func (s *SearchUseCase) validate(req *QueryReq) (topK int, candidateK int, err error) {
	if len(req.Image) == 0 {
		return 0, 0, e.ErrNoImage
	}

	topK = req.TopK
	if topK == 0 {
		topK = s.queryCfg.DefaultTopK
	}
	if topK < 1 || topK > s.queryCfg.MaxTopK {
		return 0, 0, e.ErrInvalidTopK
	}

	candidateK = req.CandidateK
	if candidateK == 0 {
		candidateK = s.queryCfg.DefaultCandidateK
	}
	if candidateK < 1 {
		return 0, 0, e.ErrInvalidCandidateK
	}

	return topK, candidateK, nil
}

// embedQuery выполняет нормализацию и векторизацию запроса с таймаутом
// на вызов энкодера.
func (s *SearchUseCase) embedQuery(ctx context.Context, image []byte) ([]float32, error) {
	preprocessed, err := s.pre.Preprocess(ctx, image)
	if err != nil {
		return nil, err
	}

	encodeCtx, cancel := context.WithTimeout(ctx, s.visionCfg.EncodeTimeout)
	defer cancel()

	return s.encoder.Encode(encodeCtx, preprocessed)
}

// resolveCaps возвращает записи каталога для агрегированных крышек,
// сначала из кэша, затем из БД; полученное из БД докладывается в кэш фоном.
func (s *SearchUseCase) resolveCaps(ctx context.Context, matches []domain.AggregatedMatch) (map[int64]CapInfo, error) {
	if len(matches) == 0 {
		return map[int64]CapInfo{}, nil
	}

	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.CapID)
	}

	result := make(map[int64]CapInfo, len(ids))

	cached, err := s.cacheRepo.GetCaps(ctx, ids)
	if err != nil {
		s.logger.Warnf("cap cache lookup failed: %v", err)
		cached = nil
	}

	missing := make([]int64, 0, len(ids))
	for _, id := range ids {
		if info, ok := cached[id]; ok {
			result[id] = info
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		fromDB, err := s.capRepo.GetCapsInfo(ctx, missing)
		if err != nil {
			return nil, err
		}

		for _, info := range fromDB {
			result[info.ID] = info
		}

		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := s.cacheRepo.SetCaps(bgCtx, fromDB); err != nil {
				s.logger.Warnf("failed to cache caps in background: %v", err)
			}
		}()
	}

	return result, nil
}
