package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/capvault/capsearch/internal/domain"
	"github.com/capvault/capsearch/pkg/e"
)

// nopLogger глушит вывод в тестах.
type nopLogger struct{}

func (nopLogger) Debugf(format string, args ...any)            {}
func (nopLogger) Infof(format string, args ...any)             {}
func (nopLogger) Warnf(format string, args ...any)             {}
func (nopLogger) Errorf(err error, format string, args ...any) {}

// stubPreprocessor возвращает вход как есть либо заданную ошибку.
type stubPreprocessor struct {
	err error
}

func (s stubPreprocessor) Preprocess(ctx context.Context, data []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return data, nil
}

// stubAugmenter возвращает n+1 байтовых вариантов: оригинал и n помеченных копий.
type stubAugmenter struct {
	err error
}

func (s stubAugmenter) Augment(ctx context.Context, data []byte, n int) ([][]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	out := make([][]byte, 0, n+1)
	out = append(out, data)
	for i := 0; i < n; i++ {
		out = append(out, append([]byte(fmt.Sprintf("aug%d:", i)), data...))
	}
	return out, nil
}

// stubEncoder выдаёт вектор по содержимому либо вектор по умолчанию.
type stubEncoder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	def     []float32
	err     error
	calls   int
}

func (s *stubEncoder) Encode(ctx context.Context, data []byte) ([]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if vec, ok := s.vectors[string(data)]; ok {
		return vec, nil
	}
	return s.def, nil
}

// memObjectRepo — потокобезопасное S3-хранилище в памяти.
// putDelay и maxInflight позволяют наблюдать параллелизм загрузок.
type memObjectRepo struct {
	mu          sync.Mutex
	objects     map[string][]byte
	putDelay    time.Duration
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newMemObjectRepo() *memObjectRepo {
	return &memObjectRepo{objects: make(map[string][]byte)}
}

func objKey(bucket, key string) string {
	return bucket + "/" + key
}

func (m *memObjectRepo) Put(ctx context.Context, obj *domain.Object) (string, error) {
	cur := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		max := m.maxInflight.Load()
		if cur <= max || m.maxInflight.CompareAndSwap(max, cur) {
			break
		}
	}
	if m.putDelay > 0 {
		time.Sleep(m.putDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objKey(obj.Bucket, obj.Key)] = obj.Bytes
	return obj.Key, nil
}

func (m *memObjectRepo) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return data, nil
}

func (m *memObjectRepo) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objKey(bucket, key))
	return nil
}

func (m *memObjectRepo) Exists(ctx context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[objKey(bucket, key)]
	return ok, nil
}

func (m *memObjectRepo) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0)
	for k := range m.objects {
		if len(k) > len(bucket) && k[:len(bucket)] == bucket {
			keys = append(keys, k[len(bucket)+1:])
		}
	}
	return keys, nil
}

// stubCapRepo отдаёт фиксированный каталог; barrier (если задан) блокирует All.
type stubCapRepo struct {
	caps    []domain.Cap
	infos   []CapInfo
	barrier chan struct{}
}

func (s *stubCapRepo) Create(ctx context.Context, cap *domain.Cap) (*domain.Cap, error) {
	created := *cap
	created.ID = int64(len(s.caps) + 1)
	s.caps = append(s.caps, created)
	return &created, nil
}

func (s *stubCapRepo) All(ctx context.Context) ([]domain.Cap, error) {
	if s.barrier != nil {
		<-s.barrier
	}
	return s.caps, nil
}

func (s *stubCapRepo) GetByID(ctx context.Context, id int64) (*domain.Cap, error) {
	for _, c := range s.caps {
		if c.ID == id {
			found := c
			return &found, nil
		}
	}
	return nil, e.ErrCapNotFound
}

func (s *stubCapRepo) GetCapsInfo(ctx context.Context, ids []int64) ([]CapInfo, error) {
	result := make([]CapInfo, 0, len(ids))
	for _, id := range ids {
		for _, info := range s.infos {
			if info.ID == id {
				result = append(result, info)
			}
		}
	}
	return result, nil
}

// memVariantRepo — репозиторий вариантов в памяти.
type memVariantRepo struct {
	mu       sync.Mutex
	nextID   int64
	variants []domain.Variant
}

func (m *memVariantRepo) Create(ctx context.Context, variant *domain.Variant) (*domain.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	created := *variant
	created.ID = m.nextID
	m.variants = append(m.variants, created)
	return &created, nil
}

func (m *memVariantRepo) AllWithoutEmbedding(ctx context.Context) ([]domain.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.Variant, 0)
	for _, v := range m.variants {
		if !v.HasEmbedding() {
			result = append(result, v)
		}
	}
	return result, nil
}

func (m *memVariantRepo) AllWithEmbedding(ctx context.Context) ([]domain.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.Variant, 0)
	for _, v := range m.variants {
		if v.HasEmbedding() {
			result = append(result, v)
		}
	}
	return result, nil
}

func (m *memVariantRepo) SetEmbedding(ctx context.Context, id int64, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.variants {
		if m.variants[i].ID == id {
			m.variants[i].Embedding = vector
			return nil
		}
	}
	return fmt.Errorf("variant %d not found", id)
}

// stubCacheRepo — кэш в памяти с учётом вызовов SetCaps.
type stubCacheRepo struct {
	mu       sync.Mutex
	caps     map[int64]CapInfo
	err      error
	setCalls int
}

func newStubCacheRepo() *stubCacheRepo {
	return &stubCacheRepo{caps: make(map[int64]CapInfo)}
}

func (s *stubCacheRepo) GetCaps(ctx context.Context, ids []int64) (map[int64]CapInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	result := make(map[int64]CapInfo)
	for _, id := range ids {
		if info, ok := s.caps[id]; ok {
			result[id] = info
		}
	}
	return result, nil
}

func (s *stubCacheRepo) SetCaps(ctx context.Context, caps []CapInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	for _, info := range caps {
		s.caps[info.ID] = info
	}
	return nil
}

func (s *stubCacheRepo) DeleteCaps(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.caps, id)
	}
	return nil
}

// stubPublisher запоминает события публикации индекса.
type stubPublisher struct {
	mu     sync.Mutex
	events []int
	err    error
}

func (s *stubPublisher) IndexPublished(ctx context.Context, vectors int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, vectors)
	return nil
}
