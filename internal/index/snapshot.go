package index

import (
	"fmt"
	"sync/atomic"

	"github.com/capvault/capsearch/internal/domain"
	"github.com/capvault/capsearch/pkg/e"
)

// Snapshot — неизменяемое поколение индекса: векторы плюс позиционно
// выровненный массив идентификаторов крышек. Несколько вариантов одной
// крышки дают повторяющиеся идентификаторы — это ожидаемо.
type Snapshot struct {
	flat *Flat
	ids  []int64
}

// NewSnapshot собирает поколение из готового индекса и массива идентификаторов.
// Длина массива обязана совпадать с числом векторов.
func NewSnapshot(flat *Flat, ids []int64) (*Snapshot, error) {
	if flat.Len() != len(ids) {
		return nil, e.Wrap(
			fmt.Sprintf("index has %d vectors, identifier array has %d entries", flat.Len(), len(ids)),
			e.ErrIndexArtifact,
		)
	}

	return &Snapshot{flat: flat, ids: ids}, nil
}

// Build нормализует векторы по L2 и строит новое поколение индекса.
// Пустой вход даёт пустое, но рабочее поколение.
func Build(vectors [][]float32, ids []int64) (*Snapshot, error) {
	if len(vectors) != len(ids) {
		return nil, e.Wrap(
			fmt.Sprintf("%d vectors, %d identifiers", len(vectors), len(ids)),
			e.ErrVectorSize,
		)
	}

	if len(vectors) == 0 {
		return &Snapshot{flat: NewFlat(0)}, nil
	}

	flat := NewFlat(len(vectors[0]))
	for _, vec := range vectors {
		cp := make([]float32, len(vec))
		copy(cp, vec)
		Normalize(cp)

		if err := flat.Add(cp); err != nil {
			return nil, err
		}
	}

	return &Snapshot{flat: flat, ids: append([]int64(nil), ids...)}, nil
}

func (s *Snapshot) Len() int {
	return s.flat.Len()
}

func (s *Snapshot) Dim() int {
	return s.flat.Dim()
}

func (s *Snapshot) Flat() *Flat {
	return s.flat
}

func (s *Snapshot) IDs() []int64 {
	return s.ids
}

// Search ищет k ближайших соседей и возвращает пары (cap id, similarity).
// k усекается до фактического размера индекса.
func (s *Snapshot) Search(query []float32, k int) ([]domain.Candidate, error) {
	hits, err := s.flat.Search(query, k)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, domain.Candidate{
			CapID:      s.ids[hit.Pos],
			Similarity: hit.Score,
		})
	}

	return candidates, nil
}

// Holder владеет текущим поколением индекса. Чтения идут без блокировок,
// замена поколения — атомарная подмена указателя: запрос в полёте видит
// либо старое поколение целиком, либо новое, но никогда не смесь.
type Holder struct {
	cur atomic.Pointer[Snapshot]
}

func NewHolder() *Holder {
	return &Holder{}
}

// Swap публикует новое поколение индекса.
func (h *Holder) Swap(s *Snapshot) {
	h.cur.Store(s)
}

// Current возвращает текущее поколение либо e.ErrIndexNotLoaded,
// если ни одной загрузки ещё не было.
func (h *Holder) Current() (*Snapshot, error) {
	s := h.cur.Load()
	if s == nil {
		return nil, e.ErrIndexNotLoaded
	}

	return s, nil
}

func (h *Holder) Loaded() bool {
	return h.cur.Load() != nil
}
