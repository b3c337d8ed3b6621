// Package index реализует плоский индекс точного поиска ближайших соседей
// по скалярному произведению. Векторы нормализуются по L2 при построении,
// поэтому скалярное произведение совпадает с косинусной близостью.
package index

import (
	"math"
	"sort"

	"github.com/capvault/capsearch/pkg/e"
)

// Flat хранит векторы одной размерности в плоском массиве.
// После построения индекс только читается, поэтому безопасен
// для одновременного поиска из нескольких горутин.
type Flat struct {
	dim  int
	data []float32 // len == dim*count
}

// Hit — одно попадание поиска: позиция вектора в индексе и его близость.
type Hit struct {
	Pos   int
	Score float32
}

func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

func (f *Flat) Dim() int {
	return f.dim
}

func (f *Flat) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Add добавляет вектор. Размерность должна совпадать с размерностью индекса.
func (f *Flat) Add(vec []float32) error {
	if len(vec) != f.dim || f.dim == 0 {
		return e.ErrVectorSize
	}

	f.data = append(f.data, vec...)
	return nil
}

// At возвращает вектор по позиции (без копирования).
func (f *Flat) At(pos int) []float32 {
	return f.data[pos*f.dim : (pos+1)*f.dim]
}

// Search возвращает k ближайших векторов по убыванию скалярного произведения.
// Пустой индекс даёт пустой результат для любого k.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	n := f.Len()
	if n == 0 || k <= 0 {
		return nil, nil
	}

	if len(query) != f.dim {
		return nil, e.ErrVectorSize
	}

	if k > n {
		k = n
	}

	hits := make([]Hit, n)
	for pos := 0; pos < n; pos++ {
		hits[pos] = Hit{Pos: pos, Score: dot(query, f.At(pos))}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Pos < hits[j].Pos
	})

	return hits[:k], nil
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// Normalize приводит вектор к единичной L2-норме на месте.
// Нулевой вектор остаётся без изменений.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	if sum == 0 {
		return
	}

	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
