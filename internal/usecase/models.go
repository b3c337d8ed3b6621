package usecase

import (
	"time"

	"github.com/capvault/capsearch/internal/domain"
)

// SEARCH USECASE

// QueryReq — запрос визуального поиска по фотографии.
type QueryReq struct {
	Image      []byte
	TopK       int // число агрегированных результатов; 0 — значение по умолчанию
	CandidateK int // число сырых соседей до агрегации; 0 — значение по умолчанию
}

// QueryRes — упорядоченный список агрегированных совпадений.
type QueryRes struct {
	Matches []CapMatch
}

// CapMatch — крышка каталога со сводной статистикой её попаданий.
type CapMatch struct {
	Cap            CapInfo
	MatchCount     int
	MeanSimilarity float32
	MinSimilarity  float32
	MaxSimilarity  float32
}

// CapInfo — DTO с информацией о крышке для внешнего использования.
type CapInfo struct {
	ID         int64
	Name       string
	StorageKey string
}

// CAP USECASE

// RegisterCapReq — запрос на добавление новой крышки с фотографией.
type RegisterCapReq struct {
	Name  string
	Image CapImage
}

// CapImage представляет изображение, загруженное через multipart/form-data.
type CapImage struct {
	Data     []byte
	MimeType string
	Size     int64
	Name     string
}

type RegisterCapRes struct {
	Cap *domain.Cap
}

// INDEXING USECASE

// IndexStatus — текущее состояние оркестратора индексации.
type IndexStatus struct {
	State      string
	Report     RunReport
	LastError  string
	FinishedAt *time.Time
}

// RunReport — счётчики одного прогона индексации.
// Failures считает пропущенные элементы: пакетные стадии не падают целиком
// из-за одного неразбираемого изображения.
type RunReport struct {
	CreatedVariants   int
	UpdatedEmbeddings int
	IndexedVectors    int
	Failures          int
}

// MAPPERS

func NewCapInfo(id int64, name string, storageKey string) CapInfo {
	return CapInfo{
		ID:         id,
		Name:       name,
		StorageKey: storageKey,
	}
}

func NewQueryReq(image []byte, topK, candidateK int) *QueryReq {
	return &QueryReq{
		Image:      image,
		TopK:       topK,
		CandidateK: candidateK,
	}
}

func NewRegisterCapReq(name string, image CapImage) *RegisterCapReq {
	return &RegisterCapReq{
		Name:  name,
		Image: image,
	}
}

func NewCapImage(data []byte, mimeType string, size int64, name string) CapImage {
	return CapImage{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func newCapMatch(cap CapInfo, m domain.AggregatedMatch) CapMatch {
	return CapMatch{
		Cap:            cap,
		MatchCount:     m.MatchCount,
		MeanSimilarity: m.MeanSimilarity,
		MinSimilarity:  m.MinSimilarity,
		MaxSimilarity:  m.MaxSimilarity,
	}
}
