package http

import (
	"net/http"

	"github.com/capvault/capsearch/internal/usecase"
	"github.com/capvault/capsearch/pkg/e"
	"github.com/capvault/capsearch/pkg/logger"
)

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	logger        logger.Logger
}

func NewSearchHandler(searchUsecase usecase.SearchUC, logger logger.Logger) *SearchHandler {
	return &SearchHandler{searchUsecase: searchUsecase, logger: logger}
}

// searchResponse — JSON-представление результата поиска.
type searchResponse struct {
	Matches []matchResponse `json:"matches"`
}

type matchResponse struct {
	CapID          int64   `json:"cap_id"`
	Name           string  `json:"name"`
	StorageKey     string  `json:"storage_key"`
	MatchCount     int     `json:"match_count"`
	MeanSimilarity float32 `json:"mean_similarity"`
	MinSimilarity  float32 `json:"min_similarity"`
	MaxSimilarity  float32 `json:"max_similarity"`
}

// search принимает фотографию и возвращает наиболее похожие крышки каталога.
// Поля top_k и candidate_k необязательны.
func (s *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	const (
		maxTotalRequestSize = 32 << 20
		maxMemory           = 16 << 20
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		s.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	image, err := parseImage(r.MultipartForm.File["image"])
	if err != nil {
		s.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	topK, err := parseFormInt(r, "top_k")
	if err != nil {
		WriteError(w, err)
		return
	}

	candidateK, err := parseFormInt(r, "candidate_k")
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := s.searchUsecase.Query(r.Context(), usecase.NewQueryReq(image.Data, topK, candidateK))
	if err != nil {
		s.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	matches := make([]matchResponse, 0, len(res.Matches))
	for _, m := range res.Matches {
		matches = append(matches, matchResponse{
			CapID:          m.Cap.ID,
			Name:           m.Cap.Name,
			StorageKey:     m.Cap.StorageKey,
			MatchCount:     m.MatchCount,
			MeanSimilarity: m.MeanSimilarity,
			MinSimilarity:  m.MinSimilarity,
			MaxSimilarity:  m.MaxSimilarity,
		})
	}

	WriteSuccess(w, http.StatusOK, searchResponse{Matches: matches})
}
