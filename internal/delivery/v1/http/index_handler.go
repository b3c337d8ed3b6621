package http

import (
	"context"
	"net/http"
	"time"

	"github.com/capvault/capsearch/internal/usecase"
	"github.com/capvault/capsearch/pkg/logger"
)

type IndexHandler struct {
	indexUsecase  usecase.IndexUC
	searchUsecase usecase.SearchUC
	logger        logger.Logger
}

func NewIndexHandler(indexUsecase usecase.IndexUC, searchUsecase usecase.SearchUC, logger logger.Logger) *IndexHandler {
	return &IndexHandler{
		indexUsecase:  indexUsecase,
		searchUsecase: searchUsecase,
		logger:        logger,
	}
}

type statusResponse struct {
	State             string     `json:"state"`
	CreatedVariants   int        `json:"created_variants"`
	UpdatedEmbeddings int        `json:"updated_embeddings"`
	IndexedVectors    int        `json:"indexed_vectors"`
	Failures          int        `json:"failures"`
	LastError         string     `json:"last_error,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	IndexLoaded       bool       `json:"index_loaded"`
}

// rebuild запускает полный прогон индексации в фоне и сразу отвечает 202.
// Повторный запуск при незавершённом прогоне возвращает 409.
func (i *IndexHandler) rebuild(w http.ResponseWriter, r *http.Request) {
	// Прогон переживает HTTP-запрос, поэтому живёт на собственном контексте.
	if err := i.indexUsecase.Start(context.Background()); err != nil {
		i.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
	})
}

// status возвращает состояние оркестратора и признак загруженности индекса.
func (i *IndexHandler) status(w http.ResponseWriter, r *http.Request) {
	st := i.indexUsecase.Status()

	WriteSuccess(w, http.StatusOK, statusResponse{
		State:             st.State,
		CreatedVariants:   st.Report.CreatedVariants,
		UpdatedEmbeddings: st.Report.UpdatedEmbeddings,
		IndexedVectors:    st.Report.IndexedVectors,
		Failures:          st.Report.Failures,
		LastError:         st.LastError,
		FinishedAt:        st.FinishedAt,
		IndexLoaded:       i.searchUsecase.IndexLoaded(),
	})
}

// reload перечитывает артефакты индекса из хранилища.
func (i *IndexHandler) reload(w http.ResponseWriter, r *http.Request) {
	if err := i.searchUsecase.ReloadIndex(r.Context()); err != nil {
		i.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"status": "reloaded",
	})
}
