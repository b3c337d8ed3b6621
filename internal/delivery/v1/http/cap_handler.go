package http

import (
	"net/http"
	"strconv"

	"github.com/capvault/capsearch/internal/usecase"
	"github.com/capvault/capsearch/pkg/e"
	"github.com/capvault/capsearch/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type CapHandler struct {
	capUsecase usecase.CapUC
	logger     logger.Logger
}

func NewCapHandler(capUsecase usecase.CapUC, logger logger.Logger) *CapHandler {
	return &CapHandler{capUsecase: capUsecase, logger: logger}
}

// registerNewCap создаёт крышку в каталоге с исходной фотографией.
// В индекс крышка попадает после следующего прогона индексации.
func (c *CapHandler) registerNewCap(w http.ResponseWriter, r *http.Request) {
	const (
		maxTotalRequestSize = 32 << 20
		maxMemory           = 16 << 20
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		c.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		c.logger.Warnf("%d %s", http.StatusBadRequest, e.ErrCapNameRequired.Error())
		WriteError(w, e.ErrCapNameRequired)
		return
	}

	image, err := parseImage(r.MultipartForm.File["image"])
	if err != nil {
		c.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	res, err := c.capUsecase.RegisterNewCap(r.Context(), usecase.NewRegisterCapReq(name, image))
	if err != nil {
		c.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"id":          res.Cap.ID,
		"name":        res.Cap.Name,
		"storage_key": res.Cap.StorageKey,
	})
}

// getCap возвращает карточку крышки каталога.
func (c *CapHandler) getCap(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		c.logger.Warnf("%d %s: invalid cap id %q", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), chi.URLParam(r, "id"))
		WriteError(w, e.ErrStatusBadRequest)
		return
	}

	cap, err := c.capUsecase.GetCap(r.Context(), id)
	if err != nil {
		c.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"id":          cap.ID,
		"name":        cap.Name,
		"storage_key": cap.StorageKey,
		"is_archived": cap.IsArchived,
	})
}
