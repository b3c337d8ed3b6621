package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/capvault/capsearch/internal/domain"
	"github.com/capvault/capsearch/internal/usecase"
	"github.com/capvault/capsearch/pkg/e"
	"github.com/go-chi/chi/v5"
)

type nopLogger struct{}

func (nopLogger) Debugf(format string, args ...any)            {}
func (nopLogger) Infof(format string, args ...any)             {}
func (nopLogger) Warnf(format string, args ...any)             {}
func (nopLogger) Errorf(err error, format string, args ...any) {}

type stubSearchUC struct {
	res    *usecase.QueryRes
	err    error
	loaded bool
}

func (s *stubSearchUC) Query(ctx context.Context, req *usecase.QueryReq) (*usecase.QueryRes, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func (s *stubSearchUC) ReloadIndex(ctx context.Context) error { return s.err }
func (s *stubSearchUC) IndexLoaded() bool                     { return s.loaded }

type stubIndexUC struct {
	status   *usecase.IndexStatus
	startErr error
}

func (s *stubIndexUC) Run(ctx context.Context) (*usecase.RunReport, error) {
	return &usecase.RunReport{}, nil
}
func (s *stubIndexUC) Start(ctx context.Context) error { return s.startErr }
func (s *stubIndexUC) Status() *usecase.IndexStatus    { return s.status }

type stubCapUC struct {
	res *usecase.RegisterCapRes
	cap *domain.Cap
	err error
}

func (s *stubCapUC) RegisterNewCap(ctx context.Context, req *usecase.RegisterCapReq) (*usecase.RegisterCapRes, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func (s *stubCapUC) GetCap(ctx context.Context, id int64) (*domain.Cap, error) {
	if s.cap != nil && s.cap.ID == id {
		return s.cap, nil
	}
	return nil, e.ErrCapNotFound
}

func newTestRouter(search usecase.SearchUC, capUC usecase.CapUC, indexUC usecase.IndexUC) *chi.Mux {
	r := chi.NewRouter()
	NewRouter(r, nopLogger{}).Init(search, capUC, indexUC)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileData []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(fileData); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	return body, w.FormDataContentType()
}

// pngHeader — минимальная сигнатура, которую DetectContentType относит к image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n" + "stub-image-payload")

func TestToHTTPResponse(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{e.ErrNoImage, http.StatusBadRequest},
		{e.ErrDecodeImage, http.StatusBadRequest},
		{e.ErrInvalidTopK, http.StatusBadRequest},
		{e.ErrInvalidCandidateK, http.StatusBadRequest},
		{e.ErrCapNameRequired, http.StatusBadRequest},
		{e.ErrExpectedMultipart, http.StatusBadRequest},
		{e.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{e.ErrImageTooLarge, http.StatusRequestEntityTooLarge},
		{e.ErrIndexingBusy, http.StatusConflict},
		{e.ErrIndexNotLoaded, http.StatusServiceUnavailable},
		{e.ErrCapNotFound, http.StatusNotFound},
		{e.ErrIntegrity, http.StatusInternalServerError},
		{e.Wrap("SearchUseCase.Query", e.ErrIndexNotLoaded), http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		if code, _ := ToHTTPResponse(tc.err); code != tc.code {
			t.Errorf("ToHTTPResponse(%v) = %d, want %d", tc.err, code, tc.code)
		}
	}
}

func TestSearchEndpoint(t *testing.T) {
	search := &stubSearchUC{
		loaded: true,
		res: &usecase.QueryRes{Matches: []usecase.CapMatch{
			{
				Cap:            usecase.CapInfo{ID: 1, Name: "lion"},
				MatchCount:     2,
				MeanSimilarity: 0.8,
				MinSimilarity:  0.7,
				MaxSimilarity:  0.9,
			},
		}},
	}
	router := newTestRouter(search, &stubCapUC{}, &stubIndexUC{})

	body, contentType := multipartBody(t, map[string]string{"top_k": "5"}, "image", "cap.png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var res searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 1 || res.Matches[0].CapID != 1 || res.Matches[0].MatchCount != 2 {
		t.Errorf("unexpected response: %+v", res)
	}
}

func TestSearchEndpointNoImage(t *testing.T) {
	router := newTestRouter(&stubSearchUC{loaded: true}, &stubCapUC{}, &stubIndexUC{})

	body, contentType := multipartBody(t, nil, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSearchEndpointIndexNotLoaded(t *testing.T) {
	router := newTestRouter(&stubSearchUC{err: e.ErrIndexNotLoaded}, &stubCapUC{}, &stubIndexUC{})

	body, contentType := multipartBody(t, nil, "image", "cap.png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSearchEndpointNotMultipart(t *testing.T) {
	router := newTestRouter(&stubSearchUC{}, &stubCapUC{}, &stubIndexUC{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRebuildEndpoint(t *testing.T) {
	router := newTestRouter(&stubSearchUC{}, &stubCapUC{}, &stubIndexUC{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}

func TestRebuildEndpointBusy(t *testing.T) {
	router := newTestRouter(&stubSearchUC{}, &stubCapUC{}, &stubIndexUC{startErr: e.ErrIndexingBusy})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	indexUC := &stubIndexUC{status: &usecase.IndexStatus{
		State:  "READY",
		Report: usecase.RunReport{IndexedVectors: 42},
	}}
	router := newTestRouter(&stubSearchUC{loaded: true}, &stubCapUC{}, indexUC)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/index/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var res statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.State != "READY" || res.IndexedVectors != 42 || !res.IndexLoaded {
		t.Errorf("unexpected response: %+v", res)
	}
}

func TestRegisterCapEndpoint(t *testing.T) {
	capUC := &stubCapUC{res: &usecase.RegisterCapRes{
		Cap: &domain.Cap{ID: 7, Name: "lion", StorageKey: "abc.png"},
	}}
	router := newTestRouter(&stubSearchUC{}, capUC, &stubIndexUC{})

	body, contentType := multipartBody(t, map[string]string{"name": "lion"}, "image", "lion.png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/caps/", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterCapEndpointMissingName(t *testing.T) {
	router := newTestRouter(&stubSearchUC{}, &stubCapUC{}, &stubIndexUC{})

	body, contentType := multipartBody(t, nil, "image", "lion.png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/caps/", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetCapEndpoint(t *testing.T) {
	capUC := &stubCapUC{cap: &domain.Cap{ID: 7, Name: "lion", StorageKey: "abc.png"}}
	router := newTestRouter(&stubSearchUC{}, capUC, &stubIndexUC{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/caps/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		StorageKey string `json:"storage_key"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.ID != 7 || body.Name != "lion" || body.StorageKey != "abc.png" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestGetCapEndpointNotFound(t *testing.T) {
	router := newTestRouter(&stubSearchUC{}, &stubCapUC{}, &stubIndexUC{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/caps/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetCapEndpointInvalidID(t *testing.T) {
	router := newTestRouter(&stubSearchUC{}, &stubCapUC{}, &stubIndexUC{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/caps/lion", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
