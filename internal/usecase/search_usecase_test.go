package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/capvault/capsearch/internal/cfg"
	"github.com/capvault/capsearch/internal/index"
	"github.com/capvault/capsearch/pkg/e"
)

func testMinIOCfg() *cfg.MinIOCfg {
	return &cfg.MinIOCfg{
		OriginalsBucket:   "originals",
		VariantsBucket:    "variants",
		IndexBucket:       "index",
		IndexKey:          "caps.index",
		MetadataKey:       "caps.metadata.bin",
		UploadImagesLimit: 4,
	}
}

func testQueryCfg() *cfg.QueryCfg {
	return &cfg.QueryCfg{
		DefaultTopK:       3,
		MaxTopK:           15,
		DefaultCandidateK: 10000,
	}
}

func testVisionCfg() *cfg.VisionCfg {
	return &cfg.VisionCfg{
		ImageSize:             224,
		VectorSize:            4,
		AugmentationsPerImage: 2,
		MaxConcurrent:         2,
		EncodeTimeout:         time.Second,
		MaxRetries:            1,
	}
}

func newTestSearchUC(holder *index.Holder, enc *stubEncoder, capRepo *stubCapRepo,
	cache *stubCacheRepo, objRepo *memObjectRepo) *SearchUseCase {
	return NewSearchUC(
		holder,
		stubPreprocessor{},
		enc,
		capRepo,
		cache,
		objRepo,
		testMinIOCfg(),
		testQueryCfg(),
		testVisionCfg(),
		nopLogger{},
	)
}

// catalogSnapshot строит поколение индекса: два варианта крышки 1
// вдоль первой оси и один вариант крышки 2 вдоль второй.
func catalogSnapshot(t *testing.T) *index.Snapshot {
	t.Helper()

	snap, err := index.Build([][]float32{
		{1, 0, 0, 0},
		{0.9, 0.1, 0, 0},
		{0, 1, 0, 0},
	}, []int64{1, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestQueryIndexNotLoaded(t *testing.T) {
	uc := newTestSearchUC(index.NewHolder(), &stubEncoder{def: []float32{1, 0, 0, 0}},
		&stubCapRepo{}, newStubCacheRepo(), newMemObjectRepo())

	_, err := uc.Query(context.Background(), &QueryReq{Image: []byte("photo")})
	if !errors.Is(err, e.ErrIndexNotLoaded) {
		t.Fatalf("err = %v, want ErrIndexNotLoaded", err)
	}
}

func TestQueryHappyPath(t *testing.T) {
	holder := index.NewHolder()
	holder.Swap(catalogSnapshot(t))

	capRepo := &stubCapRepo{infos: []CapInfo{
		{ID: 1, Name: "lion", StorageKey: "lion.jpg"},
		{ID: 2, Name: "eagle", StorageKey: "eagle.jpg"},
	}}

	uc := newTestSearchUC(holder, &stubEncoder{def: []float32{1, 0, 0, 0}},
		capRepo, newStubCacheRepo(), newMemObjectRepo())

	res, err := uc.Query(context.Background(), &QueryReq{Image: []byte("photo")})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(res.Matches))
	}

	top := res.Matches[0]
	if top.Cap.ID != 1 || top.Cap.Name != "lion" {
		t.Errorf("top match = %+v, want cap 1 (lion)", top.Cap)
	}
	if top.MatchCount != 2 {
		t.Errorf("MatchCount = %d, want 2", top.MatchCount)
	}
	if top.MeanSimilarity <= res.Matches[1].MeanSimilarity {
		t.Errorf("matches not ordered by mean similarity: %v", res.Matches)
	}
}

func TestQueryTopKTruncates(t *testing.T) {
	holder := index.NewHolder()
	holder.Swap(catalogSnapshot(t))

	capRepo := &stubCapRepo{infos: []CapInfo{{ID: 1, Name: "lion"}}}

	uc := newTestSearchUC(holder, &stubEncoder{def: []float32{1, 0, 0, 0}},
		capRepo, newStubCacheRepo(), newMemObjectRepo())

	res, err := uc.Query(context.Background(), &QueryReq{Image: []byte("photo"), TopK: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(res.Matches))
	}
}

func TestQueryValidation(t *testing.T) {
	holder := index.NewHolder()
	holder.Swap(catalogSnapshot(t))

	uc := newTestSearchUC(holder, &stubEncoder{def: []float32{1, 0, 0, 0}},
		&stubCapRepo{}, newStubCacheRepo(), newMemObjectRepo())

	tests := []struct {
		name string
		req  *QueryReq
		want error
	}{
		{"no image", &QueryReq{}, e.ErrNoImage},
		{"top_k above limit", &QueryReq{Image: []byte("x"), TopK: 16}, e.ErrInvalidTopK},
		{"negative top_k", &QueryReq{Image: []byte("x"), TopK: -1}, e.ErrInvalidTopK},
		{"negative candidate_k", &QueryReq{Image: []byte("x"), CandidateK: -5}, e.ErrInvalidCandidateK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := uc.Query(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestQueryIntegrityViolation(t *testing.T) {
	holder := index.NewHolder()
	holder.Swap(catalogSnapshot(t))

	// Каталог знает только крышку 1; крышка 2 из индекса в нём отсутствует.
	capRepo := &stubCapRepo{infos: []CapInfo{{ID: 1, Name: "lion"}}}

	uc := newTestSearchUC(holder, &stubEncoder{def: []float32{0, 1, 0, 0}},
		capRepo, newStubCacheRepo(), newMemObjectRepo())

	_, err := uc.Query(context.Background(), &QueryReq{Image: []byte("photo")})
	if !errors.Is(err, e.ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}

func TestQueryUsesCache(t *testing.T) {
	holder := index.NewHolder()
	holder.Swap(catalogSnapshot(t))

	cache := newStubCacheRepo()
	cache.caps[1] = CapInfo{ID: 1, Name: "cached-lion"}
	cache.caps[2] = CapInfo{ID: 2, Name: "cached-eagle"}

	// Пустой репозиторий: попадание в БД означало бы ErrIntegrity.
	uc := newTestSearchUC(holder, &stubEncoder{def: []float32{1, 0, 0, 0}},
		&stubCapRepo{}, cache, newMemObjectRepo())

	res, err := uc.Query(context.Background(), &QueryReq{Image: []byte("photo")})
	if err != nil {
		t.Fatal(err)
	}
	if res.Matches[0].Cap.Name != "cached-lion" {
		t.Errorf("top match name = %q, want cached record", res.Matches[0].Cap.Name)
	}
}

func TestReloadIndex(t *testing.T) {
	objRepo := newMemObjectRepo()
	minioCfg := testMinIOCfg()

	snap := catalogSnapshot(t)
	idsBytes, err := index.EncodeIDs(snap.IDs())
	if err != nil {
		t.Fatal(err)
	}
	objRepo.objects[objKey(minioCfg.IndexBucket, minioCfg.IndexKey)] = index.EncodeFlat(snap.Flat())
	objRepo.objects[objKey(minioCfg.IndexBucket, minioCfg.MetadataKey)] = idsBytes

	holder := index.NewHolder()
	uc := newTestSearchUC(holder, &stubEncoder{def: []float32{1, 0, 0, 0}},
		&stubCapRepo{}, newStubCacheRepo(), objRepo)

	if uc.IndexLoaded() {
		t.Fatal("index reported loaded before reload")
	}

	if err := uc.ReloadIndex(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !uc.IndexLoaded() {
		t.Fatal("index not loaded after reload")
	}
	cur, err := holder.Current()
	if err != nil {
		t.Fatal(err)
	}
	if cur.Len() != 3 {
		t.Errorf("Len = %d, want 3", cur.Len())
	}
}

func TestReloadIndexTornArtifacts(t *testing.T) {
	objRepo := newMemObjectRepo()
	minioCfg := testMinIOCfg()

	snap := catalogSnapshot(t)
	// Массив идентификаторов от другого поколения: длины не совпадают.
	idsBytes, err := index.EncodeIDs([]int64{1})
	if err != nil {
		t.Fatal(err)
	}
	objRepo.objects[objKey(minioCfg.IndexBucket, minioCfg.IndexKey)] = index.EncodeFlat(snap.Flat())
	objRepo.objects[objKey(minioCfg.IndexBucket, minioCfg.MetadataKey)] = idsBytes

	holder := index.NewHolder()
	uc := newTestSearchUC(holder, &stubEncoder{def: []float32{1, 0, 0, 0}},
		&stubCapRepo{}, newStubCacheRepo(), objRepo)

	if err := uc.ReloadIndex(context.Background()); !errors.Is(err, e.ErrIndexArtifact) {
		t.Fatalf("err = %v, want ErrIndexArtifact", err)
	}
	if uc.IndexLoaded() {
		t.Error("torn artifact pair must not be published")
	}
}

func TestReloadIndexMissingArtifact(t *testing.T) {
	uc := newTestSearchUC(index.NewHolder(), &stubEncoder{def: []float32{1, 0, 0, 0}},
		&stubCapRepo{}, newStubCacheRepo(), newMemObjectRepo())

	if err := uc.ReloadIndex(context.Background()); err == nil {
		t.Fatal("expected error for missing artifacts")
	}
	if uc.IndexLoaded() {
		t.Error("index must stay unloaded")
	}
}
