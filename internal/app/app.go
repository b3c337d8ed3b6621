package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/capvault/capsearch/internal/cfg"
	v1Http "github.com/capvault/capsearch/internal/delivery/v1/http"
	"github.com/capvault/capsearch/internal/index"
	"github.com/capvault/capsearch/internal/infrastructure/kafka"
	"github.com/capvault/capsearch/internal/infrastructure/vision"
	s3Repo "github.com/capvault/capsearch/internal/repository/minio"
	"github.com/capvault/capsearch/internal/repository/pgdb"
	pgdbConv "github.com/capvault/capsearch/internal/repository/pgdb/converter"
	"github.com/capvault/capsearch/internal/repository/redis"
	redisConv "github.com/capvault/capsearch/internal/repository/redis/converter"
	"github.com/capvault/capsearch/internal/usecase"
	"github.com/capvault/capsearch/pkg/clients"
	"github.com/capvault/capsearch/pkg/closer"
	"github.com/capvault/capsearch/pkg/e"
	"github.com/capvault/capsearch/pkg/logger"
	"github.com/capvault/capsearch/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

// App связывает все слои приложения и управляет их жизненным циклом.
type App struct {
	cfg      *config.Config
	logger   logger.Logger
	closer   *closer.Closer
	httpSrv  *v1Http.Server
	consumer *kafka.Consumer
	searchUC usecase.SearchUC
}

// NewApp инициализирует хранилища, модели и бизнес-слой.
func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	cl := closer.NewCloser(2 * time.Second)

	db, err := initPGDB(log, cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		db.Close()
		return nil
	})

	capRepo := pgdb.NewCapRepo(db.Pool, pgdbConv.NewCapConverter())
	variantRepo := pgdb.NewVariantRepo(db.Pool, pgdbConv.NewVariantConverter())

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = clients.EnsureBuckets(minioCtx, minioClient,
		cfg.Minio.OriginalsBucket, cfg.Minio.VariantsBucket, cfg.Minio.IndexBucket)
	minioCancel()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	objRepo := s3Repo.NewObjectRepo(minioClient)

	redisClient := clients.NewRedisClient(cfg.Redis)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(redisCtx)
	redisCancel()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		return redisClient.Client.Close()
	})

	cacheRepo := redis.NewCacheRepo(redisClient, redisConv.NewCapInfoConverter(), cfg.Redis, log)

	segmenter, err := vision.NewU2NetSegmenter(cfg.Vision.SegmenterModelPath, cfg.Vision.SegmenterInputSize)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		return segmenter.Close()
	})

	pipeline := vision.NewPipeline(segmenter, cfg.Vision.ImageSize, log)
	augmenter := vision.NewAugmenter(pipeline)

	encoder, err := vision.NewClipEncoder(cfg.Vision)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		return encoder.Close()
	})

	producer, err := kafka.NewProducer(log, cfg.Kafka)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if err := producer.EnsureTopic(10 * time.Second); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		return producer.Close()
	})

	holder := index.NewHolder()

	searchUC := usecase.NewSearchUC(
		holder, pipeline, encoder,
		capRepo, cacheRepo, objRepo,
		cfg.Minio, cfg.Query, cfg.Vision, log,
	)
	indexUC := usecase.NewIndexUC(
		capRepo, variantRepo, objRepo,
		pipeline, augmenter, encoder, producer,
		cfg.Minio, cfg.Vision, log,
	)
	capUC := usecase.NewCapUC(capRepo, objRepo, cacheRepo, db.Pool, cfg.Minio, log)

	consumer := kafka.NewConsumer(searchUC, log, cfg.Kafka)
	cl.Add(func(ctx context.Context) error {
		return consumer.Close()
	})

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, log)
	router.Init(searchUC, capUC, indexUC)

	httpSrv := v1Http.NewServer(r, cfg.Http)
	cl.Add(func(ctx context.Context) error {
		return httpSrv.Stop(ctx)
	})

	return &App{
		cfg:      cfg,
		logger:   log,
		closer:   cl,
		httpSrv:  httpSrv,
		consumer: consumer,
		searchUC: searchUC,
	}, nil
}

// Run поднимает HTTP-сервер и консьюмер, загружает индекс и блокируется
// до сигнала завершения или фатальной ошибки сервера.
func (a *App) Run() error {
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	// Стартовая загрузка индекса. Отсутствующие артефакты не фатальны:
	// до первого прогона индексации поиск отвечает 503.
	loadCtx, loadCancel := context.WithTimeout(runCtx, 30*time.Second)
	if err := a.searchUC.ReloadIndex(loadCtx); err != nil {
		a.logger.Warnf("index not loaded on startup, search is unavailable until rebuild: %v", err)
	}
	loadCancel()

	a.consumer.Start(runCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	runCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Warnf("shutdown finished with errors: %v", err)
	} else {
		a.logger.Infof("Application shutdown complete")
	}

	return appErr
}

func initPGDB(log logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		log.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(log); err != nil {
		log.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		log.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
