package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/capvault/capsearch/pkg/e"
	"github.com/capvault/capsearch/pkg/logger"
	"github.com/jimlawless/whereami"
)

type Config struct {
	Minio  *MinIOCfg
	Http   *HTTPConfig
	Db     *PGDBCfg
	Redis  *RedisCfg
	Kafka  *KafkaCfg
	Vision *VisionCfg
	Query  *QueryCfg
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	OriginalsBucket   string // Бакет с исходными фотографиями крышек
	VariantsBucket    string // Бакет с аугментированными вариантами
	IndexBucket       string // Бакет с артефактами индекса
	IndexKey          string // Ключ сериализованного индекса
	MetadataKey       string // Ключ массива идентификаторов
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	UploadImagesLimit int // Лимит на кол-во одновременных загрузок в S3
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	CapTTL      time.Duration
}

type KafkaCfg struct {
	Topic             string
	GroupID           string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

// VisionCfg описывает параметры моделей и пайплайна обработки изображений.
// ImageSize задаёт единое каноническое разрешение: оно используется и при
// построении индекса, и при обработке запроса.
type VisionCfg struct {
	SegmenterModelPath    string
	EncoderModelPath      string
	ImageSize             int // каноническое разрешение (N×N)
	SegmenterInputSize    int // вход сегментационной модели (N×N)
	VectorSize            int // размерность эмбеддинга
	AugmentationsPerImage int
	MaxConcurrent         int
	EncodeTimeout         time.Duration
	MaxRetries            int
}

type QueryCfg struct {
	DefaultTopK       int
	MaxTopK           int
	DefaultCandidateK int
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	vision, err := loadVisionCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Minio:  minio,
		Http:   http,
		Db:     db,
		Redis:  redis,
		Kafka:  kafka,
		Vision: vision,
		Query:  loadQueryCfg(),
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL      = false
		defaultEndpoint    = "minio:9000"
		defaultIndexKey    = "caps.index"
		defaultMetadataKey = "caps.metadata.bin"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	originals := getEnv("MINIO_ORIGINALS_BUCKET")
	variants := getEnv("MINIO_VARIANTS_BUCKET")
	index := getEnv("MINIO_INDEX_BUCKET")
	if originals == "" || variants == "" || index == "" {
		return nil, fmt.Errorf("MINIO_ORIGINALS_BUCKET, MINIO_VARIANTS_BUCKET and MINIO_INDEX_BUCKET are required")
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		OriginalsBucket:   originals,
		VariantsBucket:    variants,
		IndexBucket:       index,
		IndexKey:          getEnvOrDefault("MINIO_INDEX_FILE_NAME", defaultIndexKey),
		MetadataKey:       getEnvOrDefault("MINIO_METADATA_FILE_NAME", defaultMetadataKey),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		UploadImagesLimit: 10,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 30 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultCapTTL       = 3 * time.Minute
	)

	addr := getEnvOrDefault("REDIS_ADDR", defaultAddr)
	password := getEnv("REDIS_PASSWORD")
	user := getEnv("REDIS_USER")

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	capTTL, err := parseDurationEnv("CAP_TTL", defaultCapTTL)
	if err != nil {
		log.Errorf(err, "invalid CAP_TTL")
		return nil, err
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Addr:        addr,
		Password:    password,
		User:        user,
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     timeout,
		CapTTL:      capTTL,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 1
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultGroupID           = "capsearch-query"
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}
	brokers := strings.Split(brokerStr, ",")

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC environment variable is required")
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             topic,
		GroupID:           getEnvOrDefault("KAFKA_GROUP_ID", defaultGroupID),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadVisionCfg(log logger.Logger) (*VisionCfg, error) {
	const (
		defaultImageSize          = 224
		defaultSegmenterInputSize = 320
		defaultVectorSize         = 512
		defaultAugmentations      = 10
		defaultMaxConcurrent      = 8
		defaultEncodeTimeout      = 30 * time.Second
		defaultMaxRetries         = 3
	)

	segmenterPath := getEnv("SEGMENTER_MODEL_PATH")
	if segmenterPath == "" {
		err := fmt.Errorf("SEGMENTER_MODEL_PATH is required")
		log.Errorf(err, "missing SEGMENTER_MODEL_PATH")
		return nil, err
	}

	encoderPath := getEnv("ENCODER_MODEL_PATH")
	if encoderPath == "" {
		err := fmt.Errorf("ENCODER_MODEL_PATH is required")
		log.Errorf(err, "missing ENCODER_MODEL_PATH")
		return nil, err
	}

	imageSize, err := parseIntEnv("IMAGE_SIZE", defaultImageSize)
	if err != nil {
		return nil, e.Wrap("IMAGE_SIZE", err)
	}

	segmenterInput, err := parseIntEnv("SEGMENTER_INPUT_SIZE", defaultSegmenterInputSize)
	if err != nil {
		return nil, e.Wrap("SEGMENTER_INPUT_SIZE", err)
	}

	vectorSize, err := parseIntEnv("VECTOR_SIZE", defaultVectorSize)
	if err != nil {
		return nil, e.Wrap("VECTOR_SIZE", err)
	}

	augmentations, err := parseIntEnv("AUGMENTATIONS_PER_IMAGE", defaultAugmentations)
	if err != nil {
		return nil, e.Wrap("AUGMENTATIONS_PER_IMAGE", err)
	}
	if augmentations <= 0 {
		return nil, fmt.Errorf("AUGMENTATIONS_PER_IMAGE must be positive, got %d", augmentations)
	}

	maxConcurrent, err := parseIntEnv("VISION_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		return nil, e.Wrap("VISION_MAX_CONCURRENT", err)
	}

	encodeTimeout, err := parseDurationEnv("ENCODE_TIMEOUT", defaultEncodeTimeout)
	if err != nil {
		log.Errorf(err, "invalid ENCODE_TIMEOUT")
		return nil, err
	}

	return &VisionCfg{
		SegmenterModelPath:    segmenterPath,
		EncoderModelPath:      encoderPath,
		ImageSize:             imageSize,
		SegmenterInputSize:    segmenterInput,
		VectorSize:            vectorSize,
		AugmentationsPerImage: augmentations,
		MaxConcurrent:         maxConcurrent,
		EncodeTimeout:         encodeTimeout,
		MaxRetries:            defaultMaxRetries,
	}, nil
}

func loadQueryCfg() *QueryCfg {
	const (
		defaultTopK       = 3
		maxTopK           = 15
		defaultCandidateK = 10000
	)

	return &QueryCfg{
		DefaultTopK:       defaultTopK,
		MaxTopK:           maxTopK,
		DefaultCandidateK: defaultCandidateK,
	}
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}
