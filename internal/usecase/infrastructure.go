package usecase

import "context"

// Preprocessor — выделение объекта и нормализация к каноническому
// разрешению; возвращает PNG с альфа-каналом.
type Preprocessor interface {
	Preprocess(ctx context.Context, data []byte) ([]byte, error)
}

// Augmenter — генерация n+1 вариантов нормализованного изображения
// (оригинал плюс n возмущённых).
type Augmenter interface {
	Augment(ctx context.Context, data []byte, n int) ([][]byte, error)
}

// Encoder — векторизация байтов изображения в эмбеддинг фиксированной длины.
type Encoder interface {
	Encode(ctx context.Context, data []byte) ([]float32, error)
}

// ReloadPublisher сообщает обслуживающим запросы процессам, что
// опубликовано новое поколение индекса.
type ReloadPublisher interface {
	IndexPublished(ctx context.Context, vectors int) error
}
