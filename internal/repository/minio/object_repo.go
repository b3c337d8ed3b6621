package minio

import (
	"bytes"
	"context"
	"io"

	"github.com/capvault/capsearch/internal/domain"
	"github.com/capvault/capsearch/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ObjectRepo реализует репозиторий бинарных объектов поверх MinIO:
// исходные фотографии, аугментированные варианты и артефакты индекса.
type ObjectRepo struct {
	mc *minio.Client
}

func NewObjectRepo(mc *minio.Client) *ObjectRepo {
	return &ObjectRepo{mc: mc}
}

// Put загружает объект и возвращает его ключ.
func (o *ObjectRepo) Put(ctx context.Context, obj *domain.Object) (string, error) {
	reader := bytes.NewReader(obj.Bytes)

	info, err := o.mc.PutObject(ctx, obj.Bucket, obj.Key, reader, int64(len(obj.Bytes)), minio.PutObjectOptions{
		ContentType: obj.ContentType,
	})
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return info.Key, nil
}

// Get скачивает объект целиком.
func (o *ObjectRepo) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	object, err := o.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return data, nil
}

// Delete удаляет объект по указанному ключу.
func (o *ObjectRepo) Delete(ctx context.Context, bucket, key string) error {
	if err := o.mc.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Exists проверяет наличие объекта.
func (o *ObjectRepo) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := o.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return false, nil
		}

		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return true, nil
}

// List возвращает ключи объектов с заданным префиксом.
func (o *ObjectRepo) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	keys := make([]string, 0)

	for object := range o.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), object.Err)
		}

		keys = append(keys, object.Key)
	}

	return keys, nil
}
