package domain

// Object описывает бинарный объект, который хранится в S3.
type Object struct {
	Bucket      string
	Key         string
	Bytes       []byte
	ContentType string
}

func NewObject(bucket string, key string, data []byte, contentType string) *Object {
	return &Object{
		Bucket:      bucket,
		Key:         key,
		Bytes:       data,
		ContentType: contentType,
	}
}
