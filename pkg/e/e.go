package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки пайплайна визуального поиска
	ErrDecodeImage    = fmt.Errorf("image bytes cannot be decoded")
	ErrIndexNotLoaded = fmt.Errorf("similarity index is not loaded")
	ErrIntegrity      = fmt.Errorf("index and catalog are out of sync")
	ErrVectorSize     = fmt.Errorf("vector size mismatch")
	ErrIndexingBusy   = fmt.Errorf("indexing run already in progress")
	ErrIndexArtifact  = fmt.Errorf("index artifact is corrupted")

	// 400 Bad Request
	ErrCapNameRequired      = fmt.Errorf("cap name is required")
	ErrNoImage              = fmt.Errorf("no image provided")
	ErrInvalidTopK          = fmt.Errorf("top_k is out of range")
	ErrInvalidCandidateK    = fmt.Errorf("candidate_k must be positive")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrMissingFields        = fmt.Errorf("missing required fields")
	ErrImageTooLarge        = fmt.Errorf("image exceeds size limit")

	// Прочее
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrInternalServerError  = fmt.Errorf("internal server error")
	ErrCapNotFound          = fmt.Errorf("cap not found")
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
