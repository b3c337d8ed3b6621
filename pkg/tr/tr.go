package tr

import (
	"context"

	"github.com/capvault/capsearch/pkg/e"
	"github.com/jackc/pgx/v5"
)

// TxFromCtx извлекает объект транзакции (pgx.Tx) из контекста.
// Возвращает e.ErrTransactionNotFound, если транзакция не была начата,
// тогда репозиторий работает напрямую через пул.
func TxFromCtx(ctx context.Context) (pgx.Tx, error) {
	tx, ok := ctx.Value("tx").(pgx.Tx)
	if !ok {
		return nil, e.ErrTransactionNotFound
	}
	return tx, nil
}
