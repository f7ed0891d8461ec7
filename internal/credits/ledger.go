// Package credits реализует кредитный журнал: reserve/commit/release вокруг запуска пайплайна.
package credits

import (
	"context"
	"errors"

	"campaign-server/internal/domain"
)

var (
	ErrReservationNotFound = errors.New("credit reservation not found")
	// ErrReservationClosed - commit уже освобожденного резерва. Деньги не списываются.
	ErrReservationClosed = errors.New("credit reservation already released")
	ErrInvalidAmount     = errors.New("credit amount must be positive")
)

// Ledger - журнал кредитов аккаунтов.
//
// Reserve атомарен относительно параллельных резервов того же аккаунта.
// Commit и Release идемпотентны: повторный вызов на том же резерве ничего не делает.
// Release после Commit тоже ничего не делает, а Commit после Release возвращает ErrReservationClosed.
type Ledger interface {
	Reserve(ctx context.Context, accountID string, amount int64) (domain.ReservationID, error)
	Commit(ctx context.Context, id domain.ReservationID) error
	Release(ctx context.Context, id domain.ReservationID) error

	Deposit(ctx context.Context, accountID string, amount int64) error
	Balance(ctx context.Context, accountID string) (int64, error)
	Transactions(ctx context.Context, accountID string, limit int) ([]domain.CreditTransaction, error)
}
