package domain

import "time"

// TransactionPhase - фаза кредитной транзакции.
type TransactionPhase string

const (
	TransactionReserved  TransactionPhase = "reserved"
	TransactionCommitted TransactionPhase = "committed"
	TransactionReleased  TransactionPhase = "released"
)

// ReservationID - хэндл резервирования, по нему выполняются commit/release.
type ReservationID string

// CreditTransaction - запись журнала кредитов. Reserved переходит либо в committed
// (успешный запуск), либо в released (без списания).
type CreditTransaction struct {
	ID        ReservationID    `db:"id" json:"id"`
	AccountID string           `db:"account_id" json:"accountId"`
	Amount    int64            `db:"amount" json:"amount"`
	Phase     TransactionPhase `db:"phase" json:"phase"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time        `db:"updated_at" json:"updatedAt"`
}
