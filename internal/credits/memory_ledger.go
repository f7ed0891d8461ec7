package credits

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"campaign-server/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ Ledger = (*MemoryLedger)(nil)

type memoryAccount struct {
	mu      sync.Mutex
	balance int64 // Доступный остаток (уже без активных резервов)
}

// MemoryLedger - журнал в памяти процесса. Резервы одного аккаунта сериализуются
// мьютексом аккаунта, разные аккаунты не блокируют друг друга.
type MemoryLedger struct {
	mu           sync.Mutex
	accounts     map[string]*memoryAccount
	transactions map[domain.ReservationID]*domain.CreditTransaction
	now          func() time.Time
	logger       *zap.Logger
}

// NewMemoryLedger создает пустой журнал в памяти.
func NewMemoryLedger(logger *zap.Logger) *MemoryLedger {
	return &MemoryLedger{
		accounts:     make(map[string]*memoryAccount),
		transactions: make(map[domain.ReservationID]*domain.CreditTransaction),
		now:          time.Now,
		logger:       logger.Named("MemoryLedger"),
	}
}

func (l *MemoryLedger) account(accountID string) *memoryAccount {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[accountID]
	if !ok {
		acc = &memoryAccount{}
		l.accounts[accountID] = acc
	}
	return acc
}

// Deposit пополняет баланс аккаунта.
func (l *MemoryLedger) Deposit(_ context.Context, accountID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	acc := l.account(accountID)
	acc.mu.Lock()
	acc.balance += amount
	acc.mu.Unlock()
	l.logger.Info("Credits deposited", zap.String("account_id", accountID), zap.Int64("amount", amount))
	return nil
}

// Balance возвращает доступный остаток.
func (l *MemoryLedger) Balance(_ context.Context, accountID string) (int64, error) {
	acc := l.account(accountID)
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balance, nil
}

// Reserve удерживает amount кредитов. Проверка остатка и удержание выполняются под одним локом.
func (l *MemoryLedger) Reserve(_ context.Context, accountID string, amount int64) (domain.ReservationID, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	acc := l.account(accountID)
	acc.mu.Lock()
	if acc.balance < amount {
		balance := acc.balance
		acc.mu.Unlock()
		l.logger.Warn("Reservation rejected",
			zap.String("account_id", accountID), zap.Int64("amount", amount), zap.Int64("balance", balance))
		return "", fmt.Errorf("%w: balance %d, required %d", domain.ErrInsufficientCredits, balance, amount)
	}
	acc.balance -= amount
	acc.mu.Unlock()

	now := l.now()
	id := domain.ReservationID(uuid.NewString())
	l.mu.Lock()
	l.transactions[id] = &domain.CreditTransaction{
		ID:        id,
		AccountID: accountID,
		Amount:    amount,
		Phase:     domain.TransactionReserved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.mu.Unlock()

	l.logger.Debug("Credits reserved", zap.String("account_id", accountID), zap.String("reservation_id", string(id)), zap.Int64("amount", amount))
	return id, nil
}

// Commit превращает резерв в списание.
func (l *MemoryLedger) Commit(_ context.Context, id domain.ReservationID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.transactions[id]
	if !ok {
		return ErrReservationNotFound
	}
	switch tx.Phase {
	case domain.TransactionCommitted:
		return nil
	case domain.TransactionReleased:
		return ErrReservationClosed
	}
	tx.Phase = domain.TransactionCommitted
	tx.UpdatedAt = l.now()
	l.logger.Debug("Reservation committed", zap.String("reservation_id", string(id)))
	return nil
}

// Release возвращает удержанные кредиты на баланс.
func (l *MemoryLedger) Release(_ context.Context, id domain.ReservationID) error {
	l.mu.Lock()
	tx, ok := l.transactions[id]
	if !ok {
		l.mu.Unlock()
		return ErrReservationNotFound
	}
	if tx.Phase != domain.TransactionReserved {
		l.mu.Unlock()
		return nil
	}
	tx.Phase = domain.TransactionReleased
	tx.UpdatedAt = l.now()
	accountID, amount := tx.AccountID, tx.Amount
	l.mu.Unlock()

	acc := l.account(accountID)
	acc.mu.Lock()
	acc.balance += amount
	acc.mu.Unlock()

	l.logger.Debug("Reservation released", zap.String("reservation_id", string(id)), zap.Int64("amount", amount))
	return nil
}

// Transactions возвращает последние транзакции аккаунта, новые первыми.
func (l *MemoryLedger) Transactions(_ context.Context, accountID string, limit int) ([]domain.CreditTransaction, error) {
	l.mu.Lock()
	result := make([]domain.CreditTransaction, 0)
	for _, tx := range l.transactions {
		if tx.AccountID == accountID {
			result = append(result, *tx)
		}
	}
	l.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
