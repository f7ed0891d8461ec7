package credits

import (
	"context"
	"errors"
	"fmt"

	"campaign-server/internal/database"
	"campaign-server/internal/domain"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	reserveBalanceQuery = `
        UPDATE credit_accounts
        SET balance = balance - $2, updated_at = NOW()
        WHERE account_id = $1 AND balance >= $2`
	insertReservationQuery = `
        INSERT INTO credit_transactions (id, account_id, amount, phase)
        VALUES ($1, $2, $3, 'reserved')`
	commitReservationQuery = `
        UPDATE credit_transactions
        SET phase = 'committed', updated_at = NOW()
        WHERE id = $1 AND phase = 'reserved'`
	releaseReservationQuery = `
        UPDATE credit_transactions
        SET phase = 'released', updated_at = NOW()
        WHERE id = $1 AND phase = 'reserved'
        RETURNING account_id, amount`
	refundBalanceQuery = `
        UPDATE credit_accounts
        SET balance = balance + $2, updated_at = NOW()
        WHERE account_id = $1`
	reservationPhaseQuery = `SELECT phase FROM credit_transactions WHERE id = $1`
	depositQuery          = `
        INSERT INTO credit_accounts (account_id, balance)
        VALUES ($1, $2)
        ON CONFLICT (account_id) DO UPDATE SET
            balance = credit_accounts.balance + EXCLUDED.balance,
            updated_at = NOW()`
	balanceQuery      = `SELECT balance FROM credit_accounts WHERE account_id = $1`
	transactionsQuery = `
        SELECT id, account_id, amount, phase, created_at, updated_at
        FROM credit_transactions
        WHERE account_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2`
)

const defaultTransactionsLimit = 50

var _ Ledger = (*PgLedger)(nil)

// PgLedger - журнал кредитов в PostgreSQL. Атомарность резерва обеспечивается
// условным UPDATE (balance >= amount): две параллельные транзакции не пройдут проверку
// одного и того же устаревшего остатка.
type PgLedger struct {
	db     database.TxBeginner
	logger *zap.Logger
}

func NewPgLedger(db database.TxBeginner, logger *zap.Logger) *PgLedger {
	return &PgLedger{db: db, logger: logger.Named("PgLedger")}
}

func (l *PgLedger) Reserve(ctx context.Context, accountID string, amount int64) (domain.ReservationID, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	log := l.logger.With(zap.String("account_id", accountID), zap.Int64("amount", amount))
	id := domain.ReservationID(uuid.NewString())

	err := database.WithTransaction(ctx, l.db, l.logger, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, reserveBalanceQuery, accountID, amount)
		if err != nil {
			return fmt.Errorf("failed to hold balance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrInsufficientCredits
		}
		if _, err := tx.Exec(ctx, insertReservationQuery, string(id), accountID, amount); err != nil {
			return fmt.Errorf("failed to insert reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			log.Warn("Reservation rejected: insufficient balance")
			return "", fmt.Errorf("%w: required %d", domain.ErrInsufficientCredits, amount)
		}
		log.Error("Failed to reserve credits", zap.Error(err))
		return "", err
	}

	log.Debug("Credits reserved", zap.String("reservation_id", string(id)))
	return id, nil
}

func (l *PgLedger) Commit(ctx context.Context, id domain.ReservationID) error {
	log := l.logger.With(zap.String("reservation_id", string(id)))
	tag, err := l.db.Exec(ctx, commitReservationQuery, string(id))
	if err != nil {
		log.Error("Failed to commit reservation", zap.Error(err))
		return fmt.Errorf("failed to commit reservation %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		log.Debug("Reservation committed")
		return nil
	}

	phase, err := l.phase(ctx, l.db, id)
	if err != nil {
		return err
	}
	if phase == domain.TransactionReleased {
		log.Warn("Commit requested for released reservation")
		return ErrReservationClosed
	}
	return nil
}

func (l *PgLedger) Release(ctx context.Context, id domain.ReservationID) error {
	log := l.logger.With(zap.String("reservation_id", string(id)))
	released := false

	err := database.WithTransaction(ctx, l.db, l.logger, func(tx pgx.Tx) error {
		var accountID string
		var amount int64
		err := tx.QueryRow(ctx, releaseReservationQuery, string(id)).Scan(&accountID, &amount)
		if errors.Is(err, pgx.ErrNoRows) {
			// Уже закрыт или не существует.
			_, err = l.phase(ctx, tx, id)
			return err
		}
		if err != nil {
			return fmt.Errorf("failed to mark reservation released: %w", err)
		}
		if _, err := tx.Exec(ctx, refundBalanceQuery, accountID, amount); err != nil {
			return fmt.Errorf("failed to refund balance: %w", err)
		}
		released = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrReservationNotFound) {
			log.Error("Failed to release reservation", zap.Error(err))
		}
		return err
	}
	if released {
		log.Debug("Reservation released")
	}
	return nil
}

func (l *PgLedger) phase(ctx context.Context, q database.DBTX, id domain.ReservationID) (domain.TransactionPhase, error) {
	var phase domain.TransactionPhase
	err := q.QueryRow(ctx, reservationPhaseQuery, string(id)).Scan(&phase)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrReservationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read reservation %s: %w", id, err)
	}
	return phase, nil
}

func (l *PgLedger) Deposit(ctx context.Context, accountID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if _, err := l.db.Exec(ctx, depositQuery, accountID, amount); err != nil {
		l.logger.Error("Failed to deposit credits", zap.String("account_id", accountID), zap.Error(err))
		return fmt.Errorf("failed to deposit credits: %w", err)
	}
	l.logger.Info("Credits deposited", zap.String("account_id", accountID), zap.Int64("amount", amount))
	return nil
}

// Balance возвращает доступный остаток. Аккаунт без записи имеет нулевой баланс.
func (l *PgLedger) Balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := l.db.QueryRow(ctx, balanceQuery, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (l *PgLedger) Transactions(ctx context.Context, accountID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = defaultTransactionsLimit
	}
	var txs []domain.CreditTransaction
	if err := pgxscan.Select(ctx, l.db, &txs, transactionsQuery, accountID, limit); err != nil {
		l.logger.Error("Failed to list credit transactions", zap.String("account_id", accountID), zap.Error(err))
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	if txs == nil {
		txs = []domain.CreditTransaction{}
	}
	return txs, nil
}
