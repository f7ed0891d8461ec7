// Package accounts отдает тариф и привилегированность аккаунта для решения о тарификации запуска.
package accounts

import (
	"context"
	"fmt"

	"campaign-server/internal/database"
	"campaign-server/internal/domain"

	"github.com/georgysavva/scany/v2/pgxscan"
	"go.uber.org/zap"
)

// Lookup - источник данных аккаунта. Только чтение.
type Lookup interface {
	Lookup(ctx context.Context, accountID string) (domain.Account, error)
}

// PgLookup читает аккаунты из таблицы accounts. Неизвестный аккаунт считается
// непривилегированным аккаунтом бесплатного тарифа.
type PgLookup struct {
	db     database.DBTX
	logger *zap.Logger
}

var _ Lookup = (*PgLookup)(nil)

func NewPgLookup(db database.DBTX, logger *zap.Logger) *PgLookup {
	return &PgLookup{db: db, logger: logger.Named("PgAccountLookup")}
}

func (l *PgLookup) Lookup(ctx context.Context, accountID string) (domain.Account, error) {
	query := `SELECT id, tier, is_privileged FROM accounts WHERE id = $1`
	l.logger.Debug("Looking up account", zap.String("account_id", accountID))

	var acc domain.Account
	if err := pgxscan.Get(ctx, l.db, &acc, query, accountID); err != nil {
		if pgxscan.NotFound(err) {
			l.logger.Debug("Account not registered, using free tier", zap.String("account_id", accountID))
			return Default(accountID), nil
		}
		l.logger.Error("Failed to look up account", zap.String("account_id", accountID), zap.Error(err))
		return domain.Account{}, fmt.Errorf("failed to look up account %s: %w", accountID, err)
	}
	return acc, nil
}

// Upsert создает или обновляет аккаунт. Используется операторами и тестами.
func (l *PgLookup) Upsert(ctx context.Context, acc domain.Account) error {
	query := `
		INSERT INTO accounts (id, tier, is_privileged) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET tier = EXCLUDED.tier, is_privileged = EXCLUDED.is_privileged`
	if _, err := l.db.Exec(ctx, query, acc.ID, acc.Tier, acc.IsPrivileged); err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", acc.ID, err)
	}
	return nil
}

// Default - аккаунт, которого нет в таблице.
func Default(accountID string) domain.Account {
	return domain.Account{ID: accountID, Tier: domain.AccountTierFree}
}
