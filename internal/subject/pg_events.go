package subject

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campaign-server/internal/database"
	"campaign-server/internal/domain"

	"github.com/georgysavva/scany/v2/pgxscan"
	"go.uber.org/zap"
)

type eventRow struct {
	ID          string     `db:"id"`
	Name        string     `db:"name"`
	Description string     `db:"description"`
	Venue       string     `db:"venue"`
	StartsAt    *time.Time `db:"starts_at"`
}

// PgEventRepository читает события платформы из PostgreSQL.
type PgEventRepository struct {
	db     database.DBTX
	logger *zap.Logger
}

func NewPgEventRepository(db database.DBTX, logger *zap.Logger) *PgEventRepository {
	return &PgEventRepository{db: db, logger: logger.Named("PgEventRepo")}
}

func (r *PgEventRepository) Resolve(ctx context.Context, ref string) (domain.Subject, error) {
	query := `SELECT id, name, description, venue, starts_at FROM events WHERE id = $1`

	var row eventRow
	if err := pgxscan.Get(ctx, r.db, &row, query, ref); err != nil {
		if pgxscan.NotFound(err) {
			r.logger.Warn("Event not found", zap.String("event_id", ref))
			return domain.Subject{}, fmt.Errorf("%w: event %s", ErrNotFound, ref)
		}
		r.logger.Error("Failed to load event", zap.String("event_id", ref), zap.Error(err))
		return domain.Subject{}, fmt.Errorf("failed to load event %s: %w", ref, err)
	}

	subj := domain.Subject{
		Ref:         row.ID,
		Name:        row.Name,
		Description: row.Description,
		Venue:       row.Venue,
	}
	if row.StartsAt != nil {
		subj.StartsAt = row.StartsAt.UTC().Format(time.RFC3339)
	}
	return subj, nil
}

// IsNotFound - удобная проверка для вызывающих.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
