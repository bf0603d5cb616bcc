// Package postgres holds the console's own persistence. Only the console
// audit trail lives here; the supply ledger itself belongs to the hub.
package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"mypts/internal/domain"
	"mypts/pkg/errors"
)

// AuditRepository persists console-side records of admin-initiated
// operations.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts a new console audit entry.
func (r *AuditRepository) Record(ctx context.Context, entry *domain.ConsoleAuditEntry) error {
	query := `
		INSERT INTO console_audit (
			id, admin_id, action, amount, reason,
			request_id, succeeded, error_message, created_at
		) VALUES (
			:id, :admin_id, :action, :amount, :reason,
			:request_id, :succeeded, :error_message, :created_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return errors.Wrap(err, "failed to record console audit entry")
	}

	return nil
}

// List returns the newest audit entries first.
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]*domain.ConsoleAuditEntry, error) {
	var entries []*domain.ConsoleAuditEntry
	query := `
		SELECT id, admin_id, action, amount, reason,
			request_id, succeeded, error_message, created_at
		FROM console_audit
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	err := r.db.SelectContext(ctx, &entries, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list console audit entries")
	}

	return entries, nil
}

// CountByAction returns how many entries exist per action, for the
// dashboard summary tiles.
func (r *AuditRepository) CountByAction(ctx context.Context) (map[domain.SupplyAction]int, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT action, COUNT(*) AS n
		FROM console_audit
		GROUP BY action
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count console audit entries")
	}
	defer rows.Close()

	counts := make(map[domain.SupplyAction]int)
	for rows.Next() {
		var action domain.SupplyAction
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan audit count")
		}
		counts[action] = n
	}
	return counts, rows.Err()
}
