package infrastructure

import (
	"database/sql"

	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
)

type OverrideRepository struct {
	db *sql.DB
}

func NewOverrideRepository(db *sql.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// Record upserts one (entry, field) override. The original value is written
// once and never replaced afterwards; only the overridden value follows
// later edits.
func (r *OverrideRepository) Record(override domain.FieldOverride, tx domain.Tx) error {
	_, err := conn(r.db, tx).Exec(
		`INSERT INTO entry_overrides (entry_id, field, original_value, overridden_value)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (entry_id, field) DO UPDATE SET overridden_value = EXCLUDED.overridden_value`,
		override.EntryID, override.Field, override.OriginalValue, override.OverriddenValue,
	)
	return err
}

func (r *OverrideRepository) FindByEntry(entryID string) ([]domain.FieldOverride, error) {
	rows, err := r.db.Query(
		`SELECT entry_id, field, original_value, overridden_value
        FROM entry_overrides WHERE entry_id = $1 ORDER BY field`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []domain.FieldOverride
	for rows.Next() {
		var o domain.FieldOverride
		if err := rows.Scan(&o.EntryID, &o.Field, &o.OriginalValue, &o.OverriddenValue); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

func (r *OverrideRepository) DeleteByRule(ruleID string, tx domain.Tx) error {
	_, err := conn(r.db, tx).Exec(
		`DELETE FROM entry_overrides
        WHERE entry_id IN (SELECT id FROM ledger_entries WHERE rule_id = $1)`, ruleID)
	return err
}

func (r *OverrideRepository) DeleteByEntry(entryID string, tx domain.Tx) error {
	_, err := conn(r.db, tx).Exec(`DELETE FROM entry_overrides WHERE entry_id = $1`, entryID)
	return err
}
