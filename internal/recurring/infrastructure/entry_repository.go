package infrastructure

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
)

type EntryRepository struct {
	db *sql.DB
}

func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

const entryColumns = `id, user_id, rule_id, date, type, account_id, counter_account_id, amount, name,
    category_id, subcategory_id, liability_id, description, memo, tags, metadata, is_generated, overridden_fields`

const entryPlaceholders = `$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18`

func entryArgs(e domain.LedgerEntry) ([]interface{}, error) {
	tags, err := marshalOrNull(e.Tags, len(e.Tags) > 0)
	if err != nil {
		return nil, err
	}
	metadata, err := marshalOrNull(e.Metadata, len(e.Metadata) > 0)
	if err != nil {
		return nil, err
	}
	overridden, err := marshalOrNull(e.OverriddenFields, len(e.OverriddenFields) > 0)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		e.ID, e.UserID, nullString(e.RuleID), e.Date, e.Type, e.AccountID,
		nullString(e.CounterAccountID), e.Amount, e.Name, nullString(e.CategoryID),
		nullString(e.SubcategoryID), nullString(e.LiabilityID), e.Description,
		e.Memo, tags, metadata, e.IsGenerated, overridden,
	}, nil
}

func (r *EntryRepository) Save(entry domain.LedgerEntry, tx domain.Tx) error {
	args, err := entryArgs(entry)
	if err != nil {
		return err
	}
	_, err = conn(r.db, tx).Exec(
		`INSERT INTO ledger_entries (`+entryColumns+`) VALUES (`+entryPlaceholders+`)`, args...)
	return err
}

// SaveBatchSkipConflicts inserts the entries one by one inside the given
// transaction, letting the partial unique index on (rule_id, date) swallow
// rows another materialization run has already created. The returned count
// is the number of rows that actually landed.
func (r *EntryRepository) SaveBatchSkipConflicts(entries []domain.LedgerEntry, tx domain.Tx) (int, error) {
	c := conn(r.db, tx)
	inserted := 0
	for _, entry := range entries {
		args, err := entryArgs(entry)
		if err != nil {
			return inserted, err
		}
		result, err := c.Exec(
			`INSERT INTO ledger_entries (`+entryColumns+`) VALUES (`+entryPlaceholders+`)
            ON CONFLICT (rule_id, date) WHERE is_generated DO NOTHING`, args...)
		if err != nil {
			return inserted, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += int(n)
	}
	return inserted, nil
}

func (r *EntryRepository) FindByID(entryID string) (*domain.LedgerEntry, error) {
	row := r.db.QueryRow(`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, entryID)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *EntryRepository) FindGeneratedByRule(ruleID string) ([]domain.LedgerEntry, error) {
	return r.queryEntries(
		`SELECT `+entryColumns+` FROM ledger_entries
        WHERE rule_id = $1 AND is_generated ORDER BY date, id`, ruleID)
}

func (r *EntryRepository) FindGeneratedByRuleInRange(ruleID string, start, end time.Time) ([]domain.LedgerEntry, error) {
	return r.queryEntries(
		`SELECT `+entryColumns+` FROM ledger_entries
        WHERE rule_id = $1 AND is_generated AND date >= $2 AND date <= $3 ORDER BY date, id`,
		ruleID, start, end)
}

func (r *EntryRepository) FindGeneratedByRuleFromDate(ruleID string, from time.Time) ([]domain.LedgerEntry, error) {
	return r.queryEntries(
		`SELECT `+entryColumns+` FROM ledger_entries
        WHERE rule_id = $1 AND is_generated AND date >= $2 ORDER BY date, id`, ruleID, from)
}

func (r *EntryRepository) queryEntries(query string, args ...interface{}) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (r *EntryRepository) Update(entry domain.LedgerEntry, tx domain.Tx) error {
	args, err := entryArgs(entry)
	if err != nil {
		return err
	}
	_, err = conn(r.db, tx).Exec(
		`UPDATE ledger_entries
        SET user_id = $2, rule_id = $3, date = $4, type = $5, account_id = $6,
            counter_account_id = $7, amount = $8, name = $9, category_id = $10,
            subcategory_id = $11, liability_id = $12, description = $13, memo = $14,
            tags = $15, metadata = $16, is_generated = $17, overridden_fields = $18
        WHERE id = $1`, args...)
	return err
}

func (r *EntryRepository) Delete(entryID string, tx domain.Tx) error {
	_, err := conn(r.db, tx).Exec(`DELETE FROM ledger_entries WHERE id = $1`, entryID)
	return err
}

func (r *EntryRepository) DetachFromRule(ruleID string, tx domain.Tx) error {
	_, err := conn(r.db, tx).Exec(
		`UPDATE ledger_entries
        SET rule_id = NULL, is_generated = FALSE, overridden_fields = NULL
        WHERE rule_id = $1`, ruleID)
	return err
}

func scanEntry(row rowScanner) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	var ruleID, counterAccountID, categoryID, subcategoryID, liabilityID sql.NullString
	var tags, metadata, overridden []byte

	err := row.Scan(&entry.ID, &entry.UserID, &ruleID, &entry.Date, &entry.Type, &entry.AccountID,
		&counterAccountID, &entry.Amount, &entry.Name, &categoryID, &subcategoryID, &liabilityID,
		&entry.Description, &entry.Memo, &tags, &metadata, &entry.IsGenerated, &overridden)
	if err != nil {
		return nil, err
	}
	entry.RuleID = optional(ruleID)
	entry.CounterAccountID = optional(counterAccountID)
	entry.CategoryID = optional(categoryID)
	entry.SubcategoryID = optional(subcategoryID)
	entry.LiabilityID = optional(liabilityID)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &entry.Tags); err != nil {
			return nil, err
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, err
		}
	}
	if len(overridden) > 0 {
		if err := json.Unmarshal(overridden, &entry.OverriddenFields); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}

func marshalOrNull(v interface{}, present bool) (interface{}, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func optional(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
