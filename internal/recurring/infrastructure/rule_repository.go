package infrastructure

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
)

// dbtx is the common surface of *sql.DB and *sql.Tx; repository methods run
// against the transaction when one is passed and the pool otherwise.
type dbtx interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func conn(db *sql.DB, tx domain.Tx) dbtx {
	if sqlTx, ok := tx.(*sql.Tx); ok && sqlTx != nil {
		return sqlTx
	}
	return db
}

type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) BeginTransaction() (domain.Tx, error) {
	return r.db.Begin()
}

const ruleColumns = `id, user_id, frequency, recur_interval, start_date, end_date, occurrence_count, template, is_active, version, last_materialized_date`

func (r *RuleRepository) Save(rule domain.RecurringRule, tx domain.Tx) error {
	template, err := json.Marshal(rule.Template)
	if err != nil {
		return err
	}
	_, err = conn(r.db, tx).Exec(
		`INSERT INTO recurring_rules (`+ruleColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rule.ID, rule.UserID, rule.Frequency, rule.Interval, rule.StartDate,
		nullTime(rule.EndDate), nullInt(rule.OccurrenceCount), template,
		rule.IsActive, rule.Version, nullTime(rule.LastMaterializedDate),
	)
	return err
}

func (r *RuleRepository) FindByID(ruleID string) (*domain.RecurringRule, error) {
	row := r.db.QueryRow(`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = $1`, ruleID)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *RuleRepository) FindByIDForUpdate(ruleID string, tx domain.Tx) (*domain.RecurringRule, error) {
	row := conn(r.db, tx).QueryRow(`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = $1 FOR UPDATE`, ruleID)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *RuleRepository) FindByUser(userID string) ([]domain.RecurringRule, error) {
	rows, err := r.db.Query(`SELECT `+ruleColumns+` FROM recurring_rules WHERE user_id = $1 ORDER BY start_date, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (r *RuleRepository) Update(rule domain.RecurringRule, tx domain.Tx) error {
	template, err := json.Marshal(rule.Template)
	if err != nil {
		return err
	}
	_, err = conn(r.db, tx).Exec(
		`UPDATE recurring_rules
        SET frequency = $2, recur_interval = $3, start_date = $4, end_date = $5,
            occurrence_count = $6, template = $7, is_active = $8, version = $9,
            last_materialized_date = $10
        WHERE id = $1`,
		rule.ID, rule.Frequency, rule.Interval, rule.StartDate,
		nullTime(rule.EndDate), nullInt(rule.OccurrenceCount), template,
		rule.IsActive, rule.Version, nullTime(rule.LastMaterializedDate),
	)
	return err
}

// AdvanceWatermark is deliberately column-scoped: writing the whole row here
// would let a materialization run started against a stale rule overwrite a
// template edit committed in between. GREATEST keeps the watermark
// advance-only even when two runs race.
func (r *RuleRepository) AdvanceWatermark(ruleID string, watermark time.Time, tx domain.Tx) error {
	_, err := conn(r.db, tx).Exec(
		`UPDATE recurring_rules
        SET last_materialized_date = GREATEST(last_materialized_date, $2)
        WHERE id = $1`, ruleID, watermark)
	return err
}

func (r *RuleRepository) SetActive(ruleID string, active bool, tx domain.Tx) error {
	_, err := conn(r.db, tx).Exec(`UPDATE recurring_rules SET is_active = $2 WHERE id = $1`, ruleID, active)
	return err
}

func (r *RuleRepository) Delete(ruleID string, tx domain.Tx) error {
	_, err := conn(r.db, tx).Exec(`DELETE FROM recurring_rules WHERE id = $1`, ruleID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*domain.RecurringRule, error) {
	var rule domain.RecurringRule
	var endDate, lastMaterialized sql.NullTime
	var occurrenceCount sql.NullInt64
	var template []byte

	err := row.Scan(&rule.ID, &rule.UserID, &rule.Frequency, &rule.Interval, &rule.StartDate,
		&endDate, &occurrenceCount, &template, &rule.IsActive, &rule.Version, &lastMaterialized)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(template, &rule.Template); err != nil {
		return nil, err
	}
	if endDate.Valid {
		t := endDate.Time
		rule.EndDate = &t
	}
	if occurrenceCount.Valid {
		n := int(occurrenceCount.Int64)
		rule.OccurrenceCount = &n
	}
	if lastMaterialized.Valid {
		t := lastMaterialized.Time
		rule.LastMaterializedDate = &t
	}
	return &rule, nil
}
