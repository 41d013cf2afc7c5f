package domain

import "time"

// Tx is a store transaction handle. Repository methods accept a nil Tx to
// run outside any transaction.
type Tx interface {
	Commit() error
	Rollback() error
}

type RuleRepository interface {
	BeginTransaction() (Tx, error)
	Save(rule RecurringRule, tx Tx) error
	FindByID(ruleID string) (*RecurringRule, error)
	// FindByIDForUpdate loads the rule inside the given transaction and
	// locks its row until commit, so read-modify-write sequences on the
	// rule cannot interleave with a concurrent editor.
	FindByIDForUpdate(ruleID string, tx Tx) (*RecurringRule, error)
	FindByUser(userID string) ([]RecurringRule, error)
	Update(rule RecurringRule, tx Tx) error
	// AdvanceWatermark moves last_materialized_date forward to the given
	// instant, never backward, and touches no other column.
	AdvanceWatermark(ruleID string, watermark time.Time, tx Tx) error
	// SetActive flips is_active and touches no other column.
	SetActive(ruleID string, active bool, tx Tx) error
	Delete(ruleID string, tx Tx) error
}

type EntryRepository interface {
	Save(entry LedgerEntry, tx Tx) error
	// SaveBatchSkipConflicts inserts the entries, silently skipping any row
	// that collides on the (rule, date) uniqueness constraint for generated
	// entries, and reports how many rows were actually inserted.
	SaveBatchSkipConflicts(entries []LedgerEntry, tx Tx) (int, error)
	FindByID(entryID string) (*LedgerEntry, error)
	FindGeneratedByRule(ruleID string) ([]LedgerEntry, error)
	FindGeneratedByRuleInRange(ruleID string, start, end time.Time) ([]LedgerEntry, error)
	FindGeneratedByRuleFromDate(ruleID string, from time.Time) ([]LedgerEntry, error)
	Update(entry LedgerEntry, tx Tx) error
	Delete(entryID string, tx Tx) error
	// DetachFromRule turns the rule's generated entries into ordinary
	// standalone entries: rule linkage, generated flag and pinned-field
	// markers are cleared while the entries themselves survive.
	DetachFromRule(ruleID string, tx Tx) error
}

type OverrideRepository interface {
	// Record upserts one override: a new (entry, field) pair is inserted as
	// given, an existing one keeps its original value and only the
	// overridden value is replaced.
	Record(override FieldOverride, tx Tx) error
	FindByEntry(entryID string) ([]FieldOverride, error)
	DeleteByRule(ruleID string, tx Tx) error
	DeleteByEntry(entryID string, tx Tx) error
}
