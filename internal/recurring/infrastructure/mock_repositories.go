package infrastructure

import (
	"sort"
	"time"

	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
)

// In-memory repositories for unit tests. The entry mock enforces the same
// per-(rule, date) uniqueness rule as the real partial index so the
// skip-on-conflict path is exercised without a database.

type mockTx struct{}

func (mockTx) Commit() error { return nil }

func (mockTx) Rollback() error { return nil }

type MockRuleRepository struct {
	Rules []domain.RecurringRule
}

func (m *MockRuleRepository) BeginTransaction() (domain.Tx, error) {
	return mockTx{}, nil
}

func (m *MockRuleRepository) Save(rule domain.RecurringRule, _ domain.Tx) error {
	m.Rules = append(m.Rules, rule)
	return nil
}

func (m *MockRuleRepository) FindByID(ruleID string) (*domain.RecurringRule, error) {
	for i := range m.Rules {
		if m.Rules[i].ID == ruleID {
			rule := m.Rules[i]
			return &rule, nil
		}
	}
	return nil, nil
}

func (m *MockRuleRepository) FindByIDForUpdate(ruleID string, _ domain.Tx) (*domain.RecurringRule, error) {
	return m.FindByID(ruleID)
}

func (m *MockRuleRepository) FindByUser(userID string) ([]domain.RecurringRule, error) {
	var rules []domain.RecurringRule
	for i := range m.Rules {
		if m.Rules[i].UserID == userID {
			rules = append(rules, m.Rules[i])
		}
	}
	return rules, nil
}

func (m *MockRuleRepository) Update(rule domain.RecurringRule, _ domain.Tx) error {
	for i := range m.Rules {
		if m.Rules[i].ID == rule.ID {
			m.Rules[i] = rule
			return nil
		}
	}
	return nil
}

func (m *MockRuleRepository) AdvanceWatermark(ruleID string, watermark time.Time, _ domain.Tx) error {
	for i := range m.Rules {
		if m.Rules[i].ID == ruleID {
			current := m.Rules[i].LastMaterializedDate
			if current == nil || current.Before(watermark) {
				w := watermark
				m.Rules[i].LastMaterializedDate = &w
			}
			return nil
		}
	}
	return nil
}

func (m *MockRuleRepository) SetActive(ruleID string, active bool, _ domain.Tx) error {
	for i := range m.Rules {
		if m.Rules[i].ID == ruleID {
			m.Rules[i].IsActive = active
			return nil
		}
	}
	return nil
}

func (m *MockRuleRepository) Delete(ruleID string, _ domain.Tx) error {
	for i := range m.Rules {
		if m.Rules[i].ID == ruleID {
			m.Rules = append(m.Rules[:i], m.Rules[i+1:]...)
			return nil
		}
	}
	return nil
}

type MockEntryRepository struct {
	Entries []domain.LedgerEntry
}

func (m *MockEntryRepository) Save(entry domain.LedgerEntry, _ domain.Tx) error {
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockEntryRepository) SaveBatchSkipConflicts(entries []domain.LedgerEntry, _ domain.Tx) (int, error) {
	inserted := 0
	for _, entry := range entries {
		if entry.IsGenerated && entry.RuleID != nil && m.hasGenerated(*entry.RuleID, entry.Date) {
			continue
		}
		m.Entries = append(m.Entries, entry)
		inserted++
	}
	return inserted, nil
}

func (m *MockEntryRepository) hasGenerated(ruleID string, date time.Time) bool {
	for i := range m.Entries {
		e := &m.Entries[i]
		if e.IsGenerated && e.RuleID != nil && *e.RuleID == ruleID && sameDay(e.Date, date) {
			return true
		}
	}
	return false
}

func (m *MockEntryRepository) FindByID(entryID string) (*domain.LedgerEntry, error) {
	for i := range m.Entries {
		if m.Entries[i].ID == entryID {
			entry := m.Entries[i]
			return &entry, nil
		}
	}
	return nil, nil
}

func (m *MockEntryRepository) FindGeneratedByRule(ruleID string) ([]domain.LedgerEntry, error) {
	return m.filterGenerated(ruleID, func(time.Time) bool { return true }), nil
}

func (m *MockEntryRepository) FindGeneratedByRuleInRange(ruleID string, start, end time.Time) ([]domain.LedgerEntry, error) {
	return m.filterGenerated(ruleID, func(d time.Time) bool {
		return !d.Before(start) && !d.After(end)
	}), nil
}

func (m *MockEntryRepository) FindGeneratedByRuleFromDate(ruleID string, from time.Time) ([]domain.LedgerEntry, error) {
	return m.filterGenerated(ruleID, func(d time.Time) bool {
		return !d.Before(from)
	}), nil
}

func (m *MockEntryRepository) filterGenerated(ruleID string, keep func(time.Time) bool) []domain.LedgerEntry {
	var entries []domain.LedgerEntry
	for i := range m.Entries {
		e := m.Entries[i]
		if e.IsGenerated && e.RuleID != nil && *e.RuleID == ruleID && keep(e.Date) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })
	return entries
}

func (m *MockEntryRepository) Update(entry domain.LedgerEntry, _ domain.Tx) error {
	for i := range m.Entries {
		if m.Entries[i].ID == entry.ID {
			m.Entries[i] = entry
			return nil
		}
	}
	return nil
}

func (m *MockEntryRepository) Delete(entryID string, _ domain.Tx) error {
	for i := range m.Entries {
		if m.Entries[i].ID == entryID {
			m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockEntryRepository) DetachFromRule(ruleID string, _ domain.Tx) error {
	for i := range m.Entries {
		e := &m.Entries[i]
		if e.RuleID != nil && *e.RuleID == ruleID {
			e.RuleID = nil
			e.IsGenerated = false
			e.OverriddenFields = nil
		}
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// MockOverrideRepository resolves rule-scoped deletes through the entry
// repository, the way the SQL implementation joins on ledger_entries.
type MockOverrideRepository struct {
	Overrides []domain.FieldOverride
	Entries   *MockEntryRepository
}

func (m *MockOverrideRepository) Record(override domain.FieldOverride, _ domain.Tx) error {
	for i := range m.Overrides {
		o := &m.Overrides[i]
		if o.EntryID == override.EntryID && o.Field == override.Field {
			o.OverriddenValue = override.OverriddenValue
			return nil
		}
	}
	m.Overrides = append(m.Overrides, override)
	return nil
}

func (m *MockOverrideRepository) FindByEntry(entryID string) ([]domain.FieldOverride, error) {
	var overrides []domain.FieldOverride
	for _, o := range m.Overrides {
		if o.EntryID == entryID {
			overrides = append(overrides, o)
		}
	}
	return overrides, nil
}

func (m *MockOverrideRepository) DeleteByRule(ruleID string, _ domain.Tx) error {
	return m.deleteWhere(func(entryID string) bool {
		entry, _ := m.Entries.FindByID(entryID)
		return entry != nil && entry.RuleID != nil && *entry.RuleID == ruleID
	})
}

func (m *MockOverrideRepository) DeleteByEntry(entryID string, _ domain.Tx) error {
	return m.deleteWhere(func(id string) bool { return id == entryID })
}

func (m *MockOverrideRepository) deleteWhere(match func(entryID string) bool) error {
	kept := m.Overrides[:0]
	for _, o := range m.Overrides {
		if !match(o.EntryID) {
			kept = append(kept, o)
		}
	}
	m.Overrides = kept
	return nil
}
