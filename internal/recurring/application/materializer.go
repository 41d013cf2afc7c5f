package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
	recurringErrors "github.com/pjanicki/RecurringLedger/internal/recurring/errors"
	"github.com/pjanicki/RecurringLedger/internal/recurring/schedule"
)

// MaterializeHistorical persists an entry for every occurrence of the rule
// between its start date and the end of "today" that does not exist yet,
// and returns how many entries were newly created. Running it repeatedly is
// safe: the (rule, date) uniqueness constraint makes re-runs and concurrent
// runs skip instead of duplicate, and entries created by earlier runs are
// never touched even if the template has changed since.
func (s *RecurringService) MaterializeHistorical(ruleID string, now time.Time) (created int, err error) {
	rule, err := s.ruleRepo.FindByID(ruleID)
	if err != nil {
		return 0, err
	}
	if rule == nil {
		return 0, recurringErrors.ErrRuleNotFound
	}
	if !rule.IsActive {
		return 0, nil
	}

	tx, err := s.ruleRepo.BeginTransaction()
	if err != nil {
		return 0, err
	}
	defer func() {
		if p := recover(); p != nil {
			safeRollback(tx)
			panic(p)
		} else if err != nil {
			safeRollback(tx)
		} else {
			err = tx.Commit()
		}
	}()

	return s.materializeRule(rule, now, tx)
}

// MaterializeUserRules runs historical materialization for every active rule
// of the user, intended to be triggered once per day. Each rule runs in its
// own transaction; a failure aborts the batch and a rerun picks up where it
// left off because every per-rule run is idempotent.
func (s *RecurringService) MaterializeUserRules(userID string, now time.Time) (int, error) {
	rules, err := s.ruleRepo.FindByUser(userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for i := range rules {
		if !rules[i].IsActive {
			continue
		}
		created, err := s.MaterializeHistorical(rules[i].ID, now)
		if err != nil {
			return total, err
		}
		total += created
	}
	return total, nil
}

func (s *RecurringService) materializeRule(rule *domain.RecurringRule, now time.Time, tx domain.Tx) (int, error) {
	endOfToday := schedule.EndOfDay(now)
	occurrences := schedule.Generate(rule.Frequency, rule.Interval, rule.StartDate, rule.EndDate, rule.OccurrenceCount, now)

	existing, err := s.entryRepo.FindGeneratedByRuleInRange(rule.ID, schedule.DateOnly(rule.StartDate), endOfToday)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[dateKey(e.Date)] = true
	}

	var batch []domain.LedgerEntry
	for _, date := range occurrences {
		if date.After(endOfToday) {
			break
		}
		if seen[dateKey(date)] {
			continue
		}
		entry := domain.NewEntryFromTemplate(rule, date)
		entry.ID = uuid.NewString()
		batch = append(batch, entry)
	}

	created := 0
	if len(batch) > 0 {
		// the store skips rows that lose the (rule, date) race and reports
		// only what actually landed
		created, err = s.entryRepo.SaveBatchSkipConflicts(batch, tx)
		if err != nil {
			return 0, err
		}
	}

	// column-scoped on purpose: the rule was loaded before this transaction,
	// so writing the full row back could clobber a template edit committed
	// in between
	if rule.LastMaterializedDate == nil || rule.LastMaterializedDate.Before(endOfToday) {
		watermark := endOfToday
		rule.LastMaterializedDate = &watermark
		if err := s.ruleRepo.AdvanceWatermark(rule.ID, watermark, tx); err != nil {
			return 0, err
		}
	}
	return created, nil
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
