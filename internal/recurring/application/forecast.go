package application

import (
	"sort"
	"time"

	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
	"github.com/pjanicki/RecurringLedger/internal/recurring/schedule"
)

// Forecast projects the entries every active rule of the user would generate
// strictly after today, intersected with the requested range. Nothing is
// persisted and the entries carry no ID: they are re-derived from the
// current templates on every call, which is what keeps forecasts correct
// across rule edits without any background recomputation.
func (s *RecurringService) Forecast(userID string, rangeStart, rangeEnd time.Time, now time.Time) ([]domain.LedgerEntry, error) {
	rules, err := s.ruleRepo.FindByUser(userID)
	if err != nil {
		return nil, err
	}

	today := schedule.DateOnly(now)
	from := schedule.DateOnly(rangeStart)
	to := schedule.DateOnly(rangeEnd)

	var projected []domain.LedgerEntry
	for i := range rules {
		rule := &rules[i]
		if !rule.IsActive {
			continue
		}
		for _, date := range schedule.Generate(rule.Frequency, rule.Interval, rule.StartDate, rule.EndDate, rule.OccurrenceCount, now) {
			if !date.After(today) {
				continue
			}
			if date.Before(from) {
				continue
			}
			if date.After(to) {
				break
			}
			projected = append(projected, domain.NewEntryFromTemplate(rule, date))
		}
	}

	sort.Slice(projected, func(i, j int) bool {
		if !projected[i].Date.Equal(projected[j].Date) {
			return projected[i].Date.Before(projected[j].Date)
		}
		return *projected[i].RuleID < *projected[j].RuleID
	})
	return projected, nil
}
