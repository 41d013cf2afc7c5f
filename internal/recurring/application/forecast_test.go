package application

import (
	"testing"
	"time"

	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
	"github.com/stretchr/testify/assert"
)

func TestForecast_ProjectsStrictlyFutureDatesOnly(t *testing.T) {
	f := newFixture()
	rule := monthlyRule("user-1", date(2026, time.January, 1), nil, 1000)
	assert.NoError(t, f.service.CreateRule(rule, date(2026, time.March, 15)))
	persisted := len(f.entries.Entries)

	projected, err := f.service.Forecast("user-1", date(2026, time.January, 1), date(2026, time.June, 30), date(2026, time.March, 15))
	assert.NoError(t, err)

	var dates []time.Time
	for _, e := range projected {
		dates = append(dates, e.Date)
	}
	assert.Equal(t, []time.Time{date(2026, time.April, 1), date(2026, time.May, 1), date(2026, time.June, 1)}, dates)

	// projections are ephemeral: nothing persisted, no identity assigned
	assert.Len(t, f.entries.Entries, persisted)
	for _, e := range projected {
		assert.Empty(t, e.ID)
		assert.Equal(t, 1000.0, e.Amount)
		assert.True(t, e.IsGenerated)
	}
}

func TestForecast_ConsistentAcrossCalls(t *testing.T) {
	f := newFixture()
	rule := monthlyRule("user-1", date(2026, time.January, 1), nil, 1000)
	assert.NoError(t, f.service.CreateRule(rule, date(2026, time.March, 15)))

	first, err := f.service.Forecast("user-1", date(2026, time.April, 1), date(2026, time.December, 31), date(2026, time.March, 15))
	assert.NoError(t, err)
	second, err := f.service.Forecast("user-1", date(2026, time.April, 1), date(2026, time.December, 31), date(2026, time.March, 15))
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestForecast_ReflectsTemplateEditsImmediately(t *testing.T) {
	f := newFixture()
	rule := monthlyRule("user-1", date(2026, time.January, 1), nil, 1000)
	assert.NoError(t, f.service.CreateRule(rule, date(2026, time.March, 15)))

	amount := 1250.0
	_, err := f.service.UpdateRuleTemplate("user-1", rule.ID, domain.TemplatePatch{Amount: &amount})
	assert.NoError(t, err)

	projected, err := f.service.Forecast("user-1", date(2026, time.April, 1), date(2026, time.April, 30), date(2026, time.March, 15))
	assert.NoError(t, err)
	assert.Len(t, projected, 1)
	assert.Equal(t, 1250.0, projected[0].Amount)
}

func TestForecast_SkipsInactiveRules(t *testing.T) {
	f := newFixture()
	rule := monthlyRule("user-1", date(2026, time.January, 1), nil, 1000)
	assert.NoError(t, f.service.CreateRule(rule, date(2026, time.March, 15)))
	assert.NoError(t, f.service.SetRuleActive("user-1", rule.ID, false))

	projected, err := f.service.Forecast("user-1", date(2026, time.January, 1), date(2026, time.December, 31), date(2026, time.March, 15))
	assert.NoError(t, err)
	assert.Empty(t, projected)
}

func TestForecast_IntersectsRequestedRange(t *testing.T) {
	f := newFixture()
	rule := monthlyRule("user-1", date(2026, time.January, 1), nil, 1000)
	assert.NoError(t, f.service.CreateRule(rule, date(2026, time.March, 15)))

	projected, err := f.service.Forecast("user-1", date(2026, time.May, 1), date(2026, time.May, 31), date(2026, time.March, 15))
	assert.NoError(t, err)
	assert.Len(t, projected, 1)
	assert.Equal(t, date(2026, time.May, 1), projected[0].Date)
}

func TestForecast_HonorsRuleBounds(t *testing.T) {
	f := newFixture()
	end := date(2026, time.April, 30)
	rule := monthlyRule("user-1", date(2026, time.January, 1), &end, 1000)
	assert.NoError(t, f.service.CreateRule(rule, date(2026, time.March, 15)))

	projected, err := f.service.Forecast("user-1", date(2026, time.January, 1), date(2026, time.December, 31), date(2026, time.March, 15))
	assert.NoError(t, err)
	assert.Len(t, projected, 1)
	assert.Equal(t, date(2026, time.April, 1), projected[0].Date)
}

func TestForecast_OrderedAcrossRules(t *testing.T) {
	f := newFixture()
	first := monthlyRule("user-1", date(2026, time.January, 1), nil, 1000)
	assert.NoError(t, f.service.CreateRule(first, date(2026, time.March, 15)))
	second := monthlyRule("user-1", date(2026, time.January, 15), nil, 200)
	assert.NoError(t, f.service.CreateRule(second, date(2026, time.March, 15)))

	projected, err := f.service.Forecast("user-1", date(2026, time.April, 1), date(2026, time.May, 31), date(2026, time.March, 15))
	assert.NoError(t, err)
	assert.Len(t, projected, 4)
	for i := 1; i < len(projected); i++ {
		assert.False(t, projected[i].Date.Before(projected[i-1].Date))
	}
}
