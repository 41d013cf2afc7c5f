package application

import (
	"testing"
	"time"

	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
	"github.com/stretchr/testify/assert"
)

func TestDetectOverrides_OnlyFieldsDifferingFromTemplate(t *testing.T) {
	rule := monthlyRule("user-1", date(2026, time.January, 1), nil, 1000)
	rule.ID = "rule-1"
	entry := domain.NewEntryFromTemplate(rule, date(2026, time.January, 1))
	entry.ID = "entry-1"

	sameAmount := 1000.0
	newMemo := "wired manually"
	sameTags := []string{"housing"}
	patch := domain.EntryPatch{Amount: &sameAmount, Memo: &newMemo, Tags: sameTags}

	changed := DetectOverrides(rule, &entry, patch, nil)
	assert.Equal(t, []domain.Field{domain.FieldMemo}, changed)
}

func TestDetectOverrides_ComparesAgainstTemplateNotEntry(t *testing.T) {
	rule := monthlyRule("user-1", date(2026, time.January, 1), nil, 1000)
	rule.ID = "rule-1"
	entry := domain.NewEntryFromTemplate(rule, date(2026, time.January, 1))
	entry.ID = "entry-1"
	// the entry drifted, the proposal matches it but not the template
	entry.Amount = 800
	proposed := 800.0

	changed := DetectOverrides(rule, &entry, domain.EntryPatch{Amount: &proposed}, nil)
	assert.Equal(t, []domain.Field{domain.FieldAmount}, changed)
}

func TestDetectOverrides_DateComparedAgainstOriginalOccurrence(t *testing.T) {
	rule := monthlyRule("user-1", date(2026, time.January, 1), nil, 1000)
	rule.ID = "rule-1"
	entry := domain.NewEntryFromTemplate(rule, date(2026, time.March, 1))
	entry.ID = "entry-1"
	entry.Date = date(2026, time.March, 5)
	entry.MarkOverridden(domain.FieldDate)
	existing := []domain.FieldOverride{{
		EntryID:         "entry-1",
		Field:           domain.FieldDate,
		OriginalValue:   domain.EncodeFieldValue(date(2026, time.March, 1)),
		OverriddenValue: domain.EncodeFieldValue(date(2026, time.March, 5)),
	}}

	// moving back to the original occurrence date is not a new override
	backToOriginal := date(2026, time.March, 1)
	changed := DetectOverrides(rule, &entry, domain.EntryPatch{Date: &backToOriginal}, existing)
	assert.Empty(t, changed)

	elsewhere := date(2026, time.March, 10)
	changed = DetectOverrides(rule, &entry, domain.EntryPatch{Date: &elsewhere}, existing)
	assert.Equal(t, []domain.Field{domain.FieldDate}, changed)
}

func TestDetectOverrides_OptionalLinkFields(t *testing.T) {
	rule := monthlyRule("user-1", date(2026, time.January, 1), nil, 1000)
	rule.ID = "rule-1"
	entry := domain.NewEntryFromTemplate(rule, date(2026, time.January, 1))
	entry.ID = "entry-1"

	sameCategory := "category-1"
	changed := DetectOverrides(rule, &entry, domain.EntryPatch{CategoryID: &sameCategory}, nil)
	assert.Empty(t, changed)

	otherCategory := "category-2"
	changed = DetectOverrides(rule, &entry, domain.EntryPatch{CategoryID: &otherCategory}, nil)
	assert.Equal(t, []domain.Field{domain.FieldCategory}, changed)
}

func TestReOverride_KeepsFirstOriginalValue(t *testing.T) {
	f := newFixture()
	threeMonthRule(t, f)

	february := entryOn(t, f.entries, date(2026, time.February, 1))
	first := 500.0
	_, err := f.service.EditGeneratedEntry("user-1", february.ID, domain.EntryPatch{Amount: &first}, ScopeThisOnly)
	assert.NoError(t, err)

	second := 700.0
	_, err = f.service.EditGeneratedEntry("user-1", february.ID, domain.EntryPatch{Amount: &second}, ScopeThisOnly)
	assert.NoError(t, err)

	records, err := f.overrides.FindByEntry(february.ID)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "1000", records[0].OriginalValue)
	assert.Equal(t, "700", records[0].OverriddenValue)
	assert.Equal(t, 700.0, entryOn(t, f.entries, date(2026, time.February, 1)).Amount)
}

func TestOverridesAccumulateAcrossEdits(t *testing.T) {
	f := newFixture()
	threeMonthRule(t, f)

	february := entryOn(t, f.entries, date(2026, time.February, 1))
	amount := 500.0
	_, err := f.service.EditGeneratedEntry("user-1", february.ID, domain.EntryPatch{Amount: &amount}, ScopeThisOnly)
	assert.NoError(t, err)

	memo := "partial payment"
	_, err = f.service.EditGeneratedEntry("user-1", february.ID, domain.EntryPatch{Memo: &memo}, ScopeThisOnly)
	assert.NoError(t, err)

	february = entryOn(t, f.entries, date(2026, time.February, 1))
	assert.True(t, february.HasOverride(domain.FieldAmount))
	assert.True(t, february.HasOverride(domain.FieldMemo))

	records, err := f.overrides.FindByEntry(february.ID)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
}
