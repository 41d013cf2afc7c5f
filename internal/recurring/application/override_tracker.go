package application

import (
	"encoding/json"
	"time"

	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
	"github.com/pjanicki/RecurringLedger/internal/recurring/schedule"
)

// DetectOverrides compares every provided patch field against the rule's
// current template value and returns the fields that differ. The reference
// is always the template as it is now, not the entry's previous value: a
// field drifting away from the template is an override even if the entry
// happened to match the template before the edit.
func DetectOverrides(rule *domain.RecurringRule, entry *domain.LedgerEntry, patch domain.EntryPatch, existing []domain.FieldOverride) []domain.Field {
	var changed []domain.Field
	t := &rule.Template

	if patch.Amount != nil && *patch.Amount != t.Amount {
		changed = append(changed, domain.FieldAmount)
	}
	if patch.Date != nil && !schedule.DateOnly(*patch.Date).Equal(originalDate(entry, existing)) {
		changed = append(changed, domain.FieldDate)
	}
	if patch.CategoryID != nil && !equalOptional(patch.CategoryID, t.CategoryID()) {
		changed = append(changed, domain.FieldCategory)
	}
	if patch.SubcategoryID != nil && !equalOptional(patch.SubcategoryID, t.SubcategoryID()) {
		changed = append(changed, domain.FieldSubcategory)
	}
	if patch.Description != nil && *patch.Description != t.Description {
		changed = append(changed, domain.FieldDescription)
	}
	if patch.Memo != nil && *patch.Memo != t.Memo {
		changed = append(changed, domain.FieldMemo)
	}
	if patch.Tags != nil && !equalTags(patch.Tags, t.Tags) {
		changed = append(changed, domain.FieldTags)
	}
	if patch.LiabilityID != nil && !equalOptional(patch.LiabilityID, t.LiabilityID()) {
		changed = append(changed, domain.FieldLiability)
	}
	return changed
}

// originalDate is the occurrence date the entry was generated with: the
// stored date until a date override exists, then that record's original.
func originalDate(entry *domain.LedgerEntry, existing []domain.FieldOverride) time.Time {
	for _, o := range existing {
		if o.Field == domain.FieldDate {
			var d time.Time
			if err := json.Unmarshal([]byte(o.OriginalValue), &d); err == nil {
				return schedule.DateOnly(d)
			}
		}
	}
	return schedule.DateOnly(entry.Date)
}

// recordOverrides persists one override record per detected field. The
// repository upsert keeps the first-ever original value and replaces only
// the overridden one, so the pre-any-override value survives re-edits.
func (s *RecurringService) recordOverrides(rule *domain.RecurringRule, entry *domain.LedgerEntry, patch domain.EntryPatch, fields []domain.Field, existing []domain.FieldOverride, tx domain.Tx) error {
	for _, field := range fields {
		override := domain.FieldOverride{
			EntryID:         entry.ID,
			Field:           field,
			OriginalValue:   domain.EncodeFieldValue(referenceValue(rule, entry, field, existing)),
			OverriddenValue: domain.EncodeFieldValue(patchValue(patch, field)),
		}
		if err := s.overrideRepo.Record(override, tx); err != nil {
			return err
		}
	}
	return nil
}

func referenceValue(rule *domain.RecurringRule, entry *domain.LedgerEntry, field domain.Field, existing []domain.FieldOverride) interface{} {
	t := &rule.Template
	switch field {
	case domain.FieldAmount:
		return t.Amount
	case domain.FieldDate:
		return originalDate(entry, existing)
	case domain.FieldCategory:
		return t.CategoryID()
	case domain.FieldSubcategory:
		return t.SubcategoryID()
	case domain.FieldDescription:
		return t.Description
	case domain.FieldMemo:
		return t.Memo
	case domain.FieldTags:
		return t.Tags
	case domain.FieldLiability:
		return t.LiabilityID()
	}
	return nil
}

func patchValue(patch domain.EntryPatch, field domain.Field) interface{} {
	switch field {
	case domain.FieldAmount:
		return patch.Amount
	case domain.FieldDate:
		return patch.Date
	case domain.FieldCategory:
		return patch.CategoryID
	case domain.FieldSubcategory:
		return patch.SubcategoryID
	case domain.FieldDescription:
		return patch.Description
	case domain.FieldMemo:
		return patch.Memo
	case domain.FieldTags:
		return patch.Tags
	case domain.FieldLiability:
		return patch.LiabilityID
	}
	return nil
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
