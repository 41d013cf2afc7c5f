package application

import (
	"time"

	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
	recurringErrors "github.com/pjanicki/RecurringLedger/internal/recurring/errors"
	"github.com/pjanicki/RecurringLedger/internal/recurring/schedule"
)

// SyncScope is how far an edit made through one generated entry propagates.
type SyncScope string

const (
	ScopeThisOnly   SyncScope = "this_only"
	ScopeAll        SyncScope = "all"
	ScopeAllForward SyncScope = "all_forward"
)

// EditGeneratedEntry applies a user edit to one generated entry and
// dispatches on scope:
//
//	this_only    pin the changed fields on this entry, rule untouched
//	all          update the template and re-sync every generated entry of
//	             the rule, skipping fields an entry individually pins
//	all_forward  same, restricted to entries dated on or after this entry;
//	             the boundary is always this entry's own date
//
// Pinned fields survive any sync until ClearEntryOverrides removes them.
// It returns how many persisted entries were updated. Future projections are
// never touched here: they are re-derived from the updated template on read.
func (s *RecurringService) EditGeneratedEntry(userID, entryID string, patch domain.EntryPatch, scope SyncScope) (int, error) {
	entry, err := s.entryRepo.FindByID(entryID)
	if err != nil {
		return 0, err
	}
	if entry == nil || entry.UserID != userID {
		return 0, recurringErrors.ErrEntryNotFound
	}
	if !entry.IsGenerated || entry.RuleID == nil {
		return 0, recurringErrors.ErrEntryNotGenerated
	}
	rule, err := s.ruleRepo.FindByID(*entry.RuleID)
	if err != nil {
		return 0, err
	}
	if rule == nil {
		return 0, recurringErrors.ErrRuleNotFound
	}

	switch scope {
	case ScopeThisOnly:
		return s.pinEntry(rule, entry, patch)
	case ScopeAll:
		templatePatch, err := templatePatchFromEntryPatch(patch)
		if err != nil {
			return 0, err
		}
		return s.applyScope(rule, templatePatch, scope, time.Time{})
	case ScopeAllForward:
		templatePatch, err := templatePatchFromEntryPatch(patch)
		if err != nil {
			return 0, err
		}
		// the boundary is derived from the edited entry, never taken from
		// the caller, so "this entry" and "forward" cannot drift apart
		return s.applyScope(rule, templatePatch, scope, schedule.DateOnly(entry.Date))
	default:
		return 0, recurringErrors.ErrUnknownSyncScope
	}
}

// UpdateRuleTemplate is the rule-level entry point; it behaves as scope=all.
func (s *RecurringService) UpdateRuleTemplate(userID, ruleID string, patch domain.TemplatePatch) (int, error) {
	rule, err := s.GetRule(userID, ruleID)
	if err != nil {
		return 0, err
	}
	if patch.IsEmpty() {
		return 0, recurringErrors.NewValidationError("Template change must set at least one field")
	}
	return s.applyScope(rule, patch, ScopeAll, time.Time{})
}

// pinEntry handles this_only: record the fields that now differ from the
// template, mark them on the entry and apply the full patch.
func (s *RecurringService) pinEntry(rule *domain.RecurringRule, entry *domain.LedgerEntry, patch domain.EntryPatch) (updated int, err error) {
	existing, err := s.overrideRepo.FindByEntry(entry.ID)
	if err != nil {
		return 0, err
	}
	changed := DetectOverrides(rule, entry, patch, existing)

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

	if err = s.recordOverrides(rule, entry, patch, changed, existing, tx); err != nil {
		return 0, err
	}
	patch.ApplyToEntry(entry)
	entry.MarkOverridden(changed...)
	if err = s.entryRepo.Update(*entry, tx); err != nil {
		return 0, err
	}
	return 1, nil
}

// applyScope updates the template and pushes the change into the rule's
// already-materialized entries, as one atomic unit. effectiveDate bounds the
// all_forward scope and is ignored for scope=all.
func (s *RecurringService) applyScope(stale *domain.RecurringRule, patch domain.TemplatePatch, scope SyncScope, effectiveDate time.Time) (updated int, err error) {
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

	// the caller's copy was loaded outside this transaction; re-read under a
	// row lock so concurrent edits serialize and every one of them bumps the
	// version exactly once
	rule, err := s.ruleRepo.FindByIDForUpdate(stale.ID, tx)
	if err != nil {
		return 0, err
	}
	if rule == nil {
		return 0, recurringErrors.ErrRuleNotFound
	}

	patch.ApplyToTemplate(&rule.Template)
	rule.Version++
	if err = s.ruleRepo.Update(*rule, tx); err != nil {
		return 0, err
	}

	var entries []domain.LedgerEntry
	if scope == ScopeAllForward {
		entries, err = s.entryRepo.FindGeneratedByRuleFromDate(rule.ID, effectiveDate)
	} else {
		entries, err = s.entryRepo.FindGeneratedByRule(rule.ID)
	}
	if err != nil {
		return 0, err
	}

	for i := range entries {
		entry := entries[i]
		changed := patch.ApplyToEntry(&entry)
		if !changed {
			continue
		}
		if err = s.entryRepo.Update(entry, tx); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// ClearEntryOverrides removes every pinned field from one generated entry
// and snaps those fields back to the rule's current template. The date goes
// back to the occurrence date preserved in its override record. Once cleared,
// template syncs reach the entry again.
func (s *RecurringService) ClearEntryOverrides(userID, entryID string) (err error) {
	entry, err := s.entryRepo.FindByID(entryID)
	if err != nil {
		return err
	}
	if entry == nil || entry.UserID != userID {
		return recurringErrors.ErrEntryNotFound
	}
	if !entry.IsGenerated || entry.RuleID == nil {
		return recurringErrors.ErrEntryNotGenerated
	}
	rule, err := s.ruleRepo.FindByID(*entry.RuleID)
	if err != nil {
		return err
	}
	if rule == nil {
		return recurringErrors.ErrRuleNotFound
	}
	overrides, err := s.overrideRepo.FindByEntry(entryID)
	if err != nil {
		return err
	}
	if len(entry.OverriddenFields) == 0 && len(overrides) == 0 {
		return nil
	}

	tx, err := s.ruleRepo.BeginTransaction()
	if err != nil {
		return err
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

	t := &rule.Template
	for _, f := range entry.OverriddenFields {
		switch f {
		case domain.FieldAmount:
			entry.Amount = t.Amount
		case domain.FieldDate:
			entry.Date = originalDate(entry, overrides)
		case domain.FieldCategory:
			entry.CategoryID = t.CategoryID()
		case domain.FieldSubcategory:
			entry.SubcategoryID = t.SubcategoryID()
		case domain.FieldDescription:
			entry.Description = t.Description
		case domain.FieldMemo:
			entry.Memo = t.Memo
		case domain.FieldTags:
			entry.Tags = append([]string(nil), t.Tags...)
		case domain.FieldLiability:
			entry.LiabilityID = t.LiabilityID()
		}
	}
	entry.OverriddenFields = nil
	if err = s.overrideRepo.DeleteByEntry(entryID, tx); err != nil {
		return err
	}
	return s.entryRepo.Update(*entry, tx)
}

func templatePatchFromEntryPatch(patch domain.EntryPatch) (domain.TemplatePatch, error) {
	if patch.Date != nil {
		// a date belongs to one occurrence; syncing it across the series
		// would collapse every entry onto a single day
		return domain.TemplatePatch{}, recurringErrors.ErrDateNotTemplateScoped
	}
	return domain.TemplatePatch{
		Amount:        patch.Amount,
		Description:   patch.Description,
		Memo:          patch.Memo,
		Tags:          patch.Tags,
		CategoryID:    patch.CategoryID,
		SubcategoryID: patch.SubcategoryID,
		LiabilityID:   patch.LiabilityID,
	}, nil
}
