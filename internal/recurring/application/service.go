package application

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
	recurringErrors "github.com/pjanicki/RecurringLedger/internal/recurring/errors"
	"github.com/pjanicki/RecurringLedger/internal/recurring/schedule"
)

// AccountServiceInterface is the narrow view of the accounts subsystem the
// engine needs: an existence check scoped to the owning user.
type AccountServiceInterface interface {
	DoesAccountExist(accountID string, userID string) (bool, error)
}

type CategoryServiceInterface interface {
	DoesCategoryExist(categoryID string, userID string) (bool, error)
	DoesSubcategoryExist(subcategoryID string, userID string) (bool, error)
}

// RecurringService turns recurring rules into concrete ledger entries and
// keeps the two reconciled: eager historical materialization, field-level
// override tracking on single entries, scope-dispatched template sync and
// on-demand future forecasts.
type RecurringService struct {
	ruleRepo        domain.RuleRepository
	entryRepo       domain.EntryRepository
	overrideRepo    domain.OverrideRepository
	accountService  AccountServiceInterface
	categoryService CategoryServiceInterface
}

func NewRecurringService(
	ruleRepo domain.RuleRepository,
	entryRepo domain.EntryRepository,
	overrideRepo domain.OverrideRepository,
	accountService AccountServiceInterface,
	categoryService CategoryServiceInterface,
) *RecurringService {
	return &RecurringService{
		ruleRepo:        ruleRepo,
		entryRepo:       entryRepo,
		overrideRepo:    overrideRepo,
		accountService:  accountService,
		categoryService: categoryService,
	}
}

const DefaultPreviewSize = 10

// CreateRule validates the rule, persists it and eagerly materializes its
// historical entries in the same store transaction, so a failure leaves
// neither a rule without entries nor entries without a rule.
func (s *RecurringService) CreateRule(rule *domain.RecurringRule, now time.Time) (err error) {
	rule.ID = uuid.NewString()
	rule.Version = 1
	rule.IsActive = true
	rule.LastMaterializedDate = nil
	rule.StartDate = schedule.DateOnly(rule.StartDate)
	if rule.EndDate != nil {
		end := schedule.DateOnly(*rule.EndDate)
		rule.EndDate = &end
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.validateTemplateLinks(&rule.Template, rule.UserID); err != nil {
		return err
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

	if err = s.ruleRepo.Save(*rule, tx); err != nil {
		return err
	}
	_, err = s.materializeRule(rule, now, tx)
	return err
}

func (s *RecurringService) validateTemplateLinks(t *domain.TransactionTemplate, userID string) error {
	exists, err := s.accountService.DoesAccountExist(t.Shape.TargetAccountID(), userID)
	if err != nil {
		return err
	}
	if !exists {
		return recurringErrors.ErrInvalidAccount
	}
	if transfer, ok := t.Shape.(domain.TransferShape); ok {
		exists, err = s.accountService.DoesAccountExist(transfer.ToAccountID, userID)
		if err != nil {
			return err
		}
		if !exists {
			return recurringErrors.ErrInvalidAccount
		}
	}
	if categoryID := t.CategoryID(); categoryID != nil {
		exists, err = s.categoryService.DoesCategoryExist(*categoryID, userID)
		if err != nil {
			return err
		}
		if !exists {
			return recurringErrors.ErrInvalidCategory
		}
	}
	if subcategoryID := t.SubcategoryID(); subcategoryID != nil {
		exists, err = s.categoryService.DoesSubcategoryExist(*subcategoryID, userID)
		if err != nil {
			return err
		}
		if !exists {
			return recurringErrors.ErrInvalidSubcategory
		}
	}
	return nil
}

func (s *RecurringService) GetRule(userID, ruleID string) (*domain.RecurringRule, error) {
	rule, err := s.ruleRepo.FindByID(ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil || rule.UserID != userID {
		return nil, recurringErrors.ErrRuleNotFound
	}
	return rule, nil
}

func (s *RecurringService) ListRules(userID string) ([]domain.RecurringRule, error) {
	rules, err := s.ruleRepo.FindByUser(userID)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		return []domain.RecurringRule{}, nil
	}
	return rules, nil
}

// SetRuleActive flips only the flag; a full-row write here could undo a
// concurrent template edit made after the ownership check loaded the rule.
func (s *RecurringService) SetRuleActive(userID, ruleID string, active bool) error {
	rule, err := s.GetRule(userID, ruleID)
	if err != nil {
		return err
	}
	if rule.IsActive == active {
		return nil
	}
	return s.ruleRepo.SetActive(ruleID, active, nil)
}

// DeleteRule removes the rule and detaches its generated entries; the
// entries survive as ordinary standalone ones. Override records go with the
// rule since there is no template left to differ from.
func (s *RecurringService) DeleteRule(userID, ruleID string) (err error) {
	if _, err := s.GetRule(userID, ruleID); err != nil {
		return err
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

	// overrides are resolved through the entries' rule linkage, so they must
	// go before the detach clears it
	if err = s.overrideRepo.DeleteByRule(ruleID, tx); err != nil {
		return err
	}
	if err = s.entryRepo.DetachFromRule(ruleID, tx); err != nil {
		return err
	}
	return s.ruleRepo.Delete(ruleID, tx)
}

// PreviewOccurrences expands an as-yet-uncreated configuration without
// touching storage. A non-positive limit falls back to DefaultPreviewSize.
func (s *RecurringService) PreviewOccurrences(frequency domain.Frequency, interval int, startDate time.Time, endDate *time.Time, occurrenceCount *int, limit int, now time.Time) ([]time.Time, error) {
	if !frequency.IsValid() {
		return nil, recurringErrors.NewValidationError("Unknown frequency")
	}
	if interval < 1 {
		return nil, recurringErrors.NewValidationError("Interval must be a positive integer")
	}
	if startDate.IsZero() {
		return nil, recurringErrors.NewValidationError("Start date is required")
	}
	if limit <= 0 {
		limit = DefaultPreviewSize
	}
	dates := schedule.Generate(frequency, interval, startDate, endDate, occurrenceCount, now)
	if len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

func safeRollback(tx domain.Tx) {
	if err := tx.Rollback(); err != nil {
		log.Printf("Error during transaction rollback: %v", err)
	}
}
