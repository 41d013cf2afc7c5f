package domain

import (
	"encoding/json"
	"fmt"
	"time"

	recurringErrors "github.com/pjanicki/RecurringLedger/internal/recurring/errors"
)

type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
	FrequencyCustom    Frequency = "custom"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencyAnnually, FrequencyCustom:
		return true
	}
	return false
}

// RecurringRule is the template from which ledger entries are generated.
// EndDate and OccurrenceCount are alternative bounds; when a caller supplies
// both, OccurrenceCount wins and EndDate is ignored during generation.
type RecurringRule struct {
	ID                   string
	UserID               string
	Frequency            Frequency
	Interval             int
	StartDate            time.Time
	EndDate              *time.Time
	OccurrenceCount      *int
	Template             TransactionTemplate
	IsActive             bool
	Version              int
	LastMaterializedDate *time.Time
}

func (r *RecurringRule) Validate() error {
	if !r.Frequency.IsValid() {
		return recurringErrors.NewValidationError(fmt.Sprintf("Unknown frequency %q", r.Frequency))
	}
	if r.Interval < 1 {
		return recurringErrors.NewValidationError("Interval must be a positive integer")
	}
	if r.StartDate.IsZero() {
		return recurringErrors.NewValidationError("Start date is required")
	}
	if r.OccurrenceCount != nil && *r.OccurrenceCount < 1 {
		return recurringErrors.NewValidationError("Occurrence count must be a positive integer")
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return recurringErrors.NewValidationError("End date must not be before start date")
	}
	return r.Template.Validate()
}

type TransactionType string

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

// TransactionTemplate is the prototype every generated entry inherits.
// The Shape carries the fields valid for one transaction type only.
type TransactionTemplate struct {
	Name        string
	Amount      float64
	Description string
	Memo        string
	Tags        []string
	Metadata    map[string]string
	Shape       TransactionShape
}

type TransactionShape interface {
	Type() TransactionType
	// TargetAccountID is the account every generated entry is booked against.
	TargetAccountID() string
	Validate() error
}

type IncomeShape struct {
	AccountID     string
	CategoryID    *string
	SubcategoryID *string
}

func (s IncomeShape) Type() TransactionType { return TypeIncome }
func (s IncomeShape) TargetAccountID() string { return s.AccountID }

func (s IncomeShape) Validate() error {
	if s.AccountID == "" {
		return recurringErrors.NewValidationError("Template requires a target account")
	}
	return nil
}

type ExpenseShape struct {
	AccountID     string
	CategoryID    *string
	SubcategoryID *string
	LiabilityID   *string
}

func (s ExpenseShape) Type() TransactionType { return TypeExpense }
func (s ExpenseShape) TargetAccountID() string { return s.AccountID }

func (s ExpenseShape) Validate() error {
	if s.AccountID == "" {
		return recurringErrors.NewValidationError("Template requires a target account")
	}
	return nil
}

type TransferShape struct {
	FromAccountID string
	ToAccountID   string
}

func (s TransferShape) Type() TransactionType { return TypeTransfer }
func (s TransferShape) TargetAccountID() string { return s.FromAccountID }

func (s TransferShape) Validate() error {
	if s.FromAccountID == "" || s.ToAccountID == "" {
		return recurringErrors.NewValidationError("Transfer template requires both accounts")
	}
	if s.FromAccountID == s.ToAccountID {
		return recurringErrors.NewValidationError("Transfer accounts must differ")
	}
	return nil
}

func (t *TransactionTemplate) Validate() error {
	if t.Shape == nil {
		return recurringErrors.NewValidationError("Template requires a transaction shape")
	}
	if t.Name == "" {
		return recurringErrors.NewValidationError("Template requires a name")
	}
	if len(t.Description) > 200 {
		return recurringErrors.NewValidationError("Description must be of length less than 200")
	}
	return t.Shape.Validate()
}

func (t *TransactionTemplate) CategoryID() *string {
	switch s := t.Shape.(type) {
	case IncomeShape:
		return s.CategoryID
	case ExpenseShape:
		return s.CategoryID
	}
	return nil
}

func (t *TransactionTemplate) SubcategoryID() *string {
	switch s := t.Shape.(type) {
	case IncomeShape:
		return s.SubcategoryID
	case ExpenseShape:
		return s.SubcategoryID
	}
	return nil
}

func (t *TransactionTemplate) LiabilityID() *string {
	if s, ok := t.Shape.(ExpenseShape); ok {
		return s.LiabilityID
	}
	return nil
}

// templateJSON is the flat wire form of a template; Type discriminates the shape.
type templateJSON struct {
	Type             TransactionType   `json:"type"`
	Name             string            `json:"name"`
	Amount           float64           `json:"amount"`
	Description      string            `json:"description,omitempty"`
	Memo             string            `json:"memo,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	AccountID        string            `json:"account_id,omitempty"`
	CounterAccountID string            `json:"counter_account_id,omitempty"`
	CategoryID       *string           `json:"category_id,omitempty"`
	SubcategoryID    *string           `json:"subcategory_id,omitempty"`
	LiabilityID      *string           `json:"liability_id,omitempty"`
}

func (t TransactionTemplate) MarshalJSON() ([]byte, error) {
	if t.Shape == nil {
		return nil, fmt.Errorf("cannot marshal template without a shape")
	}
	out := templateJSON{
		Type:        t.Shape.Type(),
		Name:        t.Name,
		Amount:      t.Amount,
		Description: t.Description,
		Memo:        t.Memo,
		Tags:        t.Tags,
		Metadata:    t.Metadata,
	}
	switch s := t.Shape.(type) {
	case IncomeShape:
		out.AccountID = s.AccountID
		out.CategoryID = s.CategoryID
		out.SubcategoryID = s.SubcategoryID
	case ExpenseShape:
		out.AccountID = s.AccountID
		out.CategoryID = s.CategoryID
		out.SubcategoryID = s.SubcategoryID
		out.LiabilityID = s.LiabilityID
	case TransferShape:
		out.AccountID = s.FromAccountID
		out.CounterAccountID = s.ToAccountID
	default:
		return nil, fmt.Errorf("unknown template shape %T", t.Shape)
	}
	return json.Marshal(out)
}

func (t *TransactionTemplate) UnmarshalJSON(data []byte) error {
	var in templateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.Name = in.Name
	t.Amount = in.Amount
	t.Description = in.Description
	t.Memo = in.Memo
	t.Tags = in.Tags
	t.Metadata = in.Metadata
	switch in.Type {
	case TypeIncome:
		t.Shape = IncomeShape{AccountID: in.AccountID, CategoryID: in.CategoryID, SubcategoryID: in.SubcategoryID}
	case TypeExpense:
		t.Shape = ExpenseShape{AccountID: in.AccountID, CategoryID: in.CategoryID, SubcategoryID: in.SubcategoryID, LiabilityID: in.LiabilityID}
	case TypeTransfer:
		t.Shape = TransferShape{FromAccountID: in.AccountID, ToAccountID: in.CounterAccountID}
	default:
		return fmt.Errorf("unknown template type %q", in.Type)
	}
	return nil
}
