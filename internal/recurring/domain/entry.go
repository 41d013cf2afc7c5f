package domain

import (
	"encoding/json"
	"time"
)

// Field names a single overridable attribute of a generated entry.
type Field string

const (
	FieldAmount      Field = "amount"
	FieldDate        Field = "date"
	FieldCategory    Field = "category"
	FieldSubcategory Field = "subcategory"
	FieldDescription Field = "description"
	FieldMemo        Field = "memo"
	FieldTags        Field = "tags"
	FieldLiability   Field = "liability"
)

// OverridableFields is the closed allow-list of fields a user may pin on a
// single entry. Identity, ownership and rule linkage are never on it.
var OverridableFields = []Field{
	FieldAmount, FieldDate, FieldCategory, FieldSubcategory,
	FieldDescription, FieldMemo, FieldTags, FieldLiability,
}

// LedgerEntry is one concrete occurrence of a rule. Historical entries are
// persisted once per (rule, date) pair; future ones are projected on demand
// and never stored.
type LedgerEntry struct {
	ID               string
	UserID           string
	RuleID           *string
	Date             time.Time
	Type             TransactionType
	AccountID        string
	CounterAccountID *string
	Amount           float64
	Name             string
	CategoryID       *string
	SubcategoryID    *string
	LiabilityID      *string
	Description      string
	Memo             string
	Tags             []string
	Metadata         map[string]string
	IsGenerated      bool
	OverriddenFields []Field
}

func (e *LedgerEntry) HasOverride(field Field) bool {
	for _, f := range e.OverriddenFields {
		if f == field {
			return true
		}
	}
	return false
}

func (e *LedgerEntry) MarkOverridden(fields ...Field) {
	for _, f := range fields {
		if !e.HasOverride(f) {
			e.OverriddenFields = append(e.OverriddenFields, f)
		}
	}
}

// NewEntryFromTemplate builds an entry mirroring the rule's current template
// for the given occurrence date. The caller assigns the ID when persisting.
func NewEntryFromTemplate(rule *RecurringRule, date time.Time) LedgerEntry {
	t := rule.Template
	ruleID := rule.ID
	entry := LedgerEntry{
		UserID:      rule.UserID,
		RuleID:      &ruleID,
		Date:        date,
		Type:        t.Shape.Type(),
		AccountID:   t.Shape.TargetAccountID(),
		Amount:      t.Amount,
		Name:        t.Name,
		Description: t.Description,
		Memo:        t.Memo,
		Tags:        append([]string(nil), t.Tags...),
		IsGenerated: true,
	}
	if len(t.Metadata) > 0 {
		entry.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			entry.Metadata[k] = v
		}
	}
	entry.CategoryID = copyOptional(t.CategoryID())
	entry.SubcategoryID = copyOptional(t.SubcategoryID())
	entry.LiabilityID = copyOptional(t.LiabilityID())
	if s, ok := t.Shape.(TransferShape); ok {
		to := s.ToAccountID
		entry.CounterAccountID = &to
	}
	return entry
}

func copyOptional(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// FieldOverride durably records one pinned field of one entry. OriginalValue
// is fixed at the first recording; OverriddenValue follows the latest edit.
type FieldOverride struct {
	EntryID         string
	Field           Field
	OriginalValue   string
	OverriddenValue string
}

// EncodeFieldValue serializes a field value for an override record.
func EncodeFieldValue(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// EntryPatch carries the changes a caller proposes for a single entry.
// Nil means "not provided"; only provided fields are compared and applied.
type EntryPatch struct {
	Amount        *float64
	Date          *time.Time
	CategoryID    *string
	SubcategoryID *string
	Description   *string
	Memo          *string
	Tags          []string
	LiabilityID   *string
}

func (p EntryPatch) ProvidedFields() []Field {
	var fields []Field
	if p.Amount != nil {
		fields = append(fields, FieldAmount)
	}
	if p.Date != nil {
		fields = append(fields, FieldDate)
	}
	if p.CategoryID != nil {
		fields = append(fields, FieldCategory)
	}
	if p.SubcategoryID != nil {
		fields = append(fields, FieldSubcategory)
	}
	if p.Description != nil {
		fields = append(fields, FieldDescription)
	}
	if p.Memo != nil {
		fields = append(fields, FieldMemo)
	}
	if p.Tags != nil {
		fields = append(fields, FieldTags)
	}
	if p.LiabilityID != nil {
		fields = append(fields, FieldLiability)
	}
	return fields
}

// ApplyToEntry writes every provided field onto the entry.
func (p EntryPatch) ApplyToEntry(e *LedgerEntry) {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.CategoryID != nil {
		e.CategoryID = copyOptional(p.CategoryID)
	}
	if p.SubcategoryID != nil {
		e.SubcategoryID = copyOptional(p.SubcategoryID)
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Memo != nil {
		e.Memo = *p.Memo
	}
	if p.Tags != nil {
		e.Tags = append([]string(nil), p.Tags...)
	}
	if p.LiabilityID != nil {
		e.LiabilityID = copyOptional(p.LiabilityID)
	}
}

// TemplatePatch carries a rule-level template change. Date is deliberately
// absent: an occurrence date belongs to one entry, never to the template.
type TemplatePatch struct {
	Name          *string
	Amount        *float64
	Description   *string
	Memo          *string
	Tags          []string
	Metadata      map[string]string
	CategoryID    *string
	SubcategoryID *string
	LiabilityID   *string
}

func (p TemplatePatch) IsEmpty() bool {
	return p.Name == nil && p.Amount == nil && p.Description == nil &&
		p.Memo == nil && p.Tags == nil && p.Metadata == nil &&
		p.CategoryID == nil && p.SubcategoryID == nil && p.LiabilityID == nil
}

// SyncedFields lists the overridable entry fields this patch touches. Name
// and metadata sync too but are not overridable, so they are handled apart.
func (p TemplatePatch) SyncedFields() []Field {
	var fields []Field
	if p.Amount != nil {
		fields = append(fields, FieldAmount)
	}
	if p.CategoryID != nil {
		fields = append(fields, FieldCategory)
	}
	if p.SubcategoryID != nil {
		fields = append(fields, FieldSubcategory)
	}
	if p.Description != nil {
		fields = append(fields, FieldDescription)
	}
	if p.Memo != nil {
		fields = append(fields, FieldMemo)
	}
	if p.Tags != nil {
		fields = append(fields, FieldTags)
	}
	if p.LiabilityID != nil {
		fields = append(fields, FieldLiability)
	}
	return fields
}

// ApplyToTemplate mutates the template in place, rebuilding the shape for
// shape-carried fields. Category, subcategory and liability changes are
// ignored for transfer shapes, which do not carry them.
func (p TemplatePatch) ApplyToTemplate(t *TransactionTemplate) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Memo != nil {
		t.Memo = *p.Memo
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), p.Tags...)
	}
	if p.Metadata != nil {
		t.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			t.Metadata[k] = v
		}
	}
	switch s := t.Shape.(type) {
	case IncomeShape:
		if p.CategoryID != nil {
			s.CategoryID = copyOptional(p.CategoryID)
		}
		if p.SubcategoryID != nil {
			s.SubcategoryID = copyOptional(p.SubcategoryID)
		}
		t.Shape = s
	case ExpenseShape:
		if p.CategoryID != nil {
			s.CategoryID = copyOptional(p.CategoryID)
		}
		if p.SubcategoryID != nil {
			s.SubcategoryID = copyOptional(p.SubcategoryID)
		}
		if p.LiabilityID != nil {
			s.LiabilityID = copyOptional(p.LiabilityID)
		}
		t.Shape = s
	}
}

// ApplyToEntry pushes the patched template fields onto an already generated
// entry, skipping any field the entry still individually overrides.
func (p TemplatePatch) ApplyToEntry(e *LedgerEntry) bool {
	changed := false
	if p.Name != nil && e.Name != *p.Name {
		e.Name = *p.Name
		changed = true
	}
	if p.Metadata != nil {
		e.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			e.Metadata[k] = v
		}
		changed = true
	}
	if p.Amount != nil && !e.HasOverride(FieldAmount) {
		e.Amount = *p.Amount
		changed = true
	}
	if p.CategoryID != nil && !e.HasOverride(FieldCategory) {
		e.CategoryID = copyOptional(p.CategoryID)
		changed = true
	}
	if p.SubcategoryID != nil && !e.HasOverride(FieldSubcategory) {
		e.SubcategoryID = copyOptional(p.SubcategoryID)
		changed = true
	}
	if p.Description != nil && !e.HasOverride(FieldDescription) {
		e.Description = *p.Description
		changed = true
	}
	if p.Memo != nil && !e.HasOverride(FieldMemo) {
		e.Memo = *p.Memo
		changed = true
	}
	if p.Tags != nil && !e.HasOverride(FieldTags) {
		e.Tags = append([]string(nil), p.Tags...)
		changed = true
	}
	if p.LiabilityID != nil && !e.HasOverride(FieldLiability) {
		e.LiabilityID = copyOptional(p.LiabilityID)
		changed = true
	}
	return changed
}
