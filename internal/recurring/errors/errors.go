package errors

import (
	"errors"
)

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func IsValidationError(err error) bool {
	var validationError *ValidationError
	ok := errors.As(err, &validationError)
	return ok
}

type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string {
	return e.Msg
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{Msg: msg}
}

func IsNotFoundError(err error) bool {
	var notFoundError *NotFoundError
	ok := errors.As(err, &notFoundError)
	return ok
}

var ErrRuleNotFound = NewNotFoundError("Recurring rule not found")
var ErrEntryNotFound = NewNotFoundError("Ledger entry not found")
var ErrInvalidAccount = NewValidationError("Invalid target account")
var ErrInvalidCategory = NewValidationError("Invalid category")
var ErrInvalidSubcategory = NewValidationError("Invalid subcategory")
var ErrEntryNotGenerated = NewValidationError("Entry was not generated from a recurring rule")
var ErrUnknownSyncScope = NewValidationError("Unknown sync scope")
var ErrDateNotTemplateScoped = NewValidationError("Date can only be changed on a single entry")
