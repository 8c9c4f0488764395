package ido

import (
	"errors"
	"fmt"
)

// Error is a rule violation detected by the allocation core.
//
// Every Error is raised before any state is written, so a caller that gets
// one back can assume the project, roster, accounts and ledger are exactly
// as they were before the operation started.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ProjectID identifies the affected project (zero when unknown).
	ProjectID ProjectID

	// Account identifies the affected participant, if any.
	Account string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes allocation errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a missing project, account or ticket.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidPhaseTransition indicates a transition outside the FSM.
	ErrCodeInvalidPhaseTransition ErrorCode = "INVALID_PHASE_TRANSITION"

	// ErrCodeNotInPeriod indicates the wrong status or time window.
	ErrCodeNotInPeriod ErrorCode = "NOT_IN_PERIOD"

	// ErrCodeNotWhitelisted indicates the caller is not on the roster.
	ErrCodeNotWhitelisted ErrorCode = "NOT_WHITELISTED"

	// ErrCodeAlreadyRegistered indicates the caller is already on the roster.
	ErrCodeAlreadyRegistered ErrorCode = "ALREADY_REGISTERED"

	// ErrCodeContributionOutOfBounds indicates a shared-pool min/max violation.
	ErrCodeContributionOutOfBounds ErrorCode = "CONTRIBUTION_OUT_OF_BOUNDS"

	// ErrCodeEligibilityExceeded indicates more lottery tickets than allowed.
	ErrCodeEligibilityExceeded ErrorCode = "ELIGIBILITY_EXCEEDED"

	// ErrCodeBelowMinimumTicketPrice indicates a lottery deposit worth zero tickets.
	ErrCodeBelowMinimumTicketPrice ErrorCode = "BELOW_MINIMUM_TICKET_PRICE"

	// ErrCodeExternalCallFailed indicates the external service reported failure.
	ErrCodeExternalCallFailed ErrorCode = "EXTERNAL_CALL_FAILED"

	// ErrCodeUnexpectedResultCount indicates a broken resolver contract.
	// It is never a user error.
	ErrCodeUnexpectedResultCount ErrorCode = "UNEXPECTED_RESULT_COUNT"

	// ErrCodeInsufficientBalance indicates a balance-gated check came back short.
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"

	// ErrCodeClaimExceedsUnlocked indicates a claim above the unlocked amount.
	ErrCodeClaimExceedsUnlocked ErrorCode = "CLAIM_EXCEEDS_UNLOCKED"

	// ErrCodeInvalidArgument indicates malformed input.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProjectID != 0 && e.Account != "" {
		return fmt.Sprintf("%s: %s (project=%d, account=%s)", e.Code, e.Message, e.ProjectID, e.Account)
	}
	if e.ProjectID != 0 {
		return fmt.Sprintf("%s: %s (project=%d)", e.Code, e.Message, e.ProjectID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// For returns a copy of e scoped to a project and account.
// Fields already set on e are kept.
func (e *Error) For(id ProjectID, account string) *Error {
	c := *e
	if c.ProjectID == 0 {
		c.ProjectID = id
	}
	if c.Account == "" {
		c.Account = account
	}
	return &c
}

// Scope attaches project and account context to err when it is an *Error.
// Other errors are returned unchanged.
func Scope(err error, id ProjectID, account string) error {
	var e *Error
	if errors.As(err, &e) {
		return e.For(id, account)
	}
	return err
}

// CodeOf returns the ErrorCode carried by err, or "" when err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound returns true if err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

// IsFatal returns true for errors that signal a broken internal contract
// rather than a rejected request.
func IsFatal(err error) bool {
	return HasCode(err, ErrCodeUnexpectedResultCount)
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewNotFound creates a NOT_FOUND error for the named entity.
func NewNotFound(entity, key string) *Error {
	e := newError(ErrCodeNotFound, "%s %s not found", entity, key)
	e.Details = map[string]string{"entity": entity, "key": key}
	return e
}

// NewInvalidArgument creates an INVALID_ARGUMENT error for a named field.
func NewInvalidArgument(field, message string) *Error {
	e := newError(ErrCodeInvalidArgument, "%s", message)
	e.Details = map[string]string{"field": field}
	return e
}

// NewInvalidTransition creates an INVALID_PHASE_TRANSITION error.
func NewInvalidTransition(from, to Status) *Error {
	e := newError(ErrCodeInvalidPhaseTransition, "cannot move from %s to %s", from, to)
	e.Details = map[string]string{"from": from.String(), "to": to.String()}
	return e
}

// NewNotInPeriod creates a NOT_IN_PERIOD error.
func NewNotInPeriod(message string) *Error {
	return newError(ErrCodeNotInPeriod, "%s", message)
}

// NewNotWhitelisted creates a NOT_WHITELISTED error.
func NewNotWhitelisted() *Error {
	return newError(ErrCodeNotWhitelisted, "account is not on the project roster")
}

// NewAlreadyRegistered creates an ALREADY_REGISTERED error.
func NewAlreadyRegistered() *Error {
	return newError(ErrCodeAlreadyRegistered, "account is already on the project roster")
}

// NewExternalCallFailed creates an EXTERNAL_CALL_FAILED error.
func NewExternalCallFailed(message string) *Error {
	return newError(ErrCodeExternalCallFailed, "%s", message)
}

// NewUnexpectedResultCount creates the fatal UNEXPECTED_RESULT_COUNT error.
func NewUnexpectedResultCount(got int) *Error {
	e := newError(ErrCodeUnexpectedResultCount, "resolver expected exactly one result, got %d", got)
	e.Details = map[string]string{"results": fmt.Sprintf("%d", got)}
	return e
}

// NewInsufficientBalance creates an INSUFFICIENT_BALANCE error.
func NewInsufficientBalance(have, need Amount) *Error {
	e := newError(ErrCodeInsufficientBalance, "point %s is below the required %s", have, need)
	e.Details = map[string]string{"have": have.String(), "need": need.String()}
	return e
}
