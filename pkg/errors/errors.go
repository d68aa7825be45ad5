// Package errors is the typed error used across services and handlers. A
// Code decides the HTTP status and how much of the error reaches clients.
package errors

import (
	stdErrors "errors"
	"fmt"
)

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap keeps err reachable through errors.Is and errors.As.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Code reports CodeInternal for a nil receiver.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// StockShortage is the detail of an INSUFFICIENT_STOCK rejection.
type StockShortage struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func InsufficientStock(shortage StockShortage) *Error {
	return New(CodeInsufficient, "insufficient stock for product").WithDetails(shortage)
}

type Transition struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// InvalidTransition rejects a fulfillment status change the state machine
// does not allow.
func InvalidTransition(from, to string) *Error {
	return New(CodeStateConflict, fmt.Sprintf("cannot move from %s to %s", from, to)).
		WithDetails(Transition{From: from, To: to})
}
