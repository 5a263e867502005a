// Package apperr defines the structured error carried across the identity,
// storage and profile layers. Callers classify failures by Kind; rendering
// them as user-facing text is left to the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of its message.
type Kind uint8

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindAuth
	KindInvalidInput
	KindInvalidAsset
	KindStorage
	KindUpsert
	KindBusy
)

var kindNames = map[Kind]string{
	KindInternal:        "internal",
	KindUnauthenticated: "unauthenticated",
	KindAuth:            "auth",
	KindInvalidInput:    "invalid_input",
	KindInvalidAsset:    "invalid_asset",
	KindStorage:         "storage",
	KindUpsert:          "upsert",
	KindBusy:            "busy",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error wraps a cause with the operation that produced it and its Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, so errors.Is(err, apperr.Busy) works
// regardless of Op or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// E builds an *Error. A nil cause is allowed.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the innermost non-apperr message, which is what the
// display layer shows to users.
func Message(err error) string {
	for err != nil {
		e, ok := err.(*Error)
		if !ok {
			return err.Error()
		}
		if e.Err == nil {
			return e.Error()
		}
		err = e.Err
	}
	return ""
}

// Kind markers for errors.Is.
var (
	Unauthenticated = &Error{Kind: KindUnauthenticated}
	Auth            = &Error{Kind: KindAuth}
	InvalidInput    = &Error{Kind: KindInvalidInput}
	InvalidAsset    = &Error{Kind: KindInvalidAsset}
	Storage         = &Error{Kind: KindStorage}
	Upsert          = &Error{Kind: KindUpsert}
	Busy            = &Error{Kind: KindBusy}
)
