// Package errors holds the domain errors returned by the ledger services.
package errors

import stderrors "errors"

// DomainError is a stable, comparable error value carrying a machine code.
type DomainError struct {
	Code      string
	Message   string
	Retryable bool

	// parent makes a narrower error match a broader one, e.g. SAME_CURRENCY
	// is also an INVALID_CURRENCY.
	parent *DomainError
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is e or one of its parents.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	for cur := e; cur != nil; cur = cur.parent {
		if cur.Code == t.Code {
			return true
		}
	}
	return false
}

// Code returns the code of the first DomainError in err's chain, or "" if none.
func Code(err error) string {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable reports whether the whole operation may be retried from scratch.
func IsRetryable(err error) bool {
	var de *DomainError
	return stderrors.As(err, &de) && de.Retryable
}
