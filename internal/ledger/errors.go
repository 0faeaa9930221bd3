package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by ledger operations. Callers match them with errors.Is.
var (
	ErrNotFound           = errors.New("ledger: not found")
	ErrUnauthorized       = errors.New("ledger: unauthorized")
	ErrInvalidAmount      = errors.New("ledger: invalid amount")
	ErrInvalidSplitAmount = errors.New("ledger: invalid split amounts")
	ErrInvalidInput       = errors.New("ledger: invalid input")
	ErrConflict           = errors.New("ledger: already exists")
	ErrStoreUnavailable   = errors.New("ledger: store unavailable")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrNotFound, "NotFound"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInvalidSplitAmount, "InvalidSplitAmount"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrConflict, "Conflict"},
	{ErrStoreUnavailable, "StoreUnavailable"},
}

// Kind returns the stable name of the ledger error wrapped by err,
// or "" when err is nil or not a ledger error.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// IsRetryable reports whether the operation may succeed when repeated unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// storeErr classifies an error coming out of a Store. Ledger errors pass through,
// anything else means the store could not serve the request.
func storeErr(err error) error {
	if err == nil || Kind(err) != "" {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

func unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnauthorized}, args...)...)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}

func invalidSplit(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidSplitAmount}, args...)...)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}
