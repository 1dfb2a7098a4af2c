package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is wrapped by every "xxx %d not found" error.
	ErrNotFound = errors.New("not found")

	// ErrReceiptFlavorMismatch rejects a packaged submission whose receipt number
	// belongs to a machine count for a different tablet type.
	ErrReceiptFlavorMismatch = errors.New("receipt number belongs to a different flavor")

	// ErrClosed is returned when an operation targets a closed receive, bag or PO.
	ErrClosed = errors.New("closed")

	// ErrInvalidState covers lifecycle violations (reviewing an assigned submission, etc).
	ErrInvalidState = errors.New("invalid state")
)

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v %w", what, id, ErrNotFound)
}

// ConfigError reports missing or zero product configuration. The submission is
// rejected before anything is persisted.
type ConfigError struct {
	Product string
	Field   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("product %q is missing configuration: %s must be set and non-zero", e.Product, e.Field)
}

// NoMatchError reports that no eligible bag exists for a submission. The
// submission is persisted unassigned and the message is shown to the user.
type NoMatchError struct {
	Flavor    string
	BoxNumber *int
	BagNumber *int
}

func (e *NoMatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no open bag found for %s", e.Flavor)
	if e.BoxNumber != nil {
		fmt.Fprintf(&b, " box %d", *e.BoxNumber)
	}
	if e.BagNumber != nil {
		fmt.Fprintf(&b, " bag %d", *e.BagNumber)
	} else {
		b.WriteString(" without a bag number")
	}
	b.WriteString("; the receive may be closed or not yet entered. The submission was saved unassigned")
	return b.String()
}
