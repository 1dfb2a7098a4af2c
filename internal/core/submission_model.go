package core

import (
	"context"
	"fmt"
)

// SubmissionInput is a production event as entered on the floor.
type SubmissionInput struct {
	ProductName string
	Counts      SubmissionCounts

	// Optional explicit flavor; otherwise resolved from the product configuration.
	TabletTypeID    *int
	InventoryItemID *string

	BoxNumber      *int
	BagNumber      *int
	MachineID      *int
	ReceiptNumber  *string
	SubmissionDate string // YYYY-MM-DD, empty for today
	AdminNotes     *string
}

// SubmissionEdit holds the fields a manager may change. Nil leaves a field as is.
type SubmissionEdit struct {
	ProductName             *string
	DisplaysMade            *int
	PacksRemaining          *int
	LooseTablets            *int
	DamagedTablets          *int
	TabletsPressedIntoCards *int
	Turns                   *int
	BoxNumber               *int
	BagNumber               *int
	MachineID               *int
	ReceiptNumber           *string
	SubmissionDate          *string
	AdminNotes              *string
}

// changesIdentity reports whether the edit changes which bag the submission refers to.
func (e SubmissionEdit) changesIdentity(s *Submission) bool {
	return (e.ProductName != nil && *e.ProductName != s.ProductName) ||
		(e.BoxNumber != nil && !sameInt(e.BoxNumber, s.BoxNumber)) ||
		(e.BagNumber != nil && !sameInt(e.BagNumber, s.BagNumber))
}

func (e SubmissionEdit) applyTo(s *Submission) {
	if e.ProductName != nil {
		s.ProductName = *e.ProductName
	}
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&s.Counts.DisplaysMade, e.DisplaysMade)
	setInt(&s.Counts.PacksRemaining, e.PacksRemaining)
	setInt(&s.Counts.LooseTablets, e.LooseTablets)
	setInt(&s.Counts.DamagedTablets, e.DamagedTablets)
	if e.TabletsPressedIntoCards != nil {
		s.Counts.TabletsPressedIntoCards = e.TabletsPressedIntoCards
	}
	if e.Turns != nil {
		s.Counts.Turns = e.Turns
	}
	if e.BoxNumber != nil {
		s.BoxNumber = e.BoxNumber
	}
	if e.BagNumber != nil {
		s.BagNumber = e.BagNumber
	}
	if e.MachineID != nil {
		s.MachineID = e.MachineID
	}
	if e.ReceiptNumber != nil {
		s.ReceiptNumber = e.ReceiptNumber
	}
	if e.SubmissionDate != nil {
		s.SubmissionDate = *e.SubmissionDate
	}
	if e.AdminNotes != nil {
		s.AdminNotes = e.AdminNotes
	}
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// validateCounts rejects negative raw counts before any lookup.
func validateCounts(c SubmissionCounts) error {
	if !c.Kind.Valid() {
		return fmt.Errorf("unknown submission type %q", c.Kind)
	}
	for name, v := range map[string]int{
		"displays_made":   c.DisplaysMade,
		"packs_remaining": c.PacksRemaining,
		"loose_tablets":   c.LooseTablets,
		"damaged_tablets": c.DamagedTablets,
	} {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	return nil
}

// SubmitResult is the outcome of recording or re-matching a submission. MatchErr is
// a *NoMatchError when the submission was saved without a bag.
type SubmitResult struct {
	Submission *Submission
	Outcome    MatchOutcome
	Candidates []BagCandidate
	Inherited  bool
	MatchErr   error
}

// SubmissionService owns the submission lifecycle. Every path runs match, apply and
// header recompute in one transaction.
type SubmissionService interface {
	// Submit records a submission. Configuration errors and receipt flavor mismatches
	// reject it before anything is written; a missing bag does not.
	Submit(ctx context.Context, actor Actor, in SubmissionInput) (*SubmitResult, error)

	// Edit retracts, updates, re-matches when the bag identity changed and the
	// assignment is not verified, then reapplies.
	Edit(ctx context.Context, submissionID int, edit SubmissionEdit) (*SubmitResult, error)

	// Delete retracts the submission's counts and removes it.
	Delete(ctx context.Context, submissionID int) error

	// AssignBag resolves a submission to a bag chosen by a manager.
	AssignBag(ctx context.Context, submissionID, bagID int) (*Submission, error)

	// VerifyAssignment locks the current PO assignment against automatic re-matching.
	VerifyAssignment(ctx context.Context, submissionID int) error

	// Candidates lists the bags the submission could currently be matched to.
	Candidates(ctx context.Context, submissionID int) ([]BagCandidate, error)

	Get(ctx context.Context, submissionID int) (*Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
}
