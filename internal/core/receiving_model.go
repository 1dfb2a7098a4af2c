package core

import (
	"context"
	"fmt"
)

// BagInput is one bag entered at receiving time.
type BagInput struct {
	BagNumber    int
	TabletTypeID int
	LabelCount   int
}

// BoxInput is one small box and its bags.
type BoxInput struct {
	BoxNumber int
	Bags      []BagInput
}

// ReceiveFilter selects receives. Zero values mean "no constraint".
type ReceiveFilter struct {
	POID       *int
	Unassigned bool
	OpenOnly   bool
}

// validateBoxes checks box and bag numbering before anything is written.
func validateBoxes(boxes []BoxInput) error {
	if len(boxes) == 0 {
		return fmt.Errorf("a receive needs at least one box")
	}
	seenBox := make(map[int]bool, len(boxes))
	for _, b := range boxes {
		if b.BoxNumber <= 0 {
			return fmt.Errorf("box number must be positive, got %d", b.BoxNumber)
		}
		if seenBox[b.BoxNumber] {
			return fmt.Errorf("box %d entered twice", b.BoxNumber)
		}
		seenBox[b.BoxNumber] = true

		type bagKey struct{ tabletType, bag int }
		seenBag := make(map[bagKey]bool, len(b.Bags))
		for _, bag := range b.Bags {
			if bag.BagNumber <= 0 {
				return fmt.Errorf("box %d: bag number must be positive, got %d", b.BoxNumber, bag.BagNumber)
			}
			if bag.LabelCount < 0 {
				return fmt.Errorf("box %d bag %d: label count cannot be negative", b.BoxNumber, bag.BagNumber)
			}
			k := bagKey{bag.TabletTypeID, bag.BagNumber}
			if seenBag[k] {
				return fmt.Errorf("box %d: bag %d entered twice for the same tablet type", b.BoxNumber, bag.BagNumber)
			}
			seenBag[k] = true
		}
	}
	return nil
}

// ReceivingService manages the PO → receive → box → bag hierarchy.
type ReceivingService interface {
	// CreateReceive records a delivery with its boxes and bags in one transaction.
	// poID may be nil for a receive awaiting manager triage.
	CreateReceive(ctx context.Context, poID *int, receivedBy string, boxes []BoxInput) (*Receive, error)

	GetReceive(ctx context.Context, receiveID int) (*Receive, error)
	ListReceives(ctx context.Context, filter ReceiveFilter) ([]Receive, error)

	// AssignReceiveToPO moves a receive to a PO, renumbering it and moving every
	// submission attached to its bags (counts retracted and reapplied).
	AssignReceiveToPO(ctx context.Context, receiveID, poID int) error

	// CloseReceive closes the receive and every bag in it.
	CloseReceive(ctx context.Context, receiveID int) error

	CloseBag(ctx context.Context, bagID int) error
	// ReopenBag returns a closed bag to Available. Bags in a closed receive stay closed.
	ReopenBag(ctx context.Context, bagID int) error

	// MarkBagPushed records that the bag was pushed to the external inventory system.
	MarkBagPushed(ctx context.Context, bagID int, externalReceiveID string) error
}
