package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BagCandidate is a bag that matches a submission's flavor and bag number, with
// the state of its owning receive and PO.
type BagCandidate struct {
	BagID         int       `json:"bag_id"`
	BoxNumber     int       `json:"box_number"`
	BagNumber     int       `json:"bag_number"`
	TabletTypeID  int       `json:"tablet_type_id"`
	LabelCount    int       `json:"label_count"`
	Status        BagStatus `json:"status"`
	ReceiveID     int       `json:"receive_id"`
	ReceiveName   string    `json:"receive_name"`
	ReceiveClosed bool      `json:"receive_closed"`
	POID          *int      `json:"po_id,omitempty"`
	PONumber      *string   `json:"po_number,omitempty"`
}

type MatchOutcome string

const (
	OutcomeAssigned    MatchOutcome = "assigned"
	OutcomeNeedsReview MatchOutcome = "needs_review"
	OutcomeNoMatch     MatchOutcome = "no_match"
)

// MatchRequest identifies the bag a submission refers to. Tablet type is resolved
// from TabletTypeID, then InventoryItemID, then the product configuration.
type MatchRequest struct {
	Kind            SubmissionKind
	ProductName     string
	TabletTypeID    *int
	InventoryItemID *string
	BoxNumber       *int
	BagNumber       *int
}

// MatchResult is the decision for one submission. Bag is set only for OutcomeAssigned;
// Err is a *NoMatchError only for OutcomeNoMatch.
type MatchResult struct {
	Outcome         MatchOutcome
	Bag             *BagCandidate
	Candidates      []BagCandidate
	TabletTypeID    int
	TabletTypeName  string
	InventoryItemID *string
	Inherited       bool // resolved through a machine count's receipt number
	Err             error
}

// FilterCandidates drops bags that cannot take the submission. Receives not yet
// assigned to a PO never qualify, and closed receives are out of scope. Closed
// bags of open receives still take packaging counts, since packaging continues
// after the line marks a bag emptied. A packaging count with no open-receive
// candidate falls back to the bags of closed receives.
func FilterCandidates(kind SubmissionKind, in []BagCandidate) []BagCandidate {
	out := make([]BagCandidate, 0, len(in))
	var closedReceives []BagCandidate
	for _, c := range in {
		if c.POID == nil {
			continue
		}
		if c.ReceiveClosed {
			if kind == KindPackaged {
				closedReceives = append(closedReceives, c)
			}
			continue
		}
		if c.Status == BagClosed && kind != KindPackaged {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return closedReceives
	}
	return out
}

// DecideMatch turns the eligible candidates into an outcome: exactly one assigns,
// none is a no-match, several defer to manual review.
func DecideMatch(flavor string, boxNumber, bagNumber *int, eligible []BagCandidate) MatchResult {
	switch len(eligible) {
	case 0:
		return MatchResult{
			Outcome: OutcomeNoMatch,
			Err:     &NoMatchError{Flavor: flavor, BoxNumber: boxNumber, BagNumber: bagNumber},
		}
	case 1:
		bag := eligible[0]
		return MatchResult{Outcome: OutcomeAssigned, Bag: &bag, Candidates: eligible}
	default:
		return MatchResult{Outcome: OutcomeNeedsReview, Candidates: eligible}
	}
}

// BagMatcher resolves submissions to bags inside a caller-provided transaction.
type BagMatcher interface {
	// MatchTx resolves the tablet type and decides assign / review / no-match.
	// A tablet type that cannot be resolved returns a *ConfigError.
	MatchTx(ctx context.Context, tx pgx.Tx, req MatchRequest) (*MatchResult, error)

	// InheritTx looks up a machine submission carrying receiptNumber. found is false
	// when there is no such submission or it has no bag yet. A machine count for a
	// different tablet type returns ErrReceiptFlavorMismatch.
	InheritTx(ctx context.Context, tx pgx.Tx, receiptNumber string, tabletTypeID int) (res *MatchResult, found bool, err error)
}

type bagMatcher struct{}

// NewBagMatcher returns the PostgreSQL-backed BagMatcher.
func NewBagMatcher() BagMatcher {
	return &bagMatcher{}
}

func (m *bagMatcher) MatchTx(ctx context.Context, tx pgx.Tx, req MatchRequest) (*MatchResult, error) {
	tt, err := resolveTabletTypeTx(ctx, tx, req.TabletTypeID, req.InventoryItemID, req.ProductName)
	if err != nil {
		return nil, err
	}

	if req.BagNumber == nil {
		res := DecideMatch(tt.Name, req.BoxNumber, nil, nil)
		res.TabletTypeID, res.TabletTypeName, res.InventoryItemID = tt.ID, tt.Name, tt.InventoryItemID
		return &res, nil
	}

	if err := lockBagNumberTx(ctx, tx, tt.ID, *req.BagNumber); err != nil {
		return nil, err
	}

	candidates, err := queryCandidatesTx(ctx, tx, tt.ID, *req.BagNumber, req.BoxNumber)
	if err != nil {
		return nil, err
	}

	res := DecideMatch(tt.Name, req.BoxNumber, req.BagNumber, FilterCandidates(req.Kind, candidates))
	res.TabletTypeID, res.TabletTypeName, res.InventoryItemID = tt.ID, tt.Name, tt.InventoryItemID
	return &res, nil
}

func (m *bagMatcher) InheritTx(ctx context.Context, tx pgx.Tx, receiptNumber string, tabletTypeID int) (*MatchResult, bool, error) {
	var bagID *int
	var machineTabletType *int
	var machineFlavor *string
	// The machine count's flavor is its bag's tablet type, else the inventory item it
	// was submitted with, else its product configuration.
	err := tx.QueryRow(ctx, `
		SELECT ws.bag_id,
		       COALESCE(b.tablet_type_id, itt.id, ptt.id),
		       COALESCE(btt.tablet_type_name, itt.tablet_type_name, ptt.tablet_type_name)
		FROM warehouse_submissions ws
		LEFT JOIN bags b                ON b.id = ws.bag_id
		LEFT JOIN tablet_types btt      ON btt.id = b.tablet_type_id
		LEFT JOIN tablet_types itt      ON itt.inventory_item_id = ws.inventory_item_id
		LEFT JOIN product_details pd    ON pd.product_name = ws.product_name
		LEFT JOIN tablet_types ptt      ON ptt.id = pd.tablet_type_id
		WHERE ws.submission_type = 'machine' AND ws.receipt_number = $1
		ORDER BY ws.created_at DESC, ws.id DESC
		LIMIT 1`,
		receiptNumber,
	).Scan(&bagID, &machineTabletType, &machineFlavor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("look up receipt %s: %w", receiptNumber, err)
	}

	if machineTabletType == nil || *machineTabletType != tabletTypeID {
		flavor := "an unknown flavor"
		if machineFlavor != nil {
			flavor = *machineFlavor
		}
		return nil, false, fmt.Errorf("receipt %s was recorded for %s: %w", receiptNumber, flavor, ErrReceiptFlavorMismatch)
	}
	if bagID == nil {
		return nil, false, nil
	}

	c, err := candidateByBagIDTx(ctx, tx, *bagID)
	if err != nil {
		return nil, false, err
	}
	if c.POID == nil {
		return nil, false, nil
	}
	return &MatchResult{
		Outcome:    OutcomeAssigned,
		Bag:        c,
		Candidates: []BagCandidate{*c},
		Inherited:  true,
	}, true, nil
}

// resolveTabletTypeTx resolves a tablet type from an explicit id, an inventory item
// id, or the product configuration, in that order.
func resolveTabletTypeTx(ctx context.Context, tx pgx.Tx, tabletTypeID *int, inventoryItemID *string, productName string) (*TabletType, error) {
	tt := &TabletType{}
	var row pgx.Row
	switch {
	case tabletTypeID != nil:
		row = tx.QueryRow(ctx,
			"SELECT id, tablet_type_name, inventory_item_id, category FROM tablet_types WHERE id = $1",
			*tabletTypeID)
	case inventoryItemID != nil && *inventoryItemID != "":
		row = tx.QueryRow(ctx,
			"SELECT id, tablet_type_name, inventory_item_id, category FROM tablet_types WHERE inventory_item_id = $1",
			*inventoryItemID)
	default:
		row = tx.QueryRow(ctx, `
			SELECT tt.id, tt.tablet_type_name, tt.inventory_item_id, tt.category
			FROM product_details pd
			JOIN tablet_types tt ON tt.id = pd.tablet_type_id
			WHERE pd.product_name = $1`,
			productName)
	}

	if err := row.Scan(&tt.ID, &tt.Name, &tt.InventoryItemID, &tt.Category); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ConfigError{Product: productName, Field: "tablet_type"}
		}
		return nil, fmt.Errorf("resolve tablet type for %q: %w", productName, err)
	}
	return tt, nil
}

const candidateSelect = `
	SELECT b.id, sb.box_number, b.bag_number, b.tablet_type_id, b.bag_label_count, b.status,
	       r.id, r.receive_name, r.closed, r.po_id, po.po_number
	FROM bags b
	JOIN small_boxes sb          ON sb.id = b.small_box_id
	JOIN receives r              ON r.id = sb.receive_id
	LEFT JOIN purchase_orders po ON po.id = r.po_id`

func scanCandidate(row pgx.Row, c *BagCandidate) error {
	return row.Scan(
		&c.BagID, &c.BoxNumber, &c.BagNumber, &c.TabletTypeID, &c.LabelCount, &c.Status,
		&c.ReceiveID, &c.ReceiveName, &c.ReceiveClosed, &c.POID, &c.PONumber,
	)
}

// queryCandidatesTx returns every bag for (tablet type, bag number[, box number])
// regardless of status; eligibility is decided by FilterCandidates.
func queryCandidatesTx(ctx context.Context, tx pgx.Tx, tabletTypeID, bagNumber int, boxNumber *int) ([]BagCandidate, error) {
	rows, err := tx.Query(ctx, candidateSelect+`
		WHERE b.tablet_type_id = $1
		  AND b.bag_number = $2
		  AND ($3::int IS NULL OR sb.box_number = $3)
		ORDER BY r.received_at, b.id`,
		tabletTypeID, bagNumber, boxNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("query candidate bags: %w", err)
	}
	defer rows.Close()

	var out []BagCandidate
	for rows.Next() {
		var c BagCandidate
		if err := scanCandidate(rows, &c); err != nil {
			return nil, fmt.Errorf("scan candidate bag: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func candidateByBagIDTx(ctx context.Context, tx pgx.Tx, bagID int) (*BagCandidate, error) {
	c := &BagCandidate{}
	if err := scanCandidate(tx.QueryRow(ctx, candidateSelect+" WHERE b.id = $1", bagID), c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("bag", bagID)
		}
		return nil, fmt.Errorf("get bag %d: %w", bagID, err)
	}
	return c, nil
}
