package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type submissionService struct {
	pool    *pgxpool.Pool
	matcher BagMatcher
	agg     AggregationEngine
	log     logrus.FieldLogger
}

// NewSubmissionService constructs a SubmissionService backed by PostgreSQL.
func NewSubmissionService(pool *pgxpool.Pool, matcher BagMatcher, agg AggregationEngine, log logrus.FieldLogger) SubmissionService {
	return &submissionService{pool: pool, matcher: matcher, agg: agg, log: log}
}

func (s *submissionService) Submit(ctx context.Context, actor Actor, in SubmissionInput) (*SubmitResult, error) {
	if strings.TrimSpace(in.ProductName) == "" {
		return nil, fmt.Errorf("product name is required")
	}
	if err := validateCounts(in.Counts); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationSharedTx(ctx, tx); err != nil {
		return nil, err
	}

	if err := checkTotalsTx(ctx, tx, in.ProductName, in.Counts, in.MachineID); err != nil {
		return nil, err
	}

	res, err := s.matchTx(ctx, tx, MatchRequest{
		Kind:            in.Counts.Kind,
		ProductName:     in.ProductName,
		TabletTypeID:    in.TabletTypeID,
		InventoryItemID: in.InventoryItemID,
		BoxNumber:       in.BoxNumber,
		BagNumber:       in.BagNumber,
	}, in.ReceiptNumber)
	if err != nil {
		return nil, err
	}

	boxNumber, bagNumber := in.BoxNumber, in.BagNumber
	var bagID, poID *int
	if res.Outcome == OutcomeAssigned {
		bagID, poID = &res.Bag.BagID, res.Bag.POID
		if res.Inherited {
			boxNumber, bagNumber = &res.Bag.BoxNumber, &res.Bag.BagNumber
		}
	}

	var date *string
	if in.SubmissionDate != "" {
		date = &in.SubmissionDate
	}
	name := actor.Name
	if name == "" {
		name = string(actor.Role)
	}

	var id int
	if err := tx.QueryRow(ctx, `
		INSERT INTO warehouse_submissions
		       (employee_id, employee_name, product_name, inventory_item_id, submission_type,
		        box_number, bag_number, displays_made, packs_remaining, loose_tablets, damaged_tablets,
		        tablets_pressed_into_cards, turns, machine_id, receipt_number,
		        bag_id, assigned_po_id, needs_review, admin_notes, submission_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
		        COALESCE($20::date, CURRENT_DATE))
		RETURNING id`,
		actor.EmployeeID, name, in.ProductName, res.InventoryItemID, string(in.Counts.Kind),
		boxNumber, bagNumber, in.Counts.DisplaysMade, in.Counts.PacksRemaining, in.Counts.LooseTablets,
		in.Counts.DamagedTablets, in.Counts.TabletsPressedIntoCards, in.Counts.Turns, in.MachineID,
		in.ReceiptNumber, bagID, poID, res.Outcome == OutcomeNeedsReview, in.AdminNotes, date,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}

	sub, err := loadSubmission(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	applied, err := s.agg.ApplyTx(ctx, tx, sub)
	if err != nil {
		return nil, err
	}
	if err := s.agg.RecomputeHeadersTx(ctx, tx, applied); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit submission: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"submission_id": id,
		"type":          in.Counts.Kind,
		"product":       in.ProductName,
		"outcome":       res.Outcome,
		"bag_id":        bagID,
		"po_id":         poID,
		"good":          sub.Totals.Good,
	}).Info("submission recorded")

	return &SubmitResult{
		Submission: sub,
		Outcome:    res.Outcome,
		Candidates: res.Candidates,
		Inherited:  res.Inherited,
		MatchErr:   res.Err,
	}, nil
}

// checkTotalsTx runs the calculator against the current configuration so that a
// submission that cannot produce a total is rejected before it is written.
func checkTotalsTx(ctx context.Context, tx pgx.Tx, productName string, counts SubmissionCounts, machineID *int) error {
	product, err := productConfig(ctx, tx, productName)
	if err != nil {
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) || counts.Kind == KindPackaged {
			return err
		}
		// Bag and machine counts may carry an explicit flavor instead.
		product = &ProductConfig{ProductName: productName}
	}
	cpt, err := cardsPerTurn(ctx, tx, machineID)
	if err != nil {
		return err
	}
	_, err = CalculateTotals(counts, *product, cpt)
	return err
}

// matchTx tries receipt inheritance for packaged counts before regular matching.
func (s *submissionService) matchTx(ctx context.Context, tx pgx.Tx, req MatchRequest, receiptNumber *string) (*MatchResult, error) {
	if req.Kind == KindPackaged && receiptNumber != nil && *receiptNumber != "" {
		tt, err := resolveTabletTypeTx(ctx, tx, req.TabletTypeID, req.InventoryItemID, req.ProductName)
		if err != nil {
			return nil, err
		}
		res, found, err := s.matcher.InheritTx(ctx, tx, *receiptNumber, tt.ID)
		if err != nil {
			return nil, err
		}
		if found {
			res.TabletTypeID, res.TabletTypeName, res.InventoryItemID = tt.ID, tt.Name, tt.InventoryItemID
			return res, nil
		}
	}
	return s.matcher.MatchTx(ctx, tx, req)
}

// outcomeOf describes the stored assignment state of a submission.
func outcomeOf(sub *Submission) MatchOutcome {
	switch {
	case sub.NeedsReview:
		return OutcomeNeedsReview
	case sub.AssignedPOID != nil:
		return OutcomeAssigned
	default:
		return OutcomeNoMatch
	}
}

func (s *submissionService) Edit(ctx context.Context, submissionID int, edit SubmissionEdit) (*SubmitResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationSharedTx(ctx, tx); err != nil {
		return nil, err
	}

	sub, err := loadSubmission(ctx, tx, submissionID, true)
	if err != nil {
		return nil, err
	}
	oldPO := sub.AssignedPOID
	retracted, err := s.agg.RetractTx(ctx, tx, sub)
	if err != nil {
		return nil, err
	}

	rematch := edit.changesIdentity(sub) && !sub.POAssignmentVerified
	productChanged := edit.ProductName != nil && *edit.ProductName != sub.ProductName
	edit.applyTo(sub)
	if err := validateCounts(sub.Counts); err != nil {
		return nil, err
	}
	if err := checkTotalsTx(ctx, tx, sub.ProductName, sub.Counts, sub.MachineID); err != nil {
		return nil, err
	}

	inventoryItemID := sub.InventoryItemID
	if productChanged {
		inventoryItemID = nil
	}

	result := &SubmitResult{}
	if rematch {
		res, err := s.matchTx(ctx, tx, MatchRequest{
			Kind:            sub.Counts.Kind,
			ProductName:     sub.ProductName,
			InventoryItemID: inventoryItemID,
			BoxNumber:       sub.BoxNumber,
			BagNumber:       sub.BagNumber,
		}, sub.ReceiptNumber)
		if err != nil {
			return nil, err
		}
		inventoryItemID = res.InventoryItemID
		sub.BagID, sub.AssignedPOID, sub.NeedsReview = nil, nil, false
		switch res.Outcome {
		case OutcomeAssigned:
			sub.BagID, sub.AssignedPOID = &res.Bag.BagID, res.Bag.POID
			if res.Inherited {
				sub.BoxNumber, sub.BagNumber = &res.Bag.BoxNumber, &res.Bag.BagNumber
			}
		case OutcomeNeedsReview:
			sub.NeedsReview = true
		}
		result.Candidates, result.Inherited, result.MatchErr = res.Candidates, res.Inherited, res.Err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE warehouse_submissions
		SET product_name = $2, inventory_item_id = $3,
		    displays_made = $4, packs_remaining = $5, loose_tablets = $6, damaged_tablets = $7,
		    tablets_pressed_into_cards = $8, turns = $9,
		    box_number = $10, bag_number = $11, machine_id = $12, receipt_number = $13,
		    bag_id = $14, assigned_po_id = $15, needs_review = $16,
		    admin_notes = $17, submission_date = $18::date, updated_at = NOW()
		WHERE id = $1`,
		sub.ID, sub.ProductName, inventoryItemID,
		sub.Counts.DisplaysMade, sub.Counts.PacksRemaining, sub.Counts.LooseTablets, sub.Counts.DamagedTablets,
		sub.Counts.TabletsPressedIntoCards, sub.Counts.Turns,
		sub.BoxNumber, sub.BagNumber, sub.MachineID, sub.ReceiptNumber,
		sub.BagID, sub.AssignedPOID, sub.NeedsReview,
		sub.AdminNotes, sub.SubmissionDate,
	); err != nil {
		return nil, fmt.Errorf("update submission %d: %w", sub.ID, err)
	}

	updated, err := loadSubmission(ctx, tx, submissionID, true)
	if err != nil {
		return nil, err
	}
	applied, err := s.agg.ApplyTx(ctx, tx, updated)
	if err != nil {
		return nil, err
	}
	if err := s.agg.RecomputeHeadersTx(ctx, tx, retracted, oldPO, applied, updated.AssignedPOID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit submission edit: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"submission_id": submissionID,
		"rematched":     rematch,
		"po_id":         updated.AssignedPOID,
	}).Info("submission edited")

	result.Submission = updated
	result.Outcome = outcomeOf(updated)
	return result, nil
}

func (s *submissionService) Delete(ctx context.Context, submissionID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationSharedTx(ctx, tx); err != nil {
		return err
	}

	sub, err := loadSubmission(ctx, tx, submissionID, true)
	if err != nil {
		return err
	}
	retracted, err := s.agg.RetractTx(ctx, tx, sub)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM warehouse_submissions WHERE id = $1", submissionID); err != nil {
		return fmt.Errorf("delete submission %d: %w", submissionID, err)
	}
	if err := s.agg.RecomputeHeadersTx(ctx, tx, retracted, sub.AssignedPOID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit submission delete: %w", err)
	}

	s.log.WithFields(logrus.Fields{"submission_id": submissionID, "po_id": sub.AssignedPOID}).Info("submission deleted")
	return nil
}

func (s *submissionService) AssignBag(ctx context.Context, submissionID, bagID int) (*Submission, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationSharedTx(ctx, tx); err != nil {
		return nil, err
	}

	sub, err := loadSubmission(ctx, tx, submissionID, true)
	if err != nil {
		return nil, err
	}
	if sub.BagID != nil && *sub.BagID == bagID {
		return sub, nil
	}

	bag, err := candidateByBagIDTx(ctx, tx, bagID)
	if err != nil {
		return nil, err
	}
	tt, err := resolveTabletTypeTx(ctx, tx, nil, sub.InventoryItemID, sub.ProductName)
	if err != nil {
		return nil, err
	}
	if bag.TabletTypeID != tt.ID {
		return nil, fmt.Errorf("bag %d does not hold %s: %w", bagID, tt.Name, ErrInvalidState)
	}
	if len(FilterCandidates(sub.Counts.Kind, []BagCandidate{*bag})) == 0 {
		return nil, fmt.Errorf("bag %d cannot take new %s counts: %w", bagID, sub.Counts.Kind, ErrClosed)
	}

	touched, err := attachBagTx(ctx, tx, s.agg, sub, bag, true)
	if err != nil {
		return nil, err
	}
	if err := s.agg.RecomputeHeadersTx(ctx, tx, touched...); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit bag assignment: %w", err)
	}

	s.log.WithFields(logrus.Fields{"submission_id": submissionID, "bag_id": bagID, "po_id": bag.POID}).
		Info("submission assigned to bag")
	return sub, nil
}

// attachBagTx points a submission at a bag and its PO, clears review and moves the
// applied counts. Returns every PO whose header needs recomputing.
func attachBagTx(ctx context.Context, tx pgx.Tx, agg AggregationEngine, sub *Submission, bag *BagCandidate, verified bool) ([]*int, error) {
	previous := sub.AssignedPOID
	retracted, err := agg.RetractTx(ctx, tx, sub)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE warehouse_submissions
		SET bag_id = $2, assigned_po_id = $3, needs_review = false,
		    po_assignment_verified = po_assignment_verified OR $4, updated_at = NOW()
		WHERE id = $1`,
		sub.ID, bag.BagID, bag.POID, verified,
	); err != nil {
		return nil, fmt.Errorf("attach submission %d to bag %d: %w", sub.ID, bag.BagID, err)
	}
	bagID := bag.BagID
	sub.BagID = &bagID
	sub.AssignedPOID = bag.POID
	sub.NeedsReview = false
	sub.POAssignmentVerified = sub.POAssignmentVerified || verified

	applied, err := agg.ApplyTx(ctx, tx, sub)
	if err != nil {
		return nil, err
	}
	return []*int{previous, retracted, applied, bag.POID}, nil
}

func (s *submissionService) VerifyAssignment(ctx context.Context, submissionID int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE warehouse_submissions
		SET po_assignment_verified = true, updated_at = NOW()
		WHERE id = $1 AND assigned_po_id IS NOT NULL`,
		submissionID,
	)
	if err != nil {
		return fmt.Errorf("verify submission %d: %w", submissionID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := loadSubmission(ctx, s.pool, submissionID, false); err != nil {
		return err
	}
	return fmt.Errorf("submission %d has no PO to verify: %w", submissionID, ErrInvalidState)
}

func (s *submissionService) Candidates(ctx context.Context, submissionID int) ([]BagCandidate, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sub, err := loadSubmission(ctx, tx, submissionID, false)
	if err != nil {
		return nil, err
	}
	if sub.BagNumber == nil {
		return nil, nil
	}
	tt, err := resolveTabletTypeTx(ctx, tx, nil, sub.InventoryItemID, sub.ProductName)
	if err != nil {
		return nil, err
	}
	all, err := queryCandidatesTx(ctx, tx, tt.ID, *sub.BagNumber, sub.BoxNumber)
	if err != nil {
		return nil, err
	}
	return FilterCandidates(sub.Counts.Kind, all), nil
}

func (s *submissionService) Get(ctx context.Context, submissionID int) (*Submission, error) {
	return loadSubmission(ctx, s.pool, submissionID, false)
}

func (s *submissionService) List(ctx context.Context, filter SubmissionFilter) ([]Submission, error) {
	return loadSubmissions(ctx, s.pool, filter, false)
}
