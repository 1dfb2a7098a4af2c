package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// HeaderTotals are the PO header fields derived from its lines.
type HeaderTotals struct {
	Ordered   int
	Good      int
	Damaged   int
	Remaining int
}

// HeaderFromLines derives header totals from line sums. Remaining goes negative
// when a PO has overs.
func HeaderFromLines(lines []POLine) HeaderTotals {
	var h HeaderTotals
	for _, l := range lines {
		h.Ordered += l.QuantityOrdered
		h.Good += l.GoodCount
		h.Damaged += l.DamagedCount
	}
	h.Remaining = h.Ordered - h.Good - h.Damaged
	return h
}

// FloorSubtract subtracts amount from current without going below zero.
// drift is the part of amount that could not be subtracted.
func FloorSubtract(current, amount int) (result, drift int) {
	if amount <= current {
		return current - amount, 0
	}
	return 0, amount - current
}

// LineKey identifies a PO line by (PO, flavor).
type LineKey struct {
	POID            int
	InventoryItemID string
}

// LineCounts are the four aggregated counters of a PO line.
type LineCounts struct {
	Good           int
	Damaged        int
	MachineGood    int
	MachineDamaged int
}

func (c *LineCounts) add(kind SubmissionKind, t Totals) {
	if kind == KindMachine {
		c.MachineGood += t.Good
		c.MachineDamaged += t.Damaged
		return
	}
	c.Good += t.Good
	c.Damaged += t.Damaged
}

// SkippedSubmission is a per-row reason reported by bulk operations.
type SkippedSubmission struct {
	SubmissionID int    `json:"submission_id"`
	Reason       string `json:"reason"`
}

// ReplayedSubmission records which line a replayed submission landed on.
type ReplayedSubmission struct {
	SubmissionID int
	LineID       int
	Totals       Totals
}

// ReplayPlan is the full set of line counts a recalculation writes.
type ReplayPlan struct {
	Lines    map[int]LineCounts // keyed by line id
	Replayed []ReplayedSubmission
	Skipped  []SkippedSubmission
}

// PlanReplay groups assigned submissions by (PO, flavor) into line counts.
// Rows that cannot resolve a flavor, a total, or a line are skipped with a reason,
// never guessed. Bag counts are ignored.
func PlanReplay(subs []Submission, lineIndex map[LineKey]int) ReplayPlan {
	plan := ReplayPlan{Lines: make(map[int]LineCounts)}
	for lineID := range uniqueLineIDs(lineIndex) {
		plan.Lines[lineID] = LineCounts{}
	}

	for _, s := range subs {
		if s.AssignedPOID == nil || !affectsProduction(s.Counts.Kind) {
			continue
		}
		if s.InventoryItemID == nil || *s.InventoryItemID == "" {
			plan.Skipped = append(plan.Skipped, SkippedSubmission{s.ID, fmt.Sprintf("product %q has no flavor mapping", s.ProductName)})
			continue
		}
		if s.TotalsErr != nil {
			plan.Skipped = append(plan.Skipped, SkippedSubmission{s.ID, s.TotalsErr.Error()})
			continue
		}
		lineID, ok := lineIndex[LineKey{POID: *s.AssignedPOID, InventoryItemID: *s.InventoryItemID}]
		if !ok {
			plan.Skipped = append(plan.Skipped, SkippedSubmission{s.ID, fmt.Sprintf("PO %d has no line for item %s", *s.AssignedPOID, *s.InventoryItemID)})
			continue
		}
		counts := plan.Lines[lineID]
		counts.add(s.Counts.Kind, s.Totals)
		plan.Lines[lineID] = counts
		plan.Replayed = append(plan.Replayed, ReplayedSubmission{SubmissionID: s.ID, LineID: lineID, Totals: s.Totals})
	}
	return plan
}

func uniqueLineIDs(idx map[LineKey]int) map[int]struct{} {
	out := make(map[int]struct{}, len(idx))
	for _, id := range idx {
		out[id] = struct{}{}
	}
	return out
}

// FillLine is one open PO line considered by the sequential fill policy.
type FillLine struct {
	LineID   int
	POID     int
	PONumber string
	Ordered  int
	Produced int // good (or machine good) count so far
}

// PickFillTarget returns the index of the first line (lines in PO creation
// order) whose produced count is below its ordered quantity; when all are
// full the last (most recent) line takes the overflow. -1 means no lines.
func PickFillTarget(lines []FillLine) int {
	if len(lines) == 0 {
		return -1
	}
	for i, l := range lines {
		if l.Produced < l.Ordered {
			return i
		}
	}
	return len(lines) - 1
}

// RecalcReport summarizes a full rebuild.
type RecalcReport struct {
	LinesRebuilt        int                 `json:"lines_rebuilt"`
	SubmissionsReplayed int                 `json:"submissions_replayed"`
	POsRecomputed       int                 `json:"pos_recomputed"`
	Skipped             []SkippedSubmission `json:"skipped"`
}

// FillAssignment records one sequential-fill decision.
type FillAssignment struct {
	SubmissionID int    `json:"submission_id"`
	POID         int    `json:"po_id"`
	PONumber     string `json:"po_number"`
}

// FillReport summarizes a sequential fill run.
type FillReport struct {
	Assigned []FillAssignment    `json:"assigned"`
	Skipped  []SkippedSubmission `json:"skipped"`
}

// AggregationEngine keeps PO line and header counts consistent with assigned submissions.
type AggregationEngine interface {
	// ApplyTx adds the submission's total to its PO line. A submission whose counts
	// are already applied is retracted first, so applying twice never double counts.
	// Returns the PO whose header must be recomputed (nil when nothing changed).
	ApplyTx(ctx context.Context, tx pgx.Tx, s *Submission) (*int, error)

	// RetractTx removes exactly what was applied, floored at zero.
	RetractTx(ctx context.Context, tx pgx.Tx, s *Submission) (*int, error)

	// RecomputeHeadersTx rebuilds PO headers from their lines.
	RecomputeHeadersTx(ctx context.Context, tx pgx.Tx, poIDs ...*int) error

	// Apply and Retract run ApplyTx / RetractTx plus the header recompute in one transaction.
	Apply(ctx context.Context, submissionID int) error
	Retract(ctx context.Context, submissionID int) error

	// Reassign moves a submission to another PO: retract, re-point, apply, recompute both headers.
	Reassign(ctx context.Context, submissionID, newPOID int) error

	// Recalculate zeros every line and replays every assigned submission. Exclusive
	// with respect to concurrent Apply/Retract.
	Recalculate(ctx context.Context) (*RecalcReport, error)

	// SequentialFill assigns unassigned, non-review submissions of one flavor to open
	// POs, oldest PO first by creation order.
	SequentialFill(ctx context.Context, inventoryItemID string) (*FillReport, error)
}

type aggregationEngine struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

// NewAggregationEngine constructs an AggregationEngine backed by PostgreSQL.
func NewAggregationEngine(pool *pgxpool.Pool, log logrus.FieldLogger) AggregationEngine {
	return &aggregationEngine{pool: pool, log: log}
}

var (
	applyPackagedSQL = `UPDATE po_lines SET good_count = good_count + $2, damaged_count = damaged_count + $3 WHERE id = $1 RETURNING po_id`
	applyMachineSQL  = `UPDATE po_lines SET machine_good_count = machine_good_count + $2, machine_damaged_count = machine_damaged_count + $3 WHERE id = $1 RETURNING po_id`
)

func (e *aggregationEngine) ApplyTx(ctx context.Context, tx pgx.Tx, s *Submission) (*int, error) {
	var retractedPO *int
	if s.AppliedLineID != nil {
		po, err := e.RetractTx(ctx, tx, s)
		if err != nil {
			return nil, err
		}
		retractedPO = po
	}

	if s.AssignedPOID == nil || !affectsProduction(s.Counts.Kind) {
		return retractedPO, nil
	}
	if s.TotalsErr != nil {
		return nil, fmt.Errorf("submission %d: %w", s.ID, s.TotalsErr)
	}
	if s.InventoryItemID == nil || *s.InventoryItemID == "" {
		e.log.WithFields(logrus.Fields{"submission_id": s.ID, "product": s.ProductName}).
			Warn("submission has no flavor mapping; counts not applied")
		return retractedPO, nil
	}

	var lineID int
	err := tx.QueryRow(ctx,
		"SELECT id FROM po_lines WHERE po_id = $1 AND inventory_item_id = $2 FOR UPDATE",
		*s.AssignedPOID, *s.InventoryItemID,
	).Scan(&lineID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			e.log.WithFields(logrus.Fields{
				"submission_id":     s.ID,
				"po_id":             *s.AssignedPOID,
				"inventory_item_id": *s.InventoryItemID,
			}).Warn("PO has no line for flavor; counts not applied")
			return retractedPO, nil
		}
		return nil, fmt.Errorf("find PO line for submission %d: %w", s.ID, err)
	}

	stmt := applyPackagedSQL
	if s.Counts.Kind == KindMachine {
		stmt = applyMachineSQL
	}
	var poID int
	if err := tx.QueryRow(ctx, stmt, lineID, s.Totals.Good, s.Totals.Damaged).Scan(&poID); err != nil {
		return nil, fmt.Errorf("apply submission %d to line %d: %w", s.ID, lineID, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE warehouse_submissions
		SET applied_line_id = $2, applied_good = $3, applied_damaged = $4, updated_at = NOW()
		WHERE id = $1`,
		s.ID, lineID, s.Totals.Good, s.Totals.Damaged,
	); err != nil {
		return nil, fmt.Errorf("record applied counts for submission %d: %w", s.ID, err)
	}

	s.AppliedLineID = &lineID
	s.AppliedGood = s.Totals.Good
	s.AppliedDamaged = s.Totals.Damaged
	return &poID, nil
}

func (e *aggregationEngine) RetractTx(ctx context.Context, tx pgx.Tx, s *Submission) (*int, error) {
	if s.AppliedLineID == nil {
		return nil, nil
	}
	lineID := *s.AppliedLineID

	goodCol, damagedCol := "good_count", "damaged_count"
	if s.Counts.Kind == KindMachine {
		goodCol, damagedCol = "machine_good_count", "machine_damaged_count"
	}

	var poID, good, damaged int
	err := tx.QueryRow(ctx,
		fmt.Sprintf("SELECT po_id, %s, %s FROM po_lines WHERE id = $1 FOR UPDATE", goodCol, damagedCol),
		lineID,
	).Scan(&poID, &good, &damaged)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lock line %d for retraction: %w", lineID, err)
	}

	var changedPO *int
	if err == nil {
		newGood, goodDrift := FloorSubtract(good, s.AppliedGood)
		newDamaged, damagedDrift := FloorSubtract(damaged, s.AppliedDamaged)
		if goodDrift > 0 || damagedDrift > 0 {
			e.log.WithFields(logrus.Fields{
				"submission_id": s.ID,
				"line_id":       lineID,
				"good_drift":    goodDrift,
				"damaged_drift": damagedDrift,
			}).Warn("retraction exceeded line count; floored at zero")
		}
		if _, err := tx.Exec(ctx,
			fmt.Sprintf("UPDATE po_lines SET %s = $2, %s = $3 WHERE id = $1", goodCol, damagedCol),
			lineID, newGood, newDamaged,
		); err != nil {
			return nil, fmt.Errorf("retract submission %d from line %d: %w", s.ID, lineID, err)
		}
		changedPO = &poID
	}

	if _, err := tx.Exec(ctx, `
		UPDATE warehouse_submissions
		SET applied_line_id = NULL, applied_good = 0, applied_damaged = 0, updated_at = NOW()
		WHERE id = $1`,
		s.ID,
	); err != nil {
		return nil, fmt.Errorf("clear applied counts for submission %d: %w", s.ID, err)
	}

	s.AppliedLineID = nil
	s.AppliedGood = 0
	s.AppliedDamaged = 0
	return changedPO, nil
}

func (e *aggregationEngine) RecomputeHeadersTx(ctx context.Context, tx pgx.Tx, poIDs ...*int) error {
	seen := make(map[int]bool)
	var ids []int
	for _, id := range poIDs {
		if id != nil && !seen[*id] {
			seen[*id] = true
			ids = append(ids, *id)
		}
	}
	// Fixed lock order across transactions.
	sort.Ints(ids)

	for _, id := range ids {
		if err := recomputeHeaderTx(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

// recomputeHeaderTx rewrites one PO header from its lines. A PO that no longer
// exists is ignored.
func recomputeHeaderTx(ctx context.Context, tx pgx.Tx, poID int) error {
	var locked int
	if err := tx.QueryRow(ctx,
		"SELECT id FROM purchase_orders WHERE id = $1 FOR UPDATE", poID,
	).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("lock purchase order %d: %w", poID, err)
	}

	lines, err := fetchLines(ctx, tx, poID)
	if err != nil {
		return err
	}
	h := HeaderFromLines(lines)

	if _, err := tx.Exec(ctx, `
		UPDATE purchase_orders
		SET ordered_quantity = $2, current_good_count = $3, current_damaged_count = $4,
		    remaining_quantity = $5, updated_at = NOW()
		WHERE id = $1`,
		poID, h.Ordered, h.Good, h.Damaged, h.Remaining,
	); err != nil {
		return fmt.Errorf("recompute purchase order %d header: %w", poID, err)
	}
	return nil
}

func (e *aggregationEngine) Apply(ctx context.Context, submissionID int) error {
	return e.withSubmission(ctx, submissionID, func(tx pgx.Tx, s *Submission) ([]*int, error) {
		po, err := e.ApplyTx(ctx, tx, s)
		return []*int{po, s.AssignedPOID}, err
	})
}

func (e *aggregationEngine) Retract(ctx context.Context, submissionID int) error {
	return e.withSubmission(ctx, submissionID, func(tx pgx.Tx, s *Submission) ([]*int, error) {
		po, err := e.RetractTx(ctx, tx, s)
		return []*int{po}, err
	})
}

// withSubmission runs fn on a locked submission inside one transaction holding the
// shared aggregation lock, then recomputes the headers fn reports as touched.
func (e *aggregationEngine) withSubmission(ctx context.Context, submissionID int, fn func(pgx.Tx, *Submission) ([]*int, error)) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationSharedTx(ctx, tx); err != nil {
		return err
	}
	s, err := loadSubmission(ctx, tx, submissionID, true)
	if err != nil {
		return err
	}
	touched, err := fn(tx, s)
	if err != nil {
		return err
	}
	if err := e.RecomputeHeadersTx(ctx, tx, touched...); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit submission %d aggregation: %w", submissionID, err)
	}
	return nil
}

func (e *aggregationEngine) Reassign(ctx context.Context, submissionID, newPOID int) error {
	return e.withSubmission(ctx, submissionID, func(tx pgx.Tx, s *Submission) ([]*int, error) {
		return e.reassignTx(ctx, tx, s, newPOID)
	})
}

func (e *aggregationEngine) reassignTx(ctx context.Context, tx pgx.Tx, s *Submission, newPOID int) ([]*int, error) {
	var closed bool
	if err := tx.QueryRow(ctx, "SELECT closed FROM purchase_orders WHERE id = $1", newPOID).Scan(&closed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("purchase order", newPOID)
		}
		return nil, fmt.Errorf("get purchase order %d: %w", newPOID, err)
	}
	if closed {
		return nil, fmt.Errorf("purchase order %d is %w", newPOID, ErrClosed)
	}
	if s.AssignedPOID != nil && *s.AssignedPOID == newPOID {
		return nil, nil
	}

	oldPO, err := e.RetractTx(ctx, tx, s)
	if err != nil {
		return nil, err
	}
	previous := s.AssignedPOID

	// The bag belongs to the old PO's receive, so it cannot follow the submission.
	if _, err := tx.Exec(ctx, `
		UPDATE warehouse_submissions
		SET assigned_po_id = $2, bag_id = NULL, needs_review = false,
		    po_assignment_verified = true, updated_at = NOW()
		WHERE id = $1`,
		s.ID, newPOID,
	); err != nil {
		return nil, fmt.Errorf("reassign submission %d: %w", s.ID, err)
	}
	s.AssignedPOID = &newPOID
	s.BagID = nil
	s.NeedsReview = false
	s.POAssignmentVerified = true

	newPO, err := e.ApplyTx(ctx, tx, s)
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"submission_id": s.ID,
		"from_po_id":    previous,
		"to_po_id":      newPOID,
		"good":          s.Totals.Good,
	}).Info("submission reassigned")
	return []*int{oldPO, previous, newPO, &newPOID}, nil
}

func (e *aggregationEngine) Recalculate(ctx context.Context) (*RecalcReport, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationExclusiveTx(ctx, tx); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE po_lines
		SET good_count = 0, damaged_count = 0, machine_good_count = 0, machine_damaged_count = 0`,
	); err != nil {
		return nil, fmt.Errorf("zero PO lines: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE warehouse_submissions
		SET applied_line_id = NULL, applied_good = 0, applied_damaged = 0
		WHERE applied_line_id IS NOT NULL OR applied_good <> 0 OR applied_damaged <> 0`,
	); err != nil {
		return nil, fmt.Errorf("clear applied submission counts: %w", err)
	}

	assigned := true
	subs, err := loadSubmissions(ctx, tx, SubmissionFilter{Assigned: &assigned}, true)
	if err != nil {
		return nil, err
	}

	lineIndex, err := lineIndexTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	plan := PlanReplay(subs, lineIndex)

	batch := &pgx.Batch{}
	for lineID, c := range plan.Lines {
		batch.Queue(`
			UPDATE po_lines
			SET good_count = $2, damaged_count = $3, machine_good_count = $4, machine_damaged_count = $5
			WHERE id = $1`,
			lineID, c.Good, c.Damaged, c.MachineGood, c.MachineDamaged)
	}
	for _, r := range plan.Replayed {
		batch.Queue(`
			UPDATE warehouse_submissions
			SET applied_line_id = $2, applied_good = $3, applied_damaged = $4
			WHERE id = $1`,
			r.SubmissionID, r.LineID, r.Totals.Good, r.Totals.Damaged)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("write recalculated counts: %w", err)
		}
	}

	poIDs, err := allPOIDsTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	for _, id := range poIDs {
		if err := recomputeHeaderTx(ctx, tx, id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit recalculation: %w", err)
	}

	for _, sk := range plan.Skipped {
		e.log.WithFields(logrus.Fields{"submission_id": sk.SubmissionID, "reason": sk.Reason}).
			Warn("recalculation skipped submission")
	}

	return &RecalcReport{
		LinesRebuilt:        len(plan.Lines),
		SubmissionsReplayed: len(plan.Replayed),
		POsRecomputed:       len(poIDs),
		Skipped:             plan.Skipped,
	}, nil
}

func (e *aggregationEngine) SequentialFill(ctx context.Context, inventoryItemID string) (*FillReport, error) {
	if inventoryItemID == "" {
		return nil, fmt.Errorf("inventory item id is required")
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationSharedTx(ctx, tx); err != nil {
		return nil, err
	}

	assigned, review := false, false
	subs, err := loadSubmissions(ctx, tx, SubmissionFilter{
		Assigned:        &assigned,
		NeedsReview:     &review,
		InventoryItemID: inventoryItemID,
	}, true)
	if err != nil {
		return nil, err
	}

	packagedLines, err := fillLinesTx(ctx, tx, inventoryItemID, "good_count")
	if err != nil {
		return nil, err
	}
	machineLines, err := fillLinesTx(ctx, tx, inventoryItemID, "machine_good_count")
	if err != nil {
		return nil, err
	}

	report := &FillReport{}
	touched := []*int{}
	for i := range subs {
		s := &subs[i]
		if !affectsProduction(s.Counts.Kind) || s.BagID != nil {
			continue
		}
		if s.TotalsErr != nil {
			report.Skipped = append(report.Skipped, SkippedSubmission{s.ID, s.TotalsErr.Error()})
			continue
		}

		lines := packagedLines
		if s.Counts.Kind == KindMachine {
			lines = machineLines
		}
		idx := PickFillTarget(lines)
		if idx < 0 {
			report.Skipped = append(report.Skipped, SkippedSubmission{s.ID, fmt.Sprintf("no open PO has a line for item %s", inventoryItemID)})
			continue
		}
		target := lines[idx]

		if _, err := tx.Exec(ctx,
			"UPDATE warehouse_submissions SET assigned_po_id = $2, updated_at = NOW() WHERE id = $1",
			s.ID, target.POID,
		); err != nil {
			return nil, fmt.Errorf("assign submission %d to PO %s: %w", s.ID, target.PONumber, err)
		}
		poID := target.POID
		s.AssignedPOID = &poID

		if _, err := e.ApplyTx(ctx, tx, s); err != nil {
			return nil, err
		}
		lines[idx].Produced += s.Totals.Good
		touched = append(touched, &poID)
		report.Assigned = append(report.Assigned, FillAssignment{SubmissionID: s.ID, POID: target.POID, PONumber: target.PONumber})
	}

	if err := e.RecomputeHeadersTx(ctx, tx, touched...); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sequential fill: %w", err)
	}
	return report, nil
}

// fillLinesTx lists open PO lines for a flavor, oldest PO first. PO numbers are
// free text, so age comes from creation order rather than the number.
func fillLinesTx(ctx context.Context, tx pgx.Tx, inventoryItemID, producedCol string) ([]FillLine, error) {
	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT pl.id, po.id, po.po_number, pl.quantity_ordered, pl.%s
		FROM po_lines pl
		JOIN purchase_orders po ON po.id = pl.po_id
		WHERE pl.inventory_item_id = $1
		  AND NOT po.closed
		  AND po.internal_status <> 'Cancelled'
		ORDER BY po.created_at ASC, po.id ASC`, producedCol),
		inventoryItemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list open lines for item %s: %w", inventoryItemID, err)
	}
	defer rows.Close()

	var out []FillLine
	for rows.Next() {
		var l FillLine
		if err := rows.Scan(&l.LineID, &l.POID, &l.PONumber, &l.Ordered, &l.Produced); err != nil {
			return nil, fmt.Errorf("scan fill line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func lineIndexTx(ctx context.Context, tx pgx.Tx) (map[LineKey]int, error) {
	rows, err := tx.Query(ctx, "SELECT id, po_id, inventory_item_id FROM po_lines")
	if err != nil {
		return nil, fmt.Errorf("index PO lines: %w", err)
	}
	defer rows.Close()

	idx := make(map[LineKey]int)
	for rows.Next() {
		var id int
		var k LineKey
		if err := rows.Scan(&id, &k.POID, &k.InventoryItemID); err != nil {
			return nil, fmt.Errorf("scan PO line index: %w", err)
		}
		idx[k] = id
	}
	return idx, rows.Err()
}

func allPOIDsTx(ctx context.Context, tx pgx.Tx) ([]int, error) {
	rows, err := tx.Query(ctx, "SELECT id FROM purchase_orders ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()
	return pgx.CollectRows(rows, pgx.RowTo[int])
}
