package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SubmissionFilter selects submissions. Zero values mean "no constraint".
type SubmissionFilter struct {
	IDs              []int
	Kind             SubmissionKind
	NeedsReview      *bool
	Assigned         *bool // true: assigned_po_id set; false: unassigned
	Applied          *bool // true: counts currently applied to a line
	BagID            *int
	BagIDs           []int
	ReceiveID        *int // submissions attached to any bag of this receive
	POID             *int
	EmployeeID       *int
	ReceiptNumber    string
	InventoryItemID  string // resolved flavor inventory item
	FromDate, ToDate string // YYYY-MM-DD, inclusive
	Limit            int
}

const submissionSelect = `
	SELECT ws.id, ws.employee_id, ws.employee_name, ws.product_name,
	       COALESCE(ws.inventory_item_id, tt.inventory_item_id),
	       ws.submission_type, ws.displays_made, ws.packs_remaining, ws.loose_tablets,
	       ws.damaged_tablets, ws.tablets_pressed_into_cards, ws.turns,
	       ws.box_number, ws.bag_number, ws.machine_id, ws.receipt_number,
	       ws.bag_id, ws.assigned_po_id, po.po_number,
	       ws.needs_review, ws.po_assignment_verified,
	       ws.applied_line_id, ws.applied_good, ws.applied_damaged,
	       ws.admin_notes, ws.submission_date::text, ws.created_at,
	       pd.tablet_type_id, COALESCE(pd.packages_per_display, 0), COALESCE(pd.tablets_per_package, 0),
	       COALESCE(pd.tablets_per_bottle, 0),
	       COALESCE(m.cards_per_turn,
	                (SELECT NULLIF(setting_value, '')::int FROM app_settings WHERE setting_key = 'cards_per_turn'),
	                0)
	FROM warehouse_submissions ws
	LEFT JOIN product_details pd ON pd.product_name = ws.product_name
	LEFT JOIN tablet_types tt    ON tt.id = pd.tablet_type_id
	LEFT JOIN machines m         ON m.id = ws.machine_id
	LEFT JOIN purchase_orders po ON po.id = ws.assigned_po_id`

// buildSubmissionQuery renders the filter into the shared select. Every list of
// submissions in the codebase goes through here.
func buildSubmissionQuery(f SubmissionFilter, forUpdate bool) (string, []any) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if len(f.IDs) > 0 {
		add("ws.id = ANY($%d)", f.IDs)
	}
	if f.Kind != "" {
		add("ws.submission_type = $%d", string(f.Kind))
	}
	if f.NeedsReview != nil {
		add("ws.needs_review = $%d", *f.NeedsReview)
	}
	if f.Assigned != nil {
		if *f.Assigned {
			where = append(where, "ws.assigned_po_id IS NOT NULL")
		} else {
			where = append(where, "ws.assigned_po_id IS NULL")
		}
	}
	if f.Applied != nil {
		if *f.Applied {
			where = append(where, "ws.applied_line_id IS NOT NULL")
		} else {
			where = append(where, "ws.applied_line_id IS NULL")
		}
	}
	if f.BagID != nil {
		add("ws.bag_id = $%d", *f.BagID)
	}
	if len(f.BagIDs) > 0 {
		add("ws.bag_id = ANY($%d)", f.BagIDs)
	}
	if f.ReceiveID != nil {
		add(`ws.bag_id IN (SELECT b.id FROM bags b JOIN small_boxes sb ON sb.id = b.small_box_id
		                   WHERE sb.receive_id = $%d)`, *f.ReceiveID)
	}
	if f.POID != nil {
		add("ws.assigned_po_id = $%d", *f.POID)
	}
	if f.EmployeeID != nil {
		add("ws.employee_id = $%d", *f.EmployeeID)
	}
	if f.ReceiptNumber != "" {
		add("ws.receipt_number = $%d", f.ReceiptNumber)
	}
	if f.InventoryItemID != "" {
		add("COALESCE(ws.inventory_item_id, tt.inventory_item_id) = $%d", f.InventoryItemID)
	}
	if f.FromDate != "" {
		add("ws.submission_date >= $%d::date", f.FromDate)
	}
	if f.ToDate != "" {
		add("ws.submission_date <= $%d::date", f.ToDate)
	}

	q := submissionSelect
	if len(where) > 0 {
		q += "\n\tWHERE " + strings.Join(where, "\n\t  AND ")
	}
	q += "\n\tORDER BY ws.created_at, ws.id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf("\n\tLIMIT $%d", len(args))
	}
	if forUpdate {
		q += "\n\tFOR UPDATE OF ws"
	}
	return q, args
}

// loadSubmissions runs the shared query and fills Totals through CalculateTotals.
func loadSubmissions(ctx context.Context, q querier, f SubmissionFilter, forUpdate bool) ([]Submission, error) {
	sql, args := buildSubmissionQuery(f, forUpdate)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var s Submission
		var kind string
		var product ProductConfig
		var cardsPerTurn int
		if err := rows.Scan(
			&s.ID, &s.EmployeeID, &s.EmployeeName, &s.ProductName,
			&s.InventoryItemID,
			&kind, &s.Counts.DisplaysMade, &s.Counts.PacksRemaining, &s.Counts.LooseTablets,
			&s.Counts.DamagedTablets, &s.Counts.TabletsPressedIntoCards, &s.Counts.Turns,
			&s.BoxNumber, &s.BagNumber, &s.MachineID, &s.ReceiptNumber,
			&s.BagID, &s.AssignedPOID, &s.AssignedPONumber,
			&s.NeedsReview, &s.POAssignmentVerified,
			&s.AppliedLineID, &s.AppliedGood, &s.AppliedDamaged,
			&s.AdminNotes, &s.SubmissionDate, &s.CreatedAt,
			&product.TabletTypeID, &product.PackagesPerDisplay, &product.TabletsPerPackage,
			&product.TabletsPerBottle,
			&cardsPerTurn,
		); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		s.Counts.Kind = SubmissionKind(kind)
		product.ProductName = s.ProductName
		product.InventoryItemID = s.InventoryItemID
		s.Totals, s.TotalsErr = CalculateTotals(s.Counts, product, cardsPerTurn)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func loadSubmission(ctx context.Context, q querier, id int, forUpdate bool) (*Submission, error) {
	subs, err := loadSubmissions(ctx, q, SubmissionFilter{IDs: []int{id}}, forUpdate)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, notFound("submission", id)
	}
	return &subs[0], nil
}
