package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type purchaseOrderService struct {
	pool *pgxpool.Pool
}

// NewPurchaseOrderService constructs a PurchaseOrderService backed by PostgreSQL.
func NewPurchaseOrderService(pool *pgxpool.Pool) PurchaseOrderService {
	return &purchaseOrderService{pool: pool}
}

// SyncPO upserts a purchase order and its lines from the external feed.
func (s *purchaseOrderService) SyncPO(ctx context.Context, in POSyncInput) (*PurchaseOrder, error) {
	if strings.TrimSpace(in.PONumber) == "" {
		return nil, fmt.Errorf("PO number is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, fmt.Errorf("unknown PO status %q", in.Status)
	}
	seen := make(map[string]bool, len(in.Lines))
	for i, l := range in.Lines {
		if l.InventoryItemID == "" {
			return nil, fmt.Errorf("line %d: inventory item id is required", i+1)
		}
		if l.QuantityOrdered < 0 {
			return nil, fmt.Errorf("line %d: ordered quantity cannot be negative", i+1)
		}
		if seen[l.InventoryItemID] {
			return nil, fmt.Errorf("line %d: item %s appears more than once", i+1, l.InventoryItemID)
		}
		seen[l.InventoryItemID] = true
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationSharedTx(ctx, tx); err != nil {
		return nil, err
	}

	// Resolve existing header: external id first, then PO number.
	var poID int
	var found bool
	if in.ExternalID != nil && *in.ExternalID != "" {
		err = tx.QueryRow(ctx,
			"SELECT id FROM purchase_orders WHERE zoho_po_id = $1 FOR UPDATE", *in.ExternalID,
		).Scan(&poID)
		found = err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("find PO by external id %s: %w", *in.ExternalID, err)
		}
	}
	if !found {
		err = tx.QueryRow(ctx,
			"SELECT id FROM purchase_orders WHERE po_number = $1 FOR UPDATE", in.PONumber,
		).Scan(&poID)
		found = err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("find PO %s: %w", in.PONumber, err)
		}
	}

	if found {
		if _, err := tx.Exec(ctx, `
			UPDATE purchase_orders
			SET po_number = $2,
			    zoho_po_id = COALESCE($3, zoho_po_id),
			    tablet_type = COALESCE($4, tablet_type),
			    internal_status = COALESCE(NULLIF($5, ''), internal_status),
			    closed = CASE WHEN NULLIF($5, '') IS NULL THEN closed
			                  ELSE $5 IN ('Complete', 'Cancelled') END,
			    updated_at = NOW()
			WHERE id = $1`,
			poID, in.PONumber, in.ExternalID, in.TabletType, string(in.Status),
		); err != nil {
			return nil, fmt.Errorf("update purchase order %s: %w", in.PONumber, err)
		}
	} else {
		status := in.Status
		if status == "" {
			status = POStatusActive
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO purchase_orders (po_number, zoho_po_id, tablet_type, internal_status, closed)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			in.PONumber, in.ExternalID, in.TabletType, string(status), status.Closes(),
		).Scan(&poID); err != nil {
			return nil, fmt.Errorf("insert purchase order %s: %w", in.PONumber, err)
		}
	}

	for _, l := range in.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO po_lines (po_id, inventory_item_id, line_item_name, quantity_ordered)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (po_id, inventory_item_id)
			DO UPDATE SET line_item_name = EXCLUDED.line_item_name,
			              quantity_ordered = EXCLUDED.quantity_ordered`,
			poID, l.InventoryItemID, l.Name, l.QuantityOrdered,
		); err != nil {
			return nil, fmt.Errorf("upsert line %s on PO %s: %w", l.InventoryItemID, in.PONumber, err)
		}
	}

	if err := recomputeHeaderTx(ctx, tx, poID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit PO sync: %w", err)
	}
	return s.GetPO(ctx, poID)
}

const poSelect = `
	SELECT id, po_number, zoho_po_id, tablet_type, ordered_quantity, current_good_count,
	       current_damaged_count, remaining_quantity, closed, internal_status,
	       parent_po_number, created_at, updated_at
	FROM purchase_orders`

func scanPO(row pgx.Row, po *PurchaseOrder) error {
	return row.Scan(
		&po.ID, &po.PONumber, &po.ExternalID, &po.TabletType, &po.OrderedQuantity,
		&po.CurrentGoodCount, &po.CurrentDamagedCount, &po.RemainingQuantity, &po.Closed,
		&po.Status, &po.ParentPONumber, &po.CreatedAt, &po.UpdatedAt,
	)
}

// GetPO returns a purchase order by its internal ID, including all lines.
func (s *purchaseOrderService) GetPO(ctx context.Context, poID int) (*PurchaseOrder, error) {
	return getPO(ctx, s.pool, poID)
}

func getPO(ctx context.Context, q querier, poID int) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	if err := scanPO(q.QueryRow(ctx, poSelect+" WHERE id = $1", poID), po); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("purchase order", poID)
		}
		return nil, fmt.Errorf("get purchase order %d: %w", poID, err)
	}

	lines, err := fetchLines(ctx, q, poID)
	if err != nil {
		return nil, err
	}
	po.Lines = lines
	return po, nil
}

// GetPOs returns purchase orders, optionally filtered.
func (s *purchaseOrderService) GetPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, error) {
	query := poSelect + " WHERE true"
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND internal_status = $%d", len(args))
	}
	if filter.OpenOnly {
		query += " AND NOT closed"
	}
	if filter.PONumber != "" {
		args = append(args, filter.PONumber+"%")
		query += fmt.Sprintf(" AND po_number LIKE $%d", len(args))
	}
	query += " ORDER BY po_number"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := scanPO(rows, &po); err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// SetStatus changes the internal lifecycle status of a PO.
func (s *purchaseOrderService) SetStatus(ctx context.Context, poID int, status POStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown PO status %q", status)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE purchase_orders
		SET internal_status = $2, closed = $3, updated_at = NOW()
		WHERE id = $1`,
		poID, string(status), status.Closes(),
	)
	if err != nil {
		return fmt.Errorf("set purchase order %d status: %w", poID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("purchase order", poID)
	}
	return nil
}

// CreateOversPO creates the companion overs PO for a parent PO.
func (s *purchaseOrderService) CreateOversPO(ctx context.Context, parentPOID int) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationSharedTx(ctx, tx); err != nil {
		return nil, err
	}

	parent, err := getPO(ctx, tx, parentPOID)
	if err != nil {
		return nil, err
	}
	if parent.ParentPONumber != nil {
		return nil, fmt.Errorf("purchase order %s is already an overs PO: %w", parent.PONumber, ErrInvalidState)
	}

	var overs []POLine
	for _, l := range parent.Lines {
		if l.Overs() > 0 {
			overs = append(overs, l)
		}
	}
	if len(overs) == 0 {
		return nil, fmt.Errorf("purchase order %s has no overs: %w", parent.PONumber, ErrInvalidState)
	}

	var oversID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (po_number, tablet_type, internal_status, parent_po_number)
		VALUES ($1, $2, 'Active', $3)
		ON CONFLICT (po_number) DO UPDATE SET updated_at = NOW()
		RETURNING id`,
		OversPONumber(parent.PONumber), parent.TabletType, parent.PONumber,
	).Scan(&oversID); err != nil {
		return nil, fmt.Errorf("create overs PO for %s: %w", parent.PONumber, err)
	}

	for _, l := range overs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO po_lines (po_id, inventory_item_id, line_item_name, quantity_ordered)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (po_id, inventory_item_id) DO UPDATE SET quantity_ordered = EXCLUDED.quantity_ordered`,
			oversID, l.InventoryItemID, l.Name, l.Overs(),
		); err != nil {
			return nil, fmt.Errorf("create overs line %s: %w", l.InventoryItemID, err)
		}
	}

	if err := recomputeHeaderTx(ctx, tx, oversID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit overs PO: %w", err)
	}
	return s.GetPO(ctx, oversID)
}

// PurgePO unassigns a PO's submissions and deletes it. Its receives become
// unassigned (ON DELETE SET NULL) and its lines go with it.
func (s *purchaseOrderService) PurgePO(ctx context.Context, poID int) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationSharedTx(ctx, tx); err != nil {
		return 0, err
	}

	var locked int
	if err := tx.QueryRow(ctx, "SELECT id FROM purchase_orders WHERE id = $1 FOR UPDATE", poID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, notFound("purchase order", poID)
		}
		return 0, fmt.Errorf("lock purchase order %d: %w", poID, err)
	}

	// Bags stay with their receive, so the bag link is cleared along with the PO.
	tag, err := tx.Exec(ctx, `
		UPDATE warehouse_submissions
		SET assigned_po_id = NULL, bag_id = NULL, needs_review = false, po_assignment_verified = false,
		    applied_line_id = NULL, applied_good = 0, applied_damaged = 0, updated_at = NOW()
		WHERE assigned_po_id = $1`,
		poID,
	)
	if err != nil {
		return 0, fmt.Errorf("unassign submissions from purchase order %d: %w", poID, err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM purchase_orders WHERE id = $1", poID); err != nil {
		return 0, fmt.Errorf("delete purchase order %d: %w", poID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit PO purge: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// fetchLines returns all lines for a purchase order.
func fetchLines(ctx context.Context, q querier, poID int) ([]POLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, po_id, inventory_item_id, line_item_name, quantity_ordered,
		       good_count, damaged_count, machine_good_count, machine_damaged_count
		FROM po_lines
		WHERE po_id = $1
		ORDER BY id`,
		poID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch PO lines for order %d: %w", poID, err)
	}
	defer rows.Close()

	var lines []POLine
	for rows.Next() {
		var l POLine
		if err := rows.Scan(
			&l.ID, &l.POID, &l.InventoryItemID, &l.Name, &l.QuantityOrdered,
			&l.GoodCount, &l.DamagedCount, &l.MachineGoodCount, &l.MachineDamagedCount,
		); err != nil {
			return nil, fmt.Errorf("scan PO line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
