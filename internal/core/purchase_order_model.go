package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// POLineInput is one line of an externally synced purchase order.
type POLineInput struct {
	InventoryItemID string
	Name            string
	QuantityOrdered int
}

// POSyncInput is a purchase order as supplied by the external inventory feed.
// The header is matched by ExternalID when set, otherwise by PONumber.
type POSyncInput struct {
	PONumber   string
	ExternalID *string
	TabletType *string
	Status     POStatus // empty keeps the current status (Active for new POs)
	Lines      []POLineInput
}

// POFilter selects purchase orders. Zero values mean "no constraint".
type POFilter struct {
	Status   POStatus
	OpenOnly bool
	PONumber string // prefix match
}

// PercentComplete is good count over ordered quantity, as a percentage rounded to
// one decimal place. A PO with nothing ordered reports zero.
func (po PurchaseOrder) PercentComplete() decimal.Decimal {
	if po.OrderedQuantity <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(po.CurrentGoodCount)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(po.OrderedQuantity))).
		Round(1)
}

// Overs reports the production in excess of the ordered quantity on this line.
func (l POLine) Overs() int {
	if l.GoodCount > l.QuantityOrdered {
		return l.GoodCount - l.QuantityOrdered
	}
	return 0
}

// OversPONumber is the PO number of the companion PO that absorbs overs.
func OversPONumber(parent string) string {
	return parent + "-OVERS"
}

// PurchaseOrderService provides purchase order lifecycle operations. Line counts are
// never written here; they belong to the AggregationEngine.
type PurchaseOrderService interface {
	// SyncPO upserts a PO header and its lines from the external feed, then
	// recomputes the header from its lines. Existing counts are untouched.
	SyncPO(ctx context.Context, in POSyncInput) (*PurchaseOrder, error)

	// GetPO returns a purchase order by its internal ID, including all lines.
	GetPO(ctx context.Context, poID int) (*PurchaseOrder, error)

	// GetPOs returns purchase orders (without lines) ordered by PO number.
	GetPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, error)

	// SetStatus moves a PO to a lifecycle status. Complete and Cancelled close the PO;
	// any other status reopens it.
	SetStatus(ctx context.Context, poID int, status POStatus) error

	// CreateOversPO creates (or refreshes) the "<parent>-OVERS" PO with one line per
	// parent line whose good count exceeds its ordered quantity.
	CreateOversPO(ctx context.Context, parentPOID int) (*PurchaseOrder, error)

	// PurgePO deletes a PO after unassigning every submission attached to it.
	// Returns the number of submissions unassigned.
	PurgePO(ctx context.Context, poID int) (int, error)
}
