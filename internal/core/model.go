package core

import "time"

// SubmissionKind discriminates the three production submission types.
type SubmissionKind string

const (
	KindPackaged SubmissionKind = "packaged"
	KindBag      SubmissionKind = "bag"
	KindMachine  SubmissionKind = "machine"
)

// Valid reports whether k is one of the known kinds.
func (k SubmissionKind) Valid() bool {
	switch k {
	case KindPackaged, KindBag, KindMachine:
		return true
	}
	return false
}

type BagStatus string

const (
	BagAvailable BagStatus = "Available"
	BagClosed    BagStatus = "Closed"
)

// POStatus is the internal lifecycle status of a purchase order.
type POStatus string

const (
	POStatusDraft      POStatus = "Draft"
	POStatusIssued     POStatus = "Issued"
	POStatusActive     POStatus = "Active"
	POStatusProcessing POStatus = "Processing"
	POStatusShipped    POStatus = "Shipped"
	POStatusReceived   POStatus = "Received"
	POStatusComplete   POStatus = "Complete"
	POStatusCancelled  POStatus = "Cancelled"
)

// Valid reports whether s is a known lifecycle status.
func (s POStatus) Valid() bool {
	switch s {
	case POStatusDraft, POStatusIssued, POStatusActive, POStatusProcessing,
		POStatusShipped, POStatusReceived, POStatusComplete, POStatusCancelled:
		return true
	}
	return false
}

// Closes reports whether moving a PO into s also marks it closed.
func (s POStatus) Closes() bool {
	return s == POStatusComplete || s == POStatusCancelled
}

// TabletType is one flavor tracked as its own inventory line.
type TabletType struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	InventoryItemID *string `json:"inventory_item_id,omitempty"`
	Category        *string `json:"category,omitempty"`
}

// ProductConfig is the packaging configuration for a sellable product.
// A product maps to exactly one tablet type.
type ProductConfig struct {
	ProductName        string  `json:"product_name"`
	TabletTypeID       *int    `json:"tablet_type_id,omitempty"`
	InventoryItemID    *string `json:"inventory_item_id,omitempty"`
	PackagesPerDisplay int     `json:"packages_per_display"`
	TabletsPerPackage  int     `json:"tablets_per_package"`
	TabletsPerBottle   int     `json:"tablets_per_bottle"`
}

// Machine is a card-pressing machine with an optional per-machine cards-per-turn value.
type Machine struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	CardsPerTurn *int   `json:"cards_per_turn,omitempty"`
	IsActive     bool   `json:"is_active"`
}

// PurchaseOrder is a PO header. The count fields are a cache of the line sums.
type PurchaseOrder struct {
	ID                  int       `json:"id"`
	PONumber            string    `json:"po_number"`
	ExternalID          *string   `json:"external_id,omitempty"`
	TabletType          *string   `json:"tablet_type,omitempty"`
	OrderedQuantity     int       `json:"ordered_quantity"`
	CurrentGoodCount    int       `json:"current_good_count"`
	CurrentDamagedCount int       `json:"current_damaged_count"`
	RemainingQuantity   int       `json:"remaining_quantity"`
	Closed              bool      `json:"closed"`
	Status              POStatus  `json:"status"`
	ParentPONumber      *string   `json:"parent_po_number,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	Lines               []POLine  `json:"lines"`
}

// POLine is one flavor on a PO. Counts are only mutated by the aggregation engine.
type POLine struct {
	ID                  int    `json:"id"`
	POID                int    `json:"po_id"`
	InventoryItemID     string `json:"inventory_item_id"`
	Name                string `json:"name"`
	QuantityOrdered     int    `json:"quantity_ordered"`
	GoodCount           int    `json:"good_count"`
	DamagedCount        int    `json:"damaged_count"`
	MachineGoodCount    int    `json:"machine_good_count"`
	MachineDamagedCount int    `json:"machine_damaged_count"`
}

// Receive is one physical delivery event.
type Receive struct {
	ID            int        `json:"id"`
	POID          *int       `json:"po_id,omitempty"`
	PONumber      *string    `json:"po_number,omitempty"`
	ReceiveNumber *int       `json:"receive_number,omitempty"`
	Name          string     `json:"name"`
	Closed        bool       `json:"closed"`
	ReceivedBy    string     `json:"received_by"`
	ReceivedAt    time.Time  `json:"received_at"`
	Boxes         []SmallBox `json:"boxes"`
}

type SmallBox struct {
	ID        int   `json:"id"`
	ReceiveID int   `json:"receive_id"`
	BoxNumber int   `json:"box_number"`
	TotalBags int   `json:"total_bags"`
	Bags      []Bag `json:"bags"`
}

// Bag is the smallest tracked physical unit. LabelCount is ground truth for reconciliation.
type Bag struct {
	ID                int       `json:"id"`
	SmallBoxID        int       `json:"small_box_id"`
	BagNumber         int       `json:"bag_number"`
	TabletTypeID      int       `json:"tablet_type_id"`
	LabelCount        int       `json:"label_count"`
	Status            BagStatus `json:"status"`
	ExternalPushed    bool      `json:"external_pushed"`
	ExternalReceiveID *string   `json:"external_receive_id,omitempty"`
}

// SubmissionCounts holds the raw count fields of a submission.
type SubmissionCounts struct {
	Kind                    SubmissionKind `json:"submission_type"`
	DisplaysMade            int            `json:"displays_made"`
	PacksRemaining          int            `json:"packs_remaining"`
	LooseTablets            int            `json:"loose_tablets"`
	DamagedTablets          int            `json:"damaged_tablets"`
	TabletsPressedIntoCards *int           `json:"tablets_pressed_into_cards,omitempty"`
	Turns                   *int           `json:"turns,omitempty"`
}

// Submission is a persisted production event.
type Submission struct {
	ID                   int              `json:"id"`
	EmployeeID           *int             `json:"employee_id,omitempty"`
	EmployeeName         string           `json:"employee_name"`
	ProductName          string           `json:"product_name"`
	InventoryItemID      *string          `json:"inventory_item_id,omitempty"`
	Counts               SubmissionCounts `json:"counts"`
	BoxNumber            *int             `json:"box_number,omitempty"`
	BagNumber            *int             `json:"bag_number,omitempty"`
	MachineID            *int             `json:"machine_id,omitempty"`
	ReceiptNumber        *string          `json:"receipt_number,omitempty"`
	BagID                *int             `json:"bag_id,omitempty"`
	AssignedPOID         *int             `json:"assigned_po_id,omitempty"`
	AssignedPONumber     *string          `json:"assigned_po_number,omitempty"`
	NeedsReview          bool             `json:"needs_review"`
	POAssignmentVerified bool             `json:"po_assignment_verified"`
	AppliedLineID        *int             `json:"applied_line_id,omitempty"`
	AppliedGood          int              `json:"applied_good"`
	AppliedDamaged       int              `json:"applied_damaged"`
	AdminNotes           *string          `json:"admin_notes,omitempty"`
	SubmissionDate       string           `json:"submission_date"` // YYYY-MM-DD
	CreatedAt            time.Time        `json:"created_at"`

	// Totals is filled by the repository query from CalculateTotals; TotalsErr holds
	// the reason when the product configuration cannot produce a total.
	Totals    Totals `json:"totals"`
	TotalsErr error  `json:"-"`
}
