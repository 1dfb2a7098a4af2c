package app

import "tablet-tracker/internal/core"

// SubmitRequest is the input for recording a production submission.
type SubmitRequest struct {
	ProductName             string  `json:"product_name" validate:"required,max=200"`
	SubmissionType          string  `json:"submission_type" validate:"required,oneof=packaged bag machine"`
	DisplaysMade            int     `json:"displays_made" validate:"gte=0"`
	PacksRemaining          int     `json:"packs_remaining" validate:"gte=0"`
	LooseTablets            int     `json:"loose_tablets" validate:"gte=0"`
	DamagedTablets          int     `json:"damaged_tablets" validate:"gte=0"`
	TabletsPressedIntoCards *int    `json:"tablets_pressed_into_cards" validate:"omitempty,gte=0"`
	Turns                   *int    `json:"turns" validate:"omitempty,gte=0"`
	TabletTypeID            *int    `json:"tablet_type_id" validate:"omitempty,gt=0"`
	InventoryItemID         *string `json:"inventory_item_id" validate:"omitempty,max=100"`
	BoxNumber               *int    `json:"box_number" validate:"omitempty,gt=0"`
	BagNumber               *int    `json:"bag_number" validate:"omitempty,gt=0"`
	MachineID               *int    `json:"machine_id" validate:"omitempty,gt=0"`
	ReceiptNumber           *string `json:"receipt_number" validate:"omitempty,max=64"`
	SubmissionDate          string  `json:"submission_date" validate:"omitempty,datetime=2006-01-02"`
	AdminNotes              *string `json:"admin_notes" validate:"omitempty,max=2000"`
}

func (r SubmitRequest) toInput() core.SubmissionInput {
	return core.SubmissionInput{
		ProductName: r.ProductName,
		Counts: core.SubmissionCounts{
			Kind:                    core.SubmissionKind(r.SubmissionType),
			DisplaysMade:            r.DisplaysMade,
			PacksRemaining:          r.PacksRemaining,
			LooseTablets:            r.LooseTablets,
			DamagedTablets:          r.DamagedTablets,
			TabletsPressedIntoCards: r.TabletsPressedIntoCards,
			Turns:                   r.Turns,
		},
		TabletTypeID:    r.TabletTypeID,
		InventoryItemID: r.InventoryItemID,
		BoxNumber:       r.BoxNumber,
		BagNumber:       r.BagNumber,
		MachineID:       r.MachineID,
		ReceiptNumber:   r.ReceiptNumber,
		SubmissionDate:  r.SubmissionDate,
		AdminNotes:      r.AdminNotes,
	}
}

// EditSubmissionRequest changes a submission. Absent fields are left as they are.
type EditSubmissionRequest struct {
	ProductName             *string `json:"product_name" validate:"omitempty,min=1,max=200"`
	DisplaysMade            *int    `json:"displays_made" validate:"omitempty,gte=0"`
	PacksRemaining          *int    `json:"packs_remaining" validate:"omitempty,gte=0"`
	LooseTablets            *int    `json:"loose_tablets" validate:"omitempty,gte=0"`
	DamagedTablets          *int    `json:"damaged_tablets" validate:"omitempty,gte=0"`
	TabletsPressedIntoCards *int    `json:"tablets_pressed_into_cards" validate:"omitempty,gte=0"`
	Turns                   *int    `json:"turns" validate:"omitempty,gte=0"`
	BoxNumber               *int    `json:"box_number" validate:"omitempty,gt=0"`
	BagNumber               *int    `json:"bag_number" validate:"omitempty,gt=0"`
	MachineID               *int    `json:"machine_id" validate:"omitempty,gt=0"`
	ReceiptNumber           *string `json:"receipt_number" validate:"omitempty,max=64"`
	SubmissionDate          *string `json:"submission_date" validate:"omitempty,datetime=2006-01-02"`
	AdminNotes              *string `json:"admin_notes" validate:"omitempty,max=2000"`
}

func (r EditSubmissionRequest) toEdit() core.SubmissionEdit {
	return core.SubmissionEdit{
		ProductName:             r.ProductName,
		DisplaysMade:            r.DisplaysMade,
		PacksRemaining:          r.PacksRemaining,
		LooseTablets:            r.LooseTablets,
		DamagedTablets:          r.DamagedTablets,
		TabletsPressedIntoCards: r.TabletsPressedIntoCards,
		Turns:                   r.Turns,
		BoxNumber:               r.BoxNumber,
		BagNumber:               r.BagNumber,
		MachineID:               r.MachineID,
		ReceiptNumber:           r.ReceiptNumber,
		SubmissionDate:          r.SubmissionDate,
		AdminNotes:              r.AdminNotes,
	}
}

// CreateReceiveRequest is the input for recording a delivery.
type CreateReceiveRequest struct {
	POID  *int         `json:"po_id" validate:"omitempty,gt=0"`
	Boxes []BoxRequest `json:"boxes" validate:"required,min=1,dive"`
}

// BoxRequest is one small box in a CreateReceiveRequest.
type BoxRequest struct {
	BoxNumber int          `json:"box_number" validate:"gt=0"`
	Bags      []BagRequest `json:"bags" validate:"dive"`
}

// BagRequest is one bag in a BoxRequest.
type BagRequest struct {
	BagNumber    int `json:"bag_number" validate:"gt=0"`
	TabletTypeID int `json:"tablet_type_id" validate:"gt=0"`
	LabelCount   int `json:"label_count" validate:"gte=0"`
}

func (r CreateReceiveRequest) toBoxes() []core.BoxInput {
	boxes := make([]core.BoxInput, len(r.Boxes))
	for i, b := range r.Boxes {
		boxes[i] = core.BoxInput{BoxNumber: b.BoxNumber}
		for _, bag := range b.Bags {
			boxes[i].Bags = append(boxes[i].Bags, core.BagInput{
				BagNumber:    bag.BagNumber,
				TabletTypeID: bag.TabletTypeID,
				LabelCount:   bag.LabelCount,
			})
		}
	}
	return boxes
}

// SyncPORequest is a purchase order pushed from the external inventory system.
type SyncPORequest struct {
	PONumber   string          `json:"po_number" validate:"required,max=100"`
	ExternalID *string         `json:"external_id" validate:"omitempty,max=100"`
	TabletType *string         `json:"tablet_type" validate:"omitempty,max=200"`
	Status     string          `json:"status" validate:"omitempty,oneof=Draft Issued Active Processing Shipped Received Complete Cancelled"`
	Lines      []POLineRequest `json:"lines" validate:"dive"`
}

// POLineRequest is a single line within a SyncPORequest.
type POLineRequest struct {
	InventoryItemID string `json:"inventory_item_id" validate:"required,max=100"`
	Name            string `json:"name" validate:"max=200"`
	QuantityOrdered int    `json:"quantity_ordered" validate:"gte=0"`
}

func (r SyncPORequest) toInput() core.POSyncInput {
	in := core.POSyncInput{
		PONumber:   r.PONumber,
		ExternalID: r.ExternalID,
		TabletType: r.TabletType,
		Status:     core.POStatus(r.Status),
	}
	for _, l := range r.Lines {
		in.Lines = append(in.Lines, core.POLineInput{
			InventoryItemID: l.InventoryItemID,
			Name:            l.Name,
			QuantityOrdered: l.QuantityOrdered,
		})
	}
	return in
}

// CreateEmployeeRequest is the input for adding an employee.
type CreateEmployeeRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64,alphanum"`
	FullName string `json:"full_name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=warehouse_staff manager admin"`
}

// TabletTypeRequest creates or updates a tablet type keyed by inventory item id.
type TabletTypeRequest struct {
	Name            string  `json:"name" validate:"required,max=200" yaml:"name"`
	InventoryItemID string  `json:"inventory_item_id" validate:"required,max=100" yaml:"inventory_item_id"`
	Category        *string `json:"category" validate:"omitempty,max=100" yaml:"category"`
}

// ProductRequest creates or updates a product's packaging configuration.
type ProductRequest struct {
	ProductName        string `json:"product_name" validate:"required,max=200" yaml:"name"`
	InventoryItemID    string `json:"inventory_item_id" validate:"required,max=100" yaml:"inventory_item_id"`
	PackagesPerDisplay int    `json:"packages_per_display" validate:"gte=0" yaml:"packages_per_display"`
	TabletsPerPackage  int    `json:"tablets_per_package" validate:"gte=0" yaml:"tablets_per_package"`
	TabletsPerBottle   int    `json:"tablets_per_bottle" validate:"gte=0" yaml:"tablets_per_bottle"`
}

// MachineRequest creates or updates a machine by name.
type MachineRequest struct {
	Name         string `json:"name" validate:"required,max=200" yaml:"name"`
	CardsPerTurn *int   `json:"cards_per_turn" validate:"omitempty,gt=0" yaml:"cards_per_turn"`
	IsActive     bool   `json:"is_active" yaml:"is_active"`
}
