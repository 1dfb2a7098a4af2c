package core_test

import (
	"context"
	"os"
	"testing"

	"tablet-tracker/internal/core"
	"tablet-tracker/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE warehouse_submissions, bags, small_boxes, receive_sequences, receives,
		               po_lines, purchase_orders, product_details, tablet_types, machines, employees
		RESTART IDENTITY CASCADE;

		INSERT INTO tablet_types (id, tablet_type_name, inventory_item_id) VALUES
		(1, 'Cherry', 'CHERRY'),
		(2, 'Mint',   'MINT');
		SELECT setval('tablet_types_id_seq', 2);

		INSERT INTO product_details (product_name, tablet_type_id, packages_per_display, tablets_per_package) VALUES
		('Cherry 20ct', 1, 2, 10),
		('Mint 20ct',   2, 2, 10);
		INSERT INTO product_details (product_name, tablet_type_id) VALUES ('Cherry Unconfigured', 1);

		INSERT INTO machines (id, machine_name, cards_per_turn) VALUES (1, 'Press 1', 3);
		SELECT setval('machines_id_seq', 1);

		INSERT INTO app_settings (setting_key, setting_value) VALUES ('cards_per_turn', '1')
		ON CONFLICT (setting_key) DO UPDATE SET setting_value = '1';
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

type testServices struct {
	pos       core.PurchaseOrderService
	receiving core.ReceivingService
	subs      core.SubmissionService
	agg       core.AggregationEngine
	recon     core.ReconciliationService
	reporting core.ReportingService
}

func newTestServices(pool *pgxpool.Pool) testServices {
	log := logging.Discard()
	matcher := core.NewBagMatcher()
	agg := core.NewAggregationEngine(pool, log)
	return testServices{
		pos:       core.NewPurchaseOrderService(pool),
		receiving: core.NewReceivingService(pool, agg, log),
		subs:      core.NewSubmissionService(pool, matcher, agg, log),
		agg:       agg,
		recon:     core.NewReconciliationService(pool, matcher, agg, log),
		reporting: core.NewReportingService(pool, 5),
	}
}

var staff = core.Actor{EmployeeID: nil, Name: "Floor Staff", Role: core.RoleWarehouseStaff}

func mustSyncPO(t *testing.T, svc testServices, number string, lines ...core.POLineInput) *core.PurchaseOrder {
	t.Helper()
	po, err := svc.pos.SyncPO(context.Background(), core.POSyncInput{PONumber: number, Lines: lines})
	if err != nil {
		t.Fatalf("SyncPO %s: %v", number, err)
	}
	return po
}

// mustReceiveBag records a receive on poID with a single box holding one bag.
func mustReceiveBag(t *testing.T, svc testServices, poID int, boxNumber, bagNumber, tabletTypeID, label int) *core.Receive {
	t.Helper()
	r, err := svc.receiving.CreateReceive(context.Background(), &poID, "tester", []core.BoxInput{
		{BoxNumber: boxNumber, Bags: []core.BagInput{{BagNumber: bagNumber, TabletTypeID: tabletTypeID, LabelCount: label}}},
	})
	if err != nil {
		t.Fatalf("CreateReceive: %v", err)
	}
	return r
}

func mustGetPO(t *testing.T, svc testServices, poID int) *core.PurchaseOrder {
	t.Helper()
	po, err := svc.pos.GetPO(context.Background(), poID)
	if err != nil {
		t.Fatalf("GetPO %d: %v", poID, err)
	}
	return po
}

func lineFor(t *testing.T, po *core.PurchaseOrder, item string) core.POLine {
	t.Helper()
	for _, l := range po.Lines {
		if l.InventoryItemID == item {
			return l
		}
	}
	t.Fatalf("PO %s has no line for %s", po.PONumber, item)
	return core.POLine{}
}

// assertConserved checks header == Σ lines and remaining == ordered - good - damaged.
func assertConserved(t *testing.T, po *core.PurchaseOrder) {
	t.Helper()
	h := core.HeaderFromLines(po.Lines)
	if po.OrderedQuantity != h.Ordered || po.CurrentGoodCount != h.Good || po.CurrentDamagedCount != h.Damaged {
		t.Errorf("PO %s header (%d/%d/%d) does not match lines (%d/%d/%d)", po.PONumber,
			po.OrderedQuantity, po.CurrentGoodCount, po.CurrentDamagedCount, h.Ordered, h.Good, h.Damaged)
	}
	if po.RemainingQuantity != po.OrderedQuantity-po.CurrentGoodCount-po.CurrentDamagedCount {
		t.Errorf("PO %s remaining %d != ordered - good - damaged", po.PONumber, po.RemainingQuantity)
	}
}

func packaged(displays, packs, loose, damaged int) core.SubmissionCounts {
	return core.SubmissionCounts{Kind: core.KindPackaged, DisplaysMade: displays, PacksRemaining: packs,
		LooseTablets: loose, DamagedTablets: damaged}
}
