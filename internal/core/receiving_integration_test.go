package core_test

import (
	"context"
	"errors"
	"testing"

	"tablet-tracker/internal/core"
)

func TestReceiving_UnassignedReceiveThenAssign(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	po := mustSyncPO(t, svc, "PO-0500", core.POLineInput{InventoryItemID: "MINT", QuantityOrdered: 1000})

	r, err := svc.receiving.CreateReceive(ctx, nil, "dock", []core.BoxInput{
		{BoxNumber: 1, Bags: []core.BagInput{
			{BagNumber: 1, TabletTypeID: 2, LabelCount: 300},
			{BagNumber: 2, TabletTypeID: 2, LabelCount: 300},
		}},
	})
	if err != nil {
		t.Fatalf("CreateReceive: %v", err)
	}
	if want := core.UnassignedReceiveName(r.ID); r.Name != want {
		t.Errorf("expected %q, got %q", want, r.Name)
	}
	if len(r.Boxes) != 1 || len(r.Boxes[0].Bags) != 2 || r.Boxes[0].TotalBags != 2 {
		t.Fatalf("unexpected receive shape %+v", r)
	}

	t.Run("bags of an unassigned receive never match", func(t *testing.T) {
		res, err := svc.subs.Submit(ctx, staff, core.SubmissionInput{
			ProductName: "Mint 20ct", Counts: packaged(1, 0, 0, 0), BagNumber: intPtr(1),
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if res.Outcome != core.OutcomeNoMatch {
			t.Errorf("expected no_match, got %s", res.Outcome)
		}
	})

	unassigned, err := svc.receiving.ListReceives(ctx, core.ReceiveFilter{Unassigned: true})
	if err != nil {
		t.Fatalf("ListReceives: %v", err)
	}
	if len(unassigned) != 1 || unassigned[0].ID != r.ID {
		t.Errorf("expected the receive in the triage list, got %+v", unassigned)
	}

	if err := svc.receiving.AssignReceiveToPO(ctx, r.ID, po.ID); err != nil {
		t.Fatalf("AssignReceiveToPO: %v", err)
	}
	got, err := svc.receiving.GetReceive(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetReceive: %v", err)
	}
	if got.Name != "PO-0500-1" || got.POID == nil || *got.POID != po.ID {
		t.Errorf("expected receive PO-0500-1 on PO %d, got %q %v", po.ID, got.Name, got.POID)
	}

	t.Run("second receive on the PO numbers on", func(t *testing.T) {
		next := mustReceiveBag(t, svc, po.ID, 1, 7, 2, 100)
		if next.Name != "PO-0500-2" {
			t.Errorf("expected PO-0500-2, got %q", next.Name)
		}
	})
}

func TestReceiving_MoveReceiveCarriesCounts(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	from := mustSyncPO(t, svc, "PO-0601", core.POLineInput{InventoryItemID: "CHERRY", QuantityOrdered: 500})
	to := mustSyncPO(t, svc, "PO-0602", core.POLineInput{InventoryItemID: "CHERRY", QuantityOrdered: 500})
	r := mustReceiveBag(t, svc, from.ID, 1, 3, 1, 200)

	if _, err := svc.subs.Submit(ctx, staff, core.SubmissionInput{
		ProductName: "Cherry 20ct", Counts: packaged(3, 1, 4, 1), BagNumber: intPtr(3),
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := svc.receiving.AssignReceiveToPO(ctx, r.ID, to.ID); err != nil {
		t.Fatalf("AssignReceiveToPO: %v", err)
	}

	a, b := mustGetPO(t, svc, from.ID), mustGetPO(t, svc, to.ID)
	if a.CurrentGoodCount != 0 || a.CurrentDamagedCount != 0 {
		t.Errorf("source PO should be emptied, got %d/%d", a.CurrentGoodCount, a.CurrentDamagedCount)
	}
	if b.CurrentGoodCount != 74 || b.CurrentDamagedCount != 1 {
		t.Errorf("target PO should hold 74/1, got %d/%d", b.CurrentGoodCount, b.CurrentDamagedCount)
	}
	assertConserved(t, a)
	assertConserved(t, b)

	t.Run("closed receive cannot move", func(t *testing.T) {
		if err := svc.receiving.CloseReceive(ctx, r.ID); err != nil {
			t.Fatalf("CloseReceive: %v", err)
		}
		if err := svc.receiving.AssignReceiveToPO(ctx, r.ID, from.ID); !errors.Is(err, core.ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

func TestReceiving_CreateValidation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	po := mustSyncPO(t, svc, "PO-0700", core.POLineInput{InventoryItemID: "CHERRY", QuantityOrdered: 10})

	tests := []struct {
		name  string
		boxes []core.BoxInput
	}{
		{"no boxes", nil},
		{"duplicate box", []core.BoxInput{{BoxNumber: 1}, {BoxNumber: 1}}},
		{"duplicate bag", []core.BoxInput{{BoxNumber: 1, Bags: []core.BagInput{
			{BagNumber: 1, TabletTypeID: 1}, {BagNumber: 1, TabletTypeID: 1},
		}}}},
		{"negative label", []core.BoxInput{{BoxNumber: 1, Bags: []core.BagInput{{BagNumber: 1, TabletTypeID: 1, LabelCount: -1}}}}},
		{"unknown tablet type", []core.BoxInput{{BoxNumber: 1, Bags: []core.BagInput{{BagNumber: 1, TabletTypeID: 99}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.receiving.CreateReceive(ctx, &po.ID, "dock", tt.boxes); err == nil {
				t.Error("expected an error")
			}
		})
	}

	t.Run("closed PO takes no receives", func(t *testing.T) {
		if err := svc.pos.SetStatus(ctx, po.ID, core.POStatusComplete); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
		_, err := svc.receiving.CreateReceive(ctx, &po.ID, "dock", []core.BoxInput{{BoxNumber: 1}})
		if !errors.Is(err, core.ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

func TestReporting_BagReport(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	po := mustSyncPO(t, svc, "PO-0800", core.POLineInput{InventoryItemID: "CHERRY", QuantityOrdered: 1000})
	mustReceiveBag(t, svc, po.ID, 1, 1, 1, 80)
	mustReceiveBag(t, svc, po.ID, 2, 2, 1, 100)

	for _, in := range []core.SubmissionInput{
		{ProductName: "Cherry 20ct", Counts: packaged(3, 1, 4, 1), BagNumber: intPtr(1)},
		{ProductName: "Cherry 20ct", Counts: packaged(4, 0, 0, 0), BagNumber: intPtr(2)},
		{ProductName: "Cherry 20ct", Counts: core.SubmissionCounts{Kind: core.KindBag, LooseTablets: 99}, BagNumber: intPtr(2)},
	} {
		if _, err := svc.subs.Submit(ctx, staff, in); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	rows, err := svc.reporting.BagReport(ctx, core.BagReportFilter{POID: &po.ID})
	if err != nil {
		t.Fatalf("BagReport: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	byBag := map[int]core.BagReportRow{}
	for _, r := range rows {
		byBag[r.BagNumber] = r
	}

	under := byBag[1]
	if under.PackagedCount != 74 || under.Difference != -6 || under.Classification != core.BagUnder {
		t.Errorf("bag 1: expected 74 / -6 / under, got %d / %d / %s", under.PackagedCount, under.Difference, under.Classification)
	}
	if under.VariancePercent.String() != "-7.5" {
		t.Errorf("bag 1: expected variance -7.5, got %s", under.VariancePercent)
	}

	short := byBag[2]
	if short.PackagedCount != 80 || short.Classification != core.BagUnder {
		t.Errorf("bag 2: expected 80 / under, got %d / %s", short.PackagedCount, short.Classification)
	}
	if short.Submissions != 2 {
		t.Errorf("bag 2: bag counts are listed but not added, expected 2 submissions, got %d", short.Submissions)
	}
	if short.PONumber == nil || *short.PONumber != "PO-0800" {
		t.Errorf("bag 2: expected PO number, got %v", short.PONumber)
	}
}
