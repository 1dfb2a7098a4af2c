package core_test

import (
	"errors"
	"testing"

	"tablet-tracker/internal/core"
)

func TestFloorSubtract(t *testing.T) {
	tests := []struct {
		current, amount int
		want, drift     int
	}{
		{100, 30, 70, 0},
		{30, 30, 0, 0},
		{20, 74, 0, 54},
		{0, 5, 0, 5},
		{10, 0, 10, 0},
	}
	for _, tt := range tests {
		got, drift := core.FloorSubtract(tt.current, tt.amount)
		if got != tt.want || drift != tt.drift {
			t.Errorf("FloorSubtract(%d, %d) = (%d, %d), want (%d, %d)",
				tt.current, tt.amount, got, drift, tt.want, tt.drift)
		}
	}
}

func TestHeaderFromLines(t *testing.T) {
	t.Run("sums lines and derives remaining", func(t *testing.T) {
		h := core.HeaderFromLines([]core.POLine{
			{QuantityOrdered: 1000, GoodCount: 400, DamagedCount: 10, MachineGoodCount: 900},
			{QuantityOrdered: 500, GoodCount: 100, DamagedCount: 5},
		})
		if h.Ordered != 1500 || h.Good != 500 || h.Damaged != 15 {
			t.Errorf("unexpected header %+v", h)
		}
		if h.Remaining != h.Ordered-h.Good-h.Damaged {
			t.Errorf("remaining %d does not equal ordered - good - damaged", h.Remaining)
		}
	})

	t.Run("overs go negative rather than clamp", func(t *testing.T) {
		h := core.HeaderFromLines([]core.POLine{{QuantityOrdered: 100, GoodCount: 130}})
		if h.Remaining != -30 {
			t.Errorf("expected remaining -30, got %d", h.Remaining)
		}
	})

	t.Run("no lines", func(t *testing.T) {
		if h := core.HeaderFromLines(nil); h != (core.HeaderTotals{}) {
			t.Errorf("expected zero header, got %+v", h)
		}
	})
}

func strPtr(s string) *string { return &s }

func TestPlanReplay(t *testing.T) {
	lineIndex := map[core.LineKey]int{
		{POID: 1, InventoryItemID: "CHERRY"}: 11,
		{POID: 1, InventoryItemID: "MINT"}:   12,
		{POID: 2, InventoryItemID: "CHERRY"}: 21,
	}

	subs := []core.Submission{
		{ID: 1, AssignedPOID: intPtr(1), InventoryItemID: strPtr("CHERRY"),
			Counts: core.SubmissionCounts{Kind: core.KindPackaged}, Totals: core.Totals{Good: 74, Damaged: 1}},
		{ID: 2, AssignedPOID: intPtr(1), InventoryItemID: strPtr("CHERRY"),
			Counts: core.SubmissionCounts{Kind: core.KindPackaged}, Totals: core.Totals{Good: 26}},
		{ID: 3, AssignedPOID: intPtr(1), InventoryItemID: strPtr("CHERRY"),
			Counts: core.SubmissionCounts{Kind: core.KindMachine}, Totals: core.Totals{Good: 500, Damaged: 4}},
		// Bag counts never change PO counts.
		{ID: 4, AssignedPOID: intPtr(2), InventoryItemID: strPtr("CHERRY"),
			Counts: core.SubmissionCounts{Kind: core.KindBag}, Totals: core.Totals{Good: 9999}},
		// Unassigned rows are ignored.
		{ID: 5, InventoryItemID: strPtr("CHERRY"),
			Counts: core.SubmissionCounts{Kind: core.KindPackaged}, Totals: core.Totals{Good: 50}},
		// Skipped: no flavor mapping.
		{ID: 6, AssignedPOID: intPtr(1), ProductName: "Legacy",
			Counts: core.SubmissionCounts{Kind: core.KindPackaged}, Totals: core.Totals{Good: 10}},
		// Skipped: calculator failure.
		{ID: 7, AssignedPOID: intPtr(2), InventoryItemID: strPtr("CHERRY"),
			Counts:    core.SubmissionCounts{Kind: core.KindPackaged},
			TotalsErr: &core.ConfigError{Product: "Cherry", Field: "tablets_per_package"}},
		// Skipped: PO has no line for the flavor.
		{ID: 8, AssignedPOID: intPtr(2), InventoryItemID: strPtr("MINT"),
			Counts: core.SubmissionCounts{Kind: core.KindPackaged}, Totals: core.Totals{Good: 5}},
	}

	plan := core.PlanReplay(subs, lineIndex)

	if got := plan.Lines[11]; got != (core.LineCounts{Good: 100, Damaged: 1, MachineGood: 500, MachineDamaged: 4}) {
		t.Errorf("line 11: unexpected counts %+v", got)
	}
	if got, ok := plan.Lines[12]; !ok || got != (core.LineCounts{}) {
		t.Errorf("line 12: expected zeroed entry, got %+v (present=%v)", got, ok)
	}
	if got := plan.Lines[21]; got != (core.LineCounts{}) {
		t.Errorf("line 21: bag count must not contribute, got %+v", got)
	}
	if len(plan.Replayed) != 3 {
		t.Errorf("expected 3 replayed submissions, got %d", len(plan.Replayed))
	}

	skipped := map[int]bool{}
	for _, s := range plan.Skipped {
		skipped[s.SubmissionID] = true
		if s.Reason == "" {
			t.Errorf("submission %d skipped without a reason", s.SubmissionID)
		}
	}
	for _, id := range []int{6, 7, 8} {
		if !skipped[id] {
			t.Errorf("expected submission %d to be skipped", id)
		}
	}
	if len(plan.Skipped) != 3 {
		t.Errorf("expected 3 skips, got %d", len(plan.Skipped))
	}
}

func TestPlanReplay_Idempotent(t *testing.T) {
	lineIndex := map[core.LineKey]int{{POID: 1, InventoryItemID: "CHERRY"}: 11}
	subs := []core.Submission{
		{ID: 1, AssignedPOID: intPtr(1), InventoryItemID: strPtr("CHERRY"),
			Counts: core.SubmissionCounts{Kind: core.KindPackaged}, Totals: core.Totals{Good: 74, Damaged: 1}},
	}
	first := core.PlanReplay(subs, lineIndex)
	second := core.PlanReplay(subs, lineIndex)
	if first.Lines[11] != second.Lines[11] {
		t.Errorf("replay differs between runs: %+v vs %+v", first.Lines[11], second.Lines[11])
	}
}

func TestPickFillTarget(t *testing.T) {
	tests := []struct {
		name  string
		lines []core.FillLine
		want  int
	}{
		{"no open POs", nil, -1},
		{
			name: "oldest PO with room",
			lines: []core.FillLine{
				{PONumber: "PO-001", Ordered: 100, Produced: 100},
				{PONumber: "PO-002", Ordered: 100, Produced: 40},
				{PONumber: "PO-003", Ordered: 100, Produced: 0},
			},
			want: 1,
		},
		{
			name: "all full spills onto most recent",
			lines: []core.FillLine{
				{PONumber: "PO-001", Ordered: 100, Produced: 120},
				{PONumber: "PO-002", Ordered: 100, Produced: 100},
			},
			want: 1,
		},
		{
			name:  "first is empty",
			lines: []core.FillLine{{PONumber: "PO-001", Ordered: 10}},
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.PickFillTarget(tt.lines); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestPOLine_Overs(t *testing.T) {
	if got := (core.POLine{QuantityOrdered: 100, GoodCount: 130}).Overs(); got != 30 {
		t.Errorf("expected 30 overs, got %d", got)
	}
	if got := (core.POLine{QuantityOrdered: 100, GoodCount: 80}).Overs(); got != 0 {
		t.Errorf("expected no overs, got %d", got)
	}
	if got := core.OversPONumber("PO-123"); got != "PO-123-OVERS" {
		t.Errorf("unexpected overs PO number %q", got)
	}
}

func TestPercentComplete(t *testing.T) {
	po := core.PurchaseOrder{OrderedQuantity: 3, CurrentGoodCount: 1}
	if got := po.PercentComplete().String(); got != "33.3" {
		t.Errorf("expected 33.3, got %s", got)
	}
	empty := core.PurchaseOrder{}
	if !empty.PercentComplete().IsZero() {
		t.Errorf("expected zero for a PO with nothing ordered")
	}
}

func TestErrorSentinels(t *testing.T) {
	var cfg *core.ConfigError
	if !errors.As(error(&core.ConfigError{Product: "X", Field: "tablets_per_package"}), &cfg) {
		t.Fatal("ConfigError should satisfy errors.As")
	}
	if cfg.Field != "tablets_per_package" {
		t.Errorf("unexpected field %q", cfg.Field)
	}
}
