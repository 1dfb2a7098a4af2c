package core_test

import (
	"errors"
	"strings"
	"testing"

	"tablet-tracker/internal/core"
)

func candidate(bagID int, status core.BagStatus, receiveClosed bool, poID *int) core.BagCandidate {
	return core.BagCandidate{
		BagID:         bagID,
		BoxNumber:     1,
		BagNumber:     5,
		TabletTypeID:  1,
		Status:        status,
		ReceiveID:     bagID * 10,
		ReceiveClosed: receiveClosed,
		POID:          poID,
	}
}

func TestFilterCandidates(t *testing.T) {
	po := intPtr(1)

	tests := []struct {
		name string
		kind core.SubmissionKind
		in   []core.BagCandidate
		want []int
	}{
		{
			name: "open bags in open receives are kept",
			kind: core.KindBag,
			in:   []core.BagCandidate{candidate(1, core.BagAvailable, false, po), candidate(2, core.BagAvailable, false, po)},
			want: []int{1, 2},
		},
		{
			name: "closed receive is excluded for machine counts",
			kind: core.KindMachine,
			in:   []core.BagCandidate{candidate(1, core.BagAvailable, true, po), candidate(2, core.BagClosed, true, po)},
			want: nil,
		},
		{
			name: "closed receive is excluded for bag counts",
			kind: core.KindBag,
			in:   []core.BagCandidate{candidate(1, core.BagClosed, true, po), candidate(2, core.BagAvailable, false, po)},
			want: []int{2},
		},
		{
			name: "closed receive still takes packaging",
			kind: core.KindPackaged,
			in:   []core.BagCandidate{candidate(1, core.BagClosed, true, po)},
			want: []int{1},
		},
		{
			name: "packaging prefers an open receive over a closed one",
			kind: core.KindPackaged,
			in:   []core.BagCandidate{candidate(1, core.BagAvailable, true, po), candidate(2, core.BagAvailable, false, po)},
			want: []int{2},
		},
		{
			name: "packaging falls back to every closed receive when no open receive qualifies",
			kind: core.KindPackaged,
			in: []core.BagCandidate{
				candidate(1, core.BagClosed, true, po),
				candidate(2, core.BagAvailable, true, po),
				candidate(3, core.BagAvailable, false, nil),
			},
			want: []int{1, 2},
		},
		{
			name: "closed bag of open receive outranks closed receive for packaging",
			kind: core.KindPackaged,
			in:   []core.BagCandidate{candidate(1, core.BagAvailable, true, po), candidate(2, core.BagClosed, false, po)},
			want: []int{2},
		},
		{
			name: "closed bag stays eligible for packaged",
			kind: core.KindPackaged,
			in:   []core.BagCandidate{candidate(1, core.BagClosed, false, po)},
			want: []int{1},
		},
		{
			name: "closed bag excluded for machine",
			kind: core.KindMachine,
			in:   []core.BagCandidate{candidate(1, core.BagClosed, false, po)},
			want: nil,
		},
		{
			name: "closed bag excluded for bag count",
			kind: core.KindBag,
			in:   []core.BagCandidate{candidate(1, core.BagClosed, false, po), candidate(2, core.BagAvailable, false, po)},
			want: []int{2},
		},
		{
			name: "receive without PO is excluded",
			kind: core.KindPackaged,
			in:   []core.BagCandidate{candidate(1, core.BagAvailable, false, nil)},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.FilterCandidates(tt.kind, tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d candidates, got %d", len(tt.want), len(got))
			}
			for i, c := range got {
				if c.BagID != tt.want[i] {
					t.Errorf("candidate %d: expected bag %d, got %d", i, tt.want[i], c.BagID)
				}
			}
		})
	}
}

func TestDecideMatch_Uniqueness(t *testing.T) {
	po := intPtr(7)
	bags := []core.BagCandidate{
		candidate(1, core.BagAvailable, false, po),
		candidate(2, core.BagAvailable, false, po),
		candidate(3, core.BagAvailable, false, po),
	}

	for n := 0; n <= len(bags); n++ {
		res := core.DecideMatch("Cherry", nil, intPtr(5), bags[:n])
		switch n {
		case 0:
			if res.Outcome != core.OutcomeNoMatch {
				t.Errorf("n=0: expected no_match, got %s", res.Outcome)
			}
			var nm *core.NoMatchError
			if !errors.As(res.Err, &nm) {
				t.Errorf("n=0: expected *NoMatchError, got %v", res.Err)
			}
			if res.Bag != nil {
				t.Error("n=0: expected no bag")
			}
		case 1:
			if res.Outcome != core.OutcomeAssigned {
				t.Errorf("n=1: expected assigned, got %s", res.Outcome)
			}
			if res.Bag == nil || res.Bag.BagID != 1 {
				t.Errorf("n=1: expected bag 1, got %+v", res.Bag)
			}
			if res.Err != nil {
				t.Errorf("n=1: unexpected error %v", res.Err)
			}
		default:
			if res.Outcome != core.OutcomeNeedsReview {
				t.Errorf("n=%d: expected needs_review, got %s", n, res.Outcome)
			}
			if res.Bag != nil {
				t.Errorf("n=%d: ambiguous match must not pick a bag", n)
			}
			if len(res.Candidates) != n {
				t.Errorf("n=%d: expected %d candidates surfaced, got %d", n, n, len(res.Candidates))
			}
		}
	}
}

func TestClosedBagAsymmetry(t *testing.T) {
	closed := []core.BagCandidate{candidate(9, core.BagClosed, false, intPtr(3))}

	packaged := core.DecideMatch("Cherry", nil, intPtr(5), core.FilterCandidates(core.KindPackaged, closed))
	if packaged.Outcome != core.OutcomeAssigned || packaged.Bag.BagID != 9 {
		t.Errorf("packaged: expected assignment to bag 9, got %s", packaged.Outcome)
	}

	machine := core.DecideMatch("Cherry", nil, intPtr(5), core.FilterCandidates(core.KindMachine, closed))
	if machine.Outcome != core.OutcomeNoMatch {
		t.Errorf("machine: expected no_match, got %s", machine.Outcome)
	}
}

func TestClosedReceiveDoesNotCompete(t *testing.T) {
	bags := []core.BagCandidate{
		candidate(4, core.BagAvailable, true, intPtr(3)),
		candidate(8, core.BagAvailable, false, intPtr(3)),
	}
	for _, kind := range []core.SubmissionKind{core.KindPackaged, core.KindBag, core.KindMachine} {
		res := core.DecideMatch("Cherry", nil, intPtr(5), core.FilterCandidates(kind, bags))
		if res.Outcome != core.OutcomeAssigned || res.Bag.BagID != 8 {
			t.Errorf("%s: expected assignment to bag 8, got %s", kind, res.Outcome)
		}
	}
}

func TestNoMatchError_Message(t *testing.T) {
	t.Run("names flavor box and bag", func(t *testing.T) {
		err := &core.NoMatchError{Flavor: "Cherry", BoxNumber: intPtr(2), BagNumber: intPtr(5)}
		msg := err.Error()
		for _, want := range []string{"Cherry", "box 2", "bag 5", "closed"} {
			if !strings.Contains(msg, want) {
				t.Errorf("expected %q in %q", want, msg)
			}
		}
	})

	t.Run("missing bag number", func(t *testing.T) {
		err := &core.NoMatchError{Flavor: "Cherry"}
		if !strings.Contains(err.Error(), "without a bag number") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})
}
