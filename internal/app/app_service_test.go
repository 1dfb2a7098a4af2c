package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tablet-tracker/internal/core"
	"tablet-tracker/internal/logging"
)

// Fakes embed the core interfaces so each only implements what a test calls.

type fakeSubmissions struct {
	core.SubmissionService
	lastFilter core.SubmissionFilter
	submitted  *core.SubmissionInput
	rows       []core.Submission
	result     *core.SubmitResult
	candidates map[int][]core.BagCandidate
	candErr    map[int]error
}

func (f *fakeSubmissions) Submit(_ context.Context, _ core.Actor, in core.SubmissionInput) (*core.SubmitResult, error) {
	f.submitted = &in
	return f.result, nil
}

func (f *fakeSubmissions) List(_ context.Context, filter core.SubmissionFilter) ([]core.Submission, error) {
	f.lastFilter = filter
	return f.rows, nil
}

func (f *fakeSubmissions) Get(_ context.Context, id int) (*core.Submission, error) {
	for i := range f.rows {
		if f.rows[i].ID == id {
			return &f.rows[i], nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeSubmissions) Candidates(_ context.Context, id int) ([]core.BagCandidate, error) {
	if err := f.candErr[id]; err != nil {
		return nil, err
	}
	return f.candidates[id], nil
}

type fakeReceiving struct {
	core.ReceivingService
	closed []int
}

func (f *fakeReceiving) CloseReceive(_ context.Context, id int) error {
	f.closed = append(f.closed, id)
	return nil
}

type fakeReconcile struct {
	calls int
}

func (f *fakeReconcile) Reconcile(context.Context) (*core.ReconcileReport, error) {
	f.calls++
	return &core.ReconcileReport{Examined: 2, Assigned: []core.ReconciledSubmission{{SubmissionID: 4, BagID: 9, POID: 1}}}, nil
}

type fakeReporting struct {
	rows []core.BagReportRow
}

func (f *fakeReporting) BagReport(context.Context, core.BagReportFilter) ([]core.BagReportRow, error) {
	return f.rows, nil
}

func (f *fakeReporting) Tolerance() int { return 5 }

func newTestApp(svc Services, jobs JobLocker) *appService {
	if jobs == nil {
		jobs = NewLocalJobLocker()
	}
	return NewAppService(svc, jobs, logging.Discard()).(*appService)
}

func staffActor(id int) core.Actor {
	return core.Actor{EmployeeID: &id, Name: "Pat", Role: core.RoleWarehouseStaff}
}

var manager = core.Actor{Name: "Morgan", Role: core.RoleManager}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name  string
		actor core.Actor
		op    core.Operation
		allow bool
	}{
		{"staff submits", staffActor(1), core.OpSubmit, true},
		{"staff cannot close receive", staffActor(1), core.OpCloseReceive, false},
		{"manager closes receive", manager, core.OpCloseReceive, true},
		{"manager cannot recalculate", manager, core.OpRecalculate, false},
		{"admin recalculates", core.Actor{Role: core.RoleAdmin}, core.OpRecalculate, true},
		{"no role", core.Actor{}, core.OpSubmit, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorize(tt.actor, tt.op)
			if tt.allow && err != nil {
				t.Errorf("expected allowed, got %v", err)
			}
			if !tt.allow && !errors.Is(err, ErrForbidden) {
				t.Errorf("expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestSubmit_ValidationRejectsBeforeCore(t *testing.T) {
	subs := &fakeSubmissions{}
	a := newTestApp(Services{Submissions: subs}, nil)

	_, err := a.Submit(context.Background(), staffActor(1), SubmitRequest{
		ProductName:    "Cherry 20ct",
		SubmissionType: "crate",
		LooseTablets:   -1,
		SubmissionDate: "10/18/2026",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	want := map[string]string{
		"submission_type": "oneof",
		"loose_tablets":   "gte",
		"submission_date": "datetime",
	}
	for field, tag := range want {
		if verr.Fields[field] != tag {
			t.Errorf("field %s: expected %q, got %q", field, tag, verr.Fields[field])
		}
	}
	if subs.submitted != nil {
		t.Error("core Submit must not run for an invalid request")
	}
}

func TestSubmit_NoMatchMessage(t *testing.T) {
	box, bag := 1, 9
	subs := &fakeSubmissions{result: &core.SubmitResult{
		Submission: &core.Submission{ID: 7},
		Outcome:    core.OutcomeNoMatch,
		MatchErr:   &core.NoMatchError{Flavor: "Cherry", BoxNumber: &box, BagNumber: &bag},
	}}
	a := newTestApp(Services{Submissions: subs}, nil)

	res, err := a.Submit(context.Background(), staffActor(1), SubmitRequest{
		ProductName:    "Cherry 20ct",
		SubmissionType: "packaged",
		DisplaysMade:   3,
		BoxNumber:      &box,
		BagNumber:      &bag,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Message == "" || res.Submission.ID != 7 {
		t.Errorf("expected persisted submission with a no-match message, got %+v", res)
	}
	if subs.submitted.Counts.Kind != core.KindPackaged || subs.submitted.Counts.DisplaysMade != 3 {
		t.Errorf("request not converted: %+v", subs.submitted)
	}
}

func TestCreateReceive_NestedValidationPaths(t *testing.T) {
	a := newTestApp(Services{}, nil)
	_, err := a.CreateReceive(context.Background(), manager, CreateReceiveRequest{
		Boxes: []BoxRequest{{BoxNumber: 1, Bags: []BagRequest{{BagNumber: 0, TabletTypeID: 1, LabelCount: 10}}}},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Fields["boxes[0].bags[0].bag_number"] != "gt" {
		t.Errorf("unexpected fields: %v", verr.Fields)
	}

	_, err = a.CreateReceive(context.Background(), manager, CreateReceiveRequest{})
	if !errors.As(err, &verr) || verr.Fields["boxes"] != "required" {
		t.Errorf("expected boxes required, got %v", err)
	}
}

func TestListSubmissions_StaffSeeOwnOnly(t *testing.T) {
	subs := &fakeSubmissions{rows: []core.Submission{
		{ID: 1},
		{ID: 2, TotalsErr: errors.New("no product")},
	}}
	a := newTestApp(Services{Submissions: subs}, nil)

	res, err := a.ListSubmissions(context.Background(), staffActor(42), core.SubmissionFilter{})
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if subs.lastFilter.EmployeeID == nil || *subs.lastFilter.EmployeeID != 42 {
		t.Errorf("expected filter scoped to employee 42, got %+v", subs.lastFilter)
	}
	if res.Unresolved != 1 {
		t.Errorf("expected 1 unresolved row, got %d", res.Unresolved)
	}

	other := 7
	if _, err := a.ListSubmissions(context.Background(), manager, core.SubmissionFilter{EmployeeID: &other}); err != nil {
		t.Fatalf("manager ListSubmissions: %v", err)
	}
	if *subs.lastFilter.EmployeeID != 7 {
		t.Errorf("manager filter must pass through, got %d", *subs.lastFilter.EmployeeID)
	}

	if _, err := a.ListSubmissions(context.Background(), core.Actor{Role: core.RoleWarehouseStaff}, core.SubmissionFilter{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("staff without identity: expected ErrForbidden, got %v", err)
	}
}

func TestGetSubmission_StaffCannotReadOthers(t *testing.T) {
	owner := 5
	subs := &fakeSubmissions{rows: []core.Submission{{ID: 3, EmployeeID: &owner}}}
	a := newTestApp(Services{Submissions: subs}, nil)

	if _, err := a.GetSubmission(context.Background(), staffActor(5), 3); err != nil {
		t.Errorf("owner read: %v", err)
	}
	if _, err := a.GetSubmission(context.Background(), staffActor(6), 3); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := a.GetSubmission(context.Background(), manager, 3); err != nil {
		t.Errorf("manager read: %v", err)
	}
}

func TestCloseReceive_RunsReconcile(t *testing.T) {
	recv := &fakeReceiving{}
	recon := &fakeReconcile{}
	a := newTestApp(Services{Receiving: recv, Reconcile: recon}, nil)

	res, err := a.CloseReceive(context.Background(), manager, 11)
	if err != nil {
		t.Fatalf("CloseReceive: %v", err)
	}
	if len(recv.closed) != 1 || recv.closed[0] != 11 {
		t.Errorf("expected receive 11 closed, got %v", recv.closed)
	}
	if recon.calls != 1 || res.Reconciliation == nil || len(res.Reconciliation.Assigned) != 1 {
		t.Errorf("expected one reconciliation pass, got calls=%d result=%+v", recon.calls, res)
	}
}

func TestCloseReceive_SkipsReconcileWhenBusy(t *testing.T) {
	recv := &fakeReceiving{}
	recon := &fakeReconcile{}
	jobs := NewLocalJobLocker()
	a := newTestApp(Services{Receiving: recv, Reconcile: recon}, jobs)

	var res *CloseReceiveResult
	err := jobs.Run(context.Background(), JobReconcile, func(ctx context.Context) error {
		var err error
		res, err = a.CloseReceive(ctx, manager, 12)
		return err
	})
	if err != nil {
		t.Fatalf("CloseReceive: %v", err)
	}
	if recon.calls != 0 || res.Reconciliation != nil {
		t.Errorf("expected reconciliation skipped, got calls=%d", recon.calls)
	}
	if len(recv.closed) != 1 {
		t.Error("receive must still be closed")
	}
}

func TestBagReport_CountsClassifications(t *testing.T) {
	rep := &fakeReporting{rows: []core.BagReportRow{
		{Classification: core.BagMatch},
		{Classification: core.BagUnder},
		{Classification: core.BagUnder},
		{Classification: core.BagOver},
	}}
	a := newTestApp(Services{Reporting: rep}, nil)

	res, err := a.BagReport(context.Background(), manager, core.BagReportFilter{})
	if err != nil {
		t.Fatalf("BagReport: %v", err)
	}
	if res.Matched != 1 || res.Under != 2 || res.Over != 1 || res.Tolerance != 5 {
		t.Errorf("unexpected summary: %+v", res)
	}
	if _, err := a.BagReport(context.Background(), staffActor(1), core.BagReportFilter{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("staff: expected ErrForbidden, got %v", err)
	}
}

func TestLocalJobLocker(t *testing.T) {
	jobs := NewLocalJobLocker()
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = jobs.Run(context.Background(), JobRecalculate, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := jobs.Run(context.Background(), JobRecalculate, func(context.Context) error { return nil })
	if !errors.Is(err, ErrJobRunning) {
		t.Errorf("expected ErrJobRunning, got %v", err)
	}
	if err := jobs.Run(context.Background(), JobReconcile, func(context.Context) error { return nil }); err != nil {
		t.Errorf("different job must run: %v", err)
	}

	close(release)
	wg.Wait()

	want := errors.New("boom")
	if err := jobs.Run(context.Background(), JobRecalculate, func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("expected job error passed through, got %v", err)
	}
}

func TestSequentialFill_RequiresItem(t *testing.T) {
	a := newTestApp(Services{}, nil)
	_, err := a.SequentialFill(context.Background(), core.Actor{Role: core.RoleAdmin}, " ")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["inventory_item_id"] != "required" {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestReviewQueue_ReportsPerItemProblems(t *testing.T) {
	subs := &fakeSubmissions{
		rows: []core.Submission{{ID: 1, NeedsReview: true}, {ID: 2, NeedsReview: true}},
		candidates: map[int][]core.BagCandidate{
			2: {{BagID: 7}, {BagID: 8}},
		},
		candErr: map[int]error{
			1: &core.ConfigError{Product: "Legacy Mix", Field: "tablet_type"},
		},
	}
	s := newTestApp(Services{Submissions: subs}, nil)

	result, err := s.ReviewQueue(context.Background(), core.Actor{Name: "Morgan", Role: core.RoleManager})
	if err != nil {
		t.Fatalf("ReviewQueue: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected both submissions listed, got %d", len(result.Items))
	}
	if result.Items[0].Problem == "" || len(result.Items[0].Candidates) != 0 {
		t.Errorf("expected a problem and no candidates for submission 1, got %+v", result.Items[0])
	}
	if result.Items[1].Problem != "" || len(result.Items[1].Candidates) != 2 {
		t.Errorf("expected 2 candidates for submission 2, got %+v", result.Items[1])
	}
	if subs.lastFilter.NeedsReview == nil || !*subs.lastFilter.NeedsReview {
		t.Error("expected the queue to filter on needs_review")
	}
}
