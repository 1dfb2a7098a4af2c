package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tablet-tracker/internal/core"
	"tablet-tracker/internal/logging"

	"github.com/sirupsen/logrus"
)

// Job names used with the JobLocker.
const (
	JobRecalculate = "recalculate"
	JobReconcile   = "reconcile"
	JobFill        = "sequential-fill"
)

// Services groups the core services the application layer delegates to.
type Services struct {
	Employees     core.EmployeeService
	Submissions   core.SubmissionService
	Receiving     core.ReceivingService
	PurchaseOrder core.PurchaseOrderService
	Aggregation   core.AggregationEngine
	Reconcile     core.ReconciliationService
	Reporting     core.ReportingService
	Products      core.ProductService
}

type appService struct {
	svc  Services
	jobs JobLocker
	log  logrus.FieldLogger
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(svc Services, jobs JobLocker, log logrus.FieldLogger) ApplicationService {
	return &appService{svc: svc, jobs: jobs, log: log}
}

// authorize returns ErrForbidden when actor may not run op.
func authorize(actor core.Actor, op core.Operation) error {
	if !core.Allowed(actor.Role, op) {
		role := string(actor.Role)
		if role == "" {
			role = "anonymous"
		}
		return fmt.Errorf("%s cannot %s: %w", role, op, ErrForbidden)
	}
	return nil
}

// ── Identity ──────────────────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	e, err := s.svc.Employees.Authenticate(ctx, strings.TrimSpace(username), password)
	if err != nil {
		return nil, err
	}
	return &UserSession{EmployeeID: e.ID, Username: e.Username, FullName: e.FullName, Role: string(e.Role)}, nil
}

func (s *appService) GetUser(ctx context.Context, employeeID int) (*UserResult, error) {
	e, err := s.svc.Employees.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return userResult(e), nil
}

func (s *appService) CreateEmployee(ctx context.Context, actor core.Actor, req CreateEmployeeRequest) (*UserResult, error) {
	if err := authorize(actor, core.OpManageEmployees); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	e, err := s.svc.Employees.Create(ctx, req.Username, req.FullName, req.Password, core.Role(req.Role))
	if err != nil {
		return nil, err
	}
	return userResult(e), nil
}

func userResult(e *core.Employee) *UserResult {
	return &UserResult{ID: e.ID, Username: e.Username, FullName: e.FullName, Role: string(e.Role), IsActive: e.IsActive}
}

// ── Submissions ───────────────────────────────────────────────────────────────

func (s *appService) Submit(ctx context.Context, actor core.Actor, req SubmitRequest) (*SubmissionResult, error) {
	if err := authorize(actor, core.OpSubmit); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	res, err := s.svc.Submissions.Submit(ctx, actor, req.toInput())
	if err != nil {
		return nil, err
	}
	return submissionResult(res), nil
}

func (s *appService) EditSubmission(ctx context.Context, actor core.Actor, submissionID int, req EditSubmissionRequest) (*SubmissionResult, error) {
	if err := authorize(actor, core.OpEditSubmission); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	res, err := s.svc.Submissions.Edit(ctx, submissionID, req.toEdit())
	if err != nil {
		return nil, err
	}
	return submissionResult(res), nil
}

func submissionResult(res *core.SubmitResult) *SubmissionResult {
	out := &SubmissionResult{
		Submission: res.Submission,
		Outcome:    res.Outcome,
		Candidates: res.Candidates,
		Inherited:  res.Inherited,
	}
	switch {
	case res.MatchErr != nil:
		out.Message = res.MatchErr.Error()
	case res.Outcome == core.OutcomeNeedsReview:
		out.Message = fmt.Sprintf("%d bags match; a manager will pick the right one", len(res.Candidates))
	}
	return out
}

func (s *appService) DeleteSubmission(ctx context.Context, actor core.Actor, submissionID int) error {
	if err := authorize(actor, core.OpDeleteSubmission); err != nil {
		return err
	}
	return s.svc.Submissions.Delete(ctx, submissionID)
}

func (s *appService) GetSubmission(ctx context.Context, actor core.Actor, submissionID int) (*core.Submission, error) {
	if err := authorize(actor, core.OpListSubmissions); err != nil {
		return nil, err
	}
	sub, err := s.svc.Submissions.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if ownOnly(actor) && !sameEmployee(actor.EmployeeID, sub.EmployeeID) {
		return nil, fmt.Errorf("submission %d belongs to another employee: %w", submissionID, ErrForbidden)
	}
	return sub, nil
}

func (s *appService) ListSubmissions(ctx context.Context, actor core.Actor, filter core.SubmissionFilter) (*SubmissionsResult, error) {
	if err := authorize(actor, core.OpListSubmissions); err != nil {
		return nil, err
	}
	if ownOnly(actor) {
		if actor.EmployeeID == nil {
			return nil, fmt.Errorf("listing submissions requires an employee identity: %w", ErrForbidden)
		}
		filter.EmployeeID = actor.EmployeeID
	}
	subs, err := s.svc.Submissions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := &SubmissionsResult{Submissions: subs}
	for _, sub := range subs {
		if sub.TotalsErr != nil {
			out.Unresolved++
		}
	}
	return out, nil
}

// ownOnly reports whether the actor is limited to their own submissions.
func ownOnly(actor core.Actor) bool {
	return !core.Allowed(actor.Role, core.OpEditSubmission)
}

func sameEmployee(a, b *int) bool {
	return a != nil && b != nil && *a == *b
}

func (s *appService) ReviewQueue(ctx context.Context, actor core.Actor) (*ReviewQueueResult, error) {
	if err := authorize(actor, core.OpAssignBag); err != nil {
		return nil, err
	}
	review := true
	subs, err := s.svc.Submissions.List(ctx, core.SubmissionFilter{NeedsReview: &review})
	if err != nil {
		return nil, err
	}
	out := &ReviewQueueResult{Items: make([]ReviewItem, 0, len(subs))}
	for _, sub := range subs {
		item := ReviewItem{Submission: sub}
		candidates, err := s.svc.Submissions.Candidates(ctx, sub.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			s.log.WithField("submission_id", sub.ID).Warnf("list review candidates: %v", err)
			item.Problem = err.Error()
		}
		item.Candidates = candidates
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (s *appService) AssignBag(ctx context.Context, actor core.Actor, submissionID, bagID int) (*core.Submission, error) {
	if err := authorize(actor, core.OpAssignBag); err != nil {
		return nil, err
	}
	return s.svc.Submissions.AssignBag(ctx, submissionID, bagID)
}

func (s *appService) VerifyAssignment(ctx context.Context, actor core.Actor, submissionID int) error {
	if err := authorize(actor, core.OpVerifyAssignment); err != nil {
		return err
	}
	return s.svc.Submissions.VerifyAssignment(ctx, submissionID)
}

func (s *appService) ReassignSubmission(ctx context.Context, actor core.Actor, submissionID, poID int) error {
	if err := authorize(actor, core.OpReassign); err != nil {
		return err
	}
	return s.svc.Aggregation.Reassign(ctx, submissionID, poID)
}

// ── Receiving ─────────────────────────────────────────────────────────────────

func (s *appService) CreateReceive(ctx context.Context, actor core.Actor, req CreateReceiveRequest) (*core.Receive, error) {
	if err := authorize(actor, core.OpCreateReceive); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.svc.Receiving.CreateReceive(ctx, req.POID, actor.Name, req.toBoxes())
}

func (s *appService) GetReceive(ctx context.Context, actor core.Actor, receiveID int) (*core.Receive, error) {
	if err := authorize(actor, core.OpViewReceives); err != nil {
		return nil, err
	}
	return s.svc.Receiving.GetReceive(ctx, receiveID)
}

func (s *appService) ListReceives(ctx context.Context, actor core.Actor, filter core.ReceiveFilter) ([]core.Receive, error) {
	if err := authorize(actor, core.OpViewReceives); err != nil {
		return nil, err
	}
	return s.svc.Receiving.ListReceives(ctx, filter)
}

func (s *appService) AssignReceive(ctx context.Context, actor core.Actor, receiveID, poID int) error {
	if err := authorize(actor, core.OpAssignReceive); err != nil {
		return err
	}
	return s.svc.Receiving.AssignReceiveToPO(ctx, receiveID, poID)
}

func (s *appService) CloseReceive(ctx context.Context, actor core.Actor, receiveID int) (*CloseReceiveResult, error) {
	if err := authorize(actor, core.OpCloseReceive); err != nil {
		return nil, err
	}
	if err := s.svc.Receiving.CloseReceive(ctx, receiveID); err != nil {
		return nil, err
	}

	out := &CloseReceiveResult{ReceiveID: receiveID}
	report, err := s.runReconcile(ctx)
	switch {
	case errors.Is(err, ErrJobRunning):
		s.log.WithField("receive_id", receiveID).Info("reconciliation already running; skipped after receive close")
	case err != nil:
		// The close itself is committed; a failed pass is retried by the periodic loop.
		logging.LogError(s.log, "app", "CloseReceive", "reconcile after close", receiveID, err)
	default:
		out.Reconciliation = report
	}
	return out, nil
}

func (s *appService) CloseBag(ctx context.Context, actor core.Actor, bagID int) error {
	if err := authorize(actor, core.OpCloseBag); err != nil {
		return err
	}
	return s.svc.Receiving.CloseBag(ctx, bagID)
}

func (s *appService) ReopenBag(ctx context.Context, actor core.Actor, bagID int) error {
	if err := authorize(actor, core.OpReopenBag); err != nil {
		return err
	}
	return s.svc.Receiving.ReopenBag(ctx, bagID)
}

func (s *appService) MarkBagPushed(ctx context.Context, actor core.Actor, bagID int, externalReceiveID string) error {
	if err := authorize(actor, core.OpMarkBagPushed); err != nil {
		return err
	}
	if strings.TrimSpace(externalReceiveID) == "" {
		return &ValidationError{Fields: map[string]string{"external_receive_id": "required"}}
	}
	return s.svc.Receiving.MarkBagPushed(ctx, bagID, externalReceiveID)
}

// ── Purchase orders ───────────────────────────────────────────────────────────

func (s *appService) SyncPO(ctx context.Context, actor core.Actor, req SyncPORequest) (*POResult, error) {
	if err := authorize(actor, core.OpSyncPO); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	po, err := s.svc.PurchaseOrder.SyncPO(ctx, req.toInput())
	if err != nil {
		return nil, err
	}
	return poResult(po), nil
}

func (s *appService) GetPO(ctx context.Context, actor core.Actor, poID int) (*POResult, error) {
	if err := authorize(actor, core.OpViewPOs); err != nil {
		return nil, err
	}
	po, err := s.svc.PurchaseOrder.GetPO(ctx, poID)
	if err != nil {
		return nil, err
	}
	return poResult(po), nil
}

func (s *appService) ListPOs(ctx context.Context, actor core.Actor, filter core.POFilter) (*POListResult, error) {
	if err := authorize(actor, core.OpViewPOs); err != nil {
		return nil, err
	}
	pos, err := s.svc.PurchaseOrder.GetPOs(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := &POListResult{Orders: make([]POResult, len(pos))}
	for i := range pos {
		out.Orders[i] = *poResult(&pos[i])
	}
	return out, nil
}

func poResult(po *core.PurchaseOrder) *POResult {
	return &POResult{PurchaseOrder: po, PercentComplete: po.PercentComplete()}
}

func (s *appService) SetPOStatus(ctx context.Context, actor core.Actor, poID int, status core.POStatus) error {
	if err := authorize(actor, core.OpSetPOStatus); err != nil {
		return err
	}
	return s.svc.PurchaseOrder.SetStatus(ctx, poID, status)
}

func (s *appService) CreateOversPO(ctx context.Context, actor core.Actor, parentPOID int) (*POResult, error) {
	if err := authorize(actor, core.OpCreateOversPO); err != nil {
		return nil, err
	}
	po, err := s.svc.PurchaseOrder.CreateOversPO(ctx, parentPOID)
	if err != nil {
		return nil, err
	}
	return poResult(po), nil
}

func (s *appService) PurgePO(ctx context.Context, actor core.Actor, poID int) (int, error) {
	if err := authorize(actor, core.OpPurgePO); err != nil {
		return 0, err
	}
	n, err := s.svc.PurchaseOrder.PurgePO(ctx, poID)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"po_id": poID, "unassigned": n, "actor": actor.Name}).Warn("purchase order purged")
	return n, nil
}

// ── Jobs ──────────────────────────────────────────────────────────────────────

func (s *appService) Recalculate(ctx context.Context, actor core.Actor) (*core.RecalcReport, error) {
	if err := authorize(actor, core.OpRecalculate); err != nil {
		return nil, err
	}
	var report *core.RecalcReport
	err := s.jobs.Run(ctx, JobRecalculate, func(ctx context.Context) error {
		var err error
		report, err = s.svc.Aggregation.Recalculate(ctx)
		return err
	})
	return report, err
}

func (s *appService) Reconcile(ctx context.Context, actor core.Actor) (*core.ReconcileReport, error) {
	if err := authorize(actor, core.OpReconcile); err != nil {
		return nil, err
	}
	return s.runReconcile(ctx)
}

func (s *appService) runReconcile(ctx context.Context) (*core.ReconcileReport, error) {
	var report *core.ReconcileReport
	err := s.jobs.Run(ctx, JobReconcile, func(ctx context.Context) error {
		var err error
		report, err = s.svc.Reconcile.Reconcile(ctx)
		return err
	})
	return report, err
}

func (s *appService) SequentialFill(ctx context.Context, actor core.Actor, inventoryItemID string) (*core.FillReport, error) {
	if err := authorize(actor, core.OpSequentialFill); err != nil {
		return nil, err
	}
	if strings.TrimSpace(inventoryItemID) == "" {
		return nil, &ValidationError{Fields: map[string]string{"inventory_item_id": "required"}}
	}
	var report *core.FillReport
	err := s.jobs.Run(ctx, JobFill, func(ctx context.Context) error {
		var err error
		report, err = s.svc.Aggregation.SequentialFill(ctx, inventoryItemID)
		return err
	})
	return report, err
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (s *appService) BagReport(ctx context.Context, actor core.Actor, filter core.BagReportFilter) (*BagReportResult, error) {
	if err := authorize(actor, core.OpViewReports); err != nil {
		return nil, err
	}
	rows, err := s.svc.Reporting.BagReport(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := &BagReportResult{Rows: rows, Tolerance: s.svc.Reporting.Tolerance()}
	for _, r := range rows {
		switch r.Classification {
		case core.BagMatch:
			out.Matched++
		case core.BagUnder:
			out.Under++
		case core.BagOver:
			out.Over++
		}
	}
	return out, nil
}

// ── Products and settings ─────────────────────────────────────────────────────

func (s *appService) ListCatalog(ctx context.Context, actor core.Actor) (*CatalogResult, error) {
	if err := authorize(actor, core.OpSubmit); err != nil {
		return nil, err
	}
	tts, err := s.svc.Products.TabletTypes(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.svc.Products.Products(ctx)
	if err != nil {
		return nil, err
	}
	machines, err := s.svc.Products.Machines(ctx)
	if err != nil {
		return nil, err
	}
	return &CatalogResult{TabletTypes: tts, Products: products, Machines: machines}, nil
}

func (s *appService) UpsertTabletType(ctx context.Context, actor core.Actor, req TabletTypeRequest) (int, error) {
	if err := authorize(actor, core.OpManageProducts); err != nil {
		return 0, err
	}
	if err := validateRequest(req); err != nil {
		return 0, err
	}
	item := req.InventoryItemID
	return s.svc.Products.UpsertTabletType(ctx, core.TabletType{Name: req.Name, InventoryItemID: &item, Category: req.Category})
}

func (s *appService) UpsertProduct(ctx context.Context, actor core.Actor, req ProductRequest) error {
	if err := authorize(actor, core.OpManageProducts); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	return s.svc.Products.UpsertProduct(ctx, core.ProductConfig{
		ProductName:        req.ProductName,
		PackagesPerDisplay: req.PackagesPerDisplay,
		TabletsPerPackage:  req.TabletsPerPackage,
		TabletsPerBottle:   req.TabletsPerBottle,
	}, req.InventoryItemID)
}

func (s *appService) UpsertMachine(ctx context.Context, actor core.Actor, req MachineRequest) (int, error) {
	if err := authorize(actor, core.OpManageProducts); err != nil {
		return 0, err
	}
	if err := validateRequest(req); err != nil {
		return 0, err
	}
	return s.svc.Products.UpsertMachine(ctx, core.Machine{Name: req.Name, CardsPerTurn: req.CardsPerTurn, IsActive: req.IsActive})
}

func (s *appService) SetSetting(ctx context.Context, actor core.Actor, key, value string) error {
	if err := authorize(actor, core.OpManageProducts); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return &ValidationError{Fields: map[string]string{"key": "required"}}
	}
	return s.svc.Products.SetSetting(ctx, key, value)
}
