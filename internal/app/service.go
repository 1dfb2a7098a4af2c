package app

import (
	"context"
	"errors"

	"tablet-tracker/internal/core"
)

var (
	// ErrForbidden is returned when the actor's role does not allow the operation.
	ErrForbidden = errors.New("operation not permitted for this role")

	// ErrJobRunning is returned when a whole-table job is already running elsewhere.
	ErrJobRunning = errors.New("job is already running")
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
//
// Every operation takes the Actor it runs as; role checks happen here and nowhere else.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns an employee profile by ID.
	GetUser(ctx context.Context, employeeID int) (*UserResult, error)

	// CreateEmployee adds an employee with a bcrypt-hashed password.
	CreateEmployee(ctx context.Context, actor core.Actor, req CreateEmployeeRequest) (*UserResult, error)

	// ── Submissions ──────────────────────────────────────────────────────────

	// Submit records a production submission and matches it to a bag.
	Submit(ctx context.Context, actor core.Actor, req SubmitRequest) (*SubmissionResult, error)

	// EditSubmission changes a submission's fields, re-applying its counts.
	EditSubmission(ctx context.Context, actor core.Actor, submissionID int, req EditSubmissionRequest) (*SubmissionResult, error)

	// DeleteSubmission retracts and removes a submission.
	DeleteSubmission(ctx context.Context, actor core.Actor, submissionID int) error

	// GetSubmission returns one submission with its computed totals.
	GetSubmission(ctx context.Context, actor core.Actor, submissionID int) (*core.Submission, error)

	// ListSubmissions returns submissions. Warehouse staff only see their own.
	ListSubmissions(ctx context.Context, actor core.Actor, filter core.SubmissionFilter) (*SubmissionsResult, error)

	// ReviewQueue lists submissions waiting on manager review with their candidate bags.
	ReviewQueue(ctx context.Context, actor core.Actor) (*ReviewQueueResult, error)

	// AssignBag resolves a submission to a manager-chosen bag.
	AssignBag(ctx context.Context, actor core.Actor, submissionID, bagID int) (*core.Submission, error)

	// VerifyAssignment locks the submission's PO assignment.
	VerifyAssignment(ctx context.Context, actor core.Actor, submissionID int) error

	// ReassignSubmission moves a submission's counts to another PO.
	ReassignSubmission(ctx context.Context, actor core.Actor, submissionID, poID int) error

	// ── Receiving ────────────────────────────────────────────────────────────

	CreateReceive(ctx context.Context, actor core.Actor, req CreateReceiveRequest) (*core.Receive, error)
	GetReceive(ctx context.Context, actor core.Actor, receiveID int) (*core.Receive, error)
	ListReceives(ctx context.Context, actor core.Actor, filter core.ReceiveFilter) ([]core.Receive, error)
	AssignReceive(ctx context.Context, actor core.Actor, receiveID, poID int) error

	// CloseReceive closes a receive and its bags, then runs a reconciliation pass
	// since closing can leave ambiguous submissions with a single candidate.
	CloseReceive(ctx context.Context, actor core.Actor, receiveID int) (*CloseReceiveResult, error)

	CloseBag(ctx context.Context, actor core.Actor, bagID int) error
	ReopenBag(ctx context.Context, actor core.Actor, bagID int) error
	MarkBagPushed(ctx context.Context, actor core.Actor, bagID int, externalReceiveID string) error

	// ── Purchase orders ──────────────────────────────────────────────────────

	SyncPO(ctx context.Context, actor core.Actor, req SyncPORequest) (*POResult, error)
	GetPO(ctx context.Context, actor core.Actor, poID int) (*POResult, error)
	ListPOs(ctx context.Context, actor core.Actor, filter core.POFilter) (*POListResult, error)
	SetPOStatus(ctx context.Context, actor core.Actor, poID int, status core.POStatus) error
	CreateOversPO(ctx context.Context, actor core.Actor, parentPOID int) (*POResult, error)

	// PurgePO deletes a PO, returning how many submissions were unassigned.
	PurgePO(ctx context.Context, actor core.Actor, poID int) (int, error)

	// ── Whole-table jobs (one instance at a time across processes) ───────────

	Recalculate(ctx context.Context, actor core.Actor) (*core.RecalcReport, error)
	Reconcile(ctx context.Context, actor core.Actor) (*core.ReconcileReport, error)
	SequentialFill(ctx context.Context, actor core.Actor, inventoryItemID string) (*core.FillReport, error)

	// ── Reports ──────────────────────────────────────────────────────────────

	BagReport(ctx context.Context, actor core.Actor, filter core.BagReportFilter) (*BagReportResult, error)

	// ── Products and settings ────────────────────────────────────────────────

	ListCatalog(ctx context.Context, actor core.Actor) (*CatalogResult, error)
	UpsertTabletType(ctx context.Context, actor core.Actor, req TabletTypeRequest) (int, error)
	UpsertProduct(ctx context.Context, actor core.Actor, req ProductRequest) error
	UpsertMachine(ctx context.Context, actor core.Actor, req MachineRequest) (int, error)
	SetSetting(ctx context.Context, actor core.Actor, key, value string) error
}
