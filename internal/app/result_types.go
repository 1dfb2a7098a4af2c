package app

import (
	"tablet-tracker/internal/core"

	"github.com/shopspring/decimal"
)

// UserSession is returned by AuthenticateUser and carried in the session token.
type UserSession struct {
	EmployeeID int    `json:"employee_id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
}

// UserResult is an employee profile.
type UserResult struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// SubmissionResult is returned by Submit and EditSubmission.
// Message explains a no-match in terms the floor can act on.
type SubmissionResult struct {
	Submission *core.Submission    `json:"submission"`
	Outcome    core.MatchOutcome   `json:"outcome"`
	Candidates []core.BagCandidate `json:"candidates,omitempty"`
	Inherited  bool                `json:"inherited"`
	Message    string              `json:"message,omitempty"`
}

// SubmissionsResult is returned by ListSubmissions.
type SubmissionsResult struct {
	Submissions []core.Submission `json:"submissions"`
	Unresolved  int               `json:"unresolved"` // rows whose total could not be computed
}

// ReviewItem is one submission waiting on a manager decision.
type ReviewItem struct {
	Submission core.Submission     `json:"submission"`
	Candidates []core.BagCandidate `json:"candidates"`
	// Problem is set when the candidates could not be listed, e.g. the product
	// lost its configuration after the submission was saved.
	Problem string `json:"problem,omitempty"`
}

// ReviewQueueResult is returned by ReviewQueue.
type ReviewQueueResult struct {
	Items []ReviewItem `json:"items"`
}

// CloseReceiveResult is returned by CloseReceive. Reconciliation is nil when the
// pass was skipped because another instance was already running one.
type CloseReceiveResult struct {
	ReceiveID      int                   `json:"receive_id"`
	Reconciliation *core.ReconcileReport `json:"reconciliation,omitempty"`
}

// POResult is a purchase order with its derived completion percentage.
type POResult struct {
	PurchaseOrder   *core.PurchaseOrder `json:"purchase_order"`
	PercentComplete decimal.Decimal     `json:"percent_complete"`
}

// POListResult is returned by ListPOs.
type POListResult struct {
	Orders []POResult `json:"orders"`
}

// BagReportResult is returned by BagReport.
type BagReportResult struct {
	Rows      []core.BagReportRow `json:"rows"`
	Tolerance int                 `json:"tolerance"`
	Matched   int                 `json:"matched"`
	Under     int                 `json:"under"`
	Over      int                 `json:"over"`
}

// CatalogResult lists the configuration a submission form needs.
type CatalogResult struct {
	TabletTypes []core.TabletType    `json:"tablet_types"`
	Products    []core.ProductConfig `json:"products"`
	Machines    []core.Machine       `json:"machines"`
}
