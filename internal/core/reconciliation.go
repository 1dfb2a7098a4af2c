package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ReconciledSubmission is a previously ambiguous submission that now has a bag.
type ReconciledSubmission struct {
	SubmissionID int `json:"submission_id"`
	BagID        int `json:"bag_id"`
	POID         int `json:"po_id"`
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Examined       int                    `json:"examined"`
	Assigned       []ReconciledSubmission `json:"assigned"`
	StillAmbiguous int                    `json:"still_ambiguous"`
	NoMatch        int                    `json:"no_match"`
	Failed         []SkippedSubmission    `json:"failed"`
}

// ReconciliationService re-runs bag matching for submissions waiting on review.
type ReconciliationService interface {
	// Reconcile assigns every needs-review submission that now has exactly one
	// eligible bag. Each submission runs in its own transaction; a failure on one is
	// reported and the pass continues. Resolved submissions are never reopened.
	Reconcile(ctx context.Context) (*ReconcileReport, error)
}

type reconciliationService struct {
	pool    *pgxpool.Pool
	matcher BagMatcher
	agg     AggregationEngine
	log     logrus.FieldLogger
}

// NewReconciliationService constructs a ReconciliationService backed by PostgreSQL.
func NewReconciliationService(pool *pgxpool.Pool, matcher BagMatcher, agg AggregationEngine, log logrus.FieldLogger) ReconciliationService {
	return &reconciliationService{pool: pool, matcher: matcher, agg: agg, log: log}
}

func (s *reconciliationService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	review := true
	pending, err := loadSubmissions(ctx, s.pool, SubmissionFilter{NeedsReview: &review}, false)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{}
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++

		outcome, assigned, err := s.reconcileOne(ctx, p.ID)
		if err != nil {
			report.Failed = append(report.Failed, SkippedSubmission{SubmissionID: p.ID, Reason: err.Error()})
			s.log.WithFields(logrus.Fields{"submission_id": p.ID, "error": err.Error()}).
				Warn("reconciliation failed for submission")
			continue
		}
		switch outcome {
		case OutcomeAssigned:
			if assigned != nil {
				report.Assigned = append(report.Assigned, *assigned)
			}
		case OutcomeNeedsReview:
			report.StillAmbiguous++
		case OutcomeNoMatch:
			report.NoMatch++
		}
	}

	s.log.WithFields(logrus.Fields{
		"examined":        report.Examined,
		"assigned":        len(report.Assigned),
		"still_ambiguous": report.StillAmbiguous,
		"no_match":        report.NoMatch,
		"failed":          len(report.Failed),
	}).Info("reconciliation pass complete")
	return report, nil
}

// reconcileOne re-matches a single submission. Anything other than a unique match
// rolls back and leaves the submission untouched.
func (s *reconciliationService) reconcileOne(ctx context.Context, submissionID int) (MatchOutcome, *ReconciledSubmission, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationSharedTx(ctx, tx); err != nil {
		return "", nil, err
	}

	sub, err := loadSubmission(ctx, tx, submissionID, true)
	if err != nil {
		return "", nil, err
	}
	// Resolved by a manager since the list was read.
	if !sub.NeedsReview || sub.BagID != nil {
		return outcomeOf(sub), nil, nil
	}

	res, err := s.matcher.MatchTx(ctx, tx, MatchRequest{
		Kind:            sub.Counts.Kind,
		ProductName:     sub.ProductName,
		InventoryItemID: sub.InventoryItemID,
		BoxNumber:       sub.BoxNumber,
		BagNumber:       sub.BagNumber,
	})
	if err != nil {
		return "", nil, err
	}
	if res.Outcome != OutcomeAssigned {
		return res.Outcome, nil, nil
	}

	touched, err := attachBagTx(ctx, tx, s.agg, sub, res.Bag, false)
	if err != nil {
		return "", nil, err
	}
	if err := s.agg.RecomputeHeadersTx(ctx, tx, touched...); err != nil {
		return "", nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", nil, fmt.Errorf("commit reconciliation of submission %d: %w", submissionID, err)
	}

	poID := 0
	if res.Bag.POID != nil {
		poID = *res.Bag.POID
	}
	return OutcomeAssigned, &ReconciledSubmission{SubmissionID: submissionID, BagID: res.Bag.BagID, POID: poID}, nil
}
