package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// BagClassification compares a bag's packaged running total to its label count.
type BagClassification string

const (
	BagMatch BagClassification = "match"
	BagUnder BagClassification = "under"
	BagOver  BagClassification = "over"
)

// BagReportRow is one bag with the production counted against it.
// PackagedCount and MachineCount are calculator totals summed over the bag's
// submissions; Difference is PackagedCount minus LabelCount.
type BagReportRow struct {
	BagID           int               `json:"bag_id"`
	ReceiveID       int               `json:"receive_id"`
	ReceiveName     string            `json:"receive_name"`
	PONumber        *string           `json:"po_number,omitempty"`
	BoxNumber       int               `json:"box_number"`
	BagNumber       int               `json:"bag_number"`
	TabletType      string            `json:"tablet_type"`
	Status          BagStatus         `json:"status"`
	LabelCount      int               `json:"label_count"`
	PackagedCount   int               `json:"packaged_count"`
	DamagedCount    int               `json:"damaged_count"`
	MachineCount    int               `json:"machine_count"`
	Submissions     int               `json:"submissions"`
	Difference      int               `json:"difference"`
	VariancePercent decimal.Decimal   `json:"variance_percent"`
	Classification  BagClassification `json:"classification"`
	Unresolved      int               `json:"unresolved"` // submissions whose total could not be computed
}

// BagReportFilter selects bags. Zero values mean "no constraint".
type BagReportFilter struct {
	POID         *int
	ReceiveID    *int
	TabletTypeID *int
	OpenOnly     bool
}

// ClassifyBag classifies packaged against label within ±tolerance.
func ClassifyBag(labelCount, packaged, tolerance int) BagClassification {
	diff := packaged - labelCount
	switch {
	case diff < -tolerance:
		return BagUnder
	case diff > tolerance:
		return BagOver
	default:
		return BagMatch
	}
}

// VariancePercent is difference over label count as a percentage, one decimal place.
func VariancePercent(labelCount, difference int) decimal.Decimal {
	if labelCount == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(difference)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(labelCount))).
		Round(1)
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService provides read-only reporting over bags and submissions.
type ReportingService interface {
	// BagReport returns one row per bag, ordered by receive then box then bag.
	BagReport(ctx context.Context, filter BagReportFilter) ([]BagReportRow, error)

	// Tolerance is the label-count tolerance used for classification.
	Tolerance() int
}

// ── Implementation ────────────────────────────────────────────────────────────

type reportingService struct {
	pool      *pgxpool.Pool
	tolerance int
}

// NewReportingService constructs a ReportingService backed by the given pool.
func NewReportingService(pool *pgxpool.Pool, tolerance int) ReportingService {
	return &reportingService{pool: pool, tolerance: tolerance}
}

func (s *reportingService) Tolerance() int { return s.tolerance }

func (s *reportingService) BagReport(ctx context.Context, filter BagReportFilter) ([]BagReportRow, error) {
	query := `
		SELECT b.id, r.id, r.receive_name, po.po_number, sb.box_number, b.bag_number,
		       tt.tablet_type_name, b.status, b.bag_label_count
		FROM bags b
		JOIN small_boxes sb          ON sb.id = b.small_box_id
		JOIN receives r              ON r.id = sb.receive_id
		JOIN tablet_types tt         ON tt.id = b.tablet_type_id
		LEFT JOIN purchase_orders po ON po.id = r.po_id
		WHERE true`
	var args []any
	if filter.POID != nil {
		args = append(args, *filter.POID)
		query += fmt.Sprintf(" AND r.po_id = $%d", len(args))
	}
	if filter.ReceiveID != nil {
		args = append(args, *filter.ReceiveID)
		query += fmt.Sprintf(" AND r.id = $%d", len(args))
	}
	if filter.TabletTypeID != nil {
		args = append(args, *filter.TabletTypeID)
		query += fmt.Sprintf(" AND b.tablet_type_id = $%d", len(args))
	}
	if filter.OpenOnly {
		query += " AND b.status = 'Available' AND NOT r.closed"
	}
	query += " ORDER BY r.received_at, r.id, sb.box_number, b.bag_number, b.id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bag report: %w", err)
	}
	defer rows.Close()

	var report []BagReportRow
	index := make(map[int]int)
	var bagIDs []int
	for rows.Next() {
		var r BagReportRow
		if err := rows.Scan(&r.BagID, &r.ReceiveID, &r.ReceiveName, &r.PONumber, &r.BoxNumber,
			&r.BagNumber, &r.TabletType, &r.Status, &r.LabelCount); err != nil {
			return nil, fmt.Errorf("scan bag report row: %w", err)
		}
		index[r.BagID] = len(report)
		bagIDs = append(bagIDs, r.BagID)
		report = append(report, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bag report: %w", err)
	}
	if len(report) == 0 {
		return report, nil
	}

	subs, err := loadSubmissions(ctx, s.pool, SubmissionFilter{BagIDs: bagIDs}, false)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		i, ok := index[*sub.BagID]
		if !ok {
			continue
		}
		row := &report[i]
		row.Submissions++
		if sub.TotalsErr != nil {
			row.Unresolved++
			continue
		}
		switch sub.Counts.Kind {
		case KindPackaged:
			row.PackagedCount += sub.Totals.Good
			row.DamagedCount += sub.Totals.Damaged
		case KindMachine:
			row.MachineCount += sub.Totals.Good
			row.DamagedCount += sub.Totals.Damaged
		}
	}

	for i := range report {
		r := &report[i]
		r.Difference = r.PackagedCount - r.LabelCount
		r.VariancePercent = VariancePercent(r.LabelCount, r.Difference)
		r.Classification = ClassifyBag(r.LabelCount, r.PackagedCount, s.tolerance)
	}
	return report, nil
}
