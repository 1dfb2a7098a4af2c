package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type receivingService struct {
	pool *pgxpool.Pool
	agg  AggregationEngine
	log  logrus.FieldLogger
}

// NewReceivingService constructs a ReceivingService backed by PostgreSQL.
func NewReceivingService(pool *pgxpool.Pool, agg AggregationEngine, log logrus.FieldLogger) ReceivingService {
	return &receivingService{pool: pool, agg: agg, log: log}
}

func (s *receivingService) CreateReceive(ctx context.Context, poID *int, receivedBy string, boxes []BoxInput) (*Receive, error) {
	if err := validateBoxes(boxes); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var receiveID int
	if poID != nil {
		poNumber, err := lockOpenPOTx(ctx, tx, *poID)
		if err != nil {
			return nil, err
		}
		n, err := nextReceiveNumberTx(ctx, tx, *poID)
		if err != nil {
			return nil, err
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO receives (po_id, receive_number, receive_name, received_by)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			*poID, n, ReceiveName(poNumber, n), receivedBy,
		).Scan(&receiveID); err != nil {
			return nil, fmt.Errorf("insert receive for PO %s: %w", poNumber, err)
		}
	} else {
		if err := tx.QueryRow(ctx,
			"INSERT INTO receives (received_by) VALUES ($1) RETURNING id", receivedBy,
		).Scan(&receiveID); err != nil {
			return nil, fmt.Errorf("insert unassigned receive: %w", err)
		}
		if _, err := tx.Exec(ctx,
			"UPDATE receives SET receive_name = $2 WHERE id = $1",
			receiveID, UnassignedReceiveName(receiveID),
		); err != nil {
			return nil, fmt.Errorf("name receive %d: %w", receiveID, err)
		}
	}

	for _, box := range boxes {
		var boxID int
		if err := tx.QueryRow(ctx, `
			INSERT INTO small_boxes (receive_id, box_number, total_bags)
			VALUES ($1, $2, $3)
			RETURNING id`,
			receiveID, box.BoxNumber, len(box.Bags),
		).Scan(&boxID); err != nil {
			return nil, fmt.Errorf("insert box %d: %w", box.BoxNumber, err)
		}

		for _, bag := range box.Bags {
			var exists bool
			if err := tx.QueryRow(ctx,
				"SELECT EXISTS(SELECT 1 FROM tablet_types WHERE id = $1)", bag.TabletTypeID,
			).Scan(&exists); err != nil {
				return nil, fmt.Errorf("validate tablet type %d: %w", bag.TabletTypeID, err)
			}
			if !exists {
				return nil, fmt.Errorf("box %d bag %d: %w", box.BoxNumber, bag.BagNumber, notFound("tablet type", bag.TabletTypeID))
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO bags (small_box_id, bag_number, tablet_type_id, bag_label_count)
				VALUES ($1, $2, $3, $4)`,
				boxID, bag.BagNumber, bag.TabletTypeID, bag.LabelCount,
			); err != nil {
				return nil, fmt.Errorf("insert box %d bag %d: %w", box.BoxNumber, bag.BagNumber, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit receive: %w", err)
	}

	s.log.WithFields(logrus.Fields{"receive_id": receiveID, "po_id": poID, "boxes": len(boxes)}).Info("receive recorded")
	return s.GetReceive(ctx, receiveID)
}

// lockOpenPOTx locks a PO row and returns its number; closed POs are rejected.
func lockOpenPOTx(ctx context.Context, tx pgx.Tx, poID int) (string, error) {
	var poNumber string
	var closed bool
	if err := tx.QueryRow(ctx,
		"SELECT po_number, closed FROM purchase_orders WHERE id = $1 FOR UPDATE", poID,
	).Scan(&poNumber, &closed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", notFound("purchase order", poID)
		}
		return "", fmt.Errorf("lock purchase order %d: %w", poID, err)
	}
	if closed {
		return "", fmt.Errorf("purchase order %s is %w", poNumber, ErrClosed)
	}
	return poNumber, nil
}

const receiveSelect = `
	SELECT r.id, r.po_id, po.po_number, r.receive_number, r.receive_name, r.closed,
	       r.received_by, r.received_at
	FROM receives r
	LEFT JOIN purchase_orders po ON po.id = r.po_id`

func scanReceive(row pgx.Row, r *Receive) error {
	return row.Scan(&r.ID, &r.POID, &r.PONumber, &r.ReceiveNumber, &r.Name, &r.Closed,
		&r.ReceivedBy, &r.ReceivedAt)
}

func (s *receivingService) GetReceive(ctx context.Context, receiveID int) (*Receive, error) {
	r := &Receive{}
	if err := scanReceive(s.pool.QueryRow(ctx, receiveSelect+" WHERE r.id = $1", receiveID), r); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("receive", receiveID)
		}
		return nil, fmt.Errorf("get receive %d: %w", receiveID, err)
	}

	receives := []Receive{*r}
	if err := s.attachBoxes(ctx, receives); err != nil {
		return nil, err
	}
	return &receives[0], nil
}

func (s *receivingService) ListReceives(ctx context.Context, filter ReceiveFilter) ([]Receive, error) {
	query := receiveSelect + " WHERE true"
	var args []any
	if filter.POID != nil {
		args = append(args, *filter.POID)
		query += fmt.Sprintf(" AND r.po_id = $%d", len(args))
	}
	if filter.Unassigned {
		query += " AND r.po_id IS NULL"
	}
	if filter.OpenOnly {
		query += " AND NOT r.closed"
	}
	query += " ORDER BY r.received_at, r.id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list receives: %w", err)
	}
	defer rows.Close()

	var receives []Receive
	for rows.Next() {
		var r Receive
		if err := scanReceive(rows, &r); err != nil {
			return nil, fmt.Errorf("scan receive: %w", err)
		}
		receives = append(receives, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receives: %w", err)
	}

	if err := s.attachBoxes(ctx, receives); err != nil {
		return nil, err
	}
	return receives, nil
}

// attachBoxes loads boxes and bags for all receives with two queries.
func (s *receivingService) attachBoxes(ctx context.Context, receives []Receive) error {
	if len(receives) == 0 {
		return nil
	}
	ids := make([]int, len(receives))
	byReceive := make(map[int]int, len(receives))
	for i, r := range receives {
		ids[i] = r.ID
		byReceive[r.ID] = i
	}

	boxRows, err := s.pool.Query(ctx, `
		SELECT id, receive_id, box_number, total_bags
		FROM small_boxes
		WHERE receive_id = ANY($1)
		ORDER BY receive_id, box_number`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("query boxes: %w", err)
	}
	boxes, err := pgx.CollectRows(boxRows, func(row pgx.CollectableRow) (SmallBox, error) {
		var b SmallBox
		err := row.Scan(&b.ID, &b.ReceiveID, &b.BoxNumber, &b.TotalBags)
		return b, err
	})
	if err != nil {
		return fmt.Errorf("scan boxes: %w", err)
	}

	boxIDs := make([]int, len(boxes))
	boxIndex := make(map[int]int, len(boxes))
	for i, b := range boxes {
		boxIDs[i] = b.ID
		boxIndex[b.ID] = i
	}

	bagRows, err := s.pool.Query(ctx, `
		SELECT id, small_box_id, bag_number, tablet_type_id, bag_label_count, status,
		       zoho_receive_pushed, zoho_receive_id
		FROM bags
		WHERE small_box_id = ANY($1)
		ORDER BY small_box_id, bag_number, id`,
		boxIDs,
	)
	if err != nil {
		return fmt.Errorf("query bags: %w", err)
	}
	bags, err := pgx.CollectRows(bagRows, func(row pgx.CollectableRow) (Bag, error) {
		var b Bag
		err := row.Scan(&b.ID, &b.SmallBoxID, &b.BagNumber, &b.TabletTypeID, &b.LabelCount, &b.Status,
			&b.ExternalPushed, &b.ExternalReceiveID)
		return b, err
	})
	if err != nil {
		return fmt.Errorf("scan bags: %w", err)
	}

	for _, bag := range bags {
		i := boxIndex[bag.SmallBoxID]
		boxes[i].Bags = append(boxes[i].Bags, bag)
	}
	for _, box := range boxes {
		i := byReceive[box.ReceiveID]
		receives[i].Boxes = append(receives[i].Boxes, box)
	}
	return nil
}

func (s *receivingService) AssignReceiveToPO(ctx context.Context, receiveID, poID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockAggregationSharedTx(ctx, tx); err != nil {
		return err
	}

	var currentPO *int
	var closed bool
	if err := tx.QueryRow(ctx,
		"SELECT po_id, closed FROM receives WHERE id = $1 FOR UPDATE", receiveID,
	).Scan(&currentPO, &closed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("receive", receiveID)
		}
		return fmt.Errorf("lock receive %d: %w", receiveID, err)
	}
	if closed {
		return fmt.Errorf("receive %d is %w", receiveID, ErrClosed)
	}
	if currentPO != nil && *currentPO == poID {
		return nil
	}

	poNumber, err := lockOpenPOTx(ctx, tx, poID)
	if err != nil {
		return err
	}
	n, err := nextReceiveNumberTx(ctx, tx, poID)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE receives SET po_id = $2, receive_number = $3, receive_name = $4
		WHERE id = $1`,
		receiveID, poID, n, ReceiveName(poNumber, n),
	); err != nil {
		return fmt.Errorf("assign receive %d to PO %s: %w", receiveID, poNumber, err)
	}

	subs, err := loadSubmissions(ctx, tx, SubmissionFilter{ReceiveID: &receiveID}, true)
	if err != nil {
		return err
	}

	touched := []*int{currentPO, &poID}
	for i := range subs {
		sub := &subs[i]
		old, err := s.agg.RetractTx(ctx, tx, sub)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			"UPDATE warehouse_submissions SET assigned_po_id = $2, updated_at = NOW() WHERE id = $1",
			sub.ID, poID,
		); err != nil {
			return fmt.Errorf("move submission %d to PO %s: %w", sub.ID, poNumber, err)
		}
		prev := sub.AssignedPOID
		sub.AssignedPOID = &poID
		applied, err := s.agg.ApplyTx(ctx, tx, sub)
		if err != nil {
			return err
		}
		touched = append(touched, old, prev, applied)
	}

	if err := s.agg.RecomputeHeadersTx(ctx, tx, touched...); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit receive assignment: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"receive_id":  receiveID,
		"from_po_id":  currentPO,
		"to_po_id":    poID,
		"submissions": len(subs),
	}).Info("receive assigned to PO")
	return nil
}

func (s *receivingService) CloseReceive(ctx context.Context, receiveID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "UPDATE receives SET closed = true WHERE id = $1", receiveID)
	if err != nil {
		return fmt.Errorf("close receive %d: %w", receiveID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("receive", receiveID)
	}

	bags, err := tx.Exec(ctx, `
		UPDATE bags SET status = 'Closed'
		WHERE status <> 'Closed'
		  AND small_box_id IN (SELECT id FROM small_boxes WHERE receive_id = $1)`,
		receiveID,
	)
	if err != nil {
		return fmt.Errorf("close bags of receive %d: %w", receiveID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit receive close: %w", err)
	}

	s.log.WithFields(logrus.Fields{"receive_id": receiveID, "bags_closed": bags.RowsAffected()}).Info("receive closed")
	return nil
}

func (s *receivingService) CloseBag(ctx context.Context, bagID int) error {
	tag, err := s.pool.Exec(ctx, "UPDATE bags SET status = 'Closed' WHERE id = $1", bagID)
	if err != nil {
		return fmt.Errorf("close bag %d: %w", bagID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("bag", bagID)
	}
	return nil
}

func (s *receivingService) ReopenBag(ctx context.Context, bagID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var receiveClosed bool
	if err := tx.QueryRow(ctx, `
		SELECT r.closed
		FROM bags b
		JOIN small_boxes sb ON sb.id = b.small_box_id
		JOIN receives r     ON r.id = sb.receive_id
		WHERE b.id = $1
		FOR UPDATE OF b`,
		bagID,
	).Scan(&receiveClosed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("bag", bagID)
		}
		return fmt.Errorf("lock bag %d: %w", bagID, err)
	}
	if receiveClosed {
		return fmt.Errorf("bag %d belongs to a receive that is %w", bagID, ErrClosed)
	}

	if _, err := tx.Exec(ctx, "UPDATE bags SET status = 'Available' WHERE id = $1", bagID); err != nil {
		return fmt.Errorf("reopen bag %d: %w", bagID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bag reopen: %w", err)
	}

	s.log.WithField("bag_id", bagID).Info("bag reopened")
	return nil
}

func (s *receivingService) MarkBagPushed(ctx context.Context, bagID int, externalReceiveID string) error {
	if externalReceiveID == "" {
		return fmt.Errorf("external receive id is required")
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE bags SET zoho_receive_pushed = true, zoho_receive_id = $2 WHERE id = $1",
		bagID, externalReceiveID,
	)
	if err != nil {
		return fmt.Errorf("mark bag %d pushed: %w", bagID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("bag", bagID)
	}
	return nil
}
