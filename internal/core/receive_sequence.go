package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// nextReceiveNumberTx allocates the next gapless receive number for a PO inside the
// caller's transaction. The sequence row is locked by the upsert until commit, so
// concurrent receives on the same PO are numbered one after the other.
func nextReceiveNumberTx(ctx context.Context, tx pgx.Tx, poID int) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		INSERT INTO receive_sequences (po_id, last_number)
		VALUES ($1, 1)
		ON CONFLICT (po_id)
		DO UPDATE SET last_number = receive_sequences.last_number + 1
		RETURNING last_number`,
		poID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("allocate receive number for PO %d: %w", poID, err)
	}
	return n, nil
}

// ReceiveName formats the human-readable receive name.
func ReceiveName(poNumber string, receiveNumber int) string {
	return fmt.Sprintf("%s-%d", poNumber, receiveNumber)
}

// UnassignedReceiveName names a receive that has no PO yet.
func UnassignedReceiveName(receiveID int) string {
	return fmt.Sprintf("UNASSIGNED-%d", receiveID)
}
