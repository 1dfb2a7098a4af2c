package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// aggregationLockKey guards PO line counts. Apply/Retract hold it shared;
// Recalculate holds it exclusively because it zeros and rebuilds every line.
const aggregationLockKey int64 = 7462840

func lockAggregationSharedTx(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock_shared($1)", aggregationLockKey); err != nil {
		return fmt.Errorf("acquire shared aggregation lock: %w", err)
	}
	return nil
}

func lockAggregationExclusiveTx(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", aggregationLockKey); err != nil {
		return fmt.Errorf("acquire exclusive aggregation lock: %w", err)
	}
	return nil
}

// lockBagNumberTx serializes match+apply for one physical bag label so two
// concurrent submissions cannot both see the same unique match. Uses the
// two-int4 key space, which does not overlap the bigint key above.
func lockBagNumberTx(ctx context.Context, tx pgx.Tx, tabletTypeID, bagNumber int) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1::int4, $2::int4)", tabletTypeID, bagNumber); err != nil {
		return fmt.Errorf("acquire bag lock (tablet type %d, bag %d): %w", tabletTypeID, bagNumber, err)
	}
	return nil
}
