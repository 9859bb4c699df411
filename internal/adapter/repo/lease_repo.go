package repo

import (
	"context"
	"fmt"
	"time"

	"adscope/internal/infra"
	"adscope/internal/sqlinline"
)

// LeaseRepoPG arbitrates the worker throttle with a compare-and-swap row.
// It is advisory only; claim-level locking remains the correctness guard.
type LeaseRepoPG struct {
	db infra.SQLExecutor
}

func NewLeaseRepo(db infra.SQLExecutor) *LeaseRepoPG {
	return &LeaseRepoPG{db: db}
}

// Acquire returns true when the named lease was taken, false when another
// invocation holds it within the ttl window.
func (r *LeaseRepoPG) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	row := r.db.QueryRow(ctx, sqlinline.QAcquireLease, name, pgInterval(ttl))
	var got string
	if err := row.Scan(&got); err != nil {
		if infra.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return true, nil
}
