package repo

import (
	"context"
	"fmt"
	"time"

	"adscope/internal/domain"
	"adscope/internal/infra"
	"adscope/internal/sqlinline"
)

// UsageRepoPG appends one usage event per processed job for quota accounting.
type UsageRepoPG struct {
	db infra.SQLExecutor
}

func NewUsageRepo(db infra.SQLExecutor) *UsageRepoPG {
	return &UsageRepoPG{db: db}
}

func (r *UsageRepoPG) RecordJob(ctx context.Context, userID, jobID, eventType string, success bool, latency time.Duration) error {
	_, err := r.db.Exec(ctx, sqlinline.QInsertUsageEvent,
		userID, jobID, eventType, success, latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("record usage event: %w", err)
	}
	return nil
}

var _ domain.UsageRecorder = (*UsageRepoPG)(nil)
