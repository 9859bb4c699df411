package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"adscope/internal/domain"
	"adscope/internal/infra"
	"adscope/internal/sqlinline"
)

// JobQueuePG implements domain.JobQueue over PostgreSQL. All mutual exclusion
// lives in the SQL: the claim query locks rows with SKIP LOCKED so concurrent
// invocations never overlap.
type JobQueuePG struct {
	db infra.SQLExecutor
}

func NewJobQueue(db infra.SQLExecutor) *JobQueuePG {
	return &JobQueuePG{db: db}
}

// ReclaimStale returns zombie jobs (stuck in processing past olderThan) to
// the queue and reports how many were recovered.
func (q *JobQueuePG) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := q.db.Exec(ctx, sqlinline.QReclaimStaleJobs, pgInterval(olderThan))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ClaimBatch atomically claims up to n queued jobs. The statement commits
// wholly or not at all. A client-side scan failure after commit can leave
// claimed rows in processing with no holder; ReclaimStale returns them to
// queued once the zombie window passes.
func (q *JobQueuePG) ClaimBatch(ctx context.Context, n int) ([]domain.Job, error) {
	rows, err := q.db.Query(ctx, sqlinline.QClaimJobBatch, n)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("claim batch scan: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim batch rows: %w", err)
	}
	return jobs, nil
}

// Requeue resets still-processing jobs back to queued. Jobs that already
// reached a terminal state are left alone.
func (q *JobQueuePG) Requeue(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := q.db.Exec(ctx, sqlinline.QRequeueJobs, ids); err != nil {
		return fmt.Errorf("requeue jobs: %w", err)
	}
	return nil
}

func (q *JobQueuePG) MarkProcessed(ctx context.Context, id, mediaHash, brand string, digest json.RawMessage) error {
	if _, err := q.db.Exec(ctx, sqlinline.QMarkJobProcessed, id, mediaHash, digest, brand); err != nil {
		return fmt.Errorf("mark job processed: %w", err)
	}
	return nil
}

func (q *JobQueuePG) MarkFailed(ctx context.Context, id string, status domain.JobStatus, digest json.RawMessage) error {
	if _, err := q.db.Exec(ctx, sqlinline.QMarkJobFailed, id, string(status), digest); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// FindProcessedDuplicate looks for a different processed job with the same
// media hash and prompt version whose digest can be reused verbatim.
func (q *JobQueuePG) FindProcessedDuplicate(ctx context.Context, mediaHash, promptVersion, excludeID string) (*domain.Job, error) {
	row := q.db.QueryRow(ctx, sqlinline.QFindProcessedDuplicate, mediaHash, promptVersion, excludeID)
	job, err := scanJob(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find processed duplicate: %w", err)
	}
	return &job, nil
}

// RecentBrandDigests fetches up to limit processed jobs for the brand,
// excluding the current job, newest first. Used to build the anomaly baseline.
func (q *JobQueuePG) RecentBrandDigests(ctx context.Context, brand, excludeID string, limit int) ([]domain.Job, error) {
	rows, err := q.db.Query(ctx, sqlinline.QRecentBrandDigests, brand, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent brand digests: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("recent brand digests scan: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Create inserts a new queued job (the ingest entrypoint).
func (q *JobQueuePG) Create(ctx context.Context, job *domain.Job) error {
	_, err := q.db.Exec(ctx, sqlinline.QInsertJob,
		job.ID, job.UserID, job.MediaURL, string(job.MediaKind), job.PromptVersion, job.Brand)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (q *JobQueuePG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := q.db.QueryRow(ctx, sqlinline.QGetJobByID, id)
	job, err := scanJob(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

func scanJob(row pgx.Row) (domain.Job, error) {
	var job domain.Job
	var kind, status string
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.MediaURL,
		&kind,
		&job.PromptVersion,
		&status,
		&job.MediaHash,
		&job.Digest,
		&job.Brand,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}
	job.MediaKind = domain.MediaKind(kind)
	job.Status = domain.JobStatus(status)
	// Digest bytes come from pgx's row buffer; detach them.
	job.Digest = append(json.RawMessage(nil), job.Digest...)
	return job, nil
}

func pgInterval(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d.Seconds()))
}

var _ domain.JobQueue = (*JobQueuePG)(nil)
