package repo

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"adscope/internal/domain"
)

// simpleRow adapts a scan func to pgx.Row.
type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// fakeSQL records the last statement and serves canned rows.
type fakeSQL struct {
	lastQuery string
	lastArgs  []any
	row       simpleRow
	execErr   error
	rows      int64
}

func (f *fakeSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.lastQuery = query
	f.lastArgs = args
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("UPDATE " + strconv.FormatInt(f.rows, 10)), nil
}

func (f *fakeSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	f.lastQuery = query
	f.lastArgs = args
	return f.row
}

func (f *fakeSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	f.lastQuery = query
	f.lastArgs = args
	return nil, errors.New("not supported in this fake")
}

func TestPgInterval(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{time.Hour, "3600 seconds"},
		{8 * time.Second, "8 seconds"},
		{30 * 24 * time.Hour, "2592000 seconds"},
	}
	for _, tt := range tests {
		if got := pgInterval(tt.d); got != tt.want {
			t.Fatalf("pgInterval(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestReclaimStaleReportsAffectedRows(t *testing.T) {
	db := &fakeSQL{rows: 3}
	q := NewJobQueue(db)

	n, err := q.ReclaimStale(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if n != 3 {
		t.Fatalf("reclaimed = %d, want 3", n)
	}
	if len(db.lastArgs) != 1 || db.lastArgs[0] != "3600 seconds" {
		t.Fatalf("interval arg = %v", db.lastArgs)
	}
}

func TestFindProcessedDuplicateMiss(t *testing.T) {
	q := NewJobQueue(&fakeSQL{})

	_, err := q.FindProcessedDuplicate(context.Background(), "hash", "v4", "self")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRequeueSkipsEmptyBatch(t *testing.T) {
	db := &fakeSQL{}
	q := NewJobQueue(db)

	if err := q.Requeue(context.Background(), nil); err != nil {
		t.Fatalf("Requeue(nil): %v", err)
	}
	if db.lastQuery != "" {
		t.Fatal("empty requeue still issued a statement")
	}
}

func TestCacheGetDetachesResultBytes(t *testing.T) {
	stored := []byte(`{"classification":{"brand_guess":"Acme"}}`)
	db := &fakeSQL{row: simpleRow{scan: func(dest ...any) error {
		*dest[0].(*json.RawMessage) = stored
		return nil
	}}}
	cache := NewAnalysisCache(db)

	got, err := cache.Get(context.Background(), "h", "m", "v4", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	stored[2] = 'X' // mutate the backing buffer
	if string(got) != `{"classification":{"brand_guess":"Acme"}}` {
		t.Fatalf("cached result aliases the row buffer: %s", got)
	}
}

func TestCacheGetMiss(t *testing.T) {
	cache := NewAnalysisCache(&fakeSQL{})

	_, err := cache.Get(context.Background(), "h", "m", "v4", time.Hour)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLeaseAcquire(t *testing.T) {
	taken := &fakeSQL{row: simpleRow{scan: func(dest ...any) error {
		*dest[0].(*string) = "worker-loop"
		return nil
	}}}
	ok, err := NewLeaseRepo(taken).Acquire(context.Background(), "worker-loop", 8*time.Second)
	if err != nil || !ok {
		t.Fatalf("Acquire = (%v, %v), want taken", ok, err)
	}

	held := &fakeSQL{} // CAS matched no row: lease held elsewhere
	ok, err = NewLeaseRepo(held).Acquire(context.Background(), "worker-loop", 8*time.Second)
	if err != nil || ok {
		t.Fatalf("Acquire = (%v, %v), want held", ok, err)
	}
}
