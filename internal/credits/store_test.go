package credits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"server/internal/domain"
)

type stubExecutor struct {
	execQuery string
	execArgs  []any
	execTag   pgconn.CommandTag
	execErr   error
	rowErr    error
	rowScan   func(dest ...any) error
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execQuery = query
	s.execArgs = args
	return s.execTag, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return scanFunc(func(dest ...any) error {
		if s.rowErr != nil {
			return s.rowErr
		}
		return s.rowScan(dest...)
	})
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

func TestInsertUsageEventPersistsBillable(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	store := NewPGStore(exec)

	ev := UsageEvent{
		UserID:      "8c7c46b2-3e06-4f6b-9f6d-1a6b9f0c1234",
		JobID:       "job-1",
		EventType:   "tryon_generate",
		Success:     false,
		Billable:    true,
		FailureKind: "downstream_fetch",
		Latency:     1500 * time.Millisecond,
	}
	if err := store.InsertUsageEvent(context.Background(), ev); err != nil {
		t.Fatalf("InsertUsageEvent error: %v", err)
	}

	want := []any{ev.UserID, ev.JobID, ev.EventType, false, true, "downstream_fetch", int64(1500)}
	if len(exec.execArgs) != len(want) {
		t.Fatalf("exec args = %v, want %v", exec.execArgs, want)
	}
	for i := range want {
		if exec.execArgs[i] != want[i] {
			t.Fatalf("arg[%d] = %v, want %v", i, exec.execArgs[i], want[i])
		}
	}
}

func TestConsumeCreditNoRowsUpdatedIsQuotaExhausted(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 0")}
	store := NewPGStore(exec)

	err := store.ConsumeCredit(context.Background(), "user-1")
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("error = %v, want ErrQuotaExhausted", err)
	}
}

func TestBalanceMissingLedgerRowIsKnownZero(t *testing.T) {
	exec := &stubExecutor{rowErr: pgx.ErrNoRows}
	store := NewPGStore(exec)

	balance, err := store.Balance(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if !balance.Known {
		t.Fatal("missing ledger row must still be a known balance")
	}
	if balance.Remaining() != 0 {
		t.Fatalf("remaining = %d, want 0", balance.Remaining())
	}
}
