package credits

import (
	"context"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// UsageEvent is one recorded generation attempt. Input images are never part
// of it; only outcome metadata survives the job.
type UsageEvent struct {
	UserID    string
	JobID     string
	EventType string
	Success   bool
	// Billable is set whenever the remote model produced an output, even if
	// delivering that output to the user later failed. The credit pays for
	// the generation, not the download.
	Billable    bool
	FailureKind string
	Latency     time.Duration
}

// Store is the authoritative credit ledger. The server owns decrement; the
// client side of the product never mutates a balance directly.
type Store interface {
	Balance(ctx context.Context, userID string) (domain.CreditBalance, error)
	ConsumeCredit(ctx context.Context, userID string) error
	InsertUsageEvent(ctx context.Context, ev UsageEvent) error
}

// PGStore implements Store against Postgres through the SQL runner.
type PGStore struct {
	runner infra.SQLExecutor
}

func NewPGStore(runner infra.SQLExecutor) *PGStore {
	return &PGStore{runner: runner}
}

func (s *PGStore) Balance(ctx context.Context, userID string) (domain.CreditBalance, error) {
	row := s.runner.QueryRow(ctx, sqlinline.QSelectCreditBalance, userID)
	var granted, used int
	if err := row.Scan(&granted, &used); err != nil {
		if infra.IsNoRows(err) {
			// Authenticated user without a ledger row: a known zero balance,
			// not an unknown one.
			return domain.CreditBalance{Known: true}, nil
		}
		return domain.CreditBalance{}, fmt.Errorf("select balance: %w", err)
	}
	return domain.CreditBalance{Granted: granted, Used: used, Known: true}, nil
}

func (s *PGStore) ConsumeCredit(ctx context.Context, userID string) error {
	tag, err := s.runner.Exec(ctx, sqlinline.QConsumeCredit, userID)
	if err != nil {
		return fmt.Errorf("consume credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Server-side rejection: the conditional update is the defense in
		// depth behind the client-side gate.
		return domain.ErrQuotaExhausted
	}
	return nil
}

func (s *PGStore) InsertUsageEvent(ctx context.Context, ev UsageEvent) error {
	_, err := s.runner.Exec(ctx, sqlinline.QInsertUsageEvent,
		ev.UserID, ev.JobID, ev.EventType, ev.Success, ev.Billable, ev.FailureKind, ev.Latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

var _ Store = (*PGStore)(nil)
