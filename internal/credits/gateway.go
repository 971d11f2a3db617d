package credits

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"server/internal/domain"
)

const (
	balanceCacheTTL    = 30 * time.Second
	balanceCachePrefix = "tryon:balance:"
)

// Gateway reads per-user try-on balances and settles jobs. Balances are only
// ever read from the server; after a job reaches a terminal state the gateway
// re-queries instead of decrementing optimistically, so retries and failures
// cannot drift the client's view away from server truth.
type Gateway struct {
	store  Store
	cache  *redis.Client
	logger zerolog.Logger
}

// NewGateway wires a gateway over the ledger store. cache may be nil.
func NewGateway(store Store, cache *redis.Client, logger zerolog.Logger) *Gateway {
	return &Gateway{store: store, cache: cache, logger: logger}
}

// Balance returns the user's balance. Anonymous sessions get the unknown
// sentinel, never an error: browsing the try-on feature while logged out is
// allowed, only generation is gated.
func (g *Gateway) Balance(ctx context.Context, userID string) (domain.CreditBalance, error) {
	if userID == "" {
		return domain.BalanceUnknown, nil
	}
	if cached, ok := g.cachedBalance(ctx, userID); ok {
		return cached, nil
	}
	balance, err := g.store.Balance(ctx, userID)
	if err != nil {
		// Authenticated fetch failures stay visible and retryable.
		return domain.CreditBalance{}, err
	}
	g.setCachedBalance(ctx, userID, balance)
	return balance, nil
}

// Settle records the terminal outcome of a job: a usage event always, a
// server-side credit decrement when the generation was billable, and a cache
// invalidation so the next Balance read reflects authoritative state.
func (g *Gateway) Settle(ctx context.Context, ev UsageEvent) error {
	if err := g.store.InsertUsageEvent(ctx, ev); err != nil {
		g.logger.Error().Err(err).Str("job_id", ev.JobID).Msg("credits: usage event insert failed")
	}
	g.invalidate(ctx, ev.UserID)

	if !ev.Billable {
		return nil
	}
	if err := g.store.ConsumeCredit(ctx, ev.UserID); err != nil {
		if errors.Is(err, domain.ErrQuotaExhausted) {
			// The client gate raced another session; the server already
			// refused, which is the behavior we want.
			g.logger.Warn().Str("user_id", ev.UserID).Msg("credits: decrement refused by ledger")
			return err
		}
		return err
	}
	g.invalidate(ctx, ev.UserID)
	return nil
}

func (g *Gateway) cachedBalance(ctx context.Context, userID string) (domain.CreditBalance, bool) {
	if g.cache == nil {
		return domain.CreditBalance{}, false
	}
	raw, err := g.cache.Get(ctx, balanceCachePrefix+userID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			g.logger.Warn().Err(err).Msg("credits: balance cache read failed")
		}
		return domain.CreditBalance{}, false
	}
	var balance domain.CreditBalance
	if err := json.Unmarshal(raw, &balance); err != nil {
		return domain.CreditBalance{}, false
	}
	return balance, true
}

func (g *Gateway) setCachedBalance(ctx context.Context, userID string, balance domain.CreditBalance) {
	if g.cache == nil {
		return
	}
	raw, err := json.Marshal(balance)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, balanceCachePrefix+userID, raw, balanceCacheTTL).Err(); err != nil {
		g.logger.Warn().Err(err).Msg("credits: balance cache write failed")
	}
}

func (g *Gateway) invalidate(ctx context.Context, userID string) {
	if g.cache == nil || userID == "" {
		return
	}
	if err := g.cache.Del(ctx, balanceCachePrefix+userID).Err(); err != nil {
		g.logger.Warn().Err(err).Msg("credits: balance cache invalidation failed")
	}
}
