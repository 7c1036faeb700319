package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propdesk/internal/domain"
	"propdesk/internal/lock"
	"propdesk/internal/repository/memory"
)

// gatedPrices blocks every bulk quote until released, so a test can hold an
// evaluation in flight while more triggers arrive.
type gatedPrices struct {
	*stubPriceService
	bulkCalls int32
	entered   chan struct{}
	release   chan struct{}
}

func newGatedPrices() *gatedPrices {
	return &gatedPrices{
		stubPriceService: newStubPrices(),
		entered:          make(chan struct{}, 1),
		release:          make(chan struct{}),
	}
}

func (g *gatedPrices) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.PriceQuote, error) {
	atomic.AddInt32(&g.bulkCalls, 1)
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.stubPriceService.GetQuotes(ctx, symbols)
}

func seedOpenPosition(t *testing.T, store *memory.Store, accountID uuid.UUID) {
	t.Helper()

	err := store.SavePosition(context.Background(), &domain.Position{
		ID:            uuid.New(),
		AccountID:     accountID,
		Symbol:        "BTCUSDT",
		Side:          domain.SideLong,
		EntryPrice:    dec("50000"),
		Quantity:      dec("0.1"),
		Leverage:      dec("10"),
		CurrentPrice:  dec("50000"),
		UnrealizedPnL: decimal.Zero,
		Status:        domain.PositionOpen,
		OpenedAt:      time.Now(),
	})
	require.NoError(t, err)
}

func TestMonitorTrigger(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)

	result, err := env.monitor.Trigger(context.Background(), account.ID)
	require.NoError(t, err)
	assert.False(t, result.Liquidated)
	assert.True(t, dec("50000").Equal(result.Equity))
}

func TestMonitorTriggerCoalescesConcurrentRequests(t *testing.T) {
	store := memory.NewStore()
	prices := newGatedPrices()
	prices.set("BTCUSDT", "50500")
	alerts := &recordingPublisher{}
	locks := lock.NewKeyed()

	risk := NewRiskService(store.Accounts(), store.Positions(), store.Trades(), store.SnapshotsRepo(), prices, alerts, store, locks, 5*time.Second)
	monitor := NewMonitor(risk, store.Accounts())

	env := &testEnv{store: store}
	account := env.newActiveAccount(t)
	seedOpenPosition(t, store, account.ID)

	ctx := context.Background()
	const callers = 5
	results := make([]*EvaluationResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = monitor.Trigger(ctx, account.ID)
		}(i)
	}

	// Hold the first evaluation inside the price fetch until every caller
	// had a chance to join it.
	<-prices.entered
	time.Sleep(50 * time.Millisecond)
	close(prices.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		assert.True(t, dec("50500").Equal(results[i].Equity), "caller %d got %s", i, results[i].Equity)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&prices.bulkCalls), "one evaluation served all callers")
	assert.Len(t, store.Snapshots(account.ID), 1)
}

func TestMonitorSweep(t *testing.T) {
	env := newTestEnv(t)
	first := env.newActiveAccount(t)
	second := env.newActiveAccount(t)

	pending := env.newActiveAccount(t)
	pending.Status = domain.AccountPending
	require.NoError(t, env.store.Save(context.Background(), pending))

	require.NoError(t, env.monitor.Sweep(context.Background()))

	assert.Len(t, env.store.Snapshots(first.ID), 1)
	assert.Len(t, env.store.Snapshots(second.ID), 1)
	assert.Empty(t, env.store.Snapshots(pending.ID), "inactive accounts are skipped")
}

func TestMonitorSweepIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	healthy := env.newActiveAccount(t)

	// One active account whose evaluation liquidates, one healthy.
	breached := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")
	_, err := env.trade.OpenTrade(context.Background(), OpenTradeInput{
		AccountID: breached.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		Quantity:  dec("0.1"),
		Leverage:  dec("10"),
	})
	require.NoError(t, err)
	env.prices.set("BTCUSDT", "45000")

	require.NoError(t, env.monitor.Sweep(context.Background()))

	stored, err := env.store.GetByID(context.Background(), breached.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountFailed, stored.Status)

	assert.Len(t, env.store.Snapshots(healthy.ID), 1, "healthy account still evaluated")
}
