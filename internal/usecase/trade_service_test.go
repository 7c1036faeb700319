package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propdesk/internal/domain"
)

func TestOpenTrade(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")
	ctx := context.Background()

	position, err := env.trade.OpenTrade(ctx, OpenTradeInput{
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		Quantity:  dec("0.1"),
		Leverage:  dec("10"),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PositionOpen, position.Status)
	assert.True(t, dec("50000").Equal(position.EntryPrice), "entry price")
	assert.True(t, position.UnrealizedPnL.IsZero(), "fresh position has no PnL")

	// The position, its ledger entry, and the counter land together.
	open, err := env.store.GetOpenByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)

	trades, err := env.store.GetTradesByAccount(ctx, account.ID, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, position.ID, trades[0].PositionID)
	assert.Equal(t, domain.TradeOpen, trades[0].Status)

	stored, err := env.store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalTrades)
	assert.True(t, dec("50000").Equal(stored.Balance), "balance moves only on realized PnL")
}

func TestOpenTradeInsufficientMargin(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")
	ctx := context.Background()

	// Margin 50000*10/1 = 500000, far above 95% of the 50000 balance.
	_, err := env.trade.OpenTrade(ctx, OpenTradeInput{
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		Quantity:  dec("10"),
		Leverage:  dec("1"),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientMargin)

	// A rejected open writes nothing.
	open, err := env.store.GetOpenByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, open)

	stored, err := env.store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.TotalTrades)
}

func TestOpenTradeMarginHeadroomBoundary(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")
	ctx := context.Background()

	// Margin 50000*0.95/1 = 47500 = exactly 95% of balance: allowed.
	_, err := env.trade.OpenTrade(ctx, OpenTradeInput{
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		Quantity:  dec("0.95"),
		Leverage:  dec("1"),
	})
	assert.NoError(t, err)
}

func TestOpenTradeAccountNotActive(t *testing.T) {
	env := newTestEnv(t)
	env.prices.set("BTCUSDT", "50000")
	ctx := context.Background()

	for _, status := range []string{domain.AccountPending, domain.AccountPassed, domain.AccountFailed} {
		account := env.newActiveAccount(t)
		account.Status = status
		require.NoError(t, env.store.Save(ctx, account))

		_, err := env.trade.OpenTrade(ctx, OpenTradeInput{
			AccountID: account.ID,
			Symbol:    "BTCUSDT",
			Side:      domain.SideLong,
			Quantity:  dec("0.1"),
			Leverage:  dec("10"),
		})
		assert.ErrorIs(t, err, domain.ErrAccountNotActive, "status %s", status)
	}
}

func TestOpenTradeLeverageCap(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")

	_, err := env.trade.OpenTrade(context.Background(), OpenTradeInput{
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		Quantity:  dec("0.1"),
		Leverage:  dec("101"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOpenTradeValidation(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")
	ctx := context.Background()

	tests := []struct {
		name string
		in   OpenTradeInput
	}{
		{"empty symbol", OpenTradeInput{AccountID: account.ID, Symbol: "  ", Side: domain.SideLong, Quantity: dec("1"), Leverage: dec("1")}},
		{"unknown side", OpenTradeInput{AccountID: account.ID, Symbol: "BTCUSDT", Side: "sideways", Quantity: dec("1"), Leverage: dec("1")}},
		{"zero quantity", OpenTradeInput{AccountID: account.ID, Symbol: "BTCUSDT", Side: domain.SideLong, Quantity: dec("0"), Leverage: dec("1")}},
		{"negative quantity", OpenTradeInput{AccountID: account.ID, Symbol: "BTCUSDT", Side: domain.SideShort, Quantity: dec("-1"), Leverage: dec("1")}},
		{"leverage below one", OpenTradeInput{AccountID: account.ID, Symbol: "BTCUSDT", Side: domain.SideLong, Quantity: dec("1"), Leverage: dec("0.5")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.trade.OpenTrade(ctx, tt.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestOpenTradePriceUnavailableWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	ctx := context.Background()

	_, err := env.trade.OpenTrade(ctx, OpenTradeInput{
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		Quantity:  dec("0.1"),
		Leverage:  dec("10"),
	})
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)

	open, err := env.store.GetOpenByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestCloseTrade(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")
	ctx := context.Background()

	position, err := env.trade.OpenTrade(ctx, OpenTradeInput{
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		Quantity:  dec("0.1"),
		Leverage:  dec("10"),
	})
	require.NoError(t, err)

	env.prices.set("BTCUSDT", "51000")

	result, err := env.trade.CloseTrade(ctx, account.ID, position.ID)
	require.NoError(t, err)

	// (51000-50000)*0.1*10 = 1000
	assert.True(t, dec("1000").Equal(result.RealizedPnL), "realized PnL, got %s", result.RealizedPnL)
	assert.True(t, dec("51000").Equal(result.NewBalance), "new balance, got %s", result.NewBalance)

	closed, err := env.store.GetPositionByID(ctx, position.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionClosed, closed.Status)
	require.NotNil(t, closed.CloseReason)
	assert.Equal(t, domain.ReasonManual, *closed.CloseReason)
	require.NotNil(t, closed.ClosedAt)

	trades, err := env.store.GetTradesByAccount(ctx, account.ID, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeClosed, trades[0].Status)
	require.NotNil(t, trades[0].ExitPrice)
	assert.True(t, dec("51000").Equal(*trades[0].ExitPrice))

	stored, err := env.store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, dec("51000").Equal(stored.Balance))
	assert.True(t, dec("1000").Equal(stored.ProfitLoss))
	assert.Equal(t, 1, stored.WinningTrades)
	assert.Equal(t, 0, stored.LosingTrades)
}

func TestCloseTradeLossCountsAgainst(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")
	ctx := context.Background()

	position, err := env.trade.OpenTrade(ctx, OpenTradeInput{
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideShort,
		Quantity:  dec("0.1"),
		Leverage:  dec("10"),
	})
	require.NoError(t, err)

	// Short loses when price rises.
	env.prices.set("BTCUSDT", "50500")

	result, err := env.trade.CloseTrade(ctx, account.ID, position.ID)
	require.NoError(t, err)
	assert.True(t, dec("-500").Equal(result.RealizedPnL), "got %s", result.RealizedPnL)

	stored, err := env.store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.WinningTrades)
	assert.Equal(t, 1, stored.LosingTrades)
	assert.True(t, dec("49500").Equal(stored.Balance))
}

func TestCloseTradeTwice(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")
	ctx := context.Background()

	position, err := env.trade.OpenTrade(ctx, OpenTradeInput{
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		Quantity:  dec("0.1"),
		Leverage:  dec("10"),
	})
	require.NoError(t, err)

	_, err = env.trade.CloseTrade(ctx, account.ID, position.ID)
	require.NoError(t, err)

	_, err = env.trade.CloseTrade(ctx, account.ID, position.ID)
	assert.ErrorIs(t, err, domain.ErrPositionNotOpen)

	// The balance moved exactly once.
	stored, err := env.store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, dec("50000").Equal(stored.Balance))
}

func TestCloseTradeConcurrentSettlesOnce(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")
	ctx := context.Background()

	position, err := env.trade.OpenTrade(ctx, OpenTradeInput{
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		Quantity:  dec("0.1"),
		Leverage:  dec("10"),
	})
	require.NoError(t, err)

	env.prices.set("BTCUSDT", "51000")

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.trade.CloseTrade(ctx, account.ID, position.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrPositionNotOpen)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one close settles")

	stored, err := env.store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, dec("51000").Equal(stored.Balance), "PnL applied exactly once, got %s", stored.Balance)
	assert.Equal(t, 1, stored.WinningTrades)
}

func TestCloseTradeWrongAccount(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	other := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")
	ctx := context.Background()

	position, err := env.trade.OpenTrade(ctx, OpenTradeInput{
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		Quantity:  dec("0.1"),
		Leverage:  dec("10"),
	})
	require.NoError(t, err)

	_, err = env.trade.CloseTrade(ctx, other.ID, position.ID)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)

	_, err = env.trade.CloseTrade(ctx, account.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
}

func TestCloseTradePriceUnavailableLeavesPositionOpen(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "50000")
	ctx := context.Background()

	position, err := env.trade.OpenTrade(ctx, OpenTradeInput{
		AccountID: account.ID,
		Symbol:    "BTCUSDT",
		Side:      domain.SideLong,
		Quantity:  dec("0.1"),
		Leverage:  dec("10"),
	})
	require.NoError(t, err)

	env.prices.fail(domain.ErrPriceUnavailable)
	_, err = env.trade.CloseTrade(ctx, account.ID, position.ID)
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)

	stored, err := env.store.GetPositionByID(ctx, position.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionOpen, stored.Status)

	// The same close succeeds once prices come back.
	env.prices.fail(nil)
	_, err = env.trade.CloseTrade(ctx, account.ID, position.ID)
	assert.NoError(t, err)
}
