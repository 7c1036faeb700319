package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propdesk/internal/domain"
)

func TestAccountLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()

	account, err := env.accounts.Create(ctx, owner, defaultRules())
	require.NoError(t, err)

	assert.Equal(t, domain.AccountPending, account.Status)
	assert.Equal(t, owner, account.OwnerID)
	assert.True(t, dec("50000").Equal(account.Balance))
	assert.True(t, dec("50000").Equal(account.InitialBalance))
	assert.Equal(t, 1, account.CurrentPhase)

	// Payment confirmation activates; passing is an explicit transition.
	require.NoError(t, env.accounts.Activate(ctx, account.ID))

	stored, err := env.accounts.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountActive, stored.Status)

	require.NoError(t, env.accounts.MarkPassed(ctx, account.ID))

	stored, err = env.accounts.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountPassed, stored.Status)
	require.NotNil(t, stored.CompletedAt)
}

func TestAccountActivateTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.accounts.Create(ctx, uuid.New(), defaultRules())
	require.NoError(t, err)

	require.NoError(t, env.accounts.Activate(ctx, account.ID))
	assert.ErrorIs(t, env.accounts.Activate(ctx, account.ID), domain.ErrInvalidTransition)
}

func TestAccountMarkPassedRequiresActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.accounts.Create(ctx, uuid.New(), defaultRules())
	require.NoError(t, err)

	assert.ErrorIs(t, env.accounts.MarkPassed(ctx, account.ID), domain.ErrInvalidTransition)
}

func TestAccountCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rules := defaultRules()
	rules.AccountSize = dec("0")
	_, err := env.accounts.Create(ctx, uuid.New(), rules)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	rules = defaultRules()
	rules.DailyLossLimitPct = dec("-5")
	_, err = env.accounts.Create(ctx, uuid.New(), rules)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	rules = defaultRules()
	rules.MaxDrawdownPct = dec("0")
	_, err = env.accounts.Create(ctx, uuid.New(), rules)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAccountGetTradesClampsLimit(t *testing.T) {
	env := newTestEnv(t)
	account := env.newActiveAccount(t)
	env.prices.set("BTCUSDT", "100")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.trade.OpenTrade(ctx, OpenTradeInput{
			AccountID: account.ID,
			Symbol:    "BTCUSDT",
			Side:      domain.SideLong,
			Quantity:  dec("1"),
			Leverage:  dec("10"),
		})
		require.NoError(t, err)
	}

	trades, err := env.accounts.GetTrades(ctx, account.ID, 2)
	require.NoError(t, err)
	assert.Len(t, trades, 2)

	// Out-of-range limits fall back to the default page size.
	trades, err = env.accounts.GetTrades(ctx, account.ID, -1)
	require.NoError(t, err)
	assert.Len(t, trades, 3)

	trades, err = env.accounts.GetTrades(ctx, account.ID, 1000)
	require.NoError(t, err)
	assert.Len(t, trades, 3)
}
