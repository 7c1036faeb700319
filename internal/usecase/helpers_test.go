package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
	"propdesk/internal/lock"
	"propdesk/internal/repository/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// stubPriceService serves quotes from a fixed table. A missing symbol fails
// a single lookup and is omitted from a bulk one, mirroring the live feed.
type stubPriceService struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	err    error
}

func newStubPrices() *stubPriceService {
	return &stubPriceService{prices: make(map[string]decimal.Decimal)}
}

func (s *stubPriceService) set(symbol, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = dec(price)
}

func (s *stubPriceService) unset(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, symbol)
}

func (s *stubPriceService) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubPriceService) GetQuote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.PriceQuote{}, s.err
	}
	price, ok := s.prices[symbol]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("no price for %s: %w", symbol, domain.ErrPriceUnavailable)
	}
	return domain.PriceQuote{Symbol: symbol, Price: price, Timestamp: time.Now()}, nil
}

func (s *stubPriceService) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.PriceQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	quotes := make(map[string]domain.PriceQuote)
	for _, symbol := range symbols {
		if price, ok := s.prices[symbol]; ok {
			quotes[symbol] = domain.PriceQuote{Symbol: symbol, Price: price, Timestamp: time.Now()}
		}
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no prices for %v: %w", symbols, domain.ErrPriceUnavailable)
	}
	return quotes, nil
}

// recordingPublisher captures every alert the engine emits.
type recordingPublisher struct {
	mu     sync.Mutex
	alerts []domain.LiquidationAlert
}

func (p *recordingPublisher) PublishLiquidation(_ context.Context, alert domain.LiquidationAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alert)
	return nil
}

func (p *recordingPublisher) recorded() []domain.LiquidationAlert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.LiquidationAlert(nil), p.alerts...)
}

// testEnv wires the full usecase stack on the in-memory store.
type testEnv struct {
	store    *memory.Store
	prices   *stubPriceService
	alerts   *recordingPublisher
	trade    *TradeService
	risk     *RiskService
	accounts *AccountService
	monitor  *Monitor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	prices := newStubPrices()
	alerts := &recordingPublisher{}
	locks := lock.NewKeyed()
	timeout := 2 * time.Second

	trade := NewTradeService(store.Accounts(), store.Positions(), store.Trades(), prices, store, locks, timeout)
	risk := NewRiskService(store.Accounts(), store.Positions(), store.Trades(), store.SnapshotsRepo(), prices, alerts, store, locks, timeout)
	accounts := NewAccountService(store.Accounts(), store.Positions(), store.Trades())
	monitor := NewMonitor(risk, store.Accounts())

	return &testEnv{
		store:    store,
		prices:   prices,
		alerts:   alerts,
		trade:    trade,
		risk:     risk,
		accounts: accounts,
		monitor:  monitor,
	}
}

func defaultRules() domain.ChallengeRules {
	return domain.ChallengeRules{
		AccountSize:       dec("50000"),
		ProfitTargetPct:   dec("10"),
		DailyLossLimitPct: dec("5"),
		MaxDrawdownPct:    dec("10"),
		ProfitSplitPct:    dec("80"),
		PhaseCount:        1,
		MinTradingDays:    0,
		LeverageCap:       dec("100"),
	}
}

// newActiveAccount seeds an active account with the default fifty-thousand
// challenge rules.
func (e *testEnv) newActiveAccount(t *testing.T) *domain.Account {
	t.Helper()
	return e.newAccountWithRules(t, defaultRules())
}

func (e *testEnv) newAccountWithRules(t *testing.T, rules domain.ChallengeRules) *domain.Account {
	t.Helper()

	account := &domain.Account{
		ID:             uuid.New(),
		OwnerID:        uuid.New(),
		Rules:          rules,
		Balance:        rules.AccountSize,
		InitialBalance: rules.AccountSize,
		Status:         domain.AccountActive,
		CurrentPhase:   1,
		CreatedAt:      time.Now(),
	}
	if err := e.store.Save(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account
}
