package usecase

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"propdesk/internal/domain"
)

// Monitor drives the risk evaluator, both on a fixed interval for every
// active account and on demand. Concurrent triggers for the same account
// are coalesced: one evaluation is in flight per account at a time and all
// callers receive its result.
type Monitor struct {
	risk     *RiskService
	accounts domain.AccountRepository
	group    singleflight.Group
}

// NewMonitor creates a new Monitor
func NewMonitor(risk *RiskService, accounts domain.AccountRepository) *Monitor {
	return &Monitor{
		risk:     risk,
		accounts: accounts,
	}
}

// Trigger evaluates one account, sharing any evaluation already in flight
// for it.
func (m *Monitor) Trigger(ctx context.Context, accountID uuid.UUID) (*EvaluationResult, error) {
	v, err, _ := m.group.Do(accountID.String(), func() (interface{}, error) {
		return m.risk.Evaluate(ctx, accountID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*EvaluationResult), nil
}

// Sweep triggers an evaluation for every active account. Accounts are
// evaluated in parallel; one account's failure never affects another.
func (m *Monitor) Sweep(ctx context.Context) error {
	ids, err := m.accounts.GetActiveIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(accountID uuid.UUID) {
			defer wg.Done()
			if _, err := m.Trigger(ctx, accountID); err != nil {
				log.Printf("ERROR: Evaluation sweep failed for account %s: %v", accountID, err)
			}
		}(id)
	}
	wg.Wait()

	return nil
}
