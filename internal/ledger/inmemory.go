package ledger

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	owner    string
	value    int64
	balances map[string]int64
	// external mirrors every posting; it is never part of balances.
	external int64
}

// NewInMemory creates a concurrency-safe in-memory ledger used in development and tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{balances: make(map[string]int64)}
}

func (l *inMemoryLedger) Bootstrap(_ context.Context, owner string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == "" {
		l.owner = owner
	}
	if l.owner != owner {
		return l.owner, ErrOwnerMismatch
	}
	return l.owner, nil
}

func (l *inMemoryLedger) Value(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, nil
}

func (l *inMemoryLedger) SetValue(_ context.Context, value int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = value
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, account string) (int64, error) {
	if IsReserved(account) {
		return 0, ErrReservedAccount
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

func (l *inMemoryLedger) Total(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total int64
	for _, balance := range l.balances {
		total += balance
	}
	return total, nil
}

func (l *inMemoryLedger) Credit(_ context.Context, account string, amount int64) (PostingResult, error) {
	if IsReserved(account) {
		return PostingResult{}, ErrReservedAccount
	}
	if amount <= 0 {
		return PostingResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[account]
	if balance > math.MaxInt64-amount {
		return PostingResult{}, ErrOverflow
	}
	balance += amount
	l.balances[account] = balance
	l.external -= amount

	return PostingResult{
		Posting: Posting{
			TransactionID: uuid.NewString(),
			Kind:          KindDeposit,
			Account:       account,
			Amount:        amount,
		},
		Balance: balance,
	}, nil
}

func (l *inMemoryLedger) Debit(ctx context.Context, account string, amount int64, settle SettleFunc) (PostingResult, error) {
	if IsReserved(account) {
		return PostingResult{}, ErrReservedAccount
	}
	if amount < 0 {
		return PostingResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	balance := l.balances[account]
	if balance < amount {
		l.mu.Unlock()
		return PostingResult{}, ErrInsufficientFunds
	}
	balance -= amount
	if _, exists := l.balances[account]; exists {
		l.balances[account] = balance
	}
	l.external += amount
	posting := Posting{
		TransactionID: uuid.NewString(),
		Kind:          KindWithdraw,
		Account:       account,
		Amount:        amount,
	}
	l.mu.Unlock()

	// The lock is released while settling so reads from within settle see the
	// post-debit balance. Callers serialize other readers themselves.
	if settle != nil {
		if err := settle(ctx, posting); err != nil {
			l.mu.Lock()
			if _, exists := l.balances[account]; exists {
				l.balances[account] += amount
			}
			l.external -= amount
			l.mu.Unlock()
			return PostingResult{}, err
		}
	}

	return PostingResult{Posting: posting, Balance: balance}, nil
}
