package custody

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/custody/internal/ledger"
	"github.com/congo-pay/custody/internal/logging"
	"github.com/congo-pay/custody/internal/notification"
	"github.com/congo-pay/custody/internal/payout"
)

// Service owns the configuration value and the balance ledger, and enforces
// who may change them. Mutations are serialized.
type Service struct {
	mu       sync.Mutex
	owner    string
	ledger   ledger.Ledger
	rail     payout.Rail
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService fixes owner for the lifetime of the ledger. A nil rail settles
// every payout; a nil notifier drops events.
func NewService(ctx context.Context, owner string, backend ledger.Ledger, rail payout.Rail, notifier notification.Notifier, logger *slog.Logger) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("ledger backend is required")
	}
	if err := ValidateAccount(owner); err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	if rail == nil {
		rail = payout.StaticRail{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	stored, err := backend.Bootstrap(ctx, owner)
	if err != nil {
		if errors.Is(err, ledger.ErrOwnerMismatch) {
			return nil, fmt.Errorf("ledger already owned by %s: %w", stored, err)
		}
		return nil, fmt.Errorf("bootstrap ledger: %w", err)
	}
	return &Service{
		owner:    stored,
		ledger:   backend,
		rail:     rail,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Owner returns the account fixed at construction.
func (s *Service) Owner() string {
	return s.owner
}

// Value returns the current configuration value.
func (s *Service) Value(ctx context.Context) (int64, error) {
	defer s.lockRead(ctx)()
	return s.ledger.Value(ctx)
}

// Balance returns the custody balance of account, zero when it never deposited.
func (s *Service) Balance(ctx context.Context, account string) (int64, error) {
	if err := ValidateAccount(account); err != nil {
		return 0, err
	}
	defer s.lockRead(ctx)()
	return s.ledger.Balance(ctx, account)
}

// Total returns the sum of all custody balances.
func (s *Service) Total(ctx context.Context) (int64, error) {
	defer s.lockRead(ctx)()
	return s.ledger.Total(ctx)
}

// lockRead waits for any in-flight mutation so a pending withdrawal is never
// observed. Inside a payout the lock is already held by the caller.
func (s *Service) lockRead(ctx context.Context) func() {
	if s.reentrant(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// SetValue replaces the configuration value. Owner only.
func (s *Service) SetValue(ctx context.Context, caller string, value int64) error {
	if s.reentrant(ctx) {
		return ErrReentrantCall
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.owner {
		return ErrUnauthorized
	}
	if err := s.ledger.SetValue(ctx, value); err != nil {
		return fmt.Errorf("set value: %w", err)
	}

	s.emit(ctx, notification.Event{Kind: notification.KindValueChanged, Value: value})
	return nil
}

// Deposit credits amount of native value attached by caller to caller's balance.
func (s *Service) Deposit(ctx context.Context, caller string, amount int64) (Receipt, error) {
	if s.reentrant(ctx) {
		return Receipt{}, ErrReentrantCall
	}
	if err := ValidateAccount(caller); err != nil {
		return Receipt{}, err
	}
	if amount <= 0 {
		return Receipt{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.ledger.Credit(ctx, caller, amount)
	if err != nil {
		if errors.Is(err, ledger.ErrOverflow) || errors.Is(err, ledger.ErrInvalidAmount) {
			return Receipt{}, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
		}
		return Receipt{}, fmt.Errorf("deposit: %w", err)
	}

	receipt := Receipt{
		TransactionID: res.TransactionID,
		Account:       caller,
		Amount:        amount,
		Balance:       res.Balance,
		CompletedAt:   s.now(),
	}
	s.emit(ctx, notification.Event{Kind: notification.KindDeposited, Account: caller, Amount: amount})
	return receipt, nil
}

// Withdraw debits amount from the owner's balance and pays it out to the owner.
// The debit is applied before the payout rail is invoked; a rail failure
// rolls it back and surfaces ErrTransferFailed.
func (s *Service) Withdraw(ctx context.Context, caller string, amount int64) (Receipt, error) {
	if s.reentrant(ctx) {
		return Receipt{}, ErrReentrantCall
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.owner {
		return Receipt{}, ErrUnauthorized
	}
	if amount < 0 {
		return Receipt{}, ErrInvalidAmount
	}

	var payoutRef string
	res, err := s.ledger.Debit(s.enter(ctx), caller, amount, func(ctx context.Context, p ledger.Posting) error {
		receipt, err := s.rail.Send(ctx, payout.Transfer{
			Reference: p.TransactionID,
			Recipient: p.Account,
			Amount:    p.Amount,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		payoutRef = receipt.Reference
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return Receipt{}, ErrInsufficientFunds
		case errors.Is(err, ErrTransferFailed):
			s.logger.Warn("payout failed, debit rolled back",
				slog.String("account", caller),
				slog.Int64("amount", amount),
				slog.Any("error", err),
			)
			return Receipt{}, err
		default:
			s.logger.Error("withdraw failed",
				slog.String("account", caller),
				slog.Int64("amount", amount),
				slog.Any("error", err),
			)
			return Receipt{}, fmt.Errorf("withdraw: %w", err)
		}
	}

	receipt := Receipt{
		TransactionID:   res.TransactionID,
		Account:         caller,
		Amount:          amount,
		Balance:         res.Balance,
		PayoutReference: payoutRef,
		CompletedAt:     s.now(),
	}
	s.emit(ctx, notification.Event{Kind: notification.KindWithdrawn, Account: caller, Amount: amount})
	return receipt, nil
}

func (s *Service) emit(ctx context.Context, event notification.Event) {
	if s.notifier == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = s.now()
	// State is already committed; delivery problems are only logged.
	if err := s.notifier.Send(ctx, event); err != nil {
		s.logger.Warn("notification delivery failed",
			slog.String("kind", event.Kind),
			slog.String("event_id", event.ID),
			slog.Any("error", err),
		)
	}
}

type frameKey struct{}

// enter marks ctx as running inside a payout of s.
func (s *Service) enter(ctx context.Context) context.Context {
	return context.WithValue(ctx, frameKey{}, s)
}

func (s *Service) reentrant(ctx context.Context) bool {
	frame, _ := ctx.Value(frameKey{}).(*Service)
	return frame == s
}
