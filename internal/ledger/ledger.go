package ledger

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInsufficientFunds occurs when the account lacks available balance
	// to cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount rejects credits that are not positive and negative debits.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrOverflow indicates a credit would push a balance past the int64 range.
	ErrOverflow = errors.New("balance overflow")

	// ErrOwnerMismatch is returned by Bootstrap when the persisted owner differs
	// from the one the ledger is being constructed with.
	ErrOwnerMismatch = errors.New("owner mismatch")

	// ErrReservedAccount rejects postings and reads addressed to a clearing account.
	ErrReservedAccount = errors.New("reserved account")
)

const (
	// KindDeposit marks postings that move native value into custody.
	KindDeposit = "deposit"
	// KindWithdraw marks postings that move native value out of custody.
	KindWithdraw = "withdraw"
	// ExternalAccountCode is the clearing account mirroring every posting so the
	// entries of a transaction always sum to zero.
	ExternalAccountCode = "external:native"

	reservedPrefix = "external:"
)

// IsReserved reports whether code belongs to the ledger's internal clearing
// namespace and therefore cannot hold custody balances.
func IsReserved(code string) bool {
	return strings.HasPrefix(strings.ToLower(code), reservedPrefix)
}

// Posting describes a single credit or debit against a custody account.
type Posting struct {
	TransactionID string
	Kind          string
	Account       string
	Amount        int64
}

// PostingResult captures the outcome of a ledger posting.
type PostingResult struct {
	Posting
	Balance int64
}

// SettleFunc moves value outside of the ledger after a debit has been applied.
// Returning an error rolls the debit back.
type SettleFunc func(ctx context.Context, posting Posting) error

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	// Bootstrap records owner on first use and returns the owner the ledger was
	// created with.
	Bootstrap(ctx context.Context, owner string) (string, error)
	Value(ctx context.Context) (int64, error)
	SetValue(ctx context.Context, value int64) error
	// Balance returns zero for accounts that never received a deposit.
	Balance(ctx context.Context, account string) (int64, error)
	// Total sums the balances of all custody accounts.
	Total(ctx context.Context) (int64, error)
	Credit(ctx context.Context, account string, amount int64) (PostingResult, error)
	// Debit applies the debit before invoking settle and undoes it if settle fails.
	Debit(ctx context.Context, account string, amount int64, settle SettleFunc) (PostingResult, error)
}
