package custody

import "errors"

// Rejections carry the exact reasons clients have always received.
var (
	// ErrUnauthorized is returned when a non-owner calls an owner-only operation.
	ErrUnauthorized = errors.New("Only owner can call this function")

	// ErrInvalidAmount rejects deposits without value and negative withdrawals.
	ErrInvalidAmount = errors.New("Must send Coins")

	// ErrInsufficientFunds is returned when a withdrawal exceeds the caller's balance.
	ErrInsufficientFunds = errors.New("Insufficient balance")

	// ErrTransferFailed wraps a payout rail failure; the debit has been rolled back.
	ErrTransferFailed = errors.New("Transfer failed")

	// ErrReentrantCall rejects mutations issued from inside a payout of the same ledger.
	ErrReentrantCall = errors.New("reentrant call")

	// ErrInvalidAccount rejects malformed account identifiers.
	ErrInvalidAccount = errors.New("invalid account identifier")
)
