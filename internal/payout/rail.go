package payout

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrRecipientRejected signals that the recipient could not accept the value.
var ErrRecipientRejected = errors.New("recipient rejected transfer")

// Transfer describes native value leaving custody.
type Transfer struct {
	// Reference ties the payout to the ledger transaction that funded it.
	Reference string
	Recipient string
	Amount    int64
}

// Receipt captures the rail's confirmation of a completed transfer.
type Receipt struct {
	Reference string
	Status    string
}

// Rail represents a connector that moves native value to a recipient.
type Rail interface {
	Send(ctx context.Context, transfer Transfer) (Receipt, error)
}

// RailFunc adapts a function to the Rail interface.
type RailFunc func(ctx context.Context, transfer Transfer) (Receipt, error)

// Send calls f.
func (f RailFunc) Send(ctx context.Context, transfer Transfer) (Receipt, error) {
	return f(ctx, transfer)
}

// StaticRail simulates a rail that accepts every transfer.
type StaticRail struct{}

// Send approves the transfer with a synthetic reference.
func (StaticRail) Send(_ context.Context, _ Transfer) (Receipt, error) {
	return Receipt{Reference: uuid.NewString(), Status: "settled"}, nil
}

// RejectingRail refuses transfers to the listed recipients and settles the rest.
type RejectingRail struct {
	Refuse map[string]bool
}

// Send fails with ErrRecipientRejected for refused recipients.
func (r RejectingRail) Send(ctx context.Context, transfer Transfer) (Receipt, error) {
	if r.Refuse[transfer.Recipient] {
		return Receipt{}, ErrRecipientRejected
	}
	return StaticRail{}.Send(ctx, transfer)
}
