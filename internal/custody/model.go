package custody

import (
	"fmt"
	"regexp"
	"time"

	"github.com/congo-pay/custody/internal/ledger"
)

var accountPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

// ValidateAccount reports whether id is a well-formed account identifier
// outside the ledger's reserved clearing namespace.
func ValidateAccount(id string) error {
	if !accountPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidAccount, id)
	}
	if ledger.IsReserved(id) {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidAccount, id)
	}
	return nil
}

// Receipt describes a completed deposit or withdrawal.
type Receipt struct {
	TransactionID   string
	Account         string
	Amount          int64
	Balance         int64
	PayoutReference string
	CompletedAt     time.Time
}
