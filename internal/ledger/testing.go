package ledger

// SeedBalance is a test helper that sets the balance for an account when using the in-memory ledger.
// The clearing account absorbs the difference so the ledger stays balanced.
func SeedBalance(l Ledger, account string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.external -= amount - mem.balances[account]
		mem.balances[account] = amount
	}
}
