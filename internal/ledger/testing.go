package ledger

// SeedBalance is a test helper that seeds a user's balance when using the in-memory store.
func SeedBalance(s Store, userID string, balance int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if acct, exists := mem.accounts[userID]; exists {
			acct.balance = balance
		} else {
			mem.accounts[userID] = &memAccount{balance: balance, active: true}
		}
	}
}

// SetActive is a test helper that toggles a user's transacting ability on the in-memory store.
func SetActive(s Store, userID string, active bool) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if acct, exists := mem.accounts[userID]; exists {
			acct.active = active
		}
	}
}
