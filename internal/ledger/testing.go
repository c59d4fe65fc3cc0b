package ledger

// Balances is a test helper returning the accumulated delta for a wallet in
// the in-memory store.
func Balances(s *InMemoryStore, walletID string) BalanceDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[walletID]
}

// Record is a test helper returning the stored payment record, if any.
func Record(s *InMemoryStore, incomingPaymentID string) (PaymentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[incomingPaymentID]
	return record, ok
}
