package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a concurrency-safe ledger store useful for unit tests.
type InMemoryStore struct {
	mu           sync.Mutex
	balances     map[string]BalanceDelta
	applied      map[string]ApplyInput
	transactions []Transaction
	records      map[string]PaymentRecord
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemory creates an empty in-memory ledger store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		balances: make(map[string]BalanceDelta),
		applied:  make(map[string]ApplyInput),
		records:  make(map[string]PaymentRecord),
	}
}

func (s *InMemoryStore) Apply(_ context.Context, input ApplyInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.applied[input.EventID]; exists {
		return ErrEventAlreadyApplied
	}
	s.applied[input.EventID] = input

	for _, entry := range input.Entries {
		s.balances[entry.WalletID] = s.balances[entry.WalletID].Add(entry.Delta)
	}

	for _, txn := range input.Transactions {
		if txn.ID == "" {
			txn.ID = uuid.NewString()
		}
		if txn.CreatedAt.IsZero() {
			txn.CreatedAt = time.Now().UTC()
		}
		s.transactions = append(s.transactions, txn)
	}

	if record := input.PaymentRecord; record != nil {
		if _, exists := s.records[record.IncomingPaymentID]; !exists {
			stored := *record
			if stored.CreatedAt.IsZero() {
				stored.CreatedAt = time.Now().UTC()
			}
			s.records[record.IncomingPaymentID] = stored
		}
	}

	if input.DeactivatePaymentID != "" {
		if record, exists := s.records[input.DeactivatePaymentID]; exists {
			record.Active = false
			s.records[input.DeactivatePaymentID] = record
		}
	}

	return nil
}

func (s *InMemoryStore) Transactions(_ context.Context, walletAddressID string) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Transaction
	for _, txn := range s.transactions {
		if txn.WalletAddressID == walletAddressID {
			result = append(result, txn)
		}
	}
	return result, nil
}
