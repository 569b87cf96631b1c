package ledger

import "sync"

// memoryStore is a minimal in-process Store used only by this package's
// tests; the production-facing implementations live under package storage.
type memoryStore struct {
	mu       sync.Mutex
	payments map[string]*PaymentRecord
	byID     map[[32]byte]*Receipt
	bySig    map[string][32]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		payments: make(map[string]*PaymentRecord),
		byID:     make(map[[32]byte]*Receipt),
		bySig:    make(map[string][32]byte),
	}
}

func (m *memoryStore) GetPayment(signature string) (*PaymentRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.payments[signature]
	if !ok {
		return nil, false, nil
	}
	clone := *r
	return &clone, true, nil
}

func (m *memoryStore) PutPayment(record *PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	m.payments[record.Signature] = &clone
	return nil
}

func (m *memoryStore) GetReceiptByID(id [32]byte) (*Receipt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, false, nil
	}
	clone := *r
	return &clone, true, nil
}

func (m *memoryStore) GetReceiptBySignature(signature string) (*Receipt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bySig[signature]
	if !ok {
		return nil, false, nil
	}
	r := m.byID[id]
	clone := *r
	return &clone, true, nil
}

func (m *memoryStore) PutReceipt(receipt *Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *receipt
	m.byID[receipt.ID] = &clone
	m.bySig[receipt.Signature] = receipt.ID
	return nil
}

func (m *memoryStore) SetVoteCast(id [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return ErrReceiptNotFound
	}
	r.VoteCast = true
	return nil
}

func (m *memoryStore) ReceiptsForAgent(address string) ([]*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Receipt
	for _, r := range m.byID {
		if r.Payer == address || r.Payee == address {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}
