package ledger

// Store abstracts the persistence backend required by the ledger. Put
// operations for a given signature must be safe to retry; the engine holds
// the idempotency and transactional-unit guarantees above the store, but a
// real implementation should still serialize writes per signature.
type Store interface {
	GetPayment(signature string) (*PaymentRecord, bool, error)
	PutPayment(record *PaymentRecord) error

	GetReceiptByID(id [32]byte) (*Receipt, bool, error)
	GetReceiptBySignature(signature string) (*Receipt, bool, error)
	PutReceipt(receipt *Receipt) error
	SetVoteCast(id [32]byte) error
	ReceiptsForAgent(address string) ([]*Receipt, error)
}
