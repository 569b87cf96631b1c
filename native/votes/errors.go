package votes

import "errors"

var (
	// ErrReceiptAlreadyUsed marks a vote attempted against a spent receipt.
	ErrReceiptAlreadyUsed = errors.New("votes: receipt already used")
	// ErrPartiesMismatch marks a vote whose voter/subject do not match the
	// receipt's payer/payee.
	ErrPartiesMismatch = errors.New("votes: parties do not match receipt")
	// ErrInvalidRange marks a quality axis or confidence outside [0, 100].
	ErrInvalidRange = errors.New("votes: value out of range")
	// ErrUnknownAgent marks a voter, subject, issuer, or endorsement subject
	// that has never been observed by the directory.
	ErrUnknownAgent = errors.New("votes: unknown agent")
	// ErrSameAgent marks a submission where the two parties are identical.
	ErrSameAgent = errors.New("votes: voter and subject must be distinct")
	// ErrReceiptNotFound marks a vote referencing a receipt id that does not
	// exist.
	ErrReceiptNotFound = errors.New("votes: receipt not found")
	// ErrEndorsementNotFound marks a revoke against an unknown endorsement.
	ErrEndorsementNotFound = errors.New("votes: endorsement not found")
)
