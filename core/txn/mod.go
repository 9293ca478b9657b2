// Package txn defines the abstraction of transactions.
//
// A transaction is a contract input. It is uniquely identifiable via a digest
// and it is ordered by a nonce that acts as a sequence number of its identity.
// The identity of a transaction is the caller of the contract: it is handed
// explicitly to every operation the transaction triggers.
//
// The manager helps to create transactions as the nonce needs to be correct for
// the transaction to be valid.
package txn

import (
	"go.dedis.ch/escrow/core/access"
)

// Transaction is what triggers a contract execution by passing it as part of
// the input.
type Transaction interface {
	// GetID returns the unique identifier for the transaction.
	GetID() []byte

	// GetNonce returns the nonce of the transaction which corresponds to the
	// sequence number of a unique identity.
	GetNonce() uint64

	// GetIdentity returns the identity that created the transaction.
	GetIdentity() access.Identity

	// GetArg is a getter for the arguments of the transaction.
	GetArg(key string) []byte
}

// Factory is the definition of a factory to deserialize transactions.
type Factory interface {
	TransactionOf(data []byte) (Transaction, error)
}

// Arg is a generic argument that can be stored in a transaction.
type Arg struct {
	Key   string
	Value []byte
}

// Manager is a manager to create transaction. It can help creating
// transactions when some information is required like the current nonce.
type Manager interface {
	Make(args ...Arg) (Transaction, error)

	Sync() error
}
