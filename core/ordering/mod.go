// Package ordering defines the interface of the ordering service. The
// high-level purpose of this service is to give a total order to the
// transactions and to apply them one after the other to the store.
package ordering

import (
	"context"

	"go.dedis.ch/escrow/core/access"
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/core/txn"
)

// Receipt is the outcome of a submitted transaction.
type Receipt struct {
	// ID is the unique identifier of the submission.
	ID string `json:"id"`

	// TxID is the identifier of the transaction.
	TxID []byte `json:"txid"`

	// Accepted is true when the transaction has been applied.
	Accepted bool `json:"accepted"`

	// Message explains why a transaction has been rejected.
	Message string `json:"message,omitempty"`
}

// Service is the interface of an ordering service.
type Service interface {
	// Submit applies the transaction to the store. An error is returned if the
	// transaction is malformed or the store fails, otherwise the receipt tells
	// whether the execution accepted it.
	Submit(tx txn.Transaction) (Receipt, error)

	// GetNonce returns the next nonce expected for the identity.
	GetNonce(ident access.Identity) (uint64, error)

	// View executes the callback with a read-only state of the store.
	View(fn func(store.Readable) error) error

	// Watch returns a channel populated with the receipts of the transactions
	// processed until the context is done.
	Watch(ctx context.Context) <-chan Receipt
}
