// Package execution defines the service that applies a transaction to a
// snapshot of the store.
package execution

import (
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/core/txn"
)

// Step is a context of execution. It contains the transaction to execute.
type Step struct {
	Current txn.Transaction
}

// Result is the result of a transaction execution.
type Result struct {
	// Accepted is the success state of the transaction.
	Accepted bool

	// Message gives a chance to the execution to explain why a transaction has
	// failed.
	Message string
}

// Service is the execution service that defines the primitives to execute a
// transaction.
type Service interface {
	// Execute must apply the transaction to the snapshot and return the result
	// of it. An error is returned only when the failure is unrelated to the
	// transaction itself.
	Execute(snap store.Snapshot, step Step) (Result, error)
}
