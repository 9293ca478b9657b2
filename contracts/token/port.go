// This file contains the adapter that lets the escrow ledger move tokens in
// and out of its custody.

package token

import (
	"github.com/holiman/uint256"
	"go.dedis.ch/escrow/contracts/ledger"
	"go.dedis.ch/escrow/core/access"
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/core/store/prefixed"
	"golang.org/x/xerrors"
)

// PortFactory creates transfer ports on the token for the escrow custody.
//
// - implements ledger.PortFactory
type PortFactory struct {
	token   Token
	custody access.Identity
}

// NewPortFactory returns a factory of ports moving the tokens of the escrow
// custody.
func NewPortFactory(token Token) PortFactory {
	return PortFactory{
		token:   token,
		custody: ledger.CustodyIdentity(),
	}
}

// PortOf implements ledger.PortFactory. It returns a port working on the token
// namespace of the snapshot.
func (f PortFactory) PortOf(snap store.Snapshot) ledger.TransferPort {
	return Port{
		token:   f.token,
		snap:    prefixed.NewSnapshot(ContractUID, snap),
		custody: f.custody,
	}
}

// Port is a transfer port on the token. The value is pulled with the
// allowance given by the owner to the custody, and pushed from the balance of
// the custody.
//
// - implements ledger.TransferPort
type Port struct {
	token   Token
	snap    store.Snapshot
	custody access.Identity
}

// PullFromCaller implements ledger.TransferPort.
func (p Port) PullFromCaller(from access.Identity, amount *uint256.Int) error {
	ok, err := p.token.TransferFrom(p.snap, p.custody, from, p.custody, amount)
	if err != nil {
		return portError(err)
	}

	if !ok {
		return ledger.ErrTransferNotAcknowledged
	}

	return nil
}

// PushToCaller implements ledger.TransferPort.
func (p Port) PushToCaller(to access.Identity, amount *uint256.Int) error {
	ok, err := p.token.Transfer(p.snap, p.custody, to, amount)
	if err != nil {
		return portError(err)
	}

	if !ok {
		return ledger.ErrTransferNotAcknowledged
	}

	return nil
}

// mappedError keeps the message of a token error and matches the equivalent
// ledger error.
type mappedError struct {
	cause  error
	target error
}

func portError(err error) error {
	switch {
	case xerrors.Is(err, ErrInsufficientBalance):
		return mappedError{cause: err, target: ledger.ErrInsufficientBalance}
	case xerrors.Is(err, ErrInsufficientAllowance):
		return mappedError{cause: err, target: ledger.ErrInsufficientAuthorization}
	case xerrors.Is(err, ErrOverflow):
		return mappedError{cause: err, target: ledger.ErrAmountOverflow}
	default:
		return xerrors.Errorf("token: %v", err)
	}
}

func (e mappedError) Error() string {
	return e.cause.Error()
}

func (e mappedError) Is(target error) bool {
	return target == e.target
}

func (e mappedError) Unwrap() error {
	return e.cause
}
