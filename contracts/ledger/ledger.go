// This file contains the escrow ledger: the locked and the claimable balances
// and the state machine moving value between them.

package ledger

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"go.dedis.ch/escrow/core/access"
	"go.dedis.ch/escrow/core/store"
	"golang.org/x/xerrors"
)

var (
	// ErrInsufficientBalance is returned by a transfer port when the source
	// does not own enough value.
	ErrInsufficientBalance = xerrors.New("insufficient balance")

	// ErrInsufficientAuthorization is returned by a transfer port when the
	// custody is not authorized to move enough value from the source.
	ErrInsufficientAuthorization = xerrors.New("insufficient authorization")

	// ErrTransferNotAcknowledged is returned by a transfer port when the
	// external ledger reports a negative acknowledgment.
	ErrTransferNotAcknowledged = xerrors.New("transfer not acknowledged")

	// ErrAmountOverflow is returned when a balance would exceed 2^256-1.
	ErrAmountOverflow = xerrors.New("amount overflow")
)

const (
	lockedPrefix    = "locked"
	claimablePrefix = "claimable"
)

// TransferPort is the access to the external fungible-value ledger. The
// custody is the account owned by the escrow.
type TransferPort interface {
	// PullFromCaller moves the amount from the identity to the custody. It
	// must return nil only when the transfer is confirmed.
	PullFromCaller(from access.Identity, amount *uint256.Int) error

	// PushToCaller moves the amount from the custody to the identity. It must
	// return nil only when the transfer is confirmed.
	PushToCaller(to access.Identity, amount *uint256.Int) error
}

// Ledger is the escrow ledger bound to a snapshot and a transfer port.
//
// An operation prepares its writes in an overlay and commits them only after
// the transfer is confirmed, so a failure leaves the balances of the ledger
// untouched. The transfer and the commit are made atomic together by the
// store update the ledger runs in: a commit that fails after a confirmed
// transfer returns an error and the update discards both.
type Ledger struct {
	snap store.Snapshot
	port TransferPort
}

// NewLedger returns a ledger reading and writing the snapshot and moving the
// value through the port.
func NewLedger(snap store.Snapshot, port TransferPort) *Ledger {
	return &Ledger{
		snap: snap,
		port: port,
	}
}

// Lock pulls the amount from the buyer into the custody and earmarks it for the
// merchant. A zero amount is accepted.
func (l *Ledger) Lock(buyer, merchant access.Identity, amount *uint256.Int) error {
	if amount == nil {
		return xerrors.New("amount is missing")
	}

	key, err := lockedKey(buyer, merchant)
	if err != nil {
		return xerrors.Errorf("locked key: %v", err)
	}

	stage := newStaging(l.snap)

	locked, err := ReadAmount(stage, key)
	if err != nil {
		return xerrors.Errorf("failed to read locked balance: %v", err)
	}

	total, overflow := new(uint256.Int).AddOverflow(locked, amount)
	if overflow {
		return xerrors.Errorf("locked balance: %w", ErrAmountOverflow)
	}

	err = WriteAmount(stage, key, total)
	if err != nil {
		return xerrors.Errorf("failed to stage locked balance: %v", err)
	}

	err = l.port.PullFromCaller(buyer, amount)
	if err != nil {
		return xerrors.Errorf("failed to pull from buyer: %w", err)
	}

	err = stage.commit()
	if err != nil {
		return xerrors.Errorf("failed to write locked balance: %v", err)
	}

	return nil
}

// Release moves the whole amount locked by the buyer for the merchant to the
// claimable balance of the merchant. It returns the amount released, which is
// zero when nothing is locked.
func (l *Ledger) Release(buyer, merchant access.Identity) (*uint256.Int, error) {
	lkey, err := lockedKey(buyer, merchant)
	if err != nil {
		return nil, xerrors.Errorf("locked key: %v", err)
	}

	stage := newStaging(l.snap)

	due, err := ReadAmount(stage, lkey)
	if err != nil {
		return nil, xerrors.Errorf("failed to read locked balance: %v", err)
	}

	if due.IsZero() {
		return due, nil
	}

	ckey, err := claimableKey(merchant)
	if err != nil {
		return nil, xerrors.Errorf("claimable key: %v", err)
	}

	claimable, err := ReadAmount(stage, ckey)
	if err != nil {
		return nil, xerrors.Errorf("failed to read claimable balance: %v", err)
	}

	total, overflow := new(uint256.Int).AddOverflow(claimable, due)
	if overflow {
		return nil, xerrors.Errorf("claimable balance: %w", ErrAmountOverflow)
	}

	err = stage.Delete(lkey)
	if err != nil {
		return nil, xerrors.Errorf("failed to stage locked balance: %v", err)
	}

	err = WriteAmount(stage, ckey, total)
	if err != nil {
		return nil, xerrors.Errorf("failed to stage claimable balance: %v", err)
	}

	err = stage.commit()
	if err != nil {
		return nil, xerrors.Errorf("failed to write balances: %v", err)
	}

	return due, nil
}

// Claim pushes the whole claimable balance of the merchant out of the custody
// and resets it. It returns the amount transferred.
func (l *Ledger) Claim(merchant access.Identity) (*uint256.Int, error) {
	key, err := claimableKey(merchant)
	if err != nil {
		return nil, xerrors.Errorf("claimable key: %v", err)
	}

	stage := newStaging(l.snap)

	due, err := ReadAmount(stage, key)
	if err != nil {
		return nil, xerrors.Errorf("failed to read claimable balance: %v", err)
	}

	if due.IsZero() {
		return due, nil
	}

	err = stage.Delete(key)
	if err != nil {
		return nil, xerrors.Errorf("failed to stage claimable balance: %v", err)
	}

	err = l.port.PushToCaller(merchant, due)
	if err != nil {
		return nil, xerrors.Errorf("failed to push to merchant: %w", err)
	}

	err = stage.commit()
	if err != nil {
		return nil, xerrors.Errorf("failed to reset claimable balance: %v", err)
	}

	return due, nil
}

// LockedBalance returns the amount locked by the buyer for the merchant.
func (l *Ledger) LockedBalance(buyer, merchant access.Identity) (*uint256.Int, error) {
	return LockedBalance(l.snap, buyer, merchant)
}

// ClaimableBalance returns the amount the merchant can claim.
func (l *Ledger) ClaimableBalance(merchant access.Identity) (*uint256.Int, error) {
	return ClaimableBalance(l.snap, merchant)
}

// LockedBalance returns the amount locked by the buyer for the merchant in the
// namespace of the ledger.
func LockedBalance(r store.Readable, buyer, merchant access.Identity) (*uint256.Int, error) {
	key, err := lockedKey(buyer, merchant)
	if err != nil {
		return nil, xerrors.Errorf("locked key: %v", err)
	}

	return ReadAmount(r, key)
}

// ClaimableBalance returns the amount the merchant can claim in the namespace
// of the ledger.
func ClaimableBalance(r store.Readable, merchant access.Identity) (*uint256.Int, error) {
	key, err := claimableKey(merchant)
	if err != nil {
		return nil, xerrors.Errorf("claimable key: %v", err)
	}

	return ReadAmount(r, key)
}

// ReadAmount reads an amount stored in big-endian. A missing key is zero.
func ReadAmount(r store.Readable, key []byte) (*uint256.Int, error) {
	value, err := r.Get(key)
	if err != nil {
		return nil, xerrors.Errorf("failed to read: %v", err)
	}

	if len(value) > 32 {
		return nil, xerrors.Errorf("amount of %d bytes is too large", len(value))
	}

	return new(uint256.Int).SetBytes(value), nil
}

// WriteAmount writes an amount in big-endian. A zero amount deletes the key.
func WriteAmount(w store.Writable, key []byte, amount *uint256.Int) error {
	if amount.IsZero() {
		return w.Delete(key)
	}

	return w.Set(key, amount.Bytes())
}

// ComposeKey returns a key made of the length-prefixed parts so that the
// boundaries between them cannot be shifted.
func ComposeKey(parts ...[]byte) []byte {
	size := 0
	for _, part := range parts {
		size += 2 + len(part)
	}

	key := make([]byte, 0, size)
	length := make([]byte, 2)

	for _, part := range parts {
		binary.LittleEndian.PutUint16(length, uint16(len(part)))
		key = append(key, length...)
		key = append(key, part...)
	}

	return key
}

func lockedKey(buyer, merchant access.Identity) ([]byte, error) {
	bkey, err := access.Key(buyer)
	if err != nil {
		return nil, xerrors.Errorf("buyer: %v", err)
	}

	mkey, err := access.Key(merchant)
	if err != nil {
		return nil, xerrors.Errorf("merchant: %v", err)
	}

	return ComposeKey([]byte(lockedPrefix), bkey, mkey), nil
}

func claimableKey(merchant access.Identity) ([]byte, error) {
	mkey, err := access.Key(merchant)
	if err != nil {
		return nil, xerrors.Errorf("merchant: %v", err)
	}

	return ComposeKey([]byte(claimablePrefix), mkey), nil
}
