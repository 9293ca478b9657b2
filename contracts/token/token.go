// This file contains the state of the token: balances, allowances and the
// pause switch.

package token

import (
	"github.com/holiman/uint256"
	"go.dedis.ch/escrow/contracts/ledger"
	"go.dedis.ch/escrow/core/access"
	"go.dedis.ch/escrow/core/store"
	"golang.org/x/xerrors"
)

var (
	// ErrInsufficientBalance is returned when the source of a transfer does
	// not own enough tokens.
	ErrInsufficientBalance = xerrors.New("insufficient balance")

	// ErrInsufficientAllowance is returned when the spender is not allowed to
	// move enough tokens on behalf of the owner.
	ErrInsufficientAllowance = xerrors.New("insufficient allowance")

	// ErrUnauthorized is returned when an operation is reserved to the minter.
	ErrUnauthorized = xerrors.New("unauthorized")

	// ErrOverflow is returned when a balance or the supply would exceed
	// 2^256-1.
	ErrOverflow = xerrors.New("overflow")
)

const (
	balancePrefix   = "balance"
	allowancePrefix = "allowance"
	supplyKey       = "supply"
	pausedKey       = "paused"
	genesisKey      = "genesis"
)

// Token is a fungible token whose state lives in a snapshot. The minter is the
// only identity allowed to create tokens and to pause the transfers.
type Token struct {
	minter access.Identity
}

// NewToken returns a token administrated by the minter.
func NewToken(minter access.Identity) Token {
	return Token{
		minter: minter,
	}
}

// GetMinter returns the identity of the minter.
func (t Token) GetMinter() access.Identity {
	return t.minter
}

// Balance returns the number of tokens owned by the identity.
func (t Token) Balance(r store.Readable, ident access.Identity) (*uint256.Int, error) {
	key, err := balanceKey(ident)
	if err != nil {
		return nil, err
	}

	return ledger.ReadAmount(r, key)
}

// Allowance returns the number of tokens the spender can move on behalf of the
// owner.
func (t Token) Allowance(r store.Readable, owner, spender access.Identity) (*uint256.Int, error) {
	key, err := allowanceKey(owner, spender)
	if err != nil {
		return nil, err
	}

	return ledger.ReadAmount(r, key)
}

// Supply returns the total number of tokens minted.
func (t Token) Supply(r store.Readable) (*uint256.Int, error) {
	return ledger.ReadAmount(r, []byte(supplyKey))
}

// Paused returns true when the transfers are suspended.
func (t Token) Paused(r store.Readable) (bool, error) {
	value, err := r.Get([]byte(pausedKey))
	if err != nil {
		return false, xerrors.Errorf("failed to read: %v", err)
	}

	return len(value) > 0 && value[0] == 1, nil
}

// Mint creates the amount of tokens for the recipient.
func (t Token) Mint(snap store.Snapshot, caller, to access.Identity, amount *uint256.Int) error {
	if !t.isMinter(caller) {
		return xerrors.Errorf("mint: %w", ErrUnauthorized)
	}

	supply, err := t.Supply(snap)
	if err != nil {
		return xerrors.Errorf("supply: %v", err)
	}

	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return xerrors.Errorf("supply: %w", ErrOverflow)
	}

	key, err := balanceKey(to)
	if err != nil {
		return err
	}

	balance, err := ledger.ReadAmount(snap, key)
	if err != nil {
		return xerrors.Errorf("balance: %v", err)
	}

	// The supply bounds every balance so this cannot overflow.
	balance.Add(balance, amount)

	err = ledger.WriteAmount(snap, key, balance)
	if err != nil {
		return xerrors.Errorf("failed to write balance: %v", err)
	}

	err = ledger.WriteAmount(snap, []byte(supplyKey), newSupply)
	if err != nil {
		return xerrors.Errorf("failed to write supply: %v", err)
	}

	return nil
}

// Transfer moves the amount from the owner to the recipient. It returns false
// without any error when the token is paused.
func (t Token) Transfer(snap store.Snapshot, from, to access.Identity, amount *uint256.Int) (bool, error) {
	paused, err := t.Paused(snap)
	if err != nil {
		return false, xerrors.Errorf("paused: %v", err)
	}

	if paused {
		return false, nil
	}

	err = t.move(snap, from, to, amount)
	if err != nil {
		return false, err
	}

	return true, nil
}

// Approve sets the number of tokens the spender can move on behalf of the
// owner. The previous allowance is overwritten.
func (t Token) Approve(snap store.Snapshot, owner, spender access.Identity, amount *uint256.Int) error {
	key, err := allowanceKey(owner, spender)
	if err != nil {
		return err
	}

	err = ledger.WriteAmount(snap, key, amount)
	if err != nil {
		return xerrors.Errorf("failed to write allowance: %v", err)
	}

	return nil
}

// TransferFrom moves the amount from the owner to the recipient on behalf of
// the spender, which consumes the allowance. It returns false without any error
// when the token is paused.
func (t Token) TransferFrom(snap store.Snapshot, spender, from, to access.Identity,
	amount *uint256.Int) (bool, error) {

	paused, err := t.Paused(snap)
	if err != nil {
		return false, xerrors.Errorf("paused: %v", err)
	}

	if paused {
		return false, nil
	}

	balance, err := t.Balance(snap, from)
	if err != nil {
		return false, xerrors.Errorf("balance: %v", err)
	}

	if balance.Lt(amount) {
		return false, xerrors.Errorf("%s < %s: %w", balance.Dec(), amount.Dec(), ErrInsufficientBalance)
	}

	key, err := allowanceKey(from, spender)
	if err != nil {
		return false, err
	}

	allowance, err := ledger.ReadAmount(snap, key)
	if err != nil {
		return false, xerrors.Errorf("allowance: %v", err)
	}

	if allowance.Lt(amount) {
		return false, xerrors.Errorf("%s < %s: %w", allowance.Dec(), amount.Dec(), ErrInsufficientAllowance)
	}

	err = ledger.WriteAmount(snap, key, new(uint256.Int).Sub(allowance, amount))
	if err != nil {
		return false, xerrors.Errorf("failed to write allowance: %v", err)
	}

	err = t.move(snap, from, to, amount)
	if err != nil {
		return false, err
	}

	return true, nil
}

// SetPaused suspends or resumes the transfers.
func (t Token) SetPaused(snap store.Snapshot, caller access.Identity, paused bool) error {
	if !t.isMinter(caller) {
		return xerrors.Errorf("pause: %w", ErrUnauthorized)
	}

	var err error
	if paused {
		err = snap.Set([]byte(pausedKey), []byte{1})
	} else {
		err = snap.Delete([]byte(pausedKey))
	}

	if err != nil {
		return xerrors.Errorf("failed to write pause: %v", err)
	}

	return nil
}

func (t Token) move(snap store.Snapshot, from, to access.Identity, amount *uint256.Int) error {
	fromKey, err := balanceKey(from)
	if err != nil {
		return err
	}

	toKey, err := balanceKey(to)
	if err != nil {
		return err
	}

	balance, err := ledger.ReadAmount(snap, fromKey)
	if err != nil {
		return xerrors.Errorf("balance: %v", err)
	}

	if balance.Lt(amount) {
		return xerrors.Errorf("%s < %s: %w", balance.Dec(), amount.Dec(), ErrInsufficientBalance)
	}

	err = ledger.WriteAmount(snap, fromKey, new(uint256.Int).Sub(balance, amount))
	if err != nil {
		return xerrors.Errorf("failed to write balance: %v", err)
	}

	// The recipient is read after the debit so that a transfer to oneself is
	// neutral.
	balance, err = ledger.ReadAmount(snap, toKey)
	if err != nil {
		return xerrors.Errorf("balance: %v", err)
	}

	newBalance, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return xerrors.Errorf("balance: %w", ErrOverflow)
	}

	err = ledger.WriteAmount(snap, toKey, newBalance)
	if err != nil {
		return xerrors.Errorf("failed to write balance: %v", err)
	}

	return nil
}

func (t Token) isMinter(caller access.Identity) bool {
	return t.minter != nil && caller != nil && t.minter.Equal(caller)
}

func balanceKey(ident access.Identity) ([]byte, error) {
	key, err := access.Key(ident)
	if err != nil {
		return nil, xerrors.Errorf("balance key: %v", err)
	}

	return ledger.ComposeKey([]byte(balancePrefix), key), nil
}

func allowanceKey(owner, spender access.Identity) ([]byte, error) {
	okey, err := access.Key(owner)
	if err != nil {
		return nil, xerrors.Errorf("allowance key: owner: %v", err)
	}

	skey, err := access.Key(spender)
	if err != nil {
		return nil, xerrors.Errorf("allowance key: spender: %v", err)
	}

	return ledger.ComposeKey([]byte(allowancePrefix), okey, skey), nil
}
