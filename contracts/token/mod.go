// Package token implements a fungible token as a native contract. It is the
// external value ledger that holds the funds of the escrow.
//
// The token keeps the balances of the identities and the allowances they give
// to spenders. A minter creates the tokens and can pause the transfers, in
// which case a transfer is not acknowledged instead of failing.
package token

import (
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"go.dedis.ch/escrow"
	"go.dedis.ch/escrow/contracts/ledger"
	"go.dedis.ch/escrow/core/access"
	"go.dedis.ch/escrow/core/execution"
	"go.dedis.ch/escrow/core/execution/native"
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/core/store/prefixed"
	"go.dedis.ch/escrow/crypto"
	"golang.org/x/xerrors"
)

const (
	// ContractName is the name of the contract.
	ContractName = "go.dedis.ch/escrow.Token"

	// ContractUID is the unique identifier of the contract.
	ContractUID = "TOKN"

	// CmdArg is the argument's name to indicate the kind of command.
	CmdArg = "token:command"

	// ToArg is the argument's name of the public key of the recipient.
	ToArg = "token:to"

	// SpenderArg is the argument's name of the public key of the spender, or
	// EscrowSpender.
	SpenderArg = "token:spender"

	// AmountArg is the argument's name of the decimal amount.
	AmountArg = "token:amount"

	// EscrowSpender designates the custody of the escrow as the spender.
	EscrowSpender = "escrow"
)

// Command defines a type of command for the token contract.
type Command string

const (
	// CmdMint defines the command to create tokens.
	CmdMint Command = "MINT"

	// CmdTransfer defines the command to send tokens.
	CmdTransfer Command = "TRANSFER"

	// CmdApprove defines the command to set an allowance.
	CmdApprove Command = "APPROVE"

	// CmdPause defines the command to suspend the transfers.
	CmdPause Command = "PAUSE"

	// CmdUnpause defines the command to resume the transfers.
	CmdUnpause Command = "UNPAUSE"
)

// Allocation is an amount of tokens created for an identity when the node is
// bootstrapped.
type Allocation struct {
	Identity access.Identity
	Amount   *uint256.Int
}

// RegisterContract registers the token contract to the given execution service.
func RegisterContract(exec *native.Service, c Contract) {
	exec.Set(ContractName, c)
}

// Contract is the native contract of the token.
//
// - implements native.Contract
type Contract struct {
	token  Token
	pkFac  crypto.PublicKeyFactory
	logger zerolog.Logger
}

// NewContract creates a new token contract.
func NewContract(token Token, pkFac crypto.PublicKeyFactory) Contract {
	return Contract{
		token:  token,
		pkFac:  pkFac,
		logger: escrow.Logger.With().Str("contract", "token").Logger(),
	}
}

// GetToken returns the token of the contract.
func (c Contract) GetToken() Token {
	return c.token
}

// UID implements native.Contract.
func (c Contract) UID() string {
	return ContractUID
}

// Execute implements native.Contract. It runs the command of the transaction
// on behalf of the identity of the transaction.
func (c Contract) Execute(snap store.Snapshot, step execution.Step) error {
	caller := step.Current.GetIdentity()
	snap = prefixed.NewSnapshot(ContractUID, snap)

	cmd := Command(step.Current.GetArg(CmdArg))

	switch cmd {
	case CmdMint:
		to, amount, err := c.recipientAndAmount(step)
		if err != nil {
			return err
		}

		err = c.token.Mint(snap, caller, to, amount)
		if err != nil {
			return xerrors.Errorf("failed to MINT: %w", err)
		}
	case CmdTransfer:
		to, amount, err := c.recipientAndAmount(step)
		if err != nil {
			return err
		}

		ok, err := c.token.Transfer(snap, caller, to, amount)
		if err != nil {
			return xerrors.Errorf("failed to TRANSFER: %w", err)
		}

		if !ok {
			return xerrors.New("failed to TRANSFER: token is paused")
		}
	case CmdApprove:
		spender, err := c.spenderOf(step)
		if err != nil {
			return err
		}

		amount, err := amountOf(step)
		if err != nil {
			return err
		}

		err = c.token.Approve(snap, caller, spender, amount)
		if err != nil {
			return xerrors.Errorf("failed to APPROVE: %w", err)
		}
	case CmdPause, CmdUnpause:
		err := c.token.SetPaused(snap, caller, cmd == CmdPause)
		if err != nil {
			return xerrors.Errorf("failed to %s: %w", cmd, err)
		}
	case "":
		return xerrors.Errorf("'%s' not found in tx arg", CmdArg)
	default:
		return xerrors.Errorf("unknown command: %s", cmd)
	}

	c.logger.Info().Str("command", string(cmd)).Msg("token operation")

	return nil
}

// Bootstrap mints the allocations once, when no token exists yet, and marks
// the genesis as applied. It returns false when the token has already been
// bootstrapped.
func (c Contract) Bootstrap(snap store.Snapshot, allocs []Allocation) (bool, error) {
	snap = prefixed.NewSnapshot(ContractUID, snap)

	marker, err := snap.Get([]byte(genesisKey))
	if err != nil {
		return false, xerrors.Errorf("failed to read genesis marker: %v", err)
	}

	if len(marker) > 0 {
		return false, nil
	}

	supply, err := c.token.Supply(snap)
	if err != nil {
		return false, xerrors.Errorf("supply: %v", err)
	}

	if !supply.IsZero() {
		return false, nil
	}

	for _, alloc := range allocs {
		err = c.token.Mint(snap, c.token.GetMinter(), alloc.Identity, alloc.Amount)
		if err != nil {
			return false, xerrors.Errorf("allocation: %w", err)
		}
	}

	err = snap.Set([]byte(genesisKey), []byte{1})
	if err != nil {
		return false, xerrors.Errorf("failed to write genesis marker: %v", err)
	}

	return true, nil
}

// Balance returns the balance of the identity.
func (c Contract) Balance(r store.Readable, ident access.Identity) (*uint256.Int, error) {
	return c.token.Balance(prefixed.NewReadable(ContractUID, r), ident)
}

// Allowance returns the allowance given by the owner to the spender.
func (c Contract) Allowance(r store.Readable, owner, spender access.Identity) (*uint256.Int, error) {
	return c.token.Allowance(prefixed.NewReadable(ContractUID, r), owner, spender)
}

// Paused returns true when the transfers are suspended.
func (c Contract) Paused(r store.Readable) (bool, error) {
	return c.token.Paused(prefixed.NewReadable(ContractUID, r))
}

func (c Contract) recipientAndAmount(step execution.Step) (access.Identity, *uint256.Int, error) {
	data := step.Current.GetArg(ToArg)
	if len(data) == 0 {
		return nil, nil, xerrors.Errorf("'%s' not found in tx arg", ToArg)
	}

	to, err := c.pkFac.FromBytes(data)
	if err != nil {
		return nil, nil, xerrors.Errorf("invalid recipient: %v", err)
	}

	amount, err := amountOf(step)
	if err != nil {
		return nil, nil, err
	}

	return to, amount, nil
}

func (c Contract) spenderOf(step execution.Step) (access.Identity, error) {
	data := step.Current.GetArg(SpenderArg)
	if len(data) == 0 {
		return nil, xerrors.Errorf("'%s' not found in tx arg", SpenderArg)
	}

	if string(data) == EscrowSpender {
		return ledger.CustodyIdentity(), nil
	}

	spender, err := c.pkFac.FromBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("invalid spender: %v", err)
	}

	return spender, nil
}

func amountOf(step execution.Step) (*uint256.Int, error) {
	data := step.Current.GetArg(AmountArg)
	if len(data) == 0 {
		return nil, xerrors.Errorf("'%s' not found in tx arg", AmountArg)
	}

	amount, err := uint256.FromDecimal(string(data))
	if err != nil {
		return nil, xerrors.Errorf("invalid amount '%s': %v", data, err)
	}

	return amount, nil
}
