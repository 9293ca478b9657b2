package controller

import (
	"fmt"

	"github.com/holiman/uint256"
	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/contracts/ledger"
	"go.dedis.ch/escrow/core/execution/native"
	"go.dedis.ch/escrow/core/ordering"
	orderingController "go.dedis.ch/escrow/core/ordering/serial/controller"
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/core/txn"
	"go.dedis.ch/escrow/crypto/ed25519"
	"golang.org/x/xerrors"
)

// submit is the function called to sign and submit the transactions. It
// allows the tests to capture the arguments.
var submit = orderingController.Submit

// lockAction is an action to lock an amount for a merchant.
//
// - implements node.ActionTemplate
type lockAction struct{}

// Execute implements node.ActionTemplate.
func (lockAction) Execute(ctx node.Context) error {
	merchant, err := merchantArg(ctx)
	if err != nil {
		return err
	}

	amount, err := uint256.FromDecimal(ctx.Flags.String("amount"))
	if err != nil {
		return xerrors.Errorf("invalid amount '%s': %v",
			ctx.Flags.String("amount"), err)
	}

	args := append(cmdArgs(ledger.CmdLock), merchant,
		txn.Arg{Key: ledger.AmountArg, Value: []byte(amount.Dec())})

	return submit(ctx, args...)
}

// releaseAction is an action to release the amount locked for a merchant.
//
// - implements node.ActionTemplate
type releaseAction struct{}

// Execute implements node.ActionTemplate.
func (releaseAction) Execute(ctx node.Context) error {
	merchant, err := merchantArg(ctx)
	if err != nil {
		return err
	}

	return submit(ctx, append(cmdArgs(ledger.CmdRelease), merchant)...)
}

// claimAction is an action to withdraw the claimable balance of the caller.
//
// - implements node.ActionTemplate
type claimAction struct{}

// Execute implements node.ActionTemplate.
func (claimAction) Execute(ctx node.Context) error {
	return submit(ctx, cmdArgs(ledger.CmdClaim)...)
}

// lockedAction is an action to print the amount locked by a buyer for a
// merchant.
//
// - implements node.ActionTemplate
type lockedAction struct{}

// Execute implements node.ActionTemplate.
func (lockedAction) Execute(ctx node.Context) error {
	buyer, err := ed25519.ParsePublicKey(ctx.Flags.String("buyer"))
	if err != nil {
		return xerrors.Errorf("buyer: %v", err)
	}

	merchant, err := ed25519.ParsePublicKey(ctx.Flags.String("merchant"))
	if err != nil {
		return xerrors.Errorf("merchant: %v", err)
	}

	return view(ctx, func(c ledger.Contract, r store.Readable) (*uint256.Int, error) {
		return c.Locked(r, buyer, merchant)
	})
}

// claimableAction is an action to print the claimable balance of a merchant.
//
// - implements node.ActionTemplate
type claimableAction struct{}

// Execute implements node.ActionTemplate.
func (claimableAction) Execute(ctx node.Context) error {
	merchant, err := ed25519.ParsePublicKey(ctx.Flags.String("merchant"))
	if err != nil {
		return xerrors.Errorf("merchant: %v", err)
	}

	return view(ctx, func(c ledger.Contract, r store.Readable) (*uint256.Int, error) {
		return c.Claimable(r, merchant)
	})
}

func view(ctx node.Context, fn func(ledger.Contract, store.Readable) (*uint256.Int, error)) error {
	var srvc ordering.Service
	err := ctx.Injector.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var contract ledger.Contract
	err = ctx.Injector.Resolve(&contract)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var amount *uint256.Int
	err = srvc.View(func(r store.Readable) error {
		amount, err = fn(contract, r)
		return err
	})
	if err != nil {
		return xerrors.Errorf("failed to read: %v", err)
	}

	fmt.Fprint(ctx.Out, amount.Dec())

	return nil
}

func cmdArgs(cmd ledger.Command) []txn.Arg {
	return []txn.Arg{
		{Key: native.ContractArg, Value: []byte(ledger.ContractName)},
		{Key: ledger.CmdArg, Value: []byte(cmd)},
	}
}

func merchantArg(ctx node.Context) (txn.Arg, error) {
	merchant, err := ed25519.ParsePublicKey(ctx.Flags.String("merchant"))
	if err != nil {
		return txn.Arg{}, xerrors.Errorf("merchant: %v", err)
	}

	data, err := merchant.MarshalBinary()
	if err != nil {
		return txn.Arg{}, xerrors.Errorf("merchant: %v", err)
	}

	return txn.Arg{Key: ledger.MerchantArg, Value: data}, nil
}
