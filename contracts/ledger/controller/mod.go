// Package controller implements a CLI initializer that registers the escrow
// contract on top of the token and the commands to use it.
package controller

import (
	"go.dedis.ch/escrow"
	"go.dedis.ch/escrow/cli"
	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/contracts/ledger"
	"go.dedis.ch/escrow/contracts/token"
	"go.dedis.ch/escrow/core/execution/native"
	orderingController "go.dedis.ch/escrow/core/ordering/serial/controller"
	"go.dedis.ch/escrow/crypto/ed25519"
	"golang.org/x/xerrors"
)

// miniController is a CLI initializer to register the escrow contract. The
// token contract must have been injected beforehand.
//
// - implements node.Initializer
type miniController struct{}

// NewController creates a new controller for the escrow contract.
func NewController() node.Initializer {
	return miniController{}
}

// SetCommands implements node.Initializer.
func (miniController) SetCommands(builder node.Builder) {
	keyFlag := cli.PathFlag{
		Name:     orderingController.KeyFlag,
		Usage:    "path to the signer file of the caller",
		Required: true,
		EnvVars:  []string{orderingController.KeyEnv},
	}

	merchantFlag := cli.StringFlag{
		Name:     "merchant",
		Usage:    "hex encoded public key of the merchant",
		Required: true,
	}

	cmd := builder.SetCommand("ledger")
	cmd.SetDescription("Use the escrow ledger")

	sub := cmd.SetSubCommand("lock")
	sub.SetDescription("Lock an amount of the caller for a merchant. The " +
		"caller must have approved the escrow as a spender beforehand.")
	sub.SetFlags(keyFlag, merchantFlag, cli.StringFlag{
		Name:     "amount",
		Usage:    "decimal amount",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(lockAction{}))

	sub = cmd.SetSubCommand("release")
	sub.SetDescription("Release the whole amount locked by the caller for a " +
		"merchant")
	sub.SetFlags(keyFlag, merchantFlag)
	sub.SetAction(builder.MakeAction(releaseAction{}))

	sub = cmd.SetSubCommand("claim")
	sub.SetDescription("Withdraw the claimable balance of the caller")
	sub.SetFlags(keyFlag)
	sub.SetAction(builder.MakeAction(claimAction{}))

	sub = cmd.SetSubCommand("locked")
	sub.SetDescription("Print the amount a buyer locked for a merchant")
	sub.SetFlags(merchantFlag, cli.StringFlag{
		Name:     "buyer",
		Usage:    "hex encoded public key of the buyer",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(lockedAction{}))

	sub = cmd.SetSubCommand("claimable")
	sub.SetDescription("Print the claimable balance of a merchant")
	sub.SetFlags(merchantFlag)
	sub.SetAction(builder.MakeAction(claimableAction{}))
}

// OnStart implements node.Initializer. It registers the escrow contract bound
// to the token and injects it.
func (miniController) OnStart(flags cli.Flags, inj node.Injector) error {
	var exec *native.Service
	err := inj.Resolve(&exec)
	if err != nil {
		return xerrors.Errorf("failed to resolve native service: %v", err)
	}

	var tk token.Contract
	err = inj.Resolve(&tk)
	if err != nil {
		return xerrors.Errorf("failed to resolve token contract: %v", err)
	}

	contract := ledger.NewContract(token.NewPortFactory(tk.GetToken()),
		ed25519.NewPublicKeyFactory())

	ledger.RegisterContract(exec, contract)

	custody, err := ledger.CustodyIdentity().MarshalText()
	if err != nil {
		return xerrors.Errorf("custody: %v", err)
	}

	escrow.Logger.Info().
		Str("custody", string(custody)).
		Msg("escrow contract registered")

	inj.Inject(contract)

	return nil
}

// OnStop implements node.Initializer.
func (miniController) OnStop(node.Injector) error {
	return nil
}
