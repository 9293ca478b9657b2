// Package controller implements a CLI initializer that starts the native
// execution and the serial ordering service on top of the node store.
package controller

import (
	"go.dedis.ch/escrow/cli"
	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/core/execution/native"
	"go.dedis.ch/escrow/core/ordering/serial"
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/core/txn/signed"
	"go.dedis.ch/escrow/crypto/ed25519"
	"golang.org/x/xerrors"
)

// minimal is the initializer of the ordering service. The store must have been
// injected beforehand.
//
// - implements node.Initializer
type minimal struct{}

// NewController returns a new initializer for the ordering service.
func NewController() node.Initializer {
	return minimal{}
}

// SetCommands implements node.Initializer.
func (minimal) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("ordering")
	cmd.SetDescription("Ordering service administration")

	sub := cmd.SetSubCommand("nonce")
	sub.SetDescription("Print the next nonce of an identity")
	sub.SetFlags(cli.StringFlag{
		Name:     "identity",
		Usage:    "hex encoded public key",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(nonceAction{}))

	sub = cmd.SetSubCommand("submit")
	sub.SetDescription("Sign and submit a transaction")
	sub.SetFlags(
		cli.PathFlag{
			Name:     KeyFlag,
			Usage:    "path to the signer file of the caller",
			Required: true,
			EnvVars:  []string{KeyEnv},
		},
		cli.StringSliceFlag{
			Name:     "args",
			Usage:    "list of key-value pairs",
			Required: true,
		},
	)
	sub.SetAction(builder.MakeAction(submitAction{}))
}

// OnStart implements node.Initializer. It creates the execution and the
// ordering services and injects them alongside the transaction factory.
func (minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	var db store.Store
	err := inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	exec := native.NewExecution()
	srvc := serial.NewService(db, exec)

	txFac := signed.NewTransactionFactory(ed25519.NewPublicKeyFactory(),
		ed25519.NewSignatureFactory())

	inj.Inject(exec)
	inj.Inject(srvc)
	inj.Inject(txFac)

	return nil
}

// OnStop implements node.Initializer. The submissions are synchronous so there
// is nothing to wait for.
func (minimal) OnStop(node.Injector) error {
	return nil
}
