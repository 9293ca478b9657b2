// Package controller implements a CLI initializer that registers the token
// contract and the commands to use it.
package controller

import (
	"path/filepath"

	"go.dedis.ch/escrow"
	"go.dedis.ch/escrow/cli"
	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/contracts/token"
	"go.dedis.ch/escrow/core/access"
	"go.dedis.ch/escrow/core/execution/native"
	orderingController "go.dedis.ch/escrow/core/ordering/serial/controller"
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/crypto/ed25519"
	"golang.org/x/xerrors"
)

// MinterFile is the name of the signer file created in the config folder when
// no genesis is provided.
const MinterFile = "minter.key"

// miniController is a CLI initializer to register the token contract.
//
// - implements node.Initializer
type miniController struct{}

// NewController creates a new controller for the token contract.
func NewController() node.Initializer {
	return miniController{}
}

// SetCommands implements node.Initializer.
func (miniController) SetCommands(builder node.Builder) {
	builder.SetStartFlags(cli.PathFlag{
		Name: "genesis",
		Usage: "path to the YAML genesis of the token. A minter is " +
			"created in the config folder when it is missing",
		EnvVars: []string{"ESCROW_GENESIS"},
	})

	keyFlag := cli.PathFlag{
		Name:     orderingController.KeyFlag,
		Usage:    "path to the signer file of the caller",
		Required: true,
		EnvVars:  []string{orderingController.KeyEnv},
	}

	amountFlag := cli.StringFlag{
		Name:     "amount",
		Usage:    "decimal amount",
		Required: true,
	}

	toFlag := cli.StringFlag{
		Name:     "to",
		Usage:    "hex encoded public key of the recipient",
		Required: true,
	}

	cmd := builder.SetCommand("token")
	cmd.SetDescription("Use the token ledger")

	sub := cmd.SetSubCommand("mint")
	sub.SetDescription("Create tokens, reserved to the minter")
	sub.SetFlags(keyFlag, toFlag, amountFlag)
	sub.SetAction(builder.MakeAction(mintAction{}))

	sub = cmd.SetSubCommand("transfer")
	sub.SetDescription("Send tokens")
	sub.SetFlags(keyFlag, toFlag, amountFlag)
	sub.SetAction(builder.MakeAction(transferAction{}))

	sub = cmd.SetSubCommand("approve")
	sub.SetDescription("Set the amount a spender can transfer on behalf of " +
		"the caller")
	sub.SetFlags(keyFlag, amountFlag, cli.StringFlag{
		Name: "spender",
		Usage: "hex encoded public key of the spender, or 'escrow' for " +
			"the escrow custody",
		Value: token.EscrowSpender,
	})
	sub.SetAction(builder.MakeAction(approveAction{}))

	sub = cmd.SetSubCommand("pause")
	sub.SetDescription("Suspend the transfers, reserved to the minter")
	sub.SetFlags(keyFlag)
	sub.SetAction(builder.MakeAction(pauseAction{paused: true}))

	sub = cmd.SetSubCommand("unpause")
	sub.SetDescription("Resume the transfers, reserved to the minter")
	sub.SetFlags(keyFlag)
	sub.SetAction(builder.MakeAction(pauseAction{paused: false}))

	sub = cmd.SetSubCommand("balance")
	sub.SetDescription("Print the balance of an identity")
	sub.SetFlags(cli.StringFlag{
		Name:     "identity",
		Usage:    "hex encoded public key",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(balanceAction{}))
}

// OnStart implements node.Initializer. It registers the token contract,
// bootstraps the allocations of the genesis and injects the contract.
func (miniController) OnStart(flags cli.Flags, inj node.Injector) error {
	var exec *native.Service
	err := inj.Resolve(&exec)
	if err != nil {
		return xerrors.Errorf("failed to resolve native service: %v", err)
	}

	var db store.Store
	err = inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("failed to resolve store: %v", err)
	}

	minter, allocs, err := readGenesis(flags)
	if err != nil {
		return xerrors.Errorf("genesis: %v", err)
	}

	contract := token.NewContract(token.NewToken(minter), ed25519.NewPublicKeyFactory())

	token.RegisterContract(exec, contract)

	var done bool
	err = db.Update(func(snap store.Snapshot) error {
		done, err = contract.Bootstrap(snap, allocs)
		return err
	})
	if err != nil {
		return xerrors.Errorf("failed to bootstrap: %v", err)
	}

	escrow.Logger.Info().
		Bool("bootstrapped", done).
		Int("allocations", len(allocs)).
		Msg("token contract registered")

	inj.Inject(contract)

	return nil
}

// OnStop implements node.Initializer.
func (miniController) OnStop(node.Injector) error {
	return nil
}

func readGenesis(flags cli.Flags) (access.Identity, []token.Allocation, error) {
	path := flags.Path("genesis")
	if path == "" {
		signer, err := ed25519.LoadOrCreateSigner(
			filepath.Join(flags.Path("config"), MinterFile))
		if err != nil {
			return nil, nil, xerrors.Errorf("minter: %v", err)
		}

		return signer.GetPublicKey(), nil, nil
	}

	genesis, err := LoadGenesis(path)
	if err != nil {
		return nil, nil, err
	}

	minter, err := genesis.GetMinter()
	if err != nil {
		return nil, nil, err
	}

	allocs, err := genesis.GetAllocations()
	if err != nil {
		return nil, nil, err
	}

	return minter, allocs, nil
}
