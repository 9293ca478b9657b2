package controller

import (
	"fmt"

	"github.com/holiman/uint256"
	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/contracts/token"
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

// mintAction is an action to create tokens.
//
// - implements node.ActionTemplate
type mintAction struct{}

// Execute implements node.ActionTemplate.
func (mintAction) Execute(ctx node.Context) error {
	args, err := recipientArgs(ctx)
	if err != nil {
		return err
	}

	return submit(ctx, append(args, cmdArgs(token.CmdMint)...)...)
}

// transferAction is an action to send tokens to a recipient.
//
// - implements node.ActionTemplate
type transferAction struct{}

// Execute implements node.ActionTemplate.
func (transferAction) Execute(ctx node.Context) error {
	args, err := recipientArgs(ctx)
	if err != nil {
		return err
	}

	return submit(ctx, append(args, cmdArgs(token.CmdTransfer)...)...)
}

// approveAction is an action to set the allowance of a spender.
//
// - implements node.ActionTemplate
type approveAction struct{}

// Execute implements node.ActionTemplate.
func (approveAction) Execute(ctx node.Context) error {
	amount, err := amountArg(ctx)
	if err != nil {
		return err
	}

	spender := []byte(token.EscrowSpender)

	text := ctx.Flags.String("spender")
	if text != "" && text != token.EscrowSpender {
		spender, err = parseIdentity(text)
		if err != nil {
			return xerrors.Errorf("spender: %v", err)
		}
	}

	args := append(cmdArgs(token.CmdApprove), amount,
		txn.Arg{Key: token.SpenderArg, Value: spender})

	return submit(ctx, args...)
}

// pauseAction is an action to suspend or resume the transfers.
//
// - implements node.ActionTemplate
type pauseAction struct {
	paused bool
}

// Execute implements node.ActionTemplate.
func (a pauseAction) Execute(ctx node.Context) error {
	cmd := token.CmdUnpause
	if a.paused {
		cmd = token.CmdPause
	}

	return submit(ctx, cmdArgs(cmd)...)
}

// balanceAction is an action to print the balance of an identity.
//
// - implements node.ActionTemplate
type balanceAction struct{}

// Execute implements node.ActionTemplate.
func (balanceAction) Execute(ctx node.Context) error {
	var srvc ordering.Service
	err := ctx.Injector.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var contract token.Contract
	err = ctx.Injector.Resolve(&contract)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	pk, err := ed25519.ParsePublicKey(ctx.Flags.String("identity"))
	if err != nil {
		return xerrors.Errorf("identity: %v", err)
	}

	var balance *uint256.Int
	err = srvc.View(func(r store.Readable) error {
		balance, err = contract.Balance(r, pk)
		return err
	})
	if err != nil {
		return xerrors.Errorf("failed to read balance: %v", err)
	}

	fmt.Fprint(ctx.Out, balance.Dec())

	return nil
}

func cmdArgs(cmd token.Command) []txn.Arg {
	return []txn.Arg{
		{Key: native.ContractArg, Value: []byte(token.ContractName)},
		{Key: token.CmdArg, Value: []byte(cmd)},
	}
}

func recipientArgs(ctx node.Context) ([]txn.Arg, error) {
	to, err := parseIdentity(ctx.Flags.String("to"))
	if err != nil {
		return nil, xerrors.Errorf("recipient: %v", err)
	}

	amount, err := amountArg(ctx)
	if err != nil {
		return nil, err
	}

	return []txn.Arg{{Key: token.ToArg, Value: to}, amount}, nil
}

func amountArg(ctx node.Context) (txn.Arg, error) {
	amount, err := uint256.FromDecimal(ctx.Flags.String("amount"))
	if err != nil {
		return txn.Arg{}, xerrors.Errorf("invalid amount '%s': %v",
			ctx.Flags.String("amount"), err)
	}

	return txn.Arg{Key: token.AmountArg, Value: []byte(amount.Dec())}, nil
}

// parseIdentity returns the binary form of a public key in its text or hex
// form.
func parseIdentity(text string) ([]byte, error) {
	pk, err := ed25519.ParsePublicKey(text)
	if err != nil {
		return nil, err
	}

	return pk.MarshalBinary()
}
