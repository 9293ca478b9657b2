package controller

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/core/ordering"
	"go.dedis.ch/escrow/core/txn"
	"go.dedis.ch/escrow/core/txn/signed"
	"go.dedis.ch/escrow/crypto"
	"go.dedis.ch/escrow/crypto/ed25519"
	"golang.org/x/xerrors"
)

// KeyFlag is the name of the flag holding the path to the signer file of the
// caller.
const KeyFlag = "key"

// KeyEnv is the environment variable read when the key flag is missing.
const KeyEnv = "ESCROW_KEY"

// getManager is the function called when we need a transaction manager. It
// allows us to use a different manager for the tests.
var getManager = func(signer crypto.Signer, c signed.Client) txn.Manager {
	return signed.NewManager(signer, c)
}

// submitLock serializes the submissions of the daemon so that two actions of
// the same caller never compete for a nonce.
var submitLock sync.Mutex

// Submit signs a transaction made of the arguments with the signer designated
// by the key flag, submits it to the ordering service and prints the receipt.
// An error is returned when the transaction is rejected.
func Submit(ctx node.Context, args ...txn.Arg) error {
	submitLock.Lock()
	defer submitLock.Unlock()

	var srvc ordering.Service
	err := ctx.Injector.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	signer, err := ed25519.LoadSigner(ctx.Flags.Path(KeyFlag))
	if err != nil {
		return xerrors.Errorf("failed to load signer: %v", err)
	}

	manager := getManager(signer, srvc)

	err = manager.Sync()
	if err != nil {
		return xerrors.Errorf("failed to sync manager: %v", err)
	}

	tx, err := manager.Make(args...)
	if err != nil {
		return xerrors.Errorf("creating transaction: %v", err)
	}

	receipt, err := srvc.Submit(tx)
	if err != nil {
		return xerrors.Errorf("failed to submit: %v", err)
	}

	data, err := json.Marshal(receipt)
	if err != nil {
		return xerrors.Errorf("failed to marshal receipt: %v", err)
	}

	fmt.Fprintln(ctx.Out, string(data))

	if !receipt.Accepted {
		return xerrors.Errorf("transaction rejected: %s", receipt.Message)
	}

	return nil
}

// submitAction is an action to submit a transaction with arbitrary arguments.
//
// - implements node.ActionTemplate
type submitAction struct{}

// Execute implements node.ActionTemplate.
func (submitAction) Execute(ctx node.Context) error {
	args, err := getArgs(ctx)
	if err != nil {
		return xerrors.Errorf("failed to get args: %v", err)
	}

	return Submit(ctx, args...)
}

// getArgs extracts the key/value pairs of the args flag.
func getArgs(ctx node.Context) ([]txn.Arg, error) {
	inArgs := ctx.Flags.StringSlice("args")
	if len(inArgs)%2 != 0 {
		return nil, xerrors.New("number of args should be even")
	}

	args := make([]txn.Arg, len(inArgs)/2)
	for i := range args {
		args[i] = txn.Arg{
			Key:   inArgs[i*2],
			Value: []byte(inArgs[i*2+1]),
		}
	}

	return args, nil
}
