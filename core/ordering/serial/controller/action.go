package controller

import (
	"fmt"

	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/core/ordering"
	"go.dedis.ch/escrow/crypto/ed25519"
	"golang.org/x/xerrors"
)

// nonceAction is an action to print the next nonce of an identity.
//
// - implements node.ActionTemplate
type nonceAction struct{}

// Execute implements node.ActionTemplate.
func (nonceAction) Execute(ctx node.Context) error {
	var srvc ordering.Service
	err := ctx.Injector.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	pk, err := ed25519.ParsePublicKey(ctx.Flags.String("identity"))
	if err != nil {
		return xerrors.Errorf("identity: %v", err)
	}

	nonce, err := srvc.GetNonce(pk)
	if err != nil {
		return xerrors.Errorf("failed to read nonce: %v", err)
	}

	fmt.Fprintf(ctx.Out, "%d", nonce)

	return nil
}
