// Package command defines the commands to create and read the Ed25519 signers
// the users sign their transactions with. The commands run on the client side
// and do not need the daemon.
package command

import (
	"os"

	"go.dedis.ch/escrow/cli"
	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/crypto"
	"go.dedis.ch/escrow/crypto/ed25519"
)

// Initializer sets the signer commands.
//
// - implements node.Initializer
type Initializer struct{}

// NewInitializer returns the initializer of the signer commands.
func NewInitializer() node.Initializer {
	return Initializer{}
}

// SetCommands implements node.Initializer.
func (Initializer) SetCommands(builder node.Builder) {
	a := action{
		printer:   os.Stdout,
		genSigner: genSigner,
		getPubKey: getPubKey,
		readFile:  os.ReadFile,
		saveFile:  saveFile,
	}

	cmd := builder.SetCommand("signer")
	cmd.SetDescription("Manage the Ed25519 signers of the users")

	sub := cmd.SetSubCommand("new")
	sub.SetDescription("Create a new signer. Prints the hex encoded private " +
		"key by default, or saves it to a file.")
	sub.SetFlags(
		cli.PathFlag{
			Name:  "save",
			Usage: "if provided, save the private key to that file",
		},
		cli.BoolFlag{
			Name:  "force",
			Usage: "overwrite the file if it already exists",
		},
	)
	sub.SetAction(a.newSignerAction)

	sub = cmd.SetSubCommand("read")
	sub.SetDescription("Read a signer file and print its public key")
	sub.SetFlags(
		cli.PathFlag{
			Name:     "path",
			Usage:    "path to the private key file",
			Required: true,
		},
		cli.StringFlag{
			Name: "format",
			Usage: "output format: PUBKEY prints the text form of the public " +
				"key, HEX_PUBKEY the hex encoded public key and HEX the hex " +
				"encoded private key",
			Value: Pubkey,
		},
	)
	sub.SetAction(a.readSignerAction)
}

// OnStart implements node.Initializer. The commands need no component.
func (Initializer) OnStart(cli.Flags, node.Injector) error {
	return nil
}

// OnStop implements node.Initializer.
func (Initializer) OnStop(node.Injector) error {
	return nil
}

func genSigner() ([]byte, error) {
	return ed25519.NewSigner().MarshalBinary()
}

func getPubKey(data []byte) (crypto.PublicKey, error) {
	signer, err := ed25519.NewSignerFromBytes(data)
	if err != nil {
		return nil, err
	}

	return signer.GetPublicKey(), nil
}

func saveFile(path string, force bool, data []byte) error {
	signer, err := ed25519.NewSignerFromBytes(data)
	if err != nil {
		return err
	}

	return ed25519.SaveSigner(path, signer, force)
}
