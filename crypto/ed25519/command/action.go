package command

import (
	"encoding/hex"
	"fmt"
	"io"

	"go.dedis.ch/escrow/cli"
	"go.dedis.ch/escrow/crypto"
	"golang.org/x/xerrors"
)

const (
	// Pubkey prints the text form of the public key.
	Pubkey = "PUBKEY"

	// HexPubkey prints the hex encoded public key, which is the form the
	// identity flags expect.
	HexPubkey = "HEX_PUBKEY"

	// Hex prints the hex encoded private key.
	Hex = "HEX"
)

// action defines the actions of the signer commands. The functions are
// replaced in the tests.
type action struct {
	printer io.Writer

	genSigner func() ([]byte, error)
	getPubKey func([]byte) (crypto.PublicKey, error)

	readFile func(filename string) ([]byte, error)
	saveFile func(path string, force bool, data []byte) error
}

func (a action) newSignerAction(flags cli.Flags) error {
	data, err := a.genSigner()
	if err != nil {
		return xerrors.Errorf("failed to marshal signer: %v", err)
	}

	path := flags.String("save")
	if path == "" {
		fmt.Fprintln(a.printer, hex.EncodeToString(data))
		return nil
	}

	err = a.saveFile(path, flags.Bool("force"), data)
	if err != nil {
		return xerrors.Errorf("failed to save file: %v", err)
	}

	return nil
}

func (a action) readSignerAction(flags cli.Flags) error {
	data, err := a.readFile(flags.Path("path"))
	if err != nil {
		return xerrors.Errorf("failed to read data: %v", err)
	}

	format := flags.String("format")

	if format == Hex {
		fmt.Fprint(a.printer, hex.EncodeToString(data))
		return nil
	}

	pubkey, err := a.getPubKey(data)
	if err != nil {
		return xerrors.Errorf("failed to get public key: %v", err)
	}

	var out string

	switch format {
	case Pubkey:
		text, err := pubkey.MarshalText()
		if err != nil {
			return xerrors.Errorf("failed to marshal public key: %v", err)
		}

		out = string(text)
	case HexPubkey:
		buf, err := pubkey.MarshalBinary()
		if err != nil {
			return xerrors.Errorf("failed to marshal public key: %v", err)
		}

		out = hex.EncodeToString(buf)
	default:
		return xerrors.Errorf("unknown format '%s'", format)
	}

	fmt.Fprint(a.printer, out)

	return nil
}
