package ed25519

import (
	"os"

	"golang.org/x/xerrors"
)

// LoadSigner reads the private key stored at the path and returns the signer.
func LoadSigner(path string) (Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Signer{}, xerrors.Errorf("while reading file: %v", err)
	}

	signer, err := NewSignerFromBytes(data)
	if err != nil {
		return Signer{}, xerrors.Errorf("while restoring signer: %v", err)
	}

	return signer, nil
}

// LoadOrCreateSigner returns the signer stored at the path, or creates and
// saves a new one when the file does not exist.
func LoadOrCreateSigner(path string) (Signer, error) {
	_, err := os.Stat(path)
	if err == nil {
		return LoadSigner(path)
	}

	if !os.IsNotExist(err) {
		return Signer{}, xerrors.Errorf("while checking file: %v", err)
	}

	signer := NewSigner()

	err = SaveSigner(path, signer, false)
	if err != nil {
		return Signer{}, err
	}

	return signer, nil
}

// SaveSigner writes the private key of the signer to the path. The file is
// only overwritten when force is true.
func SaveSigner(path string, signer Signer, force bool) error {
	_, err := os.Stat(path)
	if err == nil && !force {
		return xerrors.Errorf("file '%s' already exist, use --force if you "+
			"want to overwrite", path)
	}

	data, err := signer.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("failed to marshal signer: %v", err)
	}

	err = os.WriteFile(path, data, 0400)
	if os.IsPermission(err) && force {
		// The previous file is read-only.
		err = os.Remove(path)
		if err == nil {
			err = os.WriteFile(path, data, 0400)
		}
	}

	if err != nil {
		return xerrors.Errorf("while writing file: %v", err)
	}

	return nil
}
