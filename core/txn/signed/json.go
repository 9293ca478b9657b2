// This file contains the JSON wire format of a signed transaction.

package signed

import (
	"encoding/hex"
	"encoding/json"

	"go.dedis.ch/escrow/core/txn"
	"go.dedis.ch/escrow/crypto"
	"golang.org/x/xerrors"
)

// TransactionJSON is the JSON message of a transaction. The arguments are
// base64 encoded, the identity and the signature are hex encoded.
type TransactionJSON struct {
	Nonce     uint64            `json:"nonce"`
	Args      map[string][]byte `json:"args"`
	Identity  string            `json:"identity"`
	Signature string            `json:"signature,omitempty"`
}

// MarshalJSON implements json.Marshaler. It returns the JSON message of the
// transaction.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	pubkey, err := t.pubkey.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal public key: %v", err)
	}

	m := TransactionJSON{
		Nonce:    t.nonce,
		Args:     t.args,
		Identity: hex.EncodeToString(pubkey),
	}

	if t.sig != nil {
		sig, err := t.sig.MarshalBinary()
		if err != nil {
			return nil, xerrors.Errorf("failed to marshal signature: %v", err)
		}

		m.Signature = hex.EncodeToString(sig)
	}

	return json.Marshal(m)
}

// TransactionFactory is a factory to deserialize transactions.
//
// - implements txn.Factory
type TransactionFactory struct {
	pubkeyFac crypto.PublicKeyFactory
	sigFac    crypto.SignatureFactory
}

// NewTransactionFactory returns a new factory that uses the given factories
// for the identity and the signature.
func NewTransactionFactory(pkf crypto.PublicKeyFactory, sf crypto.SignatureFactory) TransactionFactory {
	return TransactionFactory{
		pubkeyFac: pkf,
		sigFac:    sf,
	}
}

// TransactionOf implements txn.Factory. It populates the transaction from the
// data if appropriate, otherwise it returns an error. A signature, when
// present, must be valid.
func (f TransactionFactory) TransactionOf(data []byte) (txn.Transaction, error) {
	m := TransactionJSON{}
	err := json.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	buffer, err := hex.DecodeString(m.Identity)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode identity: %v", err)
	}

	pubkey, err := f.pubkeyFac.FromBytes(buffer)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode public key: %v", err)
	}

	opts := make([]TransactionOption, 0, len(m.Args)+1)
	for key, value := range m.Args {
		opts = append(opts, WithArg(key, value))
	}

	if m.Signature != "" {
		buffer, err = hex.DecodeString(m.Signature)
		if err != nil {
			return nil, xerrors.Errorf("failed to decode signature: %v", err)
		}

		sig, err := f.sigFac.SignatureOf(buffer)
		if err != nil {
			return nil, xerrors.Errorf("failed to decode signature: %v", err)
		}

		opts = append(opts, WithSignature(sig))
	}

	tx, err := NewTransaction(m.Nonce, pubkey, opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to create tx: %v", err)
	}

	return tx, nil
}
