// Package access defines the identities that own balances and issue
// transactions.
//
// An identity is either the public key of a signer, or the custody account of
// a contract that holds value on behalf of others.
package access

import (
	"encoding"
	"strings"

	"golang.org/x/xerrors"
)

// Identity is an abstraction to uniquely identify an owner of value.
type Identity interface {
	encoding.TextMarshaler

	// Equal returns true when the other object is the same identity.
	Equal(other interface{}) bool
}

// Compile returns a compacted rule from the string segments.
func Compile(segments ...string) string {
	return strings.Join(segments, ":")
}

// Key returns the storage key of an identity, which is its text form.
func Key(ident Identity) ([]byte, error) {
	if ident == nil {
		return nil, xerrors.New("identity is nil")
	}

	key, err := ident.MarshalText()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal identity: %v", err)
	}

	if len(key) == 0 {
		return nil, xerrors.New("identity has an empty text form")
	}

	return key, nil
}
