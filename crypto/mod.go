// Package crypto defines the cryptographic primitives used to authenticate the
// issuer of a transaction.
package crypto

import (
	"encoding"
	"hash"

	"go.dedis.ch/escrow/core/access"
)

// HashFactory is an interface to produce a hash digest.
type HashFactory interface {
	New() hash.Hash
}

// PublicKey is a public identity that can be used to verify a signature.
type PublicKey interface {
	access.Identity
	encoding.BinaryMarshaler

	// Verify returns nil if the signature matches the message for this public
	// key.
	Verify(msg []byte, sig Signature) error
}

// PublicKeyFactory is a factory to create public keys.
type PublicKeyFactory interface {
	FromBytes(data []byte) (PublicKey, error)
}

// Signature is a verifiable element for a unique message.
type Signature interface {
	encoding.BinaryMarshaler

	Equal(other Signature) bool
}

// SignatureFactory is a factory to create signatures.
type SignatureFactory interface {
	SignatureOf(data []byte) (Signature, error)
}

// Signer provides the primitives to sign and verify signatures.
type Signer interface {
	encoding.BinaryMarshaler

	// GetPublicKeyFactory returns a factory that can deserialize public keys
	// of the same type as the signer.
	GetPublicKeyFactory() PublicKeyFactory

	// GetSignatureFactory returns a factory that can deserialize signatures of
	// the same type as the signer.
	GetSignatureFactory() SignatureFactory

	// GetPublicKey returns the public key of the signer.
	GetPublicKey() PublicKey

	// Sign returns a signature that will verify the message with the public
	// key of the signer.
	Sign(msg []byte) (Signature, error)
}
