// Package fake provides fake implementations for interfaces commonly used in
// the repository.
//
// The implementations offer configuration to return errors when it is needed by
// the unit test and it is also possible to record the call of functions of an
// object in some cases.
package fake

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"hash"
	"sync"

	"go.dedis.ch/escrow/crypto"
	"golang.org/x/xerrors"
)

var fakeErr = xerrors.New("fake error")

// GetError returns the fake error.
func GetError() error {
	return fakeErr
}

// Err returns the expected message of an error wrapping the fake error with
// the given prefix.
func Err(msg string) string {
	return fmt.Sprintf("%s: %v", msg, fakeErr)
}

// Call is a tool to keep track of a function calls.
type Call struct {
	sync.Mutex
	calls [][]interface{}
}

// NewCall returns a new empty call monitor.
func NewCall() *Call {
	return &Call{}
}

// Get returns the nth call ith parameter.
func (c *Call) Get(n, i int) interface{} {
	if c == nil {
		return nil
	}

	c.Lock()
	defer c.Unlock()

	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	if c == nil {
		return 0
	}

	c.Lock()
	defer c.Unlock()

	return len(c.calls)
}

// Add adds a call to the list.
func (c *Call) Add(args ...interface{}) {
	if c == nil {
		return
	}

	c.Lock()
	c.calls = append(c.calls, args)
	c.Unlock()
}

// PublicKey is a fake implementation of crypto.PublicKey. Two fake public keys
// are equal when they share the same name.
//
// - implements crypto.PublicKey
type PublicKey struct {
	Name      string
	err       error
	verifyErr error
}

// NewPublicKey returns a fake public key with the given name.
func NewPublicKey(name string) PublicKey {
	return PublicKey{Name: name}
}

// NewBadPublicKey returns a fake public key that returns errors.
func NewBadPublicKey() PublicKey {
	return PublicKey{Name: "bad", err: fakeErr, verifyErr: fakeErr}
}

// NewInvalidPublicKey returns a fake public key that never verifies a
// signature.
func NewInvalidPublicKey(name string) PublicKey {
	return PublicKey{Name: name, verifyErr: fakeErr}
}

// Verify implements crypto.PublicKey.
func (pk PublicKey) Verify([]byte, crypto.Signature) error {
	return pk.verifyErr
}

// Equal implements access.Identity.
func (pk PublicKey) Equal(other interface{}) bool {
	o, ok := other.(PublicKey)
	return ok && o.Name == pk.Name
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return []byte(pk.Name), pk.err
}

// MarshalText implements encoding.TextMarshaler.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte("fake:" + pk.Name), pk.err
}

// String implements fmt.Stringer.
func (pk PublicKey) String() string {
	return "fake.PublicKey(" + pk.Name + ")"
}

// PublicKeyFactory is a fake implementation of crypto.PublicKeyFactory. It
// uses the data as the name of the key.
//
// - implements crypto.PublicKeyFactory
type PublicKeyFactory struct {
	err error
}

// NewBadPublicKeyFactory returns a factory that always fails.
func NewBadPublicKeyFactory() PublicKeyFactory {
	return PublicKeyFactory{err: fakeErr}
}

// FromBytes implements crypto.PublicKeyFactory.
func (f PublicKeyFactory) FromBytes(data []byte) (crypto.PublicKey, error) {
	if f.err != nil {
		return nil, f.err
	}

	return NewPublicKey(string(data)), nil
}

// Signature is a fake implementation of crypto.Signature.
//
// - implements crypto.Signature
type Signature struct {
	data []byte
	err  error
}

// NewSignature returns a fake signature with the data.
func NewSignature(data []byte) Signature {
	return Signature{data: data}
}

// NewBadSignature returns a fake signature that fails to marshal.
func NewBadSignature() Signature {
	return Signature{err: fakeErr}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Signature) MarshalBinary() ([]byte, error) {
	return s.data, s.err
}

// Equal implements crypto.Signature.
func (s Signature) Equal(other crypto.Signature) bool {
	o, ok := other.(Signature)
	return ok && bytes.Equal(o.data, s.data)
}

// SignatureFactory is a fake implementation of crypto.SignatureFactory.
//
// - implements crypto.SignatureFactory
type SignatureFactory struct {
	err error
}

// SignatureOf implements crypto.SignatureFactory.
func (f SignatureFactory) SignatureOf(data []byte) (crypto.Signature, error) {
	return NewSignature(data), f.err
}

// Signer is a fake implementation of crypto.Signer.
//
// - implements crypto.Signer
type Signer struct {
	pubkey PublicKey
	err    error
}

// NewSigner returns a fake signer with a public key of the given name.
func NewSigner(name string) Signer {
	return Signer{pubkey: NewPublicKey(name)}
}

// NewBadSigner returns a fake signer that fails to sign.
func NewBadSigner() Signer {
	return Signer{pubkey: NewPublicKey("bad"), err: fakeErr}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Signer) MarshalBinary() ([]byte, error) {
	return []byte(s.pubkey.Name), s.err
}

// GetPublicKeyFactory implements crypto.Signer.
func (s Signer) GetPublicKeyFactory() crypto.PublicKeyFactory {
	return PublicKeyFactory{}
}

// GetSignatureFactory implements crypto.Signer.
func (s Signer) GetSignatureFactory() crypto.SignatureFactory {
	return SignatureFactory{}
}

// GetPublicKey implements crypto.Signer.
func (s Signer) GetPublicKey() crypto.PublicKey {
	return s.pubkey
}

// Sign implements crypto.Signer.
func (s Signer) Sign(msg []byte) (crypto.Signature, error) {
	if s.err != nil {
		return nil, s.err
	}

	return NewSignature([]byte(s.pubkey.Name)), nil
}

// Hash is a fake implementation of hash.Hash.
//
// - implements hash.Hash
type Hash struct {
	hash.Hash
	err error
}

// NewBadHash returns a fake hash that fails to write.
func NewBadHash() *Hash {
	return &Hash{Hash: sha256.New(), err: fakeErr}
}

// Write implements io.Writer.
func (h *Hash) Write(in []byte) (int, error) {
	if h.err != nil {
		return 0, h.err
	}

	return h.Hash.Write(in)
}

// HashFactory is a fake implementation of crypto.HashFactory.
//
// - implements crypto.HashFactory
type HashFactory struct {
	hash *Hash
}

// NewHashFactory returns a fake hash factory that returns the given hash.
func NewHashFactory(h *Hash) HashFactory {
	return HashFactory{hash: h}
}

// New implements crypto.HashFactory.
func (f HashFactory) New() hash.Hash {
	return f.hash
}

// Counter is a helper to delay errors or actions. It can be nil without panics.
type Counter struct {
	sync.Mutex
	Value int
}

// NewCounter returns a new counter set to the given value.
func NewCounter(value int) *Counter {
	return &Counter{
		Value: value,
	}
}

// Done returns true when the counter reached zero.
func (c *Counter) Done() bool {
	if c == nil {
		return true
	}

	c.Lock()
	defer c.Unlock()

	return c.Value <= 0
}

// Decrease decrements the counter.
func (c *Counter) Decrease() {
	if c == nil {
		return
	}

	c.Lock()
	c.Value--
	c.Unlock()
}
