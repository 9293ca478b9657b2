package signed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/escrow/core/access"
	"go.dedis.ch/escrow/core/txn"
	"go.dedis.ch/escrow/crypto"
	"go.dedis.ch/escrow/crypto/ed25519"
	"go.dedis.ch/escrow/internal/testing/fake"
)

func TestTransaction_New(t *testing.T) {
	tx, err := NewTransaction(123, fake.NewPublicKey("a"))
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.Equal(t, uint64(123), tx.GetNonce())
	require.Len(t, tx.GetID(), 32)
	require.True(t, tx.GetIdentity().Equal(fake.NewPublicKey("a")))

	tx, err = NewTransaction(1, fake.NewPublicKey("a"), WithArg("A", []byte{1}))
	require.NoError(t, err)
	require.Equal(t, []byte{1}, tx.GetArg("A"))
	require.Equal(t, []string{"A"}, tx.GetArgs())

	_, err = NewTransaction(0, nil)
	require.EqualError(t, err, "public key is missing")

	_, err = NewTransaction(0, fake.NewBadPublicKey())
	require.EqualError(t, err,
		fake.Err("couldn't fingerprint tx: failed to marshal public key"))

	_, err = NewTransaction(0, fake.NewBadPublicKey(),
		WithHashFactory(fake.NewHashFactory(fake.NewBadHash())))
	require.EqualError(t, err,
		fake.Err("couldn't fingerprint tx: couldn't write nonce"))

	_, err = NewTransaction(0, fake.NewInvalidPublicKey("a"),
		WithSignature(fake.Signature{}))
	require.EqualError(t, err, fake.Err("invalid signature"))
}

func TestTransaction_Sign(t *testing.T) {
	signer := ed25519.NewSigner()

	tx, err := NewTransaction(0, signer.GetPublicKey(), WithArg("A", []byte("B")))
	require.NoError(t, err)
	require.EqualError(t, tx.Verify(), "transaction is not signed")

	require.NoError(t, tx.Sign(signer))
	require.NoError(t, tx.Verify())
	require.NotNil(t, tx.GetSignature())
	require.True(t, tx.GetPublicKey().Equal(signer.GetPublicKey()))

	err = tx.Sign(ed25519.NewSigner())
	require.EqualError(t, err, "mismatch signer and identity")

	tx.hash = nil
	err = tx.Sign(signer)
	require.EqualError(t, err, "missing digest in transaction")

	tx, err = NewTransaction(0, fake.NewPublicKey("bad"))
	require.NoError(t, err)

	err = tx.Sign(fake.NewBadSigner())
	require.EqualError(t, err, fake.Err("signer"))
}

func TestTransaction_VerifyTampered(t *testing.T) {
	signer := ed25519.NewSigner()

	tx, err := NewTransaction(0, signer.GetPublicKey(), WithArg("amount", []byte("10")))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(signer))

	tx.args["amount"] = []byte("1000")
	tx.hash = fingerprint(t, tx)

	err = tx.Verify()
	require.Error(t, err)
	require.Regexp(t, "^invalid signature: schnorr verify failed", err.Error())
}

func TestTransaction_FingerprintBoundaries(t *testing.T) {
	pk := fake.NewPublicKey("a")

	tx1, err := NewTransaction(0, pk, WithArg("ab", []byte("c")))
	require.NoError(t, err)

	tx2, err := NewTransaction(0, pk, WithArg("a", []byte("bc")))
	require.NoError(t, err)

	require.NotEqual(t, tx1.GetID(), tx2.GetID())
}

func TestTransaction_JSON(t *testing.T) {
	signer := ed25519.NewSigner()

	tx, err := NewTransaction(5, signer.GetPublicKey(), WithArg("A", []byte("B")))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(signer))

	data, err := json.Marshal(tx)
	require.NoError(t, err)

	fac := NewTransactionFactory(ed25519.NewPublicKeyFactory(), ed25519.NewSignatureFactory())

	res, err := fac.TransactionOf(data)
	require.NoError(t, err)
	require.Equal(t, tx.GetID(), res.GetID())
	require.NoError(t, res.(*Transaction).Verify())

	unsigned, err := NewTransaction(5, signer.GetPublicKey())
	require.NoError(t, err)

	data, err = json.Marshal(unsigned)
	require.NoError(t, err)
	require.NotContains(t, string(data), "signature")

	_, err = json.Marshal(&Transaction{pubkey: fake.NewBadPublicKey()})
	require.Error(t, err)

	_, err = json.Marshal(&Transaction{pubkey: fake.NewPublicKey("a"), sig: fake.NewBadSignature()})
	require.Error(t, err)
}

func TestTransactionFactory_TransactionOf(t *testing.T) {
	fac := NewTransactionFactory(fake.PublicKeyFactory{}, fake.SignatureFactory{})

	_, err := fac.TransactionOf([]byte("{"))
	require.Error(t, err)
	require.Regexp(t, "^failed to unmarshal:", err.Error())

	_, err = fac.TransactionOf([]byte(`{"identity":"zz"}`))
	require.Error(t, err)
	require.Regexp(t, "^failed to decode identity:", err.Error())

	_, err = fac.TransactionOf([]byte(`{"identity":"aa","signature":"zz"}`))
	require.Error(t, err)
	require.Regexp(t, "^failed to decode signature:", err.Error())

	tx, err := fac.TransactionOf([]byte(`{"nonce":2,"identity":"aa","args":{"A":"AQ=="}}`))
	require.NoError(t, err)
	require.Equal(t, uint64(2), tx.GetNonce())
	require.Equal(t, []byte{1}, tx.GetArg("A"))

	fac = NewTransactionFactory(fake.NewBadPublicKeyFactory(), fake.SignatureFactory{})
	_, err = fac.TransactionOf([]byte(`{"identity":"aa"}`))
	require.EqualError(t, err, fake.Err("failed to decode public key"))
}

func TestManager_Make(t *testing.T) {
	mgr := NewManager(ed25519.NewSigner(), fakeClient{})

	tx, err := mgr.Make(txn.Arg{Key: "a", Value: []byte{1}})
	require.NoError(t, err)
	require.Equal(t, uint64(0), tx.GetNonce())
	require.NoError(t, tx.(*Transaction).Verify())

	tx, err = mgr.Make()
	require.NoError(t, err)
	require.Equal(t, uint64(1), tx.GetNonce())

	mgr.signer = fake.NewBadSigner()
	_, err = mgr.Make()
	require.EqualError(t, err, fake.Err("failed to sign: signer"))

	mgr.signer = fake.NewSigner("a")
	mgr.hashFac = fake.NewHashFactory(fake.NewBadHash())
	_, err = mgr.Make()
	require.EqualError(t, err,
		fake.Err("failed to create tx: couldn't fingerprint tx: couldn't write nonce"))
}

func TestManager_Sync(t *testing.T) {
	mgr := NewManager(ed25519.NewSigner(), fakeClient{nonce: 42})

	require.NoError(t, mgr.Sync())
	require.Equal(t, uint64(42), mgr.nonce)

	mgr.client = fakeClient{err: fake.GetError()}
	require.EqualError(t, mgr.Sync(), fake.Err("client"))
}

// -----------------------------------------------------------------------------
// Utility functions

func fingerprint(t *testing.T, tx *Transaction) []byte {
	h := crypto.NewHashFactory(crypto.Sha256).New()
	require.NoError(t, tx.Fingerprint(h))

	return h.Sum(nil)
}

type fakeClient struct {
	nonce uint64
	err   error
}

func (c fakeClient) GetNonce(access.Identity) (uint64, error) {
	return c.nonce, c.err
}
