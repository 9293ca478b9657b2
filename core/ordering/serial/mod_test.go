package serial

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/escrow/core/execution"
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/core/store/mem"
	"go.dedis.ch/escrow/core/txn"
	"go.dedis.ch/escrow/core/txn/signed"
	"go.dedis.ch/escrow/internal/testing/fake"
)

func TestService_Submit(t *testing.T) {
	db := mem.NewStore()
	srvc := NewService(db, fakeExec{accept: true})

	signer := fake.NewSigner("alice")

	receipt, err := srvc.Submit(makeTx(t, signer, 0))
	require.NoError(t, err)
	require.True(t, receipt.Accepted)
	require.NotEmpty(t, receipt.ID)
	require.Len(t, receipt.TxID, 32)

	nonce, err := srvc.GetNonce(signer.GetPublicKey())
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	err = srvc.View(func(r store.Readable) error {
		value, err := r.Get([]byte("written"))
		require.Equal(t, []byte{1}, value)
		return err
	})
	require.NoError(t, err)

	next, err := srvc.Submit(makeTx(t, signer, 1))
	require.NoError(t, err)
	require.NotEqual(t, receipt.ID, next.ID)
}

func TestService_SubmitRejected(t *testing.T) {
	db := mem.NewStore()
	srvc := NewService(db, fakeExec{accept: false})

	signer := fake.NewSigner("alice")

	receipt, err := srvc.Submit(makeTx(t, signer, 0))
	require.NoError(t, err)
	require.False(t, receipt.Accepted)
	require.Equal(t, "refused", receipt.Message)

	// The nonce is consumed but nothing else is written.
	nonce, err := srvc.GetNonce(signer.GetPublicKey())
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
	require.Equal(t, 1, db.Len())

	_, err = srvc.Submit(makeTx(t, signer, 0))
	require.EqualError(t, err, "store: update aborted: nonce '0' != '1'")
}

func TestService_SubmitFailures(t *testing.T) {
	srvc := NewService(mem.NewStore(), fakeExec{accept: true})

	_, err := srvc.Submit(fakeTx{})
	require.EqualError(t, err, "transaction 'serial.fakeTx' is not verifiable")

	tx, err := signed.NewTransaction(0, fake.NewPublicKey("alice"))
	require.NoError(t, err)

	_, err = srvc.Submit(tx)
	require.EqualError(t, err, "tx verification failed: transaction is not signed")

	tx, err = signed.NewTransaction(0, fake.NewInvalidPublicKey("alice"))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(fake.NewSigner("alice")))

	_, err = srvc.Submit(tx)
	require.EqualError(t, err, fake.Err("tx verification failed: invalid signature"))

	_, err = srvc.Submit(makeTx(t, fake.NewSigner("alice"), 5))
	require.EqualError(t, err, "store: update aborted: nonce '5' != '0'")

	srvc = NewService(mem.NewStore(), fakeExec{err: fake.GetError()})
	_, err = srvc.Submit(makeTx(t, fake.NewSigner("alice"), 0))
	require.EqualError(t, err, fake.Err("store: update aborted: failed to execute tx"))

	srvc = NewService(fake.NewBadStore(), fakeExec{accept: true})
	_, err = srvc.Submit(makeTx(t, fake.NewSigner("alice"), 0))
	require.EqualError(t, err, fake.Err("store"))
}

func TestService_Watch(t *testing.T) {
	srvc := NewService(mem.NewStore(), fakeExec{accept: true})

	ctx, cancel := context.WithCancel(context.Background())

	receipts := srvc.Watch(ctx)

	signer := fake.NewSigner("alice")

	receipt, err := srvc.Submit(makeTx(t, signer, 0))
	require.NoError(t, err)

	select {
	case evt := <-receipts:
		require.Equal(t, receipt, evt)
	case <-time.After(time.Second):
		t.Fatal("receipt not received")
	}

	cancel()

	select {
	case _, more := <-receipts:
		require.False(t, more)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestService_GetNonce(t *testing.T) {
	db := fake.NewStore()
	srvc := NewService(db, fakeExec{})

	nonce, err := srvc.GetNonce(fake.NewPublicKey("alice"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)

	_, err = srvc.GetNonce(nil)
	require.EqualError(t, err, "nonce key: identity is nil")

	key, err := makeNonceKey(fake.NewPublicKey("alice"))
	require.NoError(t, err)

	require.NoError(t, db.Snap.Set(key, []byte{1, 2}))
	_, err = srvc.GetNonce(fake.NewPublicKey("alice"))
	require.EqualError(t, err, "store: invalid nonce length 2")

	db.Snap.ErrRead = fake.GetError()
	_, err = srvc.GetNonce(fake.NewPublicKey("alice"))
	require.EqualError(t, err, fake.Err("store: failed to read nonce"))

	srvc = NewService(fake.NewBadStore(), fakeExec{})
	_, err = srvc.GetNonce(fake.NewPublicKey("alice"))
	require.EqualError(t, err, fake.Err("store"))
}

func TestService_ConcurrentSubmit(t *testing.T) {
	srvc := NewService(mem.NewStore(), fakeExec{accept: true})

	n := 20
	wg := sync.WaitGroup{}
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()

			signer := fake.NewSigner(string(rune('a' + i)))

			tx, err := signed.NewTransaction(0, signer.GetPublicKey())
			if err != nil {
				t.Error(err)
				return
			}

			err = tx.Sign(signer)
			if err != nil {
				t.Error(err)
				return
			}

			_, err = srvc.Submit(tx)
			if err != nil {
				t.Error(err)
			}
		}(i)
	}

	wg.Wait()

	for i := 0; i < n; i++ {
		nonce, err := srvc.GetNonce(fake.NewPublicKey(string(rune('a' + i))))
		require.NoError(t, err)
		require.Equal(t, uint64(1), nonce)
	}
}

// -----------------------------------------------------------------------------
// Utility functions

func makeTx(t *testing.T, signer fake.Signer, nonce uint64) txn.Transaction {
	tx, err := signed.NewTransaction(nonce, signer.GetPublicKey())
	require.NoError(t, err)
	require.NoError(t, tx.Sign(signer))

	return tx
}

type fakeExec struct {
	accept bool
	err    error
}

func (e fakeExec) Execute(snap store.Snapshot, step execution.Step) (execution.Result, error) {
	if e.err != nil {
		return execution.Result{}, e.err
	}

	err := snap.Set([]byte("written"), []byte{1})
	if err != nil {
		return execution.Result{}, err
	}

	if !e.accept {
		return execution.Result{Message: "refused"}, nil
	}

	return execution.Result{Accepted: true}, nil
}

type fakeTx struct {
	txn.Transaction
}

func (fakeTx) GetID() []byte {
	return nil
}
