package token

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/escrow/internal/testing/fake"
	"golang.org/x/xerrors"
)

var (
	minter = fake.NewPublicKey("minter")
	alice  = fake.NewPublicKey("alice")
	bob    = fake.NewPublicKey("bob")
)

func TestToken_Mint(t *testing.T) {
	snap := fake.NewSnapshot()
	tk := NewToken(minter)

	require.NoError(t, tk.Mint(snap, minter, alice, uint256.NewInt(100)))
	require.NoError(t, tk.Mint(snap, minter, bob, uint256.NewInt(50)))

	requireBalance(t, 100)(tk.Balance(snap, alice))
	requireBalance(t, 50)(tk.Balance(snap, bob))
	requireBalance(t, 150)(tk.Supply(snap))

	err := tk.Mint(snap, alice, alice, uint256.NewInt(1))
	require.True(t, xerrors.Is(err, ErrUnauthorized))
	require.EqualError(t, err, "mint: unauthorized")

	err = tk.Mint(snap, minter, alice, new(uint256.Int).SetAllOne())
	require.True(t, xerrors.Is(err, ErrOverflow))

	requireBalance(t, 100)(tk.Balance(snap, alice))

	err = NewToken(nil).Mint(snap, minter, alice, uint256.NewInt(1))
	require.True(t, xerrors.Is(err, ErrUnauthorized))
}

func TestToken_MintFailures(t *testing.T) {
	tk := NewToken(minter)

	err := tk.Mint(fake.NewBadSnapshot(), minter, alice, uint256.NewInt(1))
	require.EqualError(t, err, fake.Err("supply: failed to read"))

	err = tk.Mint(fake.NewSnapshot(), minter, nil, uint256.NewInt(1))
	require.EqualError(t, err, "balance key: identity is nil")

	snap := fake.NewSnapshot()
	snap.ErrWrite = fake.GetError()

	err = tk.Mint(snap, minter, alice, uint256.NewInt(1))
	require.EqualError(t, err, fake.Err("failed to write balance"))
}

func TestToken_Transfer(t *testing.T) {
	snap := fake.NewSnapshot()
	tk := NewToken(minter)
	require.NoError(t, tk.Mint(snap, minter, alice, uint256.NewInt(100)))

	ok, err := tk.Transfer(snap, alice, bob, uint256.NewInt(40))
	require.NoError(t, err)
	require.True(t, ok)

	requireBalance(t, 60)(tk.Balance(snap, alice))
	requireBalance(t, 40)(tk.Balance(snap, bob))

	ok, err = tk.Transfer(snap, alice, alice, uint256.NewInt(60))
	require.NoError(t, err)
	require.True(t, ok)
	requireBalance(t, 60)(tk.Balance(snap, alice))

	ok, err = tk.Transfer(snap, alice, bob, uint256.NewInt(61))
	require.False(t, ok)
	require.True(t, xerrors.Is(err, ErrInsufficientBalance))
	require.EqualError(t, err, "60 < 61: insufficient balance")

	requireBalance(t, 60)(tk.Balance(snap, alice))
	requireBalance(t, 40)(tk.Balance(snap, bob))
}

func TestToken_TransferPaused(t *testing.T) {
	snap := fake.NewSnapshot()
	tk := NewToken(minter)
	require.NoError(t, tk.Mint(snap, minter, alice, uint256.NewInt(100)))

	require.NoError(t, tk.SetPaused(snap, minter, true))

	paused, err := tk.Paused(snap)
	require.NoError(t, err)
	require.True(t, paused)

	ok, err := tk.Transfer(snap, alice, bob, uint256.NewInt(10))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = tk.TransferFrom(snap, bob, alice, bob, uint256.NewInt(10))
	require.NoError(t, err)
	require.False(t, ok)

	requireBalance(t, 100)(tk.Balance(snap, alice))

	require.NoError(t, tk.SetPaused(snap, minter, false))

	paused, err = tk.Paused(snap)
	require.NoError(t, err)
	require.False(t, paused)

	err = tk.SetPaused(snap, alice, true)
	require.True(t, xerrors.Is(err, ErrUnauthorized))

	snap.ErrWrite = fake.GetError()
	err = tk.SetPaused(snap, minter, true)
	require.EqualError(t, err, fake.Err("failed to write pause"))
}

func TestToken_ApproveAndTransferFrom(t *testing.T) {
	snap := fake.NewSnapshot()
	tk := NewToken(minter)
	require.NoError(t, tk.Mint(snap, minter, alice, uint256.NewInt(100)))

	require.NoError(t, tk.Approve(snap, alice, bob, uint256.NewInt(30)))
	require.NoError(t, tk.Approve(snap, alice, bob, uint256.NewInt(20)))

	requireBalance(t, 20)(tk.Allowance(snap, alice, bob))

	ok, err := tk.TransferFrom(snap, bob, alice, bob, uint256.NewInt(15))
	require.NoError(t, err)
	require.True(t, ok)

	requireBalance(t, 5)(tk.Allowance(snap, alice, bob))
	requireBalance(t, 85)(tk.Balance(snap, alice))
	requireBalance(t, 15)(tk.Balance(snap, bob))

	ok, err = tk.TransferFrom(snap, bob, alice, bob, uint256.NewInt(6))
	require.False(t, ok)
	require.True(t, xerrors.Is(err, ErrInsufficientAllowance))

	ok, err = tk.TransferFrom(snap, bob, alice, bob, uint256.NewInt(1000))
	require.False(t, ok)
	require.True(t, xerrors.Is(err, ErrInsufficientBalance))

	requireBalance(t, 5)(tk.Allowance(snap, alice, bob))
	requireBalance(t, 85)(tk.Balance(snap, alice))
}

func TestToken_Failures(t *testing.T) {
	tk := NewToken(minter)

	_, err := tk.Paused(fake.NewBadSnapshot())
	require.EqualError(t, err, fake.Err("failed to read"))

	_, err = tk.Transfer(fake.NewBadSnapshot(), alice, bob, uint256.NewInt(1))
	require.EqualError(t, err, fake.Err("paused: failed to read"))

	_, err = tk.TransferFrom(fake.NewBadSnapshot(), alice, bob, bob, uint256.NewInt(1))
	require.EqualError(t, err, fake.Err("paused: failed to read"))

	_, err = tk.Transfer(fake.NewSnapshot(), nil, bob, uint256.NewInt(1))
	require.EqualError(t, err, "balance key: identity is nil")

	_, err = tk.Allowance(fake.NewSnapshot(), alice, nil)
	require.EqualError(t, err, "allowance key: spender: identity is nil")

	err = tk.Approve(fake.NewSnapshot(), nil, bob, uint256.NewInt(1))
	require.EqualError(t, err, "allowance key: owner: identity is nil")

	err = tk.Approve(fake.NewBadSnapshot(), alice, bob, uint256.NewInt(1))
	require.EqualError(t, err, fake.Err("failed to write allowance"))

	_, err = tk.Balance(fake.NewSnapshot(), fake.NewBadPublicKey())
	require.EqualError(t, err,
		fake.Err("balance key: failed to marshal identity"))
}

func TestKeys_AreDistinct(t *testing.T) {
	bkey, err := balanceKey(alice)
	require.NoError(t, err)

	akey, err := allowanceKey(alice, bob)
	require.NoError(t, err)

	rkey, err := allowanceKey(bob, alice)
	require.NoError(t, err)

	require.NotEqual(t, bkey, akey)
	require.NotEqual(t, akey, rkey)
}

// -----------------------------------------------------------------------------
// Utility functions

func requireBalance(t *testing.T, expected uint64) func(*uint256.Int, error) {
	return func(amount *uint256.Int, err error) {
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(expected), amount)
	}
}

