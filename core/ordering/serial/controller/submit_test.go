package controller

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/core/execution"
	"go.dedis.ch/escrow/core/execution/native"
	"go.dedis.ch/escrow/core/ordering"
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/core/store/mem"
	"go.dedis.ch/escrow/core/txn"
	"go.dedis.ch/escrow/core/txn/signed"
	"go.dedis.ch/escrow/crypto"
	"go.dedis.ch/escrow/crypto/ed25519"
	"go.dedis.ch/escrow/internal/testing/fake"
	"golang.org/x/xerrors"
)

func TestSubmit_Accepted(t *testing.T) {
	dir, inj := makeSubmitEnv(t)
	defer os.RemoveAll(dir)

	out := new(bytes.Buffer)
	ctx := node.Context{
		Injector: inj,
		Flags: node.FlagSet{
			KeyFlag: filepath.Join(dir, "private.key"),
			"args":  []interface{}{native.ContractArg, "echo", "echo:value", "yes"},
		},
		Out: out,
	}

	err := submitAction{}.Execute(ctx)
	require.NoError(t, err)
	require.Contains(t, out.String(), `"accepted":true`)

	signer, err := ed25519.LoadSigner(filepath.Join(dir, "private.key"))
	require.NoError(t, err)

	var srvc ordering.Service
	require.NoError(t, inj.Resolve(&srvc))

	nonce, err := srvc.GetNonce(signer.GetPublicKey())
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	// The manager synchronizes the nonce before every submission.
	err = submitAction{}.Execute(ctx)
	require.NoError(t, err)

	nonce, err = srvc.GetNonce(signer.GetPublicKey())
	require.NoError(t, err)
	require.Equal(t, uint64(2), nonce)
}

func TestSubmit_Rejected(t *testing.T) {
	dir, inj := makeSubmitEnv(t)
	defer os.RemoveAll(dir)

	out := new(bytes.Buffer)
	ctx := node.Context{
		Injector: inj,
		Flags: node.FlagSet{
			KeyFlag: filepath.Join(dir, "private.key"),
			"args":  []interface{}{native.ContractArg, "echo", "echo:value", "no"},
		},
		Out: out,
	}

	err := submitAction{}.Execute(ctx)
	require.EqualError(t, err, "transaction rejected: echo refused")
	require.Contains(t, out.String(), `"accepted":false`)
}

func TestSubmit_Failures(t *testing.T) {
	dir, inj := makeSubmitEnv(t)
	defer os.RemoveAll(dir)

	ctx := node.Context{
		Injector: inj,
		Flags: node.FlagSet{
			KeyFlag: filepath.Join(dir, "private.key"),
			"args":  []interface{}{"a"},
		},
		Out: new(bytes.Buffer),
	}

	err := submitAction{}.Execute(ctx)
	require.EqualError(t, err, "failed to get args: number of args should be even")

	ctx.Flags = node.FlagSet{KeyFlag: filepath.Join(dir, "private.key")}

	// Unknown contract.
	err = Submit(ctx)
	require.Error(t, err)
	require.Regexp(t, "^failed to submit: store: .*unknown contract ''", err.Error())

	ctx.Flags = node.FlagSet{KeyFlag: filepath.Join(dir, "unknown.key")}
	err = Submit(ctx)
	require.Error(t, err)
	require.Regexp(t, "^failed to load signer: while reading file:", err.Error())

	ctx.Flags = node.FlagSet{KeyFlag: filepath.Join(dir, "private.key")}

	getManager = func(crypto.Signer, signed.Client) txn.Manager {
		return badManager{errSync: fake.GetError()}
	}
	defer func() {
		getManager = func(signer crypto.Signer, c signed.Client) txn.Manager {
			return signed.NewManager(signer, c)
		}
	}()

	err = Submit(ctx)
	require.EqualError(t, err, fake.Err("failed to sync manager"))

	getManager = func(crypto.Signer, signed.Client) txn.Manager {
		return badManager{errMake: fake.GetError()}
	}

	err = Submit(ctx)
	require.EqualError(t, err, fake.Err("creating transaction"))

	ctx.Injector = node.NewInjector()
	err = Submit(ctx)
	require.EqualError(t, err,
		"injector: couldn't find dependency for 'ordering.Service'")
}

// -----------------------------------------------------------------------------
// Utility functions

func makeSubmitEnv(t *testing.T) (string, node.Injector) {
	dir, err := os.MkdirTemp(os.TempDir(), "escrow-submit")
	require.NoError(t, err)

	require.NoError(t, ed25519.SaveSigner(filepath.Join(dir, "private.key"),
		ed25519.NewSigner(), false))

	inj := node.NewInjector()
	inj.Inject(mem.NewStore())
	require.NoError(t, NewController().OnStart(node.FlagSet{}, inj))

	var exec *native.Service
	require.NoError(t, inj.Resolve(&exec))

	exec.Set("echo", echoContract{})

	return dir, inj
}

type echoContract struct{}

func (echoContract) UID() string {
	return "ECHO"
}

func (echoContract) Execute(snap store.Snapshot, step execution.Step) error {
	if string(step.Current.GetArg("echo:value")) != "yes" {
		return xerrors.New("echo refused")
	}

	return snap.Set([]byte("echo"), []byte("yes"))
}

type badManager struct {
	txn.Manager

	errSync error
	errMake error
}

func (m badManager) Sync() error {
	return m.errSync
}

func (m badManager) Make(...txn.Arg) (txn.Transaction, error) {
	return nil, m.errMake
}
