package controller

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/core/store"
)

func TestMinimal_SetCommands(t *testing.T) {
	ctrl := NewController()
	ctrl.SetCommands(nil)
}

func TestMinimal_OnStartAndStop(t *testing.T) {
	dir, err := os.MkdirTemp(os.TempDir(), "escrow-kv-ctrl")
	require.NoError(t, err)

	defer os.RemoveAll(dir)

	ctrl := NewController()
	inj := node.NewInjector()

	err = ctrl.OnStart(node.FlagSet{"config": dir}, inj)
	require.NoError(t, err)

	var db store.Store
	require.NoError(t, inj.Resolve(&db))

	require.NoError(t, ctrl.OnStop(inj))
}

func TestMinimal_OnStartBadPath(t *testing.T) {
	ctrl := NewController()

	err := ctrl.OnStart(node.FlagSet{"config": "/unknown/dir"}, node.NewInjector())
	require.Error(t, err)
	require.Regexp(t, "^db: failed to open db:", err.Error())
}

func TestMinimal_OnStopMissingDB(t *testing.T) {
	ctrl := NewController()

	err := ctrl.OnStop(node.NewInjector())
	require.EqualError(t, err,
		"injector: couldn't find dependency for '*kv.DB'")
}
