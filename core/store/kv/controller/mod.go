// Package controller implements a CLI initializer that opens the persistent
// store of the node.
package controller

import (
	"path/filepath"

	"go.dedis.ch/escrow/cli"
	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/core/store/kv"
	"golang.org/x/xerrors"
)

// DBName is the name of the database file in the config folder.
const DBName = "escrow.db"

// minimal opens the database when the node starts and closes it when the node
// stops.
//
// - implements node.Initializer
type minimal struct{}

// NewController returns a new initializer for the database.
func NewController() node.Initializer {
	return minimal{}
}

// SetCommands implements node.Initializer. The database has no command.
func (m minimal) SetCommands(builder node.Builder) {}

// OnStart implements node.Initializer. It opens the database and injects it.
func (m minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	db, err := kv.New(filepath.Join(flags.Path("config"), DBName))
	if err != nil {
		return xerrors.Errorf("db: %v", err)
	}

	inj.Inject(db)

	return nil
}

// OnStop implements node.Initializer. It closes the database.
func (m minimal) OnStop(inj node.Injector) error {
	var db *kv.DB
	err := inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	err = db.Close()
	if err != nil {
		return xerrors.Errorf("while closing db: %v", err)
	}

	return nil
}
