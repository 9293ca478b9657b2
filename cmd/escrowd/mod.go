// Package main implements the escrow node with a persistent store.
//
//	escrowd --config /tmp/escrow start --genesis genesis.yml
//	escrowd signer new --save buyer.key
//	escrowd signer read --path buyer.key --format HEX_PUBKEY
//	escrowd --config /tmp/escrow token approve --key buyer.key --amount 100
//	escrowd --config /tmp/escrow ledger lock --key buyer.key\
//	  --merchant XX --amount 100
//	escrowd --config /tmp/escrow ledger release --key buyer.key --merchant XX
//	escrowd --config /tmp/escrow ledger claim --key merchant.key
//	escrowd --config /tmp/escrow proxy start --clientaddr 127.0.0.1:8080
package main

import (
	"fmt"
	"io"
	"os"

	"go.dedis.ch/escrow/cli/node"
	ledger "go.dedis.ch/escrow/contracts/ledger/controller"
	token "go.dedis.ch/escrow/contracts/token/controller"
	ordering "go.dedis.ch/escrow/core/ordering/serial/controller"
	db "go.dedis.ch/escrow/core/store/kv/controller"
	signer "go.dedis.ch/escrow/crypto/ed25519/command"
	proxy "go.dedis.ch/escrow/proxy/http/controller"
)

type config struct {
	Channel chan os.Signal
	Writer  io.Writer
}

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return runWithCfg(args, config{})
}

func runWithCfg(args []string, cfg config) error {
	builder := node.NewBuilderWithCfg(
		cfg.Channel,
		cfg.Writer,
		db.NewController(),
		ordering.NewController(),
		token.NewController(),
		ledger.NewController(),
		proxy.NewController(),
		signer.NewInitializer(),
	)

	app := builder.Build()

	return app.Run(args)
}
