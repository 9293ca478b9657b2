// Package controller implements a CLI initializer to start the HTTP proxy of
// the node, which serves the escrow API and the Prometheus metrics.
package controller

import (
	"go.dedis.ch/escrow/cli"
	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/proxy"
)

const defaultAddr = "127.0.0.1:8080"

const defaultProm = "/metrics"

// minimal is an initializer with the minimum set of commands. The proxy is
// created by the start command.
//
// - implements node.Initializer
type minimal struct{}

// NewController returns a new minimal initializer.
func NewController() node.Initializer {
	return minimal{}
}

// SetCommands implements node.Initializer.
func (m minimal) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("proxy")
	cmd.SetDescription("HTTP proxy of the node")

	sub := cmd.SetSubCommand("start")
	sub.SetDescription("start the proxy http server and serve the escrow API")
	sub.SetFlags(cli.StringFlag{
		Name:     "clientaddr",
		Required: false,
		Usage:    "the address of the http client",
		Value:    defaultAddr,
		EnvVars:  []string{"ESCROW_PROXY_ADDR"},
	})
	sub.SetAction(builder.MakeAction(startAction{}))

	sub = cmd.SetSubCommand("prom")
	sub.SetDescription("registers the collectors and starts a prometheus " +
		"handler")
	sub.SetFlags(cli.StringFlag{
		Name:     "path",
		Required: false,
		Usage:    "the handler path",
		Value:    defaultProm,
	})
	sub.SetAction(builder.MakeAction(promAction{}))
}

// OnStart implements node.Initializer.
func (m minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	return nil
}

// OnStop implements node.Initializer. It stops the http server if it has been
// started.
func (m minimal) OnStop(inj node.Injector) error {
	var p proxy.Proxy
	err := inj.Resolve(&p)
	if err == nil {
		p.Stop()
	}

	return nil
}
