package controller

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.dedis.ch/escrow"
	"go.dedis.ch/escrow/cli/node"
	"go.dedis.ch/escrow/contracts/ledger"
	"go.dedis.ch/escrow/contracts/token"
	"go.dedis.ch/escrow/core/ordering"
	"go.dedis.ch/escrow/core/txn/signed"
	"go.dedis.ch/escrow/proxy"
	proxyhttp "go.dedis.ch/escrow/proxy/http"
	"golang.org/x/xerrors"
)

var defaultRetry = 10

var retryInterval = 100 * time.Millisecond

var proxyFac = func(addr string) proxy.Proxy {
	return proxyhttp.NewHTTP(addr)
}

// registerLock prevents the collectors to be registered twice.
var registerLock sync.Mutex

// startAction is an action to start the proxy and register the escrow API.
//
// - implements node.ActionTemplate
type startAction struct{}

// Execute implements node.ActionTemplate. It starts and injects the proxy http
// server.
func (a startAction) Execute(ctx node.Context) error {
	var existing proxy.Proxy
	if ctx.Injector.Resolve(&existing) == nil && existing.GetAddr() != nil {
		return xerrors.Errorf("proxy already running on %s", existing.GetAddr())
	}

	var srvc ordering.Service
	err := ctx.Injector.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("failed to resolve ordering service: %v", err)
	}

	var txFac signed.TransactionFactory
	err = ctx.Injector.Resolve(&txFac)
	if err != nil {
		return xerrors.Errorf("failed to resolve tx factory: %v", err)
	}

	var tk token.Contract
	err = ctx.Injector.Resolve(&tk)
	if err != nil {
		return xerrors.Errorf("failed to resolve token contract: %v", err)
	}

	var lg ledger.Contract
	err = ctx.Injector.Resolve(&lg)
	if err != nil {
		return xerrors.Errorf("failed to resolve ledger contract: %v", err)
	}

	p := proxyFac(ctx.Flags.String("clientaddr"))

	newAPI(srvc, txFac, tk, lg).register(p)

	go p.Listen()

	for i := 0; i < defaultRetry && p.GetAddr() == nil; i++ {
		time.Sleep(retryInterval)
	}

	if p.GetAddr() == nil {
		p.Stop()
		return xerrors.New("failed to start proxy server")
	}

	ctx.Injector.Inject(p)

	fmt.Fprintf(ctx.Out, "started proxy server on %s", p.GetAddr().String())

	return nil
}

// promAction is an action to serve the Prometheus metrics on the proxy.
//
// - implements node.ActionTemplate
type promAction struct{}

// Execute implements node.ActionTemplate. It registers the Prometheus handler.
func (a promAction) Execute(ctx node.Context) error {
	var p proxy.Proxy
	err := ctx.Injector.Resolve(&p)
	if err != nil {
		return xerrors.Errorf("failed to resolve the proxy: %v", err)
	}

	registerLock.Lock()
	defer registerLock.Unlock()

	for _, c := range escrow.PromCollectors {
		err = prometheus.DefaultRegisterer.Register(c)
		if err != nil && !isAlreadyRegistered(err) {
			fmt.Fprintf(ctx.Out, "ERROR: failed to register: %v\n", err)
		}
	}

	path := ctx.Flags.String("path")

	p.RegisterHandler(http.MethodGet, path, promhttp.Handler().ServeHTTP)

	fmt.Fprintf(ctx.Out, "registered prometheus service on %q", path)

	return nil
}

func isAlreadyRegistered(err error) bool {
	_, ok := err.(prometheus.AlreadyRegisteredError)
	return ok
}
