package controller

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"go.dedis.ch/escrow"
	"go.dedis.ch/escrow/contracts/ledger"
	"go.dedis.ch/escrow/contracts/token"
	"go.dedis.ch/escrow/core/access"
	"go.dedis.ch/escrow/core/ordering"
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/core/txn"
	"go.dedis.ch/escrow/crypto/ed25519"
	"go.dedis.ch/escrow/proxy"
	proxyhttp "go.dedis.ch/escrow/proxy/http"
)

// maxBodySize is the maximum size of a transaction in bytes.
const maxBodySize = 1 << 16

// api serves the transactions and the views of the escrow node.
type api struct {
	srvc   ordering.Service
	txFac  txn.Factory
	token  token.Contract
	ledger ledger.Contract
	logger zerolog.Logger
}

func newAPI(srvc ordering.Service, txFac txn.Factory, tk token.Contract, lg ledger.Contract) api {
	return api{
		srvc:   srvc,
		txFac:  txFac,
		token:  tk,
		ledger: lg,
		logger: escrow.Logger.With().Str("role", "api").Logger(),
	}
}

type amountResponse struct {
	Amount string `json:"amount"`
}

type nonceResponse struct {
	Nonce uint64 `json:"nonce"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestID,omitempty"`
}

// register adds the routes of the API to the proxy.
func (a api) register(p proxy.Proxy) {
	p.RegisterHandler(http.MethodPost, "/transactions", a.submit)
	p.RegisterHandler(http.MethodGet, "/receipts", a.receipts)
	p.RegisterHandler(http.MethodGet, "/nonce/{identity}", a.nonce)
	p.RegisterHandler(http.MethodGet, "/token/balance/{identity}", a.balance)
	p.RegisterHandler(http.MethodGet, "/ledger/locked/{buyer}/{merchant}", a.locked)
	p.RegisterHandler(http.MethodGet, "/ledger/claimable/{merchant}", a.claimable)
}

func (a api) submit(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		a.fail(w, r, http.StatusBadRequest, "failed to read body: %v", err)
		return
	}

	tx, err := a.txFac.TransactionOf(data)
	if err != nil {
		a.fail(w, r, http.StatusBadRequest, "invalid transaction: %v", err)
		return
	}

	receipt, err := a.srvc.Submit(tx)
	if err != nil {
		a.fail(w, r, http.StatusUnprocessableEntity, "failed to submit: %v", err)
		return
	}

	a.reply(w, r, http.StatusOK, receipt)
}

// receipts streams the receipts of the transactions, one JSON document per
// line, until the client disconnects.
func (a api) receipts(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.fail(w, r, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	receipts := a.srvc.Watch(r.Context())

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)

	for receipt := range receipts {
		err := enc.Encode(receipt)
		if err != nil {
			a.logger.Debug().Err(err).Msg("receipt stream closed")
			return
		}

		flusher.Flush()
	}
}

func (a api) nonce(w http.ResponseWriter, r *http.Request) {
	ident, ok := a.identityOf(w, r, "identity")
	if !ok {
		return
	}

	nonce, err := a.srvc.GetNonce(ident)
	if err != nil {
		a.fail(w, r, http.StatusInternalServerError, "failed to read nonce: %v", err)
		return
	}

	a.reply(w, r, http.StatusOK, nonceResponse{Nonce: nonce})
}

func (a api) balance(w http.ResponseWriter, r *http.Request) {
	ident, ok := a.identityOf(w, r, "identity")
	if !ok {
		return
	}

	a.view(w, r, func(rd store.Readable) (*uint256.Int, error) {
		return a.token.Balance(rd, ident)
	})
}

func (a api) locked(w http.ResponseWriter, r *http.Request) {
	buyer, ok := a.identityOf(w, r, "buyer")
	if !ok {
		return
	}

	merchant, ok := a.identityOf(w, r, "merchant")
	if !ok {
		return
	}

	a.view(w, r, func(rd store.Readable) (*uint256.Int, error) {
		return a.ledger.Locked(rd, buyer, merchant)
	})
}

func (a api) claimable(w http.ResponseWriter, r *http.Request) {
	merchant, ok := a.identityOf(w, r, "merchant")
	if !ok {
		return
	}

	a.view(w, r, func(rd store.Readable) (*uint256.Int, error) {
		return a.ledger.Claimable(rd, merchant)
	})
}

func (a api) view(w http.ResponseWriter, r *http.Request,
	fn func(store.Readable) (*uint256.Int, error)) {

	var amount *uint256.Int
	err := a.srvc.View(func(rd store.Readable) error {
		var err error
		amount, err = fn(rd)
		return err
	})
	if err != nil {
		a.fail(w, r, http.StatusInternalServerError, "failed to read: %v", err)
		return
	}

	a.reply(w, r, http.StatusOK, amountResponse{Amount: amount.Dec()})
}

func (a api) identityOf(w http.ResponseWriter, r *http.Request, param string) (access.Identity, bool) {
	pk, err := ed25519.ParsePublicKey(chi.URLParam(r, param))
	if err != nil {
		a.fail(w, r, http.StatusBadRequest, "invalid %s: %v", param, err)
		return nil, false
	}

	return pk, true
}

func (a api) reply(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		a.logger.Warn().Err(err).
			Str("requestID", proxyhttp.RequestID(r)).
			Msg("failed to write response")
	}
}

func (a api) fail(w http.ResponseWriter, r *http.Request, status int, format string, args ...interface{}) {
	resp := errorResponse{
		Error:     fmt.Sprintf(format, args...),
		RequestID: proxyhttp.RequestID(r),
	}

	a.logger.Debug().
		Int("status", status).
		Str("requestID", resp.RequestID).
		Msg(resp.Error)

	a.reply(w, r, status, resp)
}
