// Package serial implements an ordering service that applies the transactions
// one after the other on a local store.
//
// Each submission verifies the signature and the nonce of the transaction
// before running the execution service inside a store update. A transaction
// rejected by the execution leaves no write behind, but its nonce is consumed
// so that it cannot be replayed later on.
package serial

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/escrow"
	"go.dedis.ch/escrow/core"
	"go.dedis.ch/escrow/core/access"
	"go.dedis.ch/escrow/core/execution"
	"go.dedis.ch/escrow/core/ordering"
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/core/store/prefixed"
	"go.dedis.ch/escrow/core/txn"
	"golang.org/x/xerrors"
)

// NoncePrefix is the namespace of the nonces in the store.
const NoncePrefix = "nonce"

var promTxs = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "escrow_ordering_transactions_total",
	Help: "total number of transactions processed by the ordering service",
}, []string{"accepted"})

func init() {
	escrow.PromCollectors = append(escrow.PromCollectors, promTxs)
}

const watchBuffer = 100

// errRejected aborts an update when the execution refuses the transaction.
var errRejected = xerrors.New("transaction rejected")

// verifiable is implemented by transactions that carry a signature.
type verifiable interface {
	Verify() error
}

// Service is an ordering service that processes a single transaction at a
// time.
//
// - implements ordering.Service
type Service struct {
	sync.Mutex

	store   store.Store
	exec    execution.Service
	watcher *core.Watcher
	logger  zerolog.Logger
}

// NewService creates a new service that applies the transactions to the store
// with the execution service.
func NewService(db store.Store, exec execution.Service) *Service {
	return &Service{
		store:   db,
		exec:    exec,
		watcher: core.NewWatcher(),
		logger:  escrow.Logger.With().Str("service", "ordering").Logger(),
	}
}

// Submit implements ordering.Service. It verifies the transaction and applies
// it to the store. Submissions never interleave.
func (s *Service) Submit(tx txn.Transaction) (ordering.Receipt, error) {
	s.Lock()
	defer s.Unlock()

	receipt := ordering.Receipt{
		ID:   xid.New().String(),
		TxID: tx.GetID(),
	}

	logger := s.logger.With().Str("receipt", receipt.ID).Hex("tx", receipt.TxID).Logger()

	signed, ok := tx.(verifiable)
	if !ok {
		return receipt, xerrors.Errorf("transaction '%T' is not verifiable", tx)
	}

	err := signed.Verify()
	if err != nil {
		return receipt, xerrors.Errorf("tx verification failed: %v", err)
	}

	nonceKey, err := makeNonceKey(tx.GetIdentity())
	if err != nil {
		return receipt, xerrors.Errorf("nonce key: %v", err)
	}

	var res execution.Result

	err = s.store.Update(func(snap store.Snapshot) error {
		err := incrementNonce(snap, nonceKey, tx.GetNonce())
		if err != nil {
			return err
		}

		res, err = s.exec.Execute(snap, execution.Step{Current: tx})
		if err != nil {
			return xerrors.Errorf("failed to execute tx: %v", err)
		}

		if !res.Accepted {
			return errRejected
		}

		return nil
	})

	if xerrors.Is(err, errRejected) {
		// The writes of the execution are discarded but the nonce is consumed.
		err = s.store.Update(func(snap store.Snapshot) error {
			return incrementNonce(snap, nonceKey, tx.GetNonce())
		})
	}

	if err != nil {
		return receipt, xerrors.Errorf("store: %v", err)
	}

	receipt.Accepted = res.Accepted
	receipt.Message = res.Message

	promTxs.WithLabelValues(boolLabel(res.Accepted)).Inc()

	logger.Info().
		Uint64("nonce", tx.GetNonce()).
		Bool("accepted", res.Accepted).
		Str("message", res.Message).
		Msg("transaction processed")

	s.watcher.Notify(receipt)

	return receipt, nil
}

// Watch implements ordering.Service. It returns a channel populated with the
// receipts of the transactions processed until the context is done. Receipts
// are dropped when the reader falls behind.
func (s *Service) Watch(ctx context.Context) <-chan ordering.Receipt {
	events := core.Watch(ctx, s.watcher, watchBuffer)
	receipts := make(chan ordering.Receipt, watchBuffer)

	go func() {
		defer close(receipts)

		for evt := range events {
			receipt, ok := evt.(ordering.Receipt)
			if !ok {
				continue
			}

			select {
			case receipts <- receipt:
			case <-ctx.Done():
			}
		}
	}()

	return receipts
}

// GetNonce implements ordering.Service. It returns the next nonce expected for
// the identity.
func (s *Service) GetNonce(ident access.Identity) (uint64, error) {
	key, err := makeNonceKey(ident)
	if err != nil {
		return 0, xerrors.Errorf("nonce key: %v", err)
	}

	var nonce uint64

	err = s.store.View(func(r store.Readable) error {
		nonce, err = readNonce(r, key)
		return err
	})
	if err != nil {
		return 0, xerrors.Errorf("store: %v", err)
	}

	return nonce, nil
}

// View implements ordering.Service. It executes the callback with a read-only
// state of the store.
func (s *Service) View(fn func(store.Readable) error) error {
	return s.store.View(fn)
}

func makeNonceKey(ident access.Identity) ([]byte, error) {
	key, err := access.Key(ident)
	if err != nil {
		return nil, err
	}

	return prefixed.NewPrefixedKey([]byte(NoncePrefix), key), nil
}

func readNonce(r store.Readable, key []byte) (uint64, error) {
	value, err := r.Get(key)
	if err != nil {
		return 0, xerrors.Errorf("failed to read nonce: %v", err)
	}

	if len(value) == 0 {
		return 0, nil
	}

	if len(value) != 8 {
		return 0, xerrors.Errorf("invalid nonce length %d", len(value))
	}

	return binary.LittleEndian.Uint64(value), nil
}

func incrementNonce(snap store.Snapshot, key []byte, nonce uint64) error {
	expected, err := readNonce(snap, key)
	if err != nil {
		return err
	}

	if nonce != expected {
		return xerrors.Errorf("nonce '%d' != '%d'", nonce, expected)
	}

	buffer := make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, nonce+1)

	err = snap.Set(key, buffer)
	if err != nil {
		return xerrors.Errorf("failed to write nonce: %v", err)
	}

	return nil
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}

	return "false"
}
