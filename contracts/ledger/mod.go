// Package ledger implements a two-party escrow as a native contract.
//
// A buyer locks an amount earmarked for a merchant, which moves the value from
// the buyer into the custody of the contract. The buyer later releases the
// whole locked amount to the claimable balance of the merchant, and the
// merchant claims its accumulated balance out of the custody. The value itself
// is held by an external fungible-value ledger reached through a TransferPort.
//
// The caller of each operation is the identity of the transaction.
package ledger

import (
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/escrow"
	"go.dedis.ch/escrow/core/access"
	"go.dedis.ch/escrow/core/execution"
	"go.dedis.ch/escrow/core/execution/native"
	"go.dedis.ch/escrow/core/store"
	"go.dedis.ch/escrow/core/store/prefixed"
	"go.dedis.ch/escrow/crypto"
	"golang.org/x/xerrors"
)

const (
	// ContractName is the name of the contract.
	ContractName = "go.dedis.ch/escrow.Ledger"

	// ContractUID is the unique identifier of the contract. It namespaces the
	// storage of the contract.
	ContractUID = "ESCR"

	// CmdArg is the argument's name to indicate the kind of command we want to
	// run on the contract. Should be one of the Command type.
	CmdArg = "ledger:command"

	// MerchantArg is the argument's name in the transaction that contains the
	// public key of the merchant.
	MerchantArg = "ledger:merchant"

	// AmountArg is the argument's name in the transaction that contains the
	// decimal amount to lock.
	AmountArg = "ledger:amount"
)

// Command defines a type of command for the ledger contract.
type Command string

const (
	// CmdLock defines the command to lock an amount for a merchant.
	CmdLock Command = "LOCK"

	// CmdRelease defines the command to release the amount locked for a
	// merchant.
	CmdRelease Command = "RELEASE"

	// CmdClaim defines the command to claim the claimable balance.
	CmdClaim Command = "CLAIM"
)

var (
	promOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_ledger_operations_total",
		Help: "total number of escrow operations",
	}, []string{"command", "status"})

	promAmount = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "escrow_ledger_amount",
		Help:    "amounts moved by the escrow operations",
		Buckets: prometheus.ExponentialBuckets(1, 10, 12),
	}, []string{"command"})
)

func init() {
	escrow.PromCollectors = append(escrow.PromCollectors, promOps, promAmount)
}

// CustodyIdentity returns the identity of the account that holds the value
// locked in the escrow.
func CustodyIdentity() access.ContractIdentity {
	return access.NewContractIdentity(ContractName)
}

// PortFactory creates transfer ports that work on a given snapshot, so that
// the transfers are applied atomically with the escrow.
type PortFactory interface {
	PortOf(snap store.Snapshot) TransferPort
}

// RegisterContract registers the ledger contract to the given execution
// service.
func RegisterContract(exec *native.Service, c Contract) {
	exec.Set(ContractName, c)
}

// Contract is the native contract of the escrow ledger.
//
// - implements native.Contract
type Contract struct {
	ports  PortFactory
	pkFac  crypto.PublicKeyFactory
	logger zerolog.Logger
}

// NewContract creates a new ledger contract. The factory deserializes the
// public keys of the merchants.
func NewContract(ports PortFactory, pkFac crypto.PublicKeyFactory) Contract {
	return Contract{
		ports:  ports,
		pkFac:  pkFac,
		logger: escrow.Logger.With().Str("contract", "ledger").Logger(),
	}
}

// UID implements native.Contract.
func (c Contract) UID() string {
	return ContractUID
}

// Execute implements native.Contract. It runs the command of the transaction
// on behalf of the identity of the transaction.
func (c Contract) Execute(snap store.Snapshot, step execution.Step) error {
	caller := step.Current.GetIdentity()
	cmd := Command(step.Current.GetArg(CmdArg))

	l := NewLedger(prefixed.NewSnapshot(ContractUID, snap), c.ports.PortOf(snap))

	amount, err := c.execute(l, caller, cmd, step)
	if err != nil {
		promOps.WithLabelValues(string(cmd), "failure").Inc()

		return err
	}

	promOps.WithLabelValues(string(cmd), "success").Inc()
	promAmount.WithLabelValues(string(cmd)).Observe(amount.Float64())

	c.logger.Info().
		Str("command", string(cmd)).
		Stringer("caller", fmtIdentity{caller}).
		Str("amount", amount.Dec()).
		Msg("escrow operation")

	return nil
}

func (c Contract) execute(l *Ledger, caller access.Identity, cmd Command,
	step execution.Step) (*uint256.Int, error) {

	switch cmd {
	case CmdLock:
		merchant, err := c.merchantOf(step)
		if err != nil {
			return nil, err
		}

		amount, err := amountOf(step)
		if err != nil {
			return nil, err
		}

		err = l.Lock(caller, merchant, amount)
		if err != nil {
			return nil, xerrors.Errorf("failed to LOCK: %w", err)
		}

		return amount, nil
	case CmdRelease:
		merchant, err := c.merchantOf(step)
		if err != nil {
			return nil, err
		}

		amount, err := l.Release(caller, merchant)
		if err != nil {
			return nil, xerrors.Errorf("failed to RELEASE: %w", err)
		}

		return amount, nil
	case CmdClaim:
		amount, err := l.Claim(caller)
		if err != nil {
			return nil, xerrors.Errorf("failed to CLAIM: %w", err)
		}

		return amount, nil
	case "":
		return nil, xerrors.Errorf("'%s' not found in tx arg", CmdArg)
	default:
		return nil, xerrors.Errorf("unknown command: %s", cmd)
	}
}

// Locked returns the amount locked by the buyer for the merchant.
func (c Contract) Locked(r store.Readable, buyer, merchant access.Identity) (*uint256.Int, error) {
	return LockedBalance(prefixed.NewReadable(ContractUID, r), buyer, merchant)
}

// Claimable returns the amount the merchant can claim.
func (c Contract) Claimable(r store.Readable, merchant access.Identity) (*uint256.Int, error) {
	return ClaimableBalance(prefixed.NewReadable(ContractUID, r), merchant)
}

func (c Contract) merchantOf(step execution.Step) (access.Identity, error) {
	data := step.Current.GetArg(MerchantArg)
	if len(data) == 0 {
		return nil, xerrors.Errorf("'%s' not found in tx arg", MerchantArg)
	}

	merchant, err := c.pkFac.FromBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("invalid merchant: %v", err)
	}

	return merchant, nil
}

func amountOf(step execution.Step) (*uint256.Int, error) {
	data := step.Current.GetArg(AmountArg)
	if len(data) == 0 {
		return nil, xerrors.Errorf("'%s' not found in tx arg", AmountArg)
	}

	amount, err := uint256.FromDecimal(string(data))
	if err != nil {
		return nil, xerrors.Errorf("invalid amount '%s': %v", data, err)
	}

	return amount, nil
}

// fmtIdentity prints the text form of an identity.
type fmtIdentity struct {
	access.Identity
}

func (f fmtIdentity) String() string {
	text, err := f.MarshalText()
	if err != nil {
		return "malformed"
	}

	return string(text)
}
