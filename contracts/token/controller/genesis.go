package controller

import (
	"os"

	"github.com/holiman/uint256"
	"go.dedis.ch/escrow/contracts/token"
	"go.dedis.ch/escrow/core/access"
	"go.dedis.ch/escrow/crypto/ed25519"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Genesis is the initial configuration of the token. The identities are hex
// encoded public keys and the amounts are decimal.
//
//	minter: 5e4a...
//	allocations:
//	  - identity: 9c01...
//	    amount: "1000"
type Genesis struct {
	Minter      string       `yaml:"minter"`
	Allocations []Allocation `yaml:"allocations"`
}

// Allocation is the YAML form of a token allocation.
type Allocation struct {
	Identity string `yaml:"identity"`
	Amount   string `yaml:"amount"`
}

// LoadGenesis reads and parses the genesis file.
func LoadGenesis(path string) (Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, xerrors.Errorf("failed to read file: %v", err)
	}

	var genesis Genesis
	err = yaml.UnmarshalStrict(data, &genesis)
	if err != nil {
		return Genesis{}, xerrors.Errorf("failed to parse: %v", err)
	}

	return genesis, nil
}

// GetMinter returns the identity of the minter.
func (g Genesis) GetMinter() (access.Identity, error) {
	if g.Minter == "" {
		return nil, xerrors.New("minter is missing")
	}

	pk, err := ed25519.ParsePublicKey(g.Minter)
	if err != nil {
		return nil, xerrors.Errorf("invalid minter: %v", err)
	}

	return pk, nil
}

// GetAllocations returns the allocations of the genesis.
func (g Genesis) GetAllocations() ([]token.Allocation, error) {
	allocs := make([]token.Allocation, len(g.Allocations))

	for i, alloc := range g.Allocations {
		pk, err := ed25519.ParsePublicKey(alloc.Identity)
		if err != nil {
			return nil, xerrors.Errorf("allocation #%d: invalid identity: %v", i, err)
		}

		amount, err := uint256.FromDecimal(alloc.Amount)
		if err != nil {
			return nil, xerrors.Errorf("allocation #%d: invalid amount '%s': %v",
				i, alloc.Amount, err)
		}

		allocs[i] = token.Allocation{
			Identity: pk,
			Amount:   amount,
		}
	}

	return allocs, nil
}
