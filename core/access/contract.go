// This file contains the identity of a contract custody account.

package access

import "fmt"

const contractPrefix = "contract"

// ContractIdentity is the identity of the account a contract uses to hold
// value in custody. It cannot sign anything, so it can only be moved by the
// contract itself.
//
// - implements access.Identity
type ContractIdentity struct {
	name string
}

// NewContractIdentity returns the custody identity of the contract with the
// given name.
func NewContractIdentity(name string) ContractIdentity {
	return ContractIdentity{
		name: name,
	}
}

// GetName returns the name of the contract.
func (ci ContractIdentity) GetName() string {
	return ci.name
}

// MarshalText implements encoding.TextMarshaler.
func (ci ContractIdentity) MarshalText() ([]byte, error) {
	return []byte(Compile(contractPrefix, ci.name)), nil
}

// Equal implements access.Identity.
func (ci ContractIdentity) Equal(other interface{}) bool {
	o, ok := other.(ContractIdentity)
	return ok && o.name == ci.name
}

// String implements fmt.Stringer.
func (ci ContractIdentity) String() string {
	return fmt.Sprintf("%s:%s", contractPrefix, ci.name)
}
