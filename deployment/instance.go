package deployment

import (
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/plum/chain"
	"github.com/crytic/plum/contracts"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// Instance is a deployed contract that methods can be called on.
type Instance struct {
	// deployer submits the instance's transactions.
	deployer *Deployer

	// contract is the artifact of the instance.
	contract *contracts.Contract

	// address is where the instance is deployed.
	address common.Address
}

// newInstance creates an Instance.
func newInstance(deployer *Deployer, contract *contracts.Contract, address common.Address) *Instance {
	return &Instance{
		deployer: deployer,
		contract: contract,
		address:  address,
	}
}

// Address returns where the instance is deployed.
func (i *Instance) Address() common.Address {
	return i.address
}

// Contract returns the artifact of the instance.
func (i *Instance) Contract() *contracts.Contract {
	return i.contract
}

// Call executes a read-only method and returns its decoded outputs. No transaction is submitted.
func (i *Instance) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	abiMethod, ok := i.contract.Abi().Methods[method]
	if !ok {
		return nil, errors.Errorf("contract %s has no method %s", i.contract.Name(), method)
	}
	data, err := i.contract.Abi().Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not encode the arguments of %s.%s", i.contract.Name(), method)
	}

	from, err := i.deployer.env.DefaultSender()
	if err != nil {
		return nil, err
	}
	output, err := i.deployer.env.Node.CallContract(ctx, from, i.address, data)
	if err != nil {
		return nil, err
	}
	values, err := abiMethod.Outputs.Unpack(output)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode the outputs of %s.%s", i.contract.Name(), method)
	}
	return values, nil
}

// Transact submits a transaction calling a method and waits for it to be confirmed.
func (i *Instance) Transact(ctx context.Context, method string, opts TxOptions, args ...any) (*chain.Confirmation, error) {
	if _, ok := i.contract.Abi().Methods[method]; !ok {
		return nil, errors.Errorf("contract %s has no method %s", i.contract.Name(), method)
	}
	data, err := i.contract.Abi().Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not encode the arguments of %s.%s", i.contract.Name(), method)
	}
	address := i.address
	return i.deployer.submit(ctx, i.contract.Name()+"."+method, opts, &address, data)
}

// Send transfers value to the instance with no call data.
func (i *Instance) Send(ctx context.Context, opts TxOptions) (*chain.Confirmation, error) {
	address := i.address
	return i.deployer.submit(ctx, "send to "+i.contract.Name(), opts, &address, nil)
}
