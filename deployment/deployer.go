package deployment

import (
	"strings"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/hexutil"
	"github.com/crytic/plum/chain"
	"github.com/crytic/plum/contracts"
	"github.com/crytic/plum/logging"
	"github.com/crytic/plum/logging/colors"
	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// Deployer creates and attaches to contract instances on the environment's network, recording new deployments in
// the registry.
type Deployer struct {
	// env is the network deployments happen on.
	env *Environment

	// registry holds the contracts that can be deployed.
	registry *contracts.Registry

	// confirmer waits for transactions to be mined.
	confirmer *chain.Confirmer

	// journal records submitted transactions, if set.
	journal *chain.Journal

	// logger describes the deployer's logger.
	logger *logging.Logger
}

// NewDeployer creates a Deployer. journal may be nil. If logger is nil, the global logger is used.
func NewDeployer(env *Environment, registry *contracts.Registry, confirmer *chain.Confirmer, journal *chain.Journal, logger *logging.Logger) *Deployer {
	if logger == nil {
		logger = logging.GlobalLogger
	}
	return &Deployer{
		env:       env,
		registry:  registry,
		confirmer: confirmer,
		journal:   journal,
		logger:    logger.NewSubLogger("module", logging.DEPLOYMENT_SERVICE),
	}
}

// Environment returns the network deployments happen on.
func (d *Deployer) Environment() *Environment {
	return d.env
}

// contract returns the registry contract with the provided name.
func (d *Deployer) contract(name string) (*contracts.Contract, error) {
	contract, ok := d.registry.Get(name)
	if !ok {
		return nil, errors.Errorf("contract %s was not found in the build output", name)
	}
	return contract, nil
}

// New deploys a new instance of the named contract with the provided constructor arguments. Library links are taken
// from the contract's links on the active network, so every library it uses must be deployed first. The new address
// is recorded on the contract, which links it into every contract that uses it.
func (d *Deployer) New(ctx context.Context, name string, opts TxOptions, args ...any) (*Instance, error) {
	contract, err := d.contract(name)
	if err != nil {
		return nil, err
	}

	constructorInputs := contract.Abi().Constructor.Inputs
	if len(constructorInputs) != len(args) {
		return nil, errors.Errorf(
			"%s contract constructor expected %d arguments, received %d", name, len(constructorInputs), len(args),
		)
	}

	bytecode, err := contract.BuildBytecode(d.registry.NetworkID())
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(bytecode, "0x") {
		bytecode = "0x" + bytecode
	}
	code, err := hexutil.Decode(bytecode)
	if err != nil {
		return nil, errors.Wrapf(err, "contract %s has malformed bytecode", name)
	}
	if len(code) == 0 {
		return nil, errors.Errorf("contract %s has no bytecode, it may be abstract or an interface", name)
	}

	packedArgs, err := contract.Abi().Pack("", args...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not encode the constructor arguments of %s", name)
	}

	d.logger.Info("Deploying ", colors.Bold, name, colors.Reset, "...")
	confirmation, err := d.submit(ctx, "deploy "+name, opts, nil, append(code, packedArgs...))
	if err != nil {
		return nil, errors.WithMessagef(err, "could not deploy %s", name)
	}
	address, err := receiptAddress(confirmation.Receipt)
	if err != nil {
		return nil, err
	}

	if err := contract.SetAddress(d.registry.NetworkID(), address.Hex()); err != nil {
		return nil, err
	}
	d.logger.Info("Deployed ", colors.Bold, name, colors.Reset, " at ", colors.Bold, address.Hex(), colors.Reset)
	return newInstance(d, contract, address), nil
}

// At attaches to an already deployed instance of the named contract. An address with no code is rejected.
func (d *Deployer) At(ctx context.Context, name string, address string) (*Instance, error) {
	contract, err := d.contract(name)
	if err != nil {
		return nil, err
	}
	parsed, ok := utils.HexStringToAddress(address)
	if !ok {
		return nil, errors.Wrapf(contracts.ErrInvalidAddress, "%s", address)
	}

	code, err := d.env.Node.CodeAt(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if utils.IsEmptyCode(code) {
		return nil, errors.Errorf("cannot create instance of %s; no code at address %s", name, parsed.Hex())
	}
	return newInstance(d, contract, parsed), nil
}

// Deployed attaches to the most recent deployment of the named contract on the active network.
func (d *Deployer) Deployed(ctx context.Context, name string) (*Instance, error) {
	contract, err := d.contract(name)
	if err != nil {
		return nil, err
	}
	address, ok := contract.GetAddress(d.registry.NetworkID(), -1)
	if !ok {
		return nil, errors.Errorf("contract %s is not deployed on network %d", name, d.registry.NetworkID())
	}
	return d.At(ctx, name, address)
}

// ResolveAddress returns the most recent address of the named contract on the active network.
func (d *Deployer) ResolveAddress(name string) (common.Address, error) {
	contract, err := d.contract(name)
	if err != nil {
		return common.Address{}, err
	}
	address, ok := contract.GetAddress(d.registry.NetworkID(), -1)
	if !ok {
		return common.Address{}, errors.Errorf("contract %s is not deployed on network %d", name, d.registry.NetworkID())
	}
	return common.HexToAddress(address), nil
}

// submit sends a transaction and waits for it to be confirmed.
func (d *Deployer) submit(ctx context.Context, description string, opts TxOptions, to *common.Address, data []byte) (*chain.Confirmation, error) {
	opts, err := d.env.ConfigureTxOptions(opts)
	if err != nil {
		return nil, err
	}

	txHash, err := d.env.Node.SendTransaction(ctx, opts.transactionArgs(to, data))
	if err != nil {
		return nil, err
	}
	if d.journal != nil {
		d.journal.Describe(txHash, description)
	}
	d.logger.Debug("Submitted transaction ", txHash.Hex(), " to ", description)
	return d.confirmer.Wait(ctx, txHash, opts.Gas)
}
