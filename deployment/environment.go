package deployment

import (
	"math/big"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/plum/chain"
	"github.com/crytic/plum/config"
	"github.com/crytic/plum/logging"
	"github.com/crytic/plum/logging/colors"
	"github.com/crytic/plum/utils"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// Node describes the node calls a deployment relies on. It is implemented by *chain.Client.
type Node interface {
	chain.ReceiptFetcher
	Accounts(ctx context.Context) ([]common.Address, error)
	NetworkID(ctx context.Context) (uint64, error)
	CodeAt(ctx context.Context, address common.Address) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	SendTransaction(ctx context.Context, args chain.TransactionArgs) (common.Hash, error)
	CallContract(ctx context.Context, from common.Address, to common.Address, data []byte) ([]byte, error)
}

var _ Node = (*chain.Client)(nil)

// TxOptions describes the options of a transaction. Unset options are filled in from the environment's defaults.
type TxOptions struct {
	// From is the sender, or nil for the default sender.
	From *common.Address

	// Gas is the gas limit, or zero for the default limit.
	Gas uint64

	// GasPrice is the gas price in wei, or nil for the default price.
	GasPrice *uint256.Int

	// Value is the amount of wei sent along, or nil for none.
	Value *uint256.Int
}

// Environment describes the network a deployment runs against.
type Environment struct {
	// Node is the node transactions are sent to.
	Node Node

	// NetworkName is the configured name of the network.
	NetworkName string

	// NetworkID is the network identifier, taken from the configuration or queried from the node.
	NetworkID uint64

	// Accounts lists the accounts managed by the node.
	Accounts []common.Address

	// network holds the transaction defaults of the network.
	network *config.NetworkConfig
}

// SetupEnvironment resolves the network identifier and the accounts of a network. A network whose identifier is not
// configured, or configured as zero, takes it from the node.
func SetupEnvironment(ctx context.Context, node Node, networkName string, network *config.NetworkConfig, logger *logging.Logger) (*Environment, error) {
	if logger == nil {
		logger = logging.GlobalLogger
	}
	env := &Environment{
		Node:        node,
		NetworkName: networkName,
		NetworkID:   network.NetworkID,
		network:     network,
	}

	if env.NetworkID == 0 {
		networkID, err := node.NetworkID(ctx)
		if err != nil {
			return nil, errors.WithMessage(err, "could not connect to your RPC client, please check your RPC configuration")
		}
		env.NetworkID = networkID
	}

	accounts, err := node.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	env.Accounts = accounts

	logger.Info(
		"Using network ", colors.Bold, networkName, colors.Reset, " (id ", env.NetworkID, ") with ",
		len(accounts), " account(s)",
	)
	return env, nil
}

// ConfigureTxOptions returns a copy of opts with every unset option filled in. The gas limit and price default to the
// network's values, then to config.DefaultGas and config.DefaultGasPrice. The sender defaults to the network's
// sender, then to the node's first account.
func (e *Environment) ConfigureTxOptions(opts TxOptions) (TxOptions, error) {
	if opts.Gas == 0 {
		opts.Gas = e.network.GasOrDefault()
	}
	if opts.GasPrice == nil {
		opts.GasPrice = e.network.GasPriceOrDefault()
	}
	if opts.From == nil {
		from, err := e.DefaultSender()
		if err != nil {
			return TxOptions{}, err
		}
		opts.From = &from
	}
	return opts, nil
}

// DefaultSender returns the sender used when a transaction does not name one.
func (e *Environment) DefaultSender() (common.Address, error) {
	if e.network.From != "" {
		from, ok := utils.HexStringToAddress(e.network.From)
		if !ok {
			return common.Address{}, errors.Errorf("malformed sender address %s", e.network.From)
		}
		return from, nil
	}
	if len(e.Accounts) == 0 {
		return common.Address{}, errors.New("the node has no accounts and no sender is configured")
	}
	return e.Accounts[0], nil
}

// transactionArgs converts configured options into the arguments of a transaction.
func (opts TxOptions) transactionArgs(to *common.Address, data []byte) chain.TransactionArgs {
	return chain.TransactionArgs{
		From:     *opts.From,
		To:       to,
		Gas:      opts.Gas,
		GasPrice: opts.GasPrice,
		Value:    opts.Value,
		Data:     data,
	}
}

// receiptAddress returns the address of the contract created by a transaction.
func receiptAddress(receipt *types.Receipt) (common.Address, error) {
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, errors.Errorf("transaction %s did not create a contract", receipt.TxHash.Hex())
	}
	return receipt.ContractAddress, nil
}
