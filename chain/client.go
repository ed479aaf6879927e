package chain

import (
	"math/big"
	"strings"

	ethereum "github.com/crytic/medusa-geth"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/hexutil"
	"github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/medusa-geth/ethclient"
	"github.com/crytic/medusa-geth/rpc"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// TransactionArgs describes a transaction handed to the node for signing and submission.
type TransactionArgs struct {
	// From is the sending account, which must be unlocked on the node.
	From common.Address

	// To is the destination, or nil for a contract creation.
	To *common.Address

	// Gas is the gas limit of the transaction.
	Gas uint64

	// GasPrice is the price paid per unit of gas, in wei.
	GasPrice *uint256.Int

	// Value is the amount of wei sent along with the transaction.
	Value *uint256.Int

	// Data is the call data or the creation bytecode.
	Data []byte
}

// sendTransactionArgs is the JSON-RPC encoding of TransactionArgs.
type sendTransactionArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Gas      hexutil.Uint64  `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
}

// Client wraps an RPC connection to a node and exposes the calls used during deployment.
type Client struct {
	// endpoint is the URL the client is connected to.
	endpoint string

	// rpcClient issues raw JSON-RPC requests.
	rpcClient *rpc.Client

	// ethClient issues typed eth namespace requests over rpcClient.
	ethClient *ethclient.Client
}

// Dial connects to the node at the provided endpoint.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, &RPCError{Err: errors.Wrapf(err, "could not connect to %s", endpoint)}
	}
	return NewClient(endpoint, rpcClient), nil
}

// NewClient creates a Client over an existing RPC connection.
func NewClient(endpoint string, rpcClient *rpc.Client) *Client {
	return &Client{
		endpoint:  endpoint,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}
}

// Endpoint returns the URL the client is connected to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.rpcClient.Close()
}

// Accounts returns the accounts managed by the node.
func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := c.rpcClient.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, &RPCError{Err: err}
	}
	return accounts, nil
}

// NetworkID returns the network identifier reported by the node.
func (c *Client) NetworkID(ctx context.Context) (uint64, error) {
	id, err := c.ethClient.NetworkID(ctx)
	if err != nil {
		return 0, &RPCError{Err: err}
	}
	if !id.IsUint64() {
		return 0, &RPCError{Err: errors.Errorf("network id %s is out of range", id.String())}
	}
	return id.Uint64(), nil
}

// CodeAt returns the code deployed at the provided address in the latest block.
func (c *Client) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	code, err := c.ethClient.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, &RPCError{Err: err}
	}
	return code, nil
}

// SendTransaction submits a transaction for the node to sign with the sender's key and returns its hash.
func (c *Client) SendTransaction(ctx context.Context, args TransactionArgs) (common.Hash, error) {
	encoded := sendTransactionArgs{
		From: args.From,
		To:   args.To,
		Gas:  hexutil.Uint64(args.Gas),
		Data: args.Data,
	}
	if args.GasPrice != nil {
		encoded.GasPrice = (*hexutil.Big)(args.GasPrice.ToBig())
	}
	if args.Value != nil {
		encoded.Value = (*hexutil.Big)(args.Value.ToBig())
	}

	var txHash common.Hash
	if err := c.rpcClient.CallContext(ctx, &txHash, "eth_sendTransaction", encoded); err != nil {
		return common.Hash{}, &RPCError{Err: err}
	}
	return txHash, nil
}

// TransactionReceipt returns the receipt of a mined transaction. If the transaction is not mined yet,
// ethereum.NotFound is returned unwrapped.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
	if err != nil {
		if isNotFound(err) {
			return nil, ethereum.NotFound
		}
		return nil, &RPCError{TxHash: txHash, Err: err}
	}
	return receipt, nil
}

// CallContract executes a read-only call against the latest block and returns its output.
func (c *Client) CallContract(ctx context.Context, from common.Address, to common.Address, data []byte) ([]byte, error) {
	output, err := c.ethClient.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, &RPCError{Err: err}
	}
	return output, nil
}

// BalanceAt returns the balance of the provided account in the latest block.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.ethClient.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, &RPCError{Err: err}
	}
	return balance, nil
}

// isNotFound returns true if err reports a transaction the node does not know about yet. Some nodes report this as
// an error message rather than a null result.
func isNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound) || strings.Contains(err.Error(), "unknown transaction")
}
