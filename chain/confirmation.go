package chain

import (
	"math/big"
	"time"

	ethereum "github.com/crytic/medusa-geth"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/plum/events"
	"github.com/crytic/plum/logging"
	"github.com/crytic/plum/logging/colors"
	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/net/context"
)

const (
	// DefaultConfirmationTimeout is how long a transaction is waited for before giving up.
	DefaultConfirmationTimeout = 240 * time.Second

	// DefaultPollInterval is the delay between two receipt lookups.
	DefaultPollInterval = time.Second

	// DefaultGasLimit is the gas limit assumed when a transaction was submitted without one.
	DefaultGasLimit uint64 = 90000
)

// ConfirmationState describes the progress of a transaction confirmation.
type ConfirmationState int

const (
	// Submitted indicates the transaction was handed to the node.
	Submitted ConfirmationState = iota
	// Polling indicates the receipt is being waited for.
	Polling
	// Confirmed indicates the transaction was mined successfully.
	Confirmed
	// Reverted indicates the transaction was mined with a failed status.
	Reverted
	// TimedOut indicates no receipt showed up within the timeout.
	TimedOut
	// RpcError indicates the node could not be queried for the receipt.
	RpcError
)

// String returns the name of the state.
func (s ConfirmationState) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Polling:
		return "polling"
	case Confirmed:
		return "confirmed"
	case Reverted:
		return "reverted"
	case TimedOut:
		return "timed out"
	case RpcError:
		return "rpc error"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if no further transitions follow the state.
func (s ConfirmationState) IsTerminal() bool {
	return s >= Confirmed
}

// StateChangedEvent is published every time a confirmation changes state.
type StateChangedEvent struct {
	// TxHash is the transaction being confirmed.
	TxHash common.Hash

	// State is the state that was entered.
	State ConfirmationState

	// Err is the error the confirmation ends with, for the failing terminal states.
	Err error
}

// ReceiptFetcher looks up transaction receipts. A transaction that is not mined yet yields ethereum.NotFound.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Confirmation is the result of a confirmed transaction.
type Confirmation struct {
	// TxHash is the confirmed transaction.
	TxHash common.Hash

	// Receipt is the receipt of the confirmed transaction.
	Receipt *types.Receipt
}

// Confirmer waits for submitted transactions to be mined and classifies their outcome.
type Confirmer struct {
	// fetcher looks up receipts.
	fetcher ReceiptFetcher

	// timeout is the longest a transaction is waited for. Zero disables the timeout.
	timeout time.Duration

	// pollInterval is the delay between two receipt lookups.
	pollInterval time.Duration

	// sleep waits between two lookups. It returns early with an error if the context is cancelled.
	sleep func(ctx context.Context, d time.Duration) error

	// now returns the current time.
	now func() time.Time

	// logger describes the confirmer's logger.
	logger *logging.Logger

	// StateChanged emits events when a confirmation changes state.
	StateChanged events.EventEmitter[StateChangedEvent]
}

// NewConfirmer creates a Confirmer. A negative timeout selects DefaultConfirmationTimeout, while a zero timeout waits
// forever. A non-positive poll interval selects DefaultPollInterval. If logger is nil, the global logger is used.
func NewConfirmer(fetcher ReceiptFetcher, timeout time.Duration, pollInterval time.Duration, logger *logging.Logger) *Confirmer {
	if timeout < 0 {
		timeout = DefaultConfirmationTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = logging.GlobalLogger
	}
	return &Confirmer{
		fetcher:      fetcher,
		timeout:      timeout,
		pollInterval: pollInterval,
		sleep:        utils.SleepWithContext,
		now:          time.Now,
		logger:       logger.NewSubLogger("module", logging.CHAIN_SERVICE),
	}
}

// Timeout returns the confirmation timeout. Zero means the timeout is disabled.
func (c *Confirmer) Timeout() time.Duration {
	return c.timeout
}

// Wait polls for the receipt of a submitted transaction until it is mined, the timeout elapses, or the node fails.
// gasLimit is the gas limit the transaction was submitted with, zero meaning DefaultGasLimit, and is only used to
// explain reverts. A reverted transaction returns a *RevertError, an elapsed timeout a *TimeoutError, and any other
// failure an *RPCError.
func (c *Confirmer) Wait(ctx context.Context, txHash common.Hash, gasLimit uint64) (*Confirmation, error) {
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	start := c.now()
	c.transition(txHash, Submitted, nil)
	c.transition(txHash, Polling, nil)

	for {
		receipt, err := c.fetcher.TransactionReceipt(ctx, txHash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			var rpcErr *RPCError
			if !errors.As(err, &rpcErr) {
				rpcErr = &RPCError{Err: err}
			}
			rpcErr.TxHash = txHash
			c.transition(txHash, RpcError, rpcErr)
			return nil, rpcErr
		}

		if err == nil && receipt != nil {
			return c.classify(txHash, receipt, gasLimit)
		}

		if c.timeout > 0 && c.now().Sub(start) > c.timeout {
			timeoutErr := &TimeoutError{TxHash: txHash, Timeout: c.timeout}
			c.transition(txHash, TimedOut, timeoutErr)
			return nil, timeoutErr
		}

		if err := c.sleep(ctx, c.pollInterval); err != nil {
			rpcErr := &RPCError{TxHash: txHash, Err: err}
			c.transition(txHash, RpcError, rpcErr)
			return nil, rpcErr
		}
	}
}

// classify resolves the outcome of a mined transaction from its receipt.
func (c *Confirmer) classify(txHash common.Hash, receipt *types.Receipt, gasLimit uint64) (*Confirmation, error) {
	if receipt.Status == types.ReceiptStatusFailed {
		revertErr := &RevertError{
			TxHash:       txHash,
			Receipt:      receipt,
			GasExhausted: receipt.GasUsed == gasLimit,
		}
		c.transition(txHash, Reverted, revertErr)
		return nil, revertErr
	}

	c.transition(txHash, Confirmed, nil)
	c.logger.Debug(
		"Transaction ", colors.Bold, txHash.Hex(), colors.Reset, " mined in block ", receipt.BlockNumber,
		", gas used: ", receipt.GasUsed, ", fee: ", formatFee(receipt),
	)
	return &Confirmation{TxHash: txHash, Receipt: receipt}, nil
}

// transition publishes a state change. Subscriber failures are logged and do not affect the confirmation.
func (c *Confirmer) transition(txHash common.Hash, state ConfirmationState, err error) {
	c.logger.Trace("Transaction ", txHash.Hex(), " is ", state.String())
	if pubErr := c.StateChanged.Publish(StateChangedEvent{TxHash: txHash, State: state, Err: err}); pubErr != nil {
		c.logger.Warn("Failed to record the state of transaction ", txHash.Hex(), pubErr)
	}
}

// formatFee renders the fee paid by a transaction in ether.
func formatFee(receipt *types.Receipt) string {
	if receipt.EffectiveGasPrice == nil {
		return "unknown"
	}
	fee := new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
	return decimal.NewFromBigInt(fee, -18).String() + " ETH"
}
