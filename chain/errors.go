package chain

import (
	"fmt"
	"time"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/types"
)

// RPCError describes a transport or protocol failure while talking to the node.
type RPCError struct {
	// TxHash is the transaction the request concerned, if any.
	TxHash common.Hash

	// Err is the underlying failure.
	Err error
}

// Error returns the error message.
func (e *RPCError) Error() string {
	if e.TxHash != (common.Hash{}) {
		return fmt.Sprintf("rpc error while processing transaction %s: %v", e.TxHash.Hex(), e.Err)
	}
	return fmt.Sprintf("rpc error: %v", e.Err)
}

// Unwrap returns the underlying failure.
func (e *RPCError) Unwrap() error {
	return e.Err
}

// TimeoutError describes a transaction whose receipt did not show up within the confirmation timeout. The
// transaction itself may still be mined later.
type TimeoutError struct {
	// TxHash is the transaction that was waited for.
	TxHash common.Hash

	// Timeout is the amount of time that was waited.
	Timeout time.Duration
}

// Error returns the error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Transaction %s wasn't processed in %v seconds!", e.TxHash.Hex(), e.Timeout.Seconds())
}

// RevertError describes a mined transaction with a failed status.
type RevertError struct {
	// TxHash is the reverted transaction.
	TxHash common.Hash

	// Receipt is the receipt of the reverted transaction.
	Receipt *types.Receipt

	// GasExhausted is set if the transaction used all the gas it was given.
	GasExhausted bool
}

// Error returns the error message, which explains the likely causes of the failure.
func (e *RevertError) Error() string {
	if e.GasExhausted {
		return "Transaction: " + e.TxHash.Hex() + " exited with an error (status 0) after consuming all gas.\n" +
			"Please check that the transaction:\n" +
			"    - satisfies all conditions set by Solidity `assert` statements.\n" +
			"    - has enough gas to execute the full transaction.\n" +
			"    - does not trigger an invalid opcode by other means (ex: accessing an array out of bounds)."
	}
	return "Transaction: " + e.TxHash.Hex() + " exited with an error (status 0).\n" +
		"Please check that the transaction:\n" +
		"    - satisfies all conditions set by Solidity `require` statements.\n" +
		"    - does not trigger a Solidity `revert` statement.\n"
}
