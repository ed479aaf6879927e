package contracts

import "github.com/pkg/errors"

var (
	// ErrInvalidContract indicates an artifact is missing its name, ABI, or bytecode, or that one of them is malformed.
	ErrInvalidContract = errors.New("invalid contract")

	// ErrInvalidAddress indicates a value is not a 20-byte hex address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidBytecode indicates bytecode holds a character run that is neither a hex byte nor a link placeholder.
	ErrInvalidBytecode = errors.New("invalid bytecode")

	// ErrUndefinedLink indicates bytecode references a library with no resolved address on the requested network.
	ErrUndefinedLink = errors.New("undefined link")
)
