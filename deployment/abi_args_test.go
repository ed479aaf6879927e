package deployment

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newArguments creates ABI arguments of the provided types.
func newArguments(t *testing.T, typeNames ...string) abi.Arguments {
	arguments := make(abi.Arguments, len(typeNames))
	for i, typeName := range typeNames {
		argType, err := abi.NewType(typeName, "", nil)
		require.NoError(t, err)
		arguments[i] = abi.Argument{Type: argType}
	}
	return arguments
}

// rawValues splits a JSON array into its raw elements.
func rawValues(t *testing.T, array string) []json.RawMessage {
	var values []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(array), &values))
	return values
}

// TestConvertScalarArguments checks the conversion of every scalar type.
func TestConvertScalarArguments(t *testing.T) {
	arguments := newArguments(t, "uint8", "uint256", "int16", "int256", "bool", "string", "address", "bytes", "bytes4")
	values := rawValues(t, `[255, "0x100", -32768, "-5", true, "hi", "0x1111111111111111111111111111111111111111", "0xabcd", "0x01020304"]`)

	converted, err := ConvertArguments(arguments, values, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), converted[0])
	assert.Equal(t, big.NewInt(256), converted[1])
	assert.Equal(t, int16(-32768), converted[2])
	assert.Equal(t, big.NewInt(-5), converted[3])
	assert.Equal(t, true, converted[4])
	assert.Equal(t, "hi", converted[5])
	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), converted[6])
	assert.Equal(t, []byte{0xab, 0xcd}, converted[7])
	assert.Equal(t, [4]byte{1, 2, 3, 4}, converted[8])

	// The converted values must be accepted by the encoder
	_, err = arguments.Pack(converted...)
	require.NoError(t, err)
}

// TestConvertArgumentsRejectsBadValues ensures values that do not fit their type are rejected.
func TestConvertArgumentsRejectsBadValues(t *testing.T) {
	cases := map[string]struct {
		typeName string
		value    string
	}{
		"uint8 overflow":    {"uint8", `256`},
		"negative uint":     {"uint256", `-1`},
		"int8 overflow":     {"int8", `128`},
		"int8 underflow":    {"int8", `-129`},
		"not an integer":    {"uint256", `"ten"`},
		"not a bool":        {"bool", `"yes"`},
		"bad address":       {"address", `"0x1234"`},
		"bad hex":           {"bytes", `"0xzz"`},
		"fixed bytes size":  {"bytes4", `"0x0102"`},
		"unknown reference": {"address", `"@Token"`},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ConvertArguments(newArguments(t, c.typeName), rawValues(t, "["+c.value+"]"), nil)
			assert.Error(t, err)
		})
	}

	_, err := ConvertArguments(newArguments(t, "uint8", "uint8"), rawValues(t, `[1]`), nil)
	assert.Error(t, err)
}

// TestConvertCompositeArguments checks arrays, slices, and tuples.
func TestConvertCompositeArguments(t *testing.T) {
	tupleType, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "amount", Type: "uint256"},
		{Name: "recipient", Type: "address"},
	})
	require.NoError(t, err)
	arguments := append(newArguments(t, "uint8[]", "address[2]"), abi.Argument{Type: tupleType}, abi.Argument{Type: tupleType})

	resolved := common.HexToAddress("0x2222222222222222222222222222222222222222")
	resolver := func(name string) (common.Address, error) {
		if name == "Token" {
			return resolved, nil
		}
		return common.Address{}, errors.Errorf("unknown contract %s", name)
	}

	values := rawValues(t, `[
		[1, 2, 3],
		["@Token", "0x1111111111111111111111111111111111111111"],
		{"recipient": "@Token", "amount": 10},
		[11, "0x1111111111111111111111111111111111111111"]
	]`)
	converted, err := ConvertArguments(arguments, values, resolver)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3}, converted[0])
	assert.Equal(t, [2]common.Address{resolved, common.HexToAddress("0x1111111111111111111111111111111111111111")}, converted[1])

	_, err = arguments.Pack(converted...)
	require.NoError(t, err)

	_, err = ConvertArguments(newArguments(t, "address[2]"), rawValues(t, `[["@Token"]]`), resolver)
	assert.Error(t, err)
	_, err = ConvertArguments(abi.Arguments{{Type: tupleType}}, rawValues(t, `[{"amount": 1}]`), resolver)
	assert.Error(t, err)
}

// TestFormatValues checks values are rendered for display.
func TestFormatValues(t *testing.T) {
	formatted := FormatValues([]any{big.NewInt(3), common.HexToAddress("0x01"), []byte{0xff}, true})
	assert.Equal(t, "3, 0x0000000000000000000000000000000000000001, 0xff, true", formatted)
}
