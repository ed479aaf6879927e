package deployment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/hexutil"
	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
)

// AddressResolver resolves a contract name to the address it was last deployed at.
type AddressResolver func(contractName string) (common.Address, error)

// contractReferencePrefix marks an address argument naming a deployed contract instead of holding an address.
const contractReferencePrefix = "@"

// ConvertArguments converts JSON values into the Go values the ABI encoder expects for the provided arguments.
// Integers may be JSON numbers or decimal or "0x"-prefixed hex strings. Byte values are hex strings. Addresses may be
// written as "@Name" to refer to the latest deployment of contract Name, which requires a non-nil resolver. Tuples are
// JSON arrays in member order or objects keyed by member name.
func ConvertArguments(arguments abi.Arguments, values []json.RawMessage, resolver AddressResolver) ([]any, error) {
	if len(values) != len(arguments) {
		return nil, errors.Errorf("expected %d arguments, received %d", len(arguments), len(values))
	}
	converted := make([]any, len(values))
	for i, argument := range arguments {
		value, err := convertValue(argument.Type, values[i], resolver)
		if err != nil {
			name := argument.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, errors.WithMessagef(err, "argument %s", name)
		}
		converted[i] = value.Interface()
	}
	return converted, nil
}

// convertValue converts a JSON value into a value of the Go type the ABI encoder uses for t.
func convertValue(t abi.Type, raw json.RawMessage, resolver AddressResolver) (reflect.Value, error) {
	goType := t.GetType()
	switch t.T {
	case abi.IntTy, abi.UintTy:
		n, err := parseInteger(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return integerValue(t, goType, n)

	case abi.BoolTy:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return reflect.Value{}, errors.Errorf("expected a boolean, got %s", raw)
		}
		return reflect.ValueOf(b), nil

	case abi.StringTy:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return reflect.Value{}, errors.Errorf("expected a string, got %s", raw)
		}
		return reflect.ValueOf(s), nil

	case abi.AddressTy:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return reflect.Value{}, errors.Errorf("expected an address, got %s", raw)
		}
		address, err := parseAddress(s, resolver)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(address), nil

	case abi.BytesTy:
		b, err := parseBytes(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case abi.FixedBytesTy:
		b, err := parseBytes(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(b) != t.Size {
			return reflect.Value{}, errors.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		value := reflect.New(goType).Elem()
		reflect.Copy(value, reflect.ValueOf(b))
		return value, nil

	case abi.SliceTy, abi.ArrayTy:
		var elements []json.RawMessage
		if err := json.Unmarshal(raw, &elements); err != nil {
			return reflect.Value{}, errors.Errorf("expected an array, got %s", raw)
		}
		var value reflect.Value
		if t.T == abi.ArrayTy {
			if len(elements) != t.Size {
				return reflect.Value{}, errors.Errorf("expected %d elements, got %d", t.Size, len(elements))
			}
			value = reflect.New(goType).Elem()
		} else {
			value = reflect.MakeSlice(goType, len(elements), len(elements))
		}
		for i, element := range elements {
			converted, err := convertValue(*t.Elem, element, resolver)
			if err != nil {
				return reflect.Value{}, errors.WithMessagef(err, "element %d", i)
			}
			value.Index(i).Set(converted)
		}
		return value, nil

	case abi.TupleTy:
		members, err := tupleMembers(t, raw)
		if err != nil {
			return reflect.Value{}, err
		}
		value := reflect.New(goType).Elem()
		for i, member := range members {
			converted, err := convertValue(*t.TupleElems[i], member, resolver)
			if err != nil {
				return reflect.Value{}, errors.WithMessagef(err, "member %s", t.TupleRawNames[i])
			}
			value.Field(i).Set(converted)
		}
		return value, nil

	default:
		return reflect.Value{}, errors.Errorf("arguments of type %s are not supported", t.String())
	}
}

// parseInteger parses a JSON number or a decimal or hex string.
func parseInteger(raw json.RawMessage) (*big.Int, error) {
	text := string(bytes.TrimSpace(raw))
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = strings.TrimSpace(s)
	}

	n, ok := new(big.Int).SetString(text, 0)
	if !ok {
		return nil, errors.Errorf("expected an integer, got %s", raw)
	}
	return n, nil
}

// integerValue converts n to the Go type of an integer ABI type, checking it fits.
func integerValue(t abi.Type, goType reflect.Type, n *big.Int) (reflect.Value, error) {
	if t.T == abi.UintTy && n.Sign() < 0 {
		return reflect.Value{}, errors.Errorf("%s cannot hold negative value %s", t.String(), n.String())
	}
	bits := n.BitLen()
	if t.T == abi.IntTy {
		// Two's complement needs a sign bit
		bits++
		if n.Sign() < 0 {
			// -2^(k-1) is representable with k bits
			bits = new(big.Int).Add(n, big.NewInt(1)).BitLen() + 1
		}
	}
	if bits > t.Size {
		return reflect.Value{}, errors.Errorf("%s cannot hold value %s", t.String(), n.String())
	}

	if goType == reflect.TypeOf((*big.Int)(nil)) {
		return reflect.ValueOf(n), nil
	}
	value := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		value.SetUint(n.Uint64())
	} else {
		value.SetInt(n.Int64())
	}
	return value, nil
}

// parseAddress parses an address or resolves a contract reference.
func parseAddress(s string, resolver AddressResolver) (common.Address, error) {
	if name, ok := strings.CutPrefix(s, contractReferencePrefix); ok {
		if resolver == nil {
			return common.Address{}, errors.Errorf("contract references such as %s cannot be used here", s)
		}
		return resolver(name)
	}
	address, ok := utils.HexStringToAddress(s)
	if !ok {
		return common.Address{}, errors.Errorf("malformed address %s", s)
	}
	return address, nil
}

// parseBytes parses a hex string.
func parseBytes(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Errorf("expected a hex string, got %s", raw)
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed hex string %s", s)
	}
	return b, nil
}

// tupleMembers returns the JSON values of a tuple's members in order.
func tupleMembers(t abi.Type, raw json.RawMessage) ([]json.RawMessage, error) {
	var members []json.RawMessage
	if err := json.Unmarshal(raw, &members); err == nil {
		if len(members) != len(t.TupleElems) {
			return nil, errors.Errorf("expected %d members, got %d", len(t.TupleElems), len(members))
		}
		return members, nil
	}

	var named map[string]json.RawMessage
	if err := json.Unmarshal(raw, &named); err != nil {
		return nil, errors.Errorf("expected a tuple, got %s", raw)
	}
	members = make([]json.RawMessage, len(t.TupleElems))
	for i, name := range t.TupleRawNames {
		member, ok := named[name]
		if !ok {
			return nil, errors.Errorf("missing member %s", name)
		}
		members[i] = member
	}
	return members, nil
}

// FormatValues renders decoded ABI values for display.
func FormatValues(values []any) string {
	parts := make([]string, len(values))
	for i, value := range values {
		switch v := value.(type) {
		case common.Address:
			parts[i] = v.Hex()
		case []byte:
			parts[i] = hexutil.Encode(v)
		default:
			parts[i] = fmt.Sprintf("%v", v)
		}
	}
	return strings.Join(parts, ", ")
}
