package utils

import (
	"strings"

	"github.com/crytic/medusa-geth/common"
)

// NormalizeAddress validates an address string (20 bytes of hex, "0x" prefix optional, any letter case) and returns
// it in its canonical "0x"-prefixed lowercase form. The boolean return is false if the string is not an address.
func NormalizeAddress(s string) (string, bool) {
	trimmed := s
	if len(trimmed) >= 2 && (trimmed[:2] == "0x" || trimmed[:2] == "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 2*common.AddressLength || !common.IsHexAddress(trimmed) {
		return "", false
	}
	return "0x" + strings.ToLower(trimmed), true
}

// HexStringToAddress converts a hex string (with or without the "0x" prefix) to a common.Address. The boolean return
// is false if the string is not a valid address.
func HexStringToAddress(s string) (common.Address, bool) {
	normalized, ok := NormalizeAddress(s)
	if !ok {
		return common.Address{}, false
	}
	return common.HexToAddress(normalized), true
}

// IsEmptyCode returns true if the provided code is empty or consists only of zero bytes, which is how a node reports
// an address with no contract deployed at it.
func IsEmptyCode(code []byte) bool {
	for _, b := range code {
		if b != 0 {
			return false
		}
	}
	return true
}
