package contracts

import (
	"strings"

	"github.com/pkg/errors"
)

// PlaceholderLength is the number of hex characters a library placeholder occupies in bytecode, which is the length
// of a hex-encoded 20-byte address.
const PlaceholderLength = 40

// LinkPlaceholder describes an unresolved library reference embedded in contract bytecode.
type LinkPlaceholder struct {
	// LibraryName is the name of the library enclosed by the underscore padding.
	LibraryName string

	// Offset is the character offset of the placeholder within the bytecode, not counting any "0x" prefix.
	Offset int

	// Length is the number of characters the placeholder spans.
	Length int
}

// splitHexPrefix splits a hex string into its "0x" prefix (if any) and the remaining characters.
func splitHexPrefix(s string) (string, string) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[:2], s[2:]
	}
	return "", s
}

func isHexChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// scanBytecode walks the provided bytecode and returns every library placeholder in it, ordered by offset. An error
// wrapping ErrInvalidBytecode is returned if any character run is neither a hex byte nor a well-formed placeholder.
func scanBytecode(bytecode string) ([]LinkPlaceholder, error) {
	_, code := splitHexPrefix(bytecode)

	placeholders := make([]LinkPlaceholder, 0)
	for i := 0; i < len(code); {
		c := code[i]
		switch {
		case isHexChar(c):
			if i+1 >= len(code) || !isHexChar(code[i+1]) {
				return nil, errors.Wrapf(ErrInvalidBytecode, "incomplete hex byte at offset %d", i)
			}
			i += 2
		case c == '_':
			name, err := parsePlaceholder(code, i)
			if err != nil {
				return nil, err
			}
			placeholders = append(placeholders, LinkPlaceholder{
				LibraryName: name,
				Offset:      i,
				Length:      PlaceholderLength,
			})
			i += PlaceholderLength
		default:
			return nil, errors.Wrapf(ErrInvalidBytecode, "unexpected character %q at offset %d", c, i)
		}
	}
	return placeholders, nil
}

// parsePlaceholder validates the placeholder starting at the given offset and returns the library name it encloses.
func parsePlaceholder(code string, offset int) (string, error) {
	if offset+PlaceholderLength > len(code) {
		return "", errors.Wrapf(ErrInvalidBytecode, "truncated link placeholder at offset %d", offset)
	}
	span := code[offset : offset+PlaceholderLength]

	// The padding must open and close with at least two underscores
	if span[1] != '_' || span[PlaceholderLength-2] != '_' || span[PlaceholderLength-1] != '_' {
		return "", errors.Wrapf(ErrInvalidBytecode, "malformed link placeholder %q at offset %d", span, offset)
	}
	for j := 0; j < len(span); j++ {
		if span[j] <= ' ' || span[j] > '~' {
			return "", errors.Wrapf(ErrInvalidBytecode, "malformed link placeholder %q at offset %d", span, offset)
		}
	}

	name := strings.Trim(span, "_")
	if name == "" {
		return "", errors.Wrapf(ErrInvalidBytecode, "link placeholder without a library name at offset %d", offset)
	}

	// Older compilers embed the fully qualified "path/File.sol:Library" form
	if idx := strings.LastIndex(name, ":"); idx >= 0 && idx < len(name)-1 {
		name = name[idx+1:]
	}
	return name, nil
}

// MakePlaceholder renders the placeholder text a compiler would embed for the given library name: the name padded
// with underscores to PlaceholderLength characters, truncated if it is too long to fit.
func MakePlaceholder(libraryName string) string {
	const maxNameLength = PlaceholderLength - 4
	if len(libraryName) > maxNameLength {
		libraryName = libraryName[:maxNameLength]
	}
	return "__" + libraryName + strings.Repeat("_", PlaceholderLength-2-len(libraryName))
}
