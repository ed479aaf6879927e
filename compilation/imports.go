package compilation

import (
	"path"
	"regexp"
	"strings"
)

// importRegexp matches the path of an import directive, in both the plain and the "from" forms:
//
//	import "./Lib.sol";
//	import {Lib} from "./Lib.sol";
//	import * as Lib from './Lib.sol';
var importRegexp = regexp.MustCompile(`import\s+(?:[^"';]*?from\s+)?["']([^"']+)["']`)

// ParseImports returns the import paths of the provided source text in order of appearance. This is a textual scan,
// not a parse, so an import inside a comment is also reported.
func ParseImports(source []byte) []string {
	matches := importRegexp.FindAllSubmatch(source, -1)
	imports := make([]string, 0, len(matches))
	for _, match := range matches {
		imports = append(imports, string(match[1]))
	}
	return imports
}

// ResolveImport resolves an import path found in the file at importingPath to a path relative to the contracts root.
// Paths starting with "./" or "../" are relative to the importing file, any other path is relative to the contracts
// root. The boolean return is false if the import points outside the contracts root.
func ResolveImport(importingPath string, importPath string) (string, bool) {
	var resolved string
	if strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../") {
		resolved = path.Join(path.Dir(importingPath), importPath)
	} else {
		resolved = path.Clean(importPath)
	}

	if resolved == ".." || strings.HasPrefix(resolved, "../") || path.IsAbs(resolved) {
		return "", false
	}
	return resolved, true
}
