// Package testutil holds import-boundary assertions shared by the layering
// tests of the deck engine packages.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

const modulePath = "deckcore"

// AssertNoDirectImports parses the non-test .go files in dir and fails when
// an import satisfies forbidden. Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	failIfDirectViolations(t, reason, viols)
}

// ThirdPartyImport matches module-internal and non-standard-library imports.
// Standard library paths have no dot in their first element.
func ThirdPartyImport(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return strings.Contains(first, ".") || first == modulePath
}

// InfraImport matches the storage and transport drivers.
func InfraImport(path string) bool {
	return strings.HasPrefix(path, modulePath+"/internal/infra") ||
		strings.HasPrefix(path, modulePath+"/internal/persistence") ||
		strings.HasPrefix(path, modulePath+"/internal/blob") ||
		strings.HasPrefix(path, modulePath+"/internal/adapters")
}

// ServiceImport matches the service and process layers above the engine.
func ServiceImport(path string) bool {
	return strings.HasPrefix(path, modulePath+"/internal/core") ||
		strings.HasPrefix(path, modulePath+"/internal/config") ||
		strings.HasPrefix(path, modulePath+"/cmd/")
}

// Any combines predicates.
func Any(preds ...func(string) bool) func(string) bool {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			ip, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return nil, err
			}
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfDirectViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden direct imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}
