package persistence

import (
	"go/types"
	"sort"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestSnapshotStoreImplementations keeps concrete snapshot stores inside the
// infra persistence tree. A new backend needs an explicit entry here.
func TestSnapshotStoreImplementations(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes}
	pkgs, err := packages.Load(cfg, "deckcore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var store *types.Interface
	for _, p := range pkgs {
		if p.PkgPath != "deckcore/pkg/domain" {
			continue
		}
		obj := p.Types.Scope().Lookup("SnapshotStore")
		if obj == nil {
			t.Fatalf("domain.SnapshotStore not found")
		}
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			t.Fatalf("domain.SnapshotStore is not an interface")
		}
		store = iface
	}
	if store == nil {
		t.Fatalf("failed to resolve SnapshotStore interface")
	}
	allowed := map[string]struct{}{
		"deckcore/internal/infra/persistence/memory":   {},
		"deckcore/internal/infra/persistence/sqlite":   {},
		"deckcore/internal/infra/persistence/postgres": {},
		"deckcore/internal/infra/persistence/badger":   {},
		"deckcore/internal/infra/persistence/redis":    {},
	}
	var unexpected []string
	found := 0
	for _, p := range pkgs {
		if p.Types == nil {
			continue
		}
		for _, name := range p.Types.Scope().Names() {
			named, ok := p.Types.Scope().Lookup(name).Type().(*types.Named)
			if !ok {
				continue
			}
			if _, ok := named.Underlying().(*types.Struct); !ok {
				continue
			}
			if !types.Implements(types.NewPointer(named), store) {
				continue
			}
			if _, ok := allowed[p.PkgPath]; !ok {
				unexpected = append(unexpected, p.PkgPath+"."+name)
				continue
			}
			found++
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		t.Fatalf("unexpected SnapshotStore implementations: %v", unexpected)
	}
	if found < len(allowed) {
		t.Fatalf("expected %d sanctioned stores, found %d", len(allowed), found)
	}
}
