package content

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLibraryResolvesIndices(t *testing.T) {
	lib, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}

	id, ok := lib.UnitByName("footman")
	if !ok {
		t.Fatalf("footman missing from catalog")
	}
	def, ok := lib.Unit(id)
	if !ok || def.ID != "footman" {
		t.Fatalf("unit index round trip failed: %+v ok=%v", def, ok)
	}

	if _, ok := lib.Unit(UnitTypeID(lib.UnitCount())); ok {
		t.Fatalf("out-of-range unit id resolved")
	}
	if _, ok := lib.Unit(UnitTypeID(-1)); ok {
		t.Fatalf("negative unit id resolved")
	}
}

func TestEnumsMatchCatalogOrder(t *testing.T) {
	lib, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	enums := lib.Enums()
	catalog := lib.Collections()

	for i, def := range catalog.Units {
		if enums.Units[def.ID] != i {
			t.Fatalf("unit %q enum index %d, expected %d", def.ID, enums.Units[def.ID], i)
		}
	}
	for i, def := range catalog.Upgrades {
		if enums.Upgrades[def.ID] != i {
			t.Fatalf("upgrade %q enum index %d, expected %d", def.ID, enums.Upgrades[def.ID], i)
		}
	}
}

func TestCatalogHashIsStable(t *testing.T) {
	first, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	second, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	if first.Hash() == "" {
		t.Fatalf("empty catalog hash")
	}
	if first.Hash() != second.Hash() {
		t.Fatalf("hash differs across identical catalogs: %s vs %s", first.Hash(), second.Hash())
	}
}

func TestCatalogHashChangesWithContent(t *testing.T) {
	base, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	catalog := defaultCatalog()
	catalog.Units[0].Damage += 1
	tuned, err := NewLibraryFromCatalog(catalog)
	if err != nil {
		t.Fatalf("NewLibraryFromCatalog: %v", err)
	}
	if base.Hash() == tuned.Hash() {
		t.Fatalf("hash did not change after tuning")
	}
}

func TestLoadOverridesReplacesEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	override := `
units:
  - id: footman
    name: Footman Squad
    goldCost: 90
    supplyCost: 2
    squadSize: 4
    cellsWide: 2
    cellsDeep: 2
    maxHealth: 150
    damage: 14
    range: 1.2
    attackInterval: 1.0
    moveSpeed: 2.4
`
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	lib, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	id, _ := lib.UnitByName("footman")
	def, _ := lib.Unit(id)
	if def.MaxHealth != 150 || def.GoldCost != 90 {
		t.Fatalf("override not applied: %+v", def)
	}

	base, _ := NewLibrary()
	if base.Hash() == lib.Hash() {
		t.Fatalf("override should change the catalog hash")
	}
}

func TestLoadOverridesRejectsUnknownIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("units:\n  - id: gryphon\n"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	if _, err := LoadOverrides(path); err == nil {
		t.Fatalf("expected error for unknown unit id")
	}
}

func TestDuplicateIDsRejected(t *testing.T) {
	catalog := defaultCatalog()
	catalog.Units = append(catalog.Units, catalog.Units[0])
	if _, err := NewLibraryFromCatalog(catalog); err == nil {
		t.Fatalf("expected duplicate unit id to fail")
	}
}
