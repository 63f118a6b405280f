// Package content holds the static unit and upgrade definitions shared by
// client and server. Definitions are addressed on the wire by integer indices
// into the enum tables, so the catalog order is part of the protocol: both
// sides must agree on the catalog hash before exchanging placements.
package content

import "fmt"

// UnitTypeID indexes into the unit collection. Wire payloads carry the index,
// not the string id.
type UnitTypeID int

// UpgradeID indexes into the upgrade collection.
type UpgradeID int

// UnitDefinition models a placeable squad or building type.
type UnitDefinition struct {
	ID                  string  `json:"id" yaml:"id" jsonschema:"title=Unit id,pattern=^[a-z0-9\\-]+$,description=Stable designer-facing identifier"`
	Name                string  `json:"name" yaml:"name" jsonschema:"title=Display name"`
	Collection          string  `json:"collection" yaml:"collection" jsonschema:"description=Collection the entry belongs to,enum=units"`
	GoldCost            int     `json:"goldCost" yaml:"goldCost" jsonschema:"minimum=0"`
	SupplyCost          int     `json:"supplyCost" yaml:"supplyCost" jsonschema:"minimum=0"`
	SquadSize           int     `json:"squadSize" yaml:"squadSize" jsonschema:"minimum=1,description=Entities spawned per placement"`
	CellsWide           int     `json:"cellsWide" yaml:"cellsWide" jsonschema:"minimum=1"`
	CellsDeep           int     `json:"cellsDeep" yaml:"cellsDeep" jsonschema:"minimum=1"`
	MaxHealth           float64 `json:"maxHealth" yaml:"maxHealth" jsonschema:"minimum=1"`
	Damage              float64 `json:"damage" yaml:"damage" jsonschema:"minimum=0"`
	Range               float64 `json:"range" yaml:"range" jsonschema:"minimum=0"`
	AttackInterval      float64 `json:"attackInterval" yaml:"attackInterval" jsonschema:"minimum=0,description=Seconds between attacks on the simulation clock"`
	MoveSpeed           float64 `json:"moveSpeed" yaml:"moveSpeed" jsonschema:"minimum=0,description=Cells per simulation second; zero for buildings"`
	Building            bool    `json:"building" yaml:"building"`
	ConstructionSeconds float64 `json:"constructionSeconds" yaml:"constructionSeconds" jsonschema:"minimum=0,description=Simulation seconds until a building becomes active"`
}

// UpgradeDefinition models a purchasable per-team upgrade.
type UpgradeDefinition struct {
	ID             string  `json:"id" yaml:"id" jsonschema:"title=Upgrade id,pattern=^[a-z0-9\\-]+$"`
	Name           string  `json:"name" yaml:"name"`
	Collection     string  `json:"collection" yaml:"collection" jsonschema:"enum=upgrades"`
	GoldCost       int     `json:"goldCost" yaml:"goldCost" jsonschema:"minimum=0"`
	DamageBonus    float64 `json:"damageBonus" yaml:"damageBonus"`
	MaxHealthBonus float64 `json:"maxHealthBonus" yaml:"maxHealthBonus"`
	SupplyBonus    int     `json:"supplyBonus" yaml:"supplyBonus"`
}

// Catalog bundles every collection in a stable order.
type Catalog struct {
	Units    []UnitDefinition    `json:"units" yaml:"units"`
	Upgrades []UpgradeDefinition `json:"upgrades" yaml:"upgrades"`
}

// defaultCatalog returns the built-in content set. Order matters: the slice
// index is the wire id.
func defaultCatalog() Catalog {
	return Catalog{
		Units: []UnitDefinition{
			{
				ID:             "footman",
				Name:           "Footman Squad",
				Collection:     "units",
				GoldCost:       100,
				SupplyCost:     2,
				SquadSize:      4,
				CellsWide:      2,
				CellsDeep:      2,
				MaxHealth:      120,
				Damage:         14,
				Range:          1.2,
				AttackInterval: 1.0,
				MoveSpeed:      2.4,
			},
			{
				ID:             "archer",
				Name:           "Archer Squad",
				Collection:     "units",
				GoldCost:       140,
				SupplyCost:     2,
				SquadSize:      3,
				CellsWide:      2,
				CellsDeep:      1,
				MaxHealth:      70,
				Damage:         11,
				Range:          6.5,
				AttackInterval: 1.4,
				MoveSpeed:      2.0,
			},
			{
				ID:                  "watchtower",
				Name:                "Watchtower",
				Collection:          "units",
				GoldCost:            220,
				SupplyCost:          1,
				SquadSize:           1,
				CellsWide:           2,
				CellsDeep:           2,
				MaxHealth:           400,
				Damage:              18,
				Range:               8.0,
				AttackInterval:      1.8,
				Building:            true,
				ConstructionSeconds: 6,
			},
			{
				ID:                  "barricade",
				Name:                "Barricade",
				Collection:          "units",
				GoldCost:            60,
				SupplyCost:          0,
				SquadSize:           1,
				CellsWide:           3,
				CellsDeep:           1,
				MaxHealth:           600,
				Building:            true,
				ConstructionSeconds: 3,
			},
		},
		Upgrades: []UpgradeDefinition{
			{
				ID:          "sharpened-blades",
				Name:        "Sharpened Blades",
				Collection:  "upgrades",
				GoldCost:    180,
				DamageBonus: 4,
			},
			{
				ID:             "hardened-armor",
				Name:           "Hardened Armor",
				Collection:     "upgrades",
				GoldCost:       200,
				MaxHealthBonus: 30,
			},
			{
				ID:          "supply-cache",
				Name:        "Supply Cache",
				Collection:  "upgrades",
				GoldCost:    120,
				SupplyBonus: 4,
			},
		},
	}
}

// Library resolves integer ids against a catalog and exposes the lookup
// surface used by the command pipeline and by non-core collaborators.
type Library struct {
	catalog      Catalog
	unitIndex    map[string]UnitTypeID
	upgradeIndex map[string]UpgradeID
	hash         string
}

// NewLibrary builds a library over the default catalog.
func NewLibrary() (*Library, error) {
	return NewLibraryFromCatalog(defaultCatalog())
}

// NewLibraryFromCatalog builds a library over an explicit catalog, validating
// id uniqueness and computing the canonical hash.
func NewLibraryFromCatalog(catalog Catalog) (*Library, error) {
	lib := &Library{
		catalog:      catalog,
		unitIndex:    make(map[string]UnitTypeID, len(catalog.Units)),
		upgradeIndex: make(map[string]UpgradeID, len(catalog.Upgrades)),
	}
	for i, def := range catalog.Units {
		if def.ID == "" {
			return nil, fmt.Errorf("content: unit %d has empty id", i)
		}
		if _, dup := lib.unitIndex[def.ID]; dup {
			return nil, fmt.Errorf("content: duplicate unit id %q", def.ID)
		}
		lib.unitIndex[def.ID] = UnitTypeID(i)
	}
	for i, def := range catalog.Upgrades {
		if def.ID == "" {
			return nil, fmt.Errorf("content: upgrade %d has empty id", i)
		}
		if _, dup := lib.upgradeIndex[def.ID]; dup {
			return nil, fmt.Errorf("content: duplicate upgrade id %q", def.ID)
		}
		lib.upgradeIndex[def.ID] = UpgradeID(i)
	}
	hash, err := hashCatalog(catalog)
	if err != nil {
		return nil, fmt.Errorf("content: hash catalog: %w", err)
	}
	lib.hash = hash
	return lib, nil
}

// Collections returns the full catalog for collaborators (editor, client
// bootstrap). The returned value is a copy.
func (l *Library) Collections() Catalog {
	cloned := Catalog{
		Units:    append([]UnitDefinition(nil), l.catalog.Units...),
		Upgrades: append([]UpgradeDefinition(nil), l.catalog.Upgrades...),
	}
	return cloned
}

// Hash returns the canonical catalog hash exchanged in the join handshake.
func (l *Library) Hash() string {
	return l.hash
}

// Unit resolves a unit type index, reporting false for out-of-range ids.
func (l *Library) Unit(id UnitTypeID) (UnitDefinition, bool) {
	if id < 0 || int(id) >= len(l.catalog.Units) {
		return UnitDefinition{}, false
	}
	return l.catalog.Units[id], true
}

// UnitByName resolves a designer id to its wire index.
func (l *Library) UnitByName(name string) (UnitTypeID, bool) {
	id, ok := l.unitIndex[name]
	return id, ok
}

// Upgrade resolves an upgrade index, reporting false for out-of-range ids.
func (l *Library) Upgrade(id UpgradeID) (UpgradeDefinition, bool) {
	if id < 0 || int(id) >= len(l.catalog.Upgrades) {
		return UpgradeDefinition{}, false
	}
	return l.catalog.Upgrades[id], true
}

// UpgradeByName resolves a designer id to its wire index.
func (l *Library) UpgradeByName(name string) (UpgradeID, bool) {
	id, ok := l.upgradeIndex[name]
	return id, ok
}

// UnitCount reports the number of unit definitions.
func (l *Library) UnitCount() int { return len(l.catalog.Units) }

// UpgradeCount reports the number of upgrade definitions.
func (l *Library) UpgradeCount() int { return len(l.catalog.Upgrades) }
