package content

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/iancoleman/orderedmap"
)

// hashCatalog computes the canonical catalog digest. The document is built
// through ordered maps so field order is fixed regardless of how the catalog
// was loaded; encoding/json preserves orderedmap insertion order, which makes
// the serialized form byte-stable and the hash comparable across processes.
func hashCatalog(catalog Catalog) (string, error) {
	doc := orderedmap.New()

	units := make([]*orderedmap.OrderedMap, 0, len(catalog.Units))
	for _, def := range catalog.Units {
		entry := orderedmap.New()
		entry.Set("id", def.ID)
		entry.Set("goldCost", def.GoldCost)
		entry.Set("supplyCost", def.SupplyCost)
		entry.Set("squadSize", def.SquadSize)
		entry.Set("cellsWide", def.CellsWide)
		entry.Set("cellsDeep", def.CellsDeep)
		entry.Set("maxHealth", def.MaxHealth)
		entry.Set("damage", def.Damage)
		entry.Set("range", def.Range)
		entry.Set("attackInterval", def.AttackInterval)
		entry.Set("moveSpeed", def.MoveSpeed)
		entry.Set("building", def.Building)
		entry.Set("constructionSeconds", def.ConstructionSeconds)
		units = append(units, entry)
	}
	doc.Set("units", units)

	upgrades := make([]*orderedmap.OrderedMap, 0, len(catalog.Upgrades))
	for _, def := range catalog.Upgrades {
		entry := orderedmap.New()
		entry.Set("id", def.ID)
		entry.Set("goldCost", def.GoldCost)
		entry.Set("damageBonus", def.DamageBonus)
		entry.Set("maxHealthBonus", def.MaxHealthBonus)
		entry.Set("supplyBonus", def.SupplyBonus)
		upgrades = append(upgrades, entry)
	}
	doc.Set("upgrades", upgrades)

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal canonical catalog: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
