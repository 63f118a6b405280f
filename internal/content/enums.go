package content

// Enums exposes the stable name-to-index mappings shared with the client.
// The transport carries integer indices only, so these tables are the single
// source of truth for decoding wire payloads.
type Enums struct {
	Units    map[string]int `json:"units"`
	Upgrades map[string]int `json:"upgrades"`
}

// Enums returns freshly allocated mapping tables.
func (l *Library) Enums() Enums {
	units := make(map[string]int, len(l.unitIndex))
	for name, id := range l.unitIndex {
		units[name] = int(id)
	}
	upgrades := make(map[string]int, len(l.upgradeIndex))
	for name, id := range l.upgradeIndex {
		upgrades[name] = int(id)
	}
	return Enums{Units: units, Upgrades: upgrades}
}
