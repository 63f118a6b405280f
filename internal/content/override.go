package content

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overrideFile models the YAML tuning file. Entries are matched by id;
// unknown ids are an error so typos fail loudly at boot rather than silently
// shipping default stats.
type overrideFile struct {
	Units    []UnitDefinition    `yaml:"units"`
	Upgrades []UpgradeDefinition `yaml:"upgrades"`
}

// LoadOverrides reads a YAML tuning file and returns a library over the
// default catalog with the listed entries replaced. Overrides change the
// catalog hash, so every instance in a match must load the same file.
func LoadOverrides(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: read overrides %s: %w", path, err)
	}
	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("content: parse overrides %s: %w", path, err)
	}

	catalog := defaultCatalog()
	base, err := NewLibraryFromCatalog(catalog)
	if err != nil {
		return nil, err
	}

	for _, def := range file.Units {
		id, ok := base.UnitByName(def.ID)
		if !ok {
			return nil, fmt.Errorf("content: override for unknown unit %q", def.ID)
		}
		def.Collection = "units"
		catalog.Units[id] = def
	}
	for _, def := range file.Upgrades {
		id, ok := base.UpgradeByName(def.ID)
		if !ok {
			return nil, fmt.Errorf("content: override for unknown upgrade %q", def.ID)
		}
		def.Collection = "upgrades"
		catalog.Upgrades[id] = def
	}

	return NewLibraryFromCatalog(catalog)
}
