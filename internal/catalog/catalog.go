// Package catalog holds the fixed list of tracked commodities and trade hubs.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Commodity is a tracked market type.
type Commodity struct {
	ID   int32  `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Hub is a named trading location inside a region. SecondarySystemID is 0 when
// the hub has only one reference system.
type Hub struct {
	RegionID          int32  `yaml:"region_id" json:"region_id"`
	Name              string `yaml:"name" json:"name"`
	PrimarySystemID   int32  `yaml:"primary_system_id" json:"primary_system_id"`
	SecondarySystemID int32  `yaml:"secondary_system_id,omitempty" json:"secondary_system_id,omitempty"`
}

// HasSystem reports whether systemID is one of the hub's reference systems.
func (h Hub) HasSystem(systemID int32) bool {
	if systemID == 0 {
		return false
	}
	return systemID == h.PrimarySystemID || systemID == h.SecondarySystemID
}

// StructureSystem is the system assigned to player structures seen in this hub's region.
func (h Hub) StructureSystem() int32 {
	if h.SecondarySystemID != 0 {
		return h.SecondarySystemID
	}
	return h.PrimarySystemID
}

// Catalog is the immutable set of commodities and hubs.
type Catalog struct {
	Commodities []Commodity `yaml:"commodities" json:"commodities"`
	Hubs        []Hub       `yaml:"hubs" json:"hubs"`
}

// Default returns the built-in mineral catalog and the five empire trade hubs.
func Default() *Catalog {
	return &Catalog{
		Commodities: []Commodity{
			{34, "Tritanium"},
			{35, "Pyerite"},
			{36, "Mexallon"},
			{37, "Isogen"},
			{38, "Nocxium"},
			{39, "Zydrine"},
			{40, "Megacyte"},
			{11399, "Morphite"},
		},
		Hubs: []Hub{
			{RegionID: 10000002, Name: "Jita", PrimarySystemID: 30000142, SecondarySystemID: 30000144},
			{RegionID: 10000043, Name: "Amarr", PrimarySystemID: 30002187, SecondarySystemID: 30003491},
			{RegionID: 10000030, Name: "Rens", PrimarySystemID: 30002510, SecondarySystemID: 30002526},
			{RegionID: 10000042, Name: "Hek", PrimarySystemID: 30002053, SecondarySystemID: 30002068},
			{RegionID: 10000032, Name: "Dodixie", PrimarySystemID: 30002659, SecondarySystemID: 30002661},
		},
	}
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks ids and names are present and unique.
func (c *Catalog) Validate() error {
	if len(c.Commodities) == 0 {
		return fmt.Errorf("catalog: no commodities")
	}
	if len(c.Hubs) == 0 {
		return fmt.Errorf("catalog: no hubs")
	}
	ids := make(map[int32]bool)
	for _, cm := range c.Commodities {
		if cm.ID <= 0 || cm.Name == "" {
			return fmt.Errorf("catalog: invalid commodity %+v", cm)
		}
		if ids[cm.ID] {
			return fmt.Errorf("catalog: duplicate commodity id %d", cm.ID)
		}
		ids[cm.ID] = true
	}
	names := make(map[string]bool)
	for _, h := range c.Hubs {
		if h.RegionID <= 0 || h.PrimarySystemID <= 0 || h.Name == "" {
			return fmt.Errorf("catalog: invalid hub %+v", h)
		}
		if names[h.Name] {
			return fmt.Errorf("catalog: duplicate hub %q", h.Name)
		}
		names[h.Name] = true
	}
	return nil
}

// Hub returns the hub with the given name.
func (c *Catalog) Hub(name string) (Hub, bool) {
	for _, h := range c.Hubs {
		if h.Name == name {
			return h, true
		}
	}
	return Hub{}, false
}

// HubNames returns hub names in catalog order.
func (c *Catalog) HubNames() []string {
	out := make([]string, len(c.Hubs))
	for i, h := range c.Hubs {
		out[i] = h.Name
	}
	return out
}
