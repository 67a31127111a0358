// Package inventory holds the farm equipment catalog the assistant's
// tools read from. The catalog is read-only at runtime.
package inventory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// NotRentable is the RentalRate value of items that can only be
// purchased.
const NotRentable = "N/A"

// Item is one piece of equipment.
type Item struct {
	ID            int    `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	Category      string `yaml:"category" json:"category"`
	PurchasePrice string `yaml:"price" json:"purchasePrice"`
	RentalRate    string `yaml:"rental" json:"rentalRate"`
	Description   string `yaml:"description" json:"description"`
	Efficiency    string `yaml:"efficiency" json:"efficiency"`
	ImageURL      string `yaml:"image" json:"image,omitempty"`
	URL           string `yaml:"url" json:"url,omitempty"`
}

// Rentable reports whether the item can be booked for rental.
func (i Item) Rentable() bool {
	return i.RentalRate != "" && i.RentalRate != NotRentable
}

// Catalog is the read-only view the tool registry depends on.
type Catalog interface {
	// Items returns every item in catalog order.
	Items() []Item
	// ByID returns the item with the given id.
	ByID(id int) (Item, bool)
	// ByName returns the item whose name equals name, ignoring case.
	ByName(name string) (Item, bool)
}

// Static is an immutable in-memory Catalog.
type Static struct {
	items []Item
}

// NewStatic builds a catalog from items. Duplicate ids are rejected.
func NewStatic(items []Item) (*Static, error) {
	seen := make(map[int]bool, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("item %d: name is required", it.ID)
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("duplicate item id %d", it.ID)
		}
		seen[it.ID] = true
	}
	cp := make([]Item, len(items))
	copy(cp, items)
	return &Static{items: cp}, nil
}

// Items returns a copy of the catalog.
func (s *Static) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// ByID looks up an item by id.
func (s *Static) ByID(id int) (Item, bool) {
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// ByName looks up an item by exact, case-insensitive name.
func (s *Static) ByName(name string) (Item, bool) {
	for _, it := range s.items {
		if strings.EqualFold(it.Name, name) {
			return it, true
		}
	}
	return Item{}, false
}

type catalogFile struct {
	Items []Item `yaml:"items"`
}

// LoadFile reads a YAML catalog of the form:
//
//	items:
//	  - id: 1
//	    name: Harvester
//	    category: Heavy Machinery
//	    price: "₹25,00,000"
//	    rental: "₹2,500/hr"
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("catalog %s has no items", path)
	}
	return NewStatic(f.Items)
}
