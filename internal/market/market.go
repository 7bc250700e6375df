// Package market serves the reference crop price list bundled with the binary.
package market

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var defaultCatalogue []byte

type Price struct {
	ID       string  `yaml:"id" json:"id"`
	Name     string  `yaml:"name" json:"name"`
	NameML   string  `yaml:"name_ml" json:"nameMl,omitempty"`
	Category string  `yaml:"category" json:"category"`
	Price    float64 `yaml:"price" json:"price"`
	Unit     string  `yaml:"unit" json:"unit"`
	Location string  `yaml:"location" json:"location"`
	Icon     string  `yaml:"icon" json:"icon"`
	Trend    string  `yaml:"trend" json:"trend"` // up, down, stable
	Change   float64 `yaml:"change" json:"change"`
}

// Display renders the price the way the home screen shows it, e.g. "₹8700/Q".
func (p Price) Display() string {
	return fmt.Sprintf("₹%s/%s", trimFloat(p.Price), p.Unit)
}

// ChangeLabel renders the change as "+12%", "-5%" or "0%".
func (p Price) ChangeLabel() string {
	if p.Change > 0 {
		return "+" + trimFloat(p.Change) + "%"
	}
	return trimFloat(p.Change) + "%"
}

type Catalogue struct {
	Updated string  `yaml:"updated" json:"updated"`
	Items   []Price `yaml:"items" json:"items"`
}

// Load parses the bundled catalogue.
func Load() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

func Parse(raw []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse price catalogue: %w", err)
	}
	for i, item := range c.Items {
		if item.ID == "" || item.Name == "" {
			return nil, fmt.Errorf("price catalogue item %d is missing id or name", i+1)
		}
	}
	return &c, nil
}

// Filter returns the items of category (case-insensitive). An empty category returns everything.
func (c *Catalogue) Filter(category string) []Price {
	category = strings.TrimSpace(category)
	out := make([]Price, 0, len(c.Items))
	for _, item := range c.Items {
		if category == "" || strings.EqualFold(item.Category, category) {
			out = append(out, item)
		}
	}
	return out
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
