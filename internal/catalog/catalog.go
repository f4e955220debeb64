// Package catalog is the static, read-only list of breeds and its search.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed breeds.toml
var embeddedBreeds []byte

type Type string

const (
	TypeCattle  Type = "Cattle"
	TypeBuffalo Type = "Buffalo"
)

type Breed struct {
	ID              int      `toml:"id" json:"id"`
	Name            string   `toml:"name" json:"name"`
	Type            Type     `toml:"type" json:"type"`
	Origin          string   `toml:"origin" json:"origin"`
	Characteristics []string `toml:"characteristics" json:"characteristics"`
	ImageRef        string   `toml:"image" json:"image"`
}

func (b Breed) Slug() string {
	return Slug(b.Name)
}

// Summary returns the first two characteristics and how many were left out.
func (b Breed) Summary() ([]string, int) {
	if len(b.Characteristics) <= 2 {
		return b.Characteristics, 0
	}
	return b.Characteristics[:2], len(b.Characteristics) - 2
}

// MoreLabel renders the hidden characteristic count, e.g. "+1 more".
func MoreLabel(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("+%d more", n)
}

// CountPhrase renders a result count, e.g. "1 breed found".
func CountPhrase(n int) string {
	if n == 1 {
		return "1 breed found"
	}
	return fmt.Sprintf("%d breeds found", n)
}

// Slug lowercases name and replaces whitespace runs with hyphens.
func Slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

type Catalog struct {
	breeds []Breed
}

type document struct {
	Breeds []Breed `toml:"breed"`
}

// Default returns the catalog shipped with the binary.
func Default() *Catalog {
	c, err := Parse(embeddedBreeds)
	if err != nil {
		panic(fmt.Sprintf("embedded breed catalog: %v", err))
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var doc document
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse breed catalog: %w", err)
	}

	seen := make(map[string]bool, len(doc.Breeds))
	for i, b := range doc.Breeds {
		if strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("breed %d: name is required", i+1)
		}
		if b.Type != TypeCattle && b.Type != TypeBuffalo {
			return nil, fmt.Errorf("breed %q: unknown type %q", b.Name, b.Type)
		}
		slug := b.Slug()
		if seen[slug] {
			return nil, fmt.Errorf("breed %q: duplicate slug %q", b.Name, slug)
		}
		seen[slug] = true
	}
	return New(doc.Breeds), nil
}

func New(breeds []Breed) *Catalog {
	return &Catalog{breeds: append([]Breed(nil), breeds...)}
}

// All returns every breed in catalog order.
func (c *Catalog) All() []Breed {
	return append([]Breed(nil), c.breeds...)
}

func (c *Catalog) Len() int {
	return len(c.breeds)
}

// Lookup finds a breed by its slug.
func (c *Catalog) Lookup(slug string) (Breed, bool) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	for _, b := range c.breeds {
		if b.Slug() == slug {
			return b, true
		}
	}
	return Breed{}, false
}

// Filter returns the breeds matching both the type filter and the search
// term, in catalog order.
func (c *Catalog) Filter(term string, filter TypeFilter) []Breed {
	return ByTerm(ByType(c.breeds, filter), term)
}
