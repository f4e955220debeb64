package catalog

import (
	"fmt"
	"strings"
)

type TypeFilter string

const (
	FilterAll     TypeFilter = "All"
	FilterCattle  TypeFilter = "Cattle"
	FilterBuffalo TypeFilter = "Buffalo"
)

// ParseTypeFilter accepts the filter names case-insensitively. An empty
// string means All.
func ParseTypeFilter(s string) (TypeFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "cattle":
		return FilterCattle, nil
	case "buffalo":
		return FilterBuffalo, nil
	default:
		return "", fmt.Errorf("unknown breed type %q (want All, Cattle or Buffalo)", s)
	}
}

func (f TypeFilter) Matches(b Breed) bool {
	return f == FilterAll || f == "" || string(b.Type) == string(f)
}

// ByType keeps breeds whose type matches f.
func ByType(breeds []Breed, f TypeFilter) []Breed {
	out := make([]Breed, 0, len(breeds))
	for _, b := range breeds {
		if f.Matches(b) {
			out = append(out, b)
		}
	}
	return out
}

// ByTerm keeps breeds whose name, origin or any characteristic contains
// term, ignoring case. An empty term matches everything.
func ByTerm(breeds []Breed, term string) []Breed {
	out := make([]Breed, 0, len(breeds))
	for _, b := range breeds {
		if MatchesTerm(b, term) {
			out = append(out, b)
		}
	}
	return out
}

func MatchesTerm(b Breed, term string) bool {
	needle := strings.ToLower(term)
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(b.Name), needle) ||
		strings.Contains(strings.ToLower(b.Origin), needle) {
		return true
	}
	for _, c := range b.Characteristics {
		if strings.Contains(strings.ToLower(c), needle) {
			return true
		}
	}
	return false
}
