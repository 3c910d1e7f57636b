// Package economy provides the island's resource kinds, salvageable equipment,
// and the fixed-size stock and inventory types shared by every other package.
package economy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/talgya/castaways/internal/textutil"
)

// ErrUnknownName is returned when parsing a resource or equipment name fails.
var ErrUnknownName = errors.New("unknown name")

// Resource enumerates the consumable goods a colony gathers.
type Resource uint8

const (
	Water Resource = iota
	Wood
	Food
)

// NumResources is the total number of resource kinds.
const NumResources = 3

// Resources lists every resource kind in index order.
var Resources = [NumResources]Resource{Water, Wood, Food}

var resourceNames = [NumResources]string{"water", "wood", "food"}

// String returns the lowercase resource name.
func (r Resource) String() string {
	if int(r) < NumResources {
		return resourceNames[r]
	}
	return fmt.Sprintf("resource(%d)", r)
}

// Valid reports whether r is a known resource kind.
func (r Resource) Valid() bool {
	return int(r) < NumResources
}

// ParseResource converts a name into a Resource.
func ParseResource(name string) (Resource, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range resourceNames {
		if n == name {
			return Resource(i), nil
		}
	}
	return 0, errors.Join(ErrUnknownName, errors.New(textutil.Unknown("resource", name, resourceNames[:])))
}

// MarshalText implements encoding.TextMarshaler.
func (r Resource) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown resource %d", r)
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Resource) UnmarshalText(b []byte) error {
	v, err := ParseResource(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Stock is a fixed-size array holding quantities of each resource.
type Stock [NumResources]int

// Scale returns a copy with every quantity multiplied by n.
func (s Stock) Scale(n int) Stock {
	for i := range s {
		s[i] *= n
	}
	return s
}

// Add returns the element-wise sum of s and o.
func (s Stock) Add(o Stock) Stock {
	for i := range s {
		s[i] += o[i]
	}
	return s
}

// Covers reports whether every quantity in s is at least the one in need.
func (s Stock) Covers(need Stock) bool {
	for i := range s {
		if s[i] < need[i] {
			return false
		}
	}
	return true
}

// Counts is the named-field form of a Stock used in summaries.
type Counts struct {
	Water int `json:"water"`
	Wood  int `json:"wood"`
	Food  int `json:"food"`
}

// Counts converts s into its named-field form.
func (s Stock) Counts() Counts {
	return Counts{Water: s[Water], Wood: s[Wood], Food: s[Food]}
}

// Stock converts c back into a Stock.
func (c Counts) Stock() Stock {
	return Stock{c.Water, c.Wood, c.Food}
}
