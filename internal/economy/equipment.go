package economy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/talgya/castaways/internal/textutil"
)

// Equipment enumerates the tools that can be salvaged from the wreck.
type Equipment uint8

const (
	Bucket     Equipment = iota // Boosts water fetching
	Axe                         // Boosts wood fetching
	FishingRod                  // Boosts food fetching
)

// NumEquipment is the total number of equipment kinds.
const NumEquipment = 3

// EquipmentKinds lists every equipment kind in index order.
var EquipmentKinds = [NumEquipment]Equipment{Bucket, Axe, FishingRod}

var equipmentNames = [NumEquipment]string{"bucket", "axe", "fishing_rod"}

// String returns the snake_case equipment name.
func (e Equipment) String() string {
	if int(e) < NumEquipment {
		return equipmentNames[e]
	}
	return fmt.Sprintf("equipment(%d)", e)
}

// Valid reports whether e is a known equipment kind.
func (e Equipment) Valid() bool {
	return int(e) < NumEquipment
}

// Boosts returns the resource this equipment makes easier to fetch.
func (e Equipment) Boosts() Resource {
	switch e {
	case Bucket:
		return Water
	case Axe:
		return Wood
	default:
		return Food
	}
}

// ToolFor returns the equipment kind that boosts fetching r.
func ToolFor(r Resource) Equipment {
	switch r {
	case Water:
		return Bucket
	case Wood:
		return Axe
	default:
		return FishingRod
	}
}

// ParseEquipment converts a name into an Equipment kind.
func ParseEquipment(name string) (Equipment, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range equipmentNames {
		if n == name {
			return Equipment(i), nil
		}
	}
	return 0, errors.Join(ErrUnknownName, errors.New(textutil.Unknown("equipment", name, equipmentNames[:])))
}

// MarshalText implements encoding.TextMarshaler.
func (e Equipment) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("unknown equipment %d", e)
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Equipment) UnmarshalText(b []byte) error {
	v, err := ParseEquipment(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Inventory holds how many of each equipment kind an agent carries.
type Inventory [NumEquipment]int

// Count returns the number of items of kind e held.
func (inv Inventory) Count(e Equipment) int {
	return inv[e]
}

// Has reports whether at least one item of kind e is held.
func (inv Inventory) Has(e Equipment) bool {
	return inv[e] > 0
}

// Add records one more item of kind e.
func (inv *Inventory) Add(e Equipment) {
	inv[e]++
}
