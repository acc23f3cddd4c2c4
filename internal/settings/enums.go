// Package settings implements the typed, enumerated parameter store shared
// by every component of the engine. Two key domains exist: run settings
// (global simulation parameters, RunID) and body settings (per-material
// parameters, BodyID). Every key has a canonical default; reads with a wrong
// type fail with ErrTypeMismatch.
package settings

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// EnumID identifies a registered enumeration type. Enum values are stored in
// settings together with this tag, so flag unions serialise with
// human-readable names.
type EnumID int

const (
	EnumSolver EnumID = iota + 1
	EnumFinder
	EnumTimestepping
	EnumCriterion
	EnumForce
	EnumArtificialViscosity
	EnumSmoothingLength
	EnumGravity
	EnumCollisionHandler
	EnumOverlap
	EnumLogger
	EnumOutput
	EnumOutputSpacing
	EnumOutputQuantity
	EnumEOS
	EnumDistribution
	EnumAggregateSource
	EnumRunType
)

// EnumDef associates one enum value with its serialised name.
type EnumDef struct {
	Value int
	Name  string
	Desc  string
}

type enumRecord struct {
	byValue map[int]string
	byName  map[string]int
	order   []int
}

var (
	enumMu  sync.RWMutex
	enumReg = map[EnumID]*enumRecord{}
)

// RegisterEnum records the name-value mapping of an enumeration. It is
// called from package init functions only; the registry is immutable
// afterwards and concurrent reads need no synchronisation beyond the
// read lock.
func RegisterEnum(id EnumID, defs []EnumDef) {
	enumMu.Lock()
	defer enumMu.Unlock()
	rec := &enumRecord{
		byValue: make(map[int]string, len(defs)),
		byName:  make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		rec.byValue[d.Value] = d.Name
		rec.byName[d.Name] = d.Value
		rec.order = append(rec.order, d.Value)
	}
	sort.Ints(rec.order)
	enumReg[id] = rec
}

// EnumName returns the serialised name of an enum value.
func EnumName(id EnumID, value int) (string, bool) {
	enumMu.RLock()
	defer enumMu.RUnlock()
	rec, ok := enumReg[id]
	if !ok {
		return "", false
	}
	name, ok := rec.byValue[value]
	return name, ok
}

// EnumValueOf returns the value matching a serialised name.
func EnumValueOf(id EnumID, name string) (int, bool) {
	enumMu.RLock()
	defer enumMu.RUnlock()
	rec, ok := enumReg[id]
	if !ok {
		return 0, false
	}
	v, ok := rec.byName[name]
	return v, ok
}

// EnumValue is an enum constant stored with its type tag.
type EnumValue struct {
	ID    EnumID
	Value int
}

func (e EnumValue) String() string {
	if name, ok := EnumName(e.ID, e.Value); ok {
		return name
	}
	return fmt.Sprintf("%d", e.Value)
}

// FlagSet is a bitwise union of values of a single enumeration.
type FlagSet struct {
	ID   EnumID
	Bits int
}

// Flags builds a flag set from individual bit values.
func Flags(id EnumID, values ...int) FlagSet {
	f := FlagSet{ID: id}
	for _, v := range values {
		f.Bits |= v
	}
	return f
}

// EmptyFlags returns the empty union of the given enumeration.
func EmptyFlags(id EnumID) FlagSet { return FlagSet{ID: id} }

func (f FlagSet) Has(value int) bool { return f.Bits&value == value && value != 0 }
func (f FlagSet) Empty() bool        { return f.Bits == 0 }

func (f FlagSet) With(value int) FlagSet {
	f.Bits |= value
	return f
}

func (f FlagSet) Without(value int) FlagSet {
	f.Bits &^= value
	return f
}

// String renders the union as "a | b | c", or the literal "0" when empty.
func (f FlagSet) String() string {
	if f.Bits == 0 {
		return "0"
	}
	enumMu.RLock()
	rec, ok := enumReg[f.ID]
	enumMu.RUnlock()
	if !ok {
		return fmt.Sprintf("%d", f.Bits)
	}
	var parts []string
	for _, v := range rec.order {
		if v != 0 && f.Bits&v == v {
			parts = append(parts, rec.byValue[v])
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d", f.Bits)
	}
	return strings.Join(parts, " | ")
}

// ParseFlags parses the "a | b | c" form (or "0") back into a flag set.
func ParseFlags(id EnumID, s string) (FlagSet, error) {
	s = strings.TrimSpace(s)
	if s == "0" {
		return EmptyFlags(id), nil
	}
	f := FlagSet{ID: id}
	for _, part := range strings.Split(s, "|") {
		name := strings.TrimSpace(part)
		v, ok := EnumValueOf(id, name)
		if !ok {
			return FlagSet{}, fmt.Errorf("%w: unknown flag %q", ErrInvalidValue, name)
		}
		f.Bits |= v
	}
	return f, nil
}
