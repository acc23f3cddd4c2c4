package settings

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/paths"
)

// Errors reported by settings access and serialisation.
var (
	ErrTypeMismatch = errors.New("settings: type mismatch")
	ErrMissingKey   = errors.New("settings: missing key")
	ErrUnknownKey   = errors.New("settings: unknown key")
	ErrInvalidValue = errors.New("settings: invalid value")
)

// Value is the closed set of types a settings entry can hold.
type Value interface {
	bool | int | float64 | string |
		geometry.Interval | geometry.Vec | geometry.SymTensor | geometry.TracelessTensor |
		EnumValue | FlagSet | paths.Path
}

// Entry describes one key of a settings domain: its dotted serialised name,
// canonical default and documentation.
type Entry[K ~int] struct {
	Key     K
	Name    string
	Default any
	Desc    string
}

// Table is the immutable defaults table of a settings domain. Both process
// tables (run and body) are built once during static initialisation and
// never mutated afterwards, so concurrent reads are safe.
type Table[K ~int] struct {
	byKey  map[K]Entry[K]
	byName map[string]Entry[K]
	order  []K
}

func newTable[K ~int](entries []Entry[K]) *Table[K] {
	t := &Table[K]{
		byKey:  make(map[K]Entry[K], len(entries)),
		byName: make(map[string]Entry[K], len(entries)),
	}
	for _, e := range entries {
		if _, dup := t.byKey[e.Key]; dup {
			panic(fmt.Sprintf("settings: duplicate key %d", int(e.Key)))
		}
		if _, dup := t.byName[e.Name]; dup {
			panic(fmt.Sprintf("settings: duplicate entry name %q", e.Name))
		}
		t.byKey[e.Key] = e
		t.byName[e.Name] = e
		t.order = append(t.order, e.Key)
	}
	sort.Slice(t.order, func(i, j int) bool { return t.order[i] < t.order[j] })
	return t
}

// EntryName returns the dotted name of a key.
func (t *Table[K]) EntryName(key K) (string, bool) {
	e, ok := t.byKey[key]
	return e.Name, ok
}

// Entry returns the full entry of a key, including its default and
// documentation.
func (t *Table[K]) Entry(key K) (Entry[K], bool) {
	e, ok := t.byKey[key]
	return e, ok
}

// Keys returns all keys in ascending numeric order.
func (t *Table[K]) Keys() []K { return t.order }

// Settings holds the explicitly set values of one domain on top of the
// defaults table. The zero value is not usable; construct with New.
type Settings[K ~int] struct {
	mu     sync.RWMutex
	table  *Table[K]
	values map[K]any
}

// New creates an empty settings object over the given defaults table.
// Every Get on it returns the default.
func New[K ~int](table *Table[K]) *Settings[K] {
	return &Settings[K]{table: table, values: make(map[K]any)}
}

// NewRun creates run settings with all defaults.
func NewRun() *Settings[RunID] { return New(runTable) }

// NewBody creates body settings with all defaults.
func NewBody() *Settings[BodyID] { return New(bodyTable) }

// Set stores a value under the key, replacing any previous value. The value
// type is not checked here; a later typed Get reports the mismatch.
func (s *Settings[K]) Set(key K, value any) *Settings[K] {
	s.mu.Lock()
	s.values[key] = normalize(value)
	s.mu.Unlock()
	return s
}

// normalize widens the machine integer and float spellings so that values
// set from literals compare equal after a serialisation round trip.
func normalize(v any) any {
	switch x := v.(type) {
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// Unset removes an explicit value, reverting the key to its default.
func (s *Settings[K]) Unset(key K) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

// raw returns the stored or default value of the key.
func (s *Settings[K]) raw(key K) (any, bool) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	if ok {
		return v, true
	}
	e, ok := s.table.byKey[key]
	if !ok {
		return nil, false
	}
	return e.Default, true
}

// Get returns the typed value of the key. It fails with ErrMissingKey if the
// key has neither an explicit value nor a default, and with ErrTypeMismatch
// if the stored value has a different type than requested.
func Get[T Value, K ~int](s *Settings[K], key K) (T, error) {
	var zero T
	v, ok := s.raw(key)
	if !ok {
		return zero, fmt.Errorf("%w: key %d", ErrMissingKey, int(key))
	}
	typed, ok := v.(T)
	if !ok {
		name, _ := s.table.EntryName(key)
		return zero, fmt.Errorf("%w: entry %q holds %T", ErrTypeMismatch, name, v)
	}
	return typed, nil
}

// MustGet is Get for keys that are known to exist with the right type;
// it panics otherwise. Intended for reads of table-backed keys whose type
// is fixed by the defaults table.
func MustGet[T Value, K ~int](s *Settings[K], key K) T {
	v, err := Get[T](s, key)
	if err != nil {
		panic(err)
	}
	return v
}

// GetFlags returns the flag union stored under the key.
func GetFlags[K ~int](s *Settings[K], key K) (FlagSet, error) {
	return Get[FlagSet](s, key)
}

// GetEnum returns the enum value stored under the key, cast to E.
func GetEnum[E ~int, K ~int](s *Settings[K], key K) (E, error) {
	v, err := Get[EnumValue](s, key)
	if err != nil {
		return 0, err
	}
	return E(v.Value), nil
}

// Has reports whether the key exists (set or default) with type T.
func Has[T Value, K ~int](s *Settings[K], key K) bool {
	v, ok := s.raw(key)
	if !ok {
		return false
	}
	_, ok = v.(T)
	return ok
}

// IsSet reports whether the key was explicitly set on this object.
func (s *Settings[K]) IsSet(key K) bool {
	s.mu.RLock()
	_, ok := s.values[key]
	s.mu.RUnlock()
	return ok
}

// AddEntries overwrites local values with every value explicitly set in
// other, leaving the remaining keys untouched.
func (s *Settings[K]) AddEntries(other *Settings[K]) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range other.values {
		s.values[k] = v
	}
}

// Clone returns a deep copy of the explicitly set entries.
func (s *Settings[K]) Clone() *Settings[K] {
	c := New(s.table)
	c.AddEntries(s)
	return c
}

// Each calls fn for every key of the table in ascending numeric order with
// its effective (set or default) value. The deterministic order keeps saved
// files stable.
func (s *Settings[K]) Each(fn func(key K, name string, value any)) {
	for _, k := range s.table.order {
		e := s.table.byKey[k]
		v, _ := s.raw(k)
		fn(k, e.Name, v)
	}
}

// EachSet is Each restricted to explicitly set keys.
func (s *Settings[K]) EachSet(fn func(key K, name string, value any)) {
	s.mu.RLock()
	keys := make([]K, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		e := s.table.byKey[k]
		v, _ := s.raw(k)
		fn(k, e.Name, v)
	}
}
