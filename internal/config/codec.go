package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/paths"
)

// Quoted wraps a string in double quotes. Embedded quotes are forbidden by
// the format.
func Quoted(s string) string {
	return `"` + s + `"`
}

// Unquoted removes one leading and one trailing quote, if present.
func Unquoted(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Typed entry accessors. Each Set marshals the value to its text form; each
// Get unmarshals and fails with ErrNotFound for absent entries or ErrType
// for undecodable ones.

func (n *Node) SetFloat(name string, v float64) { n.setRaw(name, strconv.FormatFloat(v, 'g', -1, 64)) }
func (n *Node) SetInt(name string, v int)       { n.setRaw(name, strconv.Itoa(v)) }
func (n *Node) SetBool(name string, v bool)     { n.setRaw(name, strconv.FormatBool(v)) }
func (n *Node) SetString(name, v string)        { n.setRaw(name, Quoted(v)) }

func (n *Node) SetVec(name string, v geometry.Vec) {
	n.setRaw(name, fmt.Sprintf("%s %s %s", fl(v[0]), fl(v[1]), fl(v[2])))
}

func (n *Node) SetInterval(name string, v geometry.Interval) {
	n.setRaw(name, v.String())
}

func (n *Node) SetPath(name string, v paths.Path) {
	n.setRaw(name, Quoted(v.Native()))
}

func fl(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }

func (n *Node) GetFloat(name string) (float64, error) {
	raw, err := n.entry(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: entry %q is not a float: %q", ErrType, name, raw)
	}
	return v, nil
}

func (n *Node) GetInt(name string) (int, error) {
	raw, err := n.entry(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: entry %q is not an integer: %q", ErrType, name, raw)
	}
	return v, nil
}

func (n *Node) GetBool(name string) (bool, error) {
	raw, err := n.entry(name)
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("%w: entry %q is not a bool: %q", ErrType, name, raw)
	}
	return v, nil
}

func (n *Node) GetString(name string) (string, error) {
	raw, err := n.entry(name)
	if err != nil {
		return "", err
	}
	return Unquoted(raw), nil
}

func (n *Node) GetVec(name string) (geometry.Vec, error) {
	raw, err := n.entry(name)
	if err != nil {
		return geometry.Vec{}, err
	}
	fields := strings.Fields(raw)
	if len(fields) != 3 {
		return geometry.Vec{}, fmt.Errorf("%w: entry %q is not a vector: %q", ErrType, name, raw)
	}
	var v geometry.Vec
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return geometry.Vec{}, fmt.Errorf("%w: entry %q is not a vector: %q", ErrType, name, raw)
		}
		v[i] = x
	}
	return v, nil
}

func (n *Node) GetInterval(name string) (geometry.Interval, error) {
	raw, err := n.entry(name)
	if err != nil {
		return geometry.Interval{}, err
	}
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return geometry.Interval{}, fmt.Errorf("%w: entry %q is not an interval: %q", ErrType, name, raw)
	}
	lo, err1 := geometry.ParseBound(fields[0])
	hi, err2 := geometry.ParseBound(fields[1])
	if err1 != nil || err2 != nil {
		return geometry.Interval{}, fmt.Errorf("%w: entry %q is not an interval: %q", ErrType, name, raw)
	}
	return geometry.Interval{Lo: lo, Hi: hi}, nil
}

func (n *Node) GetPath(name string) (paths.Path, error) {
	raw, err := n.entry(name)
	if err != nil {
		return paths.Path{}, err
	}
	return paths.New(Unquoted(raw)), nil
}

func (n *Node) entry(name string) (string, error) {
	raw, ok := n.getRaw(name)
	if !ok {
		return "", fmt.Errorf("%w: entry %q", ErrNotFound, name)
	}
	return raw, nil
}
