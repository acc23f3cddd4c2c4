// Package config implements the hierarchical configuration format of job
// graph files. A config is a forest of named nodes; every node stores
// ordered key/value entries and ordered child nodes. Values are kept as
// strings and marshalled through per-type codecs on access.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/regolith-sim/regolith/internal/paths"
)

var (
	// ErrNotFound is reported when a node or entry does not exist.
	ErrNotFound = errors.New("config: not found")
	// ErrParse is reported for malformed input, with the offending line.
	ErrParse = errors.New("config: parse error")
	// ErrType is reported when an entry cannot be decoded as the requested
	// type.
	ErrType = errors.New("config: invalid type")
)

// Node is a single node of the config hierarchy.
type Node struct {
	entryKeys []string
	entries   map[string]string

	childKeys []string
	children  map[string]*Node
}

// NewNode creates an empty node.
func NewNode() *Node {
	return &Node{
		entries:  make(map[string]string),
		children: make(map[string]*Node),
	}
}

// setRaw stores a serialised entry, keeping insertion order for new keys.
func (n *Node) setRaw(key, value string) {
	if _, ok := n.entries[key]; !ok {
		n.entryKeys = append(n.entryKeys, key)
	}
	n.entries[key] = value
}

// getRaw returns the serialised entry value.
func (n *Node) getRaw(key string) (string, bool) {
	v, ok := n.entries[key]
	return v, ok
}

// Size returns the number of entries in the node.
func (n *Node) Size() int { return len(n.entries) }

// SetEntry stores an already-serialised value under the key, for callers
// that bring their own codec.
func (n *Node) SetEntry(key, value string) { n.setRaw(key, value) }

// EnumerateEntries visits the node's own entries in insertion order.
func (n *Node) EnumerateEntries(fn func(key, value string)) {
	for _, k := range n.entryKeys {
		fn(k, n.entries[k])
	}
}

// AddChild adds (or returns an existing) child node with the given name.
func (n *Node) AddChild(name string) *Node {
	if c, ok := n.children[name]; ok {
		return c
	}
	c := NewNode()
	n.childKeys = append(n.childKeys, name)
	n.children[name] = c
	return c
}

// GetChild returns the named child node.
func (n *Node) GetChild(name string) (*Node, error) {
	c, ok := n.children[name]
	if !ok {
		return nil, fmt.Errorf("%w: node %q", ErrNotFound, name)
	}
	return c, nil
}

// EnumerateChildren walks all descendants depth-first, invoking fn with each
// node's local name.
func (n *Node) EnumerateChildren(fn func(name string, node *Node)) {
	for _, name := range n.childKeys {
		c := n.children[name]
		fn(name, c)
		c.EnumerateChildren(fn)
	}
}

// Config is the root of the hierarchy, holding named top-level nodes.
type Config struct {
	nodeKeys []string
	nodes    map[string]*Node
}

func New() *Config {
	return &Config{nodes: make(map[string]*Node)}
}

// AddNode adds (or returns an existing) top-level node.
func (c *Config) AddNode(name string) *Node {
	if n, ok := c.nodes[name]; ok {
		return n
	}
	n := NewNode()
	c.nodeKeys = append(c.nodeKeys, name)
	c.nodes[name] = n
	return n
}

// GetNode returns a top-level node.
func (c *Config) GetNode(name string) (*Node, error) {
	n, ok := c.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: node %q", ErrNotFound, name)
	}
	return n, nil
}

// TryGetNode returns a top-level node or nil.
func (c *Config) TryGetNode(name string) *Node {
	return c.nodes[name]
}

// Enumerate calls fn for every top-level node in insertion order.
func (c *Config) Enumerate(fn func(name string, node *Node)) {
	for _, name := range c.nodeKeys {
		fn(name, c.nodes[name])
	}
}

// Load reads and parses the file at path.
func (c *Config) Load(path paths.Path) error {
	data, err := os.ReadFile(path.Native())
	if err != nil {
		return fmt.Errorf("config: load %q: %w", path.Native(), err)
	}
	return c.Read(string(data))
}

// Save serialises the config into the file at path.
func (c *Config) Save(path paths.Path) error {
	if err := os.WriteFile(path.Native(), []byte(c.Write()), 0o644); err != nil {
		return fmt.Errorf("config: save %q: %w", path.Native(), err)
	}
	return nil
}
