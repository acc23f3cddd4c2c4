package config

import (
	"fmt"
	"strings"
)

const indent = "  "

// Write serialises all nodes into the stable text form:
//
//	"name" [
//	  "key" = value
//	  "child" [
//	    ...
//	  ]
//	]
func (c *Config) Write() string {
	var b strings.Builder
	for _, name := range c.nodeKeys {
		c.nodes[name].write(&b, name, "")
	}
	return b.String()
}

func (n *Node) write(b *strings.Builder, name, padding string) {
	fmt.Fprintf(b, "%s%s [\n", padding, Quoted(name))
	inner := padding + indent
	for _, key := range n.entryKeys {
		fmt.Fprintf(b, "%s%s = %s\n", inner, Quoted(key), n.entries[key])
	}
	for _, key := range n.childKeys {
		n.children[key].write(b, key, inner)
	}
	fmt.Fprintf(b, "%s]\n", padding)
}

// Read parses the text form, replacing all previously added nodes. The
// reader tolerates trailing whitespace, empty lines and carriage returns;
// any other malformed line fails with ErrParse carrying the line content.
func (c *Config) Read(source string) error {
	c.nodeKeys = nil
	c.nodes = make(map[string]*Node)

	// stack of open nodes; nil sentinel for the root level
	stack := []*Node{nil}

	for _, rawLine := range strings.Split(source, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(rawLine, "\r"))
		if line == "" {
			continue
		}

		switch {
		case line == "]":
			if len(stack) == 1 {
				return fmt.Errorf("%w: unmatched ']'", ErrParse)
			}
			stack = stack[:len(stack)-1]

		case strings.HasSuffix(line, "["):
			name, ok := parseNodeHeader(line)
			if !ok {
				return fmt.Errorf("%w: malformed node header %q", ErrParse, line)
			}
			var child *Node
			if top := stack[len(stack)-1]; top == nil {
				child = c.AddNode(name)
			} else {
				child = top.AddChild(name)
			}
			stack = append(stack, child)

		case strings.Contains(line, "="):
			top := stack[len(stack)-1]
			if top == nil {
				return fmt.Errorf("%w: entry outside of node: %q", ErrParse, line)
			}
			key, value, ok := parseEntry(line)
			if !ok {
				return fmt.Errorf("%w: malformed entry %q", ErrParse, line)
			}
			top.setRaw(key, value)

		default:
			return fmt.Errorf("%w: invalid line format: %q", ErrParse, line)
		}
	}

	if len(stack) != 1 {
		return fmt.Errorf("%w: unterminated node", ErrParse)
	}
	return nil
}

// parseNodeHeader matches `"name" [`.
func parseNodeHeader(line string) (string, bool) {
	body := strings.TrimSpace(strings.TrimSuffix(line, "["))
	if len(body) < 2 || body[0] != '"' || body[len(body)-1] != '"' {
		return "", false
	}
	name := body[1 : len(body)-1]
	if strings.Contains(name, `"`) {
		return "", false
	}
	return name, true
}

// parseEntry matches `"key" = value`.
func parseEntry(line string) (key, value string, ok bool) {
	eq := strings.Index(line, "=")
	if eq < 0 {
		return "", "", false
	}
	rawKey := strings.TrimSpace(line[:eq])
	if len(rawKey) < 2 || rawKey[0] != '"' || rawKey[len(rawKey)-1] != '"' {
		return "", "", false
	}
	return rawKey[1 : len(rawKey)-1], strings.TrimSpace(line[eq+1:]), true
}
