// Package paths implements a platform-neutral path value type. Separators
// are normalised to forward slashes on construction, so syntactically equal
// paths compare equal regardless of the separator style they were written
// with.
package paths

import "strings"

const separator = '/'

// ExtensionMode selects how Extension interprets multi-dot file names.
type ExtensionMode int

const (
	// LastExtension returns only the final suffix ("gz" for archive.tar.gz).
	LastExtension ExtensionMode = iota
	// AllExtensions returns everything after the first dot ("tar.gz").
	AllExtensions
)

// Path is an ordered sequence of name components. The zero value is the
// empty path.
type Path struct {
	p string
}

// New creates a path from a native string, normalising backslashes and
// collapsing repeated separators.
func New(s string) Path {
	var b strings.Builder
	b.Grow(len(s))
	prevSep := false
	for _, r := range s {
		if r == '\\' || r == '/' {
			if prevSep {
				continue
			}
			prevSep = true
			b.WriteRune(separator)
			continue
		}
		prevSep = false
		b.WriteRune(r)
	}
	return Path{b.String()}
}

// Native returns the normalised string form. New(p.Native()) == p.
func (p Path) Native() string { return p.p }

func (p Path) Empty() bool { return p.p == "" }

func (p Path) IsAbsolute() bool {
	return p.p != "" && p.p[0] == separator
}

func (p Path) IsRelative() bool {
	return p.p != "" && p.p[0] != separator
}

func (p Path) IsRoot() bool {
	return p.p == "/"
}

// IsHidden reports whether the final component begins with a dot.
func (p Path) IsHidden() bool {
	name := p.FileName()
	return !name.Empty() && name.p[0] == '.'
}

// ParentPath returns the path up to and including the separator before the
// final component. The parent of the root and of a bare file name is empty.
func (p Path) ParentPath() Path {
	n := strings.LastIndexByte(p.p, separator)
	if n < 0 {
		return Path{}
	}
	if n == len(p.p)-1 {
		// trailing separator, drop it and retry
		return Path{p.p[:n]}.ParentPath()
	}
	return Path{p.p[:n+1]}
}

// FileName returns the final component, without any trailing separator.
func (p Path) FileName() Path {
	n := strings.LastIndexByte(p.p, separator)
	if n < 0 {
		return p
	}
	if n == len(p.p)-1 {
		return Path{p.p[:n]}.FileName()
	}
	return Path{p.p[n+1:]}
}

// Extension returns the file name suffix. A leading dot (hidden file) does
// not start an extension.
func (p Path) Extension(mode ExtensionMode) Path {
	name := p.FileName().p
	if len(name) <= 1 {
		return Path{}
	}
	var n int
	if mode == LastExtension {
		n = strings.LastIndexByte(name, '.')
	} else {
		n = strings.IndexByte(name[1:], '.')
		if n >= 0 {
			n++
		}
	}
	if n <= 0 {
		return Path{}
	}
	return Path{name[n+1:]}
}

func (p Path) HasExtension() bool {
	return !p.Extension(LastExtension).Empty()
}

// ReplaceExtension replaces the current extension (last mode) with ext, or
// appends it when the file has none. Empty ext removes the extension.
func (p Path) ReplaceExtension(ext string) Path {
	name := p.FileName().p
	if name == "" || name == "." || name == ".." {
		return p
	}
	n := strings.LastIndexByte(name, '.')
	if n <= 0 {
		if ext == "" {
			return p
		}
		return Path{p.p + "." + ext}
	}
	idx := len(p.p) - len(name) + n
	if ext == "" {
		return Path{p.p[:idx]}
	}
	return Path{p.p[:idx+1] + ext}
}

// RemoveExtension drops the extension, if any.
func (p Path) RemoveExtension() Path {
	return p.ReplaceExtension("")
}

// Join appends other to p with a single separator between them.
func (p Path) Join(other Path) Path {
	if p.p == "" {
		return other
	}
	if other.p == "" {
		return p
	}
	return New(p.p + "/" + other.p)
}

// RemoveSpecialDirs collapses "." and ".." components. A ".." consumes the
// preceding component; the result keeps the trailing separator of the parent
// (so "/usr/lib/.." collapses to "/usr/" and "/usr/lib/../.." to "/").
func (p Path) RemoveSpecialDirs() Path {
	out := p
	for {
		n := out.findFolder("..")
		if n < 0 {
			break
		}
		head := 0
		if n > 0 {
			head = n - 1
		}
		parent := Path{out.p[:head]}.ParentPath()
		tail := Path{}
		if m := n + 3; m < len(out.p) {
			tail = Path{out.p[m:]}
		}
		out = parent.Join(tail)
	}
	for {
		n := out.findFolder(".")
		if n < 0 {
			break
		}
		parent := Path{out.p[:n]}
		tail := Path{}
		if m := n + 2; m < len(out.p) {
			tail = Path{out.p[m:]}
		}
		out = parent.Join(tail)
	}
	return out
}

// findFolder locates a whole-component occurrence of folder, returning the
// byte offset of its first character, or -1.
func (p Path) findFolder(folder string) int {
	if p.p == folder || strings.HasPrefix(p.p, folder+"/") {
		return 0
	}
	if n := strings.Index(p.p, "/"+folder+"/"); n >= 0 {
		return n + 1
	}
	if strings.HasSuffix(p.p, "/"+folder) {
		return len(p.p) - len(folder)
	}
	return -1
}

func (p Path) String() string { return p.p }
