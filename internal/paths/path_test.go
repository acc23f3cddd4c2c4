package paths

import "testing"

func TestNormalisation(t *testing.T) {
	a := New("/usr/lib")
	b := New(`\usr\lib`)
	c := New("/usr////lib")
	if a != b || a != c {
		t.Errorf("equal paths differ: %q %q %q", a, b, c)
	}
}

func TestNativeIdempotent(t *testing.T) {
	for _, s := range []string{"", "/", "a/b", `a\b\c`, "/ünïcødé/fïlé.txt"} {
		p := New(s)
		if New(p.Native()) != p {
			t.Errorf("Native not idempotent for %q", s)
		}
	}
}

func TestEmptyPath(t *testing.T) {
	var p Path
	if !p.Empty() {
		t.Error("zero path should be empty")
	}
	if !p.ParentPath().Empty() || !p.FileName().Empty() || !p.Extension(LastExtension).Empty() {
		t.Error("operations on the empty path should return empty")
	}
}

func TestParentPath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/", ""},
		{"/usr", "/"},
		{"/usr/lib", "/usr/"},
		{"/usr/lib/", "/usr/"},
		{"file.txt", ""},
	}
	for _, c := range cases {
		if got := New(c.in).ParentPath().Native(); got != c.want {
			t.Errorf("ParentPath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFileName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/usr/lib", "lib"},
		{"/usr/lib/", "lib"},
		{"file.txt", "file.txt"},
		{"/", ""},
	}
	for _, c := range cases {
		if got := New(c.in).FileName().Native(); got != c.want {
			t.Errorf("FileName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtension(t *testing.T) {
	if got := New("file.txt").Extension(LastExtension).Native(); got != "txt" {
		t.Errorf("last extension = %q", got)
	}
	if got := New("archive.tar.gz").Extension(LastExtension).Native(); got != "gz" {
		t.Errorf("last extension = %q", got)
	}
	if got := New("archive.tar.gz").Extension(AllExtensions).Native(); got != "tar.gz" {
		t.Errorf("all extensions = %q", got)
	}
	if !New(".gitignore").Extension(LastExtension).Empty() {
		t.Error("hidden file should have no extension")
	}
	if !New("noext").Extension(LastExtension).Empty() {
		t.Error("file without dot should have no extension")
	}
}

func TestIsHidden(t *testing.T) {
	if !New("/home/user/.config").IsHidden() {
		t.Error(".config should be hidden")
	}
	if New("/home/user/config").IsHidden() {
		t.Error("config should not be hidden")
	}
}

func TestReplaceExtension(t *testing.T) {
	cases := []struct{ in, ext, want string }{
		{"file.txt", "dat", "file.dat"},
		{"file", "dat", "file.dat"},
		{"file.tar.gz", "zip", "file.tar.zip"},
		{"file.txt", "", "file"},
		{"..", "dat", ".."},
	}
	for _, c := range cases {
		if got := New(c.in).ReplaceExtension(c.ext).Native(); got != c.want {
			t.Errorf("ReplaceExtension(%q, %q) = %q, want %q", c.in, c.ext, got, c.want)
		}
	}
}

func TestRemoveSpecialDirs(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/usr/lib/..", "/usr/"},
		{"/usr/lib/../..", "/"},
		{"/usr/./lib", "/usr/lib"},
		{"a/b/../c", "a/c"},
	}
	for _, c := range cases {
		if got := New(c.in).RemoveSpecialDirs().Native(); got != c.want {
			t.Errorf("RemoveSpecialDirs(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := New("/usr").Join(New("lib")).Native(); got != "/usr/lib" {
		t.Errorf("join = %q", got)
	}
	if got := New("").Join(New("lib")).Native(); got != "lib" {
		t.Errorf("join with empty lhs = %q", got)
	}
	if got := New("/usr/").Join(New("lib")).Native(); got != "/usr/lib" {
		t.Errorf("join with trailing separator = %q", got)
	}
}

func TestUnicodeRoundTrip(t *testing.T) {
	name := "dáta/výstup.txt"
	p := New(name)
	if p.Native() != name {
		t.Errorf("unicode path changed: %q -> %q", name, p.Native())
	}
}
