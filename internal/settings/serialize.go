package settings

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/paths"
)

// FormatValue renders a settings value in its serialised text form.
func FormatValue(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	case string:
		return x
	case geometry.Interval:
		return x.String()
	case geometry.Vec:
		return fmt.Sprintf("%s %s %s", formatFloat(x[0]), formatFloat(x[1]), formatFloat(x[2]))
	case geometry.SymTensor:
		return fmt.Sprintf("%s %s %s %s %s %s",
			formatFloat(x.Diag[0]), formatFloat(x.Diag[1]), formatFloat(x.Diag[2]),
			formatFloat(x.Off[0]), formatFloat(x.Off[1]), formatFloat(x.Off[2]))
	case geometry.TracelessTensor:
		return fmt.Sprintf("%s %s %s %s %s",
			formatFloat(x.XX), formatFloat(x.YY), formatFloat(x.XY), formatFloat(x.XZ), formatFloat(x.YZ))
	case EnumValue:
		return x.String()
	case FlagSet:
		return x.String()
	case paths.Path:
		return x.Native()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(x float64) string {
	switch {
	case math.IsInf(x, 1):
		return "infinity"
	case math.IsInf(x, -1):
		return "-infinity"
	default:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
}

// parseValue parses text into the same concrete type as the template value.
func parseValue(text string, template any) (any, error) {
	text = strings.TrimSpace(text)
	switch t := template.(type) {
	case bool:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a bool", ErrInvalidValue, text)
		}
		return v, nil
	case int:
		v, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, text)
		}
		return v, nil
	case float64:
		v, err := geometry.ParseBound(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, text)
		}
		return v, nil
	case string:
		return text, nil
	case geometry.Interval:
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: interval needs two bounds, got %q", ErrInvalidValue, text)
		}
		lo, err1 := geometry.ParseBound(fields[0])
		hi, err2 := geometry.ParseBound(fields[1])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: malformed interval %q", ErrInvalidValue, text)
		}
		return geometry.Interval{Lo: lo, Hi: hi}, nil
	case geometry.Vec:
		fs, err := parseFloats(text, 3)
		if err != nil {
			return nil, err
		}
		return geometry.Vec{fs[0], fs[1], fs[2]}, nil
	case geometry.SymTensor:
		fs, err := parseFloats(text, 6)
		if err != nil {
			return nil, err
		}
		return geometry.SymTensor{
			Diag: geometry.Vec{fs[0], fs[1], fs[2]},
			Off:  geometry.Vec{fs[3], fs[4], fs[5]},
		}, nil
	case geometry.TracelessTensor:
		fs, err := parseFloats(text, 5)
		if err != nil {
			return nil, err
		}
		return geometry.TracelessTensor{XX: fs[0], YY: fs[1], XY: fs[2], XZ: fs[3], YZ: fs[4]}, nil
	case EnumValue:
		v, ok := EnumValueOf(t.ID, text)
		if !ok {
			return nil, fmt.Errorf("%w: unknown enum value %q", ErrInvalidValue, text)
		}
		return EnumValue{ID: t.ID, Value: v}, nil
	case FlagSet:
		return ParseFlags(t.ID, text)
	case paths.Path:
		return paths.New(text), nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, template)
	}
}

func parseFloats(text string, n int) ([]float64, error) {
	fields := strings.Fields(text)
	if len(fields) != n {
		return nil, fmt.Errorf("%w: expected %d components, got %q", ErrInvalidValue, n, text)
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := geometry.ParseBound(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, f)
		}
		out[i] = v
	}
	return out, nil
}

// Serialize writes one "name = value" line per key, in ascending numeric key
// order so that saved files are stable.
func (s *Settings[K]) Serialize() string {
	var b strings.Builder
	s.Each(func(_ K, name string, value any) {
		fmt.Fprintf(&b, "%s = %s\n", name, FormatValue(value))
	})
	return b.String()
}

// SaveFile persists all entries (set and default) to path.
func (s *Settings[K]) SaveFile(path paths.Path) error {
	if err := os.WriteFile(path.Native(), []byte(s.Serialize()), 0o644); err != nil {
		return fmt.Errorf("settings: save %q: %w", path.Native(), err)
	}
	return nil
}

// Deserialize parses "name = value" lines into the settings. Unknown keys
// fail with ErrUnknownKey; malformed values with ErrInvalidValue.
func (s *Settings[K]) Deserialize(text string) error {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			return fmt.Errorf("%w: missing '=' in line %q", ErrInvalidValue, line)
		}
		name := strings.TrimSpace(line[:eq])
		entry, ok := s.table.byName[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownKey, name)
		}
		value, err := parseValue(line[eq+1:], entry.Default)
		if err != nil {
			return fmt.Errorf("entry %q: %w", name, err)
		}
		s.Set(entry.Key, value)
	}
	return sc.Err()
}

// LoadFile reads a settings file previously written by SaveFile.
func (s *Settings[K]) LoadFile(path paths.Path) error {
	data, err := os.ReadFile(path.Native())
	if err != nil {
		return fmt.Errorf("settings: load %q: %w", path.Native(), err)
	}
	return s.Deserialize(string(data))
}
