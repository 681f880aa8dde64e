package update

import (
	"strconv"
	"strings"
)

// maxVersionComponents is the component limit of the dotted version policy.
const maxVersionComponents = 4

// Version is a dotted numeric version with up to 4 components, like "2.1.0.0".
// The zero value renders and compares as "0.0".
type Version struct {
	parts []int
}

// NewVersion creates a Version from explicit components. More than 4
// components are truncated.
func NewVersion(parts ...int) Version {
	if len(parts) > maxVersionComponents {
		parts = parts[:maxVersionComponents]
	}
	cloned := make([]int, len(parts))
	copy(cloned, parts)
	return Version{parts: cloned}
}

// ParseVersion parses a dotted numeric version string. Any input that does
// not parse, including the empty string, yields the zero version "0.0".
func ParseVersion(s string) Version {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}
	}
	fields := strings.Split(s, ".")
	if len(fields) > maxVersionComponents {
		return Version{}
	}
	parts := make([]int, 0, len(fields))
	for _, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 {
			return Version{}
		}
		parts = append(parts, n)
	}
	return Version{parts: parts}
}

// String returns the canonical parsed form, used as install folder names.
func (v Version) String() string {
	if len(v.parts) == 0 {
		return "0.0"
	}
	fields := make([]string, len(v.parts))
	for i, p := range v.parts {
		fields[i] = strconv.Itoa(p)
	}
	return strings.Join(fields, ".")
}

// component returns the i-th component, or -1 when the component is absent,
// so that "2.1" sorts below "2.1.0".
func (v Version) component(i int) int {
	if len(v.parts) == 0 {
		// zero value means "0.0"
		if i < 2 {
			return 0
		}
		return -1
	}
	if i < len(v.parts) {
		return v.parts[i]
	}
	return -1
}

// Compare returns -1, 0 or +1 ordering v against o component-wise.
func (v Version) Compare(o Version) int {
	for i := 0; i < maxVersionComponents; i++ {
		a, b := v.component(i), o.component(i)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

// After reports whether v is strictly newer than o.
func (v Version) After(o Version) bool {
	return v.Compare(o) > 0
}
