// Package structured holds the split tree of structured (I,J,K) zones and
// the zone-to-zone connectivity edges that must stay correct as zones are
// bisected for parallel decomposition.
package structured

import (
	"fmt"
	"strings"
)

// IJK is an index triple, one entry per ordinal axis
type IJK [3]int

func (v IJK) String() string { return fmt.Sprintf("(%d,%d,%d)", v[0], v[1], v[2]) }

func (v IJK) Add(o IJK) IJK { return IJK{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }

func (v IJK) Sub(o IJK) IJK { return IJK{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

// Ordinal is a bit set of grid axes
type Ordinal uint8

const (
	OrdinalI Ordinal = 1 << iota
	OrdinalJ
	OrdinalK
)

// AxisOrdinal returns the bit for axis 0, 1 or 2
func AxisOrdinal(axis int) Ordinal { return Ordinal(1) << uint(axis) }

// Has reports whether axis (0, 1 or 2) is in the set
func (o Ordinal) Has(axis int) bool { return o&AxisOrdinal(axis) != 0 }

func (o Ordinal) String() string {
	var sb strings.Builder
	for axis, name := range axisNames {
		if o.Has(axis) {
			sb.WriteByte(name)
		}
	}
	return sb.String()
}

var axisNames = [3]byte{'i', 'j', 'k'}

// AxisName returns "i", "j" or "k"
func AxisName(axis int) string {
	if axis < 0 || axis > 2 {
		return "-"
	}
	return string(axisNames[axis])
}

// ParseOrdinals converts a line-decomposition directive such as "k" or "IJ"
// into an axis set. An empty directive is the empty set.
func ParseOrdinals(s string) (Ordinal, error) {
	var o Ordinal
	for _, c := range strings.ToLower(strings.TrimSpace(s)) {
		switch c {
		case 'i':
			o |= OrdinalI
		case 'j':
			o |= OrdinalJ
		case 'k':
			o |= OrdinalK
		case ',', ' ':
		default:
			return 0, fmt.Errorf("%w: line decomposition %q names unknown axis %q", ErrConfiguration, s, c)
		}
	}
	return o, nil
}
