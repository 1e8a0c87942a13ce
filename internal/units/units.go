// Package units converts raw byte counts into display units.
package units

import (
	"fmt"
	"strings"
)

// Unit is a display unit expressed as its size in bytes.
// Human is a sentinel that selects the best fitting unit per amount.
type Unit uint64

const (
	// Human picks the largest unit that keeps the value >= 1
	Human Unit = 0
	// Bytes displays raw bytes
	Bytes Unit = 1
	// Kilobytes is 1024 bytes
	Kilobytes Unit = 1 << 10
	// Megabytes is 1024 kilobytes
	Megabytes Unit = 1 << 20
	// Gigabytes is 1024 megabytes
	Gigabytes Unit = 1 << 30
)

// Size returns the number of bytes in one unit. Human has no fixed size and returns 0.
func (u Unit) Size() uint64 {
	return uint64(u)
}

// String returns the label of the unit
func (u Unit) String() string {
	switch u {
	case Human:
		return "auto"
	case Bytes:
		return "B"
	case Kilobytes:
		return "KB"
	case Megabytes:
		return "MB"
	case Gigabytes:
		return "GB"
	default:
		return "??"
	}
}

// Find returns the largest unit whose size does not exceed bytes, defaulting to Bytes.
func Find(bytes float64) Unit {
	switch {
	case bytes >= float64(Gigabytes):
		return Gigabytes
	case bytes >= float64(Megabytes):
		return Megabytes
	case bytes >= float64(Kilobytes):
		return Kilobytes
	default:
		return Bytes
	}
}

// Resolve returns the concrete unit used to display bytes in target.
func Resolve(bytes float64, target Unit) Unit {
	if target == Human {
		return Find(bytes)
	}
	return target
}

// Scale converts bytes into target, returning the value and the unit label.
// A specific target divides unconditionally, whatever the magnitude.
func Scale(bytes float64, target Unit) (float64, string) {
	u := Resolve(bytes, target)
	return bytes / float64(u.Size()), u.String()
}

// Unscale is the inverse of Scale: it turns a displayed value and label back into bytes.
func Unscale(value float64, label string) (float64, error) {
	u, err := Parse(label)
	if err != nil {
		return 0, err
	}
	if u == Human {
		return 0, fmt.Errorf("label %q does not name a concrete unit", label)
	}
	return value * float64(u.Size()), nil
}

// Format renders bytes in target with two decimals, e.g. "1.50 MB"
func Format(bytes float64, target Unit) string {
	v, label := Scale(bytes, target)
	return fmt.Sprintf("%.2f %s", v, label)
}

// Parse converts a unit name into a Unit. It accepts labels (B, KB, MB, GB),
// long names and single letters, case-insensitively. "auto" and "human" select Human.
func Parse(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "human", "h":
		return Human, nil
	case "b", "byte", "bytes":
		return Bytes, nil
	case "k", "kb", "kib", "kilobytes":
		return Kilobytes, nil
	case "m", "mb", "mib", "megabytes":
		return Megabytes, nil
	case "g", "gb", "gib", "gigabytes":
		return Gigabytes, nil
	default:
		return Human, fmt.Errorf("unknown display unit %q (expected auto, bytes, KB, MB or GB)", s)
	}
}
