// Package bytesize parses and formats human-readable byte quantities such as
// "1KiB", "64k" or "4MB" for use in configuration files.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ByteSize is a size in bytes.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
)

var units = map[string]ByteSize{
	"":    B,
	"b":   B,
	"k":   KB,
	"kb":  KB,
	"m":   MB,
	"mb":  MB,
	"g":   GB,
	"gb":  GB,
	"ki":  KiB,
	"kib": KiB,
	"mi":  MiB,
	"mib": MiB,
	"gi":  GiB,
	"gib": GiB,
}

// Parse parses strings like "1024", "1KiB", "1.5Mi" or "64 kb".
// Binary suffixes (Ki, Mi, Gi) multiply by 1024, decimal ones by 1000.
func Parse(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := strings.IndexFunc(trimmed, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	numPart, unitPart := trimmed, ""
	if split >= 0 {
		numPart, unitPart = trimmed[:split], strings.TrimSpace(trimmed[split:])
	}
	if numPart == "" {
		return 0, fmt.Errorf("invalid byte size %q: missing number", s)
	}

	mult, ok := units[strings.ToLower(unitPart)]
	if !ok {
		return 0, fmt.Errorf("invalid byte size %q: unknown unit %q", s, unitPart)
	}

	if strings.Contains(numPart, ".") {
		f, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
		}
		return ByteSize(f * float64(mult)), nil
	}

	n, err := strconv.ParseUint(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n) * mult, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalText implements encoding.TextMarshaler so sizes round-trip through
// YAML and JSON config output.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// String formats the size with the largest exact binary unit, falling back
// to plain bytes.
func (b ByteSize) String() string {
	switch {
	case b == 0:
		return "0"
	case b%GiB == 0:
		return fmt.Sprintf("%dGiB", b/GiB)
	case b%MiB == 0:
		return fmt.Sprintf("%dMiB", b/MiB)
	case b%KiB == 0:
		return fmt.Sprintf("%dKiB", b/KiB)
	default:
		return strconv.FormatUint(uint64(b), 10)
	}
}

// Int returns the size as an int, saturating at the platform maximum.
func (b ByteSize) Int() int {
	const maxInt = int(^uint(0) >> 1)
	if uint64(b) > uint64(maxInt) {
		return maxInt
	}
	return int(b)
}
