package config

import (
	"fmt"
	"strconv"
	"strings"
)

// sizeUnits maps a size suffix to its byte multiplier. Decimal (KB, MB,
// GB) and binary (KiB, MiB, GiB) forms are accepted; anything past
// gigabytes is outside what an upload cap for this service could mean.
var sizeUnits = map[string]int64{
	"":    1,
	"b":   1,
	"kb":  1000,
	"mb":  1000 * 1000,
	"gb":  1000 * 1000 * 1000,
	"kib": 1024,
	"mib": 1024 * 1024,
	"gib": 1024 * 1024 * 1024,
}

// parseSize converts a human-readable size ("16 MiB", "2MB", "4096") to
// bytes. A bare number is raw bytes; empty string and "0" mean zero.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	// Split at the end of the numeric prefix; the rest is the unit.
	end := strings.LastIndexFunc(s, func(r rune) bool {
		return (r >= '0' && r <= '9') || r == '.'
	})

	num := s[:end+1]
	unit := strings.ToLower(strings.TrimSpace(s[end+1:]))

	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q in %q", unit, s)
	}

	if num == "" {
		return 0, fmt.Errorf("size %q has no number", s)
	}

	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if value < 0 {
		return 0, fmt.Errorf("size %q must be non-negative", s)
	}

	return int64(value * float64(mult)), nil
}
