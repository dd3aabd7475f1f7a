package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMoney converts a money string into minor units by dropping every
// non-digit and parsing what is left, so "$123.45" and "123.45€" both give
// 12345. The caller must validate the format first: "1.5" gives 15.
func ParseMoney(s string) (int64, error) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, fmt.Errorf("parse money %q: no digits", s)
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	return v, nil
}
