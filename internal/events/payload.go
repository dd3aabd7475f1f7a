package events

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatOrderID encodes a new_order payload.
func FormatOrderID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseOrderID decodes a new_order payload.
func ParseOrderID(payload string) (int64, error) {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse order id %q: %w", payload, err)
	}
	return id, nil
}

// FormatIDs encodes a new_bom_entry payload.
func FormatIDs(ids []int64) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

// ParseIDs decodes a new_bom_entry payload. Tokens that are not decimal ids
// are skipped, so the result may be shorter than the token count or empty.
func ParseIDs(payload string) []int64 {
	var ids []int64
	for _, tok := range strings.Split(payload, ",") {
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
