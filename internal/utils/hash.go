package utils

import (
	"hash/fnv"
	"strconv"
	"strings"
)

func HashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// DedupeKey joins parts with ':' and appends a short hash of the last part,
// which is usually free text.
func DedupeKey(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}
	last := len(parts) - 1
	head := append([]string(nil), parts[:last]...)
	head = append(head, strconv.FormatUint(HashStringToUint64(strings.ToLower(strings.TrimSpace(parts[last]))), 16))
	return strings.Join(head, ":")
}
