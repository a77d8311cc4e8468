package h

import (
	"strings"

	"github.com/google/uuid"
)

// NewId returns a time-ordered id that is unique across instances, with an
// optional prefix. It is a UUIDv7 in 32 lowercase hex characters, so ids
// from one process sort in creation order.
func NewId(prefix string) string {
	value := strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
	if len(prefix) == 0 {
		return value
	}
	lastChar := prefix[len(prefix)-1]
	if lastChar == '_' || lastChar == '-' {
		return prefix + value
	}
	return prefix + "_" + value
}
