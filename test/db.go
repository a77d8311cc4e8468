package test

import (
	"fmt"
	"strings"
	"testing"
)

// DatabaseURL returns a shared-cache in-memory sqlite url private to t.
func DatabaseURL(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", name)
}
