package benchdb

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// NodeID derives the short, stable identifier used to address a node from
// its canonical key.
func NodeID(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}
