package runstate

import (
	"crypto/rand"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewRunID mints an opaque, short, lexicographically sortable run
// identifier. ULID replaces the original implementation's
// uuid4().hex[:12]: its 26-character form sorts by creation time to the
// millisecond (IDs minted within the same millisecond are in random
// order), and its 80 random bits keep concurrently started runs from
// colliding.
func NewRunID() string {
	id := ulid.MustNew(ulid.Now(), rand.Reader)
	return strings.ToLower(id.String())
}
