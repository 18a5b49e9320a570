package recommender

import (
	"strings"

	"github.com/google/uuid"
)

// UniqueName suffixes base with a short random identifier. Timestamp
// suffixes collide at sub-second invocation rates; a UUID fragment does
// not, and two calls in the same process always differ.
func UniqueName(base string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return base + "-" + suffix
}
