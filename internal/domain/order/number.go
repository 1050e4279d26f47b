package order

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// numberPrefix is the human-readable order number prefix.
const numberPrefix = "SLB"

// NewNumber generates an order number of the form SLB-YYYYMMDD-NNNN. The
// random suffix keeps numbers unguessable; uniqueness is enforced by the
// repository, and the creation path retries on collision. Assigned once,
// never regenerated.
func NewNumber(now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", numberPrefix, now.Format("20060102"), rand.IntN(10000))
}
