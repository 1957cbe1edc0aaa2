package callstate

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const (
	base36        = "0123456789abcdefghijklmnopqrstuvwxyz"
	localIDPrefix = "outgoing_"
)

// NewOutgoingSessionID builds the local id used until the telephony backend supplies one:
// outgoing_<unix-millis>_<9 base36 chars>.
func NewOutgoingSessionID(now time.Time, rng *rand.Rand) string {
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	b := make([]byte, 9)
	for i := range b {
		b[i] = base36[rng.Intn(len(base36))]
	}
	return fmt.Sprintf("%s%d_%s", localIDPrefix, now.UnixMilli(), b)
}

// IsLocalSessionID reports whether id came from NewOutgoingSessionID.
func IsLocalSessionID(id string) bool { return strings.HasPrefix(id, localIDPrefix) }
