package utils

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Reference prefixes
const (
	PrefixExchange   = "EXC"
	PrefixTransfer   = "TRF"
	PrefixDeposit    = "DEP"
	PrefixWithdrawal = "WDR"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewReference returns prefix-<ulid>. References sort by creation time.
func NewReference(prefix string) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	entropyMu.Unlock()
	return prefix + "-" + id.String()
}
