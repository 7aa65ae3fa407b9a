// Package id generates run identifiers.
//
// Run ids are ULIDs: lexicographically sortable by creation time, which
// keeps journaled runs naturally ordered. Order and trade ids are NOT
// generated here — those are plain per-ledger counters so that repeated
// runs stay deterministic.
package id

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Monotonic entropy keeps ids generated within the same millisecond
	// lexicographically increasing.
	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewRun returns a fresh run id.
func NewRun() string {
	mu.Lock()
	defer mu.Unlock()

	u, err := ulid.New(ulid.Timestamp(time.Now().UTC()), entropy)
	if err != nil {
		panic(err)
	}
	return u.String()
}
