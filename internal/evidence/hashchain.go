package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenesisHash is the fixed previous-hash of every chain's first block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// FileHash fingerprints uploaded content. The digest is the only thing the
// chain retains about the bytes themselves.
func FileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BlockHash binds a block to its predecessor and metadata. It is a pure
// function of its inputs: no salt, no machine-local state, so any process can
// recompute it at any time and compare against the stored value. The
// timestamp is normalized to UTC RFC3339Nano so the same instant always
// serializes identically.
func BlockHash(fileHash, previousBlockHash string, timestamp time.Time, title string) string {
	input := fmt.Sprintf("%s|%s|%s|%s",
		fileHash,
		previousBlockHash,
		timestamp.UTC().Format(time.RFC3339Nano),
		title,
	)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
