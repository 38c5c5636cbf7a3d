package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenesisHash(t *testing.T) {
	require.Len(t, GenesisHash, 64)
	for _, c := range GenesisHash {
		assert.Equal(t, '0', c)
	}
}

func TestFileHash(t *testing.T) {
	a := FileHash([]byte("exhibit A"))
	b := FileHash([]byte("exhibit B"))

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, FileHash([]byte("exhibit A")))

	// Known sha256 of the empty input.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		FileHash(nil))
}

func TestBlockHash(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	fileHash := FileHash([]byte("exhibit A"))

	base := BlockHash(fileHash, GenesisHash, ts, "photo1")

	t.Run("pure function", func(t *testing.T) {
		assert.Equal(t, base, BlockHash(fileHash, GenesisHash, ts, "photo1"))
	})

	t.Run("timezone does not change the digest", func(t *testing.T) {
		ist := time.FixedZone("IST", 5*3600+1800)
		assert.Equal(t, base, BlockHash(fileHash, GenesisHash, ts.In(ist), "photo1"))
	})

	t.Run("every input is load-bearing", func(t *testing.T) {
		assert.NotEqual(t, base, BlockHash(FileHash([]byte("exhibit B")), GenesisHash, ts, "photo1"))
		assert.NotEqual(t, base, BlockHash(fileHash, base, ts, "photo1"))
		assert.NotEqual(t, base, BlockHash(fileHash, GenesisHash, ts.Add(time.Nanosecond), "photo1"))
		assert.NotEqual(t, base, BlockHash(fileHash, GenesisHash, ts, "photo2"))
	})
}
