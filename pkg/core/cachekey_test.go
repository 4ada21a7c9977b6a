package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

func TestCacheKey_ArchivePath(t *testing.T) {
	key := core.NewCacheKey("test_data/reentrancy-eth/0.7.6/reentrancy.sol", "0.7.6")

	assert.Equal(t, "test_data/reentrancy-eth/0.7.6/reentrancy.sol-0.7.6", key.String())
	assert.Equal(t, "test_data/reentrancy-eth/0.7.6/reentrancy.sol-0.7.6.zip", key.ArchivePath())
}

func TestCacheKey_CleansPath(t *testing.T) {
	a := core.NewCacheKey("test_data/./tx-origin/0.4.25/tx_origin.sol", "0.4.25")
	b := core.NewCacheKey("test_data/tx-origin/0.4.25/tx_origin.sol", " 0.4.25 ")

	assert.Equal(t, a, b)
	assert.Equal(t, a.ArchivePath(), b.ArchivePath())
}

func TestCacheKey_Uniqueness(t *testing.T) {
	fixtures := []string{
		"test_data/reentrancy-eth/0.4.25/reentrancy.sol",
		"test_data/reentrancy-eth/0.5.16/reentrancy.sol",
		"test_data/reentrancy-eth/0.4.25/reentrancy_indirect.sol",
		"test_data/tx-origin/0.4.25/tx_origin.sol",
	}
	versions := []string{"0.4.25", "0.5.16", "0.6.11", "0.7.6", "0.8.0"}

	seen := make(map[string]core.CacheKey)
	for _, f := range fixtures {
		for _, v := range versions {
			key := core.NewCacheKey(f, v)
			path := key.ArchivePath()
			if prev, ok := seen[path]; ok {
				t.Fatalf("archive path %q shared by %+v and %+v", path, prev, key)
			}
			seen[path] = key
		}
	}
	assert.Len(t, seen, len(fixtures)*len(versions))
}

func TestCacheKey_SameFixtureDifferentVersion(t *testing.T) {
	older := core.NewCacheKey("test_data/x/0.5.16/a.sol", "0.5.16")
	newer := core.NewCacheKey("test_data/x/0.5.16/a.sol", "0.4.25")

	assert.NotEqual(t, older.ArchivePath(), newer.ArchivePath())
}
