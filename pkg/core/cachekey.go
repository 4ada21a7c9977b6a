package core

import (
	"path/filepath"
	"strings"
)

// ArchiveSuffix is the file extension of persisted artifact archives.
const ArchiveSuffix = ".zip"

// CacheKey addresses a compiled artifact. It is derived solely from the
// fixture path and the compiler version.
type CacheKey struct {
	FixturePath string
	Version     string
}

// NewCacheKey builds a CacheKey from a fixture path and compiler version.
// The path is cleaned so that equivalent spellings map to the same key.
func NewCacheKey(fixturePath, version string) CacheKey {
	return CacheKey{
		FixturePath: filepath.Clean(fixturePath),
		Version:     strings.TrimSpace(version),
	}
}

// String returns "{fixture path}-{version}".
func (k CacheKey) String() string {
	return k.FixturePath + "-" + k.Version
}

// ArchivePath returns the path of the archive for this key:
// "{fixture path}-{version}.zip".
func (k CacheKey) ArchivePath() string {
	return k.String() + ArchiveSuffix
}
