package git

import (
	"crypto/sha256"
	"encoding/base32"
	"path/filepath"
	"strings"
)

// cacheNamespace versions the on-disk layout so format-breaking changes
// force a fresh mirror directory rather than reusing an incompatible one
// (spec.md §4.A).
const cacheNamespace = "gitv4"

// cachePath is the pure function component A specifies: same url always
// maps to the same directory under root.
func cachePath(root, url string) string {
	sum := sha256.Sum256([]byte(url))
	encoded := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:]))
	return filepath.Join(root, cacheNamespace, encoded)
}
