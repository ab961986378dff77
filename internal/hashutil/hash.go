// Package hashutil provides the content-addressed identifiers used across
// the compiler, registry, and cache: SHA-256 digests of spec bytes, of
// normalized code, and composite hashes over sorted sets of hashes.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// HashContent returns the lowercase hex SHA-256 digest of raw bytes.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashString is HashContent over a string.
func HashString(s string) string {
	return HashContent([]byte(s))
}

// HashCode normalizes code before hashing: blank lines are dropped and each
// remaining line is right-trimmed, so trailing whitespace differences never
// change the code id.
func HashCode(code string) string {
	lines := strings.Split(code, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		kept = append(kept, trimmed)
	}
	return HashString(strings.Join(kept, "\n"))
}

// CombineHashes returns a single hash over a sorted, pipe-joined list of
// hashes, making the result independent of input order. An empty input
// list hashes the empty string.
func CombineHashes(hashes []string) string {
	sorted := make([]string, len(hashes))
	copy(sorted, hashes)
	sort.Strings(sorted)
	return HashString(strings.Join(sorted, "|"))
}
