// Package hashid computes the stable 64-bit content hash used to key
// every textual identity in the store: file paths, USRs, command
// strings, kind names, and argument vectors.
package hashid

import "github.com/cespare/xxhash/v2"

// Hash returns a deterministic, well-distributed fingerprint of s.
//
// The store treats the result as opaque and never relies on it for
// user-visible identity -- callers that need the original text must keep
// it alongside the hash (see the dictionary tables in internal/store).
// Collisions are tolerated at the theoretical level; they are not
// expected at the corpus sizes a single project reaches in practice.
func Hash(s string) int64 {
	return int64(xxhash.Sum64String(s))
}

// HashBytes is the []byte counterpart of Hash: HashBytes([]byte(s))
// equals Hash(s).
func HashBytes(b []byte) int64 {
	return int64(xxhash.Sum64(b))
}
