package fs

import "github.com/cespare/xxhash/v2"

// Sum returns the xxhash of content.
func Sum(content []byte) uint64 {
	return xxhash.Sum64(content)
}
