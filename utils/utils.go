package utils

import (
	"github.com/twmb/murmur3"
)

// HashString is the stable 64-bit hash used for request and config cache
// keys.
func HashString(s string) uint64 {
	hash := murmur3.New64()
	if _, err := hash.Write([]byte(s)); err != nil {
		panic(err)
	}
	return hash.Sum64()
}

// HashBytes folds any number of byte slices into one 64-bit hash.
func HashBytes(bytes ...[]byte) uint64 {
	hash := murmur3.New64()
	for _, b := range bytes {
		if _, err := hash.Write(b); err != nil {
			panic(err)
		}
	}
	return hash.Sum64()
}
