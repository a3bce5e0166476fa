package common

import "crypto/rand"

// GenerateRandByteArray returns size bytes from crypto/rand for AES keys and
// GCM nonces. It panics if the system random source fails.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray zeroes b in place so key material and typed passwords do
// not outlive their use. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
