package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	HashSize = sha256.Size
)

/*
	Hash is a function that takes an input message and returns a fixed-size string of bytes that is unique to the input.
	Batches and proposals are compared by the hash of their canonical encoding so that peers can vote on a short digest
	instead of the full list of contributions.
*/

// Hash() executes the global hashing algorithm on input bytes
func Hash(msg []byte) []byte {
	h := sha256.Sum256(msg)
	return h[:]
}

// ShortHash() executes the global hashing algorithm on input bytes
// and truncates the output to 20 bytes
func ShortHash(msg []byte) []byte {
	h := sha256.Sum256(msg)
	return h[:20]
}

// ShortHashString() returns the hex byte version of a short hash
func ShortHashString(msg []byte) string { return hex.EncodeToString(ShortHash(msg)) }
