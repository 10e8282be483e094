package lib

import (
	"encoding/hex"
	"fmt"
	"runtime/debug"
)

// BytesToTruncatedString() converts a byte slice to a truncated hexadecimal string
func BytesToTruncatedString(b []byte) string {
	if len(b) > 10 {
		return hex.EncodeToString(b[:10])
	}
	return hex.EncodeToString(b)
}

// CatchPanic() catches any panic in the function call or child function calls
func CatchPanic(l LoggerI) {
	if r := recover(); r != nil {
		l.Errorf("%v\n%s", r, string(debug.Stack()))
	}
}

// RecoverError() converts a panic in the function call into an error assigned to the pointer
func RecoverError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("recovered panic: %v", r)
	}
}

// JoinLenPrefix() appends the items together separated by a single byte to represent the length of the segment
func JoinLenPrefix(toAppend ...[]byte) (res []byte) {
	// for each item to append
	for _, item := range toAppend {
		if item == nil {
			continue
		}
		// store the length of the segment in a single byte
		length := []byte{byte(len(item))}
		// append to the reset of the segment
		res = append(append(res, length...), item...)
	}
	return
}

// DecodeLengthPrefixed() decodes a key that is delimited by the length of the segment in a single byte
func DecodeLengthPrefixed(key []byte) (segments [][]byte, err ErrorI) {
	var length int
	for i := 0; i < len(key); i += length {
		// read the length prefix
		length = int(key[i])
		i++
		if i+length > len(key) {
			return nil, ErrInvalidArgument()
		}
		segments = append(segments, key[i:i+length])
	}
	return
}

// DeDuplicator is a generic structure that serves as a simple anti-duplication check
type DeDuplicator[T comparable] struct {
	m map[T]struct{}
}

// NewDeDuplicator constructs a new object reference to a DeDuplicator
func NewDeDuplicator[T comparable]() *DeDuplicator[T] {
	return &DeDuplicator[T]{m: make(map[T]struct{})}
}

// Found checks for an existing entry and adds it to the map if it's not present
func (d *DeDuplicator[T]) Found(k T) bool {
	// check if the key already exists
	if _, exists := d.m[k]; exists {
		return true // It's a duplicate
	}
	// add the key to the map
	d.m[k] = struct{}{}
	// not a duplicate
	return false
}

// Contains() checks for an existing entry without adding it
func (d *DeDuplicator[T]) Contains(k T) bool {
	_, exists := d.m[k]
	return exists
}

// Len() returns the number of entries seen
func (d *DeDuplicator[T]) Len() int { return len(d.m) }
