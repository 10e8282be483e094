package lib

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesToTruncatedString(t *testing.T) {
	tests := []struct {
		name     string
		detail   string
		input    []byte
		expected string
	}{
		{name: "short", detail: "short input is fully encoded", input: []byte{0x01, 0x02}, expected: "0102"},
		{name: "long", detail: "input beyond 10 bytes is truncated", input: make([]byte, 32), expected: "00000000000000000000"},
		{name: "empty", detail: "empty input is an empty string", input: nil, expected: ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, BytesToTruncatedString(test.input))
		})
	}
}

func TestJoinLenPrefix(t *testing.T) {
	key := JoinLenPrefix([]byte("a"), nil, []byte("bcd"))
	require.Equal(t, []byte{1, 'a', 3, 'b', 'c', 'd'}, key)
	segments, err := DecodeLengthPrefixed(key)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a"), []byte("bcd")}, segments)
	// a truncated key is rejected
	_, err = DecodeLengthPrefixed(key[:len(key)-1])
	require.Error(t, err)
}

func TestDeDuplicator(t *testing.T) {
	d := NewDeDuplicator[string]()
	require.False(t, d.Contains("a"))
	require.False(t, d.Found("a"))
	require.True(t, d.Found("a"))
	require.True(t, d.Contains("a"))
	require.Equal(t, 1, d.Len())
}

func TestCatchPanic(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer CatchPanic(NewNullLogger())
		panic("boom")
	}()
	// the panic is logged instead of crashing the process
	<-done
}

func TestRecoverError(t *testing.T) {
	fn := func() (err error) {
		defer RecoverError(&err)
		panic("boom")
	}
	err := fn()
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
	require.False(t, errors.Is(err, ErrInvalidArgument()))
}
