package lib

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsError(t *testing.T) {
	inner := NewError(CodePoolFull, EngineModule, "full")
	outer := WrapError(CodeEngine, SessionModule, "engine failed", inner)
	tests := []struct {
		name     string
		detail   string
		err      error
		module   ErrorModule
		code     ErrorCode
		expected bool
	}{
		{name: "direct", detail: "a direct match", err: inner, module: EngineModule, code: CodePoolFull, expected: true},
		{name: "outer", detail: "the wrapping error matches", err: outer, module: SessionModule, code: CodeEngine, expected: true},
		{name: "wrapped", detail: "the cause is found through the wrapper", err: outer, module: EngineModule, code: CodePoolFull, expected: true},
		{name: "fmt wrapped", detail: "standard wrapping is followed", err: fmt.Errorf("ctx: %w", outer), module: EngineModule, code: CodePoolFull, expected: true},
		{name: "wrong code", detail: "same module different code", err: inner, module: EngineModule, code: CodeEpochTooFar},
		{name: "plain", detail: "a plain error never matches", err: errors.New("x"), module: MainModule, code: CodeInvalidArgument},
		{name: "nil", detail: "nil never matches", err: nil, module: MainModule, code: CodeInvalidArgument},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, IsError(test.err, test.module, test.code))
		})
	}
}

func TestErrorString(t *testing.T) {
	err := ErrInvalidConfig("nodeCount must be positive")
	require.Contains(t, err.Error(), "Module:  main")
	require.Contains(t, err.Error(), fmt.Sprintf("Code:    %d", CodeInvalidConfig))
	require.Contains(t, err.Error(), "nodeCount must be positive")
	require.Nil(t, errors.Unwrap(err))
}
