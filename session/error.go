package session

import (
	"fmt"

	"github.com/canopy-network/bftsim/lib"
)

func ErrEngine(node any, err error) lib.ErrorI {
	return lib.WrapError(lib.CodeEngine, lib.SessionModule, fmt.Sprintf("engine of node %v failed with err: %s", node, err.Error()), err)
}

func ErrNilEngine(node any) lib.ErrorI {
	return lib.NewError(lib.CodeNilEngine, lib.SessionModule, fmt.Sprintf("node %v has no engine", node))
}

// IsEngineError() returns true if the error originated inside an engine
func IsEngineError(err error) bool { return lib.IsError(err, lib.SessionModule, lib.CodeEngine) }
