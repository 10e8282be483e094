package p2p

import (
	"fmt"
	"time"

	"github.com/canopy-network/bftsim/lib"
)

func ErrRunTimeout(minBatches int, elapsed time.Duration) lib.ErrorI {
	return lib.NewError(lib.CodeRunTimeout, lib.P2PModule, fmt.Sprintf("live peers did not reach %d batches within %s", minBatches, elapsed))
}

func ErrUnknownPeer(peer any) lib.ErrorI {
	return lib.NewError(lib.CodeUnknownPeer, lib.P2PModule, fmt.Sprintf("unknown peer %v", peer))
}

func ErrNetworkStopped(err error) lib.ErrorI {
	return lib.NewError(lib.CodeNetworkStopped, lib.P2PModule, fmt.Sprintf("network stopped with err: %s", err.Error()))
}

func ErrPeerFailed(peer any, cause error) lib.ErrorI {
	return lib.WrapError(lib.CodePeerFailed, lib.P2PModule, fmt.Sprintf("peer %v stopped after an engine failure", peer), cause)
}

func ErrNetworkRunning() lib.ErrorI {
	return lib.NewError(lib.CodeNetworkRunning, lib.P2PModule, "the network is already running")
}

func ErrTooManyFailures(failed, tolerated int, cause error) lib.ErrorI {
	return lib.WrapError(lib.CodeTooManyFailures, lib.P2PModule, fmt.Sprintf("%d peers failed but only %d are tolerated", failed, tolerated), cause)
}
