package simulator

import (
	"fmt"

	"github.com/canopy-network/bftsim/lib"
)

func ErrLivenessBudgetExceeded(steps, budget uint64, quiescent bool) lib.ErrorI {
	reason := "step budget exhausted"
	if quiescent {
		reason = "network is quiescent"
	}
	return lib.NewError(lib.CodeLivenessBudgetExceeded, lib.SimulatorModule, fmt.Sprintf("predicate not satisfied after %d of %d steps: %s", steps, budget, reason))
}

func ErrFaultThresholdExceeded(failed, tolerated int, cause error) lib.ErrorI {
	return lib.WrapError(lib.CodeFaultThresholdExceeded, lib.SimulatorModule, fmt.Sprintf("%d nodes failed but only %d are tolerated", failed, tolerated), cause)
}

func ErrAgreementViolation(epoch uint64, a, b any) lib.ErrorI {
	return lib.NewError(lib.CodeAgreementViolation, lib.SimulatorModule, fmt.Sprintf("nodes %v and %v finalized different batches for epoch %d", a, b, epoch))
}

func ErrNonMonotonicEpoch(node any, prev, next uint64) lib.ErrorI {
	return lib.NewError(lib.CodeNonMonotonicEpoch, lib.SimulatorModule, fmt.Sprintf("node %v finalized epoch %d after epoch %d", node, next, prev))
}

func ErrUnknownNode(node any) lib.ErrorI {
	return lib.NewError(lib.CodeUnknownNode, lib.SimulatorModule, fmt.Sprintf("unknown node %v", node))
}

func ErrDuplicateNode(node any) lib.ErrorI {
	return lib.NewError(lib.CodeDuplicateNode, lib.SimulatorModule, fmt.Sprintf("duplicate node %v", node))
}

func ErrNodeExcluded(node any) lib.ErrorI {
	return lib.NewError(lib.CodeNodeExcluded, lib.SimulatorModule, fmt.Sprintf("node %v was excluded after an engine failure", node))
}

func ErrNoNodes() lib.ErrorI {
	return lib.NewError(lib.CodeNoNodes, lib.SimulatorModule, "the network has no nodes")
}

func ErrUnknownRecipient(sender, recipient any) lib.ErrorI {
	return lib.NewError(lib.CodeUnknownRecipient, lib.SimulatorModule, fmt.Sprintf("node %v sent a message to unknown node %v", sender, recipient))
}

func ErrInvalidStepBudget() lib.ErrorI {
	return lib.NewError(lib.CodeInvalidStepBudget, lib.SimulatorModule, "step budget must be positive")
}

// IsLivenessBudgetExceeded() returns true if the run ended without its predicate holding
func IsLivenessBudgetExceeded(err error) bool {
	return lib.IsError(err, lib.SimulatorModule, lib.CodeLivenessBudgetExceeded)
}

// IsFaultThresholdExceeded() returns true if the run aborted because too many engines failed
func IsFaultThresholdExceeded(err error) bool {
	return lib.IsError(err, lib.SimulatorModule, lib.CodeFaultThresholdExceeded)
}
