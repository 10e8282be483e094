package bft

import (
	"fmt"

	"github.com/canopy-network/bftsim/lib"
)

func ErrUnknownEngineMsg(t any) lib.ErrorI {
	return lib.NewError(lib.CodeUnknownEngineMessage, lib.EngineModule, fmt.Sprintf("unknown engine message: %T", t))
}

func ErrEmptyMessage() lib.ErrorI {
	return lib.NewError(lib.CodeEmptyMessage, lib.EngineModule, "empty engine message")
}

func ErrUnknownPhase(p Phase) lib.ErrorI {
	return lib.NewError(lib.CodeUnknownPhase, lib.EngineModule, fmt.Sprintf("unknown phase: %d", p))
}

func ErrNotValidator(id any) lib.ErrorI {
	return lib.NewError(lib.CodeNotValidator, lib.EngineModule, fmt.Sprintf("%v is not a validator", id))
}

func ErrInvalidProposer(sender, leader any) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidProposer, lib.EngineModule, fmt.Sprintf("proposer message from %v but the leader is %v", sender, leader))
}

func ErrNotLeader(epoch uint64) lib.ErrorI {
	return lib.NewError(lib.CodeNotLeader, lib.EngineModule, fmt.Sprintf("received a vote for epoch %d while not the leader", epoch))
}

func ErrMismatchDigest() lib.ErrorI {
	return lib.NewError(lib.CodeMismatchDigest, lib.EngineModule, "digest doesn't match the proposal")
}

func ErrDuplicateVote() lib.ErrorI {
	return lib.NewError(lib.CodeDuplicateVote, lib.EngineModule, "duplicate vote")
}

func ErrDuplicateProposerMessage() lib.ErrorI {
	return lib.NewError(lib.CodeDuplicateProposal, lib.EngineModule, "duplicate proposer message")
}

func ErrBatchTooLarge(size, max int) lib.ErrorI {
	return lib.NewError(lib.CodeBatchTooLarge, lib.EngineModule, fmt.Sprintf("proposal of %d contributions exceeds the batch size %d", size, max))
}

func ErrEpochTooFar(epoch, current uint64) lib.ErrorI {
	return lib.NewError(lib.CodeEpochTooFar, lib.EngineModule, fmt.Sprintf("message for epoch %d is too far ahead of epoch %d", epoch, current))
}

func ErrTooManyBufferedMessages(epoch uint64) lib.ErrorI {
	return lib.NewError(lib.CodeTooManyBufferedMessages, lib.EngineModule, fmt.Sprintf("too many buffered messages for epoch %d", epoch))
}

func ErrInvalidJustification(voters, quorum int) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidJustification, lib.EngineModule, fmt.Sprintf("justification has %d valid voters, need %d", voters, quorum))
}

func ErrEmptyValidatorSet() lib.ErrorI {
	return lib.NewError(lib.CodeEmptyValidatorSet, lib.EngineModule, "validator set is empty")
}

func ErrSelfNotValidator(id any) lib.ErrorI {
	return lib.NewError(lib.CodeSelfNotValidator, lib.EngineModule, fmt.Sprintf("self %v is not in the validator set", id))
}

func ErrInvalidBatchSize(size int) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidBatchSize, lib.EngineModule, fmt.Sprintf("invalid batch size: %d", size))
}
