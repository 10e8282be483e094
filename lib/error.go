package lib

import (
	"errors"
	"fmt"
	"math"
)

type ErrorI interface {
	Code() ErrorCode     // Returns the error code
	Module() ErrorModule // Returns the error module
	error                // Implements the built-in error interface
}

var _ ErrorI = &Error{} // Ensures *Error implements ErrorI

type ErrorCode uint32 // Defines a type for error codes

type ErrorModule string // Defines a type for error modules

type Error struct {
	ECode   ErrorCode   `json:"code"`   // Error code
	EModule ErrorModule `json:"module"` // Error module
	Msg     string      `json:"msg"`    // Error message
	cause   error       // the optional underlying error
}

func NewError(code ErrorCode, module ErrorModule, msg string) *Error {
	// Constructs a new Error instance
	return &Error{ECode: code, EModule: module, Msg: msg}
}

// WrapError() constructs a new Error that keeps the underlying cause reachable with errors.Unwrap
func WrapError(code ErrorCode, module ErrorModule, msg string, cause error) *Error {
	return &Error{ECode: code, EModule: module, Msg: msg, cause: cause}
}

// Unwrap() returns the underlying cause (if any)
func (p *Error) Unwrap() error { return p.cause }

// Code() returns the associated error code
func (p *Error) Code() ErrorCode { return p.ECode }

// Module() returns module field
func (p *Error) Module() ErrorModule { return p.EModule }

// String() calls Error()
func (p *Error) String() string { return p.Error() }

// Error() returns a formatted string including module, code and message
func (p *Error) Error() string {
	return fmt.Sprintf("\nModule:  %s\nCode:    %d\nMessage: %s", p.EModule, p.ECode, p.Msg)
}

// IsError() returns true if the error (or anything it wraps) is an ErrorI with the given module and code
func IsError(err error, module ErrorModule, code ErrorCode) bool {
	for err != nil {
		var e ErrorI
		if !errors.As(err, &e) {
			return false
		}
		if e.Module() == module && e.Code() == code {
			return true
		}
		err = errors.Unwrap(e)
	}
	return false
}

const (
	NoCode ErrorCode = math.MaxUint32

	// Main Module
	MainModule ErrorModule = "main"

	// Main Module Error Codes
	CodeJSONMarshal     ErrorCode = 2
	CodeJSONUnmarshal   ErrorCode = 3
	CodeUnmarshal       ErrorCode = 4
	CodeWriteFile       ErrorCode = 25
	CodeReadFile        ErrorCode = 26
	CodeInvalidArgument ErrorCode = 27
	CodeInvalidConfig   ErrorCode = 29

	// Session Module
	SessionModule ErrorModule = "session"

	// Session Module Error Codes
	CodeEngine    ErrorCode = 1
	CodeNilEngine ErrorCode = 2

	// Simulator Module
	SimulatorModule ErrorModule = "simulator"

	// Simulator Module Error Codes
	CodeLivenessBudgetExceeded ErrorCode = 1
	CodeFaultThresholdExceeded ErrorCode = 2
	CodeAgreementViolation     ErrorCode = 3
	CodeUnknownNode            ErrorCode = 4
	CodeDuplicateNode          ErrorCode = 5
	CodeNodeExcluded           ErrorCode = 6
	CodeNoNodes                ErrorCode = 7
	CodeNonMonotonicEpoch      ErrorCode = 8
	CodeUnknownRecipient       ErrorCode = 9
	CodeInvalidStepBudget      ErrorCode = 10

	// Engine Module
	EngineModule ErrorModule = "engine"

	// Engine Module Error Codes
	CodeUnknownEngineMessage    ErrorCode = 1
	CodeNotValidator            ErrorCode = 2
	CodeInvalidProposer         ErrorCode = 3
	CodeMismatchDigest          ErrorCode = 4
	CodeDuplicateVote           ErrorCode = 5
	CodeDuplicateProposal       ErrorCode = 6
	CodeBatchTooLarge           ErrorCode = 7
	CodeEpochTooFar             ErrorCode = 8
	CodeContributionTooLarge    ErrorCode = 9
	CodePoolFull                ErrorCode = 10
	CodeEmptyValidatorSet       ErrorCode = 11
	CodeSelfNotValidator        ErrorCode = 12
	CodeInvalidBatchSize        ErrorCode = 13
	CodeEmptyMessage            ErrorCode = 14
	CodeUnknownPhase            ErrorCode = 15
	CodeTooManyBufferedMessages ErrorCode = 16
	CodeNotLeader               ErrorCode = 17
	CodeInvalidJustification    ErrorCode = 18

	// P2P Module
	P2PModule ErrorModule = "p2p"

	// P2P Module Error Codes
	CodeRunTimeout      ErrorCode = 1
	CodeUnknownPeer     ErrorCode = 2
	CodeNetworkStopped  ErrorCode = 3
	CodePeerFailed      ErrorCode = 4
	CodeNetworkRunning  ErrorCode = 5
	CodeTooManyFailures ErrorCode = 6

	// Store Module
	StoreModule ErrorModule = "store"

	// Store Module Error Codes
	CodeOpenDB         ErrorCode = 1
	CodeCloseDB        ErrorCode = 2
	CodeStoreSet       ErrorCode = 3
	CodeStoreGet       ErrorCode = 4
	CodeStoreIter      ErrorCode = 5
	CodeInvalidDBKey   ErrorCode = 6
	CodeCorruptedBatch ErrorCode = 7
)

func ErrUnmarshal(err error) ErrorI {
	return NewError(CodeUnmarshal, MainModule, fmt.Sprintf("unmarshal() failed with err: %s", err.Error()))
}

func ErrJSONUnmarshal(err error) ErrorI {
	return NewError(CodeJSONUnmarshal, MainModule, fmt.Sprintf("json.unmarshal() failed with err: %s", err.Error()))
}

func ErrJSONMarshal(err error) ErrorI {
	return NewError(CodeJSONMarshal, MainModule, fmt.Sprintf("json.marshal() failed with err: %s", err.Error()))
}

func ErrWriteFile(err error) ErrorI {
	return NewError(CodeWriteFile, MainModule, fmt.Sprintf("os.WriteFile() failed with err: %s", err.Error()))
}

func ErrReadFile(err error) ErrorI {
	return NewError(CodeReadFile, MainModule, fmt.Sprintf("os.ReadFile() failed with err: %s", err.Error()))
}

func ErrInvalidArgument() ErrorI {
	return NewError(CodeInvalidArgument, MainModule, "invalid argument")
}

func ErrInvalidConfig(reason string) ErrorI {
	return NewError(CodeInvalidConfig, MainModule, fmt.Sprintf("invalid config: %s", reason))
}

func ErrContributionTooLarge(size int, max uint64) ErrorI {
	return NewError(CodeContributionTooLarge, EngineModule, fmt.Sprintf("contribution of %d bytes exceeds the %d byte limit", size, max))
}

func ErrPoolFull(max int) ErrorI {
	return NewError(CodePoolFull, EngineModule, fmt.Sprintf("contribution pool is full (%d)", max))
}
