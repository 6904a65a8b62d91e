// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package athena

import "fmt"

// StatusCode is the result status of an execution, following spec.md §6/§7.
// Positive values are recoverable guest faults, zero is success, and
// negative values are internal engine errors.
type StatusCode int32

const (
	Success StatusCode = 0

	// Recoverable guest faults (positive).
	Failure                  StatusCode = 1
	Revert                   StatusCode = 2
	OutOfGas                 StatusCode = 3
	InvalidInstruction       StatusCode = 4
	UndefinedInstruction     StatusCode = 5
	StackOverflow            StatusCode = 6
	StackUnderflow           StatusCode = 7
	BadJumpDestination       StatusCode = 8
	InvalidMemoryAccess      StatusCode = 9
	CallDepthExceeded        StatusCode = 10
	PrecompileFailure        StatusCode = 11
	ContractValidationFailure StatusCode = 12
	ArgumentOutOfRange       StatusCode = 13
	UnreachableInstruction   StatusCode = 14
	Trap                     StatusCode = 15
	InsufficientBalance      StatusCode = 16
	InsufficientInput        StatusCode = 17
	InvalidSyscallArgument   StatusCode = 18

	// Internal engine errors (negative).
	InternalError StatusCode = -1
	Rejected      StatusCode = -2
	OutOfMemory   StatusCode = -3
)

func (s StatusCode) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Revert:
		return "revert"
	case OutOfGas:
		return "out_of_gas"
	case InvalidInstruction:
		return "invalid_instruction"
	case UndefinedInstruction:
		return "undefined_instruction"
	case StackOverflow:
		return "stack_overflow"
	case StackUnderflow:
		return "stack_underflow"
	case BadJumpDestination:
		return "bad_jump_destination"
	case InvalidMemoryAccess:
		return "invalid_memory_access"
	case CallDepthExceeded:
		return "call_depth_exceeded"
	case PrecompileFailure:
		return "precompile_failure"
	case ContractValidationFailure:
		return "contract_validation_failure"
	case ArgumentOutOfRange:
		return "argument_out_of_range"
	case UnreachableInstruction:
		return "unreachable_instruction"
	case Trap:
		return "trap"
	case InsufficientBalance:
		return "insufficient_balance"
	case InsufficientInput:
		return "insufficient_input"
	case InvalidSyscallArgument:
		return "invalid_syscall_argument"
	case InternalError:
		return "internal_error"
	case Rejected:
		return "rejected"
	case OutOfMemory:
		return "out_of_memory"
	default:
		return fmt.Sprintf("StatusCode(%d)", int32(s))
	}
}

// IsFault reports whether s is a positive status: a recoverable guest fault
// or Revert. Revert is included even though, unlike a fault, it preserves
// output and residual gas; the negative internal-error codes are not.
func (s StatusCode) IsFault() bool {
	return s >= Failure
}

// ErrUnsupportedRevision is returned by execute() when asked to run a
// Revision the engine does not implement.
type ErrUnsupportedRevision struct {
	Revision Revision
}

func (e *ErrUnsupportedRevision) Error() string {
	return fmt.Sprintf("unsupported revision %d", e.Revision)
}
