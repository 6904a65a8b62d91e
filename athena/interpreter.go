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

//go:generate mockgen -source interpreter.go -destination interpreter_mock.go -package athena

// Interpreter is a component capable of executing RV32EM byte-code. It is
// the fetch/decode/execute core; a full engine adds the ability to handle
// recursive contract calls (see the driver package). To obtain an
// Interpreter instance, client code should use GetVirtualMachine() provided
// by the registry in this package.
//
// Interpreters are required to be thread-safe: multiple runs may be
// conducted in parallel, each against its own Parameters and memory image.
type Interpreter interface {
	// Run executes the code provided by the parameters and returns the
	// processing result. The returned error is nil whenever the code was
	// correctly processed by the engine, even if execution faulted (a fault
	// is reported through Result.Status, not through the error). The error
	// is non-nil only when the interpreter itself could not process the
	// request, e.g. an unsupported Revision.
	Run(Parameters) (Result, error)
}

// Parameters summarizes the input required for executing one call frame.
type Parameters struct {
	Revision  Revision
	Context   HostContext
	Message   Message
	Code      Code
	CodeHash  *Word256
	Tx        TxContext
}

// HostContext is the interface through which a running frame reaches back
// into the host: value transfer, storage, balances, recursive calls, chain
// context, and template registration. It is the in-process Go rendering of
// the C-compatible host vtable described by spec.md §6: the guest never
// holds a pointer into the host, it only ever calls through this interface
// with an opaque frame-local view.
type HostContext interface {
	// AccountExists reports whether addr denotes a known account.
	AccountExists(addr Address) bool

	// GetStorage reads the current value of key in addr's storage.
	GetStorage(addr Address, key Key) Word256

	// SetStorage writes value to key in addr's storage and returns the
	// transition classification used for gas accounting.
	SetStorage(addr Address, key Key, value Word256) StorageStatus

	// GetBalance returns addr's current balance.
	GetBalance(addr Address) uint64

	// Call performs a recursive invocation of another contract (or of the
	// same contract, for self-recursive guests). It is re-entrant: the
	// host may end up calling back into the engine.
	Call(params CallParameters) (CallResult, error)

	// GetTxContext returns the current transaction/block context.
	GetTxContext() TxContext

	// GetBlockHash returns the hash of the block at the given height.
	GetBlockHash(height int64) Word256

	// Spawn registers a new program instance from a state blob and returns
	// its freshly minted address, along with the gas the host charges for
	// the operation (spec.md §9: SPAWN/DEPLOY gas is host policy).
	Spawn(blob []byte) (Address, Gas, error)

	// Deploy registers a new template (bytecode) and returns its address
	// and the gas the host charges for the operation.
	Deploy(code []byte) (Address, Gas, error)
}

// CallParameters describes a recursive CALL issued by a running frame.
type CallParameters struct {
	Recipient Address
	Sender    Address
	Input     Data
	Value     uint64
	Gas       Gas
	Depth     int
}

// CallResult is the result of a recursive CALL as observed by the calling
// frame; a failed sub-call does not fault the caller (spec.md §7).
type CallResult struct {
	Status  StatusCode
	Output  Data
	GasLeft Gas
}
