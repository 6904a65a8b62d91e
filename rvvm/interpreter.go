// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package rvvm

import (
	"sync"

	"github.com/athenavm/athena-go/athena"
	"github.com/athenavm/athena-go/rvvm/loader"
)

func init() {
	athena.RegisterInterpreterFactory("rvvm", func(any) (athena.Interpreter, error) {
		return &Interpreter{}, nil
	})
}

// Interpreter implements athena.Interpreter: the RV32EM fetch/decode/execute
// core. It owns no state between calls; every Run builds a fresh frame.
type Interpreter struct{}

// StackTop is the fixed high address the stack grows down from (spec.md
// §3's "fixed high address (e.g. 0x8000_0000 minus stack size)").
const StackTop uint32 = 0x8000_0000

// CallDepthLimit is the recommended recursion bound from spec.md §3/§9.
const CallDepthLimit = 1024

// frame is the per-call execution state described by spec.md §3:
// (registers, pc, memory, gas_remaining, call_depth, output_buffer,
// exit_status). It is discarded at frame exit.
type frame struct {
	regs Registers
	pc   uint32
	// pcSet is set by a branch or jump (and by EBREAK under a debug
	// session) to suppress the default pc += 4 the run loop otherwise
	// performs.
	pcSet bool

	mem *Memory
	gas athena.Gas

	status      status
	faultStatus athena.StatusCode

	output []byte

	depth     int
	recipient athena.Address
	host      athena.HostContext
	tx        athena.TxContext

	// stdin is the opaque calldata envelope delivered through fd 0
	// (spec.md §4.4's READ syscall and §6's calldata envelope).
	stdin    []byte
	stdinPos int

	// onBreak, if set, routes EBREAK to an attached debug stub instead of
	// faulting (spec.md §4.3/§4.6). DebugSession.Continue sets this.
	onBreak func(*frame)
}

// framePool recycles frame structs across runs, following the same
// reuse-pool idiom as lfvm's stackPool/NewStack/ReturnStack: a frame is
// pure per-call scratch state, so pooling it avoids an allocation on every
// Run in a hot recursive-CALL path.
var framePool = sync.Pool{
	New: func() any { return &frame{} },
}

func newFrame() *frame {
	return framePool.Get().(*frame)
}

// returnFrame clears every field before releasing f back to the pool, since
// a stale host/mem/output reference would otherwise leak into the next Run
// that reuses this frame.
func returnFrame(f *frame) {
	*f = frame{}
	framePool.Put(f)
}

func (f *frame) fault(code athena.StatusCode) {
	f.status = statusFault
	f.faultStatus = code
}

func (f *frame) useGas(amount athena.Gas) bool {
	if f.gas < 0 || amount < 0 || f.gas < amount {
		f.status = statusFault
		f.faultStatus = athena.OutOfGas
		return false
	}
	f.gas -= amount
	return true
}

// Run executes params.Code against params.Message in the given host
// context, implementing athena.Interpreter. It is the main entrypoint used
// directly for single-frame execution in tests and indirectly, through the
// driver package, for recursive CALL handling.
func (in Interpreter) Run(params athena.Parameters) (athena.Result, error) {
	if !params.Revision.IsSupported() {
		return athena.Result{}, &athena.ErrUnsupportedRevision{Revision: params.Revision}
	}
	if len(params.Code) == 0 {
		return athena.Result{Status: athena.Success, GasLeft: params.Message.Gas}, nil
	}

	mem, entry, err := loader.Load(params.Code)
	if err != nil {
		return athena.Result{Status: athena.Rejected}, nil
	}

	f := newFrame()
	defer returnFrame(f)

	f.pc = entry
	f.mem = mem
	f.gas = params.Message.Gas
	f.depth = params.Message.Depth
	f.recipient = params.Message.Recipient
	f.host = params.Context
	f.tx = params.Tx
	f.stdin = params.Message.Input
	f.regs.Set(2, StackTop) // conventional stack pointer register (x2)

	run(f)

	return buildResult(f)
}

// run is the fetch/decode/execute loop (spec.md §4.3): fetch, decode, check
// gas, execute, advance PC unless the instruction itself branched.
func run(f *frame) {
	for f.status == statusRunning {
		word, ok := f.mem.FetchInstruction(f.pc)
		if !ok {
			f.fault(athena.InvalidMemoryAccess)
			return
		}

		in := Decode(word)
		if in.Op == opInvalid {
			f.fault(athena.InvalidInstruction)
			return
		}

		if !f.useGas(GasCostTable(in.Op)) {
			return
		}

		f.pcSet = false
		execute(f, in)
		if f.status != statusRunning {
			return
		}
		if !f.pcSet {
			f.pc += 4
		}
	}
}

func buildResult(f *frame) (athena.Result, error) {
	switch f.status {
	case statusReturned:
		output, err := extractOutput(f)
		if err != nil {
			return athena.Result{Status: athena.InternalError}, nil
		}
		return athena.Result{Status: athena.Success, GasLeft: f.gas, Output: output}, nil
	case statusReverted:
		output, err := extractOutput(f)
		if err != nil {
			return athena.Result{Status: athena.InternalError}, nil
		}
		return athena.Result{Status: athena.Revert, GasLeft: f.gas, Output: output}, nil
	case statusFault:
		return athena.Result{Status: f.faultStatus, GasLeft: 0}, nil
	default:
		return athena.Result{Status: athena.InternalError}, nil
	}
}

func extractOutput(f *frame) (athena.Data, error) {
	if len(f.output) > 0 {
		return athena.Data(f.output), nil
	}
	return nil, nil
}
