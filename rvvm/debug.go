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
	"github.com/athenavm/athena-go/athena"
	"github.com/athenavm/athena-go/rvvm/loader"
)

// ebreakWord is the fixed EBREAK encoding, used by DebugSession to install
// software breakpoints by instruction substitution (spec.md §4.6).
const ebreakWord uint32 = 0b000000000001_00000_000_00000_1110011

// DebugSession wraps a single frame for interactive, instruction-at-a-time
// execution: the interpreter-side half of the debugstub package's remote
// protocol server. Unlike Run, it does not drive the frame to completion on
// its own; callers Step or Continue it, inspecting registers and memory in
// between, mirroring spec.md §4.6's "halts before the first instruction and
// speaks a remote-debug protocol... suspends the frame between whole
// instructions only".
//
// DebugSession intentionally bypasses framePool: debug sessions are rare and
// long-lived relative to ordinary Runs, so pooling their frames would only
// add bookkeeping for no benefit.
type DebugSession struct {
	f        *frame
	finished bool
	patched  map[uint32]uint32
}

// NewDebugSession loads code and constructs a frame halted before its first
// instruction.
func NewDebugSession(params athena.Parameters) (*DebugSession, error) {
	if !params.Revision.IsSupported() {
		return nil, &athena.ErrUnsupportedRevision{Revision: params.Revision}
	}
	mem, entry, err := loader.Load(params.Code)
	if err != nil {
		return nil, err
	}
	f := &frame{
		pc:        entry,
		mem:       mem,
		gas:       params.Message.Gas,
		depth:     params.Message.Depth,
		recipient: params.Message.Recipient,
		host:      params.Context,
		tx:        params.Tx,
		stdin:     params.Message.Input,
	}
	f.regs.Set(2, StackTop)
	return &DebugSession{f: f, patched: map[uint32]uint32{}}, nil
}

// PC returns the frame's current program counter.
func (s *DebugSession) PC() uint32 { return s.f.pc }

// Registers returns a snapshot of the 16-entry E-variant register file.
func (s *DebugSession) Registers() [numRegisters]uint32 {
	var out [numRegisters]uint32
	for i := range out {
		out[i] = s.f.regs.Get(Register(i))
	}
	return out
}

// SetRegister writes one register; writes to x0 are silently ignored, per
// Registers.Set.
func (s *DebugSession) SetRegister(r Register, v uint32) {
	s.f.regs.Set(r, v)
}

// ReadMemory reads n bytes at addr, honoring page read permission.
func (s *DebugSession) ReadMemory(addr uint32, n int) ([]byte, bool) {
	return s.f.mem.ReadBytes(addr, n)
}

// WriteMemory writes data at addr, honoring page write permission.
func (s *DebugSession) WriteMemory(addr uint32, data []byte) bool {
	return s.f.mem.WriteBytes(addr, data)
}

// Finished reports whether the frame has reached a terminal status.
func (s *DebugSession) Finished() bool { return s.finished }

// Step executes exactly one instruction. It returns true once the frame has
// reached a terminal status (success, revert, or fault); a breakpoint
// reached mid-Step is not itself terminal.
func (s *DebugSession) Step() bool {
	if s.finished {
		return true
	}
	stepOnce(s.f)
	if s.f.status != statusRunning {
		s.finished = true
	}
	return s.finished
}

// Continue steps repeatedly until either a software breakpoint is reached
// (an EBREAK word installed by SetBreakpoint) or the frame terminates,
// implementing the RSP 'c' command.
func (s *DebugSession) Continue() bool {
	hitBreakpoint := false
	s.f.onBreak = func(*frame) { hitBreakpoint = true }
	for !s.finished && !hitBreakpoint {
		s.Step()
	}
	return s.finished
}

// SetBreakpoint replaces the instruction word at addr with EBREAK,
// remembering the original word so ClearBreakpoint can restore it. The
// write goes through patchWord, so it succeeds on read-only text pages.
func (s *DebugSession) SetBreakpoint(addr uint32) bool {
	if _, already := s.patched[addr]; already {
		return true
	}
	word, ok := s.f.mem.LoadWord(addr)
	if !ok {
		return false
	}
	s.patched[addr] = word
	return s.patchWord(addr, ebreakWord)
}

// ClearBreakpoint restores the original instruction word at addr, again
// regardless of the page's write permission.
func (s *DebugSession) ClearBreakpoint(addr uint32) bool {
	word, ok := s.patched[addr]
	if !ok {
		return false
	}
	delete(s.patched, addr)
	return s.patchWord(addr, word)
}

// patchWord stores word at addr with the page's write permission lifted for
// the duration of the store, then restores the page's permissions.
func (s *DebugSession) patchWord(addr, word uint32) bool {
	p, ok := s.f.mem.lookup(addr)
	if !ok {
		return false
	}
	perm := p.perm
	p.perm.Writable = true
	ok = s.f.mem.StoreWord(addr, word)
	p.perm = perm
	return ok
}

// Result builds the terminal athena.Result once Finished reports true. It
// is safe to call before termination; the status will simply read as
// whatever the zero value of the frame's status enum denotes.
func (s *DebugSession) Result() (athena.Result, error) {
	return buildResult(s.f)
}

// stepOnce runs the fetch/decode/gas-charge/execute sequence for a single
// instruction: the same body as run's loop in interpreter.go, without the
// outer loop, so DebugSession can interleave inspection between
// instructions.
func stepOnce(f *frame) {
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
