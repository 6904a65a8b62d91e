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
	"math"
	"math/bits"

	"github.com/athenavm/athena-go/athena"
)

// execute dispatches one decoded instruction against f, following
// spec.md §4.3's clarifications of the RISC-V User-Level ISA v2.2. It sets
// f.pc (and f.pcSet) only for instructions that transfer control; the
// caller (run, in interpreter.go, or stepOnce) advances pc by 4 otherwise.
// The caller charges the static per-instruction cost before calling
// execute; ECALL additionally charges syscall gas through dispatchSyscall.
func execute(f *frame, in Instruction) {
	switch in.Op {
	case OpAdd:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)+f.regs.Get(in.Rs2))
	case OpSub:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)-f.regs.Get(in.Rs2))
	case OpSll:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)<<(f.regs.Get(in.Rs2)&0x1f))
	case OpSlt:
		if int32(f.regs.Get(in.Rs1)) < int32(f.regs.Get(in.Rs2)) {
			f.regs.Set(in.Rd, 1)
		} else {
			f.regs.Set(in.Rd, 0)
		}
	case OpSltu:
		if f.regs.Get(in.Rs1) < f.regs.Get(in.Rs2) {
			f.regs.Set(in.Rd, 1)
		} else {
			f.regs.Set(in.Rd, 0)
		}
	case OpXor:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)^f.regs.Get(in.Rs2))
	case OpSrl:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)>>(f.regs.Get(in.Rs2)&0x1f))
	case OpSra:
		f.regs.Set(in.Rd, uint32(int32(f.regs.Get(in.Rs1))>>(f.regs.Get(in.Rs2)&0x1f)))
	case OpOr:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)|f.regs.Get(in.Rs2))
	case OpAnd:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)&f.regs.Get(in.Rs2))

	case OpAddi:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)+uint32(in.Imm))
	case OpSlti:
		if int32(f.regs.Get(in.Rs1)) < in.Imm {
			f.regs.Set(in.Rd, 1)
		} else {
			f.regs.Set(in.Rd, 0)
		}
	case OpSltiu:
		if f.regs.Get(in.Rs1) < uint32(in.Imm) {
			f.regs.Set(in.Rd, 1)
		} else {
			f.regs.Set(in.Rd, 0)
		}
	case OpXori:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)^uint32(in.Imm))
	case OpOri:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)|uint32(in.Imm))
	case OpAndi:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)&uint32(in.Imm))
	case OpSlli:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)<<uint32(in.Imm))
	case OpSrli:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)>>uint32(in.Imm))
	case OpSrai:
		f.regs.Set(in.Rd, uint32(int32(f.regs.Get(in.Rs1))>>uint32(in.Imm)))

	case OpLui:
		f.regs.Set(in.Rd, uint32(in.Imm))
	case OpAuipc:
		f.regs.Set(in.Rd, f.pc+uint32(in.Imm))

	case OpJal:
		link := f.pc + 4
		target := f.pc + uint32(in.Imm)
		if target%2 != 0 {
			f.fault(athena.BadJumpDestination)
			return
		}
		f.regs.Set(in.Rd, link)
		f.pc = target
		f.pcSet = true
	case OpJalr:
		link := f.pc + 4
		target := (f.regs.Get(in.Rs1) + uint32(in.Imm)) &^ 1
		if target%4 != 0 {
			f.fault(athena.BadJumpDestination)
			return
		}
		f.regs.Set(in.Rd, link)
		f.pc = target
		f.pcSet = true

	case OpBeq:
		execBranch(f, in, f.regs.Get(in.Rs1) == f.regs.Get(in.Rs2))
	case OpBne:
		execBranch(f, in, f.regs.Get(in.Rs1) != f.regs.Get(in.Rs2))
	case OpBlt:
		execBranch(f, in, int32(f.regs.Get(in.Rs1)) < int32(f.regs.Get(in.Rs2)))
	case OpBge:
		execBranch(f, in, int32(f.regs.Get(in.Rs1)) >= int32(f.regs.Get(in.Rs2)))
	case OpBltu:
		execBranch(f, in, f.regs.Get(in.Rs1) < f.regs.Get(in.Rs2))
	case OpBgeu:
		execBranch(f, in, f.regs.Get(in.Rs1) >= f.regs.Get(in.Rs2))

	case OpLb:
		addr := f.regs.Get(in.Rs1) + uint32(in.Imm)
		v, ok := f.mem.LoadByte(addr)
		if !ok {
			f.fault(athena.InvalidMemoryAccess)
			return
		}
		f.regs.Set(in.Rd, uint32(int32(int8(v))))
	case OpLbu:
		addr := f.regs.Get(in.Rs1) + uint32(in.Imm)
		v, ok := f.mem.LoadByte(addr)
		if !ok {
			f.fault(athena.InvalidMemoryAccess)
			return
		}
		f.regs.Set(in.Rd, uint32(v))
	case OpLh:
		addr := f.regs.Get(in.Rs1) + uint32(in.Imm)
		v, ok := f.mem.LoadHalf(addr)
		if !ok {
			f.fault(athena.InvalidMemoryAccess)
			return
		}
		f.regs.Set(in.Rd, uint32(int32(int16(v))))
	case OpLhu:
		addr := f.regs.Get(in.Rs1) + uint32(in.Imm)
		v, ok := f.mem.LoadHalf(addr)
		if !ok {
			f.fault(athena.InvalidMemoryAccess)
			return
		}
		f.regs.Set(in.Rd, uint32(v))
	case OpLw:
		addr := f.regs.Get(in.Rs1) + uint32(in.Imm)
		v, ok := f.mem.LoadWord(addr)
		if !ok {
			f.fault(athena.InvalidMemoryAccess)
			return
		}
		f.regs.Set(in.Rd, v)
	case OpSb:
		addr := f.regs.Get(in.Rs1) + uint32(in.Imm)
		if !f.mem.StoreByte(addr, byte(f.regs.Get(in.Rs2))) {
			f.fault(athena.InvalidMemoryAccess)
			return
		}
	case OpSh:
		addr := f.regs.Get(in.Rs1) + uint32(in.Imm)
		if !f.mem.StoreHalf(addr, uint16(f.regs.Get(in.Rs2))) {
			f.fault(athena.InvalidMemoryAccess)
			return
		}
	case OpSw:
		addr := f.regs.Get(in.Rs1) + uint32(in.Imm)
		if !f.mem.StoreWord(addr, f.regs.Get(in.Rs2)) {
			f.fault(athena.InvalidMemoryAccess)
			return
		}

	case OpFence:
		// No-op: Athena is single-threaded and cooperative (spec.md §5).

	case OpMul:
		f.regs.Set(in.Rd, f.regs.Get(in.Rs1)*f.regs.Get(in.Rs2))
	case OpMulh:
		f.regs.Set(in.Rd, mulhSigned(int32(f.regs.Get(in.Rs1)), int32(f.regs.Get(in.Rs2))))
	case OpMulhu:
		hi, _ := bits.Mul64(uint64(f.regs.Get(in.Rs1)), uint64(f.regs.Get(in.Rs2)))
		f.regs.Set(in.Rd, uint32(hi))
	case OpMulhsu:
		f.regs.Set(in.Rd, mulhSignedUnsigned(int32(f.regs.Get(in.Rs1)), f.regs.Get(in.Rs2)))
	case OpDiv:
		a, b := int32(f.regs.Get(in.Rs1)), int32(f.regs.Get(in.Rs2))
		if b == 0 {
			f.regs.Set(in.Rd, uint32(-1))
		} else if a == math.MinInt32 && b == -1 {
			f.regs.Set(in.Rd, uint32(a))
		} else {
			f.regs.Set(in.Rd, uint32(a/b))
		}
	case OpDivu:
		a, b := f.regs.Get(in.Rs1), f.regs.Get(in.Rs2)
		if b == 0 {
			f.regs.Set(in.Rd, 0xFFFFFFFF)
		} else {
			f.regs.Set(in.Rd, a/b)
		}
	case OpRem:
		a, b := int32(f.regs.Get(in.Rs1)), int32(f.regs.Get(in.Rs2))
		if b == 0 {
			f.regs.Set(in.Rd, uint32(a))
		} else if a == math.MinInt32 && b == -1 {
			f.regs.Set(in.Rd, 0)
		} else {
			f.regs.Set(in.Rd, uint32(a%b))
		}
	case OpRemu:
		a, b := f.regs.Get(in.Rs1), f.regs.Get(in.Rs2)
		if b == 0 {
			f.regs.Set(in.Rd, a)
		} else {
			f.regs.Set(in.Rd, a%b)
		}

	case OpEcall:
		dispatchSyscall(f)
	case OpEbreak:
		if f.onBreak != nil {
			// leave pc at the breakpoint's own address: a debug session
			// reports a stop here, not past it, so the client can inspect
			// state and single-step the restored instruction afterward.
			f.pcSet = true
			f.onBreak(f)
		} else {
			f.fault(athena.Trap)
		}

	default:
		f.fault(athena.InvalidInstruction)
	}
}

func execBranch(f *frame, in Instruction, taken bool) {
	if !taken {
		return
	}
	target := f.pc + uint32(in.Imm)
	if target%2 != 0 {
		f.fault(athena.BadJumpDestination)
		return
	}
	f.pc = target
	f.pcSet = true
}

// mulhSigned computes the high 32 bits of the signed 64-bit product a*b.
func mulhSigned(a, b int32) uint32 {
	p := int64(a) * int64(b)
	return uint32(p >> 32)
}

// mulhSignedUnsigned computes the high 32 bits of a (signed) * b (unsigned).
func mulhSignedUnsigned(a int32, b uint32) uint32 {
	p := int64(a) * int64(int64(b))
	return uint32(p >> 32)
}
