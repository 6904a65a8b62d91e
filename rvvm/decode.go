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

// Instruction is the decoder's normalized output for one 32-bit instruction
// word: an Opcode tag plus the operands the executor needs. It is a pure
// value, produced by a stateless function, and dispatched by a single large
// switch rather than virtual dispatch (spec.md §9).
type Instruction struct {
	Op  Opcode
	Rd  Register
	Rs1 Register
	Rs2 Register
	Imm int32
}

// Register indexes into the 16-entry RV32E register file.
type Register uint8

const numRegisters = 16

// base RISC-V opcode field (bits 6:2 of the instruction word).
type baseOpcode uint32

const (
	boLoad    baseOpcode = 0x00
	boMiscMem baseOpcode = 0x03
	boOpImm   baseOpcode = 0x04
	boAUIPC   baseOpcode = 0x05
	boStore   baseOpcode = 0x08
	boOp      baseOpcode = 0x0C
	boLUI     baseOpcode = 0x0D
	boBranch  baseOpcode = 0x18
	boJALR    baseOpcode = 0x19
	boJAL     baseOpcode = 0x1B
	boSystem  baseOpcode = 0x1C
)

// Decode decodes a single 32-bit little-endian-loaded instruction word. An
// unknown or malformed encoding yields the INVALID_INSTRUCTION sentinel
// (Op == opInvalid); the executor turns this into a fault (spec.md §4.2).
//
// The 5-bit register fields are range-checked against the 4-bit RV32E range
// wherever the instruction's format uses them as registers: encodings
// referencing x16..x31 are rejected as invalid, since Athena only exposes
// the 16-register E-variant ABI. Bits that a format assigns to its
// immediate are not checked.
func Decode(word uint32) Instruction {
	rd := Register((word >> 7) & 0x1f)
	rs1 := Register((word >> 15) & 0x1f)
	rs2 := Register((word >> 20) & 0x1f)
	funct3 := (word >> 12) & 0x7
	funct7 := (word >> 25) & 0x7f
	bop := baseOpcode((word >> 2) & 0x1f)
	lowBitsSet := word&0x3 != 0x3

	invalid := Instruction{Op: opInvalid}

	if lowBitsSet {
		return invalid
	}
	var regs []Register
	switch bop {
	case boLUI, boAUIPC, boJAL:
		regs = []Register{rd}
	case boJALR, boLoad, boOpImm:
		regs = []Register{rd, rs1}
	case boBranch, boStore:
		regs = []Register{rs1, rs2}
	case boOp:
		regs = []Register{rd, rs1, rs2}
	}
	for _, r := range regs {
		if r >= numRegisters {
			return invalid
		}
	}

	switch bop {
	case boLUI:
		return Instruction{Op: OpLui, Rd: rd, Imm: int32(word & 0xFFFFF000)}
	case boAUIPC:
		return Instruction{Op: OpAuipc, Rd: rd, Imm: int32(word & 0xFFFFF000)}
	case boJAL:
		imm := jTypeImm(word)
		return Instruction{Op: OpJal, Rd: rd, Imm: imm}
	case boJALR:
		if funct3 != 0 {
			return invalid
		}
		return Instruction{Op: OpJalr, Rd: rd, Rs1: rs1, Imm: iTypeImm(word)}
	case boBranch:
		imm := bTypeImm(word)
		op, ok := branchOp(funct3)
		if !ok {
			return invalid
		}
		return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: imm}
	case boLoad:
		op, ok := loadOp(funct3)
		if !ok {
			return invalid
		}
		return Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: iTypeImm(word)}
	case boStore:
		op, ok := storeOp(funct3)
		if !ok {
			return invalid
		}
		return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: sTypeImm(word)}
	case boOpImm:
		return decodeOpImm(funct3, funct7, rd, rs1, word)
	case boOp:
		return decodeOp(funct3, funct7, rd, rs1, rs2)
	case boSystem:
		if funct3 != 0 || rd != 0 || rs1 != 0 {
			return invalid
		}
		switch word >> 20 {
		case 0:
			return Instruction{Op: OpEcall}
		case 1:
			return Instruction{Op: OpEbreak}
		default:
			return invalid
		}
	case boMiscMem:
		if funct3 != 0 {
			return invalid
		}
		return Instruction{Op: OpFence}
	default:
		return invalid
	}
}

func decodeOpImm(funct3, funct7 uint32, rd, rs1 Register, word uint32) Instruction {
	switch funct3 {
	case 0x0:
		return Instruction{Op: OpAddi, Rd: rd, Rs1: rs1, Imm: iTypeImm(word)}
	case 0x2:
		return Instruction{Op: OpSlti, Rd: rd, Rs1: rs1, Imm: iTypeImm(word)}
	case 0x3:
		return Instruction{Op: OpSltiu, Rd: rd, Rs1: rs1, Imm: iTypeImm(word)}
	case 0x4:
		return Instruction{Op: OpXori, Rd: rd, Rs1: rs1, Imm: iTypeImm(word)}
	case 0x6:
		return Instruction{Op: OpOri, Rd: rd, Rs1: rs1, Imm: iTypeImm(word)}
	case 0x7:
		return Instruction{Op: OpAndi, Rd: rd, Rs1: rs1, Imm: iTypeImm(word)}
	case 0x1:
		if funct7 != 0 {
			return Instruction{Op: opInvalid}
		}
		return Instruction{Op: OpSlli, Rd: rd, Rs1: rs1, Imm: int32(word>>20) & 0x1f}
	case 0x5:
		shamt := int32(word>>20) & 0x1f
		switch funct7 {
		case 0x00:
			return Instruction{Op: OpSrli, Rd: rd, Rs1: rs1, Imm: shamt}
		case 0x20:
			return Instruction{Op: OpSrai, Rd: rd, Rs1: rs1, Imm: shamt}
		default:
			return Instruction{Op: opInvalid}
		}
	default:
		return Instruction{Op: opInvalid}
	}
}

func decodeOp(funct3, funct7 uint32, rd, rs1, rs2 Register) Instruction {
	base := Instruction{Rd: rd, Rs1: rs1, Rs2: rs2}
	switch funct7 {
	case 0x00:
		switch funct3 {
		case 0x0:
			base.Op = OpAdd
		case 0x1:
			base.Op = OpSll
		case 0x2:
			base.Op = OpSlt
		case 0x3:
			base.Op = OpSltu
		case 0x4:
			base.Op = OpXor
		case 0x5:
			base.Op = OpSrl
		case 0x6:
			base.Op = OpOr
		case 0x7:
			base.Op = OpAnd
		default:
			base.Op = opInvalid
		}
	case 0x20:
		switch funct3 {
		case 0x0:
			base.Op = OpSub
		case 0x5:
			base.Op = OpSra
		default:
			base.Op = opInvalid
		}
	case 0x01: // RV32M
		switch funct3 {
		case 0x0:
			base.Op = OpMul
		case 0x1:
			base.Op = OpMulh
		case 0x2:
			base.Op = OpMulhsu
		case 0x3:
			base.Op = OpMulhu
		case 0x4:
			base.Op = OpDiv
		case 0x5:
			base.Op = OpDivu
		case 0x6:
			base.Op = OpRem
		case 0x7:
			base.Op = OpRemu
		default:
			base.Op = opInvalid
		}
	default:
		base.Op = opInvalid
	}
	return base
}

func branchOp(funct3 uint32) (Opcode, bool) {
	switch funct3 {
	case 0x0:
		return OpBeq, true
	case 0x1:
		return OpBne, true
	case 0x4:
		return OpBlt, true
	case 0x5:
		return OpBge, true
	case 0x6:
		return OpBltu, true
	case 0x7:
		return OpBgeu, true
	default:
		return opInvalid, false
	}
}

func loadOp(funct3 uint32) (Opcode, bool) {
	switch funct3 {
	case 0x0:
		return OpLb, true
	case 0x1:
		return OpLh, true
	case 0x2:
		return OpLw, true
	case 0x4:
		return OpLbu, true
	case 0x5:
		return OpLhu, true
	default:
		return opInvalid, false
	}
}

func storeOp(funct3 uint32) (Opcode, bool) {
	switch funct3 {
	case 0x0:
		return OpSb, true
	case 0x1:
		return OpSh, true
	case 0x2:
		return OpSw, true
	default:
		return opInvalid, false
	}
}

// iTypeImm extracts and sign-extends the 12-bit I-type immediate.
func iTypeImm(word uint32) int32 {
	return int32(word) >> 20
}

// sTypeImm extracts and sign-extends the 12-bit S-type immediate.
func sTypeImm(word uint32) int32 {
	hi := int32(word) >> 25 << 5
	lo := int32((word >> 7) & 0x1f)
	return hi | lo
}

// bTypeImm extracts and sign-extends the 13-bit B-type immediate (bit 0 is
// always zero).
func bTypeImm(word uint32) int32 {
	signBit := int32(word) >> 31 << 12
	bit11 := int32((word>>7)&0x1) << 11
	bits10to5 := int32((word>>25)&0x3f) << 5
	bits4to1 := int32((word>>8)&0xf) << 1
	return signBit | bit11 | bits10to5 | bits4to1
}

// jTypeImm extracts and sign-extends the 21-bit J-type immediate (bit 0 is
// always zero).
func jTypeImm(word uint32) int32 {
	signBit := int32(word) >> 31 << 20
	bits19to12 := int32((word >> 12) & 0xff) << 12
	bit11 := int32((word>>20)&0x1) << 11
	bits10to1 := int32((word>>21)&0x3ff) << 1
	return signBit | bits19to12 | bit11 | bits10to1
}
