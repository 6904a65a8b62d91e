// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package testhost

import (
	"encoding/binary"

	"github.com/athenavm/athena-go/rvvm/loader"
)

// Reg names the RV32E registers used by the tiny assembler below, following
// the conventional ABI names used throughout spec.md §4.4 (a0-a3, t0).
type Reg uint8

const (
	Zero Reg = 0
	RA   Reg = 1
	SP   Reg = 2
	T0   Reg = 5
	A0   Reg = 10
	A1   Reg = 11
	A2   Reg = 12
	A3   Reg = 13
)

// Assembler builds a flat RV32EM text image, word by word, in the spirit of
// a minimal line-assembler (grounded on bassosimone-risc32's pkg/asm). It
// exists solely to construct fixture programs for tests; it is not part of
// the engine's runtime surface.
type Assembler struct {
	words []uint32
}

func (a *Assembler) emit(word uint32) {
	a.words = append(a.words, word)
}

// Addi emits `addi rd, rs1, imm` (I-type, opcode OP-IMM, funct3 0).
func (a *Assembler) Addi(rd, rs1 Reg, imm int32) {
	a.emit(iType(0x04, 0, rd, rs1, imm))
}

// Add emits `add rd, rs1, rs2` (R-type, opcode OP, funct3 0, funct7 0).
func (a *Assembler) Add(rd, rs1, rs2 Reg) {
	a.emit(rType(0x0C, 0, 0, rd, rs1, rs2))
}

// Sub emits `sub rd, rs1, rs2`.
func (a *Assembler) Sub(rd, rs1, rs2 Reg) {
	a.emit(rType(0x0C, 0, 0x20, rd, rs1, rs2))
}

// Beq emits `beq rs1, rs2, offset` (B-type, branch-equal). offset is
// relative to this instruction's address and must be a multiple of 2.
func (a *Assembler) Beq(rs1, rs2 Reg, offset int32) {
	a.emit(bType(0x18, 0, rs1, rs2, offset))
}

// Jal emits `jal rd, offset` (J-type).
func (a *Assembler) Jal(rd Reg, offset int32) {
	a.emit(jType(0x1B, rd, offset))
}

// Lui emits `lui rd, imm` (U-type): rd = imm with its low 12 bits cleared.
func (a *Assembler) Lui(rd Reg, imm int32) {
	a.emit(uType(0x0D, rd, imm))
}

// LoadImm emits the standard two-instruction RISC-V idiom for materializing
// an arbitrary 32-bit constant: LUI with the high 20 bits, then ADDI to add
// back the sign-extended low 12 bits. It always emits exactly two words, so
// callers computing pointers into RawData payloads can rely on a fixed
// instruction count regardless of the constant's value. Fixture programs use
// this for addresses, which routinely exceed ADDI's own 12-bit reach.
func (a *Assembler) LoadImm(rd Reg, imm int32) {
	lo := imm << 20 >> 20 // sign-extend the low 12 bits
	hi := imm - lo
	a.Lui(rd, hi)
	a.Addi(rd, rd, lo)
}

// Ecall emits the fixed ECALL encoding.
func (a *Assembler) Ecall() {
	a.emit(0b000000000000_00000_000_00000_1110011)
}

// Ebreak emits the fixed EBREAK encoding.
func (a *Assembler) Ebreak() {
	a.emit(0b000000000001_00000_000_00000_1110011)
}

// RawData appends data verbatim (padded to a word boundary), for embedding
// fixture constants (addresses, out-of-band argument records) directly in a
// program image alongside its instructions. Callers are responsible for
// never reaching these bytes as a fetched instruction.
func (a *Assembler) RawData(data []byte) {
	padded := make([]byte, (len(data)+3)&^3)
	copy(padded, data)
	for off := 0; off < len(padded); off += 4 {
		a.emit(binary.LittleEndian.Uint32(padded[off : off+4]))
	}
}

// Offset returns the byte offset the next emitted word will occupy, used to
// compute pointers into RawData payloads appended after a known instruction
// sequence.
func (a *Assembler) Offset() uint32 {
	return uint32(4 * len(a.words))
}

// Bytes returns the assembled little-endian instruction stream.
func (a *Assembler) Bytes() []byte {
	buf := make([]byte, 4*len(a.words))
	for i, w := range a.words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

// Image returns a raw-fast-path-loadable image (loader.RawMagic prefix plus
// the assembled text), ready to pass to athena.Parameters.Code.
func (a *Assembler) Image() []byte {
	return append(append([]byte{}, loader.RawMagic[:]...), a.Bytes()...)
}

func iType(opcode, funct3 uint32, rd, rs1 Reg, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | (opcode<<2 | 0x3)
}

func rType(opcode, funct3, funct7 uint32, rd, rs1, rs2 Reg) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | (opcode<<2 | 0x3)
}

func bType(opcode, funct3 uint32, rs1, rs2 Reg, imm int32) uint32 {
	u := uint32(imm)
	bit12 := (u >> 12) & 0x1
	bit11 := (u >> 11) & 0x1
	bits10to5 := (u >> 5) & 0x3F
	bits4to1 := (u >> 1) & 0xF
	return bit12<<31 | bits10to5<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | bits4to1<<8 | bit11<<7 | (opcode<<2 | 0x3)
}

func uType(opcode uint32, rd Reg, imm int32) uint32 {
	return (uint32(imm) & 0xFFFFF000) | uint32(rd)<<7 | (opcode<<2 | 0x3)
}

func jType(opcode uint32, rd Reg, imm int32) uint32 {
	u := uint32(imm)
	bit20 := (u >> 20) & 0x1
	bits10to1 := (u >> 1) & 0x3FF
	bit11 := (u >> 11) & 0x1
	bits19to12 := (u >> 12) & 0xFF
	return bit20<<31 | bits10to1<<21 | bit11<<20 | bits19to12<<12 | uint32(rd)<<7 | (opcode<<2 | 0x3)
}
