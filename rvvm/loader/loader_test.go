// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package loader_test

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/athenavm/athena-go/rvvm/loader"
)

func TestLoadRawFastPath(t *testing.T) {
	text := []byte{0x13, 0x00, 0x00, 0x00} // addi x0, x0, 0
	image := append(append([]byte{}, loader.RawMagic[:]...), text...)

	mem, entry, err := loader.Load(image)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if entry != loader.RawTextBase {
		t.Fatalf("entry = %#x, want %#x", entry, loader.RawTextBase)
	}
	if _, ok := mem.FetchInstruction(loader.RawTextBase); !ok {
		t.Fatalf("FetchInstruction failed at raw text base")
	}
}

func TestLoadRawEmptyRejected(t *testing.T) {
	image := append([]byte{}, loader.RawMagic[:]...)
	if _, _, err := loader.Load(image); err == nil {
		t.Fatalf("expected error for empty raw text image")
	}
}

func TestLoadBadMagicRejected(t *testing.T) {
	if _, _, err := loader.Load([]byte("not an elf or raw image")); err == nil {
		t.Fatalf("expected error for unrecognized image")
	}
}

func TestLoadWrongMachineRejected(t *testing.T) {
	image := buildMinimalELF(t, elf.EM_X86_64, 0x1000, []byte{1, 2, 3, 4})
	if _, _, err := loader.Load(image); err == nil {
		t.Fatalf("expected error for non-RISCV machine")
	}
}

func TestLoadValidELF(t *testing.T) {
	text := []byte{0x13, 0x00, 0x00, 0x00}
	image := buildMinimalELF(t, elf.EM_RISCV, 0x1000, text)

	mem, entry, err := loader.Load(image)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if entry != 0x1000 {
		t.Fatalf("entry = %#x, want 0x1000", entry)
	}
	if _, ok := mem.FetchInstruction(0x1000); !ok {
		t.Fatalf("FetchInstruction failed at entry point")
	}
}

// TestLoadUnalignedVaddrRejected confirms a PT_LOAD segment whose p_vaddr is
// not page-aligned is rejected outright rather than silently misplaced:
// MapPage always copies a segment's bytes starting at page offset 0, so an
// unaligned vaddr would otherwise land the segment at the wrong address.
func TestLoadUnalignedVaddrRejected(t *testing.T) {
	text := []byte{0x13, 0x00, 0x00, 0x00}
	image := buildMinimalELF(t, elf.EM_RISCV, 0x1001, text)

	if _, _, err := loader.Load(image); err == nil {
		t.Fatalf("expected error for non-page-aligned PT_LOAD vaddr")
	}
}

// buildMinimalELF hand-assembles the smallest possible 32-bit ELF with a
// single PT_LOAD R+X segment loaded at vaddr, since the standard library
// offers an ELF reader (debug/elf) but no writer.
func buildMinimalELF(t *testing.T, machine elf.Machine, vaddr uint32, text []byte) []byte {
	t.Helper()

	const (
		ehdrSize = 52
		phdrSize = 32
	)

	var buf bytes.Buffer

	ident := [16]byte{0x7F, 'E', 'L', 'F', 1 /* ELFCLASS32 */, 1 /* ELFDATA2LSB */, 1 /* EV_CURRENT */}
	buf.Write(ident[:])
	binary.Write(&buf, binary.LittleEndian, uint16(elf.ET_EXEC)) // e_type
	binary.Write(&buf, binary.LittleEndian, uint16(machine))     // e_machine
	binary.Write(&buf, binary.LittleEndian, uint32(1))           // e_version
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))      // e_entry
	binary.Write(&buf, binary.LittleEndian, uint32(ehdrSize))    // e_phoff
	binary.Write(&buf, binary.LittleEndian, uint32(0))           // e_shoff
	binary.Write(&buf, binary.LittleEndian, uint32(0))           // e_flags
	binary.Write(&buf, binary.LittleEndian, uint16(ehdrSize))    // e_ehsize
	binary.Write(&buf, binary.LittleEndian, uint16(phdrSize))    // e_phentsize
	binary.Write(&buf, binary.LittleEndian, uint16(1))           // e_phnum
	binary.Write(&buf, binary.LittleEndian, uint16(0))           // e_shentsize
	binary.Write(&buf, binary.LittleEndian, uint16(0))           // e_shnum
	binary.Write(&buf, binary.LittleEndian, uint16(0))           // e_shstrndx

	if buf.Len() != ehdrSize {
		t.Fatalf("ELF header = %d bytes, want %d", buf.Len(), ehdrSize)
	}

	dataOff := uint32(ehdrSize + phdrSize)
	binary.Write(&buf, binary.LittleEndian, uint32(elf.PT_LOAD))                     // p_type
	binary.Write(&buf, binary.LittleEndian, dataOff)                                 // p_offset
	binary.Write(&buf, binary.LittleEndian, vaddr)                                  // p_vaddr
	binary.Write(&buf, binary.LittleEndian, vaddr)                                  // p_paddr
	binary.Write(&buf, binary.LittleEndian, uint32(len(text)))                      // p_filesz
	binary.Write(&buf, binary.LittleEndian, uint32(len(text)))                      // p_memsz
	binary.Write(&buf, binary.LittleEndian, uint32(elf.PF_R|elf.PF_X))              // p_flags
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))                         // p_align

	buf.Write(text)

	return buf.Bytes()
}
