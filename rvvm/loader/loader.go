// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package loader validates and installs a guest program image (a 32-bit
// little-endian RISC-V ELF, or a raw-text fast-path image) into a fresh
// rvvm.Memory, per spec.md §4.1 and §6.
package loader

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/athenavm/athena-go/rvvm"
)

// RawMagic is the 4-byte magic prefix ("\x7fATH") accepted by the raw
// fast-path loader described in spec.md §6, which bypasses ELF section
// parsing and treats the remainder of the image as a flat text segment
// loaded at RawTextBase with an implicit entry point at its start.
var RawMagic = [4]byte{0x7F, 'A', 'T', 'H'}

// RawTextBase is the canonical load address used by the raw fast-path.
const RawTextBase uint32 = 0x0001_0000

// ErrRejected is returned for any malformed, oversized, or unsupported
// input image. Callers surface this as athena.Rejected, per spec.md §4.1's
// "Rejects ... with REJECTED".
type ErrRejected struct {
	Reason string
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("rejected: %s", e.Reason)
}

func rejected(format string, args ...any) error {
	return &ErrRejected{Reason: fmt.Sprintf(format, args...)}
}

// Load installs image into a fresh memory and returns the memory and the
// program's entry point. It dispatches to the raw fast-path when image
// starts with RawMagic, otherwise it parses image as an ELF file.
func Load(image []byte) (*rvvm.Memory, uint32, error) {
	if len(image) >= 4 && [4]byte(image[:4]) == RawMagic {
		return loadRaw(image[4:])
	}
	return loadELF(image)
}

func loadRaw(text []byte) (*rvvm.Memory, uint32, error) {
	if len(text) == 0 {
		return nil, 0, rejected("empty raw text image")
	}
	mem := rvvm.NewMemory()
	for off := 0; off < len(text); off += rvvm.PageSize {
		end := off + rvvm.PageSize
		if end > len(text) {
			end = len(text)
		}
		mem.MapPage(RawTextBase+uint32(off), rvvm.PermRX, text[off:end])
	}
	return mem, RawTextBase, nil
}

// loadELF validates a 32-bit little-endian RISC-V ELF and installs its
// PT_LOAD segments into memory, following the same shape as the mirv
// project's ELF loader: open, iterate program headers, copy filesz bytes,
// zero-fill up to memsz, reject unsupported machines/classes.
func loadELF(image []byte) (*rvvm.Memory, uint32, error) {
	if len(image) < 4 || image[0] != 0x7F || image[1] != 'E' || image[2] != 'L' || image[3] != 'F' {
		return nil, 0, rejected("bad ELF magic")
	}

	f, err := elf.NewFile(bytesReaderAt(image))
	if err != nil {
		return nil, 0, rejected("malformed ELF: %v", err)
	}

	if f.Class != elf.ELFCLASS32 {
		return nil, 0, rejected("unsupported ELF class %v, want ELFCLASS32", f.Class)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, 0, rejected("unsupported ELF endianness %v, want little-endian", f.Data)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, 0, rejected("unsupported ELF machine %v, want EM_RISCV", f.Machine)
	}

	mem := rvvm.NewMemory()

	type loaded struct{ lo, hi uint64 }
	var segments []loaded

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Vaddr%rvvm.PageSize != 0 {
			return nil, 0, rejected("PT_LOAD vaddr %#x is not page-aligned", prog.Vaddr)
		}
		lo := prog.Vaddr
		hi := prog.Vaddr + prog.Memsz
		if hi < lo || hi > 1<<32 {
			return nil, 0, rejected("segment vaddr+memsz wraps: vaddr=%#x memsz=%#x", prog.Vaddr, prog.Memsz)
		}
		for _, s := range segments {
			if lo < s.hi && s.lo < hi {
				return nil, 0, rejected("overlapping PT_LOAD segments")
			}
		}
		segments = append(segments, loaded{lo, hi})

		data := make([]byte, prog.Memsz)
		if prog.Filesz > 0 {
			r := prog.Open()
			if _, err := io.ReadFull(r, data[:prog.Filesz]); err != nil {
				return nil, 0, rejected("failed to read segment data: %v", err)
			}
		}

		perm := rvvm.Permissions{
			Readable:   prog.Flags&elf.PF_R != 0,
			Writable:   prog.Flags&elf.PF_W != 0,
			Executable: prog.Flags&elf.PF_X != 0,
		}

		for off := uint64(0); off < prog.Memsz; off += rvvm.PageSize {
			end := off + rvvm.PageSize
			if end > prog.Memsz {
				end = prog.Memsz
			}
			mem.MapPage(uint32(prog.Vaddr+off), perm, data[off:end])
		}
	}

	if len(segments) == 0 {
		return nil, 0, rejected("no PT_LOAD segments")
	}

	return mem, uint32(f.Entry), nil
}

// bytesReaderAt adapts a byte slice to io.ReaderAt for debug/elf.NewFile.
type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, fmt.Errorf("offset out of range")
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
