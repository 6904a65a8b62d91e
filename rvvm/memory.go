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
	"encoding/binary"

	"github.com/holiman/uint256"
)

// PageSize is the granularity of the sparse address space (spec.md §3).
const PageSize = 4096

// Permissions is the access-control triple carried by every page.
type Permissions struct {
	Readable   bool
	Writable   bool
	Executable bool
}

// Common permission combinations used by the loader and frame setup.
var (
	PermRX = Permissions{Readable: true, Executable: true}
	PermR  = Permissions{Readable: true}
	PermRW = Permissions{Readable: true, Writable: true}
)

type page struct {
	perm Permissions
	data [PageSize]byte
}

// Memory is a sparse mapping from 4 KiB page numbers to permissioned pages,
// implementing spec.md §3's linear memory. Effective addresses wrap modulo
// 2^32; pages not yet mapped are implicitly created on first touch as R+W
// zero-filled heap pages, mirroring the "BSS/heap... zero-initialized on
// first touch" growable-heap behavior.
type Memory struct {
	pages map[uint32]*page
}

// NewMemory creates an empty memory image.
func NewMemory() *Memory {
	return &Memory{pages: map[uint32]*page{}}
}

func pageNumber(addr uint32) uint32 {
	return addr / PageSize
}

// MapPage installs an explicit page at the given page-aligned address with
// the given permissions and initial contents (used by the loader for text,
// data, and rodata; the stack is not mapped here and its pages are created
// on first touch like any other unmapped page). data may be shorter than
// PageSize; the remainder is zero-filled.
func (m *Memory) MapPage(addr uint32, perm Permissions, data []byte) {
	pn := pageNumber(addr)
	p, ok := m.pages[pn]
	if !ok {
		p = &page{}
		m.pages[pn] = p
	}
	p.perm = perm
	if len(data) > PageSize {
		data = data[:PageSize]
	}
	copy(p.data[:], data)
}

// getOrCreate returns the page for addr, lazily creating a zero-filled R+W
// heap page if none exists yet.
func (m *Memory) getOrCreate(addr uint32) *page {
	pn := pageNumber(addr)
	p, ok := m.pages[pn]
	if !ok {
		p = &page{perm: PermRW}
		m.pages[pn] = p
	}
	return p
}

// lookup returns the page for addr without creating it.
func (m *Memory) lookup(addr uint32) (*page, bool) {
	p, ok := m.pages[pageNumber(addr)]
	return p, ok
}

func align(addr uint32, size uint32) bool {
	return addr%size == 0
}

// FetchInstruction reads a 32-bit instruction word for execution. The PC
// must be word-aligned and the containing page must be executable.
func (m *Memory) FetchInstruction(pc uint32) (uint32, bool) {
	if !align(pc, 4) {
		return 0, false
	}
	p := m.getOrCreate(pc)
	if !p.perm.Executable {
		return 0, false
	}
	off := pc % PageSize
	if off > PageSize-4 {
		// instruction words never straddle the page boundary in this
		// loader's layout; treat as a fault rather than reading across.
		return 0, false
	}
	return binary.LittleEndian.Uint32(p.data[off : off+4]), true
}

// LoadByte/LoadHalf/LoadWord read little-endian values, checking alignment
// and read permission. LoadByte has no alignment constraint.
func (m *Memory) LoadByte(addr uint32) (byte, bool) {
	p := m.getOrCreate(addr)
	if !p.perm.Readable {
		return 0, false
	}
	return p.data[addr%PageSize], true
}

func (m *Memory) LoadHalf(addr uint32) (uint16, bool) {
	if !align(addr, 2) {
		return 0, false
	}
	v, ok := loadN(m, addr, 2)
	return uint16(v), ok
}

func (m *Memory) LoadWord(addr uint32) (uint32, bool) {
	if !align(addr, 4) {
		return 0, false
	}
	return loadN(m, addr, 4)
}

// loadN is a small helper reading n little-endian bytes starting at addr
// from a single page (n is always <= 4 and the loader never splits a word
// across a page boundary, matching the RV32 alignment guarantees above).
func loadN(m *Memory, addr uint32, n int) (uint32, bool) {
	off := addr % PageSize
	if off > PageSize-uint32(n) {
		return 0, false
	}
	p := m.getOrCreate(addr)
	if !p.perm.Readable {
		return 0, false
	}
	var buf [4]byte
	copy(buf[:n], p.data[off:off+uint32(n)])
	return binary.LittleEndian.Uint32(buf[:]), true
}

// StoreByte/StoreHalf/StoreWord write little-endian values, checking
// alignment and write permission.
func (m *Memory) StoreByte(addr uint32, v byte) bool {
	p := m.getOrCreate(addr)
	if !p.perm.Writable {
		return false
	}
	p.data[addr%PageSize] = v
	return true
}

func (m *Memory) StoreHalf(addr uint32, v uint16) bool {
	if !align(addr, 2) {
		return false
	}
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return storeN(m, addr, buf[:])
}

func (m *Memory) StoreWord(addr uint32, v uint32) bool {
	if !align(addr, 4) {
		return false
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return storeN(m, addr, buf[:])
}

func storeN(m *Memory, addr uint32, buf []byte) bool {
	off := addr % PageSize
	if off > PageSize-uint32(len(buf)) {
		return false
	}
	p := m.getOrCreate(addr)
	if !p.perm.Writable {
		return false
	}
	copy(p.data[off:off+uint32(len(buf))], buf)
	return true
}

// boundsCheck reports whether addr+n stays within the 32-bit address space,
// computed as a non-wrapping 256-bit addition so a syscall argument like
// (addr=0xFFFFFFF0, n=0x100) is rejected outright instead of silently
// wrapping into an unrelated low page the way native uint32 addition would.
func boundsCheck(addr uint32, n int) bool {
	if n < 0 {
		return false
	}
	end := new(uint256.Int).AddUint64(uint256.NewInt(uint64(addr)), uint64(n))
	return end.IsUint64() && end.Uint64() <= 1<<32
}

// ReadBytes copies n bytes starting at addr into a fresh slice, used by the
// syscall dispatcher to read argument buffers. It requires every touched
// page to be readable.
func (m *Memory) ReadBytes(addr uint32, n int) ([]byte, bool) {
	if !boundsCheck(addr, n) {
		return nil, false
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, ok := m.LoadByte(addr + uint32(i))
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// WriteBytes copies data into guest memory starting at addr, used by the
// syscall dispatcher to copy results back. It requires every touched page
// to be writable.
func (m *Memory) WriteBytes(addr uint32, data []byte) bool {
	if !boundsCheck(addr, len(data)) {
		return false
	}
	for i, b := range data {
		if !m.StoreByte(addr+uint32(i), b) {
			return false
		}
	}
	return true
}
