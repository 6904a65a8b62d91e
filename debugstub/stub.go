// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package debugstub implements the optional debug capability of spec.md
// §4.6: a minimal GDB Remote Serial Protocol (RSP) server speaking over any
// io.ReadWriter, backed by an rvvm.DebugSession. No debug-protocol code
// exists anywhere in the teacher or the retrieval pack; this package is new,
// built in the teacher's dispatch-loop idiom (one struct driving a single
// large switch, as lfvm.steps does for instructions).
package debugstub

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/athenavm/athena-go/rvvm"
)

// Stub serves RSP packets against a single rvvm.DebugSession. It is
// strictly observational except for the breakpoint substitutions the
// protocol itself requests (spec.md §4.6: "must not perturb gas accounting
// outside of its own instruction substitutions").
type Stub struct {
	session *rvvm.DebugSession
}

// New returns a Stub driving session.
func New(session *rvvm.DebugSession) *Stub {
	return &Stub{session: session}
}

// Serve reads RSP packets from rw and writes replies until the client sends
// a detach ('D') command, the session terminates under continue/step, or rw
// returns an error. It never closes rw; the caller owns the connection.
func (s *Stub) Serve(rw io.ReadWriter) error {
	r := bufio.NewReader(rw)
	for {
		packet, err := readPacket(r)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if _, err := rw.Write([]byte{'+'}); err != nil {
			return err
		}
		reply, detach := s.dispatch(packet)
		if err := writePacket(rw, reply); err != nil {
			return err
		}
		if detach || s.session.Finished() {
			return nil
		}
	}
}

// dispatch handles one decoded packet body (without the '$'/checksum
// framing) and returns the reply body and whether the client asked to
// detach.
func (s *Stub) dispatch(packet string) (reply string, detach bool) {
	if packet == "" {
		return "", false
	}
	switch packet[0] {
	case 'g':
		return s.readRegisters(), false
	case 'G':
		return s.writeRegisters(packet[1:]), false
	case 'm':
		return s.readMemory(packet[1:]), false
	case 'M':
		return s.writeMemory(packet[1:]), false
	case 's':
		s.session.Step()
		return s.stopReply(), false
	case 'c':
		s.session.Continue()
		return s.stopReply(), false
	case 'Z':
		return s.setBreakpoint(packet[1:]), false
	case 'z':
		return s.clearBreakpoint(packet[1:]), false
	case '?':
		return s.stopReply(), false
	case 'D':
		return "OK", true
	default:
		return "", false // unsupported: empty reply per the RSP convention
	}
}

// readRegisters implements 'g': the 16-entry register file as a flat
// little-endian hex blob.
func (s *Stub) readRegisters() string {
	regs := s.session.Registers()
	var buf bytes.Buffer
	for _, r := range regs {
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], r)
		buf.Write(word[:])
	}
	return hex.EncodeToString(buf.Bytes())
}

// writeRegisters implements 'G<hex>': overwrite every register from a flat
// little-endian hex blob.
func (s *Stub) writeRegisters(hexBody string) string {
	raw, err := hex.DecodeString(hexBody)
	if err != nil || len(raw) != 4*16 {
		return "E01"
	}
	for i := 0; i < 16; i++ {
		v := binary.LittleEndian.Uint32(raw[4*i : 4*i+4])
		s.session.SetRegister(rvvm.Register(i), v)
	}
	return "OK"
}

// readMemory implements 'm<addr>,<len>' (addr and len in hex).
func (s *Stub) readMemory(args string) string {
	addr, n, ok := parseAddrLen(args)
	if !ok {
		return "E01"
	}
	data, ok := s.session.ReadMemory(addr, n)
	if !ok {
		return "E02"
	}
	return hex.EncodeToString(data)
}

// writeMemory implements 'M<addr>,<len>:<hexdata>'.
func (s *Stub) writeMemory(args string) string {
	head, hexData, found := strings.Cut(args, ":")
	if !found {
		return "E01"
	}
	addr, n, ok := parseAddrLen(head)
	if !ok {
		return "E01"
	}
	data, err := hex.DecodeString(hexData)
	if err != nil || len(data) != n {
		return "E01"
	}
	if !s.session.WriteMemory(addr, data) {
		return "E02"
	}
	return "OK"
}

// setBreakpoint implements 'Z0,<addr>,<kind>': only software breakpoints
// (type 0) are supported, matching spec.md §4.6's "software breakpoint by
// instruction replacement with EBREAK".
func (s *Stub) setBreakpoint(args string) string {
	addr, ok := parseBreakpointAddr(args)
	if !ok {
		return "E01"
	}
	if !s.session.SetBreakpoint(addr) {
		return "E02"
	}
	return "OK"
}

// clearBreakpoint implements 'z0,<addr>,<kind>'.
func (s *Stub) clearBreakpoint(args string) string {
	addr, ok := parseBreakpointAddr(args)
	if !ok {
		return "E01"
	}
	if !s.session.ClearBreakpoint(addr) {
		return "E02"
	}
	return "OK"
}

// stopReply reports the session's current state as an RSP stop-reply
// packet: "S05" (SIGTRAP) while still runnable, "W00" once it has reached a
// terminal status.
func (s *Stub) stopReply() string {
	if s.session.Finished() {
		return "W00"
	}
	return "S05"
}

func parseAddrLen(args string) (addr uint32, n int, ok bool) {
	addrHex, lenHex, found := strings.Cut(args, ",")
	if !found {
		return 0, 0, false
	}
	a, err := strconv.ParseUint(addrHex, 16, 32)
	if err != nil {
		return 0, 0, false
	}
	l, err := strconv.ParseUint(lenHex, 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint32(a), int(l), true
}

func parseBreakpointAddr(args string) (uint32, bool) {
	// args is "0,<addr>,<kind>": type byte, address, byte-width kind.
	parts := strings.Split(args, ",")
	if len(parts) < 2 || parts[0] != "0" {
		return 0, false
	}
	a, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(a), true
}

// readPacket reads one '$...#cc'-framed RSP packet, verifying its checksum,
// and returns the packet body without the framing. Leading bytes besides
// '$' (acks, interrupt bytes) are discarded.
func readPacket(r *bufio.Reader) (string, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '$' {
			break
		}
	}
	var body bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '#' {
			break
		}
		body.WriteByte(b)
	}
	var checksum [2]byte
	if _, err := io.ReadFull(r, checksum[:]); err != nil {
		return "", err
	}
	want, err := hex.DecodeString(string(checksum[:]))
	if err != nil || len(want) != 1 || want[0] != sum8(body.Bytes()) {
		return "", fmt.Errorf("debugstub: bad RSP checksum")
	}
	return body.String(), nil
}

// writePacket frames body as '$body#cc' with its computed checksum.
func writePacket(w io.Writer, body string) error {
	checksum := sum8([]byte(body))
	_, err := fmt.Fprintf(w, "$%s#%02x", body, checksum)
	return err
}

func sum8(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}
