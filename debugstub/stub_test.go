// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package debugstub_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/athenavm/athena-go/athena"
	"github.com/athenavm/athena-go/debugstub"
	"github.com/athenavm/athena-go/internal/testhost"
	"github.com/athenavm/athena-go/rvvm"
)

// pipe is an io.ReadWriter splicing a scripted client's writes into one
// buffer and the stub's replies into another, letting the test drive
// Serve deterministically without a real socket.
type pipe struct {
	toStub  *bytes.Buffer
	toTest  *bytes.Buffer
}

func (p *pipe) Read(b []byte) (int, error)  { return p.toStub.Read(b) }
func (p *pipe) Write(b []byte) (int, error) { return p.toTest.Write(b) }

func rspPacket(body string) string {
	var sum byte
	for _, c := range []byte(body) {
		sum += c
	}
	return fmt.Sprintf("$%s#%02x", body, sum)
}

func TestStubReadRegistersAndDetach(t *testing.T) {
	var a testhost.Assembler
	a.Addi(testhost.A0, testhost.Zero, 42)
	a.Addi(testhost.T0, testhost.Zero, int32(rvvm.SyscallExit))
	a.Ecall()

	session, err := rvvm.NewDebugSession(athena.Parameters{
		Revision: athena.LatestStableRevision,
		Context:  testhost.NewHost(testhost.NewState(), athena.Address{}),
		Message:  athena.Message{Gas: 1000},
		Code:     a.Image(),
	})
	if err != nil {
		t.Fatalf("NewDebugSession returned error: %v", err)
	}

	p := &pipe{toStub: &bytes.Buffer{}, toTest: &bytes.Buffer{}}
	p.toStub.WriteString(rspPacket("s"))  // single step the first addi
	p.toStub.WriteString(rspPacket("g"))  // then read registers back
	p.toStub.WriteString(rspPacket("D"))  // detach

	stub := debugstub.New(session)
	if err := stub.Serve(p); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	out := p.toTest.String()
	if !bytes.Contains([]byte(out), []byte("OK")) {
		t.Fatalf("reply stream %q missing detach OK", out)
	}
}

func TestStubSetAndHitBreakpoint(t *testing.T) {
	var a testhost.Assembler
	a.Addi(testhost.A0, testhost.Zero, 1)
	a.Addi(testhost.A0, testhost.Zero, 2) // breakpoint here
	a.Addi(testhost.T0, testhost.Zero, int32(rvvm.SyscallExit))
	a.Ecall()

	session, err := rvvm.NewDebugSession(athena.Parameters{
		Revision: athena.LatestStableRevision,
		Context:  testhost.NewHost(testhost.NewState(), athena.Address{}),
		Message:  athena.Message{Gas: 1000},
		Code:     a.Image(),
	})
	if err != nil {
		t.Fatalf("NewDebugSession returned error: %v", err)
	}

	const breakpointAddr = 0x10000 + 4 // second instruction, raw text base + 4
	if !session.SetBreakpoint(breakpointAddr) {
		t.Fatalf("SetBreakpoint failed")
	}

	finished := session.Continue()
	if finished {
		t.Fatalf("Continue() reported finished, want halted at breakpoint")
	}
	if session.PC() != breakpointAddr {
		t.Fatalf("PC = %#x, want %#x (breakpoint address)", session.PC(), breakpointAddr)
	}

	if !session.ClearBreakpoint(breakpointAddr) {
		t.Fatalf("ClearBreakpoint failed")
	}
	// stepping now executes the restored addi instead of faulting on EBREAK.
	session.Step()
	regs := session.Registers()
	if regs[testhost.A0] != 2 {
		t.Fatalf("x%d = %d, want 2 after restored instruction", testhost.A0, regs[testhost.A0])
	}
}
