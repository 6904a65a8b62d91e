// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package rvvm_test

import (
	"math/rand"
	"testing"

	"github.com/athenavm/athena-go/athena"
	"github.com/athenavm/athena-go/internal/testhost"
	"github.com/athenavm/athena-go/rvvm"
)

// TestRunRejectsBadELF matches spec.md §8 scenario 8: random bytes fed in as
// code must be rejected rather than crash the engine, either at load time
// (no recognizable ELF or raw-fast-path magic) or during decode (a
// recognizable image whose instruction stream happens to contain an
// undefined opcode).
func TestRunRejectsBadELF(t *testing.T) {
	state := testhost.NewState()
	var self athena.Address
	copy(self[:], "victim")

	garbage := []byte("this is not a valid RISC-V image in any shape")

	interp := rvvm.Interpreter{}
	result, err := interp.Run(athena.Parameters{
		Revision: athena.LatestStableRevision,
		Context:  testhost.NewHost(state, self),
		Message:  athena.Message{Recipient: self, Gas: 1_000},
		Code:     athena.Code(garbage),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Status != athena.Rejected && result.Status != athena.InvalidInstruction {
		t.Fatalf("status = %v, want Rejected or InvalidInstruction", result.Status)
	}
}

// TestRunSurvivesRandomBytes feeds a spread of deterministically-seeded
// random byte strings through Run, pinning the "MUST NOT crash" half of
// scenario 8 across inputs wider than one fixed string.
func TestRunSurvivesRandomBytes(t *testing.T) {
	state := testhost.NewState()
	var self athena.Address
	copy(self[:], "victim")

	rng := rand.New(rand.NewSource(1))
	interp := rvvm.Interpreter{}

	for i := 0; i < 64; i++ {
		buf := make([]byte, 4+rng.Intn(256))
		rng.Read(buf)

		result, err := interp.Run(athena.Parameters{
			Revision: athena.LatestStableRevision,
			Context:  testhost.NewHost(state, self),
			Message:  athena.Message{Recipient: self, Gas: 10_000},
			Code:     athena.Code(buf),
		})
		if err != nil {
			t.Fatalf("iteration %d: Run returned error: %v", i, err)
		}
		_ = result.Status // any status is acceptable; only a panic would fail this test
	}
}
