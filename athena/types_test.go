// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package athena

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestWord256_ToUint256Conversion(t *testing.T) {
	tests := []struct {
		word    Word256
		uint256 *uint256.Int
	}{
		{Word256{}, uint256.NewInt(0)},
		{Word256{31: 1}, uint256.NewInt(1)},
		{Word256{31: 2}, uint256.NewInt(2)},
		{Word256{0: 128}, new(uint256.Int).Lsh(uint256.NewInt(1), 255)},
	}

	for _, test := range tests {
		t.Run(test.uint256.String(), func(t *testing.T) {
			if want, got := test.uint256, test.word.ToUint256(); !want.Eq(got) {
				t.Errorf("unexpected uint256.Int conversion, wanted %v, got %v", want, got)
			}
		})
	}
}

// TestWord256FromUint256RoundTrip confirms Word256FromUint256 is the exact
// inverse of ToUint256, the conversion direction used when a syscall result
// computed as a uint256.Int (e.g. a storage value derived from arithmetic
// on an existing word) needs to be written back as a Word256.
func TestWord256FromUint256RoundTrip(t *testing.T) {
	tests := []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(1),
		uint256.NewInt(12345),
		new(uint256.Int).Lsh(uint256.NewInt(1), 255),
	}

	for _, v := range tests {
		t.Run(v.String(), func(t *testing.T) {
			word := Word256FromUint256(v)
			if got := word.ToUint256(); !v.Eq(got) {
				t.Errorf("round trip mismatch: wanted %v, got %v", v, got)
			}
		})
	}
}

func TestWord256FromUint256_NilYieldsZero(t *testing.T) {
	if got := Word256FromUint256(nil); got != (Word256{}) {
		t.Errorf("Word256FromUint256(nil) = %v, want zero word", got)
	}
}
