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

import "encoding/binary"

// EncodeEnvelope builds a calldata envelope in the two-segment shape
// spec.md §6 describes as opaque to the VM (state_blob || payload),
// resolving spec.md §9's open framing question with a fixed choice: each
// segment behind its own 4-byte little-endian length prefix. The engine
// itself never parses this; it exists only to build realistic fixtures for
// the scenario tests in spec.md §8.
func EncodeEnvelope(stateBlob, payload []byte) []byte {
	buf := make([]byte, 0, 8+len(stateBlob)+len(payload))
	var lenBuf [4]byte

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(stateBlob)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, stateBlob...)

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, payload...)

	return buf
}

// DecodeEnvelope splits an envelope built by EncodeEnvelope back into its
// state-blob and payload segments, used by tests asserting a guest received
// exactly the bytes the host intended.
func DecodeEnvelope(envelope []byte) (stateBlob, payload []byte, ok bool) {
	if len(envelope) < 4 {
		return nil, nil, false
	}
	n := binary.LittleEndian.Uint32(envelope[0:4])
	if uint32(len(envelope)-4) < n {
		return nil, nil, false
	}
	stateBlob = envelope[4 : 4+n]
	rest := envelope[4+n:]

	if len(rest) < 4 {
		return nil, nil, false
	}
	m := binary.LittleEndian.Uint32(rest[0:4])
	if uint32(len(rest)-4) < m {
		return nil, nil, false
	}
	payload = rest[4 : 4+m]
	return stateBlob, payload, true
}
