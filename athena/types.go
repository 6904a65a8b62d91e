// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package athena is the official public interface of the Athena project: a
// deterministic RV32EM smart-contract execution engine. Client code (the
// host/chain driver) uses this package to obtain a VirtualMachine and to
// describe the messages it executes against it.
package athena

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// Address is the 24-byte opaque account identifier used throughout Athena.
// Equality and ordering are byte-wise; addresses are chain-supplied and
// deterministic.
type Address [24]byte

func (a Address) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

// Key represents the 256-bit key of a storage slot.
type Key [32]byte

func (k Key) String() string {
	return fmt.Sprintf("0x%x", k[:])
}

// Word256 is a 32-byte big-endian blob used for storage values and chain IDs.
type Word256 [32]byte

func (w Word256) String() string {
	return fmt.Sprintf("0x%x", w[:])
}

// ToUint256 interprets the word as a big-endian 256-bit unsigned integer.
func (w Word256) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes(w[:])
}

// Word256FromUint256 converts a *uint256.Int to a Word256. A nil input
// yields the zero word.
func Word256FromUint256(v *uint256.Int) (result Word256) {
	if v == nil {
		return result
	}
	return v.Bytes32()
}

// Word32 is a 32-bit little-endian integer, as stored in guest registers and
// guest memory words.
type Word32 uint32

// Code is the byte-code of a contract (an ELF image or raw text image).
type Code []byte

// Data represents opaque input or output bytes of a contract invocation.
type Data []byte

// Gas is the type used to represent gas values. It is signed so that
// decrement-and-check can detect exhaustion without a separate comparison.
type Gas int64

// StorageStatus classifies the effect of a single SetStorage call on a
// storage slot within the current transaction, mirroring the established
// Ethereum net-storage-cost taxonomy referenced by spec.md §3.
type StorageStatus int

const (
	// <original> -> <current> -> <new>, X/Y/Z non-zero and distinct, 0 is zero.
	StorageAssigned         StorageStatus = iota
	StorageAdded                          // 0 -> 0 -> Z
	StorageDeleted                        // X -> X -> 0
	StorageModified                       // X -> X -> Z
	StorageDeletedAdded                   // X -> 0 -> Z
	StorageModifiedDeleted                // X -> Y -> 0
	StorageDeletedRestored                // X -> 0 -> X
	StorageAddedDeleted                   // 0 -> Y -> 0
	StorageModifiedRestored               // X -> Y -> X
)

func (s StorageStatus) String() string {
	switch s {
	case StorageAssigned:
		return "StorageAssigned"
	case StorageAdded:
		return "StorageAdded"
	case StorageDeleted:
		return "StorageDeleted"
	case StorageModified:
		return "StorageModified"
	case StorageDeletedAdded:
		return "StorageDeletedAdded"
	case StorageModifiedDeleted:
		return "StorageModifiedDeleted"
	case StorageDeletedRestored:
		return "StorageDeletedRestored"
	case StorageAddedDeleted:
		return "StorageAddedDeleted"
	case StorageModifiedRestored:
		return "StorageModifiedRestored"
	default:
		return fmt.Sprintf("StorageStatus(%d)", int(s))
	}
}

// MessageKind enumerates the closed set of driver message kinds. Athena
// currently defines a single variant, CALL, as specified by spec.md §3.
type MessageKind int

const (
	CallKind MessageKind = iota
)

func (k MessageKind) String() string {
	switch k {
	case CallKind:
		return "call"
	default:
		return fmt.Sprintf("MessageKind(%d)", int(k))
	}
}

// Message is the input to the execution driver.
type Message struct {
	Kind           MessageKind
	Depth          int
	Gas            Gas
	Recipient      Address
	Sender         Address
	SenderTemplate Address
	Input          Data
	Value          uint64
}

// TxContext is chain/transaction context supplied by the host on demand via
// the GET_CONTEXT syscall. The 88-byte wire layout is: GasPrice(8) |
// Origin(24) | BlockHeight(8) | BlockTimestamp(8) | BlockGasLimit(8) |
// ChainID(32).
type TxContext struct {
	GasPrice        uint64
	Origin          Address
	BlockHeight     int64
	BlockTimestamp  int64
	BlockGasLimit   int64
	ChainID         Word256
}

// TxContextWireSize is the fixed serialized size of a TxContext record as
// delivered to the guest by GET_CONTEXT.
const TxContextWireSize = 8 + 24 + 8 + 8 + 8 + 32

// MarshalBinary serializes the context in the little-endian layout the
// guest ABI expects for integer fields; Address and Word256 are copied
// verbatim (they are already defined as big-endian/opaque byte blobs).
func (c TxContext) MarshalBinary() ([]byte, error) {
	buf := make([]byte, TxContextWireSize)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], c.GasPrice)
	off += 8
	copy(buf[off:], c.Origin[:])
	off += len(c.Origin)
	binary.LittleEndian.PutUint64(buf[off:], uint64(c.BlockHeight))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(c.BlockTimestamp))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(c.BlockGasLimit))
	off += 8
	copy(buf[off:], c.ChainID[:])
	return buf, nil
}

// Result summarizes the outcome of a driver execution.
type Result struct {
	Status  StatusCode
	GasLeft Gas
	Output  Data
}
