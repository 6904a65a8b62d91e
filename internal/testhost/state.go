// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package testhost provides an in-memory driver.WorldState used by the
// interpreter and driver test suites, playing the role the integration
// test package's "WorldState" scenario context plays for Tosca: a minimal,
// journaled implementation good enough to exercise CreateSnapshot/
// RestoreSnapshot semantics without a real ledger.
package testhost

import (
	"fmt"

	"github.com/athenavm/athena-go/athena"
)

type storageKey struct {
	addr athena.Address
	key  athena.Key
}

// State is a journaled in-memory implementation of driver.WorldState.
// Every mutation pushes an undo closure onto the journal; RestoreSnapshot
// replays the journal backward to the recorded length, following the same
// "CreateSnapshot returns a journal length, RestoreSnapshot rewinds to it"
// shape used throughout the teacher's state-access layers.
type State struct {
	balances map[athena.Address]uint64
	code     map[athena.Address]athena.Code
	storage  map[storageKey]athena.Word256
	accounts map[athena.Address]bool
	nextAddr uint64

	blockHashes map[int64]athena.Word256

	journal []func()
}

// NewState returns an empty state with no accounts.
func NewState() *State {
	return &State{
		balances:    map[athena.Address]uint64{},
		code:        map[athena.Address]athena.Code{},
		storage:     map[storageKey]athena.Word256{},
		accounts:    map[athena.Address]bool{},
		blockHashes: map[int64]athena.Word256{},
	}
}

func (s *State) touch(addr athena.Address) {
	if !s.accounts[addr] {
		s.accounts[addr] = true
		s.journal = append(s.journal, func() { delete(s.accounts, addr) })
	}
}

func (s *State) AccountExists(addr athena.Address) bool {
	return s.accounts[addr]
}

func (s *State) GetBalance(addr athena.Address) uint64 {
	return s.balances[addr]
}

func (s *State) SetBalance(addr athena.Address, value uint64) {
	s.touch(addr)
	old, had := s.balances[addr]
	s.journal = append(s.journal, func() {
		if had {
			s.balances[addr] = old
		} else {
			delete(s.balances, addr)
		}
	})
	s.balances[addr] = value
}

func (s *State) GetCode(addr athena.Address) athena.Code {
	return s.code[addr]
}

func (s *State) GetCodeHash(addr athena.Address) athena.Word256 {
	code := s.code[addr]
	if len(code) == 0 {
		return athena.Word256{}
	}
	var h athena.Word256
	copy(h[:], code)
	return h
}

// SetCode installs addr's code, used directly by tests (and by Spawn/Deploy)
// to seed a contract without going through the syscall ABI.
func (s *State) SetCode(addr athena.Address, code athena.Code) {
	s.touch(addr)
	old, had := s.code[addr]
	s.journal = append(s.journal, func() {
		if had {
			s.code[addr] = old
		} else {
			delete(s.code, addr)
		}
	})
	s.code[addr] = code
}

func (s *State) GetStorage(addr athena.Address, key athena.Key) athena.Word256 {
	return s.storage[storageKey{addr, key}]
}

func (s *State) SetStorage(addr athena.Address, key athena.Key, value athena.Word256) athena.StorageStatus {
	k := storageKey{addr, key}
	original := s.storage[k]
	status := classify(original, original, value)

	old, had := s.storage[k]
	s.journal = append(s.journal, func() {
		if had {
			s.storage[k] = old
		} else {
			delete(s.storage, k)
		}
	})
	if value == (athena.Word256{}) {
		delete(s.storage, k)
	} else {
		s.storage[k] = value
	}
	return status
}

// classify maps (original, current, new) onto the StorageStatus taxonomy of
// spec.md §3/§7, producing only four of its nine values: Assigned, Added,
// Deleted and Modified. This simplified single-step model
// treats "current" as equal to "original" since the test host does not
// track a separate per-transaction original snapshot distinct from its
// journal; it is sufficient to exercise the distinct Added/Modified/Deleted
// transitions the gas table keys off of.
//
// Comparisons go through uint256 rather than [32]byte equality: storage
// values are numeric words, and the gas taxonomy cares about their zero/
// nonzero/equal relationship as integers, not their byte representation.
func classify(original, current, next athena.Word256) athena.StorageStatus {
	currentInt := current.ToUint256()
	nextInt := next.ToUint256()
	switch {
	case currentInt.Eq(nextInt):
		return athena.StorageAssigned
	case currentInt.IsZero():
		return athena.StorageAdded
	case nextInt.IsZero():
		return athena.StorageDeleted
	default:
		return athena.StorageModified
	}
}

func (s *State) GetBlockHash(height int64) athena.Word256 {
	return s.blockHashes[height]
}

// SetBlockHash seeds a block hash for GET_BLOCK_HASH tests.
func (s *State) SetBlockHash(height int64, hash athena.Word256) {
	s.blockHashes[height] = hash
}

func (s *State) CreateSnapshot() int {
	return len(s.journal)
}

func (s *State) RestoreSnapshot(mark int) {
	for i := len(s.journal) - 1; i >= mark; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:mark]
}

func (s *State) Spawn(template []byte) (athena.Address, error) {
	addr := s.allocateAddress()
	s.SetCode(addr, athena.Code(template))
	return addr, nil
}

func (s *State) Deploy(code []byte) (athena.Address, error) {
	addr := s.allocateAddress()
	s.SetCode(addr, athena.Code(code))
	return addr, nil
}

func (s *State) allocateAddress() athena.Address {
	s.nextAddr++
	var addr athena.Address
	id := fmt.Sprintf("%024d", s.nextAddr)
	copy(addr[:], id)
	return addr
}
