// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package driver implements the recursive execution driver described by
// spec.md §3 and §4.4's CALL syscall: it drives top-level transactions into
// the interpreter, and it is what a HostContext.Call implementation wires
// up to recurse into a fresh frame for a nested CALL.
package driver

import (
	"fmt"

	"github.com/athenavm/athena-go/athena"
)

// WorldState is the state-access surface the driver needs from the chain:
// account balances, code, and storage. It plays the role the Tosca
// WorldState interface plays for the EVM: a narrow, mockable boundary
// between the execution engine and whatever ledger backs it.
type WorldState interface {
	AccountExists(athena.Address) bool

	GetBalance(athena.Address) uint64
	SetBalance(athena.Address, uint64)

	GetCode(athena.Address) athena.Code
	GetCodeHash(athena.Address) athena.Word256

	GetStorage(athena.Address, athena.Key) athena.Word256
	SetStorage(athena.Address, athena.Key, athena.Word256) athena.StorageStatus

	GetBlockHash(height int64) athena.Word256

	// CreateSnapshot and RestoreSnapshot bound a single CALL's state
	// mutations so a failing nested call can be rolled back without
	// touching the caller's own pending writes (spec.md §3's "snapshot and
	// restore on revert/failure").
	CreateSnapshot() int
	RestoreSnapshot(int)

	// Spawn and Deploy create new accounts/code templates, per spec.md
	// §4.4's SPAWN and DEPLOY syscalls.
	Spawn(template []byte) (athena.Address, error)
	Deploy(code []byte) (athena.Address, error)
}

// ErrInsufficientBalance is returned by transferValue when the sender
// cannot cover the requested value transfer.
type ErrInsufficientBalance struct {
	Sender    athena.Address
	Balance   uint64
	Requested uint64
}

func (e *ErrInsufficientBalance) Error() string {
	return fmt.Sprintf("insufficient balance: sender %v has %d, requested %d", e.Sender, e.Balance, e.Requested)
}

// Driver executes Messages against a WorldState by constructing a HostContext
// bound to the current call and running them through the given interpreter
// (spec.md §3's "recursive execution driver that implements CALL by invoking
// itself again").
type Driver struct {
	Interpreter athena.Interpreter
	State       WorldState
	Tx          athena.TxContext
}

// Execute runs msg's code through the driver's interpreter, performing value
// transfer with snapshot/restore semantics exactly as floria.call does for
// the EVM: snapshot, transfer, run, and roll back the snapshot on transfer
// failure or a non-success result.
func (d *Driver) Execute(msg athena.Message) (athena.Result, error) {
	if msg.Depth > 0 && msg.Depth >= callDepthLimit {
		return athena.Result{Status: athena.CallDepthExceeded, GasLeft: msg.Gas}, nil
	}

	snapshot := d.State.CreateSnapshot()

	if msg.Value > 0 {
		if err := d.transferValue(msg.Sender, msg.Recipient, msg.Value); err != nil {
			d.State.RestoreSnapshot(snapshot)
			return athena.Result{Status: athena.InsufficientBalance}, nil
		}
	}

	code := d.State.GetCode(msg.Recipient)
	codeHash := d.State.GetCodeHash(msg.Recipient)

	host := &hostContext{driver: d, recipient: msg.Recipient, depth: msg.Depth}

	result, err := d.Interpreter.Run(athena.Parameters{
		Revision: athena.LatestStableRevision,
		Context:  host,
		Message:  msg,
		Code:     code,
		CodeHash: &codeHash,
		Tx:       d.Tx,
	})
	if err != nil || result.Status != athena.Success {
		d.State.RestoreSnapshot(snapshot)
	}

	return result, err
}

const callDepthLimit = 1024

func (d *Driver) transferValue(sender, recipient athena.Address, value uint64) error {
	balance := d.State.GetBalance(sender)
	if balance < value {
		return &ErrInsufficientBalance{Sender: sender, Balance: balance, Requested: value}
	}
	d.State.SetBalance(sender, balance-value)
	d.State.SetBalance(recipient, d.State.GetBalance(recipient)+value)
	return nil
}

// hostContext adapts a Driver and the executing frame's recipient/depth into
// an athena.HostContext, closing over the information a nested CALL needs
// to recurse back through Driver.Execute.
type hostContext struct {
	driver    *Driver
	recipient athena.Address
	depth     int
}

func (h *hostContext) AccountExists(addr athena.Address) bool {
	return h.driver.State.AccountExists(addr)
}

func (h *hostContext) GetStorage(addr athena.Address, key athena.Key) athena.Word256 {
	return h.driver.State.GetStorage(addr, key)
}

func (h *hostContext) SetStorage(addr athena.Address, key athena.Key, value athena.Word256) athena.StorageStatus {
	return h.driver.State.SetStorage(addr, key, value)
}

func (h *hostContext) GetBalance(addr athena.Address) uint64 {
	return h.driver.State.GetBalance(addr)
}

func (h *hostContext) GetTxContext() athena.TxContext {
	return h.driver.Tx
}

func (h *hostContext) GetBlockHash(height int64) athena.Word256 {
	return h.driver.State.GetBlockHash(height)
}

func (h *hostContext) Call(params athena.CallParameters) (athena.CallResult, error) {
	result, err := h.driver.Execute(athena.Message{
		Kind:      athena.CallKind,
		Depth:     params.Depth,
		Gas:       params.Gas,
		Recipient: params.Recipient,
		Sender:    params.Sender,
		Input:     params.Input,
		Value:     params.Value,
	})
	if err != nil {
		return athena.CallResult{}, err
	}
	return athena.CallResult{Status: result.Status, Output: result.Output, GasLeft: result.GasLeft}, nil
}

func (h *hostContext) Spawn(template []byte) (athena.Address, athena.Gas, error) {
	addr, err := h.driver.State.Spawn(template)
	if err != nil {
		return athena.Address{}, 0, err
	}
	return addr, 0, nil
}

func (h *hostContext) Deploy(code []byte) (athena.Address, athena.Gas, error) {
	addr, err := h.driver.State.Deploy(code)
	if err != nil {
		return athena.Address{}, 0, err
	}
	return addr, 0, nil
}
