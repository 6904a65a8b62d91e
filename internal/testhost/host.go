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

import (
	"github.com/athenavm/athena-go/athena"
	"github.com/athenavm/athena-go/driver"
)

// Host adapts a *State into an athena.HostContext bound to one executing
// account (self), used directly by interpreter-level unit tests that don't
// need a full Driver (no recursive CALL). Tests exercising CALL construct a
// driver.Driver against the same State instead.
type Host struct {
	state *State
	self  athena.Address
	tx    athena.TxContext
	d     *driver.Driver
}

// NewHost returns a Host bound to self, with no recursive-call capability
// (Call reports a Failure status) and a zero TxContext.
func NewHost(state *State, self athena.Address) *Host {
	return &Host{state: state, self: self}
}

// NewHostWithDriver returns a Host whose Call recurses through d, used by
// tests exercising the recursive CALL syscall end to end.
func NewHostWithDriver(state *State, self athena.Address, d *driver.Driver, tx athena.TxContext) *Host {
	return &Host{state: state, self: self, d: d, tx: tx}
}

func (h *Host) AccountExists(addr athena.Address) bool {
	return h.state.AccountExists(addr)
}

func (h *Host) GetStorage(addr athena.Address, key athena.Key) athena.Word256 {
	return h.state.GetStorage(addr, key)
}

func (h *Host) SetStorage(addr athena.Address, key athena.Key, value athena.Word256) athena.StorageStatus {
	return h.state.SetStorage(addr, key, value)
}

func (h *Host) GetBalance(addr athena.Address) uint64 {
	return h.state.GetBalance(addr)
}

func (h *Host) GetTxContext() athena.TxContext {
	return h.tx
}

func (h *Host) GetBlockHash(height int64) athena.Word256 {
	return h.state.GetBlockHash(height)
}

func (h *Host) Call(params athena.CallParameters) (athena.CallResult, error) {
	if h.d == nil {
		return athena.CallResult{Status: athena.Failure}, nil
	}
	result, err := h.d.Execute(athena.Message{
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

func (h *Host) Spawn(template []byte) (athena.Address, athena.Gas, error) {
	addr, err := h.state.Spawn(template)
	return addr, 0, err
}

func (h *Host) Deploy(code []byte) (athena.Address, athena.Gas, error) {
	addr, err := h.state.Deploy(code)
	return addr, 0, err
}
