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

import "fmt"

// ABIVersion is the stable ABI version number exposed by VMHandle, following
// spec.md §6's description of a stable `create()` entrypoint.
const ABIVersion = 1

// Capabilities is a bit-set describing what an engine implementation can do.
type Capabilities uint32

const (
	CapabilityRV32EM Capabilities = 1 << iota
	CapabilityDebugStub
)

// VMHandle is the stable entrypoint struct returned by Create(). It mirrors
// the C-ABI VM handle shape from spec.md §6: {abi_version, name, version,
// destroy, execute, get_capabilities, set_option}.
type VMHandle struct {
	ABIVersion      int
	Name            string
	Version         string
	interpreter     Interpreter
	capabilities    Capabilities
	options         map[string]string
}

// Create looks up the named Interpreter implementation and wraps it in a
// stable VMHandle. This is the Go rendering of spec.md §6's `create()`
// entrypoint.
func Create(name, version string, capabilities Capabilities) (*VMHandle, error) {
	interp, err := NewInterpreter(name)
	if err != nil {
		return nil, err
	}
	return &VMHandle{
		ABIVersion:   ABIVersion,
		Name:         name,
		Version:      version,
		interpreter:  interp,
		capabilities: capabilities,
		options:      map[string]string{},
	}, nil
}

// Destroy releases resources held by the handle. It is safe to call
// multiple times.
func (h *VMHandle) Destroy() {
	h.interpreter = nil
}

// Execute runs one call frame through the underlying interpreter, refusing
// any revision the handle does not implement with a Rejected status, per
// spec.md §6.
func (h *VMHandle) Execute(params Parameters) (Result, error) {
	if !params.Revision.IsSupported() {
		return Result{Status: Rejected}, &ErrUnsupportedRevision{Revision: params.Revision}
	}
	res, err := h.interpreter.Run(params)
	if err != nil {
		return Result{Status: InternalError}, err
	}
	return res, nil
}

// GetCapabilities reports the capability bit-set of this handle.
func (h *VMHandle) GetCapabilities() Capabilities {
	return h.capabilities
}

// SetOption configures an implementation-specific string option. Unknown
// options are accepted and simply recorded; implementations that care about
// a specific option read it back via Options().
func (h *VMHandle) SetOption(property, value string) error {
	if property == "" {
		return fmt.Errorf("invalid option: empty property name")
	}
	h.options[property] = value
	return nil
}

// Options returns a snapshot of the options configured via SetOption.
func (h *VMHandle) Options() map[string]string {
	out := make(map[string]string, len(h.options))
	for k, v := range h.options {
		out[k] = v
	}
	return out
}
