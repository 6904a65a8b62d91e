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
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
)

// This file provides a registry for Interpreter implementations in Athena.
//
// The registry is intended to be used by all client applications that would
// like to use interpreter services. For an implementation to be available
// it needs to be registered; typically this registration happens in the
// init() of the package providing the implementation (see rvvm's package
// init), so that importing an implementation package makes it available
// here.

// InterpreterFactory is the type of a function that creates a new
// Interpreter using an implementation-specific configuration.
type InterpreterFactory func(config any) (Interpreter, error)

var (
	registryLock sync.Mutex
	registry     = map[string]InterpreterFactory{}
)

// RegisterInterpreterFactory registers a new Interpreter implementation to
// be exported for general use in the binary. The name is not case-sensitive;
// a panic is triggered if a factory was already bound to the name, or if the
// factory is nil.
func RegisterInterpreterFactory(name string, factory InterpreterFactory) {
	key := strings.ToLower(name)
	if factory == nil {
		panic(fmt.Sprintf("invalid initialization: cannot register nil-factory using `%s`", key))
	}
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, found := registry[key]; found {
		panic(fmt.Sprintf("invalid initialization: multiple factories registered for `%s`", key))
	}
	registry[key] = factory
}

// NewInterpreter performs a case-insensitive lookup of name in the registry
// and creates a new Interpreter using the given optional configuration.
func NewInterpreter(name string, config ...any) (Interpreter, error) {
	if len(config) > 1 {
		return nil, fmt.Errorf("invalid configuration: too many arguments")
	}
	factory := getFactory(name)
	if factory == nil {
		return nil, fmt.Errorf("interpreter not found: %s", name)
	}
	var c any
	if len(config) > 0 {
		c = config[0]
	}
	return factory(c)
}

// GetVirtualMachine is the client-facing lookup used to obtain an engine
// instance, mirroring spec.md §6's create() entrypoint at the package level.
// It returns nil if no implementation was registered under name.
func GetVirtualMachine(name string) Interpreter {
	vm, err := NewInterpreter(name)
	if err != nil {
		return nil
	}
	return vm
}

func getFactory(name string) InterpreterFactory {
	registryLock.Lock()
	defer registryLock.Unlock()
	return registry[strings.ToLower(name)]
}

// GetAllRegisteredInterpreters returns a snapshot of all registered
// implementation names mapped to their factories.
func GetAllRegisteredInterpreters() map[string]InterpreterFactory {
	registryLock.Lock()
	defer registryLock.Unlock()
	return maps.Clone(registry)
}
