// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// athena-run loads a single RV32EM guest image (ELF or raw fast-path) and
// executes it through a single interpreter frame against a minimal
// standalone host, printing the resulting status, gas, and output. It has
// no notion of a chain or a persistent ledger: the host-side state store
// and chain driver are explicitly out of scope (spec.md §1), so recursive
// CALL, SPAWN, and DEPLOY are refused here rather than simulated.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/athenavm/athena-go/athena"
	"github.com/athenavm/athena-go/rvvm"
)

func main() {
	app := &cli.App{
		Name:      "athena-run",
		Usage:     "execute one RV32EM guest image through a single interpreter frame",
		Copyright: "(c) 2024 Fantom Foundation",
		ArgsUsage: "<image-file>",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "gas",
				Usage: "gas budget for the run",
				Value: 1_000_000,
			},
			&cli.StringFlag{
				Name:  "input",
				Usage: "hex-encoded calldata, delivered to the guest via fd 0 (READ)",
			},
			&cli.Uint64Flag{
				Name:  "balance",
				Usage: "balance reported to the guest by GETBALANCE",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one image file argument", 1)
	}

	image, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return err
	}

	input, err := hex.DecodeString(c.String("input"))
	if err != nil {
		return fmt.Errorf("invalid --input hex: %w", err)
	}

	host := &standaloneHost{balance: c.Uint64("balance")}

	interp := rvvm.Interpreter{}
	result, err := interp.Run(athena.Parameters{
		Revision: athena.LatestStableRevision,
		Context:  host,
		Message:  athena.Message{Gas: athena.Gas(c.Uint64("gas")), Input: athena.Data(input)},
		Code:     athena.Code(image),
	})
	if err != nil {
		return err
	}

	fmt.Printf("status:   %s\n", result.Status)
	fmt.Printf("gas_left: %d\n", result.GasLeft)
	fmt.Printf("output:   %s\n", hex.EncodeToString(result.Output))
	return nil
}

// standaloneHost is the fixed-balance, storage-less HostContext a single
// athena-run invocation runs its guest against. It has no ledger of its
// own: GetStorage always reads zero, SetStorage is accepted but discarded,
// and CALL/SPAWN/DEPLOY all report Failure rather than simulating a second
// account, since there is no second account to simulate.
type standaloneHost struct {
	balance uint64
}

func (h *standaloneHost) AccountExists(athena.Address) bool { return true }

func (h *standaloneHost) GetStorage(athena.Address, athena.Key) athena.Word256 {
	return athena.Word256{}
}

func (h *standaloneHost) SetStorage(athena.Address, athena.Key, athena.Word256) athena.StorageStatus {
	return athena.StorageAssigned
}

func (h *standaloneHost) GetBalance(athena.Address) uint64 { return h.balance }

func (h *standaloneHost) GetTxContext() athena.TxContext { return athena.TxContext{} }

func (h *standaloneHost) GetBlockHash(int64) athena.Word256 { return athena.Word256{} }

func (h *standaloneHost) Call(athena.CallParameters) (athena.CallResult, error) {
	return athena.CallResult{Status: athena.Failure}, nil
}

func (h *standaloneHost) Spawn([]byte) (athena.Address, athena.Gas, error) {
	return athena.Address{}, 0, fmt.Errorf("athena-run: SPAWN requires a chain driver, none is attached")
}

func (h *standaloneHost) Deploy([]byte) (athena.Address, athena.Gas, error) {
	return athena.Address{}, 0, fmt.Errorf("athena-run: DEPLOY requires a chain driver, none is attached")
}
