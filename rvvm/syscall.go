// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package rvvm

import (
	"github.com/athenavm/athena-go/athena"
)

// Syscall numbers carried in t0/x5 at ECALL, per spec.md §4.4. SyscallExit
// is this engine's own resolution of the "exit syscall" the fetch/decode/
// execute loop is specified to run until (spec.md §3's data-flow
// paragraph): the syscall table as given lists no explicit terminator, so
// Athena defines number 1 for it, alongside the listed ten.
const (
	SyscallExit         uint32 = 1
	SyscallWrite        uint32 = 2
	SyscallRead         uint32 = 3
	SyscallGetStorage   uint32 = 0xA0
	SyscallSetStorage   uint32 = 0xA1
	SyscallGetBalance   uint32 = 0xA3
	SyscallCall         uint32 = 0xA4
	SyscallSpawn        uint32 = 0xA5
	SyscallDeploy       uint32 = 0xA6
	SyscallGetContext   uint32 = 0xA7
	SyscallGetBlockHash uint32 = 0xA8
)

// Exit reasons for SyscallExit's sole argument (a0).
const (
	ExitReturn uint32 = 0
	ExitRevert uint32 = 1
)

// argument/return registers, per the ABI in spec.md §4.4: t0 (x5) carries
// the syscall number, a0-a3 (x10-x13) carry up to four arguments, and a0
// carries the single return value.
const (
	regSyscallNo = Register(5)
	regA0        = Register(10)
	regA1        = Register(11)
	regA2        = Register(12)
	regA3        = Register(13)
)

// dispatchSyscall implements the ECALL syscall protocol of spec.md §4.4:
// charge the fixed and variable gas for the requested syscall, read any
// argument buffers out of guest memory, invoke the host, write results back
// into guest memory and a0, and fault on any malformed argument or
// out-of-bounds access. It never advances the PC itself; the run loop's
// default pc += 4 applies to ECALL like any other instruction.
func dispatchSyscall(f *frame) {
	if !f.useGas(SyscallBaseCost) {
		return
	}

	switch f.regs.Get(regSyscallNo) {
	case SyscallExit:
		sysExit(f)
	case SyscallWrite:
		sysWrite(f)
	case SyscallRead:
		sysRead(f)
	case SyscallGetStorage:
		sysGetStorage(f)
	case SyscallSetStorage:
		sysSetStorage(f)
	case SyscallGetBalance:
		sysGetBalance(f)
	case SyscallCall:
		sysCall(f)
	case SyscallSpawn:
		sysSpawn(f)
	case SyscallDeploy:
		sysDeploy(f)
	case SyscallGetContext:
		sysGetContext(f)
	case SyscallGetBlockHash:
		sysGetBlockHash(f)
	default:
		f.fault(athena.InvalidSyscallArgument)
	}
}

// sysExit implements the SyscallExit terminator: a0 selects ExitReturn
// (normal success, any accumulated output via WRITE(fd=3) is kept) or
// ExitRevert (output kept, status REVERT, unused gas still returned per
// spec.md §7's "Revert... identical to a fault for control purposes, except
// any output produced up to the revert is preserved").
func sysExit(f *frame) {
	switch f.regs.Get(regA0) {
	case ExitRevert:
		f.status = statusReverted
	default:
		f.status = statusReturned
	}
}

// sysWrite implements WRITE(fd, ptr, len): fd 1 (stdout) and 2 (stderr) are
// accepted and discarded (the engine has no console of its own); fd 3
// ("output-to-caller") appends the bytes to f.output, which becomes the
// frame's Result.Output when the frame exits with ExitReturn or ExitRevert.
func sysWrite(f *frame) {
	fd := f.regs.Get(regA0)
	ptr := f.regs.Get(regA1)
	length := f.regs.Get(regA2)

	if fd != 1 && fd != 2 && fd != 3 {
		f.fault(athena.InvalidSyscallArgument)
		return
	}
	if !f.useGas(SyscallWriteCostPerByte * athena.Gas(length)) {
		return
	}
	data, ok := f.mem.ReadBytes(ptr, int(length))
	if !ok {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
	if fd == 3 {
		f.output = append(f.output, data...)
	}
	f.regs.Set(regA0, length)
}

// sysRead implements READ(fd, ptr, len): fd must be 0 (stdin), backed by
// f.stdin, the calldata envelope handed to Run in params.Message.Input.
// Reading past the end of the channel faults with InsufficientInput, per
// spec.md §4.4, rather than returning a short count.
func sysRead(f *frame) {
	fd := f.regs.Get(regA0)
	ptr := f.regs.Get(regA1)
	length := int(f.regs.Get(regA2))

	if fd != 0 {
		f.fault(athena.InvalidSyscallArgument)
		return
	}
	if !f.useGas(SyscallReadCostPerByte * athena.Gas(length)) {
		return
	}

	remaining := len(f.stdin) - f.stdinPos
	if remaining < 0 {
		remaining = 0
	}
	if length > remaining {
		f.fault(athena.InsufficientInput)
		return
	}
	if length > 0 {
		if !f.mem.WriteBytes(ptr, f.stdin[f.stdinPos:f.stdinPos+length]) {
			f.fault(athena.InvalidMemoryAccess)
			return
		}
		f.stdinPos += length
	}
	f.regs.Set(regA0, uint32(length))
}

// sysGetStorage implements GET_STORAGE(key_ptr, value_ptr): reads a 32-byte
// key from guest memory, asks the host for the associated 32-byte value,
// writes it back into guest memory.
func sysGetStorage(f *frame) {
	if !f.useGas(SyscallGetStorageCost) {
		return
	}
	keyPtr := f.regs.Get(regA0)
	valuePtr := f.regs.Get(regA1)

	keyBytes, ok := f.mem.ReadBytes(keyPtr, 32)
	if !ok {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
	var key athena.Key
	copy(key[:], keyBytes)

	value := f.host.GetStorage(f.recipient, key)
	if !f.mem.WriteBytes(valuePtr, value[:]) {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
}

// sysSetStorage implements SET_STORAGE(key_ptr, value_ptr): reads a 32-byte
// key and a 32-byte value, asks the host to install it, and charges gas
// according to the StorageStatus transition the host reports (spec.md §4.4,
// §7's 9-way taxonomy).
func sysSetStorage(f *frame) {
	keyPtr := f.regs.Get(regA0)
	valuePtr := f.regs.Get(regA1)

	keyBytes, ok := f.mem.ReadBytes(keyPtr, 32)
	if !ok {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
	valueBytes, ok := f.mem.ReadBytes(valuePtr, 32)
	if !ok {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
	var key athena.Key
	var value athena.Word256
	copy(key[:], keyBytes)
	copy(value[:], valueBytes)

	status := f.host.SetStorage(f.recipient, key, value)
	if !f.useGas(SetStorageGasCost(status)) {
		return
	}
	f.regs.Set(regA0, uint32(status))
}

// sysGetBalance implements GETBALANCE(ptr): writes the currently executing
// account's balance, as an 8-byte little-endian u64, to ptr. There is no
// address argument: GETBALANCE only ever reports the running frame's own
// balance (spec.md §4.4/§8 scenario 1).
func sysGetBalance(f *frame) {
	if !f.useGas(SyscallGetBalanceCost) {
		return
	}
	ptr := f.regs.Get(regA0)
	balance := f.host.GetBalance(f.recipient)

	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(balance >> (8 * i))
	}
	if !f.mem.WriteBytes(ptr, buf[:]) {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
}

// sysGetContext implements GET_CONTEXT(ptr): serializes the transaction
// context into the athena.TxContextWireSize-byte wire format and writes it
// to guest memory at ptr.
func sysGetContext(f *frame) {
	if !f.useGas(SyscallGetContextCost) {
		return
	}
	ptr := f.regs.Get(regA0)
	buf, err := f.tx.MarshalBinary()
	if err != nil {
		f.fault(athena.InternalError)
		return
	}
	if !f.mem.WriteBytes(ptr, buf) {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
}

// sysGetBlockHash implements GET_BLOCK_HASH(height, out_ptr): asks the host
// for the hash of the given block height and writes the 32-byte result.
func sysGetBlockHash(f *frame) {
	if !f.useGas(SyscallGetBlockHashCost) {
		return
	}
	height := int64(int32(f.regs.Get(regA0)))
	outPtr := f.regs.Get(regA1)

	hash := f.host.GetBlockHash(height)
	if !f.mem.WriteBytes(outPtr, hash[:]) {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
}

// sysCall implements CALL(addr_ptr, input_ptr, input_len, args_ptr), where
// args_ptr points to a callArgs record (value, gas_limit, output_ptr,
// output_cap, output_len_ptr): reads the callee address, the input buffer,
// and the value to transfer, then recurses into the host's
// Call, which applies the CallDepthLimit and value-transfer/snapshot rules
// (spec.md §4.4, §3's recursive CALL driver). The host returns a gas_left
// the guest never pays more than it supplied as gas_limit.
func sysCall(f *frame) {
	if !f.useGas(SyscallCallBaseCost) {
		return
	}
	addrPtr := f.regs.Get(regA0)
	inputPtr := f.regs.Get(regA1)
	inputLen := f.regs.Get(regA2)
	argsPtr := f.regs.Get(regA3)

	addrBytes, ok := f.mem.ReadBytes(addrPtr, len(athena.Address{}))
	if !ok {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
	var addr athena.Address
	copy(addr[:], addrBytes)

	input, ok := f.mem.ReadBytes(inputPtr, int(inputLen))
	if !ok {
		f.fault(athena.InvalidMemoryAccess)
		return
	}

	args, ok := readCallArgs(f, argsPtr)
	if !ok {
		f.fault(athena.InvalidMemoryAccess)
		return
	}

	if f.depth+1 > CallDepthLimit {
		f.regs.Set(regA0, uint32(athena.CallDepthExceeded))
		return
	}

	gasLimit := athena.Gas(args.gasLimit)
	if gasLimit > f.gas {
		gasLimit = f.gas
	}

	result, err := f.host.Call(athena.CallParameters{
		Recipient: addr,
		Sender:    f.recipient,
		Input:     input,
		Value:     args.value,
		Gas:       gasLimit,
		Depth:     f.depth + 1,
	})
	if err != nil {
		f.fault(athena.InternalError)
		return
	}

	f.gas = f.gas - gasLimit + result.GasLeft

	n := uint32(len(result.Output))
	if n > args.outputCap {
		n = args.outputCap
	}
	if n > 0 && !f.mem.WriteBytes(args.outputPtr, result.Output[:n]) {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
	if args.outputLenPtr != 0 && !f.mem.StoreWord(args.outputLenPtr, n) {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
	f.regs.Set(regA0, uint32(result.Status))
}

// callArgs is the out-of-band argument record CALL reads through a3, since
// the five logical arguments of spec.md §4.4's CALL ("(recipient, input_ptr,
// input_len, value, gas_limit) -> (status, output_ptr_out, output_len_out)")
// do not fit in the four a0-a3 registers: a0-a2 carry recipient/input_ptr/
// input_len directly, and a3 points to this 28-byte little-endian record
// carrying the remaining fields plus the two output-direction fields.
type callArgs struct {
	value        uint64
	gasLimit     uint64
	outputPtr    uint32
	outputCap    uint32
	outputLenPtr uint32
}

const callArgsWireSize = 8 + 8 + 4 + 4 + 4

func readCallArgs(f *frame, ptr uint32) (callArgs, bool) {
	buf, ok := f.mem.ReadBytes(ptr, callArgsWireSize)
	if !ok {
		return callArgs{}, false
	}
	return callArgs{
		value:        bytesToUint64(buf[0:8]),
		gasLimit:     bytesToUint64(buf[8:16]),
		outputPtr:    bytesToUint32(buf[16:20]),
		outputCap:    bytesToUint32(buf[20:24]),
		outputLenPtr: bytesToUint32(buf[24:28]),
	}, true
}

func bytesToUint32(b []byte) uint32 {
	var v uint32
	for i := 0; i < 4 && i < len(b); i++ {
		v |= uint32(b[i]) << (8 * i)
	}
	return v
}

// sysSpawn implements SPAWN(template_ptr, template_len, out_ptr): asks the
// host to instantiate a new account from a template image, charges the gas
// the host reports for the operation, and writes the new 24-byte address to
// out_ptr (a2); a0 carries the status.
func sysSpawn(f *frame) {
	if !f.useGas(SyscallSpawnBaseCost) {
		return
	}
	templatePtr := f.regs.Get(regA0)
	templateLen := f.regs.Get(regA1)
	outPtr := f.regs.Get(regA2)

	template, ok := f.mem.ReadBytes(templatePtr, int(templateLen))
	if !ok {
		f.fault(athena.InvalidMemoryAccess)
		return
	}

	addr, charge, err := f.host.Spawn(template)
	if err != nil {
		f.regs.Set(regA0, uint32(athena.Failure))
		return
	}
	if !f.useGas(charge) {
		return
	}
	if !f.mem.WriteBytes(outPtr, addr[:]) {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
	f.regs.Set(regA0, uint32(athena.Success))
}

// sysDeploy implements DEPLOY(code_ptr, code_len, out_ptr): asks the host to
// deploy a new code template, billing SyscallDeployBaseCostPerByte per byte
// of code on top of the fixed ECALL charge, per spec.md §4.4, plus the gas
// the host reports for the operation, and writes the new address to out_ptr.
func sysDeploy(f *frame) {
	codePtr := f.regs.Get(regA0)
	codeLen := f.regs.Get(regA1)
	outPtr := f.regs.Get(regA2)

	if !f.useGas(SyscallDeployBaseCostPerByte * athena.Gas(codeLen)) {
		return
	}

	code, ok := f.mem.ReadBytes(codePtr, int(codeLen))
	if !ok {
		f.fault(athena.InvalidMemoryAccess)
		return
	}

	addr, charge, err := f.host.Deploy(code)
	if err != nil {
		f.regs.Set(regA0, uint32(athena.Failure))
		return
	}
	if !f.useGas(charge) {
		return
	}
	if !f.mem.WriteBytes(outPtr, addr[:]) {
		f.fault(athena.InvalidMemoryAccess)
		return
	}
	f.regs.Set(regA0, uint32(athena.Success))
}

func bytesToUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
