/*
   CPU: RV64IM instruction fetch, execute and trap handling.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

package cpu

import (
	"github.com/rcornwell/rv64core/emu/csr"
	"github.com/rcornwell/rv64core/emu/memory"
)

// Privilege levels, matching the two-bit encoding used throughout the CSR
// address space (bits [9:8] of a CSR address name the minimum privilege
// needed to touch it).
const (
	PrivUser       uint8 = 0
	PrivSupervisor uint8 = 1
	PrivMachine    uint8 = 3
)

// DefaultInstructionLimit bounds Run so a program stuck in an infinite loop
// returns control to the caller instead of hanging the process.
const DefaultInstructionLimit = 5_000_000

// CPU is one RV64IM hart: its register file, program counter, privilege
// level, and the memory and CSR file it operates on. A CPU owns no global
// state; every field needed to resume execution lives here.
type CPU struct {
	Registers [32]uint64
	PC        uint64
	Privilege uint8

	Mem  *memory.Memory
	Csrs *csr.File

	// Trace, when set, causes Run to report every fetched instruction
	// through Tracer before executing it.
	Trace  bool
	Tracer func(pc uint64, inst uint32)

	// InstructionLimit bounds Run; zero selects DefaultInstructionLimit.
	InstructionLimit uint64

	// OnBreakpoint is invoked when EBREAK traps. Returning true resumes
	// execution at PC+4; returning false halts Run. A nil handler resumes
	// immediately, matching non-interactive batch use.
	OnBreakpoint func(cpu *CPU) bool

	// OnHalt is invoked, if set, when execution stops on a clean ecall exit
	// or a fatal unhandled exception. It is not invoked when Run stops on the
	// instruction limit, on a cancelled context, or because OnBreakpoint
	// returned false. reason is a short, human-readable summary.
	OnHalt func(cpu *CPU, reason string)

	table [128]func(inst uint32) bool

	haltReason   string
	haltExitCode int32
	lastTrap     *TrapError
}

// New returns a CPU ready to run starting at the memory's base address,
// in machine mode, with a zeroed register file.
func New(mem *memory.Memory, csrs *csr.File) *CPU {
	c := &CPU{
		Mem:       mem,
		Csrs:      csrs,
		Privilege: PrivMachine,
		PC:        memory.BaseAddress,
	}
	c.createTable()
	return c
}
