package cpu

import (
	"context"
	"fmt"

	"github.com/rcornwell/rv64core/isa"
)

// createTable builds the opcode dispatch table, indexed by the 7-bit
// opcode field. Unassigned slots fall through to opIllegal.
func (cpu *CPU) createTable() {
	for i := range cpu.table {
		cpu.table[i] = cpu.opIllegal
	}
	cpu.table[isa.OpLui] = cpu.opLUI
	cpu.table[isa.OpAuipc] = cpu.opAUIPC
	cpu.table[isa.OpJal] = cpu.opJAL
	cpu.table[isa.OpJalr] = cpu.opJALR
	cpu.table[isa.OpBranch] = cpu.opBranch
	cpu.table[isa.OpLoad] = cpu.opLoad
	cpu.table[isa.OpStore] = cpu.opStore
	cpu.table[isa.OpImm] = cpu.opImm
	cpu.table[isa.OpImm32] = cpu.opImm32
	cpu.table[isa.OpReg] = cpu.opReg
	cpu.table[isa.OpReg32] = cpu.opReg32
	cpu.table[isa.OpMiscMem] = cpu.opMiscMem
	cpu.table[isa.OpSystem] = cpu.opSystem
}

// RunResult reports why Run stopped. Err is non-nil only for a fatal
// trap; a clean ecall exit or the instruction limit leave it nil.
type RunResult struct {
	Reason   string
	ExitCode int32
	Executed uint64
	LimitHit bool
	Err      error
}

// Step fetches and executes exactly one instruction, returning false when
// execution should stop (a fatal trap or a clean ecall exit already
// reported through OnHalt).
func (cpu *CPU) Step() bool {
	pcBefore := cpu.PC

	off, fault := cpu.Mem.Translate(cpu.Csrs, cpu.PC, false, true)
	if fault != nil {
		cause := isa.CauseInstructionAccessFault
		if fault.PageFault {
			cause = isa.CauseInstructionPageFault
		}
		return cpu.handleTrap(cause, fault.Addr)
	}
	if cpu.PC%4 != 0 {
		return cpu.handleTrap(isa.CauseInstructionAddressMisaligned, cpu.PC)
	}

	inst, err := cpu.Mem.FetchWord(off)
	if err != nil {
		return cpu.handleTrap(isa.CauseInstructionAccessFault, cpu.PC)
	}

	if cpu.Trace && cpu.Tracer != nil {
		cpu.Tracer(pcBefore, inst)
	}

	return cpu.execute(inst)
}

// execute dispatches inst on the opcode field. Register x0 is always
// wired to zero on return so individual opcode handlers do not need to
// special-case every write.
func (cpu *CPU) execute(inst uint32) bool {
	opcode := inst & 0x7F
	ok := cpu.table[opcode](inst)
	cpu.Registers[isa.Zero] = 0
	return ok
}

func (cpu *CPU) opIllegal(inst uint32) bool {
	return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
}

// Run executes instructions until a halt condition, the instruction limit
// is reached, or ctx is cancelled.
func (cpu *CPU) Run(ctx context.Context) RunResult {
	limit := cpu.InstructionLimit
	if limit == 0 {
		limit = DefaultInstructionLimit
	}

	var executed uint64
	for executed < limit {
		select {
		case <-ctx.Done():
			return RunResult{Reason: "cancelled", Executed: executed}
		default:
		}

		if !cpu.Step() {
			var err error
			if cpu.lastTrap != nil {
				err = cpu.lastTrap
			}
			return RunResult{
				Reason:   cpu.haltReason,
				ExitCode: cpu.haltExitCode,
				Executed: executed + 1,
				Err:      err,
			}
		}
		executed++
	}

	return RunResult{
		Reason:   "instruction limit reached; program may be in an infinite loop",
		Executed: executed,
		LimitHit: true,
	}
}

// registerOperand formats a register name and value for diagnostics.
func registerOperand(reg uint32, value uint64) string {
	return fmt.Sprintf("%s=%#x", isa.ABIName(reg), value)
}
