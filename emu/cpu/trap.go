package cpu

import (
	"fmt"
	"log/slog"

	"github.com/rcornwell/rv64core/emu/disassemble"
	"github.com/rcornwell/rv64core/isa"
)

// handleTrap is the single entry point every faulting or trapping opcode
// calls. It records the trap into the CSR trio selected by the current
// privilege level, then dispatches to the interrupt or exception handler.
//
// Routing is by current privilege level rather than by consulting
// medeleg/mideleg: mtvec/stvec-style delegation to a lower privilege level
// is not modeled, since this machine never runs anything below machine
// mode that expects to field its own traps.
func (cpu *CPU) handleTrap(cause uint64, tval uint64) bool {
	isInterrupt := cause&isa.InterruptBit != 0
	returnPC := cpu.PC
	if !isInterrupt {
		returnPC = cpu.PC + 4
	}

	switch cpu.Privilege {
	case PrivSupervisor, PrivUser:
		cpu.Csrs.Write(isa.CsrSepc, returnPC, PrivSupervisor)
		cpu.Csrs.Write(isa.CsrScause, cause, PrivSupervisor)
		cpu.Csrs.Write(isa.CsrStval, tval, PrivSupervisor)
	case PrivMachine:
		cpu.Csrs.Write(isa.CsrMepc, returnPC, cpu.Privilege)
		cpu.Csrs.Write(isa.CsrMcause, cause, cpu.Privilege)
		cpu.Csrs.Write(isa.CsrMtval, tval, cpu.Privilege)
	}

	if isInterrupt {
		return cpu.handleInterrupt(cause)
	}
	return cpu.handleException(cause, tval)
}

func (cpu *CPU) halt(reason string, exitCode int32) bool {
	cpu.haltReason = reason
	cpu.haltExitCode = exitCode
	if cpu.OnHalt != nil {
		cpu.OnHalt(cpu, reason)
	}
	return false
}

// TrapError describes a fatal trap: an exception Run could not resume
// from, as opposed to the clean ecall-based program exit RunResult.Err
// leaves nil for.
type TrapError struct {
	Cause uint64
	PC    uint64
	Tval  uint64
	Text  string
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("trap at pc=%#x: %s (cause=%#x tval=%#x)", e.PC, e.Text, e.Cause, e.Tval)
}

// haltTrap records a TrapError alongside the usual string/exit-code halt
// state, so callers that want to errors.As into the cause can, while
// RunResult.Reason still carries a ready-to-print summary.
func (cpu *CPU) haltTrap(cause, tval uint64, reason string) bool {
	cpu.lastTrap = &TrapError{Cause: cause, PC: cpu.PC, Tval: tval, Text: reason}
	return cpu.halt(reason, 0)
}

func (cpu *CPU) handleException(code uint64, tval uint64) bool {
	switch code {
	case isa.CauseECallFromUMode, isa.CauseECallFromSMode, isa.CauseECallFromMMode:
		syscallNum := cpu.Registers[isa.A7]
		if syscallNum == 93 {
			exitCode := int32(cpu.Registers[isa.A0])
			slog.Info("ecall exit", "code", exitCode, "pc", fmt.Sprintf("%#x", cpu.PC))
			return cpu.halt("ecall exit", exitCode)
		}
		slog.Warn("unimplemented syscall", "a7", syscallNum)
		return cpu.handleException(isa.CauseIllegalInstruction, syscallNum)

	case isa.CauseIllegalInstruction:
		word := uint32(tval)
		text := disassemble.Disassemble(word, cpu.PC)
		slog.Error("illegal instruction", "pc", fmt.Sprintf("%#x", cpu.PC),
			"word", fmt.Sprintf("%#010x", word), "text", text)
		return cpu.haltTrap(isa.CauseIllegalInstruction, tval, "illegal instruction")

	case isa.CauseInstructionAddressMisaligned:
		slog.Error("instruction address misaligned", "mepc", fmt.Sprintf("%#x", cpu.PC),
			"mtval", fmt.Sprintf("%#x", tval))
		return cpu.haltTrap(isa.CauseInstructionAddressMisaligned, tval, "instruction address misaligned")

	case isa.CauseInstructionAccessFault, isa.CauseLoadAccessFault, isa.CauseStoreAMOAccessFault:
		slog.Error("access fault", "cause", cpu.causeToString(code),
			"addr", fmt.Sprintf("%#x", tval), "mepc", fmt.Sprintf("%#x", cpu.PC))
		return cpu.haltTrap(code, tval, "access fault: "+cpu.causeToString(code))

	case isa.CauseLoadAddressMisaligned, isa.CauseStoreAMOAddressMisaligned:
		slog.Error("address misaligned", "cause", cpu.causeToString(code),
			"addr", fmt.Sprintf("%#x", tval), "mepc", fmt.Sprintf("%#x", cpu.PC))
		return cpu.haltTrap(code, tval, "address misaligned: "+cpu.causeToString(code))

	case isa.CauseBreakpoint:
		slog.Info("breakpoint", "pc", fmt.Sprintf("%#x", cpu.PC))
		cpu.PC += 4
		if cpu.OnBreakpoint == nil {
			return true
		}
		return cpu.OnBreakpoint(cpu)

	case isa.CauseInstructionPageFault, isa.CauseLoadPageFault, isa.CauseStoreAMOPageFault:
		slog.Error("page fault", "cause", cpu.causeToString(code),
			"vaddr", fmt.Sprintf("%#x", tval), "mepc", fmt.Sprintf("%#x", cpu.PC))
		return cpu.haltTrap(code, tval, "page fault: "+cpu.causeToString(code))

	default:
		slog.Error("unhandled exception", "cause", cpu.causeToString(code),
			"tval", fmt.Sprintf("%#x", tval))
		return cpu.haltTrap(code, tval, "unhandled exception: "+cpu.causeToString(code))
	}
}

// handleInterrupt reflects machine-level interrupts into their supervisor
// counterparts (the machine level has no handler of its own registered
// here), applies supervisor interrupts directly, and ignores or reports
// anything else. It always resumes execution.
func (cpu *CPU) handleInterrupt(cause uint64) bool {
	code := cause & 0xFFF

	switch code {
	case isa.CauseMachineTimerInterrupt & 0xFFF:
		mip, _ := cpu.Csrs.Read(isa.CsrMip, PrivMachine)
		mip |= 1 << (isa.CauseSupervisorSoftwareInterrupt & 0xFFF)
		mip &^= 1 << (isa.CauseMachineTimerInterrupt & 0xFFF)
		cpu.Csrs.Write(isa.CsrMip, mip, PrivMachine)

	case isa.CauseMachineExternalInterrupt & 0xFFF:
		mip, _ := cpu.Csrs.Read(isa.CsrMip, PrivMachine)
		mip |= 1 << (isa.CauseSupervisorExternalInterrupt & 0xFFF)
		cpu.Csrs.Write(isa.CsrMip, mip, PrivMachine)

	case isa.CauseMachineSoftwareInterrupt & 0xFFF:
		mip, _ := cpu.Csrs.Read(isa.CsrMip, PrivMachine)
		mip &^= 1 << (isa.CauseMachineSoftwareInterrupt & 0xFFF)
		mip |= 1 << (isa.CauseSupervisorSoftwareInterrupt & 0xFFF)
		cpu.Csrs.Write(isa.CsrMip, mip, PrivMachine)

	case isa.CauseSupervisorTimerInterrupt & 0xFFF,
		isa.CauseSupervisorSoftwareInterrupt & 0xFFF,
		isa.CauseSupervisorExternalInterrupt & 0xFFF:
		sip, _ := cpu.Csrs.Read(isa.CsrSip, PrivMachine)
		sip |= 1 << code
		cpu.Csrs.Write(isa.CsrSip, sip, PrivMachine)

	case isa.CauseUserTimerInterrupt & 0xFFF,
		isa.CauseUserSoftwareInterrupt & 0xFFF,
		isa.CauseUserExternalInterrupt & 0xFFF:
		slog.Debug("ignoring user-level interrupt", "cause", cpu.causeToString(cause))

	default:
		slog.Warn("unhandled interrupt", "cause", cause, "text", cpu.causeToString(cause))
	}
	return true
}

func (cpu *CPU) causeToString(cause uint64) string {
	isInterrupt := cause&isa.InterruptBit != 0
	code := cause & 0xFFF

	if isInterrupt {
		switch code {
		case isa.CauseUserSoftwareInterrupt & 0xFFF:
			return "User Software Interrupt"
		case isa.CauseSupervisorSoftwareInterrupt & 0xFFF:
			return "Supervisor Software Interrupt"
		case isa.CauseMachineSoftwareInterrupt & 0xFFF:
			return "Machine Software Interrupt"
		case isa.CauseUserTimerInterrupt & 0xFFF:
			return "User Timer Interrupt"
		case isa.CauseSupervisorTimerInterrupt & 0xFFF:
			return "Supervisor Timer Interrupt"
		case isa.CauseMachineTimerInterrupt & 0xFFF:
			return "Machine Timer Interrupt"
		case isa.CauseUserExternalInterrupt & 0xFFF:
			return "User External Interrupt"
		case isa.CauseSupervisorExternalInterrupt & 0xFFF:
			return "Supervisor External Interrupt"
		case isa.CauseMachineExternalInterrupt & 0xFFF:
			return "Machine External Interrupt"
		default:
			return "Unknown Interrupt"
		}
	}

	switch code {
	case isa.CauseInstructionAddressMisaligned:
		return "Instruction Address Misaligned"
	case isa.CauseInstructionAccessFault:
		return "Instruction Access Fault"
	case isa.CauseIllegalInstruction:
		return "Illegal Instruction"
	case isa.CauseBreakpoint:
		return "Breakpoint"
	case isa.CauseLoadAddressMisaligned:
		return "Load Address Misaligned"
	case isa.CauseLoadAccessFault:
		return "Load Access Fault"
	case isa.CauseStoreAMOAddressMisaligned:
		return "Store/AMO Address Misaligned"
	case isa.CauseStoreAMOAccessFault:
		return "Store/AMO Access Fault"
	case isa.CauseECallFromUMode:
		return "Environment Call from U-mode"
	case isa.CauseECallFromSMode:
		return "Environment Call from S-mode"
	case isa.CauseECallFromMMode:
		return "Environment Call from M-mode"
	case isa.CauseInstructionPageFault:
		return "Instruction Page Fault"
	case isa.CauseLoadPageFault:
		return "Load Page Fault"
	case isa.CauseStoreAMOPageFault:
		return "Store/AMO Page Fault"
	default:
		return "Unknown Exception"
	}
}
