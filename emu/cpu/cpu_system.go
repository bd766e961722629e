package cpu

import "github.com/rcornwell/rv64core/isa"

func (cpu *CPU) opSystem(inst uint32) bool {
	rd := (inst >> 7) & 0x1F
	funct3 := (inst >> 12) & 0x7
	rs1 := (inst >> 15) & 0x1F

	switch funct3 {
	case 0b000:
		funct12 := (inst >> 20) & 0xFFF
		switch funct12 {
		case isa.Funct12Ecall:
			return cpu.handleTrap(isa.CauseECallFromUMode+uint64(cpu.Privilege), 0)
		case isa.Funct12Ebreak:
			return cpu.handleTrap(isa.CauseBreakpoint, 0)
		case isa.Funct12Mret:
			return cpu.execMRET()
		case isa.Funct12Sret:
			return cpu.execSRET()
		default:
			return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
		}

	case isa.FuncCSRRW, isa.FuncCSRRS, isa.FuncCSRRC,
		isa.FuncCSRRWI, isa.FuncCSRRSI, isa.FuncCSRRCI:
		csrAddr := inst >> 20
		oldVal, ok := cpu.Csrs.Read(csrAddr, cpu.Privilege)
		if !ok {
			return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
		}

		var writeVal uint64
		if funct3&0b100 == 0b100 {
			writeVal = uint64(rs1) // zimm: the rs1 field holds a 5-bit immediate
		} else {
			writeVal = cpu.Registers[rs1]
		}

		var newVal uint64
		switch funct3 & 0b011 {
		case isa.FuncCSRRW & 0b011:
			newVal = writeVal
		case isa.FuncCSRRS & 0b011:
			newVal = oldVal | writeVal
		case isa.FuncCSRRC & 0b011:
			newVal = oldVal &^ writeVal
		}

		if !cpu.Csrs.Write(csrAddr, newVal, cpu.Privilege) {
			return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
		}
		if csrAddr == isa.CsrSatp {
			cpu.Mem.InvalidateTLB()
		}

		if rd > 0 {
			cpu.Registers[rd] = oldVal
		}
		cpu.PC += 4
		return true

	default:
		return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
	}
}

// execMRET restores machine-mode context by writing csrs.Mstatus directly,
// bypassing the privilege-checked Write path: cpu.Privilege has already been
// lowered to MPP by then, and a gated write to mstatus from supervisor or
// user mode would fail.
func (cpu *CPU) execMRET() bool {
	mepc, _ := cpu.Csrs.Read(isa.CsrMepc, cpu.Privilege)
	mstatus, _ := cpu.Csrs.Read(isa.CsrMstatus, cpu.Privilege)
	cpu.Privilege = uint8((mstatus >> 11) & 0b11)

	mpie := (mstatus >> 7) & 1
	mstatus = (mstatus &^ (1 << 3)) | (mpie << 3)
	mstatus |= 1 << 7
	mstatus &^= 0b11 << 11
	cpu.Csrs.SetMRETState(mstatus)

	cpu.PC = mepc
	return true
}

// execSRET restores supervisor-mode context by writing csrs.Mstatus
// directly, bypassing the privilege-checked Write path: SRET can drop
// privilege to supervisor or user mode, where a gated write to mstatus
// would fail.
func (cpu *CPU) execSRET() bool {
	sepc, _ := cpu.Csrs.Read(isa.CsrSepc, cpu.Privilege)
	sstatus, _ := cpu.Csrs.Read(isa.CsrSstatus, cpu.Privilege)
	mstatus, _ := cpu.Csrs.Read(isa.CsrMstatus, cpu.Privilege)
	cpu.Privilege = uint8((sstatus >> 8) & 0b1)

	spie := (sstatus >> 5) & 1
	mstatus = (mstatus &^ (1 << 1)) | (spie << 1)
	mstatus |= 1 << 5
	mstatus &^= 1 << 8
	cpu.Csrs.SetMRETState(mstatus)

	cpu.PC = sepc
	return true
}
