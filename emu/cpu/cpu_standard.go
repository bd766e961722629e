package cpu

import (
	"math/bits"

	"github.com/rcornwell/rv64core/isa"
)

func (cpu *CPU) opLUI(inst uint32) bool {
	rd := (inst >> 7) & 0x1F
	if rd > 0 {
		imm := int32(inst & 0xFFFFF000)
		cpu.Registers[rd] = uint64(int64(imm))
	}
	cpu.PC += 4
	return true
}

func (cpu *CPU) opAUIPC(inst uint32) bool {
	rd := (inst >> 7) & 0x1F
	if rd > 0 {
		imm := uint64(int64(int32(inst & 0xFFFFF000)))
		cpu.Registers[rd] = cpu.PC + imm
	}
	cpu.PC += 4
	return true
}

func (cpu *CPU) opJAL(inst uint32) bool {
	rd := (inst >> 7) & 0x1F
	nextPC := cpu.PC + 4
	if rd > 0 {
		cpu.Registers[rd] = nextPC
	}
	imm20 := (inst >> 31) & 1
	imm10_1 := (inst >> 21) & 0x3FF
	imm11 := (inst >> 20) & 1
	imm19_12 := (inst >> 12) & 0xFF
	offset := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
	signed := int32(offset<<11) >> 11
	cpu.PC += uint64(int64(signed))
	return true
}

func (cpu *CPU) opJALR(inst uint32) bool {
	rd := (inst >> 7) & 0x1F
	rs1 := (inst >> 15) & 0x1F
	nextPC := cpu.PC + 4
	if rd > 0 {
		cpu.Registers[rd] = nextPC
	}
	imm := uint64(int64(int32(inst) >> 20))
	cpu.PC = (cpu.Registers[rs1] + imm) &^ 1
	return true
}

func (cpu *CPU) opBranch(inst uint32) bool {
	funct3 := (inst >> 12) & 0x7
	rs1 := (inst >> 15) & 0x1F
	rs2 := (inst >> 20) & 0x1F

	imm12 := (inst >> 31) & 1
	imm11 := (inst >> 7) & 1
	imm10_5 := (inst >> 25) & 0x3F
	imm4_1 := (inst >> 8) & 0xF
	offset := (imm12 << 12) | (imm11 << 11) | (imm10_5 << 5) | (imm4_1 << 1)
	signed := int32(offset<<19) >> 19

	v1, v2 := cpu.Registers[rs1], cpu.Registers[rs2]
	var taken bool
	switch funct3 {
	case isa.FuncBEQ:
		taken = v1 == v2
	case isa.FuncBNE:
		taken = v1 != v2
	case isa.FuncBLT:
		taken = int64(v1) < int64(v2)
	case isa.FuncBGE:
		taken = int64(v1) >= int64(v2)
	case isa.FuncBLTU:
		taken = v1 < v2
	case isa.FuncBGEU:
		taken = v1 >= v2
	default:
		return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
	}

	if taken {
		cpu.PC += uint64(int64(signed))
	} else {
		cpu.PC += 4
	}
	return true
}

func (cpu *CPU) loadSize(funct3 uint32) (size int, signed bool, ok bool) {
	switch funct3 {
	case isa.FuncLB:
		return 1, true, true
	case isa.FuncLH:
		return 2, true, true
	case isa.FuncLW:
		return 4, true, true
	case isa.FuncLD:
		return 8, false, true
	case isa.FuncLBU:
		return 1, false, true
	case isa.FuncLHU:
		return 2, false, true
	case isa.FuncLWU:
		return 4, false, true
	default:
		return 0, false, false
	}
}

// opLoad is entirely skipped when rd == 0: the destination carries no
// observable effect and the original machine also elides the disk-window
// check and translation in that case.
func (cpu *CPU) opLoad(inst uint32) bool {
	rd := (inst >> 7) & 0x1F
	funct3 := (inst >> 12) & 0x7
	rs1 := (inst >> 15) & 0x1F

	if rd > 0 {
		imm := uint64(int64(int32(inst) >> 20))
		vaddr := cpu.Registers[rs1] + imm

		size, signed, ok := cpu.loadSize(funct3)
		if !ok {
			return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
		}

		if cpu.Mem.InDiskWindow(vaddr, size) {
			v, _ := cpu.Mem.ReadPhysical(vaddr, 0, size)
			cpu.Registers[rd] = signExtend(v, size, signed)
		} else {
			align := uint64(1)
			switch size {
			case 2:
				align = 2
			case 4:
				align = 4
			case 8:
				align = 8
			}
			if align > 1 && vaddr%align != 0 {
				return cpu.handleTrap(isa.CauseLoadAddressMisaligned, vaddr)
			}

			off, fault := cpu.Mem.Translate(cpu.Csrs, vaddr, false, false)
			if fault != nil {
				cause := isa.CauseLoadAccessFault
				if fault.PageFault {
					cause = isa.CauseLoadPageFault
				}
				return cpu.handleTrap(cause, fault.Addr)
			}

			v, err := cpu.Mem.ReadBytes(off, size)
			if err != nil {
				return cpu.handleTrap(isa.CauseLoadAccessFault, vaddr)
			}
			cpu.Registers[rd] = signExtend(v, size, signed)
		}
	}
	cpu.PC += 4
	return true
}

func signExtend(v uint64, size int, signed bool) uint64 {
	if !signed {
		return v
	}
	switch size {
	case 1:
		return uint64(int64(int8(v)))
	case 2:
		return uint64(int64(int16(v)))
	case 4:
		return uint64(int64(int32(v)))
	default:
		return v
	}
}

// opStore, unlike opLoad, always runs its side effects: there is no
// register destination to gate on.
func (cpu *CPU) opStore(inst uint32) bool {
	funct3 := (inst >> 12) & 0x7
	rs1 := (inst >> 15) & 0x1F
	rs2 := (inst >> 20) & 0x1F

	imm4_0 := (inst >> 7) & 0x1F
	imm11_5 := (inst >> 25) & 0x7F
	imm := int32((imm11_5<<5)|imm4_0) << 20 >> 20
	vaddr := cpu.Registers[rs1] + uint64(int64(imm))
	data := cpu.Registers[rs2]

	var size int
	switch funct3 {
	case isa.FuncSB:
		size = 1
	case isa.FuncSH:
		size = 2
	case isa.FuncSW:
		size = 4
	case isa.FuncSD:
		size = 8
	default:
		return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
	}

	if cpu.Mem.InDiskWindow(vaddr, size) {
		// The disk window is read-only from the guest's perspective; the
		// store is silently dropped.
		cpu.PC += 4
		return true
	}

	align := uint64(1)
	switch size {
	case 2:
		align = 2
	case 4:
		align = 4
	case 8:
		align = 8
	}
	if align > 1 && vaddr%align != 0 {
		return cpu.handleTrap(isa.CauseStoreAMOAddressMisaligned, vaddr)
	}

	off, fault := cpu.Mem.Translate(cpu.Csrs, vaddr, true, false)
	if fault != nil {
		cause := isa.CauseStoreAMOAccessFault
		if fault.PageFault {
			cause = isa.CauseStoreAMOPageFault
		}
		return cpu.handleTrap(cause, fault.Addr)
	}

	if err := cpu.Mem.WriteBytes(off, size, data); err != nil {
		return cpu.handleTrap(isa.CauseStoreAMOAccessFault, vaddr)
	}

	cpu.PC += 4
	return true
}

func (cpu *CPU) opImm(inst uint32) bool {
	rd := (inst >> 7) & 0x1F
	funct3 := (inst >> 12) & 0x7
	rs1 := (inst >> 15) & 0x1F

	if rd > 0 {
		imm := uint64(int64(int32(inst) >> 20))
		v1 := cpu.Registers[rs1]

		switch funct3 {
		case isa.FuncAddSub:
			cpu.Registers[rd] = v1 + imm
		case isa.FuncSLT:
			if int64(v1) < int64(imm) {
				cpu.Registers[rd] = 1
			} else {
				cpu.Registers[rd] = 0
			}
		case isa.FuncSLTU:
			if v1 < imm {
				cpu.Registers[rd] = 1
			} else {
				cpu.Registers[rd] = 0
			}
		case isa.FuncXOR:
			cpu.Registers[rd] = v1 ^ imm
		case isa.FuncOR:
			cpu.Registers[rd] = v1 | imm
		case isa.FuncAND:
			cpu.Registers[rd] = v1 & imm
		case isa.FuncSLL:
			shamt := (inst >> 20) & 0x3F
			cpu.Registers[rd] = v1 << shamt
		case isa.FuncSRL: // shares funct3 with SRA; funct7 bit 30 disambiguates
			shamt := (inst >> 20) & 0x3F
			if (inst>>30)&1 == 1 {
				cpu.Registers[rd] = uint64(int64(v1) >> shamt)
			} else {
				cpu.Registers[rd] = v1 >> shamt
			}
		default:
			return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
		}
	}
	cpu.PC += 4
	return true
}

func (cpu *CPU) opImm32(inst uint32) bool {
	rd := (inst >> 7) & 0x1F
	funct3 := (inst >> 12) & 0x7
	rs1 := (inst >> 15) & 0x1F

	if rd > 0 {
		imm := int32(inst) >> 20
		val1 := int32(cpu.Registers[rs1])

		switch funct3 {
		case isa.FuncAddSub:
			result := val1 + imm
			cpu.Registers[rd] = uint64(int64(result))
		case isa.FuncSLL:
			shamt := (inst >> 20) & 0x1F
			cpu.Registers[rd] = uint64(int64(val1 << shamt))
		case isa.FuncSRL:
			shamt := (inst >> 20) & 0x1F
			if (inst>>30)&1 == 1 {
				cpu.Registers[rd] = uint64(int64(val1 >> shamt))
			} else {
				cpu.Registers[rd] = uint64(int64(int32(uint32(val1) >> shamt)))
			}
		default:
			return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
		}
	}
	cpu.PC += 4
	return true
}

func (cpu *CPU) opReg(inst uint32) bool {
	rd := (inst >> 7) & 0x1F
	funct3 := (inst >> 12) & 0x7
	rs1 := (inst >> 15) & 0x1F
	rs2 := (inst >> 20) & 0x1F
	funct7 := (inst >> 25) & 0x7F

	v1, v2 := cpu.Registers[rs1], cpu.Registers[rs2]
	if rd == 0 {
		cpu.PC += 4
		return true
	}

	switch {
	case funct3 == isa.FuncAddSub && funct7 == isa.Funct7Default:
		cpu.Registers[rd] = v1 + v2
	case funct3 == isa.FuncAddSub && funct7 == isa.Funct7Sub:
		cpu.Registers[rd] = v1 - v2
	case funct3 == isa.FuncSLL && funct7 == isa.Funct7Default:
		cpu.Registers[rd] = v1 << (v2 & 0x3F)
	case funct3 == isa.FuncSLT && funct7 == isa.Funct7Default:
		if int64(v1) < int64(v2) {
			cpu.Registers[rd] = 1
		} else {
			cpu.Registers[rd] = 0
		}
	case funct3 == isa.FuncSLTU && funct7 == isa.Funct7Default:
		if v1 < v2 {
			cpu.Registers[rd] = 1
		} else {
			cpu.Registers[rd] = 0
		}
	case funct3 == isa.FuncXOR && funct7 == isa.Funct7Default:
		cpu.Registers[rd] = v1 ^ v2
	case funct3 == isa.FuncSRL && funct7 == isa.Funct7Default:
		cpu.Registers[rd] = v1 >> (v2 & 0x3F)
	case funct3 == isa.FuncSRL && funct7 == isa.Funct7SRA:
		cpu.Registers[rd] = uint64(int64(v1) >> (v2 & 0x3F))
	case funct3 == isa.FuncOR && funct7 == isa.Funct7Default:
		cpu.Registers[rd] = v1 | v2
	case funct3 == isa.FuncAND && funct7 == isa.Funct7Default:
		cpu.Registers[rd] = v1 & v2

	// M extension.
	case funct3 == isa.FuncMUL && funct7 == isa.Funct7MulDiv:
		cpu.Registers[rd] = v1 * v2
	case funct3 == isa.FuncMULH && funct7 == isa.Funct7MulDiv:
		cpu.Registers[rd] = uint64(mulHigh64(int64(v1), int64(v2)))
	case funct3 == isa.FuncMULHSU && funct7 == isa.Funct7MulDiv:
		cpu.Registers[rd] = uint64(mulHighSU64(int64(v1), v2))
	case funct3 == isa.FuncMULHU && funct7 == isa.Funct7MulDiv:
		cpu.Registers[rd] = mulHighU64(v1, v2)
	case funct3 == isa.FuncDIV && funct7 == isa.Funct7MulDiv:
		if v2 == 0 {
			cpu.Registers[rd] = ^uint64(0)
		} else {
			cpu.Registers[rd] = uint64(int64(v1) / int64(v2))
		}
	case funct3 == isa.FuncDIVU && funct7 == isa.Funct7MulDiv:
		if v2 == 0 {
			cpu.Registers[rd] = ^uint64(0)
		} else {
			cpu.Registers[rd] = v1 / v2
		}
	case funct3 == isa.FuncREM && funct7 == isa.Funct7MulDiv:
		if v2 == 0 {
			cpu.Registers[rd] = v1
		} else {
			cpu.Registers[rd] = uint64(int64(v1) % int64(v2))
		}
	case funct3 == isa.FuncREMU && funct7 == isa.Funct7MulDiv:
		if v2 == 0 {
			cpu.Registers[rd] = v1
		} else {
			cpu.Registers[rd] = v1 % v2
		}
	default:
		return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
	}
	cpu.PC += 4
	return true
}

func (cpu *CPU) opReg32(inst uint32) bool {
	rd := (inst >> 7) & 0x1F
	funct3 := (inst >> 12) & 0x7
	rs1 := (inst >> 15) & 0x1F
	rs2 := (inst >> 20) & 0x1F
	funct7 := (inst >> 25) & 0x7F

	val1 := int32(cpu.Registers[rs1])
	val2 := int32(cpu.Registers[rs2])
	if rd == 0 {
		cpu.PC += 4
		return true
	}

	switch {
	case funct3 == isa.FuncAddSub && funct7 == isa.Funct7Default:
		cpu.Registers[rd] = uint64(int64(val1 + val2))
	case funct3 == isa.FuncAddSub && funct7 == isa.Funct7Sub:
		cpu.Registers[rd] = uint64(int64(val1 - val2))
	case funct3 == isa.FuncSLL && funct7 == isa.Funct7Default:
		shamt := uint32(val2) & 0x1F
		cpu.Registers[rd] = uint64(int64(val1 << shamt))
	case funct3 == isa.FuncSRL && funct7 == isa.Funct7Default:
		shamt := uint32(val2) & 0x1F
		cpu.Registers[rd] = uint64(int64(int32(uint32(val1) >> shamt)))
	case funct3 == isa.FuncSRL && funct7 == isa.Funct7SRA:
		shamt := uint32(val2) & 0x1F
		cpu.Registers[rd] = uint64(int64(val1 >> shamt))

	case funct3 == isa.FuncMUL && funct7 == isa.Funct7MulDiv:
		result := int32(int64(val1) * int64(val2))
		cpu.Registers[rd] = uint64(int64(result))
	case funct3 == isa.FuncDIV && funct7 == isa.Funct7MulDiv:
		switch {
		case val2 == 0:
			cpu.Registers[rd] = ^uint64(0)
		case val1 == int32(-1<<31) && val2 == -1:
			cpu.Registers[rd] = uint64(int64(val1))
		default:
			cpu.Registers[rd] = uint64(int64(val1 / val2))
		}
	case funct3 == isa.FuncDIVU && funct7 == isa.Funct7MulDiv:
		lhs := uint32(cpu.Registers[rs1])
		rhs := uint32(cpu.Registers[rs2])
		var result uint32
		if rhs == 0 {
			result = 0xFFFFFFFF
		} else {
			result = lhs / rhs
		}
		cpu.Registers[rd] = uint64(int64(int32(result)))
	case funct3 == isa.FuncREM && funct7 == isa.Funct7MulDiv:
		switch {
		case val2 == 0:
			cpu.Registers[rd] = uint64(int64(val1))
		case val1 == int32(-1<<31) && val2 == -1:
			cpu.Registers[rd] = 0
		default:
			cpu.Registers[rd] = uint64(int64(val1 % val2))
		}
	case funct3 == isa.FuncREMU && funct7 == isa.Funct7MulDiv:
		lhs := uint32(cpu.Registers[rs1])
		rhs := uint32(cpu.Registers[rs2])
		var result uint32
		if rhs == 0 {
			result = lhs
		} else {
			result = lhs % rhs
		}
		cpu.Registers[rd] = uint64(int64(int32(result)))
	default:
		return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
	}
	cpu.PC += 4
	return true
}

func (cpu *CPU) opMiscMem(inst uint32) bool {
	funct3 := (inst >> 12) & 0x7
	switch funct3 {
	case isa.FuncFence, isa.FuncFenceI:
		// A single-hart VM has no concurrent memory traffic to order; both
		// FENCE and FENCE.I are no-ops here.
	default:
		return cpu.handleTrap(isa.CauseIllegalInstruction, uint64(inst))
	}
	cpu.PC += 4
	return true
}

// mulHigh64 returns the high 64 bits of the signed 128-bit product of a
// and b.
func mulHigh64(a, b int64) int64 {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	hi -= uint64(a>>63) & uint64(b)
	hi -= uint64(b>>63) & uint64(a)
	_ = lo
	return int64(hi)
}

// mulHighSU64 returns the high 64 bits of the signed-by-unsigned 128-bit
// product of a and b.
func mulHighSU64(a int64, b uint64) int64 {
	hi, _ := bits.Mul64(uint64(a), b)
	hi -= uint64(a>>63) & b
	return int64(hi)
}

func mulHighU64(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi
}
