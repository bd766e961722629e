/*
   Disassemble: render an RV64IM instruction word as assembly text.

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

// Package disassemble renders RV64IM instruction words as text, sharing
// its opcode, funct3/funct7, and CSR tables with package isa so its output
// always agrees with what package assemble accepts and package cpu
// executes.
package disassemble

import (
	"fmt"

	"github.com/rcornwell/rv64core/isa"
)

// Disassemble renders the instruction word at pc as assembly text,
// canonicalizing the handful of pseudo-instructions every other tool in
// this module recognizes (nop, mv, ret, j).
func Disassemble(word uint32, pc uint64) string {
	opcode := word & 0x7F
	rd := (word >> 7) & 0x1F
	rs1 := (word >> 15) & 0x1F
	rs2 := (word >> 20) & 0x1F
	funct3 := (word >> 12) & 0x7
	funct7 := (word >> 25) & 0x7F

	rdStr := isa.ABIName(rd)
	rs1Str := isa.ABIName(rs1)
	rs2Str := isa.ABIName(rs2)

	switch opcode {
	case isa.OpLui:
		imm := (word & 0xFFFFF000) >> 12
		return fmt.Sprintf("lui %s, %#x", rdStr, imm)

	case isa.OpAuipc:
		imm := (word & 0xFFFFF000) >> 12
		return fmt.Sprintf("auipc %s, %#x", rdStr, imm)

	case isa.OpJal:
		imm20 := (word >> 31) & 1
		imm10_1 := (word >> 21) & 0x3FF
		imm11 := (word >> 20) & 1
		imm19_12 := (word >> 12) & 0xFF
		imm := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
		signed := int32(imm<<11) >> 11
		target := pc + uint64(int64(signed))
		if rd == 0 {
			return fmt.Sprintf("j %#x", target)
		}
		return fmt.Sprintf("jal %s, %#x", rdStr, target)

	case isa.OpJalr:
		imm := int64(int32(word) >> 20)
		if rd == 0 && rs1 == 1 && imm == 0 {
			return "ret"
		}
		return fmt.Sprintf("jalr %s, %d(%s)", rdStr, imm, rs1Str)

	case isa.OpBranch:
		imm12 := (word >> 31) & 1
		imm10_5 := (word >> 25) & 0x3F
		imm4_1 := (word >> 8) & 0xF
		imm11 := (word >> 7) & 1
		imm := (imm12 << 12) | (imm11 << 11) | (imm10_5 << 5) | (imm4_1 << 1)
		signed := int32(imm<<19) >> 19
		target := pc + uint64(int64(signed))
		mnemonic := branchMnemonic(funct3)
		return fmt.Sprintf("%s %s, %s, %#x", mnemonic, rs1Str, rs2Str, target)

	case isa.OpLoad:
		imm := int64(int32(word) >> 20)
		mnemonic := loadMnemonic(funct3)
		return fmt.Sprintf("%s %s, %d(%s)", mnemonic, rdStr, imm, rs1Str)

	case isa.OpStore:
		imm11_5 := (word >> 25) & 0x7F
		imm4_0 := (word >> 7) & 0x1F
		imm := (imm11_5 << 5) | imm4_0
		signed := int32(imm<<20) >> 20
		mnemonic := storeMnemonic(funct3)
		return fmt.Sprintf("%s %s, %d(%s)", mnemonic, rs2Str, signed, rs1Str)

	case isa.OpImm:
		imm := int64(int32(word) >> 20)
		switch {
		case funct3 == isa.FuncAddSub && word == 0x00000013:
			return "nop"
		case funct3 == isa.FuncAddSub && imm == 0:
			return fmt.Sprintf("mv %s, %s", rdStr, rs1Str)
		case funct3 == isa.FuncAddSub:
			return fmt.Sprintf("addi %s, %s, %d", rdStr, rs1Str, imm)
		case funct3 == isa.FuncSLL:
			return fmt.Sprintf("slli %s, %s, %d", rdStr, rs1Str, (word>>20)&0x3F)
		case funct3 == isa.FuncSLT:
			return fmt.Sprintf("slti %s, %s, %d", rdStr, rs1Str, imm)
		case funct3 == isa.FuncSLTU:
			return fmt.Sprintf("sltiu %s, %s, %d", rdStr, rs1Str, imm)
		case funct3 == isa.FuncXOR:
			return fmt.Sprintf("xori %s, %s, %d", rdStr, rs1Str, imm)
		case funct3 == isa.FuncSRL:
			shamt := (word >> 20) & 0x3F
			mnemonic := "srli"
			if (word>>30)&1 != 0 {
				mnemonic = "srai"
			}
			return fmt.Sprintf("%s %s, %s, %d", mnemonic, rdStr, rs1Str, shamt)
		case funct3 == isa.FuncOR:
			return fmt.Sprintf("ori %s, %s, %d", rdStr, rs1Str, imm)
		case funct3 == isa.FuncAND:
			return fmt.Sprintf("andi %s, %s, %d", rdStr, rs1Str, imm)
		default:
			return "unknown_op_imm"
		}

	case isa.OpReg:
		mnemonic := regMnemonic(funct7, funct3)
		return fmt.Sprintf("%s %s, %s, %s", mnemonic, rdStr, rs1Str, rs2Str)

	case isa.OpImm32:
		imm := int64(int32(word) >> 20)
		switch funct3 {
		case isa.FuncAddSub:
			return fmt.Sprintf("addiw %s, %s, %d", rdStr, rs1Str, imm)
		case isa.FuncSLL:
			return fmt.Sprintf("slliw %s, %s, %d", rdStr, rs1Str, (word>>20)&0x1F)
		case isa.FuncSRL:
			shamt := (word >> 20) & 0x1F
			mnemonic := "srliw"
			if funct7 != isa.Funct7Default {
				mnemonic = "sraiw"
			}
			return fmt.Sprintf("%s %s, %s, %d", mnemonic, rdStr, rs1Str, shamt)
		default:
			return "unknown_op_imm_32"
		}

	case isa.OpReg32:
		mnemonic := reg32Mnemonic(funct7, funct3)
		return fmt.Sprintf("%s %s, %s, %s", mnemonic, rdStr, rs1Str, rs2Str)

	case isa.OpMiscMem:
		switch funct3 {
		case isa.FuncFence:
			return "fence"
		case isa.FuncFenceI:
			return "fence.i"
		default:
			return "unknown_misc_mem"
		}

	case isa.OpSystem:
		csrAddr := word >> 20
		switch funct3 {
		case 0:
			switch csrAddr {
			case isa.Funct12Ecall:
				return "ecall"
			case isa.Funct12Ebreak:
				return "ebreak"
			case isa.Funct12Sret:
				return "sret"
			case isa.Funct12Mret:
				return "mret"
			default:
				return "unknown_system"
			}
		case isa.FuncCSRRW:
			return fmt.Sprintf("csrrw %s, %s, %s", rdStr, isa.CSRName(csrAddr), rs1Str)
		case isa.FuncCSRRS:
			return fmt.Sprintf("csrrs %s, %s, %s", rdStr, isa.CSRName(csrAddr), rs1Str)
		case isa.FuncCSRRC:
			return fmt.Sprintf("csrrc %s, %s, %s", rdStr, isa.CSRName(csrAddr), rs1Str)
		case isa.FuncCSRRWI:
			return fmt.Sprintf("csrrwi %s, %s, %d", rdStr, isa.CSRName(csrAddr), rs1)
		case isa.FuncCSRRSI:
			return fmt.Sprintf("csrrsi %s, %s, %d", rdStr, isa.CSRName(csrAddr), rs1)
		case isa.FuncCSRRCI:
			return fmt.Sprintf("csrrci %s, %s, %d", rdStr, isa.CSRName(csrAddr), rs1)
		default:
			return "unknown_system"
		}

	default:
		return fmt.Sprintf("unimplemented 0x%08x", word)
	}
}

func branchMnemonic(funct3 uint32) string {
	switch funct3 {
	case isa.FuncBEQ:
		return "beq"
	case isa.FuncBNE:
		return "bne"
	case isa.FuncBLT:
		return "blt"
	case isa.FuncBGE:
		return "bge"
	case isa.FuncBLTU:
		return "bltu"
	case isa.FuncBGEU:
		return "bgeu"
	default:
		return "unknown_branch"
	}
}

func loadMnemonic(funct3 uint32) string {
	switch funct3 {
	case isa.FuncLB:
		return "lb"
	case isa.FuncLH:
		return "lh"
	case isa.FuncLW:
		return "lw"
	case isa.FuncLD:
		return "ld"
	case isa.FuncLBU:
		return "lbu"
	case isa.FuncLHU:
		return "lhu"
	case isa.FuncLWU:
		return "lwu"
	default:
		return "unknown_load"
	}
}

func storeMnemonic(funct3 uint32) string {
	switch funct3 {
	case isa.FuncSB:
		return "sb"
	case isa.FuncSH:
		return "sh"
	case isa.FuncSW:
		return "sw"
	case isa.FuncSD:
		return "sd"
	default:
		return "unknown_store"
	}
}

func regMnemonic(funct7, funct3 uint32) string {
	switch {
	case funct7 == isa.Funct7Default && funct3 == isa.FuncAddSub:
		return "add"
	case funct7 == isa.Funct7Sub && funct3 == isa.FuncAddSub:
		return "sub"
	case funct7 == isa.Funct7Default && funct3 == isa.FuncSLL:
		return "sll"
	case funct7 == isa.Funct7Default && funct3 == isa.FuncSLT:
		return "slt"
	case funct7 == isa.Funct7Default && funct3 == isa.FuncSLTU:
		return "sltu"
	case funct7 == isa.Funct7Default && funct3 == isa.FuncXOR:
		return "xor"
	case funct7 == isa.Funct7Default && funct3 == isa.FuncSRL:
		return "srl"
	case funct7 == isa.Funct7SRA && funct3 == isa.FuncSRL:
		return "sra"
	case funct7 == isa.Funct7Default && funct3 == isa.FuncOR:
		return "or"
	case funct7 == isa.Funct7Default && funct3 == isa.FuncAND:
		return "and"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncMUL:
		return "mul"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncMULH:
		return "mulh"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncMULHSU:
		return "mulhsu"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncMULHU:
		return "mulhu"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncDIV:
		return "div"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncDIVU:
		return "divu"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncREM:
		return "rem"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncREMU:
		return "remu"
	default:
		return "unknown_op_reg"
	}
}

func reg32Mnemonic(funct7, funct3 uint32) string {
	switch {
	case funct7 == isa.Funct7Default && funct3 == isa.FuncAddSub:
		return "addw"
	case funct7 == isa.Funct7Sub && funct3 == isa.FuncAddSub:
		return "subw"
	case funct7 == isa.Funct7Default && funct3 == isa.FuncSLL:
		return "sllw"
	case funct7 == isa.Funct7Default && funct3 == isa.FuncSRL:
		return "srlw"
	case funct7 == isa.Funct7SRA && funct3 == isa.FuncSRL:
		return "sraw"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncMUL:
		return "mulw"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncDIV:
		return "divw"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncDIVU:
		return "divuw"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncREM:
		return "remw"
	case funct7 == isa.Funct7MulDiv && funct3 == isa.FuncREMU:
		return "remuw"
	default:
		return "unknown_op_reg_32"
	}
}
