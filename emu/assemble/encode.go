package assembler

import (
	"strconv"
	"strings"

	"github.com/rcornwell/rv64core/isa"
)

func parseImmediate(s string) (int64, error) {
	s = strings.TrimSuffix(s, ",")
	switch {
	case strings.HasPrefix(s, "0x"):
		v, err := strconv.ParseInt(s[2:], 16, 64)
		return v, err
	case strings.HasPrefix(s, "0b"):
		v, err := strconv.ParseInt(s[2:], 2, 64)
		return v, err
	default:
		return strconv.ParseInt(s, 10, 64)
	}
}

func parseRegister(s string) (uint32, bool) {
	return isa.RegisterByName(strings.TrimSuffix(s, ","))
}

func parseCSR(s string) (uint32, bool) {
	s = strings.TrimSuffix(s, ",")
	if strings.HasPrefix(s, "0x") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, false
		}
		return uint32(v), true
	}
	return isa.CSRByName(s)
}

// parseMemoryOperand splits "offset(reg)" into its signed offset and base
// register index. An empty offset (e.g. "(sp)") is zero.
func parseMemoryOperand(s string) (int32, uint32, bool) {
	if !strings.HasSuffix(s, ")") {
		return 0, 0, false
	}
	body := s[:len(s)-1]
	open := strings.Index(body, "(")
	if open < 0 {
		return 0, 0, false
	}
	offsetStr, regStr := body[:open], body[open+1:]
	var offset int64
	if offsetStr != "" {
		v, err := parseImmediate(offsetStr)
		if err != nil {
			return 0, 0, false
		}
		offset = v
	}
	reg, ok := parseRegister(regStr)
	if !ok {
		return 0, 0, false
	}
	return int32(offset), reg, true
}

func encodeRType(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return (funct7 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encodeIType(imm, rs1, funct3, rd, opcode uint32) uint32 {
	return (imm << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encodeSType(imm, rs2, rs1, funct3, opcode uint32) uint32 {
	imm11_5 := (imm >> 5) & 0x7F
	imm4_0 := imm & 0x1F
	return (imm11_5 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (imm4_0 << 7) | opcode
}

func encodeBType(imm, rs2, rs1, funct3, opcode uint32) uint32 {
	imm12 := (imm >> 12) & 1
	imm11 := (imm >> 11) & 1
	imm10_5 := (imm >> 5) & 0x3F
	imm4_1 := (imm >> 1) & 0xF
	hi := (imm12 << 6) | imm10_5
	lo := (imm4_1 << 1) | imm11
	return (hi << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (lo << 7) | opcode
}

func encodeUType(imm, rd, opcode uint32) uint32 {
	return (imm & 0xFFFFF000) | (rd << 7) | opcode
}

func encodeJType(imm, rd, opcode uint32) uint32 {
	imm20 := (imm >> 20) & 1
	imm10_1 := (imm >> 1) & 0x3FF
	imm11 := (imm >> 11) & 1
	imm19_12 := (imm >> 12) & 0xFF
	encoded := (imm20 << 19) | imm19_12 | (imm11 << 8) | (imm10_1 << 9)
	return (encoded << 12) | (rd << 7) | opcode
}

var rTypeInstructions = map[string]struct {
	funct7, funct3, opcode uint32
}{
	"add":  {isa.Funct7Default, isa.FuncAddSub, isa.OpReg},
	"sub":  {isa.Funct7Sub, isa.FuncAddSub, isa.OpReg},
	"sll":  {isa.Funct7Default, isa.FuncSLL, isa.OpReg},
	"slt":  {isa.Funct7Default, isa.FuncSLT, isa.OpReg},
	"sltu": {isa.Funct7Default, isa.FuncSLTU, isa.OpReg},
	"xor":  {isa.Funct7Default, isa.FuncXOR, isa.OpReg},
	"srl":  {isa.Funct7Default, isa.FuncSRL, isa.OpReg},
	"sra":  {isa.Funct7SRA, isa.FuncSRL, isa.OpReg},
	"or":   {isa.Funct7Default, isa.FuncOR, isa.OpReg},
	"and":  {isa.Funct7Default, isa.FuncAND, isa.OpReg},

	"addw": {isa.Funct7Default, isa.FuncAddSub, isa.OpReg32},
	"subw": {isa.Funct7Sub, isa.FuncAddSub, isa.OpReg32},
	"sllw": {isa.Funct7Default, isa.FuncSLL, isa.OpReg32},
	"srlw": {isa.Funct7Default, isa.FuncSRL, isa.OpReg32},
	"sraw": {isa.Funct7SRA, isa.FuncSRL, isa.OpReg32},

	"mul":    {isa.Funct7MulDiv, isa.FuncMUL, isa.OpReg},
	"mulh":   {isa.Funct7MulDiv, isa.FuncMULH, isa.OpReg},
	"mulhsu": {isa.Funct7MulDiv, isa.FuncMULHSU, isa.OpReg},
	"mulhu":  {isa.Funct7MulDiv, isa.FuncMULHU, isa.OpReg},
	"div":    {isa.Funct7MulDiv, isa.FuncDIV, isa.OpReg},
	"divu":   {isa.Funct7MulDiv, isa.FuncDIVU, isa.OpReg},
	"rem":    {isa.Funct7MulDiv, isa.FuncREM, isa.OpReg},
	"remu":   {isa.Funct7MulDiv, isa.FuncREMU, isa.OpReg},

	"mulw":  {isa.Funct7MulDiv, isa.FuncMUL, isa.OpReg32},
	"divw":  {isa.Funct7MulDiv, isa.FuncDIV, isa.OpReg32},
	"divuw": {isa.Funct7MulDiv, isa.FuncDIVU, isa.OpReg32},
	"remw":  {isa.Funct7MulDiv, isa.FuncREM, isa.OpReg32},
	"remuw": {isa.Funct7MulDiv, isa.FuncREMU, isa.OpReg32},
}

var iTypeLoads = map[string]uint32{
	"lb": isa.FuncLB, "lh": isa.FuncLH, "lw": isa.FuncLW, "ld": isa.FuncLD,
	"lbu": isa.FuncLBU, "lhu": isa.FuncLHU, "lwu": isa.FuncLWU,
}

var iTypeImm = map[string]struct{ funct3, opcode uint32 }{
	"addi":  {isa.FuncAddSub, isa.OpImm},
	"slti":  {isa.FuncSLT, isa.OpImm},
	"sltiu": {isa.FuncSLTU, isa.OpImm},
	"xori":  {isa.FuncXOR, isa.OpImm},
	"ori":   {isa.FuncOR, isa.OpImm},
	"andi":  {isa.FuncAND, isa.OpImm},
	"addiw": {isa.FuncAddSub, isa.OpImm32},
}

var sTypeStores = map[string]uint32{
	"sb": isa.FuncSB, "sh": isa.FuncSH, "sw": isa.FuncSW, "sd": isa.FuncSD,
}

var bTypeBranches = map[string]uint32{
	"beq": isa.FuncBEQ, "bne": isa.FuncBNE, "blt": isa.FuncBLT,
	"bge": isa.FuncBGE, "bltu": isa.FuncBLTU, "bgeu": isa.FuncBGEU,
}

// encodeInstruction encodes one assembly mnemonic plus its already-tokenized
// operands into one or more 32-bit instruction words (more than one only
// for the la pseudo-instruction), resolving label operands against the
// three label tables built in pass 1.
func encodeInstruction(mnemonic string, operands []string, currentAddr uint64,
	textLabels, dataLabels, bssLabels map[string]uint64, textSize, dataSize uint64,
) ([]uint32, ErrorKind, string) {
	switch {
	case mnemonic == "nop":
		return []uint32{encodeIType(0, 0, isa.FuncAddSub, 0, isa.OpImm)}, 0, ""

	case isRType(mnemonic):
		if len(operands) < 3 {
			return nil, ParseError, "expected rd, rs1, rs2"
		}
		rd, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		rs1, ok := parseRegister(operands[1])
		if !ok {
			return nil, InvalidRegister, operands[1]
		}
		rs2, ok := parseRegister(operands[2])
		if !ok {
			return nil, InvalidRegister, operands[2]
		}
		f := rTypeInstructions[mnemonic]
		return []uint32{encodeRType(f.funct7, rs2, rs1, f.funct3, rd, f.opcode)}, 0, ""

	case mnemonic == "slli" || mnemonic == "srli" || mnemonic == "srai":
		if len(operands) < 3 {
			return nil, ParseError, "expected rd, rs1, shamt"
		}
		rd, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		rs1, ok := parseRegister(operands[1])
		if !ok {
			return nil, InvalidRegister, operands[1]
		}
		shamtVal, err := parseImmediate(operands[2])
		if err != nil {
			return nil, InvalidImmediateValue, operands[2]
		}
		shamt := uint32(shamtVal) & 0x3F
		funct7 := isa.Funct7Default
		if mnemonic == "srai" {
			funct7 = isa.Funct7SRA
		}
		funct3 := uint32(isa.FuncSLL)
		if mnemonic != "slli" {
			funct3 = isa.FuncSRL
		}
		return []uint32{encodeRType(funct7, shamt, rs1, funct3, rd, isa.OpImm)}, 0, ""

	case mnemonic == "slliw" || mnemonic == "srliw" || mnemonic == "sraiw":
		if len(operands) < 3 {
			return nil, ParseError, "expected rd, rs1, shamt"
		}
		rd, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		rs1, ok := parseRegister(operands[1])
		if !ok {
			return nil, InvalidRegister, operands[1]
		}
		shamtVal, err := parseImmediate(operands[2])
		if err != nil {
			return nil, InvalidImmediateValue, operands[2]
		}
		shamt := uint32(shamtVal) & 0x1F
		funct7 := isa.Funct7Default
		if mnemonic == "sraiw" {
			funct7 = isa.Funct7SRA
		}
		funct3 := uint32(isa.FuncSLL)
		if mnemonic != "slliw" {
			funct3 = isa.FuncSRL
		}
		return []uint32{encodeRType(funct7, shamt, rs1, funct3, rd, isa.OpImm32)}, 0, ""

	case isKnownIImm(mnemonic):
		if len(operands) < 3 {
			return nil, ParseError, "expected rd, rs1, imm"
		}
		rd, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		rs1, ok := parseRegister(operands[1])
		if !ok {
			return nil, InvalidRegister, operands[1]
		}
		imm, err := parseImmediate(operands[2])
		if err != nil {
			return nil, InvalidImmediateValue, operands[2]
		}
		f := iTypeImm[mnemonic]
		return []uint32{encodeIType(uint32(int32(imm)), rs1, f.funct3, rd, f.opcode)}, 0, ""

	case isKnownLoad(mnemonic):
		if len(operands) < 2 {
			return nil, ParseError, "expected rd, offset(base)"
		}
		rd, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		offset, base, ok := parseMemoryOperand(operands[1])
		if !ok {
			return nil, InvalidMemoryOperand, operands[1]
		}
		return []uint32{encodeIType(uint32(offset), base, iTypeLoads[mnemonic], rd, isa.OpLoad)}, 0, ""

	case mnemonic == "jalr":
		if len(operands) == 0 {
			return nil, ParseError, "expected rs1 or rd, offset(rs1)"
		}
		var rs1, rd uint32
		var imm int32
		var ok bool
		if len(operands) == 1 {
			rd = isa.RA
			rs1, ok = parseRegister(operands[0])
			if !ok {
				return nil, InvalidRegister, operands[0]
			}
		} else {
			rd, ok = parseRegister(operands[0])
			if !ok {
				return nil, InvalidRegister, operands[0]
			}
			if strings.Contains(operands[1], "(") {
				imm, rs1, ok = parseMemoryOperand(operands[1])
				if !ok {
					return nil, InvalidMemoryOperand, operands[1]
				}
			} else {
				rs1, ok = parseRegister(operands[1])
				if !ok {
					return nil, InvalidRegister, operands[1]
				}
			}
		}
		return []uint32{encodeIType(uint32(imm), rs1, isa.FuncAddSub, rd, isa.OpJalr)}, 0, ""

	case mnemonic == "ret":
		return []uint32{encodeIType(0, isa.RA, isa.FuncAddSub, isa.Zero, isa.OpJalr)}, 0, ""

	case isKnownStore(mnemonic):
		if len(operands) < 2 {
			return nil, ParseError, "expected rs2, offset(base)"
		}
		rs2, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		offset, base, ok := parseMemoryOperand(operands[1])
		if !ok {
			return nil, InvalidMemoryOperand, operands[1]
		}
		return []uint32{encodeSType(uint32(offset), rs2, base, sTypeStores[mnemonic], isa.OpStore)}, 0, ""

	case isKnownBranch(mnemonic):
		if len(operands) < 3 {
			return nil, ParseError, "expected rs1, rs2, label"
		}
		rs1, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		rs2, ok := parseRegister(operands[1])
		if !ok {
			return nil, InvalidRegister, operands[1]
		}
		target, ok := textLabels[operands[2]]
		if !ok {
			return nil, UndefinedLabel, operands[2]
		}
		offset := uint32(int64(target) - int64(currentAddr))
		return []uint32{encodeBType(offset, rs2, rs1, bTypeBranches[mnemonic], isa.OpBranch)}, 0, ""

	case mnemonic == "lui" || mnemonic == "auipc":
		if len(operands) < 2 {
			return nil, ParseError, "expected rd, imm"
		}
		rd, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		imm, err := parseImmediate(operands[1])
		if err != nil {
			return nil, InvalidImmediateValue, operands[1]
		}
		opcode := uint32(isa.OpLui)
		if mnemonic == "auipc" {
			opcode = isa.OpAuipc
		}
		return []uint32{encodeUType(uint32(imm)<<12, rd, opcode)}, 0, ""

	case mnemonic == "jal":
		if len(operands) < 2 {
			return nil, ParseError, "expected rd, label"
		}
		rd, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		target, ok := textLabels[operands[1]]
		if !ok {
			return nil, UndefinedLabel, operands[1]
		}
		offset := uint32(int64(target) - int64(currentAddr))
		return []uint32{encodeJType(offset, rd, isa.OpJal)}, 0, ""

	case mnemonic == "j":
		if len(operands) < 1 {
			return nil, ParseError, "expected label"
		}
		target, ok := textLabels[operands[0]]
		if !ok {
			return nil, UndefinedLabel, operands[0]
		}
		offset := uint32(int64(target) - int64(currentAddr))
		return []uint32{encodeJType(offset, isa.Zero, isa.OpJal)}, 0, ""

	case mnemonic == "li":
		if len(operands) < 2 {
			return nil, ParseError, "expected rd, imm"
		}
		rd, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		imm, err := parseImmediate(operands[1])
		if err != nil {
			return nil, InvalidImmediateValue, operands[1]
		}
		if imm < -2048 || imm > 2047 {
			return nil, ValueOutOfRange, operands[1]
		}
		return []uint32{encodeIType(uint32(int32(imm)), isa.Zero, isa.FuncAddSub, rd, isa.OpImm)}, 0, ""

	case mnemonic == "la":
		if len(operands) < 2 {
			return nil, ParseError, "expected rd, label"
		}
		rd, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		label := operands[1]
		var targetOffset uint64
		switch {
		case func() bool { _, ok := textLabels[label]; return ok }():
			targetOffset = textLabels[label]
		case func() bool { _, ok := dataLabels[label]; return ok }():
			targetOffset = textSize + dataLabels[label]
		case func() bool { _, ok := bssLabels[label]; return ok }():
			targetOffset = textSize + dataSize + bssLabels[label]
		default:
			return nil, UndefinedLabel, label
		}
		targetAddr := isa.BaseAddress + targetOffset
		currentPC := isa.BaseAddress + currentAddr
		offset := int64(targetAddr) - int64(currentPC)
		upper := uint32(offset+0x800) & 0xFFFFF000
		lower := uint32(offset - int64(upper))
		auipc := encodeUType(upper, rd, isa.OpAuipc)
		addi := encodeIType(lower, rd, isa.FuncAddSub, rd, isa.OpImm)
		return []uint32{auipc, addi}, 0, ""

	case mnemonic == "ecall":
		return []uint32{encodeIType(isa.Funct12Ecall, 0, 0, 0, isa.OpSystem)}, 0, ""
	case mnemonic == "ebreak":
		return []uint32{encodeIType(isa.Funct12Ebreak, 0, 0, 0, isa.OpSystem)}, 0, ""
	case mnemonic == "mret":
		return []uint32{encodeIType(isa.Funct12Mret, 0, 0, 0, isa.OpSystem)}, 0, ""
	case mnemonic == "sret":
		return []uint32{encodeIType(isa.Funct12Sret, 0, 0, 0, isa.OpSystem)}, 0, ""

	case mnemonic == "fence":
		imm := uint32(0b1000<<4 | 0b1000)
		return []uint32{encodeIType(imm, 0, isa.FuncFence, 0, isa.OpMiscMem)}, 0, ""
	case mnemonic == "fence.i":
		return []uint32{encodeIType(0, 0, isa.FuncFenceI, 0, isa.OpMiscMem)}, 0, ""

	case isKnownCSR(mnemonic):
		if len(operands) < 3 {
			return nil, ParseError, "expected rd, csr, rs1"
		}
		rd, ok := parseRegister(operands[0])
		if !ok {
			return nil, InvalidRegister, operands[0]
		}
		csr, ok := parseCSR(operands[1])
		if !ok {
			return nil, InvalidImmediateValue, operands[1]
		}
		isImm := strings.HasSuffix(mnemonic, "i")
		var rs1Field uint32
		if isImm {
			imm, err := parseImmediate(operands[2])
			if err != nil {
				return nil, InvalidImmediateValue, operands[2]
			}
			rs1Field = uint32(imm) & 0x1F
		} else {
			reg, ok := parseRegister(operands[2])
			if !ok {
				return nil, InvalidRegister, operands[2]
			}
			rs1Field = reg
		}
		funct3 := csrFuncts[mnemonic]
		return []uint32{(csr << 20) | (rs1Field << 15) | (funct3 << 12) | (rd << 7) | isa.OpSystem}, 0, ""

	default:
		return nil, UnknownInstruction, mnemonic
	}
}

func isRType(m string) bool        { _, ok := rTypeInstructions[m]; return ok }
func isKnownIImm(m string) bool    { _, ok := iTypeImm[m]; return ok }
func isKnownLoad(m string) bool    { _, ok := iTypeLoads[m]; return ok }
func isKnownStore(m string) bool   { _, ok := sTypeStores[m]; return ok }
func isKnownBranch(m string) bool  { _, ok := bTypeBranches[m]; return ok }

var csrFuncts = map[string]uint32{
	"csrrw": isa.FuncCSRRW, "csrrs": isa.FuncCSRRS, "csrrc": isa.FuncCSRRC,
	"csrrwi": isa.FuncCSRRWI, "csrrsi": isa.FuncCSRRSI, "csrrci": isa.FuncCSRRCI,
}

func isKnownCSR(m string) bool { _, ok := csrFuncts[m]; return ok }
