// Package isa is the single source of truth for the RV64IM encoding: opcode,
// funct3, funct7, CSR address, ABI register, and trap cause constants shared
// by the assembler, the disassembler, and the CPU's execute stage. No other
// package may redefine these values.
package isa

// Opcode field values (inst[6:0]).
const (
	OpLoad    uint32 = 0b0000011
	OpMiscMem uint32 = 0b0001111
	OpImm     uint32 = 0b0010011
	OpAuipc   uint32 = 0b0010111
	OpImm32   uint32 = 0b0011011
	OpStore   uint32 = 0b0100011
	OpReg     uint32 = 0b0110011
	OpLui     uint32 = 0b0110111
	OpReg32   uint32 = 0b0111011
	OpBranch  uint32 = 0b1100011
	OpJalr    uint32 = 0b1100111
	OpJal     uint32 = 0b1101111
	OpSystem  uint32 = 0b1110011
	OpAmo     uint32 = 0b0101111
	OpLoadFP  uint32 = 0b0000111
	OpStoreFP uint32 = 0b0100111
	OpFP      uint32 = 0b1010011
)

// Funct3 field values (inst[14:12]), grouped by the opcode family that uses them.
const (
	FuncLB = 0b000
	FuncLH = 0b001
	FuncLW = 0b010
	FuncLD = 0b011
	FuncLBU = 0b100
	FuncLHU = 0b101
	FuncLWU = 0b110

	FuncSB = 0b000
	FuncSH = 0b001
	FuncSW = 0b010
	FuncSD = 0b011

	FuncBEQ  = 0b000
	FuncBNE  = 0b001
	FuncBLT  = 0b100
	FuncBGE  = 0b101
	FuncBLTU = 0b110
	FuncBGEU = 0b111

	FuncAddSub = 0b000
	FuncSLL    = 0b001
	FuncSLT    = 0b010
	FuncSLTU   = 0b011
	FuncXOR    = 0b100
	FuncSRL    = 0b101 // shares the funct3 slot with SRA; funct7 disambiguates
	FuncOR     = 0b110
	FuncAND    = 0b111

	FuncMUL    = 0b000
	FuncMULH   = 0b001
	FuncMULHSU = 0b010
	FuncMULHU  = 0b011
	FuncDIV    = 0b100
	FuncDIVU   = 0b101
	FuncREM    = 0b110
	FuncREMU   = 0b111

	FuncCSRRW  = 0b001
	FuncCSRRS  = 0b010
	FuncCSRRC  = 0b011
	FuncCSRRWI = 0b101
	FuncCSRRSI = 0b110
	FuncCSRRCI = 0b111

	FuncFence   = 0b000
	FuncFenceI  = 0b001
)

// Funct7 field values (inst[31:25]).
const (
	Funct7Default uint32 = 0b0000000
	Funct7Sub     uint32 = 0b0100000
	Funct7SRA     uint32 = 0b0100000
	Funct7MulDiv  uint32 = 0b0000001
)

// SYSTEM-opcode funct12 values (inst[31:20] with funct3 == 0).
const (
	Funct12Ecall  uint32 = 0x000
	Funct12Ebreak uint32 = 0x001
	Funct12Uret   uint32 = 0x002
	Funct12Sret   uint32 = 0x102
	Funct12Mret   uint32 = 0x302
)

// Trap cause codes. Bit 63 distinguishes interrupts from exceptions.
const (
	InterruptBit uint64 = 1 << 63

	CauseInstructionAddressMisaligned uint64 = 0
	CauseInstructionAccessFault       uint64 = 1
	CauseIllegalInstruction           uint64 = 2
	CauseBreakpoint                   uint64 = 3
	CauseLoadAddressMisaligned        uint64 = 4
	CauseLoadAccessFault              uint64 = 5
	CauseStoreAMOAddressMisaligned    uint64 = 6
	CauseStoreAMOAccessFault          uint64 = 7
	CauseECallFromUMode               uint64 = 8
	CauseECallFromSMode               uint64 = 9
	CauseECallFromMMode               uint64 = 11
	CauseInstructionPageFault         uint64 = 12
	CauseLoadPageFault                uint64 = 13
	CauseStoreAMOPageFault            uint64 = 15

	CauseUserSoftwareInterrupt       uint64 = InterruptBit | 0
	CauseSupervisorSoftwareInterrupt uint64 = InterruptBit | 1
	CauseMachineSoftwareInterrupt    uint64 = InterruptBit | 3
	CauseUserTimerInterrupt          uint64 = InterruptBit | 4
	CauseSupervisorTimerInterrupt    uint64 = InterruptBit | 5
	CauseMachineTimerInterrupt       uint64 = InterruptBit | 7
	CauseUserExternalInterrupt       uint64 = InterruptBit | 8
	CauseSupervisorExternalInterrupt uint64 = InterruptBit | 9
	CauseMachineExternalInterrupt    uint64 = InterruptBit | 11
)

// CSR addresses, 12 bits. Only eleven of these (nine trap/privilege
// registers plus medeleg and mideleg) get named-field storage in emu/csr;
// the supervisor aliases are views over those fields and the rest live in
// its open map.
const (
	CsrUstatus  uint32 = 0x000
	CsrUie      uint32 = 0x004
	CsrUtvec    uint32 = 0x005
	CsrUscratch uint32 = 0x040
	CsrUepc     uint32 = 0x041
	CsrUcause   uint32 = 0x042
	CsrUtval    uint32 = 0x043
	CsrUip      uint32 = 0x044

	CsrSstatus    uint32 = 0x100
	CsrSedeleg    uint32 = 0x102
	CsrSideleg    uint32 = 0x103
	CsrSie        uint32 = 0x104
	CsrStvec      uint32 = 0x105
	CsrScounteren uint32 = 0x106
	CsrSscratch   uint32 = 0x140
	CsrSepc       uint32 = 0x141
	CsrScause     uint32 = 0x142
	CsrStval      uint32 = 0x143
	CsrSip        uint32 = 0x144
	CsrSatp       uint32 = 0x180

	CsrMvendorid  uint32 = 0xF11
	CsrMarchid    uint32 = 0xF12
	CsrMimpid     uint32 = 0xF13
	CsrMhartid    uint32 = 0xF14
	CsrMstatus    uint32 = 0x300
	CsrMisa       uint32 = 0x301
	CsrMedeleg    uint32 = 0x302
	CsrMideleg    uint32 = 0x303
	CsrMie        uint32 = 0x304
	CsrMtvec      uint32 = 0x305
	CsrMcounteren uint32 = 0x306
	CsrMscratch   uint32 = 0x340
	CsrMepc       uint32 = 0x341
	CsrMcause     uint32 = 0x342
	CsrMtval      uint32 = 0x343
	CsrMip        uint32 = 0x344
)

// ABI register indices, index 0..31 into the register file.
const (
	Zero uint32 = 0
	RA   uint32 = 1
	SP   uint32 = 2
	GP   uint32 = 3
	TP   uint32 = 4
	T0   uint32 = 5
	T1   uint32 = 6
	T2   uint32 = 7
	S0   uint32 = 8
	FP   uint32 = 8
	S1   uint32 = 9
	A0   uint32 = 10
	A1   uint32 = 11
	A2   uint32 = 12
	A3   uint32 = 13
	A4   uint32 = 14
	A5   uint32 = 15
	A6   uint32 = 16
	A7   uint32 = 17
	S2   uint32 = 18
	S3   uint32 = 19
	S4   uint32 = 20
	S5   uint32 = 21
	S6   uint32 = 22
	S7   uint32 = 23
	S8   uint32 = 24
	S9   uint32 = 25
	S10  uint32 = 26
	S11  uint32 = 27
	T3   uint32 = 28
	T4   uint32 = 29
	T5   uint32 = 30
	T6   uint32 = 31
)

// BaseAddress is the guest-physical base that virtual address 0x8000_0000
// maps to in bare mode, and that the assembler's entry point is relative to.
const BaseAddress uint64 = 0x8000_0000

// ABINames gives the canonical ABI mnemonic per register index, used by the
// disassembler.
var ABINames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// registerNames maps every accepted assembler spelling (ABI name or xN form)
// to its register index.
var registerNames = map[string]uint32{
	"zero": Zero, "x0": Zero,
	"ra": RA, "x1": RA,
	"sp": SP, "x2": SP,
	"gp": GP, "x3": GP,
	"tp": TP, "x4": TP,
	"t0": T0, "x5": T0,
	"t1": T1, "x6": T1,
	"t2": T2, "x7": T2,
	"s0": S0, "fp": FP, "x8": S0,
	"s1": S1, "x9": S1,
	"a0": A0, "x10": A0,
	"a1": A1, "x11": A1,
	"a2": A2, "x12": A2,
	"a3": A3, "x13": A3,
	"a4": A4, "x14": A4,
	"a5": A5, "x15": A5,
	"a6": A6, "x16": A6,
	"a7": A7, "x17": A7,
	"s2": S2, "x18": S2,
	"s3": S3, "x19": S3,
	"s4": S4, "x20": S4,
	"s5": S5, "x21": S5,
	"s6": S6, "x22": S6,
	"s7": S7, "x23": S7,
	"s8": S8, "x24": S8,
	"s9": S9, "x25": S9,
	"s10": S10, "x26": S10,
	"s11": S11, "x27": S11,
	"t3": T3, "x28": T3,
	"t4": T4, "x29": T4,
	"t5": T5, "x30": T5,
	"t6": T6, "x31": T6,
}

// csrNames maps every mnemonic symbolic CSR name the assembler accepts to
// its 12-bit address.
var csrNames = map[string]uint32{
	"ustatus": CsrUstatus, "uie": CsrUie, "utvec": CsrUtvec,
	"uscratch": CsrUscratch, "uepc": CsrUepc, "ucause": CsrUcause,
	"utval": CsrUtval, "uip": CsrUip,
	"sstatus": CsrSstatus, "sedeleg": CsrSedeleg, "sideleg": CsrSideleg,
	"sie": CsrSie, "stvec": CsrStvec, "scounteren": CsrScounteren,
	"sscratch": CsrSscratch, "sepc": CsrSepc, "scause": CsrScause,
	"stval": CsrStval, "sip": CsrSip, "satp": CsrSatp,
	"mvendorid": CsrMvendorid, "marchid": CsrMarchid, "mimpid": CsrMimpid,
	"mhartid": CsrMhartid, "mstatus": CsrMstatus, "misa": CsrMisa,
	"medeleg": CsrMedeleg, "mideleg": CsrMideleg, "mie": CsrMie,
	"mtvec": CsrMtvec, "mcounteren": CsrMcounteren, "mscratch": CsrMscratch,
	"mepc": CsrMepc, "mcause": CsrMcause, "mtval": CsrMtval, "mip": CsrMip,
}

// csrDisplayNames is the reverse of csrNames, used by the disassembler; it
// favors the canonical spelling where csrNames has aliases.
var csrDisplayNames = map[uint32]string{
	CsrUstatus: "ustatus", CsrUie: "uie", CsrUtvec: "utvec",
	CsrUscratch: "uscratch", CsrUepc: "uepc", CsrUcause: "ucause",
	CsrUtval: "utval", CsrUip: "uip",
	CsrSstatus: "sstatus", CsrSedeleg: "sedeleg", CsrSideleg: "sideleg",
	CsrSie: "sie", CsrStvec: "stvec", CsrScounteren: "scounteren",
	CsrSscratch: "sscratch", CsrSepc: "sepc", CsrScause: "scause",
	CsrStval: "stval", CsrSip: "sip", CsrSatp: "satp",
	CsrMvendorid: "mvendorid", CsrMarchid: "marchid", CsrMimpid: "mimpid",
	CsrMhartid: "mhartid", CsrMstatus: "mstatus", CsrMisa: "misa",
	CsrMedeleg: "medeleg", CsrMideleg: "mideleg", CsrMie: "mie",
	CsrMtvec: "mtvec", CsrMcounteren: "mcounteren", CsrMscratch: "mscratch",
	CsrMepc: "mepc", CsrMcause: "mcause", CsrMtval: "mtval", CsrMip: "mip",
}

// RegisterByName resolves an ABI or numeric register spelling to its index.
func RegisterByName(name string) (uint32, bool) {
	r, ok := registerNames[name]
	return r, ok
}

// ABIName returns the canonical register mnemonic for index reg.
func ABIName(reg uint32) string {
	if reg > 31 {
		return "unknown"
	}
	return ABINames[reg]
}

// CSRByName resolves a symbolic CSR mnemonic to its address.
func CSRByName(name string) (uint32, bool) {
	c, ok := csrNames[name]
	return c, ok
}

// CSRName returns the symbolic name of a CSR address, or "extra" when the
// address has no well-known mnemonic (matches the disassembler's fallback
// for addresses outside the table, e.g. PMP/cycle counters).
func CSRName(addr uint32) string {
	if name, ok := csrDisplayNames[addr]; ok {
		return name
	}
	return "extra"
}
