// Package csr implements the control and status register file: the named
// machine-mode fields required by trap handling, an open map for the
// remaining addressable CSRs, and the supervisor-view masking used by
// sstatus/sie/sip.
package csr

import "github.com/rcornwell/rv64core/isa"

// MstatusMask selects the bits of mstatus that are visible through the
// sstatus alias: SIE, SPIE, SPP, SUM, MXR, and the UXL/SD fields.
const MstatusMask uint64 = 0x80000003_000C0122

// File holds the nine CSRs the trap pipeline and privilege model read or
// write on every cycle as named fields, medeleg and mideleg as two more
// named fields (mideleg masks the sie/sip views), plus an open map for everything
// else a program may probe (mvendorid, misa, counters, pmp registers...).
// Named fields avoid a map lookup on the hot trap path; the map keeps the
// file from having to special-case every rarely touched address.
type File struct {
	Mstatus  uint64
	Mie      uint64
	Mip      uint64
	Mepc     uint64
	Mcause   uint64
	Mtval    uint64
	Mscratch uint64
	Mtvec    uint64
	Satp     uint64

	Medeleg uint64
	Mideleg uint64

	extra map[uint32]uint64
}

// NewFile returns a CSR file with every register zeroed, as required at
// reset. sedeleg/sideleg are pre-populated in the open map at 0: they are
// addressable CSRs that exist but carry no delegation logic here, and
// must read back as defined rather than falling through as unknown.
func NewFile() *File {
	return &File{extra: map[uint32]uint64{
		isa.CsrSedeleg: 0,
		isa.CsrSideleg: 0,
	}}
}

// privOf extracts the two-bit minimum-privilege field encoded in a CSR
// address: bits [9:8] of the 12-bit address.
func privOf(addr uint32) uint8 {
	return uint8((addr >> 8) & 3)
}

// Read returns the value of addr as seen from priv, and false if priv is
// insufficient or the address is unknown. Supervisor-visible aliases are
// computed from the machine-mode fields they shadow.
func (f *File) Read(addr uint32, priv uint8) (uint64, bool) {
	if priv < privOf(addr) {
		return 0, false
	}
	switch addr {
	case isa.CsrMstatus:
		return f.Mstatus, true
	case isa.CsrSstatus:
		return f.Mstatus & MstatusMask, true
	case isa.CsrMie:
		return f.Mie, true
	case isa.CsrSie:
		return f.Mie & f.Mideleg, true
	case isa.CsrMip:
		return f.Mip, true
	case isa.CsrSip:
		return f.Mip & f.Mideleg, true
	case isa.CsrMepc:
		return f.Mepc, true
	case isa.CsrSepc:
		return f.Mepc, true
	case isa.CsrMcause:
		return f.Mcause, true
	case isa.CsrScause:
		return f.Mcause, true
	case isa.CsrMtval:
		return f.Mtval, true
	case isa.CsrStval:
		return f.Mtval, true
	case isa.CsrMscratch:
		return f.Mscratch, true
	case isa.CsrSscratch:
		return f.Mscratch, true
	case isa.CsrMtvec:
		return f.Mtvec, true
	case isa.CsrStvec:
		return f.Mtvec, true
	case isa.CsrMedeleg:
		return f.Medeleg, true
	case isa.CsrMideleg:
		return f.Mideleg, true
	case isa.CsrSatp:
		return f.Satp, true
	case isa.CsrMhartid:
		return 0, true
	default:
		v, ok := f.extra[addr]
		return v, ok
	}
}

// Write stores value at addr as seen from priv, reporting whether the
// write was permitted. Writes to read-only addresses (the top two bits of
// addr both set) are rejected regardless of privilege, matching the
// standard CSR address encoding.
func (f *File) Write(addr uint32, value uint64, priv uint8) bool {
	if priv < privOf(addr) {
		return false
	}
	if (addr>>10)&3 == 3 {
		return false
	}
	switch addr {
	case isa.CsrMstatus:
		f.Mstatus = value
	case isa.CsrSstatus:
		f.Mstatus = (f.Mstatus &^ MstatusMask) | (value & MstatusMask)
	case isa.CsrMie:
		f.Mie = value
	case isa.CsrSie:
		f.Mie = (f.Mie &^ f.Mideleg) | (value & f.Mideleg)
	case isa.CsrMip:
		f.Mip = value
	case isa.CsrSip:
		f.Mip = (f.Mip &^ f.Mideleg) | (value & f.Mideleg)
	case isa.CsrMepc:
		f.Mepc = value &^ 1
	case isa.CsrSepc:
		f.Mepc = value &^ 1
	case isa.CsrMcause:
		f.Mcause = value
	case isa.CsrScause:
		f.Mcause = value
	case isa.CsrMtval:
		f.Mtval = value
	case isa.CsrStval:
		f.Mtval = value
	case isa.CsrMscratch:
		f.Mscratch = value
	case isa.CsrSscratch:
		f.Mscratch = value
	case isa.CsrMtvec:
		f.Mtvec = value
	case isa.CsrStvec:
		f.Mtvec = value
	case isa.CsrMedeleg:
		f.Medeleg = value
	case isa.CsrMideleg:
		f.Mideleg = value
	case isa.CsrSatp:
		f.Satp = value
	case isa.CsrMvendorid, isa.CsrMarchid, isa.CsrMimpid, isa.CsrMhartid:
		return false
	default:
		f.extra[addr] = value
	}
	return true
}

// SetMRETState restores mstatus from an MRET or SRET as computed by the
// caller, bypassing the normal privilege-checked Write path: by the time the
// trap return writes mstatus, the hart's privilege may already have been
// lowered below machine mode, where a checked write would fail.
func (f *File) SetMRETState(mstatus uint64) {
	f.Mstatus = mstatus
}
