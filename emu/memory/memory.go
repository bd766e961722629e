// Package memory implements the VM's physical address space: a flat byte
// buffer, the virtual disk window, and the Sv39 page walker with its
// translation cache. Every Memory is owned by exactly one VM instance; there
// is no package-level state.
package memory

import (
	"encoding/binary"
	"fmt"

	"github.com/rcornwell/rv64core/emu/csr"
	"github.com/rcornwell/rv64core/isa"
)

const (
	// DefaultSize is the physical RAM size used when a config does not
	// override it.
	DefaultSize = 128 * 1024 * 1024

	// BaseAddress is the guest-physical address that buffer offset 0
	// corresponds to.
	BaseAddress = isa.BaseAddress

	// DiskAddress is the guest-physical address of the virtual disk
	// window, mapped outside of main RAM.
	DiskAddress = 0x9000_0000

	satpModeSv39 = 8 << 60
	satpPPNMask  = (1 << 44) - 1

	pageSize  = 4096
	pteSize   = 8
	pteLevels = 3

	pteValid   = 1 << 0
	pteRead    = 1 << 1
	pteWrite   = 1 << 2
	pteExecute = 1 << 3
)

// Fault reports a failed translation: the faulting address and whether the
// cause is a page fault (any failure while Sv39 is on, including a physical
// address outside RAM) or a plain access fault (MMU off).
type Fault struct {
	Addr      uint64
	PageFault bool
}

// tlbEntry caches a resolved 4KiB leaf translation. Only level-0 (4KiB)
// leaves are cached; superpage translations are always walked fresh, since
// a cache keyed by 4KiB VPN cannot distinguish page sizes without extra
// bookkeeping the walker does not otherwise need.
type tlbEntry struct {
	base uint64 // physical offset of the page, vaddr%pageSize subtracted out
	perm uint64 // PTE R/W/X bits
}

// Memory is the VM's physical address space plus its Sv39 translation
// cache. All addresses returned from Translate are offsets into Bytes, not
// guest-physical addresses.
type Memory struct {
	Bytes []byte
	Disk  []byte

	tlb map[uint64]tlbEntry
}

// New allocates a zeroed physical memory of size bytes.
func New(size int) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	return &Memory{
		Bytes: make([]byte, size),
		tlb:   make(map[uint64]tlbEntry),
	}
}

// LoadDisk installs data as the virtual disk window's backing content.
func (m *Memory) LoadDisk(data []byte) {
	m.Disk = data
}

// InvalidateTLB drops every cached translation. Called whenever satp is
// written, since a new root page table (or a new ASID) invalidates every
// cached mapping.
func (m *Memory) InvalidateTLB() {
	m.tlb = make(map[uint64]tlbEntry)
}

// Translate walks vaddr through the page tables rooted at csrs.Satp (or
// returns it bare-minus-base when Sv39 is not enabled), checking the
// requested access against the leaf PTE's permission bits on every call,
// cache hit or not. The returned address is an offset into m.Bytes, never a
// guest-physical address.
func (m *Memory) Translate(csrs *csr.File, vaddr uint64, isWrite, isExecute bool) (uint64, *Fault) {
	satp, _ := csrs.Read(isa.CsrSatp, 3)
	if satp>>60 != satpModeSv39>>60 {
		if vaddr < BaseAddress {
			return 0, &Fault{Addr: vaddr, PageFault: false}
		}
		paddr := vaddr - BaseAddress
		if paddr >= uint64(len(m.Bytes)) {
			return 0, &Fault{Addr: vaddr, PageFault: false}
		}
		return paddr, nil
	}

	vpn := vaddr / pageSize
	if e, ok := m.tlb[vpn]; ok {
		if checkPerm(e.perm, isWrite, isExecute) {
			return 0, &Fault{Addr: vaddr, PageFault: true}
		}
		return e.base + (vaddr % pageSize), nil
	}

	rootPPN := satp & satpPPNMask
	tableAddr := rootPPN * pageSize

	for level := pteLevels - 1; level >= 0; level-- {
		vpnPart := (vaddr >> (12 + 9*uint(level))) & 0x1FF
		pteAddr := tableAddr + vpnPart*pteSize

		if pteAddr < BaseAddress || pteAddr >= BaseAddress+uint64(len(m.Bytes)) {
			return 0, &Fault{Addr: vaddr, PageFault: true}
		}
		pteOffset := pteAddr - BaseAddress
		pte := binary.LittleEndian.Uint64(m.Bytes[pteOffset : pteOffset+pteSize])

		if pte&pteValid == 0 {
			return 0, &Fault{Addr: vaddr, PageFault: true}
		}

		if pte&(pteRead|pteWrite|pteExecute) != 0 {
			if checkPerm(pte, isWrite, isExecute) {
				return 0, &Fault{Addr: vaddr, PageFault: true}
			}

			var paddr uint64
			switch level {
			case 2: // 1GiB gigapage
				ppn2 := (pte >> 28) & 0x3FFFFFF
				paddr = (ppn2 << 30) | (vaddr & 0x3FFFFFFF)
			case 1: // 2MiB megapage
				ppn2 := (pte >> 28) & 0x3FFFFFF
				ppn1 := (pte >> 19) & 0x1FF
				paddr = (ppn2 << 30) | (ppn1 << 21) | (vaddr & 0x1FFFFF)
			default: // 4KiB page
				ppn := (pte >> 10) & satpPPNMask
				paddr = (ppn << 12) | (vaddr & 0xFFF)
			}

			if level == 0 {
				m.tlb[vpn] = tlbEntry{base: paddr - (vaddr % pageSize), perm: pte}
			}

			if paddr < BaseAddress {
				return 0, &Fault{Addr: paddr, PageFault: true}
			}
			return paddr - BaseAddress, nil
		}

		tableAddr = ((pte >> 10) & satpPPNMask) * pageSize
	}

	return 0, &Fault{Addr: vaddr, PageFault: true}
}

func checkPerm(pte uint64, isWrite, isExecute bool) bool {
	if isWrite && pte&pteWrite == 0 {
		return true
	}
	if !isWrite && isExecute && pte&pteExecute == 0 {
		return true
	}
	if !isWrite && !isExecute && pte&pteRead == 0 {
		return true
	}
	return false
}

// InDiskWindow reports whether guest-physical address addr (not a buffer
// offset) falls within the virtual disk window.
func (m *Memory) InDiskWindow(addr uint64, size int) bool {
	if len(m.Disk) == 0 {
		return false
	}
	return addr >= DiskAddress && addr+uint64(size) <= DiskAddress+uint64(len(m.Disk))
}

// FetchWord reads a little-endian 32-bit instruction word at buffer offset
// off, failing if the read would run past the end of memory.
func (m *Memory) FetchWord(off uint64) (uint32, error) {
	if off+4 > uint64(len(m.Bytes)) {
		return 0, fmt.Errorf("fetch out of range: %#x", off)
	}
	return binary.LittleEndian.Uint32(m.Bytes[off : off+4]), nil
}

// ReadBytes reads size bytes (1, 2, 4, or 8) at buffer offset off as a
// zero-extended little-endian value.
func (m *Memory) ReadBytes(off uint64, size int) (uint64, error) {
	if off+uint64(size) > uint64(len(m.Bytes)) {
		return 0, fmt.Errorf("load out of range: %#x", off)
	}
	switch size {
	case 1:
		return uint64(m.Bytes[off]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(m.Bytes[off : off+2])), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(m.Bytes[off : off+4])), nil
	case 8:
		return binary.LittleEndian.Uint64(m.Bytes[off : off+8]), nil
	default:
		return 0, fmt.Errorf("unsupported load size: %d", size)
	}
}

// WriteBytes writes the low size bytes of value at buffer offset off.
func (m *Memory) WriteBytes(off uint64, size int, value uint64) error {
	if off+uint64(size) > uint64(len(m.Bytes)) {
		return fmt.Errorf("store out of range: %#x", off)
	}
	switch size {
	case 1:
		m.Bytes[off] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(m.Bytes[off:off+2], uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(m.Bytes[off:off+4], uint32(value))
	case 8:
		binary.LittleEndian.PutUint64(m.Bytes[off:off+8], value)
	default:
		return fmt.Errorf("unsupported store size: %d", size)
	}
	return nil
}

// ReadPhysical reads size bytes seen at guest-physical address paddr,
// transparently redirecting reads that land in the disk window. Callers
// pass the guest-physical address (pre-BaseAddress-subtraction) so the disk
// window, which lies outside of m.Bytes, can be checked before the buffer
// offset off is used.
func (m *Memory) ReadPhysical(paddr uint64, off uint64, size int) (uint64, error) {
	if m.InDiskWindow(paddr, size) {
		base := paddr - DiskAddress
		var v uint64
		for i := size - 1; i >= 0; i-- {
			v = v<<8 | uint64(m.Disk[base+uint64(i)])
		}
		return v, nil
	}
	return m.ReadBytes(off, size)
}

// WritePhysical writes size bytes at guest-physical address paddr. Writes
// into the disk window are dropped (the window is read-only from the
// guest's perspective); all other writes go through to the buffer.
func (m *Memory) WritePhysical(paddr uint64, off uint64, size int, value uint64) error {
	if m.InDiskWindow(paddr, size) {
		return nil
	}
	return m.WriteBytes(off, size, value)
}

// LoadBIOS copies data to the start of physical memory.
func (m *Memory) LoadBIOS(data []byte) error {
	if len(data) > len(m.Bytes) {
		return fmt.Errorf("bios image (%d bytes) exceeds memory size (%d bytes)", len(data), len(m.Bytes))
	}
	copy(m.Bytes, data)
	return nil
}
