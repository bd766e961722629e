package memory

import (
	"encoding/binary"
	"testing"

	"github.com/rcornwell/rv64core/emu/csr"
	"github.com/rcornwell/rv64core/isa"
)

func TestBareModeTranslate(t *testing.T) {
	m := New(4096)
	csrs := csr.NewFile()
	paddr, f := m.Translate(csrs, BaseAddress+0x10, false, false)
	if f != nil {
		t.Fatalf("unexpected fault: %+v", f)
	}
	if paddr != 0x10 {
		t.Errorf("translate got: %#x expected: 0x10", paddr)
	}
}

func TestBareModeBelowBaseFaults(t *testing.T) {
	m := New(4096)
	csrs := csr.NewFile()
	_, f := m.Translate(csrs, 0x10, false, false)
	if f == nil || f.PageFault {
		t.Errorf("expected access fault below base address, got: %+v", f)
	}
}

func TestBareModeOutOfRangeFaults(t *testing.T) {
	m := New(4096)
	csrs := csr.NewFile()
	_, f := m.Translate(csrs, BaseAddress+0x2000, false, false)
	if f == nil || f.PageFault {
		t.Errorf("expected access fault past end of memory, got: %+v", f)
	}
}

func setupLeaf(m *Memory, rootPPN, vaddr, physPage uint64, perm uint64) {
	tableOff := rootPPN*pageSize - BaseAddress
	for level := 2; level >= 1; level-- {
		vpnPart := (vaddr >> (12 + 9*uint(level))) & 0x1FF
		next := rootPPN + uint64(3-level)*8
		pteOff := tableOff + vpnPart*8
		pte := (next << 10) | pteValid
		binary.LittleEndian.PutUint64(m.Bytes[pteOff:pteOff+8], pte)
		tableOff = next*pageSize - BaseAddress
	}
	vpn0 := (vaddr >> 12) & 0x1FF
	pteOff := tableOff + vpn0*8
	pte := ((physPage) << 10) | perm | pteValid
	binary.LittleEndian.PutUint64(m.Bytes[pteOff:pteOff+8], pte)
}

func TestSv39FourKilobytePageTranslate(t *testing.T) {
	m := New(1 << 20)
	csrs := csr.NewFile()
	rootPPN := uint64(BaseAddress/pageSize + 1)
	setupLeaf(m, rootPPN, BaseAddress, BaseAddress/pageSize+16, pteRead|pteWrite|pteExecute)
	csrs.Write(isa.CsrSatp, satpModeSv39|rootPPN, 3)

	paddr, f := m.Translate(csrs, BaseAddress, false, true)
	if f != nil {
		t.Fatalf("unexpected fault: %+v", f)
	}
	want := (uint64(BaseAddress/pageSize+16) << 12) - BaseAddress
	if paddr != want {
		t.Errorf("translate got: %#x expected: %#x", paddr, want)
	}
}

func TestSv39PermissionDeniedRechecksOnCacheHit(t *testing.T) {
	m := New(1 << 20)
	csrs := csr.NewFile()
	rootPPN := uint64(BaseAddress/pageSize + 1)
	setupLeaf(m, rootPPN, BaseAddress, BaseAddress/pageSize+16, pteRead)
	csrs.Write(isa.CsrSatp, satpModeSv39|rootPPN, 3)

	if _, f := m.Translate(csrs, BaseAddress, false, false); f != nil {
		t.Fatalf("unexpected fault on first read: %+v", f)
	}
	// Cached now; a write to the same page must still be rejected, proving
	// the permission check runs again on the cache-hit path.
	if _, f := m.Translate(csrs, BaseAddress, true, false); f == nil {
		t.Errorf("expected write to read-only cached page to fault")
	}
}

func TestSv39InvalidPTEFaults(t *testing.T) {
	m := New(1 << 20)
	csrs := csr.NewFile()
	csrs.Write(isa.CsrSatp, satpModeSv39|(BaseAddress/pageSize+1), 3)
	_, f := m.Translate(csrs, BaseAddress, false, false)
	if f == nil || !f.PageFault {
		t.Errorf("expected page fault for unmapped address, got: %+v", f)
	}
}

func TestTLBInvalidateOnSatpChange(t *testing.T) {
	m := New(1 << 20)
	csrs := csr.NewFile()
	setupLeaf(m, BaseAddress/pageSize+1, BaseAddress, BaseAddress/pageSize+16, pteRead|pteWrite|pteExecute)
	csrs.Write(isa.CsrSatp, satpModeSv39|(BaseAddress/pageSize+1), 3)
	m.Translate(csrs, BaseAddress, false, false)
	if len(m.tlb) != 1 {
		t.Fatalf("expected one cached entry, got: %d", len(m.tlb))
	}
	m.InvalidateTLB()
	if len(m.tlb) != 0 {
		t.Errorf("expected TLB cleared, got: %d entries", len(m.tlb))
	}
}

func TestReadWriteBytesRoundTrip(t *testing.T) {
	m := New(64)
	if err := m.WriteBytes(8, 8, 0x1122334455667788); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	v, err := m.ReadBytes(8, 8)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if v != 0x1122334455667788 {
		t.Errorf("round trip got: %#x expected: 0x1122334455667788", v)
	}
}

func TestDiskWindowReadIsShortCircuited(t *testing.T) {
	m := New(64)
	m.LoadDisk([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	v, err := m.ReadPhysical(DiskAddress, 0, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0xDDCCBBAA {
		t.Errorf("disk read got: %#x expected: 0xddccbbaa", v)
	}
}

func TestDiskWindowWriteIsDropped(t *testing.T) {
	m := New(64)
	m.LoadDisk([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	if err := m.WritePhysical(DiskAddress, 0, 4, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := m.ReadPhysical(DiskAddress, 0, 4)
	if v != 0xDDCCBBAA {
		t.Errorf("disk write should have been dropped, got: %#x", v)
	}
}

func TestLoadBIOSTooLargeErrors(t *testing.T) {
	m := New(4)
	if err := m.LoadBIOS([]byte{1, 2, 3, 4, 5}); err == nil {
		t.Errorf("expected error loading oversized bios image")
	}
}
