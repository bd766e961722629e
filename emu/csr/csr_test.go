package csr

import (
	"testing"

	"github.com/rcornwell/rv64core/isa"
)

func TestReadWriteMstatus(t *testing.T) {
	f := NewFile()
	if !f.Write(isa.CsrMstatus, 0x1234, 3) {
		t.Fatalf("write mstatus from machine mode should succeed")
	}
	v, ok := f.Read(isa.CsrMstatus, 3)
	if !ok || v != 0x1234 {
		t.Errorf("read mstatus got: %v, %v expected: 0x1234, true", v, ok)
	}
}

func TestSstatusIsMaskedView(t *testing.T) {
	f := NewFile()
	f.Write(isa.CsrMstatus, ^uint64(0), 3)
	v, ok := f.Read(isa.CsrSstatus, 1)
	if !ok {
		t.Fatalf("read sstatus from supervisor mode should succeed")
	}
	if v != MstatusMask {
		t.Errorf("sstatus view got: %#x expected: %#x", v, MstatusMask)
	}
}

func TestSstatusWriteOnlyTouchesMaskedBits(t *testing.T) {
	f := NewFile()
	f.Write(isa.CsrSstatus, ^uint64(0), 1)
	if f.Mstatus != MstatusMask {
		t.Errorf("mstatus after sstatus write got: %#x expected: %#x", f.Mstatus, MstatusMask)
	}
}

func TestPrivilegeGating(t *testing.T) {
	f := NewFile()
	if f.Write(isa.CsrMstatus, 1, 1) {
		t.Errorf("supervisor mode should not be able to write mstatus")
	}
	if _, ok := f.Read(isa.CsrMstatus, 0); ok {
		t.Errorf("user mode should not be able to read mstatus")
	}
}

func TestSieSipDelegatedThroughMideleg(t *testing.T) {
	f := NewFile()
	f.Mideleg = 0x2
	f.Write(isa.CsrMie, 0x2|0x20, 3)
	v, _ := f.Read(isa.CsrSie, 1)
	if v != 0x2 {
		t.Errorf("sie view got: %#x expected: 0x2", v)
	}
	f.Write(isa.CsrSie, 0, 1)
	if f.Mie != 0x20 {
		t.Errorf("mie after sie write got: %#x expected: 0x20", f.Mie)
	}
}

func TestMhartidAlwaysZero(t *testing.T) {
	f := NewFile()
	v, ok := f.Read(isa.CsrMhartid, 3)
	if !ok || v != 0 {
		t.Errorf("mhartid got: %v, %v expected: 0, true", v, ok)
	}
	if f.Write(isa.CsrMhartid, 1, 3) {
		t.Errorf("mhartid should be read-only")
	}
}

func TestMretBypassesPrivilegeCheck(t *testing.T) {
	f := NewFile()
	f.SetMRETState(0xdeadbeef)
	if f.Mstatus != 0xdeadbeef {
		t.Errorf("mstatus after SetMRETState got: %#x expected: 0xdeadbeef", f.Mstatus)
	}
}

func TestExtraMapRoundTrip(t *testing.T) {
	f := NewFile()
	const pmpcfg0 = 0x3A0
	if !f.Write(pmpcfg0, 0x55, 3) {
		t.Fatalf("write to extra CSR should succeed")
	}
	v, ok := f.Read(pmpcfg0, 3)
	if !ok || v != 0x55 {
		t.Errorf("read back extra CSR got: %v, %v expected: 0x55, true", v, ok)
	}
}

func TestReadUndefinedCSRFails(t *testing.T) {
	f := NewFile()
	const pmpcfg0 = 0x3A0
	if _, ok := f.Read(pmpcfg0, 3); ok {
		t.Errorf("read of a never-written CSR should fail, not return 0")
	}
}

func TestSedelegSidelegPrepopulatedAtZero(t *testing.T) {
	f := NewFile()
	v, ok := f.Read(isa.CsrSedeleg, 3)
	if !ok || v != 0 {
		t.Errorf("sedeleg got: %v, %v expected: 0, true", v, ok)
	}
	v, ok = f.Read(isa.CsrSideleg, 3)
	if !ok || v != 0 {
		t.Errorf("sideleg got: %v, %v expected: 0, true", v, ok)
	}
}
