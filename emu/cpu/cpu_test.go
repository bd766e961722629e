package cpu

import (
	"context"
	"errors"
	"testing"

	"github.com/rcornwell/rv64core/emu/csr"
	"github.com/rcornwell/rv64core/emu/memory"
	"github.com/rcornwell/rv64core/isa"
)

func setupCPU() *CPU {
	mem := memory.New(memory.DefaultSize)
	c := New(mem, csr.NewFile())
	c.PC = memory.BaseAddress
	return c
}

func TestOpLUI(t *testing.T) {
	c := setupCPU()
	c.execute(0xabcde537) // lui a0, 0xABCDE
	want := uint64(0xffffffffabcde000)
	if c.Registers[isa.A0] != want {
		t.Errorf("a0 got: %#x expected: %#x", c.Registers[isa.A0], want)
	}
	if c.PC != memory.BaseAddress+4 {
		t.Errorf("pc got: %#x expected: %#x", c.PC, memory.BaseAddress+4)
	}
}

func TestOpAUIPC(t *testing.T) {
	c := setupCPU()
	c.execute(0x00001517) // auipc a0, 0x1
	want := memory.BaseAddress + 0x1000
	if c.Registers[isa.A0] != want {
		t.Errorf("a0 got: %#x expected: %#x", c.Registers[isa.A0], want)
	}
}

func TestOpJAL(t *testing.T) {
	c := setupCPU()
	c.execute(0x014000ef) // jal ra, 20
	if c.Registers[isa.RA] != memory.BaseAddress+4 {
		t.Errorf("ra got: %#x expected: %#x", c.Registers[isa.RA], memory.BaseAddress+4)
	}
	if c.PC != memory.BaseAddress+20 {
		t.Errorf("pc got: %#x expected: %#x", c.PC, memory.BaseAddress+20)
	}
}

func TestOpJALR(t *testing.T) {
	c := setupCPU()
	c.Registers[isa.A0] = memory.BaseAddress + 0x100
	c.execute(0x020500e7) // jalr ra, 32(a0)
	if c.Registers[isa.RA] != memory.BaseAddress+4 {
		t.Errorf("ra got: %#x expected: %#x", c.Registers[isa.RA], memory.BaseAddress+4)
	}
	if c.PC != memory.BaseAddress+0x100+32 {
		t.Errorf("pc got: %#x expected: %#x", c.PC, memory.BaseAddress+0x100+32)
	}
}

func TestOpBranchTaken(t *testing.T) {
	c := setupCPU()
	c.Registers[isa.A0] = 5
	c.Registers[isa.A1] = 5
	c.execute(0x00b50863) // beq a0, a1, 16
	if c.PC != memory.BaseAddress+16 {
		t.Errorf("pc got: %#x expected: %#x", c.PC, memory.BaseAddress+16)
	}
}

func TestOpLoads(t *testing.T) {
	c := setupCPU()
	dataAddr := memory.BaseAddress + 0x200
	dataVal := uint64(0x8899AABBCCDDEEFF)
	off, fault := c.Mem.Translate(c.Csrs, dataAddr, true, false)
	if fault != nil {
		t.Fatalf("translate: %+v", fault)
	}
	if err := c.Mem.WriteBytes(off, 8, dataVal); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	c.Registers[isa.A0] = dataAddr

	c.execute(0x00053583) // ld a1, 0(a0)
	if c.Registers[isa.A1] != dataVal {
		t.Errorf("a1 got: %#x expected: %#x", c.Registers[isa.A1], dataVal)
	}

	c.execute(0x00052603) // lw a2, 0(a0)
	want := uint64(0xffffffffccddeeff)
	if c.Registers[isa.A2] != want {
		t.Errorf("a2 got: %#x expected: %#x", c.Registers[isa.A2], want)
	}
}

func TestOpStores(t *testing.T) {
	c := setupCPU()
	storeAddr := memory.BaseAddress + 0x200
	c.Registers[isa.A0] = storeAddr
	c.Registers[isa.A1] = 0x11223344AABBCCDD
	c.execute(0x00b53023) // sd a1, 0(a0)

	off, fault := c.Mem.Translate(c.Csrs, storeAddr, false, false)
	if fault != nil {
		t.Fatalf("translate: %+v", fault)
	}
	got, err := c.Mem.ReadBytes(off, 8)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if got != 0x11223344AABBCCDD {
		t.Errorf("stored value got: %#x expected: %#x", got, 0x11223344AABBCCDD)
	}
}

func TestOpLoadFromDiskWindowReadsDiskBuffer(t *testing.T) {
	c := setupCPU()
	c.Mem.LoadDisk([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22})
	c.Registers[isa.A0] = memory.DiskAddress

	c.execute(0x00053583) // ld a1, 0(a0)
	want := uint64(0x2211FFEEDDCCBBAA)
	if c.Registers[isa.A1] != want {
		t.Errorf("a1 got: %#x expected: %#x", c.Registers[isa.A1], want)
	}
}

func TestOpImm(t *testing.T) {
	c := setupCPU()
	c.Registers[isa.A0] = 100
	c.execute(0xff650593) // addi a1, a0, -10
	if c.Registers[isa.A1] != 90 {
		t.Errorf("a1 got: %v expected: 90", c.Registers[isa.A1])
	}
}

func TestOpImm32(t *testing.T) {
	c := setupCPU()
	c.Registers[isa.A0] = 0xFFFFFFFF_80000000
	c.execute(0x0015059B) // addiw a1, a0, 1
	want := uint64(0xFFFFFFFF_80000001) // -2147483647
	if c.Registers[isa.A1] != want {
		t.Errorf("a1 got: %#x expected: %#x", c.Registers[isa.A1], want)
	}
}

func TestOpImmShiftsRV64(t *testing.T) {
	c := setupCPU()
	c.Registers[isa.A0] = 0x00000000FFFFFFFF
	c.execute(0x02051593) // slli a1, a0, 32
	want := uint64(0xFFFFFFFF00000000)
	if c.Registers[isa.A1] != want {
		t.Errorf("a1 got: %#x expected: %#x", c.Registers[isa.A1], want)
	}
}

func TestOpReg(t *testing.T) {
	c := setupCPU()
	c.Registers[isa.A0] = 100
	c.Registers[isa.A1] = 50
	c.execute(0x40b50633) // sub a2, a0, a1
	if c.Registers[isa.A2] != 50 {
		t.Errorf("a2 got: %v expected: 50", c.Registers[isa.A2])
	}
}

func TestOpMExtension(t *testing.T) {
	c := setupCPU()
	c.Registers[isa.A0] = 0xFFFFFFFF_FFFFFF9C // -100
	c.Registers[isa.A1] = 10
	c.execute(0x02b50633) // mul a2, a0, a1
	want := uint64(0xFFFFFFFF_FFFFFC18) // -1000
	if c.Registers[isa.A2] != want {
		t.Errorf("a2 got: %#x expected: %#x", c.Registers[isa.A2], want)
	}
}

func TestOpReg32(t *testing.T) {
	c := setupCPU()
	c.Registers[isa.A0] = 10
	c.Registers[isa.A1] = 20
	c.execute(0x40b505bb) // subw a1, a0, a1 -> -10
	want := uint64(0xFFFFFFFF_FFFFFFF6) // -10
	if c.Registers[isa.A1] != want {
		t.Errorf("a1 got: %#x expected: %#x", c.Registers[isa.A1], want)
	}
}

func TestOpSystemCSR(t *testing.T) {
	c := setupCPU()
	c.Csrs.Write(isa.CsrMstatus, 0xABCD, c.Privilege)
	c.Registers[isa.A0] = 0x1234

	c.execute(0x300515f3) // csrrw a1, mstatus, a0
	if c.Registers[isa.A1] != 0xABCD {
		t.Errorf("a1 got: %#x expected: %#x", c.Registers[isa.A1], 0xABCD)
	}

	newMstatus, _ := c.Csrs.Read(isa.CsrMstatus, c.Privilege)
	if newMstatus != 0x1234 {
		t.Errorf("mstatus got: %#x expected: %#x", newMstatus, 0x1234)
	}
}

func TestMretRestoresPrivilegeAndPC(t *testing.T) {
	c := setupCPU()
	c.Csrs.Write(isa.CsrMepc, memory.BaseAddress+0x400, PrivMachine)
	mstatus, _ := c.Csrs.Read(isa.CsrMstatus, PrivMachine)
	mstatus |= 1 << 7              // MPIE set
	mstatus |= uint64(PrivUser) << 11 // MPP = user
	c.Csrs.Write(isa.CsrMstatus, mstatus, PrivMachine)

	c.execute(0x30200073) // mret
	if c.Privilege != PrivUser {
		t.Errorf("privilege got: %v expected: %v", c.Privilege, PrivUser)
	}
	if c.PC != memory.BaseAddress+0x400 {
		t.Errorf("pc got: %#x expected: %#x", c.PC, memory.BaseAddress+0x400)
	}
}

func TestEcallExitHalts(t *testing.T) {
	c := setupCPU()
	c.Registers[isa.A7] = 93
	c.Registers[isa.A0] = 42
	if c.execute(0x00000073) {
		t.Errorf("expected execute to return false on ecall exit")
	}
	if c.haltExitCode != 42 {
		t.Errorf("exit code got: %v expected: 42", c.haltExitCode)
	}
}

func TestIllegalInstructionHalts(t *testing.T) {
	c := setupCPU()
	if c.execute(0x00000000) { // all-zero word: opcode 0 is not in the table
		t.Errorf("expected execute to return false on illegal instruction")
	}
	if c.haltReason == "" {
		t.Errorf("expected a halt reason to be recorded")
	}
}

func TestBreakpointResumesWithoutHandler(t *testing.T) {
	c := setupCPU()
	if !c.execute(0x00100073) { // ebreak
		t.Errorf("expected execute to resume when OnBreakpoint is nil")
	}
	if c.PC != memory.BaseAddress+4 {
		t.Errorf("pc got: %#x expected: %#x", c.PC, memory.BaseAddress+4)
	}
}

func TestBreakpointHandlerCanHalt(t *testing.T) {
	c := setupCPU()
	called := false
	c.OnBreakpoint = func(cpu *CPU) bool {
		called = true
		return false
	}
	if c.execute(0x00100073) {
		t.Errorf("expected execute to halt when OnBreakpoint returns false")
	}
	if !called {
		t.Errorf("expected OnBreakpoint to be invoked")
	}
}

func TestPCAlignmentCheckOnFetch(t *testing.T) {
	c := setupCPU()
	c.PC = memory.BaseAddress + 2 // misaligned
	if c.Step() {
		t.Errorf("expected Step to halt on a misaligned PC")
	}
}

func TestRunStopsOnInstructionLimit(t *testing.T) {
	c := setupCPU()
	// An infinite loop: jal x0, 0 (jump to self).
	off, fault := c.Mem.Translate(c.Csrs, c.PC, false, true)
	if fault != nil {
		t.Fatalf("translate: %+v", fault)
	}
	if err := c.Mem.WriteBytes(off, 4, 0x0000006f); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	c.InstructionLimit = 10
	result := c.Run(context.Background())
	if !result.LimitHit {
		t.Errorf("expected the instruction limit to be hit")
	}
	if result.Executed != 10 {
		t.Errorf("executed got: %v expected: 10", result.Executed)
	}
}

func TestRunReportsTrapError(t *testing.T) {
	c := setupCPU()
	off, fault := c.Mem.Translate(c.Csrs, c.PC, false, true)
	if fault != nil {
		t.Fatalf("translate: %+v", fault)
	}
	if err := c.Mem.WriteBytes(off, 4, 0x00000000); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	result := c.Run(context.Background())
	var trapErr *TrapError
	if !errors.As(result.Err, &trapErr) {
		t.Fatalf("expected a *TrapError, got: %v", result.Err)
	}
	if trapErr.Cause != isa.CauseIllegalInstruction {
		t.Errorf("cause got: %v expected: %v", trapErr.Cause, isa.CauseIllegalInstruction)
	}
}

func TestRegisterZeroAlwaysReadsZero(t *testing.T) {
	c := setupCPU()
	c.execute(0x00000013 | (0x7FF << 20)) // addi x0, x0, imm (targets x0)
	if c.Registers[isa.Zero] != 0 {
		t.Errorf("x0 got: %v expected: 0", c.Registers[isa.Zero])
	}
}
