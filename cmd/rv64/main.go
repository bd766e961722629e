/*
 * rv64 - Emulator command-line driver.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	getopt "github.com/pborman/getopt/v2"
	"github.com/peterh/liner"

	"github.com/rcornwell/rv64core/config"
	"github.com/rcornwell/rv64core/emu/cpu"
	"github.com/rcornwell/rv64core/emu/csr"
	"github.com/rcornwell/rv64core/emu/disassemble"
	"github.com/rcornwell/rv64core/emu/memory"
	"github.com/rcornwell/rv64core/util/logger"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Machine configuration file (TOML)")
	optBIOS := getopt.StringLong("bios", 'b', "", "Firmware/BIOS image to load at the base address")
	optDisk := getopt.StringLong("disk", 'd', "", "Disk image, mapped read-only into the disk window")
	optLog := getopt.StringLong("log", 'l', "", "Log file")
	optTrace := getopt.BoolLong("trace", 't', "Trace every executed instruction")
	optInteractive := getopt.BoolLong("interactive", 'i', "Stop at breakpoints for interactive inspection")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	logFile, err := logger.Open(*optLog, *optTrace)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rv64: failed to open log file:", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	machine, err := config.Load(*optConfig)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *optBIOS != "" {
		machine.BIOSPath = *optBIOS
	}
	if *optDisk != "" {
		machine.DiskPath = *optDisk
	}
	if *optTrace {
		machine.Trace = true
	}
	if *optInteractive {
		machine.Interactive = true
	}

	mem := memory.New(machine.MemorySize)

	if machine.BIOSPath != "" {
		bios, err := os.ReadFile(machine.BIOSPath)
		if err != nil {
			slog.Error("failed to read firmware image", "path", machine.BIOSPath, "error", err)
			os.Exit(1)
		}
		if err := mem.LoadBIOS(bios); err != nil {
			slog.Error("failed to load firmware image", "error", err)
			os.Exit(1)
		}
	}

	if machine.DiskPath != "" {
		disk, err := os.ReadFile(machine.DiskPath)
		if err != nil {
			slog.Error("failed to read disk image", "path", machine.DiskPath, "error", err)
			os.Exit(1)
		}
		mem.LoadDisk(disk)
	}

	machineCPU := cpu.New(mem, csr.NewFile())
	machineCPU.InstructionLimit = machine.InstructionLimit
	machineCPU.Trace = machine.Trace
	machineCPU.Tracer = func(pc uint64, inst uint32) {
		slog.Debug("TRACE", "pc", fmt.Sprintf("0x%016x", pc), "text", disassemble.Disassemble(inst, pc))
	}

	if machine.Interactive {
		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)

		machineCPU.OnBreakpoint = func(c *cpu.CPU) bool {
			fmt.Printf("breakpoint at 0x%016x\n", c.PC)
			for {
				command, err := line.Prompt("rv64> ")
				if err != nil {
					if errors.Is(err, liner.ErrPromptAborted) {
						return false
					}
					slog.Error("error reading command", "error", err)
					return false
				}
				line.AppendHistory(command)
				fields := strings.Fields(command)
				cmdName := ""
				if len(fields) > 0 {
					cmdName = fields[0]
				}
				switch cmdName {
				case "", "c", "continue":
					return true
				case "q", "quit":
					return false
				case "r", "regs":
					printRegisters(c)
				case "mem":
					printMemory(c, fields[1:])
				default:
					fmt.Println("commands: [c]ontinue, [q]uit, [r]egs, mem <addr> [count]")
				}
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := machineCPU.Run(ctx)
	if result.Err != nil {
		var trapErr *cpu.TrapError
		if errors.As(result.Err, &trapErr) {
			slog.Error("execution stopped on trap", "cause", trapErr.Cause, "pc", fmt.Sprintf("%#x", trapErr.PC))
		}
	}
	slog.Info("execution stopped", "reason", result.Reason, "instructions", result.Executed, "limitHit", result.LimitHit)
	os.Exit(int(result.ExitCode))
}

func printRegisters(c *cpu.CPU) {
	for i := 0; i < 32; i += 4 {
		fmt.Printf("x%-2d=%016x x%-2d=%016x x%-2d=%016x x%-2d=%016x\n",
			i, c.Registers[i], i+1, c.Registers[i+1], i+2, c.Registers[i+2], i+3, c.Registers[i+3])
	}
	fmt.Printf("pc =%016x\n", c.PC)
}

// printMemory dumps count (default 1) double-words starting at addr,
// given as either a decimal or 0x-prefixed hex string.
func printMemory(c *cpu.CPU, args []string) {
	if len(args) == 0 {
		fmt.Println("usage: mem <addr> [count]")
		return
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		fmt.Println("mem: invalid address:", args[0])
		return
	}
	count := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			fmt.Println("mem: invalid count:", args[1])
			return
		}
		count = n
	}
	for i := 0; i < count; i++ {
		off, fault := c.Mem.Translate(c.Csrs, addr, false, false)
		if fault != nil {
			fmt.Printf("%016x: <fault>\n", addr)
			return
		}
		v, err := c.Mem.ReadBytes(off, 8)
		if err != nil {
			fmt.Printf("%016x: <error: %v>\n", addr, err)
			return
		}
		fmt.Printf("%016x: %016x\n", addr, v)
		addr += 8
	}
}
