/*
 * rv64asm - Assembler command-line driver.
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
	"fmt"
	"os"

	getopt "github.com/pborman/getopt/v2"

	assembler "github.com/rcornwell/rv64core/emu/assemble"
)

func main() {
	optOutput := getopt.StringLong("output", 'o', "a.out", "Output file")
	optContainer := getopt.BoolLong("container", 'c', "Write the fixed-width container format instead of raw bytes")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp || getopt.NArgs() == 0 {
		getopt.Usage()
		os.Exit(0)
	}

	srcPath := getopt.Arg(0)
	src, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rv64asm: failed to read source:", err)
		os.Exit(1)
	}

	exe, err := assembler.Assemble(string(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, "rv64asm:", err)
		os.Exit(1)
	}

	var out []byte
	if *optContainer {
		out = assembler.WriteContainer(exe)
	} else {
		out = assembler.WriteRaw(exe)
	}

	if err := os.WriteFile(*optOutput, out, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "rv64asm: failed to write output:", err)
		os.Exit(1)
	}
}
