/*
   Assembler: two-pass RV64IM text-to-bytes translator.

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

// Package assembler turns RV64IM assembly text into an executable image,
// sharing its opcode, funct3/funct7, and CSR tables with package isa so the
// bytes it emits always agree with what package cpu executes and package
// disassemble renders back.
package assembler

import "fmt"

// section names which segment a line belongs to.
type section int

const (
	sectionText section = iota
	sectionData
	sectionBss
)

// Executable is the assembled program: a text segment, a data segment, the
// size of the zero-initialized bss segment, and the virtual address
// execution should start at.
type Executable struct {
	Text       []byte
	Data       []byte
	BssSize    uint64
	EntryPoint uint64
}

// ErrorKind classifies why a line failed to assemble.
type ErrorKind int

const (
	InvalidRegister ErrorKind = iota
	InvalidMemoryOperand
	InvalidImmediateValue
	ImmediateOutOfRange
	UndefinedLabel
	UnknownInstruction
	UnknownDirective
	ParseError
	ValueOutOfRange
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidRegister:
		return "invalid register name"
	case InvalidMemoryOperand:
		return "invalid memory operand format"
	case InvalidImmediateValue:
		return "cannot parse immediate value"
	case ImmediateOutOfRange:
		return "immediate value out of range"
	case UndefinedLabel:
		return "use of undefined label"
	case UnknownInstruction:
		return "unknown instruction"
	case UnknownDirective:
		return "unknown directive"
	case ParseError:
		return "parse error"
	case ValueOutOfRange:
		return "value out of range"
	default:
		return "unknown error"
	}
}

// Error reports a single assembly failure, tagged with the 1-based source
// line it occurred on and the raw line text for diagnostic display.
type Error struct {
	Line int
	Kind ErrorKind
	Text string // the offending token, register name, label, etc.
	Raw  string // the full source line the error occurred on
}

func (e *Error) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Kind)
	}
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Kind, e.Text)
}
