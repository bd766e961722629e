package assembler

import (
	"strconv"
	"strings"

	"github.com/rcornwell/rv64core/isa"
)

func parseDataValue(s string) (int64, bool) {
	s = strings.TrimSuffix(s, ",")
	if strings.HasPrefix(s, "0x") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, false
		}
		return int64(v), true
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

// line is one pre-tokenized, comment-stripped source line.
type line struct {
	number int
	label  string // empty when the line carries no label
	rest   string // text after the optional "label:" prefix
	raw    string // original text, for error display
}

func splitLines(program string) []line {
	var out []line
	for i, text := range strings.Split(program, "\n") {
		raw := text
		clean := text
		if idx := strings.IndexByte(clean, '#'); idx >= 0 {
			clean = clean[:idx]
		}
		clean = strings.TrimSpace(clean)
		if clean == "" {
			continue
		}

		var label, rest string
		if idx := strings.IndexByte(clean, ':'); idx >= 0 {
			label = strings.TrimSpace(clean[:idx])
			rest = strings.TrimSpace(clean[idx+1:])
		} else {
			rest = clean
		}

		out = append(out, line{number: i + 1, label: label, rest: rest, raw: raw})
	}
	return out
}

// Assemble translates a complete assembly-language program into an
// executable image, running label resolution (pass 1) before encoding
// (pass 2) so forward references to labels work in both directions.
func Assemble(program string) (*Executable, error) {
	lines := splitLines(program)

	textLabels := map[string]uint64{}
	dataLabels := map[string]uint64{}
	bssLabels := map[string]uint64{}
	var data []byte
	var textSize, bssSize uint64
	type sectionKind = section
	section := sectionText
	var globalLabel string

	recordLabel := func(name string) {
		if name == "" {
			return
		}
		switch section {
		case sectionText:
			textLabels[name] = textSize
		case sectionData:
			dataLabels[name] = uint64(len(data))
		case sectionBss:
			bssLabels[name] = bssSize
		}
	}

	// padSectionBoundary enforces 8-byte alignment whenever a directive
	// moves the active section away from text or data, so a later
	// section never starts mid-word of the one before it.
	padSectionBoundary := func(next sectionKind) {
		if section == next {
			return
		}
		switch section {
		case sectionText:
			if rem := textSize % 8; rem != 0 {
				textSize += 8 - rem
			}
		case sectionData:
			if rem := uint64(len(data)) % 8; rem != 0 {
				data = append(data, make([]byte, 8-rem)...)
			}
		}
	}

	for _, ln := range lines {
		if ln.rest == "" {
			recordLabel(ln.label)
			continue
		}

		tokens := strings.Fields(ln.rest)
		mnemonic := strings.ToLower(tokens[0])

		if !strings.HasPrefix(mnemonic, ".") {
			recordLabel(ln.label)
			if mnemonic == "la" {
				textSize += 8
			} else {
				textSize += 4
			}
			continue
		}

		switch mnemonic {
		case ".global":
			if len(tokens) > 1 {
				globalLabel = tokens[1]
			}
		case ".section":
			if len(tokens) > 1 {
				next := sectionFromName(tokens[1])
				padSectionBoundary(next)
				section = next
			}
		case ".text":
			padSectionBoundary(sectionText)
			section = sectionText
		case ".data":
			padSectionBoundary(sectionData)
			section = sectionData
		case ".bss":
			padSectionBoundary(sectionBss)
			section = sectionBss
		case ".align":
			if len(tokens) < 2 {
				return nil, &Error{Line: ln.number, Kind: ParseError, Text: "missing .align operand", Raw: ln.raw}
			}
			alignment, ok := parseDataValue(tokens[1])
			if !ok {
				return nil, &Error{Line: ln.number, Kind: InvalidImmediateValue, Text: tokens[1], Raw: ln.raw}
			}
			if alignment < 0 {
				return nil, &Error{Line: ln.number, Kind: InvalidImmediateValue, Text: tokens[1], Raw: ln.raw}
			}
			alignBytes := uint64(1) << uint(alignment)
			switch section {
			case sectionText:
				recordLabel(ln.label)
				if rem := textSize % alignBytes; rem != 0 {
					textSize += alignBytes - rem
				}
			case sectionData:
				recordLabel(ln.label)
				if rem := uint64(len(data)) % alignBytes; rem != 0 {
					data = append(data, make([]byte, alignBytes-rem)...)
				}
			case sectionBss:
				recordLabel(ln.label)
				if rem := bssSize % alignBytes; rem != 0 {
					bssSize += alignBytes - rem
				}
			}
		case ".byte":
			recordLabel(ln.label)
			for _, op := range tokens[1:] {
				v, ok := parseDataValue(op)
				if !ok {
					return nil, &Error{Line: ln.number, Kind: InvalidImmediateValue, Text: op, Raw: ln.raw}
				}
				data = append(data, byte(v))
			}
		case ".half":
			recordLabel(ln.label)
			for _, op := range tokens[1:] {
				v, ok := parseDataValue(op)
				if !ok {
					return nil, &Error{Line: ln.number, Kind: InvalidImmediateValue, Text: op, Raw: ln.raw}
				}
				data = append(data, byte(v), byte(v>>8))
			}
		case ".word", ".dword":
			recordLabel(ln.label)
			for _, op := range tokens[1:] {
				v, ok := parseDataValue(op)
				if !ok {
					return nil, &Error{Line: ln.number, Kind: InvalidImmediateValue, Text: op, Raw: ln.raw}
				}
				data = append(data, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
			}
		case ".quad":
			recordLabel(ln.label)
			for _, op := range tokens[1:] {
				v, ok := parseDataValue(op)
				if !ok {
					return nil, &Error{Line: ln.number, Kind: InvalidImmediateValue, Text: op, Raw: ln.raw}
				}
				u := uint64(v)
				data = append(data, byte(u), byte(u>>8), byte(u>>16), byte(u>>24),
					byte(u>>32), byte(u>>40), byte(u>>48), byte(u>>56))
			}
		case ".asciz":
			recordLabel(ln.label)
			s := strings.Trim(strings.Join(tokens[1:], " "), `"`)
			data = append(data, []byte(s)...)
			data = append(data, 0)
		case ".zero", ".space":
			if len(tokens) < 2 {
				return nil, &Error{Line: ln.number, Kind: ParseError, Text: "missing count", Raw: ln.raw}
			}
			count, ok := parseDataValue(tokens[1])
			if !ok {
				return nil, &Error{Line: ln.number, Kind: InvalidImmediateValue, Text: tokens[1], Raw: ln.raw}
			}
			if section == sectionBss {
				recordLabel(ln.label)
				bssSize += uint64(count)
			} else {
				recordLabel(ln.label)
				data = append(data, make([]byte, count)...)
			}
		default:
			return nil, &Error{Line: ln.number, Kind: UnknownDirective, Text: mnemonic, Raw: ln.raw}
		}
	}

	finalDataSize := uint64(len(data))

	var text []byte
	var currentAddr uint64
	section = sectionText

	// padTextBoundary emits the NOPs that padSectionBoundary accounted
	// for in pass one, keeping currentAddr in lockstep with textSize.
	padTextBoundary := func(next sectionKind) {
		if section == next || section != sectionText {
			section = next
			return
		}
		if rem := currentAddr % 8; rem != 0 {
			for i := uint64(0); i < (8-rem)/4; i++ {
				text = append(text, 0x13, 0x00, 0x00, 0x00)
				currentAddr += 4
			}
		}
		section = next
	}

	for _, ln := range lines {
		rest := ln.rest
		if rest == "" {
			continue
		}

		tokens := strings.Fields(rest)
		mnemonic := strings.ToLower(tokens[0])

		if strings.HasPrefix(mnemonic, ".") {
			switch mnemonic {
			case ".align":
				if section == sectionText {
					alignment, _ := parseDataValue(tokens[1])
					if alignment >= 0 {
						alignBytes := uint64(1) << uint(alignment)
						if rem := currentAddr % alignBytes; rem != 0 {
							padding := alignBytes - rem
							if padding%4 == 0 {
								for i := uint64(0); i < padding/4; i++ {
									text = append(text, 0x13, 0x00, 0x00, 0x00)
									currentAddr += 4
								}
							}
						}
					}
				}
			case ".section":
				if len(tokens) > 1 {
					padTextBoundary(sectionFromName(tokens[1]))
				}
			case ".text":
				padTextBoundary(sectionText)
			case ".data":
				padTextBoundary(sectionData)
			case ".bss":
				padTextBoundary(sectionBss)
			}
			continue
		}

		operands := tokens[1:]
		words, kind, badText := encodeInstruction(mnemonic, operands, currentAddr,
			textLabels, dataLabels, bssLabels, textSize, finalDataSize)
		if words == nil {
			return nil, &Error{Line: ln.number, Kind: kind, Text: badText, Raw: ln.raw}
		}
		for _, w := range words {
			text = append(text, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
			currentAddr += 4
		}
	}

	entry := isa.BaseAddress
	if globalLabel != "" {
		off, ok := textLabels[globalLabel]
		if !ok {
			return nil, &Error{Line: 0, Kind: UndefinedLabel, Text: globalLabel}
		}
		entry += off
	}

	return &Executable{
		Text:       text,
		Data:       data,
		BssSize:    bssSize,
		EntryPoint: entry,
	}, nil
}

func sectionFromName(name string) section {
	switch name {
	case ".data":
		return sectionData
	case ".bss":
		return sectionBss
	default:
		return sectionText
	}
}
