package assembler

import (
	"encoding/binary"
	"fmt"
)

var containerMagic = [4]byte{'R', 'B', 'F', '\n'}

// WriteRaw renders an executable as text bytes immediately followed by data
// bytes, with no header: the format the emulator's disk-less boot path
// expects when no container framing is needed.
func WriteRaw(exe *Executable) []byte {
	out := make([]byte, 0, len(exe.Text)+len(exe.Data))
	out = append(out, exe.Text...)
	out = append(out, exe.Data...)
	return out
}

// WriteContainer renders an executable with a fixed-width little-endian
// header: a 4-byte magic, the entry point, then offset/size pairs for the
// text and data segments, then the bss size, followed by the text and data
// bytes themselves.
func WriteContainer(exe *Executable) []byte {
	const headerSize = 4 + 8*6
	textOffset := uint64(headerSize)
	dataOffset := textOffset + uint64(len(exe.Text))

	out := make([]byte, headerSize, headerSize+len(exe.Text)+len(exe.Data))
	copy(out[0:4], containerMagic[:])
	binary.LittleEndian.PutUint64(out[4:12], exe.EntryPoint)
	binary.LittleEndian.PutUint64(out[12:20], textOffset)
	binary.LittleEndian.PutUint64(out[20:28], uint64(len(exe.Text)))
	binary.LittleEndian.PutUint64(out[28:36], dataOffset)
	binary.LittleEndian.PutUint64(out[36:44], uint64(len(exe.Data)))
	binary.LittleEndian.PutUint64(out[44:52], exe.BssSize)

	out = append(out, exe.Text...)
	out = append(out, exe.Data...)
	return out
}

// ReadContainer parses bytes previously produced by WriteContainer.
func ReadContainer(buf []byte) (*Executable, error) {
	const headerSize = 4 + 8*6
	if len(buf) < headerSize {
		return nil, fmt.Errorf("assemble: container too short: %d bytes", len(buf))
	}
	if string(buf[0:4]) != string(containerMagic[:]) {
		return nil, fmt.Errorf("assemble: bad container magic %q", buf[0:4])
	}

	entry := binary.LittleEndian.Uint64(buf[4:12])
	textOffset := binary.LittleEndian.Uint64(buf[12:20])
	textSize := binary.LittleEndian.Uint64(buf[20:28])
	dataOffset := binary.LittleEndian.Uint64(buf[28:36])
	dataSize := binary.LittleEndian.Uint64(buf[36:44])
	bssSize := binary.LittleEndian.Uint64(buf[44:52])

	if textOffset+textSize > uint64(len(buf)) || dataOffset+dataSize > uint64(len(buf)) {
		return nil, fmt.Errorf("assemble: container segment extends past end of file")
	}

	return &Executable{
		Text:       buf[textOffset : textOffset+textSize],
		Data:       buf[dataOffset : dataOffset+dataSize],
		BssSize:    bssSize,
		EntryPoint: entry,
	}, nil
}
