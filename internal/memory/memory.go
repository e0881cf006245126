// Package memory provides the 64KB address space shared by the interpreter and
// the compiled code.
package memory

import (
	"errors"
	"fmt"
	"os"
)

// Size is the size of the 6502 address space.
const Size = 0x10000

// ErrImageTooLarge is returned when data does not fit into the address space
// at the requested base address.
var ErrImageTooLarge = errors.New("image does not fit into address space")

// RAM is a flat 64KB memory. The backing array is allocated once in New and
// never replaced, its address stays stable for the lifetime of the RAM.
type RAM struct {
	data *[Size]byte
}

// New returns a zeroed RAM.
func New() *RAM {
	return &RAM{data: new([Size]byte)}
}

// Read returns the byte at the address.
func (r *RAM) Read(address uint16) byte {
	return r.data[address]
}

// Write sets the byte at the address.
func (r *RAM) Write(address uint16, value byte) {
	r.data[address] = value
}

// ReadWord reads a little endian word, the high byte address wraps around at 0xFFFF.
func (r *RAM) ReadWord(address uint16) uint16 {
	low := uint16(r.data[address])
	high := uint16(r.data[address+1])
	return high<<8 | low
}

// WriteWord writes a little endian word.
func (r *RAM) WriteWord(address, value uint16) {
	r.data[address] = byte(value)
	r.data[address+1] = byte(value >> 8)
}

// Load copies data into memory starting at base.
func (r *RAM) Load(data []byte, base uint16) error {
	if int(base)+len(data) > Size {
		return fmt.Errorf("%w: %d bytes at $%04X", ErrImageTooLarge, len(data), base)
	}
	copy(r.data[base:], data)
	return nil
}

// Bytes returns the full address space. The returned slice aliases the RAM.
func (r *RAM) Bytes() []byte {
	return r.data[:]
}

// Clone returns an independent copy of the memory.
func (r *RAM) Clone() *RAM {
	c := New()
	*c.data = *r.data
	return c
}

// SaveFile writes the full address space to the given file.
func (r *RAM) SaveFile(name string) error {
	if err := os.WriteFile(name, r.data[:], 0o644); err != nil {
		return fmt.Errorf("writing memory file '%s': %w", name, err)
	}
	return nil
}
