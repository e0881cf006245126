package cpu

import "strings"

// Status is the processor status register.
type Status uint8

// Status flag bits.
const (
	FlagC Status = 1 << iota // carry
	FlagZ                    // zero
	FlagI                    // interrupt disable
	FlagD                    // decimal
	FlagB                    // break
	FlagU                    // unused, always pushed as 1
	FlagV                    // overflow
	FlagN                    // negative
)

// Has returns whether all bits of flag are set.
func (s Status) Has(flag Status) bool {
	return s&flag == flag
}

// Set sets or clears the flag bits.
func (s *Status) Set(flag Status, value bool) {
	if value {
		*s |= flag
	} else {
		*s &^= flag
	}
}

// setZN updates the zero and negative flags for a result.
func (s *Status) setZN(value byte) {
	s.Set(FlagZ, value == 0)
	s.Set(FlagN, value&0x80 != 0)
}

// String returns the flags in NV-BDIZC notation, set flags are upper case.
func (s Status) String() string {
	const names = "czidbuvn"
	var b strings.Builder
	for i := 7; i >= 0; i-- {
		c := names[i]
		if s&(1<<i) != 0 {
			c -= 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}
