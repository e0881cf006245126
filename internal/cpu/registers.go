package cpu

import "fmt"

// Registers is a snapshot of the architectural register state.
type Registers struct {
	A  byte
	X  byte
	Y  byte
	SP byte
	PC uint16
	P  Status
}

func (r Registers) String() string {
	return fmt.Sprintf("A=$%02X X=$%02X Y=$%02X SP=$%02X PC=$%04X P=%s", r.A, r.X, r.Y, r.SP, r.PC, r.P)
}
