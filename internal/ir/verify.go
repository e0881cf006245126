package ir

import "fmt"

// VerifyError describes a malformed function.
type VerifyError struct {
	Function string
	Block    string
	Msg      string
}

func (e *VerifyError) Error() string {
	if e.Block == "" {
		return fmt.Sprintf("invalid function %s: %s", e.Function, e.Msg)
	}
	return fmt.Sprintf("invalid function %s, block %s: %s", e.Function, e.Block, e.Msg)
}

// Verify checks the structural integrity of the function.
func Verify(fn *Function) error {
	if len(fn.Blocks) == 0 {
		return &VerifyError{Function: fn.Name, Msg: "no blocks"}
	}

	defined := make([]bool, fn.numValues)
	for i, b := range fn.Blocks {
		if b.Index != i {
			return &VerifyError{Function: fn.Name, Block: b.Name, Msg: fmt.Sprintf("index %d at position %d", b.Index, i)}
		}
		if err := verifyBlock(fn, b, defined); err != nil {
			return err
		}
	}

	for _, address := range fn.DispatchAddresses() {
		b := fn.dispatch[address]
		if !fn.owns(b) {
			return &VerifyError{Function: fn.Name, Block: b.Name,
				Msg: fmt.Sprintf("dispatch entry $%04X references foreign block", address)}
		}
	}
	return nil
}

func verifyBlock(fn *Function, b *Block, defined []bool) error {
	fail := func(format string, args ...any) error {
		return &VerifyError{Function: fn.Name, Block: b.Name, Msg: fmt.Sprintf(format, args...)}
	}

	if b.Terminator() == nil {
		return fail("missing terminator")
	}

	local := make(map[Value]struct{})
	for i, ins := range b.Instrs {
		if ins.Op.IsTerminator() && i != len(b.Instrs)-1 {
			return fail("terminator %s before end of block", ins.Op)
		}
		if len(ins.Args) != ins.Op.argCount() {
			return fail("%s expects %d arguments, got %d", ins.Op, ins.Op.argCount(), len(ins.Args))
		}
		for _, arg := range ins.Args {
			if _, ok := local[arg]; !ok {
				return fail("%s uses %s that is not defined earlier in the block", ins.Op, arg)
			}
		}

		if ins.Op.HasResult() {
			if ins.Dst < 0 || int(ins.Dst) >= len(defined) {
				return fail("%s defines invalid value %s", ins.Op, ins.Dst)
			}
			if defined[ins.Dst] {
				return fail("value %s defined twice", ins.Dst)
			}
			defined[ins.Dst] = true
			local[ins.Dst] = struct{}{}
		}

		if err := verifyTargets(fn, ins, fail); err != nil {
			return err
		}
		if (ins.Op == OpLoadSlot || ins.Op == OpStoreSlot) && ins.Slot >= NumSlots {
			return fail("invalid slot %d", ins.Slot)
		}
		if ins.Op == OpCall && ins.Callee == "" {
			return fail("call without callee")
		}
	}
	return nil
}

func verifyTargets(fn *Function, ins *Instr, fail func(string, ...any) error) error {
	want := 0
	switch ins.Op {
	case OpBr:
		want = 1
	case OpCondBr:
		want = 2
	}
	if len(ins.Targets) != want {
		return fail("%s expects %d targets, got %d", ins.Op, want, len(ins.Targets))
	}
	for _, target := range ins.Targets {
		if !fn.owns(target) {
			return fail("%s targets a block of another function", ins.Op)
		}
	}
	return nil
}

func (f *Function) owns(b *Block) bool {
	return b != nil && b.Index >= 0 && b.Index < len(f.Blocks) && f.Blocks[b.Index] == b
}
