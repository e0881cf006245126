package ir

// Stats counts the changes made by Optimize.
type Stats struct {
	Folded         int // binary operations replaced by constants
	FoldedBranches int // conditional branches with constant condition
	Forwarded      int // slot loads replaced by a known value
	DeadStores     int // slot stores overwritten before being read
	DeadValues     int // unused side effect free instructions
}

// Eval computes the result of a binary operation.
func Eval(op Opcode, x, y uint16) uint16 {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpAnd:
		return x & y
	case OpOr:
		return x | y
	case OpXor:
		return x ^ y
	case OpShl:
		return x << y
	case OpShr:
		return x >> y
	case OpEq:
		return boolValue(x == y)
	case OpNe:
		return boolValue(x != y)
	case OpUge:
		return boolValue(x >= y)
	default:
		return 0
	}
}

func boolValue(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// Optimize runs constant folding, slot load forwarding, dead slot store
// elimination and dead value elimination on the function. Host calls and
// memory stores are treated as reading all slots.
func Optimize(fn *Function) Stats {
	var stats Stats
	for _, b := range fn.Blocks {
		foldBlock(b, &stats)
		removeDeadStores(b, &stats)
	}
	removeDeadValues(fn, &stats)
	return stats
}

func foldBlock(b *Block, stats *Stats) {
	consts := make(map[Value]uint16)
	slots := make(map[Slot]Value)
	replace := make(map[Value]Value)

	out := b.Instrs[:0]
	for _, ins := range b.Instrs {
		for i, arg := range ins.Args {
			if r, ok := replace[arg]; ok {
				ins.Args[i] = r
			}
		}

		switch {
		case ins.Op == OpConst:
			consts[ins.Dst] = ins.Imm

		case ins.Op == OpLoadSlot:
			if v, ok := slots[ins.Slot]; ok {
				replace[ins.Dst] = v
				stats.Forwarded++
				continue
			}
			slots[ins.Slot] = ins.Dst

		case ins.Op == OpStoreSlot:
			slots[ins.Slot] = ins.Args[0]

		case ins.Op.IsBinary():
			x, okX := consts[ins.Args[0]]
			y, okY := consts[ins.Args[1]]
			if okX && okY {
				v := Eval(ins.Op, x, y)
				ins.Op = OpConst
				ins.Imm = v
				ins.Args = nil
				consts[ins.Dst] = v
				stats.Folded++
			}

		case ins.Op == OpCondBr:
			if c, ok := consts[ins.Args[0]]; ok {
				target := ins.Targets[1]
				if c != 0 {
					target = ins.Targets[0]
				}
				ins.Op = OpBr
				ins.Args = nil
				ins.Targets = []*Block{target}
				stats.FoldedBranches++
			}
		}

		out = append(out, ins)
	}
	b.Instrs = out
}

// removeDeadStores removes slot stores that are overwritten later in the
// same block without being read in between. All slots are live at the end
// of a block.
func removeDeadStores(b *Block, stats *Stats) {
	var overwritten [NumSlots]bool
	kept := make([]*Instr, 0, len(b.Instrs))

	for i := len(b.Instrs) - 1; i >= 0; i-- {
		ins := b.Instrs[i]
		switch ins.Op {
		case OpStoreSlot:
			if overwritten[ins.Slot] {
				stats.DeadStores++
				continue
			}
			overwritten[ins.Slot] = true
		case OpLoadSlot:
			overwritten[ins.Slot] = false
		case OpCall, OpStore:
			overwritten = [NumSlots]bool{}
		}
		kept = append(kept, ins)
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	b.Instrs = kept
}

func removeDeadValues(fn *Function, stats *Stats) {
	for {
		used := make([]int, fn.numValues)
		for _, b := range fn.Blocks {
			for _, ins := range b.Instrs {
				for _, arg := range ins.Args {
					used[arg]++
				}
			}
		}

		removed := 0
		for _, b := range fn.Blocks {
			out := b.Instrs[:0]
			for _, ins := range b.Instrs {
				if isPure(ins.Op) && used[ins.Dst] == 0 {
					removed++
					continue
				}
				out = append(out, ins)
			}
			b.Instrs = out
		}

		stats.DeadValues += removed
		if removed == 0 {
			return
		}
	}
}

func isPure(op Opcode) bool {
	return op == OpConst || op == OpLoadSlot || op.IsBinary()
}
