package ir

import (
	"errors"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func countOps(fn *Function, op Opcode) int {
	var n int
	for _, b := range fn.Blocks {
		for _, ins := range b.Instrs {
			if ins.Op == op {
				n++
			}
		}
	}
	return n
}

func TestBuilderAndVerify(t *testing.T) {
	fn := NewFunction("main")
	entry := fn.NewBlock("entry")
	loop := fn.NewBlock("loop")
	exit := fn.NewBlock("exit")
	fn.AddDispatchEntry(0x8000, loop)

	b := NewBuilder(fn)
	b.SetInsertPoint(entry)
	b.StoreSlot(SlotY, b.Const(10))
	b.Br(loop)

	b.SetInsertPoint(loop)
	y := b.And(b.Sub(b.LoadSlot(SlotY), b.Const(1)), b.Const(0xFF))
	b.StoreSlot(SlotY, y)
	z := b.Eq(y, b.Const(0))
	b.StoreSlot(SlotZ, z)
	b.CondBr(z, exit, loop)
	assert.True(t, b.Terminated())

	b.SetInsertPoint(exit)
	b.Ret(b.Const(0))

	assert.NoError(t, Verify(fn))
	assert.Equal(t, entry, fn.Entry())

	target, ok := fn.DispatchTarget(0x8000)
	assert.True(t, ok)
	assert.Equal(t, "loop", target.Name)
}

func TestNewBlockUniqueNames(t *testing.T) {
	fn := NewFunction("main")
	a := fn.NewBlock("block")
	b := fn.NewBlock("block")
	assert.Equal(t, "block", a.Name)
	assert.Equal(t, "block.1", b.Name)
	assert.Equal(t, 1, b.Index)
}

func TestVerifyErrors(t *testing.T) {
	t.Run("missing terminator", func(t *testing.T) {
		fn := NewFunction("main")
		b := NewBuilder(fn)
		b.SetInsertPoint(fn.NewBlock("entry"))
		b.Const(1)

		err := Verify(fn)
		var verifyErr *VerifyError
		assert.True(t, errors.As(err, &verifyErr))
		assert.Equal(t, "entry", verifyErr.Block)
		assert.Contains(t, verifyErr.Error(), "missing terminator")
	})

	t.Run("value used outside of its block", func(t *testing.T) {
		fn := NewFunction("main")
		entry := fn.NewBlock("entry")
		next := fn.NewBlock("next")
		b := NewBuilder(fn)
		b.SetInsertPoint(entry)
		v := b.Const(1)
		b.Br(next)
		b.SetInsertPoint(next)
		b.Ret(v)

		assert.ErrorContains(t, Verify(fn), "not defined earlier")
	})

	t.Run("instruction after terminator", func(t *testing.T) {
		fn := NewFunction("main")
		b := NewBuilder(fn)
		b.SetInsertPoint(fn.NewBlock("entry"))
		b.Ret(b.Const(0))
		b.Ret(b.Const(1))

		assert.ErrorContains(t, Verify(fn), "before end of block")
	})

	t.Run("foreign target", func(t *testing.T) {
		other := NewFunction("other")
		foreign := other.NewBlock("foreign")

		fn := NewFunction("main")
		b := NewBuilder(fn)
		b.SetInsertPoint(fn.NewBlock("entry"))
		b.Br(foreign)

		assert.ErrorContains(t, Verify(fn), "another function")
	})

	t.Run("empty function", func(t *testing.T) {
		assert.ErrorContains(t, Verify(NewFunction("main")), "no blocks")
	})
}

func TestEval(t *testing.T) {
	assert.Equal(t, uint16(0), Eval(OpAdd, 0xFFFF, 1))
	assert.Equal(t, uint16(0xFFFF), Eval(OpSub, 0, 1))
	assert.Equal(t, uint16(0x1FE), Eval(OpShl, 0xFF, 1))
	assert.Equal(t, uint16(0), Eval(OpShl, 1, 16))
	assert.Equal(t, uint16(1), Eval(OpShr, 0x1FF, 8))
	assert.Equal(t, uint16(1), Eval(OpUge, 5, 5))
	assert.Equal(t, uint16(0), Eval(OpUge, 4, 5))
	assert.Equal(t, uint16(1), Eval(OpNe, 4, 5))
	assert.Equal(t, uint16(0), Eval(OpEq, 4, 5))
}

func TestOptimize(t *testing.T) {
	fn := NewFunction("main")
	entry := fn.NewBlock("entry")
	taken := fn.NewBlock("taken")
	other := fn.NewBlock("other")

	b := NewBuilder(fn)
	b.SetInsertPoint(entry)
	b.StoreSlot(SlotA, b.Const(1))              // dead, overwritten below
	sum := b.Add(b.Const(2), b.Const(3))        // folded
	b.StoreSlot(SlotA, sum)                     // kept
	a := b.LoadSlot(SlotA)                      // forwarded
	b.StoreSlot(SlotX, a)                       // kept because of the call below
	b.Call("abi", 0x200F, a)                    // barrier
	b.StoreSlot(SlotX, b.Const(0))              // kept, end of block
	b.CondBr(b.Eq(a, b.Const(5)), taken, other) // folded to br taken

	b.SetInsertPoint(taken)
	b.Ret(b.Const(0))
	b.SetInsertPoint(other)
	b.Ret(b.Const(1))

	assert.NoError(t, Verify(fn))
	stats := Optimize(fn)
	assert.NoError(t, Verify(fn))

	assert.Equal(t, 1, stats.DeadStores)
	assert.Equal(t, 1, stats.Forwarded)
	assert.Equal(t, 1, stats.FoldedBranches)
	assert.True(t, stats.Folded >= 2)
	assert.True(t, stats.DeadValues > 0)

	term := entry.Terminator()
	assert.Equal(t, OpBr, term.Op)
	assert.Equal(t, taken, term.Targets[0])
	assert.Equal(t, 0, countOps(fn, OpLoadSlot))
	assert.Equal(t, 3, countOps(fn, OpStoreSlot))
	assert.Equal(t, 1, countOps(fn, OpCall))
}

func TestDeadStoreStopsAtSlotRead(t *testing.T) {
	fn := NewFunction("main")
	b := NewBuilder(fn)
	b.SetInsertPoint(fn.NewBlock("entry"))
	b.StoreSlot(SlotA, b.Const(1))
	b.Store(b.Const(0x10), b.LoadSlot(SlotX))
	b.StoreSlot(SlotA, b.Const(2))
	b.Ret(b.Const(0))

	stats := Optimize(fn)
	assert.Equal(t, 0, stats.DeadStores)
	assert.Equal(t, 2, countOps(fn, OpStoreSlot))
}

func TestPrint(t *testing.T) {
	fn := NewFunction("main")
	entry := fn.NewBlock("entry")
	reset := fn.NewBlock("Reset")
	fn.AddDispatchEntry(0x8000, reset)

	b := NewBuilder(fn)
	b.SetInsertPoint(entry)
	b.Br(reset)
	b.SetInsertPoint(reset)
	b.StoreSlot(SlotY, b.Const(0x0A))
	b.Call("abi", 0x200F, b.LoadSlot(SlotA))
	b.Ret(b.Const(0))

	out := fn.String()
	assert.True(t, strings.HasPrefix(out, "function main {\n"))
	assert.Contains(t, out, "entry:\n    br Reset\n")
	assert.Contains(t, out, "%0 = const $000A")
	assert.Contains(t, out, "store.slot y, %0")
	assert.Contains(t, out, "call abi, $200F, %1")
	assert.Contains(t, out, "$8000 -> Reset")
}
