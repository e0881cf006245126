package engine

import (
	"fmt"

	"github.com/retroenv/retrorecomp/internal/ir"
)

type lowering struct {
	exe  *Executable
	opts Options
}

func (l lowering) block(b *ir.Block) (compiledBlock, error) {
	compiled := compiledBlock{
		name:  b.Name,
		steps: make([]step, 0, len(b.Instrs)-1),
	}

	for _, ins := range b.Instrs {
		if ins.Op.IsTerminator() {
			compiled.term = l.terminator(b, ins)
			continue
		}
		s, err := l.step(ins)
		if err != nil {
			return compiledBlock{}, err
		}
		compiled.steps = append(compiled.steps, s)
	}
	return compiled, nil
}

//nolint:funlen,cyclop
func (l lowering) step(ins *ir.Instr) (step, error) {
	dst := ins.Dst
	var a, b ir.Value
	if len(ins.Args) > 0 {
		a = ins.Args[0]
	}
	if len(ins.Args) > 1 {
		b = ins.Args[1]
	}

	switch ins.Op {
	case ir.OpConst:
		v := ins.Imm
		return func(m *Machine) { m.values[dst] = v }, nil

	case ir.OpLoadSlot:
		slot := ins.Slot
		return func(m *Machine) { m.values[dst] = m.slots[slot] }, nil

	case ir.OpStoreSlot:
		slot := ins.Slot
		return func(m *Machine) { m.slots[slot] = m.values[a] }, nil

	case ir.OpLoad:
		return func(m *Machine) { m.values[dst] = uint16(m.bus.Read(m.values[a])) }, nil

	case ir.OpStore:
		return l.store(a, b), nil

	case ir.OpAdd:
		return func(m *Machine) { m.values[dst] = m.values[a] + m.values[b] }, nil
	case ir.OpSub:
		return func(m *Machine) { m.values[dst] = m.values[a] - m.values[b] }, nil
	case ir.OpAnd:
		return func(m *Machine) { m.values[dst] = m.values[a] & m.values[b] }, nil
	case ir.OpOr:
		return func(m *Machine) { m.values[dst] = m.values[a] | m.values[b] }, nil
	case ir.OpXor:
		return func(m *Machine) { m.values[dst] = m.values[a] ^ m.values[b] }, nil
	case ir.OpShl:
		return func(m *Machine) { m.values[dst] = m.values[a] << m.values[b] }, nil
	case ir.OpShr:
		return func(m *Machine) { m.values[dst] = m.values[a] >> m.values[b] }, nil
	case ir.OpEq, ir.OpNe, ir.OpUge:
		op := ins.Op
		return func(m *Machine) { m.values[dst] = ir.Eval(op, m.values[a], m.values[b]) }, nil

	case ir.OpCall:
		fn, ok := l.opts.HostFuncs[ins.Callee]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHostFunction, ins.Callee)
		}
		address := ins.Imm
		return func(m *Machine) {
			if err := fn(m, address, byte(m.values[a])); err != nil {
				m.fail(fmt.Errorf("calling host function at $%04X: %w", address, err))
			}
		}, nil

	default:
		return nil, fmt.Errorf("unsupported operation %s", ins.Op)
	}
}

func (l lowering) store(address, value ir.Value) step {
	hook := l.opts.StoreHook
	if hook == nil {
		return func(m *Machine) { m.bus.Write(m.values[address], byte(m.values[value])) }
	}

	return func(m *Machine) {
		addr, v := m.values[address], byte(m.values[value])
		handled, err := hook(m, addr, v)
		if err != nil {
			m.fail(fmt.Errorf("storing to $%04X: %w", addr, err))
			return
		}
		if !handled {
			m.bus.Write(addr, v)
		}
	}
}

func (l lowering) terminator(b *ir.Block, ins *ir.Instr) terminator {
	switch ins.Op {
	case ir.OpBr:
		next := ins.Targets[0].Index
		return func(*Machine) int { return next }

	case ir.OpCondBr:
		cond := ins.Args[0]
		then, els := ins.Targets[0].Index, ins.Targets[1].Index
		return func(m *Machine) int {
			if m.values[cond] != 0 {
				return then
			}
			return els
		}

	case ir.OpDispatch:
		address := ins.Args[0]
		table := l.exe.dispatch
		function, block := l.exe.name, b.Name
		return func(m *Machine) int {
			target := m.values[address]
			if index, ok := table[target]; ok {
				return index
			}
			m.fail(&DispatchError{Function: function, Block: block, Address: target})
			return -1
		}

	default: // ir.OpRet
		code := ins.Args[0]
		return func(m *Machine) int {
			m.Halt(int32(m.values[code]))
			return -1
		}
	}
}
