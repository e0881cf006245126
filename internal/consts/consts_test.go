package consts

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrorecomp/internal/abi"
	"github.com/retroenv/retrorecomp/internal/arch/m6502"
)

func TestNew(t *testing.T) {
	consts := New(abi.DefaultConfig())

	exit, ok := consts.Get(0x200F)
	assert.True(t, ok)
	assert.Equal(t, "HOST_EXIT", exit.Name)

	putchar, ok := consts.Get(0x200D)
	assert.True(t, ok)
	assert.Equal(t, "HOST_PUTCHAR", putchar.Name)

	assert.Equal(t, 8, len(consts.All()))
}

//nolint:funlen
func TestReplaceParameter(t *testing.T) {
	tests := []struct {
		name       string
		address    uint16
		op         m6502.Op
		param      string
		wantResult string
		wantOK     bool
		shouldMark bool
	}{
		{
			name:       "replaces store parameter",
			address:    0x2008,
			op:         m6502.STA,
			param:      "$2008",
			wantResult: "HOST_PRINT_A",
			wantOK:     true,
			shouldMark: true,
		},
		{
			name:       "replaces indexed parameter",
			address:    0x200D,
			op:         m6502.STA,
			param:      "$200D,X",
			wantResult: "HOST_PUTCHAR,X",
			wantOK:     true,
			shouldMark: true,
		},
		{
			name:       "keeps load parameter",
			address:    0x200F,
			op:         m6502.LDA,
			param:      "$200F",
			wantResult: "$200F",
			wantOK:     true,
			shouldMark: false,
		},
		{
			name:       "non host address",
			address:    0x8000,
			op:         m6502.STA,
			param:      "$8000",
			wantResult: "$8000",
			wantOK:     false,
			shouldMark: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consts := New(abi.DefaultConfig())

			result, ok := consts.ReplaceParameter(tt.address, tt.op, tt.param)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantResult, result)
			assert.Equal(t, tt.shouldMark, consts.IsUsed(tt.address))
		})
	}
}

func TestUsed(t *testing.T) {
	consts := New(abi.DefaultConfig())
	assert.Equal(t, 0, len(consts.Used()))

	consts.ReplaceParameter(0x200F, m6502.STX, "$200F")
	used := consts.Used()
	assert.Equal(t, 1, len(used))
	assert.Equal(t, uint16(0x200F), used["HOST_EXIT"])
}
