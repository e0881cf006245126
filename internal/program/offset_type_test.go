package program

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestCoverage_SetType(t *testing.T) {
	var c Coverage

	assert.False(t, c.IsType(0x8000, CodeOffset))
	c.SetType(0x8000, CodeOffset)
	assert.True(t, c.IsType(0x8000, CodeOffset))
	assert.False(t, c.IsType(0x8000, OperandOffset))

	c.SetType(0x8000, CallDestination)
	assert.True(t, c.IsType(0x8000, CodeOffset))
	assert.True(t, c.IsType(0x8000, CallDestination))
	assert.True(t, c.IsCode(0x8000))
}

func TestCoverage_ClearType(t *testing.T) {
	var c Coverage
	c.SetType(0x10, CodeOffset)
	c.SetType(0x10, BranchDestination)

	c.ClearType(0x10, CodeOffset)
	assert.False(t, c.IsType(0x10, CodeOffset))
	assert.True(t, c.IsType(0x10, BranchDestination))
	assert.False(t, c.IsCode(0x10))

	c.ClearType(0x10, BranchDestination)
	assert.Equal(t, UnknownOffset, c[0x10])
}
