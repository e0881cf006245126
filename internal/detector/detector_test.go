package detector

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/memory"
)

func TestDetect(t *testing.T) {
	logger := log.NewTestLogger(t)
	d := New(logger)

	tests := []struct {
		name       string
		inputFile  string
		data       []byte
		wantFormat Format
	}{
		{
			name:       "ines header",
			inputFile:  "game.bin",
			data:       []byte{'N', 'E', 'S', 0x1A, 1, 0},
			wantFormat: FormatNES,
		},
		{
			name:       "nes extension",
			inputFile:  "GAME.NES",
			data:       []byte{0xEA},
			wantFormat: FormatNES,
		},
		{
			name:       "full address space image",
			inputFile:  "memory.img",
			data:       make([]byte, memory.Size),
			wantFormat: FormatImage,
		},
		{
			name:       "raw binary",
			inputFile:  "test.bin",
			data:       []byte{0xA9, 0x00, 0x8D, 0x0F, 0x20},
			wantFormat: FormatBinary,
		},
		{
			name:       "empty file",
			inputFile:  "empty",
			wantFormat: FormatBinary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(tt.inputFile, tt.data)
			assert.Equal(t, tt.wantFormat, got)
		})
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "binary", FormatBinary.String())
	assert.Equal(t, "image", FormatImage.String())
	assert.Equal(t, "nes", FormatNES.String())
}
