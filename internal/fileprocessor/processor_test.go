package fileprocessor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/options"
)

// lda #'!'; sta putchar; sta exit
var testCode = []byte{0xA9, 0x21, 0x8D, 0x0D, 0x20, 0x8D, 0x0F, 0x20}

func TestProcessFileTo(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "test.bin")
	assert.NoError(t, os.WriteFile(input, testCode, 0o600))

	opts := options.Program{}
	opts.Input = input
	opts.Output = filepath.Join(dir, "test.asm")
	opts.Quiet = true
	compilerOpts := options.NewCompiler()
	compilerOpts.Disasm = true

	var stdout bytes.Buffer
	res, err := ProcessFileTo(context.Background(), log.NewTestLogger(t), opts, compilerOpts, &stdout)
	assert.NoError(t, err)
	assert.Equal(t, int32(0x21), res.ExitCode)
	assert.Equal(t, "!", stdout.String())

	listing, err := os.ReadFile(opts.Output)
	assert.NoError(t, err)
	assert.Contains(t, string(listing), "sta HOST_PUTCHAR")
}

func TestProcessFileToError(t *testing.T) {
	opts := options.Program{}
	opts.Input = filepath.Join(t.TempDir(), "missing.bin")

	_, err := ProcessFileTo(context.Background(), log.NewTestLogger(t), opts, options.NewCompiler(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "missing.bin")
}

func TestGetFilesToProcess(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.bin", "b.bin", "c.txt"} {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, name), testCode, 0o600))
	}

	opts := &options.Program{}
	opts.Batch = filepath.Join(dir, "*.bin")
	files, err := GetFilesToProcess(opts)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(files))

	opts = &options.Program{}
	opts.Input = "single.bin"
	files, err = GetFilesToProcess(opts)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(files))
	assert.Equal(t, "single.bin", files[0])
}

func TestGenerateOutputFilename(t *testing.T) {
	listing := options.NewCompiler()
	listing.Disasm = true
	assert.Equal(t, "dir/game.asm", GenerateOutputFilename("dir/game.nes", listing))

	dump := options.NewCompiler()
	dump.DumpIR = true
	assert.Equal(t, "prog.ir", GenerateOutputFilename("prog.bin", dump))
	assert.True(t, HasFileOutput(dump))
	assert.False(t, HasFileOutput(options.NewCompiler()))
}
