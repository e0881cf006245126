// Package loader handles program file loading operations.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
	"github.com/retroenv/retrogolib/arch/system/nes/codedatalog"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/arch/m6502"
	"github.com/retroenv/retrorecomp/internal/detector"
	"github.com/retroenv/retrorecomp/internal/memory"
	"github.com/retroenv/retrorecomp/internal/options"
)

const (
	prgBase     = 0x8000
	prgBankSize = 0x4000
)

var (
	// ErrEmptyProgram is returned for input files without program code.
	ErrEmptyProgram = errors.New("program is empty")
	// ErrCodeDataLogFormat is returned when a Code/Data log is given for an
	// input that is not an iNES cartridge.
	ErrCodeDataLogFormat = errors.New("code/data log requires an iNES cartridge")
)

// Image is a loaded program as a full address space image.
type Image struct {
	Data   []byte // memory.Size bytes
	Format detector.Format
	Reset  uint16
	Mapper uint16 // iNES mapper number

	EntryPoints []uint16 // code addresses marked by a Code/Data log
}

// Loader handles loading program files from disk.
type Loader struct {
	detector *detector.Detector
}

// New creates a new program loader.
func New(logger *log.Logger) *Loader {
	return &Loader{
		detector: detector.New(logger),
	}
}

// Load reads the input file and returns it as an address space image.
// Raw binaries are placed at the base address and get their reset vector
// pointed to the base if the file does not set one. An iNES cartridge has
// its PRG ROM mapped at $8000, a single 16KB bank is mirrored at $C000.
// The entry option overrides the reset vector.
func (l *Loader) Load(input string, opts options.Compiler) (*Image, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", input, err)
	}

	format := l.detector.Detect(input, data)
	if opts.CodeDataLog != "" && format != detector.FormatNES {
		return nil, ErrCodeDataLogFormat
	}

	img, cart, err := l.build(format, data, opts.Base)
	if err != nil {
		return nil, err
	}
	if opts.CodeDataLog != "" {
		if img.EntryPoints, err = loadCodeDataLog(cart, opts.CodeDataLog); err != nil {
			return nil, err
		}
	}

	if opts.HasEntry {
		writeWord(img.Data, m6502.ResetVector, opts.Entry)
	}
	img.Reset = readWord(img.Data, m6502.ResetVector)
	return img, nil
}

// build returns the address space image and, for iNES input, the parsed
// cartridge.
func (l *Loader) build(format detector.Format, data []byte, base uint16) (*Image, *cartridge.Cartridge, error) {
	switch format {
	case detector.FormatNES:
		return loadCartridge(data)

	case detector.FormatImage:
		return &Image{Data: data, Format: format}, nil, nil

	default:
		if len(data) == 0 {
			return nil, nil, ErrEmptyProgram
		}
		ram := memory.New()
		if err := ram.Load(data, base); err != nil {
			return nil, nil, fmt.Errorf("loading binary at $%04X: %w", base, err)
		}
		img := &Image{Data: ram.Bytes(), Format: format}
		if readWord(img.Data, m6502.ResetVector) == 0 {
			writeWord(img.Data, m6502.ResetVector, base)
		}
		return img, nil, nil
	}
}

func loadCartridge(data []byte) (*Image, *cartridge.Cartridge, error) {
	cart, err := cartridge.LoadFile(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("loading cartridge: %w", err)
	}
	if len(cart.PRG) == 0 {
		return nil, nil, ErrEmptyProgram
	}

	image := make([]byte, memory.Size)
	copy(image[prgBase:], cart.PRG)
	if len(cart.PRG) == prgBankSize {
		copy(image[prgBase+prgBankSize:], cart.PRG)
	}

	img := &Image{
		Data:   image,
		Format: detector.FormatNES,
		Mapper: cart.Mapper,
	}
	return img, cart, nil
}

// loadCodeDataLog returns the PRG addresses that the log marks as
// subroutine entry points or as the start of a run of code bytes.
func loadCodeDataLog(cart *cartridge.Cartridge, path string) ([]uint16, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file '%s': %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	prgFlags, err := codedatalog.LoadFile(cart, file)
	if err != nil {
		return nil, fmt.Errorf("loading code/data log file: %w", err)
	}
	return codeDataLogEntryPoints(prgFlags), nil
}

func codeDataLogEntryPoints(prgFlags []codedatalog.PrgFlag) []uint16 {
	var entryPoints []uint16
	previousCode := false
	for index, flags := range prgFlags {
		if index >= memory.Size-prgBase {
			break // banked PRG beyond the fixed window
		}

		code := flags&codedatalog.Code != 0
		if flags&codedatalog.SubEntryPoint != 0 || (code && !previousCode) {
			entryPoints = append(entryPoints, prgBase+uint16(index))
		}
		previousCode = code
	}
	return entryPoints
}

func readWord(data []byte, address uint16) uint16 {
	return uint16(data[address]) | uint16(data[address+1])<<8
}

func writeWord(data []byte, address, value uint16) {
	data[address] = byte(value)
	data[address+1] = byte(value >> 8)
}
