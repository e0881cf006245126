// Package detector handles input format detection.
package detector

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/memory"
)

// Format is the layout of an input file.
type Format int

// Supported input formats.
const (
	FormatBinary Format = iota // raw code loaded at the base address
	FormatImage                // full 64KB address space image
	FormatNES                  // iNES cartridge
)

var inesMagic = []byte{'N', 'E', 'S', 0x1A}

func (f Format) String() string {
	switch f {
	case FormatImage:
		return "image"
	case FormatNES:
		return "nes"
	default:
		return "binary"
	}
}

// Detector determines the format of input files.
type Detector struct {
	logger *log.Logger
}

// New creates a new format detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Detect determines the input format from the file content, falling back to
// the file name extension.
func (d *Detector) Detect(filename string, data []byte) Format {
	format := d.detect(filename, data)
	d.logger.Debug("Detected input format",
		log.Stringer("format", format),
		log.String("file", filename))
	return format
}

func (d *Detector) detect(filename string, data []byte) Format {
	if bytes.HasPrefix(data, inesMagic) {
		return FormatNES
	}
	if strings.ToLower(filepath.Ext(filename)) == ".nes" {
		return FormatNES
	}
	if len(data) == memory.Size {
		return FormatImage
	}
	return FormatBinary
}
