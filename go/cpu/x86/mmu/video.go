package mmu

import (
	"strings"
)

const (
	TextBase = 0xb8000
	TextSize = 0x8000
)

// FrameBuffer is a plain video RAM backing store.
type FrameBuffer struct {
	Mem    []byte
	Writes int
}

func NewFrameBuffer(size int) *FrameBuffer {
	return &FrameBuffer{Mem: make([]byte, size)}
}

func (f *FrameBuffer) ReadVideo(off uint32) byte {
	if uint64(off) < uint64(len(f.Mem)) {
		return f.Mem[off]
	}
	return 0xff
}

func (f *FrameBuffer) WriteVideo(off uint32, val byte) {
	if uint64(off) < uint64(len(f.Mem)) {
		f.Mem[off] = val
		f.Writes++
	}
}

// Text renders the buffer as a character/attribute text mode screen.
func (f *FrameBuffer) Text(cols, rows int) string {
	var b strings.Builder
	for y := 0; y < rows; y++ {
		line := make([]byte, cols)
		for x := 0; x < cols; x++ {
			c := f.ReadVideo(uint32((y*cols + x) * 2))
			if c < 0x20 || c >= 0x7f {
				c = ' '
			}
			line[x] = c
		}
		b.WriteString(strings.TrimRight(string(line), " "))
		b.WriteByte('\n')
	}
	return b.String()
}
