package models

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"sort"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/x86emu/go/models/cpu"
)

// savestate layout, big endian:
//
//	header (saveHeader)
//	snappy block of:
//	  RegCount x regRecord, highest enum first
//	  MemSize bytes of physical memory

const (
	saveMagic   = "X86S"
	saveVersion = 1
)

// Memory is the physical memory captured by a savestate.
type Memory interface {
	Dump() []byte
	Load(addr uint32, data []byte) error
	Size() int
}

type saveHeader struct {
	Magic    string `struc:"[4]byte"`
	Version  uint32
	ArchLen  int `struc:"uint8,sizeof=Arch"`
	Arch     string
	RegCount uint32
	MemSize  uint32
	Checksum uint32
	BodyLen  uint32
}

type regRecord struct {
	Enum uint32
	Val  uint64
}

// saveOrder sorts register enums from highest to lowest. Control and
// descriptor table registers sort above segments, so segment selectors are
// restored against the saved tables.
func saveOrder(arch *Arch) []int {
	seen := make(map[int]bool, len(arch.Regs))
	enums := make([]int, 0, len(arch.Regs))
	for _, enum := range arch.Regs {
		if !seen[enum] {
			seen[enum] = true
			enums = append(enums, enum)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(enums)))
	return enums
}

// Save captures every register named by arch and all of physical memory.
func Save(arch *Arch, c cpu.Cpu, mem Memory) ([]byte, error) {
	var body bytes.Buffer
	s := StrucStream{Stream: &body, Order: binary.BigEndian}
	enums := saveOrder(arch)
	for _, enum := range enums {
		val, err := c.RegRead(enum)
		if err != nil {
			return nil, errors.Wrap(err, "savestate")
		}
		s.Pack(&regRecord{uint32(enum), val})
	}
	if s.Err != nil {
		return nil, errors.Wrap(s.Err, "savestate")
	}
	body.Write(mem.Dump())

	packed := snappy.Encode(nil, body.Bytes())
	hdr := &saveHeader{
		Magic:    saveMagic,
		Version:  saveVersion,
		Arch:     arch.Name,
		RegCount: uint32(len(enums)),
		MemSize:  uint32(mem.Size()),
		Checksum: crc32.ChecksumIEEE(packed),
		BodyLen:  uint32(len(packed)),
	}
	var out bytes.Buffer
	if err := struc.PackWithOrder(&out, hdr, binary.BigEndian); err != nil {
		return nil, errors.Wrap(err, "savestate header")
	}
	out.Write(packed)
	return out.Bytes(), nil
}

// Load restores a savestate written by Save. Memory is restored before
// registers.
func Load(arch *Arch, c cpu.Cpu, mem Memory, data []byte) error {
	r := bytes.NewReader(data)
	var hdr saveHeader
	if err := struc.UnpackWithOrder(r, &hdr, binary.BigEndian); err != nil {
		return errors.Wrap(err, "savestate header")
	}
	switch {
	case hdr.Magic != saveMagic:
		return errors.Errorf("not a savestate (magic %q)", hdr.Magic)
	case hdr.Version != saveVersion:
		return errors.Errorf("unsupported savestate version %d", hdr.Version)
	case hdr.Arch != arch.Name:
		return errors.Errorf("savestate is for %s, not %s", hdr.Arch, arch.Name)
	case int(hdr.MemSize) != mem.Size():
		return errors.Errorf("savestate memory size %#x does not match %#x", hdr.MemSize, mem.Size())
	}
	packed := data[len(data)-r.Len():]
	if uint32(len(packed)) != hdr.BodyLen {
		return errors.Errorf("savestate body is %d bytes, expected %d", len(packed), hdr.BodyLen)
	}
	if crc32.ChecksumIEEE(packed) != hdr.Checksum {
		return errors.New("savestate checksum mismatch")
	}
	body, err := snappy.Decode(nil, packed)
	if err != nil {
		return errors.Wrap(err, "savestate body")
	}

	regs := make([]regRecord, hdr.RegCount)
	br := bytes.NewReader(body)
	s := StrucStream{Stream: readOnly{br}, Order: binary.BigEndian}
	for i := range regs {
		s.Unpack(&regs[i])
	}
	if s.Err != nil {
		return errors.Wrap(s.Err, "savestate registers")
	}
	if br.Len() != int(hdr.MemSize) {
		return errors.Errorf("savestate holds %#x bytes of memory, expected %#x", br.Len(), hdr.MemSize)
	}
	if err := mem.Load(0, body[len(body)-br.Len():]); err != nil {
		return err
	}
	for _, reg := range regs {
		if err := c.RegWrite(int(reg.Enum), reg.Val); err != nil {
			return errors.Wrapf(err, "restoring register %d", reg.Enum)
		}
	}
	return nil
}

type readOnly struct{ *bytes.Reader }

func (readOnly) Write(p []byte) (int, error) { return 0, errors.New("read-only stream") }
