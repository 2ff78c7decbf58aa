package models

import (
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
)

// StrucStream packs a sequence of values with one byte order. The first
// error sticks and later calls do nothing.
type StrucStream struct {
	Stream io.ReadWriter
	Order  binary.ByteOrder
	Err    error
}

func (s *StrucStream) Pack(vals ...interface{}) error {
	for _, v := range vals {
		if s.Err != nil {
			break
		}
		s.Err = struc.PackWithOrder(s.Stream, v, s.Order)
	}
	return s.Err
}

func (s *StrucStream) Unpack(vals ...interface{}) error {
	for _, v := range vals {
		if s.Err != nil {
			break
		}
		s.Err = struc.UnpackWithOrder(s.Stream, v, s.Order)
	}
	return s.Err
}
