/*
Copyright 2017 Luke Granger-Brown

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package byteio provides a positional reader over an immutable byte slice,
// shared by the encoding table, archive index and root manifest parsers
// (the BLTE header parser reads its fields directly). It tracks a byte offset and a
// bit offset so that MSB-first bitfields can be read without the caller
// hand-rolling shift-and-mask arithmetic.
package byteio

import "github.com/lukegb/casc/ngdp"

// Reader is a positional reader over a []byte that the caller owns; Reader
// never copies or retains the slice beyond borrowing subslices from it.
type Reader struct {
	buf    []byte
	offset int
	bit    int // 0-7; bit within buf[offset] not yet consumed
}

// New creates a Reader over buf starting at offset 0.
func New(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the current byte offset.
func (r *Reader) Offset() int { return r.offset }

// Remaining returns the number of whole bytes left to read.
func (r *Reader) Remaining() int { return len(r.buf) - r.offset }

// EOF reports whether the reader is positioned at or past the end of the
// buffer with no partial bit pending.
func (r *Reader) EOF() bool { return r.offset >= len(r.buf) && r.bit == 0 }

// Seek repositions the reader to an absolute byte offset and clears any
// pending bit offset.
func (r *Reader) Seek(offset int) {
	r.offset = offset
	r.bit = 0
}

// Skip advances the reader by n bytes, clearing any pending bit offset.
func (r *Reader) Skip(n int) {
	r.alignToByte()
	r.offset += n
}

// alignToByte advances past a partially-consumed byte, per spec.md §4.1:
// "Any byte-oriented read performed while bit offset ≠ 0 first advances to
// the next whole byte."
func (r *Reader) alignToByte() {
	if r.bit != 0 {
		r.offset++
		r.bit = 0
	}
}

func (r *Reader) require(n int) error {
	if r.offset+n > len(r.buf) {
		return &ngdp.OutOfRangeError{Offset: r.offset, Want: n, Have: len(r.buf) - r.offset}
	}
	return nil
}

// Bytes borrows the next n bytes as a subslice of the underlying buffer. The
// caller must not mutate or retain it beyond the Reader's own lifetime if
// the backing buffer may be reused.
func (r *Reader) Bytes(n int) ([]byte, error) {
	r.alignToByte()
	if err := r.require(n); err != nil {
		return nil, err
	}
	b := r.buf[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

// String reads n raw bytes and returns them as a UTF-8 string.
func (r *Reader) String(n int) (string, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HexString reads n raw bytes and returns their lowercase hex encoding.
func (r *Reader) HexString(n int) (string, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 2*n)
	for i, c := range b {
		out[2*i] = hexDigits[c>>4]
		out[2*i+1] = hexDigits[c&0xf]
	}
	return string(out), nil
}

// Uint8 reads a single unsigned byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16BE reads a big-endian uint16.
func (r *Reader) Uint16BE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// Uint16LE reads a little-endian uint16.
func (r *Reader) Uint16LE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[1])<<8 | uint16(b[0]), nil
}

// Uint24BE reads a big-endian 24-bit unsigned integer (the width of the BLTE
// header's block count).
func (r *Reader) Uint24BE() (uint32, error) {
	b, err := r.Bytes(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// Uint32BE reads a big-endian uint32.
func (r *Reader) Uint32BE() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// Uint32LE reads a little-endian uint32.
func (r *Reader) Uint32LE() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[3])<<24 | uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0]), nil
}

// Int32LE reads a signed little-endian int32, used for the root manifest's
// fileDataID deltas.
func (r *Reader) Int32LE() (int32, error) {
	v, err := r.Uint32LE()
	return int32(v), err
}

// Uint40BE reads a big-endian 40-bit (5-byte) unsigned integer into a
// uint64, used for the encoding table's fileSize field.
func (r *Reader) Uint40BE() (uint64, error) {
	b, err := r.Bytes(5)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// Uint64BE reads a big-endian uint64.
func (r *Reader) Uint64BE() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// Uint64LE reads a little-endian uint64.
func (r *Reader) Uint64LE() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// Bits reads n (1-32) bits MSB-first, consuming across byte boundaries as
// needed. It does not require byte alignment on entry or exit.
func (r *Reader) Bits(n int) (uint32, error) {
	if n < 1 || n > 32 {
		panic("byteio: Bits: n out of range [1,32]")
	}

	var v uint32
	remaining := n
	for remaining > 0 {
		if err := r.require(1); err != nil {
			// We may already have consumed some bits into v; the
			// caller gets a clean OutOfRange either way.
			return 0, err
		}
		avail := 8 - r.bit
		take := avail
		if take > remaining {
			take = remaining
		}

		cur := r.buf[r.offset]
		// Shift so that the `take` bits we want are the low bits,
		// then mask.
		shift := avail - take
		bits := (cur >> uint(shift)) & byte((1<<uint(take))-1)

		v = v<<uint(take) | uint32(bits)

		r.bit += take
		if r.bit == 8 {
			r.bit = 0
			r.offset++
		}
		remaining -= take
	}
	return v, nil
}
