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

// Package blte decodes BLTE containers: the recursive, chunked,
// multi-codec compression envelope that wraps every file CASC serves.
package blte

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"github.com/lukegb/casc/ngdp"
)

// maxRecursionDepth bounds the 'F' (recursive BLTE) codec; the format
// allows unbounded nesting, but a well-formed input never needs more than
// a handful of levels.
const maxRecursionDepth = 8

const magicLen = 4 // "BLTE"

// Format 0x10 additionally carries an uncompressedHash per block.
const (
	formatNoUncompressedHash byte = 0x0F
	formatUncompressedHash   byte = 0x10
)

// Block holds the per-chunk metadata parsed from a BLTE header.
type Block struct {
	CompressedSize   uint32
	DecompressedSize uint32
	Hash             [md5.Size]byte // MD5 of the compressed payload; not verified.
	UncompressedHash [md5.Size]byte
	HasUncompressed  bool
}

// header is the parsed BLTE header: the block table plus the offset at
// which block payloads begin.
type header struct {
	format        byte
	payloadOffset uint32
	blocks        []Block
}

// Decode parses a BLTE container and returns the concatenated decompressed
// payload of every block, recursively unwrapping any 'F'-tagged block.
func Decode(data []byte) ([]byte, error) {
	return decode(data, 0)
}

func decode(data []byte, depth int) ([]byte, error) {
	if depth > maxRecursionDepth {
		return nil, ngdp.ErrBLTERecursionLimit
	}

	h, err := parseHeader(data)
	if err != nil {
		return nil, errors.Wrap(err, "blte: parsing header")
	}

	var out bytes.Buffer
	// Block i's absolute offset is always the computed payload offset plus
	// the sum of the compressed sizes of blocks [0,i) taken from this
	// canonical, header-order slice, never from any other ordering.
	offset := int(h.payloadOffset)
	for i, b := range h.blocks {
		end := offset + int(b.CompressedSize)
		if end > len(data) || offset < 0 {
			return nil, errors.Wrapf(&ngdp.OutOfRangeError{Offset: offset, Want: int(b.CompressedSize), Have: len(data) - offset}, "blte: block %d payload", i)
		}
		payload := data[offset:end]
		offset = end

		decoded, err := decodeBlock(payload, b, depth)
		if err != nil {
			return nil, errors.Wrapf(err, "blte: block %d", i)
		}
		out.Write(decoded)
	}
	return out.Bytes(), nil
}

func parseHeader(data []byte) (*header, error) {
	if len(data) < 8 || string(data[:magicLen]) != "BLTE" {
		got := ""
		if len(data) >= magicLen {
			got = string(data[:magicLen])
		}
		return nil, &ngdp.BadMagicError{Expected: "BLTE", Got: got}
	}

	headerSize := beUint32(data[4:8])
	if headerSize == 0 {
		return nil, ngdp.ErrBadBLTEHeader
	}
	if len(data) < int(headerSize) {
		return nil, &ngdp.OutOfRangeError{Offset: 8, Want: int(headerSize) - 8, Have: len(data) - 8}
	}
	if len(data) < 12 {
		return nil, &ngdp.OutOfRangeError{Offset: 8, Want: 4, Have: len(data) - 8}
	}

	format := data[8]
	if format != formatNoUncompressedHash && format != formatUncompressedHash {
		return nil, ngdp.ErrBadBLTEFormat
	}

	blockCount := beUint24(data[9:12])
	if blockCount == 0 {
		return nil, ngdp.ErrBadBLTEHeader
	}

	entrySize := 24
	if format == formatUncompressedHash {
		entrySize = 40
	}

	// The header's own headerSize field declares where payloads begin, but
	// is only a lower bound in practice; the reliable offset is wherever
	// the block table, read out to the declared blockCount, actually ends.
	cursor := 12
	blocks := make([]Block, blockCount)
	for i := uint32(0); i < blockCount; i++ {
		if cursor+entrySize > len(data) {
			return nil, &ngdp.OutOfRangeError{Offset: cursor, Want: entrySize, Have: len(data) - cursor}
		}
		entry := data[cursor : cursor+entrySize]
		cursor += entrySize

		var b Block
		b.CompressedSize = beUint32(entry[0:4])
		b.DecompressedSize = beUint32(entry[4:8])
		copy(b.Hash[:], entry[8:24])
		if format == formatUncompressedHash {
			copy(b.UncompressedHash[:], entry[24:40])
			b.HasUncompressed = true
		}
		blocks[i] = b
	}

	return &header{format: format, payloadOffset: uint32(cursor), blocks: blocks}, nil
}

func decodeBlock(payload []byte, b Block, depth int) ([]byte, error) {
	if len(payload) == 0 {
		return nil, &ngdp.OutOfRangeError{Offset: 0, Want: 1, Have: 0}
	}
	tag := payload[0]
	body := payload[1:]

	switch tag {
	case 'N':
		return body, nil

	case 'Z':
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "blte: zlib")
		}
		defer zr.Close()
		// +1 so a stream that's actually longer than declared fails the
		// length check below instead of being silently truncated to it.
		out, err := io.ReadAll(io.LimitReader(zr, int64(b.DecompressedSize)+1))
		if err != nil {
			return nil, errors.Wrap(err, "blte: zlib decompress")
		}
		if uint32(len(out)) != b.DecompressedSize {
			return nil, fmt.Errorf("blte: zlib decompressed size %d, want %d", len(out), b.DecompressedSize)
		}
		return out, nil

	case '4':
		return decodeLZ4(body, b.DecompressedSize)

	case 'F':
		return decode(body, depth+1)

	case 'E':
		return nil, ngdp.ErrUnsupportedEncryption

	default:
		return nil, &ngdp.UnknownCodecError{Tag: tag}
	}
}

// decodeLZ4 skips the informational LZ4-framed preamble (a version byte, a
// big-endian size, and a block-shift byte) that precedes the raw LZ4 block
// data within a '4'-tagged chunk.
func decodeLZ4(body []byte, decompressedSize uint32) ([]byte, error) {
	const preambleLen = 1 + 8 + 1
	if len(body) < preambleLen {
		return nil, &ngdp.OutOfRangeError{Offset: 0, Want: preambleLen, Have: len(body)}
	}
	version := body[0]
	if version != 1 {
		return nil, fmt.Errorf("blte: unsupported LZ4 frame version %d", version)
	}
	block := body[preambleLen:]

	dst := make([]byte, decompressedSize)
	n, err := lz4.UncompressBlock(block, dst)
	if err != nil {
		return nil, errors.Wrap(err, "blte: lz4 decompress")
	}
	if uint32(n) != decompressedSize {
		return nil, fmt.Errorf("blte: lz4 decompressed size %d, want %d", n, decompressedSize)
	}
	return dst, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beUint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
