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

// Package encoding decodes the CE (content-to-encoded-key) table: the
// paged, BLTE-wrapped blob a buildconfig's "encoding" key points at, which
// maps every logical file's CKey to its EKeys and decompressed size.
package encoding

import (
	"fmt"

	"github.com/lukegb/casc/ngdp"
	"github.com/lukegb/casc/ngdp/byteio"
)

const headerLen = 22

// header is the parsed 22-byte CE table header.
type header struct {
	version         uint8
	cKeyLength      uint8
	eKeyLength      uint8
	cePageSizeKB    uint16
	especPageSizeKB uint16
	cePageCount     uint32
	especPageCount  uint32
	flags           uint8
	especBlockSize  uint32
}

func parseHeader(r *byteio.Reader) (*header, error) {
	sig, err := r.String(2)
	if err != nil {
		return nil, err
	}
	if sig != "EN" {
		return nil, &ngdp.BadMagicError{Expected: "EN", Got: sig}
	}

	var h header
	var e error
	if h.version, e = r.Uint8(); e != nil {
		return nil, e
	}
	if h.cKeyLength, e = r.Uint8(); e != nil {
		return nil, e
	}
	if h.eKeyLength, e = r.Uint8(); e != nil {
		return nil, e
	}
	if h.cePageSizeKB, e = r.Uint16BE(); e != nil {
		return nil, e
	}
	if h.especPageSizeKB, e = r.Uint16BE(); e != nil {
		return nil, e
	}
	if h.cePageCount, e = r.Uint32BE(); e != nil {
		return nil, e
	}
	if h.especPageCount, e = r.Uint32BE(); e != nil {
		return nil, e
	}
	if h.flags, e = r.Uint8(); e != nil {
		return nil, e
	}
	if h.especBlockSize, e = r.Uint32BE(); e != nil {
		return nil, e
	}
	return &h, nil
}

// Decode parses a fully BLTE-decoded encoding table blob into a map keyed
// by content key. Insertion is last-wins on collision.
func Decode(data []byte) (map[ngdp.CKey]ngdp.EncodingEntry, error) {
	r := byteio.New(data)
	h, err := parseHeader(r)
	if err != nil {
		return nil, fmt.Errorf("encoding: header: %w", err)
	}
	if r.Offset() != headerLen {
		// parseHeader always consumes exactly headerLen bytes; this would
		// only trip if the header layout above were edited inconsistently.
		panic("encoding: header parser consumed unexpected byte count")
	}

	r.Skip(int(h.especBlockSize))
	r.Skip(int(h.cePageCount) * 32)

	entries := make(map[ngdp.CKey]ngdp.EncodingEntry)
	pageSize := int(h.cePageSizeKB) * 1024
	for p := uint32(0); p < h.cePageCount; p++ {
		pageStart := r.Offset()
		pageEnd := pageStart + pageSize
		if pageEnd > len(data) {
			pageEnd = len(data)
		}
		if err := decodePage(data[pageStart:pageEnd], int(h.cKeyLength), int(h.eKeyLength), entries); err != nil {
			return nil, fmt.Errorf("encoding: page %d: %w", p, err)
		}
		r.Seek(pageEnd)
	}
	return entries, nil
}

// decodePage parses one CE page's entries, in isolation from the rest of
// the buffer, per spec.md §4.3: a page never reads past its own window.
func decodePage(page []byte, cKeyLen, eKeyLen int, entries map[ngdp.CKey]ngdp.EncodingEntry) error {
	r := byteio.New(page)
	for {
		if r.Remaining() < 1 {
			return nil
		}
		keyCount, err := r.Uint8()
		if err != nil {
			return nil
		}
		if keyCount == 0 {
			return nil
		}

		fileSize, err := r.Uint40BE()
		if err != nil {
			return nil
		}
		cKeyBytes, err := r.Bytes(cKeyLen)
		if err != nil {
			return nil
		}
		var cKey ngdp.CKey
		copy(cKey[:], cKeyBytes)

		eKeys := make([]ngdp.EKey, keyCount)
		for i := 0; i < int(keyCount); i++ {
			eKeyBytes, err := r.Bytes(eKeyLen)
			if err != nil {
				return nil
			}
			copy(eKeys[i][:], eKeyBytes)
		}

		entries[cKey] = ngdp.EncodingEntry{
			CKey:     cKey,
			EKeys:    eKeys,
			FileSize: fileSize,
		}
	}
}
